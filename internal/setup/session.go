// Copyright 2024 guestshare Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package setup orchestrates a guestshare run: interactive selection,
// Samba installation and configuration, host hardening steps and the
// diagnostics built on top of them.
package setup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"guestshare/internal/common"
	"guestshare/internal/config"
	"guestshare/internal/host"
	"guestshare/internal/prompt"
	"guestshare/internal/samba"
	"guestshare/internal/ui"
	"guestshare/internal/util"
)

// Environment holds the facts resolved during a session. Each one is
// computed once, on first use, and read by every later step.
type Environment struct {
	Interfaces []host.Interface
	Bind       host.Interface
	Protocol   samba.Protocol
	Identity   host.Identity
	Services   host.Services
	Profile    host.Profile
	Firewall   host.FirewallResult
}

type resolved struct {
	interfaces, bind, protocol, identity, services, profile bool
}

// Session is one guestshare invocation.
type Session struct {
	Settings *config.Settings
	Debug    bool
	Host     *host.Host
	Console  *prompt.Console
	Log      *log.Entry

	// Listers check share visibility; nil selects go-smb2 then smbclient.
	Listers     []samba.NamedLister
	ServicePoll util.PollConfig
	Now         func() time.Time

	Env   Environment
	known resolved

	p    *ui.Printer
	lock *flock.Flock
}

// NewSession returns a Session printing to the console's output.
func NewSession(settings *config.Settings, h *host.Host, con *prompt.Console, debug bool) *Session {
	return &Session{
		Settings:    settings,
		Debug:       debug,
		Host:        h,
		Console:     con,
		Log:         h.Log,
		ServicePoll: util.ServicePollConfig(),
		Now:         time.Now,
		p:           ui.NewPrinter(con.Out()),
	}
}

// Printer returns the status line printer.
func (s *Session) Printer() *ui.Printer {
	return s.p
}

// Lock takes the single-run lock in the state directory.
func (s *Session) Lock() error {
	if err := os.MkdirAll(s.Settings.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	s.lock = flock.New(s.Settings.LockPath())
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (lock held on %s)", common.ErrSetupLocked, s.Settings.LockPath())
	}
	return nil
}

// Unlock releases the single-run lock.
func (s *Session) Unlock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
}

func (s *Session) configFile() samba.ConfigFile {
	return samba.ConfigFile{
		Path:       s.Settings.SambaConfig,
		BackupPath: s.Settings.BackupConfig,
		FS:         s.Host.Sys,
	}
}

// Profile returns the package manager profile.
func (s *Session) Profile(ctx context.Context) host.Profile {
	if s.known.profile {
		return s.Env.Profile
	}
	s.p.Line("🔍 Detecting operating system...")
	out := s.Host.ResolveProfile(ctx)
	if out.Fallback {
		s.p.Warn("Unknown Linux distribution, defaulting to %s", out.Value.Manager)
	} else {
		s.p.OK("Detected %s system (%s)", out.Value.Family, out.Value.Manager)
	}
	s.Env.Profile, s.known.profile = out.Value, true
	return s.Env.Profile
}

// Identity returns the unprivileged owner of the share.
func (s *Session) Identity(ctx context.Context) host.Identity {
	if s.known.identity {
		return s.Env.Identity
	}
	s.p.Line("🔍 Detecting nobody user and group...")
	out := s.Host.ResolveIdentity(ctx)
	if out.Fallback {
		s.p.Warn("Standard nobody user/group not found, using fallback: %s", out.Value)
	} else {
		s.p.OK("Found nobody user/group: %s", out.Value)
	}
	s.Env.Identity, s.known.identity = out.Value, true
	return s.Env.Identity
}

// Services returns the Samba unit names.
func (s *Session) Services(ctx context.Context) host.Services {
	if s.known.services {
		return s.Env.Services
	}
	s.p.Line("🔍 Detecting Samba service names...")
	out := s.Host.ResolveServices(ctx)
	if out.Fallback {
		s.p.Warn("Using default service names: %s", out.Value)
	} else {
		s.p.OK("Found Samba services: %s", out.Value)
	}
	s.Env.Services, s.known.services = out.Value, true
	return s.Env.Services
}

// Interfaces returns the usable IPv4 interfaces.
func (s *Session) Interfaces(ctx context.Context) []host.Interface {
	if s.known.interfaces {
		return s.Env.Interfaces
	}
	s.Env.Interfaces, s.known.interfaces = s.Host.Interfaces(ctx).Value, true
	return s.Env.Interfaces
}

// BindInterface returns the selected interface, or the first detected one
// when no selection was made in this session.
func (s *Session) BindInterface(ctx context.Context) (host.Interface, error) {
	if s.known.bind {
		return s.Env.Bind, nil
	}
	ifaces := s.Interfaces(ctx)
	if len(ifaces) == 0 {
		return host.Interface{}, common.ErrNoInterfaces
	}
	return ifaces[0], nil
}

// Protocol returns the selected protocol range or the default one.
func (s *Session) Protocol() samba.Protocol {
	if s.known.protocol {
		return s.Env.Protocol
	}
	return samba.DefaultProtocol
}
