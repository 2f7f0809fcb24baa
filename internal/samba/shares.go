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

package samba

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hirochachacha/go-smb2"

	"guestshare/internal/resolve"
	"guestshare/internal/util"
)

// Validate runs `testparm -s` against the installed config.
func Validate(ctx context.Context, run util.Runner) error {
	_, err := run.Run(ctx, "testparm", "-s")
	return err
}

// Dump returns the normalized config printed by `testparm -s`.
func Dump(ctx context.Context, run util.Runner) (string, error) {
	res, err := run.Run(ctx, "testparm", "-s")
	return res.Stdout, err
}

// SMBPort is the direct-hosted SMB port.
const SMBPort = 445

// SMB2Lister lists shares with an anonymous SMB2/3 session.
type SMB2Lister struct {
	Port        int
	DialTimeout time.Duration
	// RetryOptions apply to the TCP dial; empty uses util defaults.
	RetryOptions []retry.Option
}

// ListShares connects as guest to host and enumerates share names.
func (l SMB2Lister) ListShares(ctx context.Context, host string) ([]string, error) {
	port := l.Port
	if port == 0 {
		port = SMBPort
	}
	timeout := l.DialTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	// smbd may still be binding right after a restart.
	dialer := net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := util.RetryWithResult(ctx, func() (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	}, l.RetryOptions...)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{User: "guest"},
	}
	s, err := d.DialContext(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("smb2 session: %w", err)
	}
	defer s.Logoff()

	names, err := s.ListSharenames()
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	return names, nil
}

// SMBClientLister lists shares by running `smbclient -L <host> -N`.
type SMBClientLister struct {
	Run util.Runner
	// Ensure installs smbclient when it is missing; may be nil.
	Ensure func(ctx context.Context) error
}

// ListShares implements share listing through smbclient.
func (l SMBClientLister) ListShares(ctx context.Context, host string) ([]string, error) {
	if l.Ensure != nil {
		if err := l.Ensure(ctx); err != nil {
			return nil, fmt.Errorf("smbclient unavailable: %w", err)
		}
	}
	res, err := l.Run.Run(ctx, "smbclient", "-L", host, "-N")
	if err != nil {
		return nil, err
	}
	return ParseShareList(res.Stdout), nil
}

// ParseShareList extracts share names from the indented table printed by
// `smbclient -L`.
func ParseShareList(out string) []string {
	var names []string
	inTable := false
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inTable {
			inTable = strings.HasPrefix(trimmed, "Sharename")
			continue
		}
		if strings.HasPrefix(trimmed, "---") {
			continue
		}
		if trimmed == "" || (line[0] != ' ' && line[0] != '\t') {
			if len(names) > 0 {
				break
			}
			continue
		}
		names = append(names, strings.Fields(trimmed)[0])
	}
	return names
}

// ShareLister enumerates the shares a server exposes.
type ShareLister interface {
	ListShares(ctx context.Context, host string) ([]string, error)
}

// Visibility is the outcome of a share visibility check.
type Visibility struct {
	Method  string // lister that answered, empty when none did
	Shares  []string
	Visible bool
	Misses  []resolve.Miss
}

var errNoLister = errors.New("no share lister answered")

// Err summarizes why the check failed.
func (v Visibility) Err() error {
	if v.Method != "" {
		return nil
	}
	if len(v.Misses) == 0 {
		return errNoLister
	}
	last := v.Misses[len(v.Misses)-1]
	return fmt.Errorf("%s: %w", last.Name, last.Err)
}

// NamedLister pairs a lister with a label for logs.
type NamedLister struct {
	Name   string
	Lister ShareLister
}

// CheckShare asks each lister in turn for host's shares and reports
// whether share is among them.
func CheckShare(ctx context.Context, listers []NamedLister, host, share string) Visibility {
	sources := make([]resolve.Source[[]string], 0, len(listers))
	for _, nl := range listers {
		l := nl.Lister
		sources = append(sources, resolve.Source[[]string]{
			Name:  nl.Name,
			Fetch: func(ctx context.Context) ([]string, error) { return l.ListShares(ctx, host) },
		})
	}
	out := resolve.FirstOf(ctx, sources, nil)
	v := Visibility{Shares: out.Value, Misses: out.Misses}
	if !out.Fallback {
		v.Method = out.Matched
	}
	for _, s := range out.Value {
		if strings.EqualFold(s, share) {
			v.Visible = true
			break
		}
	}
	return v
}
