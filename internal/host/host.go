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

// Package host probes and changes the machine guestshare configures.
//
// Every decision that depends on the distribution (package manager,
// unprivileged identity, service units, firewall manager, interface
// listing) is expressed as a resolve cascade built from the probe helpers
// here. Operations that change the host return structured results and
// leave operator-facing output to the caller.
package host

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"

	"guestshare/internal/common"
	"guestshare/internal/resolve"
	"guestshare/internal/util"
)

// Host bundles the system, command runner and logger used by probes.
type Host struct {
	Sys System
	Run util.Runner
	Log *log.Entry
	// RetryOptions configures retries of flaky commands.
	RetryOptions func(ctx context.Context) []retry.Option
}

// New returns a Host. A nil logger uses the standard logrus logger.
func New(sys System, run util.Runner, logger *log.Entry) *Host {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Host{Sys: sys, Run: run, Log: logger, RetryOptions: util.CommandRetryOptions}
}

// Default returns a Host backed by the real OS.
func Default(logger *log.Entry) *Host {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return New(RealSystem{}, util.NewExecRunner(logger), logger)
}

// IsRoot reports whether the process runs with effective uid 0.
func (h *Host) IsRoot() bool {
	return h.Sys.Geteuid() == 0
}

// FileExists matches when path exists.
func (h *Host) FileExists(path string) resolve.Check {
	return func(context.Context) (bool, error) {
		_, err := h.Sys.Stat(path)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
}

// OnPath matches when name is found on PATH.
func (h *Host) OnPath(name string) resolve.Check {
	return func(context.Context) (bool, error) {
		return h.HasCommand(name), nil
	}
}

// HasCommand reports whether name is found on PATH.
func (h *Host) HasCommand(name string) bool {
	_, err := h.Run.LookPath(name)
	return err == nil
}

// Succeeds matches when the command exits 0. A missing binary or a
// non-zero exit is a miss, anything else is an error.
func (h *Host) Succeeds(name string, args ...string) resolve.Check {
	return func(ctx context.Context) (bool, error) {
		_, err := h.Run.Run(ctx, name, args...)
		return classify(err)
	}
}

// OutputContains matches when the command's stdout contains substr,
// whatever its exit status.
func (h *Host) OutputContains(substr string, name string, args ...string) resolve.Check {
	return func(ctx context.Context) (bool, error) {
		res, err := h.Run.Run(ctx, name, args...)
		if _, cerr := classify(err); cerr != nil {
			return false, cerr
		}
		return strings.Contains(res.Stdout, substr), nil
	}
}

// Output runs a command and returns trimmed stdout. Any failure is returned.
func (h *Host) Output(ctx context.Context, name string, args ...string) (string, error) {
	res, err := h.Run.Run(ctx, name, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// classify turns a Runner error into probe semantics.
func classify(err error) (bool, error) {
	var cmdErr *util.CommandError
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrCommandNotFound), errors.As(err, &cmdErr):
		return false, nil
	default:
		return false, err
	}
}

// logOutcome records how a cascade resolved.
func logOutcome[T any](l *log.Entry, decision string, out resolve.Outcome[T]) {
	for _, m := range out.Misses {
		l.WithError(m.Err).WithField("candidate", m.Name).Debugf("%s probe failed", decision)
	}
	if out.Fallback {
		l.WithField("value", out.Value).Infof("%s: using fallback", decision)
		return
	}
	l.WithFields(log.Fields{"candidate": out.Matched, "value": out.Value}).Debugf("%s resolved", decision)
}
