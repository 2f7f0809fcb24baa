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

package host

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"guestshare/internal/resolve"
	"guestshare/internal/util"
)

// Services names the Samba units. Secondary is empty when the distribution
// ships a single unit.
type Services struct {
	Primary   string
	Secondary string
}

// Names lists the configured units, primary first.
func (s Services) Names() []string {
	if s.Secondary == "" {
		return []string{s.Primary}
	}
	return []string{s.Primary, s.Secondary}
}

func (s Services) String() string {
	return strings.Join(s.Names(), ", ")
}

// DefaultServices is used when no unit could be detected.
var DefaultServices = Services{Primary: "smbd", Secondary: "nmbd"}

// ServiceCandidates are the unit pairs looked up one by one.
var ServiceCandidates = []Services{
	{Primary: "smb", Secondary: "nmb"},
	{Primary: "smbd", Secondary: "nmbd"},
	{Primary: "samba", Secondary: "nmb"},
	{Primary: "samba", Secondary: "winbind"},
}

// ServiceProbes checks each candidate unit file, then falls back to one
// wildcard listing shared by the remaining probes.
func (h *Host) ServiceProbes() []resolve.Probe[Services] {
	var probes []resolve.Probe[Services]
	for _, c := range ServiceCandidates {
		unit := c.Primary + ".service"
		probes = append(probes, resolve.Probe[Services]{
			Name:   unit,
			Check:  h.OutputContains(unit, "systemctl", "list-unit-files", unit),
			Result: c,
		})
	}

	listing := h.onceOutput("systemctl", "list-unit-files", "*smb*", "*samba*")
	wildcard := []struct {
		unit string
		svc  Services
	}{
		{"smb.service", Services{Primary: "smb", Secondary: "nmb"}},
		{"smbd.service", Services{Primary: "smbd", Secondary: "nmbd"}},
		{"samba.service", Services{Primary: "samba"}},
	}
	for _, w := range wildcard {
		unit := w.unit
		probes = append(probes, resolve.Probe[Services]{
			Name: "listing " + unit,
			Check: func(ctx context.Context) (bool, error) {
				out, err := listing(ctx)
				if err != nil {
					return false, err
				}
				return strings.Contains(out, unit), nil
			},
			Result: w.svc,
		})
	}
	return probes
}

// onceOutput runs a command on first use and replays its stdout.
func (h *Host) onceOutput(name string, args ...string) func(context.Context) (string, error) {
	var (
		once sync.Once
		out  string
		err  error
	)
	return func(ctx context.Context) (string, error) {
		once.Do(func() {
			var res util.Result
			res, err = h.Run.Run(ctx, name, args...)
			out = res.Stdout
			if _, cerr := classify(err); cerr == nil {
				err = nil
			}
		})
		return out, err
	}
}

// ResolveServices detects the Samba unit names.
func (h *Host) ResolveServices(ctx context.Context) resolve.Outcome[Services] {
	out := resolve.Resolve(ctx, h.ServiceProbes(), DefaultServices)
	logOutcome(h.Log, "samba services", out)
	return out
}

// IsActive reports whether systemd considers unit active.
func (h *Host) IsActive(ctx context.Context, unit string) bool {
	_, err := h.Run.Run(ctx, "systemctl", "is-active", unit)
	return err == nil
}

// ActiveState returns the `systemctl is-active` word for unit.
func (h *Host) ActiveState(ctx context.Context, unit string) string {
	res, err := h.Run.Run(ctx, "systemctl", "is-active", unit)
	state := strings.TrimSpace(res.Stdout)
	if state == "" && err != nil {
		return "unknown"
	}
	return state
}

// ServiceStatus returns `systemctl status` output whatever the exit code.
func (h *Host) ServiceStatus(ctx context.Context, unit string) string {
	res, _ := h.Run.Run(ctx, "systemctl", "status", unit)
	return res.Stdout
}

// EnableAndStart enables and starts unit, retrying transient failures.
func (h *Host) EnableAndStart(ctx context.Context, unit string) error {
	return util.Retry(ctx, func() error {
		if _, err := h.Run.Run(ctx, "systemctl", "enable", unit); err != nil {
			return err
		}
		_, err := h.Run.Run(ctx, "systemctl", "start", unit)
		return err
	}, h.RetryOptions(ctx)...)
}

// Restart restarts unit.
func (h *Host) Restart(ctx context.Context, unit string) error {
	_, err := h.Run.Run(ctx, "systemctl", "restart", unit)
	return err
}

// RestartAll restarts every unit in svcs, stopping at the first failure.
func (h *Host) RestartAll(ctx context.Context, svcs Services) error {
	for _, unit := range svcs.Names() {
		if err := h.Restart(ctx, unit); err != nil {
			return fmt.Errorf("restart %s: %w", unit, err)
		}
	}
	return nil
}

// ServiceReport summarizes StartServices.
type ServiceReport struct {
	Started   []string
	Restarted []string
	Failed    []string // units that neither started nor restarted
	// PrimaryActive is true once the primary unit reported active.
	PrimaryActive bool
	PrimaryState  string
}

// StartServices enables and starts each unit, restarts the ones that
// failed, then waits for the primary unit to become active.
func (h *Host) StartServices(ctx context.Context, svcs Services, poll util.PollConfig) ServiceReport {
	var rep ServiceReport
	var failed []string
	for _, unit := range svcs.Names() {
		if err := h.EnableAndStart(ctx, unit); err != nil {
			h.Log.WithError(err).WithField("unit", unit).Warn("start failed")
			failed = append(failed, unit)
			continue
		}
		rep.Started = append(rep.Started, unit)
	}
	for _, unit := range failed {
		if err := h.Restart(ctx, unit); err != nil {
			h.Log.WithError(err).WithField("unit", unit).Warn("restart failed")
			rep.Failed = append(rep.Failed, unit)
			continue
		}
		rep.Restarted = append(rep.Restarted, unit)
	}

	cfg := util.DefaultDaemonStartConfig(svcs.Primary)
	cfg.PollConfig = poll
	err := util.EnsureDaemon(ctx, cfg,
		func() bool { return h.IsActive(ctx, svcs.Primary) },
		func() error { return nil },
	)
	rep.PrimaryActive = err == nil
	rep.PrimaryState = h.ActiveState(ctx, svcs.Primary)
	return rep
}
