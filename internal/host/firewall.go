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
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"guestshare/internal/resolve"
)

// Firewall managers.
const (
	Firewalld  = "firewalld"
	UFW        = "ufw"
	IPTables   = "iptables"
	NoFirewall = "none"
)

// LibvirtZone is the firewalld zone libvirt assigns to its bridges.
const LibvirtZone = "libvirt"

// ErrNotDetected marks a firewall manager that is not present on the host.
var ErrNotDetected = errors.New("not detected")

// FirewallResult describes which manager accepted the Samba rules.
type FirewallResult struct {
	Manager string
	// LibvirtInterfaces lists bridges whose libvirt zone was opened.
	LibvirtInterfaces []string
	// Persistent is false when the rules are lost on reboot.
	Persistent bool
	// Warnings are non-fatal failures while applying.
	Warnings error
}

// Configured reports whether any manager took the rules.
func (r FirewallResult) Configured() bool {
	return r.Manager != NoFirewall && r.Manager != ""
}

type ruleBatch struct {
	run  func(ctx context.Context, name string, args ...string) error
	errs *multierror.Error
}

func (b *ruleBatch) add(ctx context.Context, name string, args ...string) {
	if err := b.run(ctx, name, args...); err != nil {
		b.errs = multierror.Append(b.errs, err)
	}
}

func (b *ruleBatch) count() int {
	if b.errs == nil {
		return 0
	}
	return len(b.errs.Errors)
}

func (h *Host) runErr(ctx context.Context, name string, args ...string) error {
	_, err := h.Run.Run(ctx, name, args...)
	return err
}

// FirewallSources lists the firewall applier cascade. A manager that is
// detected but fails to apply is a miss and the next one is tried.
func (h *Host) FirewallSources(profile Profile, ifaces []Interface) []resolve.Source[FirewallResult] {
	return []resolve.Source[FirewallResult]{
		{Name: Firewalld, Fetch: func(ctx context.Context) (FirewallResult, error) {
			return h.applyFirewalld(ctx, profile, ifaces)
		}},
		{Name: UFW, Fetch: h.applyUFW},
		{Name: IPTables, Fetch: h.applyIPTables},
	}
}

// ConfigureFirewall opens the Samba ports with the first manager that
// applies cleanly.
func (h *Host) ConfigureFirewall(ctx context.Context, profile Profile, ifaces []Interface) resolve.Outcome[FirewallResult] {
	out := resolve.FirstOf(ctx, h.FirewallSources(profile, ifaces), FirewallResult{Manager: NoFirewall})
	for _, m := range out.Misses {
		if !errors.Is(m.Err, ErrNotDetected) {
			h.Log.WithError(m.Err).WithField("manager", m.Name).Warn("firewall configuration failed")
		}
	}
	logOutcome(h.Log, "firewall", out)
	return out
}

// FirewalldActive reports whether firewalld is running.
func (h *Host) FirewalldActive(ctx context.Context) bool {
	return h.IsActive(ctx, Firewalld)
}

func (h *Host) applyFirewalld(ctx context.Context, profile Profile, ifaces []Interface) (FirewallResult, error) {
	if profile.Family == FamilyDebian {
		return FirewallResult{}, fmt.Errorf("debian family: %w", ErrNotDetected)
	}
	if !h.FirewalldActive(ctx) {
		return FirewallResult{}, ErrNotDetected
	}
	if _, err := h.Run.Run(ctx, "firewall-cmd", "--version"); err != nil {
		return FirewallResult{}, fmt.Errorf("firewall-cmd unavailable: %w", err)
	}

	for _, args := range [][]string{
		{"--add-service=samba", "--permanent"},
		{"--add-service=samba"},
	} {
		if err := h.runErr(ctx, "firewall-cmd", args...); err != nil {
			return FirewallResult{}, err
		}
	}

	res := FirewallResult{Manager: Firewalld, Persistent: true}
	warnings := &ruleBatch{run: h.runErr}
	for _, iface := range ifaces {
		if !strings.HasPrefix(iface.Name, "virbr") && !strings.HasPrefix(iface.Name, "libvirt") {
			continue
		}
		zone, err := h.Output(ctx, "firewall-cmd", "--get-zone-of-interface="+iface.Name)
		if err != nil || zone != LibvirtZone {
			// not assigned to a zone yet
			continue
		}
		before := warnings.count()
		h.openLibvirtZone(ctx, warnings)
		if warnings.count() == before {
			res.LibvirtInterfaces = append(res.LibvirtInterfaces, iface.Name)
		}
	}

	if err := h.runErr(ctx, "firewall-cmd", "--reload"); err != nil {
		return FirewallResult{}, err
	}
	res.Warnings = warnings.errs.ErrorOrNil()
	return res, nil
}

func (h *Host) openLibvirtZone(ctx context.Context, b *ruleBatch) {
	zone := "--zone=" + LibvirtZone
	b.add(ctx, "firewall-cmd", zone, "--add-service=samba", "--permanent")
	b.add(ctx, "firewall-cmd", zone, "--add-service=samba")
	b.add(ctx, "firewall-cmd", zone, "--add-port=445/tcp", "--permanent")
	b.add(ctx, "firewall-cmd", zone, "--add-port=139/tcp", "--permanent")
	b.add(ctx, "firewall-cmd", zone, "--add-port=445/tcp")
	b.add(ctx, "firewall-cmd", zone, "--add-port=139/tcp")
}

func (h *Host) applyUFW(ctx context.Context) (FirewallResult, error) {
	if !h.HasCommand(UFW) {
		return FirewallResult{}, ErrNotDetected
	}
	if err := h.runErr(ctx, "ufw", "allow", "samba"); err != nil {
		return FirewallResult{}, err
	}
	return FirewallResult{Manager: UFW, Persistent: true}, nil
}

func (h *Host) applyIPTables(ctx context.Context) (FirewallResult, error) {
	if !h.HasCommand(IPTables) {
		return FirewallResult{}, ErrNotDetected
	}
	b := &ruleBatch{run: h.runErr}
	for _, rule := range []struct{ proto, port string }{
		{"tcp", "445"}, {"tcp", "139"}, {"udp", "137"}, {"udp", "138"},
	} {
		b.add(ctx, "iptables", "-A", "INPUT", "-p", rule.proto, "--dport", rule.port, "-j", "ACCEPT")
	}
	if err := b.errs.ErrorOrNil(); err != nil {
		return FirewallResult{}, err
	}
	return FirewallResult{Manager: IPTables}, nil
}

// FirewallStatus is the firewalld view of the Samba rules.
type FirewallStatus struct {
	Active bool
	// DefaultZoneSamba is nil when the default zone could not be listed.
	DefaultZoneSamba *bool
	// LibvirtZoneSamba is nil when the libvirt zone does not exist.
	LibvirtZoneSamba *bool
	// LibvirtPorts is nil when the libvirt ports could not be listed.
	LibvirtPorts *bool
}

// CheckFirewall inspects firewalld for Samba rules.
func (h *Host) CheckFirewall(ctx context.Context) FirewallStatus {
	var st FirewallStatus
	if !h.FirewalldActive(ctx) {
		return st
	}
	st.Active = true
	contains := func(substrs []string, args ...string) *bool {
		out, err := h.Output(ctx, "firewall-cmd", args...)
		if err != nil {
			return nil
		}
		ok := true
		for _, s := range substrs {
			ok = ok && strings.Contains(out, s)
		}
		return &ok
	}
	st.DefaultZoneSamba = contains([]string{"samba"}, "--list-services")
	st.LibvirtZoneSamba = contains([]string{"samba"}, "--zone="+LibvirtZone, "--list-services")
	st.LibvirtPorts = contains([]string{"445/tcp", "139/tcp"}, "--zone="+LibvirtZone, "--list-ports")
	return st
}
