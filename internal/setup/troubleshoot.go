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

package setup

import (
	"context"
	"strings"

	"guestshare/internal/common"
	"guestshare/internal/host"
	"guestshare/internal/samba"
)

// Troubleshoot re-applies the host fixes and checks that the share is
// reachable. It reports true when no issue was found.
func (s *Session) Troubleshoot(ctx context.Context) bool {
	p := s.p
	p.Blank()
	p.Step("Running connectivity troubleshooting...")
	p.Line(strings.Repeat("=", 50))

	var issues, fixes []string
	svcs := s.Services(ctx)
	if !s.Host.IsActive(ctx, svcs.Primary) {
		issues = append(issues, svcs.Primary+" service not running")
		if err := s.Host.Restart(ctx, svcs.Primary); err != nil {
			s.Log.WithError(err).WithField("unit", svcs.Primary).Warn("restart failed")
			issues = append(issues, "Failed to restart "+svcs.Primary)
		} else {
			fixes = append(fixes, "Restarted "+svcs.Primary+" service")
		}
	}

	if s.ConfigureFirewall(ctx) {
		fixes = append(fixes, "Configured firewall for Samba")
	} else {
		issues = append(issues, "Firewall may be blocking SMB traffic")
	}
	if s.ConfigureSELinux(ctx) {
		fixes = append(fixes, "Configured SELinux for Samba")
	} else {
		issues = append(issues, "SELinux may be blocking Samba")
	}
	if s.VerifyConnectivity(ctx) {
		fixes = append(fixes, "SMB connectivity verified")
	} else {
		issues = append(issues, "SMB connectivity test failed")
	}

	p.Blank()
	p.Line("📊 Troubleshooting Results:")
	p.Line(strings.Repeat("=", 30))
	if len(fixes) > 0 {
		p.OK("Fixes Applied:")
		for _, f := range fixes {
			p.Bullet("%s", f)
		}
	}
	if len(issues) == 0 {
		p.Blank()
		p.Line("🎉 All connectivity checks passed!")
		return true
	}

	p.Blank()
	p.Warn("Issues Found:")
	for _, i := range issues {
		p.Bullet("%s", i)
	}
	unc := common.UNCPath("<SERVER_IP>", s.Settings.ShareName)
	p.Blank()
	p.Hint("Manual Steps You May Need:")
	p.Bullet("Check Windows Firewall settings")
	p.Bullet("Ensure Windows and Linux are on same network")
	p.Bullet("Try connecting with: %s", unc)
	p.Bullet("On Windows, try: net use * %s", unc)
	return false
}

// listers returns the share listers used by VerifyConnectivity.
func (s *Session) listers(ctx context.Context) []samba.NamedLister {
	if s.Listers != nil {
		return s.Listers
	}
	ensure := func(ctx context.Context) error {
		if s.Host.HasCommand("smbclient") {
			return nil
		}
		prof := s.Profile(ctx)
		s.p.Line("📦 Installing %s for testing...", prof.ClientPackage)
		if err := s.Host.EnsureSMBClient(ctx, prof); err != nil {
			s.p.Warn("Could not install smbclient for testing")
			return err
		}
		return nil
	}
	return []samba.NamedLister{
		{Name: "smb2", Lister: samba.SMB2Lister{}},
		{Name: "smbclient", Lister: samba.SMBClientLister{Run: s.Host.Run, Ensure: ensure}},
	}
}

// VerifyConnectivity lists the server's shares anonymously and reports
// whether the configured share is visible.
func (s *Session) VerifyConnectivity(ctx context.Context) bool {
	s.p.Line("🔍 Verifying SMB connectivity...")
	bind, err := s.BindInterface(ctx)
	if err != nil {
		s.p.Fail("SMB connectivity test failed: %v", err)
		return false
	}

	s.p.Line("🧪 Testing connection to %s...", bind.IP)
	v := samba.CheckShare(ctx, s.listers(ctx), bind.IP, s.Settings.ShareName)
	for _, m := range v.Misses {
		s.Log.WithError(m.Err).WithField("lister", m.Name).Debug("share listing failed")
	}
	if err := v.Err(); err != nil {
		s.p.Fail("SMB connectivity test failed: %v", err)
		return false
	}
	if !v.Visible {
		s.p.Warn("SMB server accessible but %s share not found", s.Settings.ShareName)
		s.p.Line("Shares: %s", strings.Join(v.Shares, ", "))
		return false
	}
	s.p.OK("SMB server is accessible and %s share is visible (via %s)", s.Settings.ShareName, v.Method)
	return true
}

// FirewallStatus prints the firewalld view of the Samba rules. It reports
// whether firewalld is active.
func (s *Session) FirewallStatus(ctx context.Context) bool {
	p := s.p
	p.Blank()
	p.Line("🔥 Checking firewall configuration for SMB...")
	st := s.Host.CheckFirewall(ctx)
	if !st.Active {
		p.Info("Firewalld not active or not found")
		return false
	}

	p.Line("🔍 Firewalld Status:")
	if st.DefaultZoneSamba != nil {
		if *st.DefaultZoneSamba {
			p.Line("  ✅ Samba service enabled in default zone")
		} else {
			p.Line("  ❌ Samba service NOT enabled in default zone")
		}
	}
	switch {
	case st.LibvirtZoneSamba == nil:
		p.Line("  ℹ️  Libvirt zone not found")
	case *st.LibvirtZoneSamba:
		p.Line("  ✅ Samba service enabled in libvirt zone")
	default:
		p.Line("  ❌ Samba service NOT enabled in libvirt zone")
		p.Line("  💡 Run: sudo firewall-cmd --zone=%s --add-service=samba --permanent", host.LibvirtZone)
	}
	if st.LibvirtPorts != nil {
		if *st.LibvirtPorts {
			p.Line("  ✅ SMB ports 445/tcp and 139/tcp enabled in libvirt zone")
		} else {
			p.Line("  ⚠️  SMB ports may not be explicitly enabled in libvirt zone")
		}
	}
	return true
}

// EnableVerboseLogging raises the Samba log level and restarts the units.
func (s *Session) EnableVerboseLogging(ctx context.Context) error {
	s.p.Line("🔍 Enabling verbose Samba logging...")
	changed, err := s.configFile().EnableVerbose()
	if err != nil {
		s.p.Warn("Failed to enable verbose logging: %v", err)
		return err
	}
	if changed {
		s.p.OK("Verbose logging enabled")
	} else {
		s.p.Info("Verbose logging already enabled")
	}

	if err := s.Host.RestartAll(ctx, s.Services(ctx)); err != nil {
		s.p.Warn("Failed to enable verbose logging: %v", err)
		return err
	}
	s.p.OK("Samba services restarted with verbose logging")
	return nil
}
