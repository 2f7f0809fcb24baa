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
)

// ConnectionInfo prints how Windows clients reach the share.
func (s *Session) ConnectionInfo(ctx context.Context) {
	p := s.p
	bind, _ := s.BindInterface(ctx)
	svcs := s.Services(ctx)

	p.Blank()
	p.Line(strings.Repeat("=", 60))
	p.Line("🎉 SMB SERVER SETUP COMPLETE!")
	p.Line(strings.Repeat("=", 60))
	p.Line("🔗 Binding Interface: %s", bind)
	p.Line("📡 Server IP Address: %s", bind.IP)
	p.Line("📁 Share Name: %s", s.Settings.ShareName)
	p.Line("📂 Share Path: %s", s.Settings.SharePath)

	p.Blank()
	p.Line("🪟 Windows Connection Instructions:")
	p.Line("1. Open File Explorer on Windows")
	p.Line("2. In the address bar, type:")
	p.Line("   %s", common.UNCPath(bind.IP, s.Settings.ShareName))
	p.Line("3. Press Enter")
	p.Line("4. No username/password required (anonymous access)")

	p.Blank()
	p.Line("🔧 Management Commands:")
	p.Line("• Check service status: sudo systemctl status %s", svcs.Primary)
	p.Line("• Restart Samba: sudo systemctl restart %s", strings.Join(svcs.Names(), " "))
	p.Line("• View logs: sudo tail -f %s", SmbdLog)
	p.Line("• Test config: sudo testparm")

	p.Blank()
	p.Warn("Security Note:")
	p.Line("This setup allows anonymous access to the shared directory.")
	p.Line("Ensure this is appropriate for your network environment.")
}

// Reminders prints the post-setup checklist.
func (s *Session) Reminders() {
	p := s.p
	iface := s.Env.Bind.Name
	if iface == "" || s.Env.Bind.Synthetic {
		iface = "<interface>"
	}
	zone := "--zone=" + host.LibvirtZone

	p.Blank()
	p.Line("📋 IMPORTANT POST-SETUP REMINDERS:")
	p.Line(strings.Repeat("=", 50))
	p.Line("🔥 FIREWALL: If SMB share is not accessible from guest OS:")
	p.Line("   • Check if your network interface is in libvirt zone:")
	p.Line("     sudo firewall-cmd --get-zone-of-interface=%s", iface)
	p.Line("   • If yes, add Samba to libvirt zone:")
	p.Line("     sudo firewall-cmd %s --add-service=samba --permanent", zone)
	for _, port := range host.SMBTCPPorts {
		p.Line("     sudo firewall-cmd %s --add-port=%d/tcp --permanent", zone, port)
	}
	p.Line("     sudo firewall-cmd --reload")
	if s.Protocol().Min == "NT1" {
		p.Line("🪟 WINDOWS: If Windows can't connect, enable SMB1 client:")
		p.Line("   • PowerShell as Admin: Enable-WindowsOptionalFeature -Online -FeatureName SMB1Protocol-Client")
		p.Line("   • Or: Control Panel → Programs → Turn Windows features on/off → SMB 1.0/CIFS File Sharing Support")
	}
	p.Line("🔍 DEBUGGING: Use --debug flag for detailed troubleshooting")
	p.Blank()
}

// DebugHints lists the diagnostic entry points.
func (s *Session) DebugHints() {
	p := s.p
	p.Blank()
	p.Line("🐛 DEBUG MODE - Additional Information:")
	p.Line(strings.Repeat("=", 50))
	p.Line("🔍 Use the following commands to monitor connections:")
	p.Bullet("Monitor logs: sudo tail -f %s", SmbdLog)
	p.Bullet("Monitor connections: sudo guestshare monitor")
	p.Bullet("Generate report: sudo guestshare report")
	p.Bullet("Start debug session: sudo guestshare debug")
}
