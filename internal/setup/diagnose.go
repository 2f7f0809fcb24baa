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

	"guestshare/internal/host"
)

// routeLimit is the number of `ip route show` lines printed.
const routeLimit = 5

// NetworkDiagnostics prints interfaces, bind address reachability, SMB
// listeners and routes. It reports false when no interface is found.
func (s *Session) NetworkDiagnostics(ctx context.Context) bool {
	p := s.p
	p.Section("🌐 Network Connectivity Diagnostics", 50)

	ifaces := s.Interfaces(ctx)
	if len(ifaces) == 0 {
		p.Fail("No network interfaces found")
		return false
	}
	p.Line("📡 Active Network Interfaces:")
	for _, iface := range ifaces {
		p.Bullet("%s: %s (%s)", iface.Name, iface.IP, iface.CIDR)
	}

	bind, _ := s.BindInterface(ctx)
	p.Blank()
	p.Line("🔗 Checking binding interface: %s", bind.IP)
	if s.Host.Ping(ctx, bind.IP) {
		p.OK("Binding IP %s is reachable", bind.IP)
	} else {
		p.Warn("Binding IP %s may not be reachable", bind.IP)
	}

	p.Blank()
	p.Line("🔌 Checking SMB port status:")
	ss, err := s.Host.Listeners(ctx)
	for _, port := range host.SMBTCPPorts {
		if err != nil {
			p.Line("  ⚠️  Port %d: Cannot check", port)
			continue
		}
		lines := host.ListeningOn(ss, bind.IP, port)
		if len(lines) == 0 {
			p.Line("  ❌ Port %d: NOT LISTENING", port)
			continue
		}
		p.Line("  ✅ Port %d: LISTENING", port)
		for _, l := range lines {
			p.Line("     %s", l)
		}
	}

	p.Blank()
	p.Line("🛣️  Network Routing Information:")
	routes, err := s.Host.Routes(ctx, routeLimit)
	if err != nil {
		p.Line("  ⚠️  Cannot retrieve routing information")
		return true
	}
	for _, r := range routes {
		p.Line("  %s", r)
	}
	return true
}

// Status prints the firewall view and the network diagnostics without
// changing anything on the host.
func (s *Session) Status(ctx context.Context) {
	s.FirewallStatus(ctx)
	s.NetworkDiagnostics(ctx)
}
