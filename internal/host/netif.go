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

	"guestshare/internal/resolve"
)

// Interface is one IPv4 address bound to a network interface.
type Interface struct {
	Name string
	IP   string
	CIDR string
	// Synthetic is set when Name was made up because the source only
	// reported addresses.
	Synthetic bool
}

func (i Interface) String() string {
	return fmt.Sprintf("%s (%s)", i.Name, i.IP)
}

// BindName is the value for smb.conf `interfaces`: the device name, or the
// address with its prefix when the name is synthetic.
func (i Interface) BindName() string {
	if i.Synthetic {
		return i.CIDR
	}
	return i.Name
}

var errNoAddresses = errors.New("no non-loopback IPv4 addresses")

// ParseIPAddr extracts interfaces from `ip -4 addr show` output, skipping
// loopback addresses.
func ParseIPAddr(out string) []Interface {
	var ifaces []Interface
	current := ""
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line[0] >= '0' && line[0] <= '9' && strings.Contains(line, ":") {
			parts := strings.SplitN(line, ":", 3)
			if len(parts) >= 2 {
				name := strings.TrimSpace(parts[1])
				// veth pairs show up as "veth0@if3"
				if at := strings.IndexByte(name, '@'); at > 0 {
					name = name[:at]
				}
				current = name
			}
			continue
		}
		if !strings.HasPrefix(line, "inet ") || current == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		cidr := fields[1]
		ip, _, _ := strings.Cut(cidr, "/")
		if strings.HasPrefix(ip, "127.") {
			continue
		}
		ifaces = append(ifaces, Interface{Name: current, IP: ip, CIDR: cidr})
	}
	return ifaces
}

// ParseHostnameI converts `hostname -I` output into synthetic interfaces
// named interfaceN with an assumed /24 prefix.
func ParseHostnameI(out string) []Interface {
	var ifaces []Interface
	for i, ip := range strings.Fields(out) {
		if strings.HasPrefix(ip, "127.") || strings.Contains(ip, ":") {
			continue
		}
		ifaces = append(ifaces, Interface{
			Name:      fmt.Sprintf("interface%d", i+1),
			IP:        ip,
			CIDR:      ip + "/24",
			Synthetic: true,
		})
	}
	return ifaces
}

// InterfaceSources lists the interface enumeration cascade.
func (h *Host) InterfaceSources() []resolve.Source[[]Interface] {
	fromCommand := func(parse func(string) []Interface, name string, args ...string) func(context.Context) ([]Interface, error) {
		return func(ctx context.Context) ([]Interface, error) {
			res, err := h.Run.Run(ctx, name, args...)
			if err != nil {
				return nil, err
			}
			ifaces := parse(res.Stdout)
			if len(ifaces) == 0 {
				return nil, errNoAddresses
			}
			return ifaces, nil
		}
	}
	return []resolve.Source[[]Interface]{
		{Name: "ip addr", Fetch: fromCommand(ParseIPAddr, "ip", "-4", "addr", "show")},
		{Name: "hostname -I", Fetch: fromCommand(ParseHostnameI, "hostname", "-I")},
		{Name: "net.Interfaces", Fetch: func(context.Context) ([]Interface, error) {
			ifaces, err := h.Sys.InterfaceAddrs()
			if err != nil {
				return nil, err
			}
			if len(ifaces) == 0 {
				return nil, errNoAddresses
			}
			return ifaces, nil
		}},
	}
}

// Interfaces enumerates usable IPv4 interfaces. An empty result means no
// source found any.
func (h *Host) Interfaces(ctx context.Context) resolve.Outcome[[]Interface] {
	out := resolve.FirstOf(ctx, h.InterfaceSources(), nil)
	logOutcome(h.Log, "interfaces", out)
	return out
}
