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
	"strconv"
	"strings"
)

// SMB ports checked by diagnostics.
var (
	SMBTCPPorts = []int{445, 139}
	SMBAllPorts = []int{445, 139, 137, 138}
)

// Ping sends one ICMP echo to ip with a two second deadline.
func (h *Host) Ping(ctx context.Context, ip string) bool {
	_, err := h.Run.Run(ctx, "ping", "-c", "1", "-W", "2", ip)
	return err == nil
}

// Listeners returns `ss -tlnp` output.
func (h *Host) Listeners(ctx context.Context) (string, error) {
	res, err := h.Run.Run(ctx, "ss", "-tlnp")
	return res.Stdout, err
}

// ListeningOn returns the ss lines whose local address is ip:port or a
// wildcard bind on port.
func ListeningOn(ssOut string, ip string, port int) []string {
	p := ":" + strconv.Itoa(port)
	accept := map[string]bool{
		ip + p:        true,
		"0.0.0.0" + p: true,
		"*" + p:       true,
		"[::]" + p:    true,
	}
	var lines []string
	for _, line := range strings.Split(ssOut, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		if accept[fields[3]] {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	return lines
}

// PortLines returns the ss lines mentioning any of ports.
func PortLines(ssOut string, ports ...int) []string {
	var lines []string
	for _, line := range strings.Split(ssOut, "\n") {
		for _, port := range ports {
			if strings.Contains(line, ":"+strconv.Itoa(port)+" ") {
				lines = append(lines, line)
				break
			}
		}
	}
	return lines
}

// Routes returns up to limit non-empty lines of `ip route show`.
func (h *Host) Routes(ctx context.Context, limit int) ([]string, error) {
	res, err := h.Run.Run(ctx, "ip", "route", "show")
	if err != nil {
		return nil, err
	}
	var routes []string
	for i, line := range strings.Split(res.Stdout, "\n") {
		if i >= limit {
			break
		}
		if strings.TrimSpace(line) != "" {
			routes = append(routes, line)
		}
	}
	return routes, nil
}
