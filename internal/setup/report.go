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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"guestshare/internal/host"
	"guestshare/internal/samba"
)

// ReportPath returns where a report generated now is written.
func (s *Session) ReportPath() string {
	return filepath.Join(s.Settings.ReportDir, fmt.Sprintf("samba_debug_report_%d.txt", s.Now().Unix()))
}

// GenerateReport writes a plain text debug report and prints a network
// summary. It returns the report path.
func (s *Session) GenerateReport(ctx context.Context) (string, error) {
	s.p.Section("📋 Generating Debug Report", 50)

	var b strings.Builder
	section := func(title string) {
		fmt.Fprintf(&b, "\n%s:\n%s\n", title, strings.Repeat("-", len(title)+1))
	}
	b.WriteString("SAMBA DEBUG REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Generated: %s\n", s.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Report ID: %s\n", uuid.NewString())

	section("SYSTEM INFORMATION")
	fmt.Fprintf(&b, "System: %s\n", s.systemInfo(ctx))

	section("SAMBA CONFIGURATION")
	if conf, err := samba.Dump(ctx, s.Host.Run); err != nil {
		fmt.Fprintf(&b, "Configuration test failed: %v\n", err)
	} else {
		b.WriteString(conf)
	}

	section("SERVICE STATUS")
	for _, unit := range s.Services(ctx).Names() {
		fmt.Fprintf(&b, "%s status:\n%s\n\n", unit, s.Host.ServiceStatus(ctx, unit))
	}

	section("NETWORK INFORMATION")
	if res, err := s.Host.Run.Run(ctx, "ip", "addr", "show"); err != nil {
		b.WriteString("Cannot get network information\n")
	} else {
		b.WriteString(res.Stdout)
	}

	section("PORT STATUS")
	if ss, err := s.Host.Listeners(ctx); err != nil {
		b.WriteString("Cannot get port information\n")
	} else {
		for _, line := range host.PortLines(ss, host.SMBAllPorts...) {
			b.WriteString(line + "\n")
		}
	}

	section("FIREWALL STATUS")
	if res, err := s.Host.Run.Run(ctx, "firewall-cmd", "--list-all"); err != nil {
		b.WriteString("Cannot get firewall status (firewalld not available)\n")
	} else {
		b.WriteString(res.Stdout)
	}

	section("RECENT SAMBA LOGS")
	for _, path := range []string{SmbdLog, NmbdLog} {
		if _, err := s.Host.Sys.Stat(path); err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", path)
		if res, err := s.Host.Run.Run(ctx, "tail", "-n", "50", path); err != nil {
			b.WriteString("Cannot read log file\n")
		} else {
			b.WriteString(res.Stdout)
		}
	}

	path := s.ReportPath()
	if err := s.Host.Sys.MkdirAll(s.Settings.ReportDir, 0755); err != nil {
		s.p.Fail("Failed to create report directory %s: %v", s.Settings.ReportDir, err)
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := s.Host.Sys.WriteFile(path, []byte(b.String()), 0644); err != nil {
		s.p.Fail("Failed to write debug report: %v", err)
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	s.p.Line("📄 Debug report saved to: %s", path)
	s.p.Line("📤 You can share this file for detailed troubleshooting")

	s.p.Blank()
	s.p.Line("📊 Quick Summary:")
	s.NetworkDiagnostics(ctx)
	return path, nil
}

func (s *Session) systemInfo(ctx context.Context) string {
	if uname, err := s.Host.Sys.Uname(); err == nil {
		return uname
	}
	if out, err := s.Host.Output(ctx, "uname", "-a"); err == nil {
		return out
	}
	return "Unknown"
}
