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
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"guestshare/internal/prompt"
)

// DebugMonitorDuration is offered by the debug menu when no duration is
// entered.
const DebugMonitorDuration = 60 * time.Second

// DebugSession enables verbose logging and runs the diagnostics menu until
// the operator exits, input ends or SIGINT arrives.
func (s *Session) DebugSession(ctx context.Context) {
	p := s.p
	p.Section("🔧 Starting Debug Session", 50)
	_ = s.EnableVerboseLogging(ctx)

	p.Blank()
	p.Line("🎯 Debug session started!")
	p.Line("📋 Available debug options:")
	p.Line("  1. Monitor logs in real-time")
	p.Line("  2. Check network connectivity")
	p.Line("  3. Generate debug report")
	p.Line("  4. Test SMB connection")
	p.Line("  5. Exit debug session")

	for {
		choice, err := s.ask(ctx, "\n🔍 Select debug option (1-5): ")
		if err != nil {
			s.endSession(err)
			return
		}
		switch strings.TrimSpace(choice) {
		case "1":
			answer, err := s.ask(ctx, "Monitor duration in seconds (default 60): ")
			if err != nil {
				s.endSession(err)
				return
			}
			s.MonitorLogs(ctx, parseDuration(answer, DebugMonitorDuration))
		case "2":
			s.NetworkDiagnostics(ctx)
		case "3":
			_, _ = s.GenerateReport(ctx)
		case "4":
			s.VerifyConnectivity(ctx)
		case "5":
			p.Line("👋 Exiting debug session")
			return
		default:
			p.Fail("Invalid choice. Please select 1-5.")
		}
	}
}

// ask reads one answer with SIGINT scoped to the question.
func (s *Session) ask(ctx context.Context, question string) (string, error) {
	ctx, stop := prompt.InterruptContext(ctx)
	defer stop()
	return s.Console.Ask(ctx, question)
}

func (s *Session) endSession(err error) {
	s.p.Blank()
	if errors.Is(err, io.EOF) {
		s.p.Line("👋 Debug session ended")
		return
	}
	s.p.Line("👋 Debug session interrupted")
}

// parseDuration reads a whole number of seconds, falling back to def.
func parseDuration(answer string, def time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
