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
	"strings"
	"time"

	"github.com/oklog/run"

	"guestshare/internal/prompt"
)

// Samba log locations.
const (
	SmbdLog = "/var/log/samba/log.smbd"
	NmbdLog = "/var/log/samba/log.nmbd"
)

// AlternativeLogs are tried in order when SmbdLog cannot be followed.
var AlternativeLogs = []string{
	"/var/log/samba/log.smb",
	"/var/log/samba/smbd.log",
	"/var/log/samba.log",
}

var (
	errMonitorElapsed = errors.New("monitor duration elapsed")
	errMonitorStopped = errors.New("monitor stopped")
)

// MonitorLogs follows SmbdLog for d, prefixing each line with the local
// time. SIGINT stops it early. When the log cannot be followed the tail of
// the first alternative log found is printed instead.
func (s *Session) MonitorLogs(ctx context.Context, d time.Duration) {
	p := s.p
	p.Line("📊 Monitoring Samba logs for %d seconds...", int(d.Seconds()))
	p.Line("🔍 Look for connection attempts from your Windows client")
	p.Line("⏹️  Press Ctrl+C to stop monitoring early")
	p.Line(strings.Repeat("-", 60))

	ctx, stop := prompt.InterruptContext(ctx)
	defer stop()

	var (
		group   run.Group
		tailErr error
	)
	{
		tailCtx, cancel := context.WithCancel(ctx)
		group.Add(func() error {
			tailErr = s.Host.Run.Stream(tailCtx, func(line string) {
				p.Line("[%s] %s", s.Now().Format("15:04:05"), strings.TrimSpace(line))
			}, "tail", "-f", SmbdLog)
			return tailErr
		}, func(error) {
			cancel()
		})
	}
	{
		timer := time.NewTimer(d)
		done := make(chan struct{})
		group.Add(func() error {
			select {
			case <-timer.C:
				return errMonitorElapsed
			case <-done:
				return nil
			}
		}, func(error) {
			timer.Stop()
			close(done)
		})
	}
	{
		done := make(chan struct{})
		group.Add(func() error {
			select {
			case <-ctx.Done():
				return errMonitorStopped
			case <-done:
				return nil
			}
		}, func(error) {
			close(done)
		})
	}

	err := group.Run()
	switch {
	case tailErr != nil:
		s.Log.WithError(tailErr).Debug("tail failed")
		p.Warn("Samba log file not found. Trying alternative locations...")
		s.tailAlternativeLog(context.WithoutCancel(ctx))
	case errors.Is(err, errMonitorStopped) || ctx.Err() != nil:
		p.Blank()
		p.Line("⏹️  Log monitoring stopped by user")
	default:
		p.Blank()
		p.Line("📊 Log monitoring completed")
	}
}

func (s *Session) tailAlternativeLog(ctx context.Context) {
	for _, path := range AlternativeLogs {
		if _, err := s.Host.Sys.Stat(path); err != nil {
			continue
		}
		s.p.Line("📄 Found log at: %s", path)
		res, err := s.Host.Run.Run(ctx, "tail", "-n", "20", path)
		if err != nil {
			s.p.Warn("Cannot read %s: %v", path, err)
			return
		}
		s.p.Line("%s", strings.TrimRight(res.Stdout, "\n"))
		return
	}
	s.p.Fail("No Samba log files found")
}
