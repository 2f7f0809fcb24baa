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

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow the Samba log",
	Long: `Prints new lines of the smbd log with a timestamp for a bounded time.
Press Ctrl+C to stop early.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var monitorDuration time.Duration

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a debug report",
	Long: `Collects system, Samba, network, firewall and log information into a text
file in the report directory and prints a network summary.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var troubleshootCmd = &cobra.Command{
	Use:   "troubleshoot",
	Short: "Re-apply host fixes and check share visibility",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSession(cmd)
		if err := s.RequireRoot(); err != nil {
			return err
		}
		s.Troubleshoot(cmd.Context())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show firewall status and network diagnostics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		newSession(cmd).Status(cmd.Context())
		return nil
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0, "How long to follow the log (default from settings, 300s)")
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(troubleshootCmd)
	rootCmd.AddCommand(statusCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	d := monitorDuration
	if d <= 0 {
		d = settings.MonitorDurationValue()
	}
	s := newSession(cmd)
	fmt.Fprintln(s.Printer().Writer(), "🔍 Starting Samba log monitoring...")
	s.MonitorLogs(cmd.Context(), d)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	_, err := newSession(cmd).GenerateReport(cmd.Context())
	return err
}
