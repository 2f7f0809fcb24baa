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
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"guestshare/internal/config"
	"guestshare/internal/host"
	"guestshare/internal/prompt"
	"guestshare/internal/setup"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		// Dev build: include epoch and commit for troubleshooting
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

// Loaded by PersistentPreRunE for every command.
var (
	settings *config.Settings
	logger   *logrus.Entry
)

var (
	debugMode   bool
	logLevel    string
	rootMonitor bool
	rootReport  bool
)

var rootCmd = &cobra.Command{
	Use:   "guestshare",
	Short: "Set up an anonymous Samba share",
	Long: `Installs and configures Samba to export one directory as an anonymous,
guest-writable share, then checks that clients can reach it.

Running guestshare without a subcommand is the same as 'guestshare setup'.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if cmd.Name() == "debug" {
			debugMode = true
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		settings = loaded

		level := settings.Logging
		if logLevel != "" {
			level = logLevel
		}
		if _, err := config.ParseLevel(level); err != nil {
			return err
		}
		logger = config.ConfigureLogging(level, debugMode)
		return nil
	},
	RunE: runRoot,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("guestshare version {{.Version}}\n")

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose Samba logging and diagnostics")
	rootCmd.PersistentFlags().StringVar(&logLevel, "logging", "", "Log level for this run: trace, debug, info, warn, none")
	rootCmd.Flags().BoolVar(&rootMonitor, "monitor", false, "Start a log monitoring session (same as 'guestshare monitor')")
	rootCmd.Flags().BoolVar(&rootReport, "report", false, "Generate a debug report only (same as 'guestshare report')")
	addSetupFlags(rootCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	switch {
	case rootReport:
		return runReport(cmd, args)
	case rootMonitor:
		return runMonitor(cmd, args)
	case debugMode:
		return runDebug(cmd, args)
	default:
		return runSetup(cmd, args)
	}
}

// newSession builds a session on the real host, talking to the command's
// input and output.
func newSession(cmd *cobra.Command) *setup.Session {
	con := prompt.StdConsole()
	if cmd.OutOrStdout() != os.Stdout || cmd.InOrStdin() != os.Stdin {
		con = prompt.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), false)
	}
	return setup.NewSession(settings, host.Default(logger), con, debugMode)
}

// ExecuteContext runs the root command. Cancelling ctx aborts the run
// between steps and stops any log monitor.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
