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

	"guestshare/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change persistent settings",
	Long: `Show or change the settings used when no flag overrides them.

Settings are stored in /etc/guestshare/settings.yaml (GUESTSHARE_CONFIG_DIR
overrides the directory).

Examples:
  # Show current configuration
  guestshare config

  # Share another directory by default
  sudo guestshare config --share-path /data/shared --share-name data

  # Enable debug logging
  sudo guestshare config --logging debug

  # Wait 10 seconds at each menu
  sudo guestshare config --timeout 10`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var (
	configSharePath       string
	configShareName       string
	configLogLevel        string
	configTimeout         int
	configMonitorDuration time.Duration
)

func init() {
	configCmd.Flags().StringVar(&configSharePath, "share-path", "", "Directory to share")
	configCmd.Flags().StringVar(&configShareName, "share-name", "", "Share name")
	configCmd.Flags().StringVar(&configLogLevel, "logging", "", "Log level: trace, debug, info, warn, none")
	configCmd.Flags().IntVar(&configTimeout, "timeout", 0, "Menu timeout in seconds; negative selects at once")
	configCmd.Flags().DurationVar(&configMonitorDuration, "monitor-duration", 0, "Default log monitor duration")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	flags := cmd.Flags()
	changed := false
	for _, name := range []string{"share-path", "share-name", "logging", "timeout", "monitor-duration"} {
		changed = changed || flags.Changed(name)
	}
	if !changed {
		fmt.Fprintln(out, "Current configuration:")
		printSettings(cmd, settings)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To change settings:")
		fmt.Fprintln(out, "  guestshare config --share-path <dir> --share-name <name>")
		fmt.Fprintln(out, "  guestshare config --logging <level>")
		return nil
	}

	if flags.Changed("share-path") {
		settings.SharePath = configSharePath
	}
	if flags.Changed("share-name") {
		settings.ShareName = configShareName
	}
	if flags.Changed("logging") {
		level := configLogLevel
		if level == "off" {
			level = "none"
		}
		settings.Logging = level
	}
	if flags.Changed("timeout") {
		settings.PromptTimeout = configTimeout
	}
	if flags.Changed("monitor-duration") {
		if configMonitorDuration < time.Second {
			return fmt.Errorf("invalid --monitor-duration %s: must be at least 1s", configMonitorDuration)
		}
		settings.MonitorDuration = int(configMonitorDuration / time.Second)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if err := config.InitConfigDir(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := config.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Fprintf(out, "Settings saved to %s\n", config.SettingsPath())
	printSettings(cmd, settings)
	return nil
}

func printSettings(cmd *cobra.Command, s *config.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Share path: %s\n", s.SharePath)
	fmt.Fprintf(out, "  Share name: %s\n", s.ShareName)
	fmt.Fprintf(out, "  Samba config: %s (backup %s)\n", s.SambaConfig, s.BackupConfig)
	fmt.Fprintf(out, "  Prompt timeout: %ds\n", s.PromptTimeout)
	fmt.Fprintf(out, "  Monitor duration: %s\n", s.MonitorDurationValue())
	fmt.Fprintf(out, "  Report directory: %s\n", s.ReportDir)
	fmt.Fprintf(out, "  Log level: %s\n", s.Logging)
}
