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

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Install and configure the anonymous share",
	Long: `Installs Samba if needed, writes smb.conf for an anonymous share bound to one
interface, opens the firewall, labels the share for SELinux and starts the
services. Interactive menus auto-select their default after the prompt
timeout.

Examples:
  # Share /srv/shared as \\<server>\shared
  sudo guestshare setup

  # Share a different directory under another name
  sudo guestshare setup --share-path /data/vm --share-name vmdata

  # Accept every default without waiting
  sudo guestshare setup --timeout -1`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

var (
	sharePath     string
	shareName     string
	promptTimeout int
)

// addSetupFlags registers the setup overrides on cmd. The root command
// carries them too since it runs setup by default.
func addSetupFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sharePath, "share-path", "", "Directory to share (default from settings)")
	cmd.Flags().StringVar(&shareName, "share-name", "", "Share name clients connect to (default from settings)")
	cmd.Flags().IntVar(&promptTimeout, "timeout", 0, "Seconds each menu waits before auto-selecting; negative selects at once")
}

func init() {
	addSetupFlags(setupCmd)
	rootCmd.AddCommand(setupCmd)
}

// applySetupFlags copies explicitly set flags onto the loaded settings.
func applySetupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("share-path") {
		settings.SharePath = sharePath
	}
	if flags.Changed("share-name") {
		settings.ShareName = shareName
	}
	if flags.Changed("timeout") {
		settings.PromptTimeout = promptTimeout
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func runSetup(cmd *cobra.Command, args []string) error {
	if err := applySetupFlags(cmd); err != nil {
		return err
	}
	return newSession(cmd).Run(cmd.Context())
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Run setup with verbose logging, then an interactive debug session",
	Long: `Runs setup in debug mode: Samba logs at level 3, network diagnostics are
printed and an interactive menu offers log monitoring, a connectivity check
and a debug report.`,
	Args: cobra.NoArgs,
	RunE: runDebug,
}

func init() {
	addSetupFlags(debugCmd)
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	if err := applySetupFlags(cmd); err != nil {
		return err
	}
	s := newSession(cmd)
	p := s.Printer()
	p.Line("🐛 DEBUG MODE ENABLED")
	p.Line("This will enable verbose logging and provide detailed diagnostics")
	return s.Run(cmd.Context())
}
