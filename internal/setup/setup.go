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
	"fmt"
	"strings"

	"guestshare/internal/common"
	"guestshare/internal/host"
	"guestshare/internal/prompt"
	"guestshare/internal/samba"
	"guestshare/internal/util"
)

// Run performs the full setup. It returns a wrapped common sentinel when a
// precondition cannot be met; every other failure is reported and the run
// continues on a degraded path.
func (s *Session) Run(ctx context.Context) error {
	p := s.p
	p.Step("Starting SMB Server Setup...")
	if s.Debug {
		p.Line("🐛 Debug mode enabled - verbose logging will be activated")
	}
	p.Line("📁 Target directory: %s", s.Settings.SharePath)
	p.Line("🏷️  Share name: %s", s.Settings.ShareName)
	p.Blank()

	if err := s.RequireRoot(); err != nil {
		return err
	}
	if err := s.Lock(); err != nil {
		return err
	}
	defer s.Unlock()

	steps := []func(context.Context) error{
		s.EnsureShareDir,
		s.SelectInterface,
		func(ctx context.Context) error { s.SelectProtocol(ctx); return nil },
		s.InstallSamba,
		s.BackupConfig,
		s.WriteConfig,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrInterrupted, err)
		}
	}

	s.SetPermissions(ctx)
	s.ConfigureFirewall(ctx)
	s.ConfigureSELinux(ctx)
	s.TestConfiguration(ctx)
	s.StartServices(ctx)

	s.Troubleshoot(ctx)
	s.FirewallStatus(ctx)
	if s.Debug {
		s.EnableVerboseLogging(ctx)
	}
	s.ConnectionInfo(ctx)
	s.Reminders()
	if s.Debug {
		s.DebugHints()
		s.NetworkDiagnostics(ctx)
		s.DebugSession(ctx)
	}
	return nil
}

// RequireRoot fails unless the process runs as root.
func (s *Session) RequireRoot() error {
	if !s.Host.IsRoot() {
		s.p.Fail("This tool requires root privileges to configure Samba.")
		s.p.Line("Please run with: sudo guestshare setup")
		return common.ErrNotRoot
	}
	s.p.OK("Running with root privileges")
	return nil
}

// EnsureShareDir creates the share directory when it is missing.
func (s *Session) EnsureShareDir(context.Context) error {
	path := s.Settings.SharePath
	if _, err := s.Host.Sys.Stat(path); err == nil {
		s.p.OK("Share directory exists: %s", path)
		return nil
	}
	s.p.Line("📁 Creating share directory: %s", path)
	if err := s.Host.EnsureDir(path); err != nil {
		s.p.Fail("Failed to create directory: %v", err)
		return fmt.Errorf("%w: %w", common.ErrShareDir, err)
	}
	s.p.OK("Directory created: %s", path)
	return nil
}

// runChoice runs c with SIGINT scoped to the prompt and prints the outcome.
func runChoice[T any](ctx context.Context, s *Session, c *prompt.Choice[T]) prompt.Result[T] {
	ctx, stop := prompt.InterruptContext(ctx)
	defer stop()
	res := c.Run(ctx, s.Console)
	if res.Reason == prompt.Selected {
		s.p.OK("%s", res.Message)
	} else {
		s.p.Warn("%s", res.Message)
	}
	s.Log.WithField("reason", res.Reason).WithField("choice", res.Label).Debug("prompt resolved")
	return res
}

// SelectInterface asks which interface Samba binds to.
func (s *Session) SelectInterface(ctx context.Context) error {
	s.p.Section("🌐 Network Interface Detection", 50)
	ifaces := s.Interfaces(ctx)
	if len(ifaces) == 0 {
		s.p.Fail("No network interfaces detected. Cannot proceed with Samba setup.")
		s.p.Hint("Please ensure your network interfaces are properly configured.")
		return common.ErrNoInterfaces
	}

	opts := make([]prompt.Option[host.Interface], 0, len(ifaces))
	for _, iface := range ifaces {
		opts = append(opts, prompt.Option[host.Interface]{
			Label: fmt.Sprintf("Bind to %s (%s)", iface.Name, iface.IP),
			Value: iface,
		})
	}
	choice := &prompt.Choice[host.Interface]{
		Title:   "📡 Available network interfaces:",
		Options: prompt.Numbered(1, opts),
		Timeout: s.Settings.PromptTimeoutDuration(),
	}
	res := runChoice(ctx, s, choice)

	s.Env.Bind, s.known.bind = res.Value, true
	s.p.Line("🔗 Samba will bind to: %s", res.Value)
	s.p.Blank()
	return nil
}

// SelectProtocol asks for the allowed SMB dialect range.
func (s *Session) SelectProtocol(ctx context.Context) samba.Protocol {
	s.p.Section("📡 SMB Protocol Version Selection", 50)
	opts := make([]prompt.Option[samba.Protocol], 0, len(samba.Protocols))
	for _, proto := range samba.Protocols {
		opts = append(opts, prompt.Option[samba.Protocol]{
			Label:   proto.Name,
			Details: []string{proto.Summary, proto.Clients, proto.Security},
			Value:   proto,
		})
	}
	s.p.Hint("SMBv1 is recommended for maximum compatibility with older Windows systems.")
	choice := &prompt.Choice[samba.Protocol]{
		Options: prompt.Numbered(0, opts),
		Timeout: s.Settings.PromptTimeoutDuration(),
	}
	res := runChoice(ctx, s, choice)

	proto := res.Value
	s.Env.Protocol, s.known.protocol = proto, true
	s.p.Line("    Min Protocol: %s", proto.Min)
	s.p.Line("    Max Protocol: %s", proto.Max)
	s.p.Line("🔐 SMB Protocol Configuration: %s", proto)
	s.p.Blank()
	return proto
}

// InstallSamba installs the server package unless smbd is on PATH.
func (s *Session) InstallSamba(ctx context.Context) error {
	s.p.Line("🔍 Checking if Samba is installed...")
	if s.Host.SambaInstalled() {
		s.p.OK("Samba is already installed")
		return nil
	}

	prof := s.Profile(ctx)
	manual := util.CommandLine("sudo", prof.InstallCommand("samba")...)
	s.p.Line("📦 Installing Samba server using %s...", prof.Manager)
	if prof.UpdateTolerant {
		s.p.Line("🔄 Checking for updates with %s...", prof.Manager)
	} else {
		s.p.Line("🔄 Updating package list with %s...", prof.Manager)
	}
	if err := s.Host.UpdatePackages(ctx, prof); err != nil {
		if !prof.UpdateTolerant {
			s.p.Fail("Failed to install Samba with %s: %v", prof.Manager, err)
			s.p.Hint("Try manually: %s", manual)
			return fmt.Errorf("%w: %w", common.ErrInstallFailed, err)
		}
		s.p.Warn("Update check returned code %d, continuing...", util.ExitCode(err))
	}

	s.p.Line("📥 Installing Samba with %s...", prof.Manager)
	if err := s.Host.InstallPackages(ctx, prof, "samba"); err != nil {
		s.p.Fail("Failed to install Samba with %s: %v", prof.Manager, err)
		s.p.Hint("Try manually: %s", manual)
		return err
	}
	s.p.OK("Samba installed successfully")
	return nil
}

// BackupConfig keeps a copy of the distribution's smb.conf.
func (s *Session) BackupConfig(context.Context) error {
	cf := s.configFile()
	created, err := cf.Backup()
	if err != nil {
		s.p.Fail("Failed to backup config: %v", err)
		return fmt.Errorf("%w: backup: %w", common.ErrConfigWrite, err)
	}
	switch {
	case created:
		s.p.OK("Backup created: %s", cf.BackupPath)
	case cf.Exists():
		s.p.Info("Backup already exists: %s", cf.BackupPath)
	}
	return nil
}

// WriteConfig renders smb.conf for the resolved environment.
func (s *Session) WriteConfig(ctx context.Context) error {
	s.p.Line("⚙️  Creating Samba configuration...")
	bind, err := s.BindInterface(ctx)
	if err != nil {
		return err
	}
	params := samba.Params{
		ShareName:  s.Settings.ShareName,
		SharePath:  s.Settings.SharePath,
		Interface:  bind.BindName(),
		Protocol:   s.Protocol(),
		Identity:   s.Identity(ctx),
		LogLevel:   samba.DefaultLogLevel,
		BackupPath: s.Settings.BackupConfig,
	}
	content, err := samba.Render(params)
	if err != nil {
		s.p.Fail("Failed to create config: %v", err)
		return fmt.Errorf("%w: %w", common.ErrConfigWrite, err)
	}
	diff, err := s.configFile().Write(content)
	if err != nil {
		s.p.Fail("Failed to create config: %v", err)
		return err
	}
	if diff != "" {
		s.Log.Debugf("smb.conf changes:\n%s", diff)
	}
	s.p.OK("Samba configuration created: %s", s.Settings.SambaConfig)
	return nil
}

// SetPermissions hands the share to the unprivileged identity.
func (s *Session) SetPermissions(ctx context.Context) {
	path := s.Settings.SharePath
	s.p.Line("🔐 Setting directory permissions...")
	res, err := s.Host.SetSharePermissions(ctx, path, s.Identity(ctx))
	if res.Cause == nil && err == nil {
		s.p.OK("Permissions set for %s (owner: %s)", path, res.Owner)
		return
	}
	s.p.Fail("Failed to set permissions: %v", res.Cause)
	s.p.Step("Attempting alternative permission setup...")
	if err != nil {
		s.p.Fail("Failed alternative permission setup: %v", err)
		s.p.Hint("You may need to manually set permissions after setup completes")
		s.p.Hint("Try: sudo chmod 755 %s", path)
		return
	}
	s.p.OK("Set alternative permissions (%o) for %s", res.Mode, path)
	s.p.Warn("Note: Directory is world-writable. Consider security implications.")
}

// ConfigureFirewall opens the Samba ports. It reports whether a firewall
// manager accepted the rules.
func (s *Session) ConfigureFirewall(ctx context.Context) bool {
	s.p.Line("🔥 Configuring firewall for Samba...")
	prof := s.Profile(ctx)
	if prof.Family == host.FamilyDebian {
		s.p.Info("Debian-based system detected, skipping firewalld check")
	}
	out := s.Host.ConfigureFirewall(ctx, prof, s.Interfaces(ctx))
	for _, m := range out.Misses {
		if !errors.Is(m.Err, host.ErrNotDetected) {
			s.p.Warn("Failed to configure %s: %v", m.Name, m.Err)
		}
	}

	res := out.Value
	s.Env.Firewall = res
	if !res.Configured() {
		s.p.Info("No supported firewall detected or firewall configuration failed")
		s.p.Hint("If you have a firewall, manually allow ports 445, 139, 137, 138")
		return false
	}
	switch res.Manager {
	case host.Firewalld:
		for _, name := range res.LibvirtInterfaces {
			s.p.OK("Added Samba to libvirt zone for %s", name)
		}
		if res.Warnings != nil {
			s.p.Warn("Some libvirt zone rules failed: %v", res.Warnings)
		}
		s.p.OK("Firewall configured for Samba (including virtual networks)")
	case host.UFW:
		s.p.OK("UFW configured for Samba")
	case host.IPTables:
		s.p.OK("iptables configured for Samba")
		s.p.Warn("Note: iptables rules are not persistent. Consider saving them.")
	}
	return true
}

// ConfigureSELinux labels the share. It reports whether SELinux will let
// Samba serve it.
func (s *Session) ConfigureSELinux(ctx context.Context) bool {
	path := s.Settings.SharePath
	s.p.Line("🛡️  Configuring SELinux for Samba...")
	res := s.Host.ConfigureSELinux(ctx, path)
	switch {
	case res.Mode == "":
		s.p.Info("SELinux not available, skipping configuration")
	case res.Mode == host.SELinuxDisabled:
		s.p.Info("SELinux is disabled, skipping configuration")
	case res.Labeled:
		s.p.OK("SELinux context set for %s", path)
		if res.HomeDirs {
			s.p.OK("SELinux configured for home directory access")
		}
		if res.Err != nil {
			s.p.Warn("Failed to configure SELinux: %v", res.Err)
		}
	case res.Mode == host.SELinuxEnforcing, res.Mode == host.SELinuxPermissive:
		s.p.Warn("Failed to configure SELinux: %v", res.Err)
		s.p.Hint("You may need to manually set SELinux contexts")
	default:
		s.p.Warn("Unknown SELinux status: %s", res.Mode)
	}
	return res.OK()
}

// TestConfiguration runs testparm. Failures are reported only.
func (s *Session) TestConfiguration(ctx context.Context) bool {
	s.p.Line("🧪 Testing Samba configuration...")
	if err := samba.Validate(ctx, s.Host.Run); err != nil {
		s.p.Fail("Configuration test failed: %v", err)
		s.p.Line("Please check the configuration manually")
		return false
	}
	s.p.OK("Samba configuration is valid")
	return true
}

// StartServices enables and starts the Samba units.
func (s *Session) StartServices(ctx context.Context) host.ServiceReport {
	s.p.Line("🚀 Starting Samba services...")
	svcs := s.Services(ctx)
	rep := s.Host.StartServices(ctx, svcs, s.ServicePoll)

	if len(rep.Started) > 0 {
		s.p.OK("Successfully started services: %s", strings.Join(rep.Started, ", "))
	}
	for _, unit := range rep.Restarted {
		s.p.OK("Successfully restarted %s", unit)
	}
	for _, unit := range rep.Failed {
		s.p.Hint("Manual command needed: sudo systemctl start %s", unit)
	}
	if rep.PrimaryActive {
		s.p.OK("%s service is running", svcs.Primary)
	} else {
		s.p.Warn("%s service status: %s", svcs.Primary, rep.PrimaryState)
	}

	if len(rep.Started)+len(rep.Restarted) == 0 {
		s.p.Warn("No services were started successfully")
		s.p.Hint("You may need to start services manually after setup:")
		for _, unit := range svcs.Names() {
			s.p.Hint("  sudo systemctl start %s", unit)
		}
	} else {
		s.p.Line("🎉 Samba service setup completed")
	}
	return rep
}
