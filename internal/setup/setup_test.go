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
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestshare/internal/common"
	"guestshare/internal/config"
	"guestshare/internal/host"
	"guestshare/internal/prompt"
	"guestshare/internal/samba"
	"guestshare/internal/testutil"
	"guestshare/internal/util"
)

var (
	eth0   = host.Interface{Name: "eth0", IP: "192.168.1.10", CIDR: "192.168.1.10/24"}
	virbr0 = host.Interface{Name: "virbr0", IP: "192.168.122.1", CIDR: "192.168.122.1/24"}
)

type fakeLister struct {
	shares []string
	err    error
}

func (l fakeLister) ListShares(context.Context, string) ([]string, error) {
	return l.shares, l.err
}

type fixture struct {
	sys *testutil.FakeSystem
	run *testutil.FakeRunner
	out *bytes.Buffer
	s   *Session
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	settings := config.Defaults()
	settings.SharePath = "/srv/share"
	settings.ShareName = "shared"
	settings.SambaConfig = "/etc/samba/smb.conf"
	settings.BackupConfig = "/etc/samba/smb.conf.backup"
	settings.ReportDir = "/var/tmp/reports"
	settings.StateDir = t.TempDir()
	settings.PromptTimeout = 5
	return settings
}

// newFixture builds a session over fakes. input is what the operator types.
func newFixture(t *testing.T, input string) *fixture {
	t.Helper()
	sys := testutil.NewFakeSystem()
	sys.Ifaces = []host.Interface{eth0, virbr0}
	run := testutil.NewFakeRunner()
	out := &bytes.Buffer{}

	con := prompt.NewConsole(strings.NewReader(input), out, false)
	s := NewSession(testSettings(t), testutil.NewHost(sys, run), con, false)
	s.ServicePoll = util.PollConfig{Timeout: 50 * time.Millisecond, Interval: 5 * time.Millisecond}
	s.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	s.Listers = []samba.NamedLister{{Name: "fake", Lister: fakeLister{shares: []string{"IPC$", "shared"}}}}
	return &fixture{sys: sys, run: run, out: out, s: s}
}

// healthy scripts a Red Hat host where every step succeeds.
func (f *fixture) healthy() *fixture {
	f.sys.AddFile("/etc/redhat-release", "Fedora release 40")
	f.sys.AddFile("/etc/samba/smb.conf", "[global]\n    workgroup = SAMBA\n")
	f.run.Have("smbd").
		OK("id nobody", "uid=65534(nobody)").
		OK("getent group nobody", "nobody:x:65534:").
		OK("chown -R nobody:nobody /srv/share", "").
		OK("getenforce", "Disabled\n").
		OK("testparm -s", "[global]\n").
		OK("systemctl list-unit-files smb.service", "smb.service enabled\n").
		OK("systemctl enable smb", "").
		OK("systemctl start smb", "").
		OK("systemctl enable nmb", "").
		OK("systemctl start nmb", "").
		OK("systemctl is-active smb", "active\n").
		Fail("systemctl is-active firewalld", 3)
	return f
}

func TestRun(t *testing.T) {
	t.Run("complete setup", func(t *testing.T) {
		f := newFixture(t, "1\n0\n").healthy()

		err := f.s.Run(context.Background())
		require.NoError(t, err)

		conf, ok := f.sys.File("/etc/samba/smb.conf")
		require.True(t, ok)
		assert.Contains(t, conf, "interfaces = eth0")
		assert.Contains(t, conf, "min protocol = NT1")
		assert.Contains(t, conf, "force group = nobody")
		assert.Contains(t, conf, "[shared]")
		backup, ok := f.sys.File("/etc/samba/smb.conf.backup")
		require.True(t, ok)
		assert.Contains(t, backup, "workgroup = SAMBA")

		assert.True(t, f.sys.HasDir("/srv/share"))
		assert.Equal(t, host.ShareDirMode, f.sys.Mode("/srv/share"))
		assert.Equal(t, eth0, f.s.Env.Bind)
		assert.Equal(t, host.Services{Primary: "smb", Secondary: "nmb"}, f.s.Env.Services)

		out := f.out.String()
		assert.Contains(t, out, "Selected: Bind to eth0 (192.168.1.10)")
		assert.Contains(t, out, "Selected: SMBv1")
		assert.Contains(t, out, "SMB SERVER SETUP COMPLETE!")
		assert.Contains(t, out, `\\192.168.1.10\shared`)
		assert.Contains(t, out, "Firewall may be blocking SMB traffic")
		assert.Equal(t, 1, f.run.Called("systemctl list-unit-files smb.service"))
	})

	t.Run("requires root", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.EUID = 1000

		err := f.s.Run(context.Background())
		assert.ErrorIs(t, err, common.ErrNotRoot)
		assert.Contains(t, f.out.String(), "requires root privileges")
		assert.Empty(t, f.run.Calls())
	})

	t.Run("no interfaces", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.Ifaces = nil

		err := f.s.Run(context.Background())
		assert.ErrorIs(t, err, common.ErrNoInterfaces)
		assert.True(t, f.sys.HasDir("/srv/share"))
	})

	t.Run("share directory cannot be created", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.MkdirErr = errors.New("read-only file system")

		err := f.s.Run(context.Background())
		assert.ErrorIs(t, err, common.ErrShareDir)
	})

	t.Run("config write failure", func(t *testing.T) {
		f := newFixture(t, "").healthy()
		f.s.Settings.PromptTimeout = 0
		f.sys.WriteErrs["/etc/samba/smb.conf"] = errors.New("permission denied")

		err := f.s.Run(context.Background())
		assert.ErrorIs(t, err, common.ErrConfigWrite)
	})

	t.Run("another run holds the lock", func(t *testing.T) {
		f := newFixture(t, "")
		held := flock.New(f.s.Settings.LockPath())
		locked, err := held.TryLock()
		require.NoError(t, err)
		require.True(t, locked)
		defer held.Unlock()

		err = f.s.Run(context.Background())
		assert.ErrorIs(t, err, common.ErrSetupLocked)
	})
}

func TestSelectInterface(t *testing.T) {
	t.Run("operator choice", func(t *testing.T) {
		f := newFixture(t, "2\n")

		require.NoError(t, f.s.SelectInterface(context.Background()))
		assert.Equal(t, virbr0, f.s.Env.Bind)
		assert.Contains(t, f.out.String(), "[1] Bind to eth0 (192.168.1.10)")
		assert.Contains(t, f.out.String(), "Samba will bind to: virbr0 (192.168.122.1)")
	})

	t.Run("timeout selects the first interface", func(t *testing.T) {
		f := newFixture(t, "")
		f.s.Settings.PromptTimeout = 0

		require.NoError(t, f.s.SelectInterface(context.Background()))
		assert.Equal(t, eth0, f.s.Env.Bind)
		assert.Contains(t, f.out.String(), "Timeout reached, auto-selected default: Bind to eth0")
	})

	t.Run("bind defaults without a selection", func(t *testing.T) {
		f := newFixture(t, "")

		bind, err := f.s.BindInterface(context.Background())
		require.NoError(t, err)
		assert.Equal(t, eth0, bind)
	})
}

func TestSelectProtocol(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		output string
	}{
		{"smb3 only", "2\n", "SMB3", "Selected: SMBv3 Only"},
		{"invalid input", "9\n", "NT1", `Invalid choice "9"`},
		{"end of input", "", "NT1", "Selection interrupted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.input)

			proto := f.s.SelectProtocol(context.Background())
			assert.Equal(t, tt.want, proto.Min)
			assert.Equal(t, proto, f.s.Protocol())
			assert.Contains(t, f.out.String(), tt.output)
		})
	}
}

func TestInstallSamba(t *testing.T) {
	t.Run("already installed", func(t *testing.T) {
		f := newFixture(t, "")
		f.run.Have("smbd")

		require.NoError(t, f.s.InstallSamba(context.Background()))
		assert.Empty(t, f.run.Calls())
	})

	t.Run("dnf updates available", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddFile("/etc/redhat-release", "")
		f.run.Fail("dnf check-update", 100).OK("dnf install -y samba", "")

		require.NoError(t, f.s.InstallSamba(context.Background()))
		assert.Contains(t, f.out.String(), "Samba installed successfully")
	})

	t.Run("dnf check failure is a warning", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddFile("/etc/redhat-release", "")
		f.run.Fail("dnf check-update", 1).OK("dnf install -y samba", "")

		require.NoError(t, f.s.InstallSamba(context.Background()))
		assert.Contains(t, f.out.String(), "Update check returned code 1, continuing...")
	})

	t.Run("install failure is fatal", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddFile("/etc/debian_version", "12.5")
		f.run.OK("apt update", "").Fail("apt install -y samba", 100)

		err := f.s.InstallSamba(context.Background())
		assert.ErrorIs(t, err, common.ErrInstallFailed)
		assert.Contains(t, f.out.String(), "Try manually: sudo apt install -y samba")
	})

	t.Run("apt update failure is fatal", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddFile("/etc/debian_version", "12.5")
		f.run.Fail("apt update", 1)

		err := f.s.InstallSamba(context.Background())
		assert.ErrorIs(t, err, common.ErrInstallFailed)
		assert.Zero(t, f.run.Called("apt install -y samba"))
	})
}

func TestBackupConfig(t *testing.T) {
	f := newFixture(t, "")
	f.sys.AddFile("/etc/samba/smb.conf", "original")

	require.NoError(t, f.s.BackupConfig(context.Background()))
	f.sys.AddFile("/etc/samba/smb.conf", "modified")
	require.NoError(t, f.s.BackupConfig(context.Background()))

	backup, _ := f.sys.File("/etc/samba/smb.conf.backup")
	assert.Equal(t, "original", backup)
	assert.Contains(t, f.out.String(), "Backup already exists")
}

func TestSetPermissions(t *testing.T) {
	t.Run("ownership fails", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddDir("/srv/share")
		f.run.OK("id nobody", "").OK("getent group nobody", "").Fail("chown -R nobody:nobody /srv/share", 1)

		f.s.SetPermissions(context.Background())
		assert.Equal(t, host.WorldWritableMode, f.sys.Mode("/srv/share"))
		assert.Contains(t, f.out.String(), "Directory is world-writable")
	})

	t.Run("fallback fails too", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddDir("/srv/share")
		f.sys.ChmodErrs[host.ShareDirMode] = errors.New("operation not permitted")
		f.sys.ChmodErrs[host.WorldWritableMode] = errors.New("operation not permitted")

		f.s.SetPermissions(context.Background())
		assert.Contains(t, f.out.String(), "Try: sudo chmod 755 /srv/share")
	})
}

func TestConfigureFirewall(t *testing.T) {
	t.Run("ufw", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddFile("/etc/debian_version", "")
		f.run.Have("ufw").OK("ufw allow samba", "")

		assert.True(t, f.s.ConfigureFirewall(context.Background()))
		assert.Equal(t, host.UFW, f.s.Env.Firewall.Manager)
		assert.Zero(t, f.run.Called("systemctl is-active firewalld"))
	})

	t.Run("nothing detected", func(t *testing.T) {
		f := newFixture(t, "")

		assert.False(t, f.s.ConfigureFirewall(context.Background()))
		assert.Contains(t, f.out.String(), "manually allow ports 445, 139, 137, 138")
		assert.NotContains(t, f.out.String(), "Failed to configure")
	})
}

func TestConfigureSELinux(t *testing.T) {
	t.Run("labels home share", func(t *testing.T) {
		f := newFixture(t, "")
		f.s.Settings.SharePath = "/home/alex/share"
		f.run.OK("getenforce", "Enforcing\n").
			OK("semanage fcontext -a -t samba_share_t /home/alex/share(/.*)?", "").
			OK("restorecon -R /home/alex/share", "").
			OK("setsebool -P samba_enable_home_dirs on", "")

		assert.True(t, f.s.ConfigureSELinux(context.Background()))
		assert.Contains(t, f.out.String(), "SELinux configured for home directory access")
	})

	t.Run("labeling fails", func(t *testing.T) {
		f := newFixture(t, "")
		f.run.OK("getenforce", "Permissive\n").
			Fail("semanage fcontext -a -t samba_share_t /srv/share(/.*)?", 1)

		assert.False(t, f.s.ConfigureSELinux(context.Background()))
		assert.Contains(t, f.out.String(), "manually set SELinux contexts")
	})

	t.Run("second pass keeps the label", func(t *testing.T) {
		f := newFixture(t, "")
		f.run.OK("getenforce", "Enforcing\n").
			On("semanage fcontext -a -t samba_share_t /srv/share(/.*)?",
				testutil.Response{},
				testutil.Response{Exit: 1, Stderr: "already defined"}).
			OK("semanage fcontext -m -t samba_share_t /srv/share(/.*)?", "").
			OK("restorecon -R /srv/share", "")

		assert.True(t, f.s.ConfigureSELinux(context.Background()))
		assert.True(t, f.s.ConfigureSELinux(context.Background()))
		assert.Equal(t, 1, f.run.Called("semanage fcontext -m -t samba_share_t /srv/share(/.*)?"))
		assert.NotContains(t, f.out.String(), "manually set SELinux contexts")
	})

	t.Run("not available", func(t *testing.T) {
		f := newFixture(t, "")

		assert.True(t, f.s.ConfigureSELinux(context.Background()))
	})
}

func TestStartServicesReportsManualCommands(t *testing.T) {
	f := newFixture(t, "")
	f.run.Fail("systemctl is-active smbd", 3)

	rep := f.s.StartServices(context.Background())
	assert.ElementsMatch(t, []string{"smbd", "nmbd"}, rep.Failed)
	out := f.out.String()
	assert.Contains(t, out, "No services were started successfully")
	assert.Contains(t, out, "sudo systemctl start nmbd")
}

func TestWriteConfigUsesCIDRForSyntheticInterfaces(t *testing.T) {
	f := newFixture(t, "")
	f.sys.Ifaces = nil
	f.run.OK("hostname -I", "10.0.0.5 fe80::1\n")

	require.NoError(t, f.s.WriteConfig(context.Background()))
	conf, _ := f.sys.File("/etc/samba/smb.conf")
	assert.Contains(t, conf, "interfaces = 10.0.0.5/24")
	assert.Contains(t, conf, "guest account = root")
}

func TestLockRelease(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.s.Lock())
	f.s.Unlock()

	other := flock.New(filepath.Join(f.s.Settings.StateDir, "setup.lock"))
	locked, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	_ = other.Unlock()
}
