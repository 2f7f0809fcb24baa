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
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestshare/internal/samba"
	"guestshare/internal/testutil"
)

func TestTroubleshoot(t *testing.T) {
	t.Run("restarts a stopped service and reports issues", func(t *testing.T) {
		f := newFixture(t, "")
		f.run.Fail("systemctl is-active smbd", 3).OK("systemctl restart smbd", "")

		assert.False(t, f.s.Troubleshoot(context.Background()))
		assert.Equal(t, 1, f.run.Called("systemctl restart smbd"))
		out := f.out.String()
		assert.Contains(t, out, "Restarted smbd service")
		assert.Contains(t, out, "Firewall may be blocking SMB traffic")
		assert.Contains(t, out, "SMB connectivity verified")
		assert.Contains(t, out, `net use * \\<SERVER_IP>\shared`)
	})

	t.Run("all checks pass", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddFile("/etc/debian_version", "12.5")
		f.run.Have("ufw").
			OK("ufw allow samba", "").
			OK("systemctl is-active smbd", "active\n")

		assert.True(t, f.s.Troubleshoot(context.Background()))
		assert.Contains(t, f.out.String(), "All connectivity checks passed!")
		assert.Zero(t, f.run.Called("systemctl restart smbd"))
	})
}

func TestVerifyConnectivity(t *testing.T) {
	refused := errors.New("connection refused")

	t.Run("falls through to the next lister", func(t *testing.T) {
		f := newFixture(t, "")
		f.s.Listers = []samba.NamedLister{
			{Name: "smb2", Lister: fakeLister{err: refused}},
			{Name: "smbclient", Lister: fakeLister{shares: []string{"SHARED"}}},
		}

		assert.True(t, f.s.VerifyConnectivity(context.Background()))
		assert.Contains(t, f.out.String(), "shared share is visible (via smbclient)")
	})

	t.Run("share missing", func(t *testing.T) {
		f := newFixture(t, "")
		f.s.Listers = []samba.NamedLister{{Name: "smb2", Lister: fakeLister{shares: []string{"IPC$"}}}}

		assert.False(t, f.s.VerifyConnectivity(context.Background()))
		assert.Contains(t, f.out.String(), "SMB server accessible but shared share not found")
	})

	t.Run("server unreachable", func(t *testing.T) {
		f := newFixture(t, "")
		f.s.Listers = []samba.NamedLister{{Name: "smb2", Lister: fakeLister{err: refused}}}

		assert.False(t, f.s.VerifyConnectivity(context.Background()))
		assert.Contains(t, f.out.String(), "smb2: connection refused")
	})

	t.Run("default smbclient lister installs the client", func(t *testing.T) {
		f := newFixture(t, "")
		f.s.Listers = nil
		f.run.OK("apt install -y smbclient", "").
			OK("smbclient -L 192.168.1.10 -N", "\tSharename       Type      Comment\n\t---------       ----      -------\n\tshared          Disk      Shared\n\tIPC$            IPC       IPC Service\n")

		listers := f.s.listers(context.Background())
		require.Len(t, listers, 2)
		assert.Equal(t, "smb2", listers[0].Name)

		shares, err := listers[1].Lister.ListShares(context.Background(), "192.168.1.10")
		require.NoError(t, err)
		assert.Equal(t, []string{"shared", "IPC$"}, shares)
		assert.Contains(t, f.out.String(), "Installing smbclient for testing...")
	})
}

func TestFirewallStatus(t *testing.T) {
	t.Run("firewalld active", func(t *testing.T) {
		f := newFixture(t, "")
		f.run.OK("systemctl is-active firewalld", "active\n").
			OK("firewall-cmd --list-services", "ssh samba\n").
			Fail("firewall-cmd --zone=libvirt --list-services", 112).
			Fail("firewall-cmd --zone=libvirt --list-ports", 112)

		assert.True(t, f.s.FirewallStatus(context.Background()))
		out := f.out.String()
		assert.Contains(t, out, "Samba service enabled in default zone")
		assert.Contains(t, out, "Libvirt zone not found")
		assert.NotContains(t, out, "SMB ports")
	})

	t.Run("libvirt zone without samba", func(t *testing.T) {
		f := newFixture(t, "")
		f.run.OK("systemctl is-active firewalld", "active\n").
			OK("firewall-cmd --list-services", "ssh\n").
			OK("firewall-cmd --zone=libvirt --list-services", "dhcp dns\n").
			OK("firewall-cmd --zone=libvirt --list-ports", "445/tcp\n")

		assert.True(t, f.s.FirewallStatus(context.Background()))
		out := f.out.String()
		assert.Contains(t, out, "Samba service NOT enabled in default zone")
		assert.Contains(t, out, "sudo firewall-cmd --zone=libvirt --add-service=samba --permanent")
		assert.Contains(t, out, "SMB ports may not be explicitly enabled")
	})

	t.Run("inactive", func(t *testing.T) {
		f := newFixture(t, "")

		assert.False(t, f.s.FirewallStatus(context.Background()))
		assert.Contains(t, f.out.String(), "Firewalld not active or not found")
	})
}

func TestEnableVerboseLogging(t *testing.T) {
	f := newFixture(t, "")
	f.sys.AddFile("/etc/samba/smb.conf", "[global]\n    log level = 1\n")
	f.run.OK("systemctl restart smbd", "").OK("systemctl restart nmbd", "")

	require.NoError(t, f.s.EnableVerboseLogging(context.Background()))
	conf, _ := f.sys.File("/etc/samba/smb.conf")
	assert.Contains(t, conf, "log level = 3")
	assert.Contains(t, conf, "debug pid = yes")
	assert.Contains(t, f.out.String(), "Samba services restarted with verbose logging")

	require.NoError(t, f.s.EnableVerboseLogging(context.Background()))
	assert.Contains(t, f.out.String(), "Verbose logging already enabled")
	assert.Equal(t, 2, f.run.Called("systemctl restart nmbd"))
}

func TestEnableVerboseLoggingWithoutConfig(t *testing.T) {
	f := newFixture(t, "")

	assert.Error(t, f.s.EnableVerboseLogging(context.Background()))
	assert.Contains(t, f.out.String(), "Failed to enable verbose logging")
	assert.Zero(t, f.run.Called("systemctl restart smbd"))
}

const ssOutput = `State  Recv-Q Send-Q Local Address:Port  Peer Address:Port Process
LISTEN 0      50     0.0.0.0:445         0.0.0.0:*     users:(("smbd",pid=812,fd=31))
LISTEN 0      128    127.0.0.1:631       0.0.0.0:*     users:(("cupsd",pid=700,fd=7))
`

func TestNetworkDiagnostics(t *testing.T) {
	f := newFixture(t, "")
	f.run.OK("ping -c 1 -W 2 192.168.1.10", "").
		OK("ss -tlnp", ssOutput).
		OK("ip route show", "default via 192.168.1.1 dev eth0\n192.168.1.0/24 dev eth0 proto kernel\n")

	assert.True(t, f.s.NetworkDiagnostics(context.Background()))
	out := f.out.String()
	assert.Contains(t, out, "eth0: 192.168.1.10 (192.168.1.10/24)")
	assert.Contains(t, out, "Binding IP 192.168.1.10 is reachable")
	assert.Contains(t, out, "Port 445: LISTENING")
	assert.Contains(t, out, "Port 139: NOT LISTENING")
	assert.Contains(t, out, "default via 192.168.1.1 dev eth0")
}

func TestNetworkDiagnosticsWithoutTools(t *testing.T) {
	f := newFixture(t, "")

	assert.True(t, f.s.NetworkDiagnostics(context.Background()))
	out := f.out.String()
	assert.Contains(t, out, "may not be reachable")
	assert.Contains(t, out, "Port 445: Cannot check")
	assert.Contains(t, out, "Cannot retrieve routing information")
}

func TestGenerateReport(t *testing.T) {
	t.Run("writes the report", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddFile(SmbdLog, "")
		f.run.OK("ss -tlnp", ssOutput).
			OK("ip addr show", "2: eth0: <UP>\n").
			OK("systemctl status smbd", "Active: active (running)\n").
			OK("tail -n 50 "+SmbdLog, "smbd version 4.19 started\n")

		path, err := f.s.GenerateReport(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "/var/tmp/reports/samba_debug_report_1714564800.txt", path)

		report, ok := f.sys.File(path)
		require.True(t, ok)
		assert.Contains(t, report, "SAMBA DEBUG REPORT")
		assert.Regexp(t, `Report ID: [0-9a-f-]{36}`, report)
		assert.Contains(t, report, "System: Linux testhost 6.1.0")
		assert.Contains(t, report, "Configuration test failed")
		assert.Contains(t, report, "smbd status:\nActive: active (running)")
		assert.Contains(t, report, "0.0.0.0:445")
		assert.NotContains(t, report, "cupsd")
		assert.Contains(t, report, "Cannot get firewall status")
		assert.Contains(t, report, "smbd version 4.19 started")
		assert.NotContains(t, report, NmbdLog)
		assert.Contains(t, f.out.String(), "Debug report saved to: "+path)
	})

	t.Run("uname fallback", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.UnameErr = errors.New("unsupported")
		f.run.OK("uname -a", "Linux fallback 5.15\n")

		path, err := f.s.GenerateReport(context.Background())
		require.NoError(t, err)
		report, _ := f.sys.File(path)
		assert.Contains(t, report, "System: Linux fallback 5.15\n")
	})

	t.Run("write failure", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.WriteErrs[f.s.ReportPath()] = errors.New("no space left on device")

		_, err := f.s.GenerateReport(context.Background())
		assert.Error(t, err)
		assert.Contains(t, f.out.String(), "Failed to write debug report")
	})

	t.Run("report directory failure", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.MkdirErr = errors.New("read-only file system")

		_, err := f.s.GenerateReport(context.Background())
		assert.ErrorContains(t, err, "failed to create report directory")
		assert.Contains(t, f.out.String(), "Failed to create report directory /var/tmp/reports")
		assert.NotContains(t, f.out.String(), "Debug report saved")
	})
}

func TestMonitorLogs(t *testing.T) {
	t.Run("prints timestamped lines until the duration elapses", func(t *testing.T) {
		f := newFixture(t, "")
		f.run.OnStream("tail -f "+SmbdLog, testutil.Stream{Lines: []string{"connect to service shared"}, Hold: true})

		f.s.MonitorLogs(context.Background(), 20*time.Millisecond)
		out := f.out.String()
		assert.Contains(t, out, "[12:00:00] connect to service shared")
		assert.Contains(t, out, "Log monitoring completed")
	})

	t.Run("falls back to an alternative log", func(t *testing.T) {
		f := newFixture(t, "")
		f.sys.AddFile("/var/log/samba/smbd.log", "")
		f.run.OK("tail -n 20 /var/log/samba/smbd.log", "last line\n")

		f.s.MonitorLogs(context.Background(), time.Minute)
		out := f.out.String()
		assert.Contains(t, out, "Trying alternative locations")
		assert.Contains(t, out, "Found log at: /var/log/samba/smbd.log")
		assert.Contains(t, out, "last line")
		assert.Zero(t, f.run.Called("tail -n 20 /var/log/samba/log.smb"))
	})

	t.Run("no log at all", func(t *testing.T) {
		f := newFixture(t, "")

		f.s.MonitorLogs(context.Background(), time.Minute)
		assert.Contains(t, f.out.String(), "No Samba log files found")
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		g := NewWithT(t)
		f := newFixture(t, "")
		f.run.OnStream("tail -f "+SmbdLog, testutil.Stream{Hold: true})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			f.s.MonitorLogs(ctx, time.Hour)
		}()

		g.Eventually(func() int {
			return f.run.Called("tail -f " + SmbdLog)
		}).Should(Equal(1))
		cancel()
		g.Eventually(done).WithTimeout(2 * time.Second).Should(BeClosed())
		assert.Contains(t, f.out.String(), "Log monitoring stopped by user")
	})
}

func TestDebugSession(t *testing.T) {
	t.Run("menu loop", func(t *testing.T) {
		f := newFixture(t, "2\n9\n5\n")

		f.s.DebugSession(context.Background())
		out := f.out.String()
		assert.Contains(t, out, "Failed to enable verbose logging")
		assert.Contains(t, out, "Network Connectivity Diagnostics")
		assert.Contains(t, out, "Invalid choice. Please select 1-5.")
		assert.Contains(t, out, "Exiting debug session")
	})

	t.Run("monitor with default duration", func(t *testing.T) {
		f := newFixture(t, "1\nsoon\n5\n")

		f.s.DebugSession(context.Background())
		assert.Contains(t, f.out.String(), "Monitoring Samba logs for 60 seconds")
	})

	t.Run("end of input", func(t *testing.T) {
		f := newFixture(t, "")

		f.s.DebugSession(context.Background())
		assert.Contains(t, f.out.String(), "Debug session ended")
	})
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", DebugMonitorDuration},
		{"30", 30 * time.Second},
		{" 120 ", 2 * time.Minute},
		{"-5", DebugMonitorDuration},
		{"ten", DebugMonitorDuration},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDuration(tt.in, DebugMonitorDuration), tt.in)
	}
}
