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

package host_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestshare/internal/host"
	"guestshare/internal/testutil"
)

const ipAddrOutput = `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 qdisc noqueue state UNKNOWN group default qlen 1000
    inet 127.0.0.1/8 scope host lo
       valid_lft forever preferred_lft forever
2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc fq_codel state UP group default qlen 1000
    inet 192.168.1.10/24 brd 192.168.1.255 scope global dynamic noprefixroute eth0
       valid_lft 86012sec preferred_lft 86012sec
3: virbr0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc noqueue state UP group default qlen 1000
    inet 192.168.122.1/24 brd 192.168.122.255 scope global virbr0
       valid_lft forever preferred_lft forever
7: veth1@if6: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc noqueue state UP group default
    inet 10.88.0.2/16 scope global veth1
       valid_lft forever preferred_lft forever
`

func TestParseIPAddr(t *testing.T) {
	ifaces := host.ParseIPAddr(ipAddrOutput)
	require.Len(t, ifaces, 3)
	assert.Equal(t, host.Interface{Name: "eth0", IP: "192.168.1.10", CIDR: "192.168.1.10/24"}, ifaces[0])
	assert.Equal(t, host.Interface{Name: "virbr0", IP: "192.168.122.1", CIDR: "192.168.122.1/24"}, ifaces[1])
	assert.Equal(t, "veth1", ifaces[2].Name)
	assert.Equal(t, "eth0 (192.168.1.10)", ifaces[0].String())
	assert.Equal(t, "eth0", ifaces[0].BindName())

	assert.Empty(t, host.ParseIPAddr(""))
	assert.Empty(t, host.ParseIPAddr("1: lo: <LOOPBACK>\n    inet 127.0.0.1/8 scope host lo\n"))
}

func TestParseHostnameI(t *testing.T) {
	ifaces := host.ParseHostnameI("192.168.1.10 127.0.1.1 172.17.0.1 fd00::1 \n")
	require.Len(t, ifaces, 2)
	assert.Equal(t, host.Interface{Name: "interface1", IP: "192.168.1.10", CIDR: "192.168.1.10/24", Synthetic: true}, ifaces[0])
	assert.Equal(t, host.Interface{Name: "interface3", IP: "172.17.0.1", CIDR: "172.17.0.1/24", Synthetic: true}, ifaces[1])
	assert.Equal(t, "172.17.0.1/24", ifaces[1].BindName())
}

func TestInterfaces(t *testing.T) {
	ctx := context.Background()

	t.Run("ip addr", func(t *testing.T) {
		run := testutil.NewFakeRunner().OK("ip -4 addr show", ipAddrOutput)
		h := testutil.NewHost(testutil.NewFakeSystem(), run)

		out := h.Interfaces(ctx)
		assert.Equal(t, "ip addr", out.Matched)
		assert.Len(t, out.Value, 3)
		assert.Zero(t, run.Called("hostname -I"))
	})

	t.Run("hostname fallback", func(t *testing.T) {
		run := testutil.NewFakeRunner().
			Fail("ip -4 addr show", 1).
			OK("hostname -I", "10.0.0.5\n")
		h := testutil.NewHost(testutil.NewFakeSystem(), run)

		out := h.Interfaces(ctx)
		assert.Equal(t, "hostname -I", out.Matched)
		assert.Equal(t, []host.Interface{{Name: "interface1", IP: "10.0.0.5", CIDR: "10.0.0.5/24", Synthetic: true}}, out.Value)
		require.Len(t, out.Misses, 1)
	})

	t.Run("ip with only loopback falls through", func(t *testing.T) {
		sys := testutil.NewFakeSystem()
		sys.Ifaces = []host.Interface{{Name: "enp3s0", IP: "172.16.0.9", CIDR: "172.16.0.9/20"}}
		run := testutil.NewFakeRunner().
			OK("ip -4 addr show", "1: lo: <LOOPBACK>\n    inet 127.0.0.1/8 scope host lo\n").
			OK("hostname -I", "127.0.1.1\n")
		h := testutil.NewHost(sys, run)

		out := h.Interfaces(ctx)
		assert.Equal(t, "net.Interfaces", out.Matched)
		assert.Equal(t, sys.Ifaces, out.Value)
	})

	t.Run("nothing found", func(t *testing.T) {
		sys := testutil.NewFakeSystem()
		sys.IfacesErr = errors.New("netlink unavailable")
		h := testutil.NewHost(sys, testutil.NewFakeRunner())

		out := h.Interfaces(ctx)
		assert.True(t, out.Fallback)
		assert.Empty(t, out.Value)
		assert.Len(t, out.Misses, 3)
	})
}
