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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestshare/internal/host"
	"guestshare/internal/testutil"
)

const ssOutput = `State  Recv-Q Send-Q Local Address:Port  Peer Address:Port Process
LISTEN 0      50     192.168.1.10:445       0.0.0.0:*     users:(("smbd",pid=812,fd=32))
LISTEN 0      50     192.168.1.10:139       0.0.0.0:*     users:(("smbd",pid=812,fd=33))
LISTEN 0      50        127.0.0.1:445       0.0.0.0:*     users:(("smbd",pid=812,fd=30))
LISTEN 0      4096        0.0.0.0:22        0.0.0.0:*     users:(("sshd",pid=700,fd=3))
LISTEN 0      128         0.0.0.0:4450      0.0.0.0:*     users:(("other",pid=900,fd=3))
`

func TestListeningOn(t *testing.T) {
	lines := host.ListeningOn(ssOutput, "192.168.1.10", 445)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "192.168.1.10:445")

	assert.Len(t, host.ListeningOn(ssOutput, "192.168.1.10", 139), 1)
	assert.Empty(t, host.ListeningOn(ssOutput, "10.0.0.1", 445))
	assert.Len(t, host.ListeningOn(ssOutput, "10.0.0.1", 22), 1)
}

func TestPortLines(t *testing.T) {
	lines := host.PortLines(ssOutput, host.SMBAllPorts...)
	assert.Len(t, lines, 3)
	for _, l := range lines {
		assert.NotContains(t, l, ":4450")
	}
}

func TestRoutes(t *testing.T) {
	run := testutil.NewFakeRunner().OK("ip route show", `default via 192.168.1.1 dev eth0 proto dhcp metric 100
10.88.0.0/16 dev cni0 proto kernel scope link src 10.88.0.1

172.17.0.0/16 dev docker0 proto kernel scope link src 172.17.0.1 linkdown
192.168.1.0/24 dev eth0 proto kernel scope link src 192.168.1.10 metric 100
192.168.122.0/24 dev virbr0 proto kernel scope link src 192.168.122.1
`)
	h := testutil.NewHost(testutil.NewFakeSystem(), run)

	routes, err := h.Routes(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, routes, 4)
	assert.Equal(t, "default via 192.168.1.1 dev eth0 proto dhcp metric 100", routes[0])

	_, err = testutil.NewHost(testutil.NewFakeSystem(), testutil.NewFakeRunner()).Routes(context.Background(), 5)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	run := testutil.NewFakeRunner().OK("ping -c 1 -W 2 192.168.1.10", "1 packets transmitted, 1 received")
	h := testutil.NewHost(testutil.NewFakeSystem(), run)
	assert.True(t, h.Ping(context.Background(), "192.168.1.10"))
	assert.False(t, h.Ping(context.Background(), "192.168.1.99"))
}
