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

	"guestshare/internal/testutil"
)

func TestConfigureSELinux(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		script    func(*testutil.FakeRunner)
		wantMode  string
		wantOK    bool
		wantLabel bool
		wantHome  bool
	}{
		{
			name:     "tools missing",
			path:     "/srv/shared",
			script:   func(*testutil.FakeRunner) {},
			wantMode: "",
			wantOK:   true,
		},
		{
			name: "disabled",
			path: "/srv/shared",
			script: func(r *testutil.FakeRunner) {
				r.OK("getenforce", "Disabled\n")
			},
			wantMode: "Disabled",
			wantOK:   true,
		},
		{
			name: "enforcing",
			path: "/srv/shared",
			script: func(r *testutil.FakeRunner) {
				r.OK("getenforce", "Enforcing\n").
					OK("semanage fcontext -a -t samba_share_t /srv/shared(/.*)?", "").
					OK("restorecon -R /srv/shared", "")
			},
			wantMode:  "Enforcing",
			wantOK:    true,
			wantLabel: true,
		},
		{
			name: "permissive under home",
			path: "/home/alice/public",
			script: func(r *testutil.FakeRunner) {
				r.OK("getenforce", "Permissive").
					OK("semanage fcontext -a -t samba_share_t /home/alice/public(/.*)?", "").
					OK("restorecon -R /home/alice/public", "").
					OK("setsebool -P samba_enable_home_dirs on", "")
			},
			wantMode:  "Permissive",
			wantOK:    true,
			wantLabel: true,
			wantHome:  true,
		},
		{
			name: "rule already defined",
			path: "/srv/shared",
			script: func(r *testutil.FakeRunner) {
				r.OK("getenforce", "Enforcing").
					Fail("semanage fcontext -a -t samba_share_t /srv/shared(/.*)?", 1).
					OK("semanage fcontext -m -t samba_share_t /srv/shared(/.*)?", "").
					OK("restorecon -R /srv/shared", "")
			},
			wantMode:  "Enforcing",
			wantOK:    true,
			wantLabel: true,
		},
		{
			name: "semanage fails",
			path: "/srv/shared",
			script: func(r *testutil.FakeRunner) {
				r.OK("getenforce", "Enforcing").
					Fail("semanage fcontext -a -t samba_share_t /srv/shared(/.*)?", 1)
			},
			wantMode: "Enforcing",
		},
		{
			name: "unknown status",
			path: "/srv/shared",
			script: func(r *testutil.FakeRunner) {
				r.OK("getenforce", "Confused")
			},
			wantMode: "Confused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := testutil.NewFakeRunner()
			tt.script(run)
			h := testutil.NewHost(testutil.NewFakeSystem(), run)

			res := h.ConfigureSELinux(context.Background(), tt.path)
			assert.Equal(t, tt.wantMode, res.Mode)
			assert.Equal(t, tt.wantOK, res.OK())
			assert.Equal(t, tt.wantLabel, res.Labeled)
			assert.Equal(t, tt.wantHome, res.HomeDirs)
		})
	}
}
