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

package host

import (
	"context"

	"guestshare/internal/resolve"
)

// Identity is a user:group pair owning the share directory.
type Identity struct {
	User  string
	Group string
}

func (i Identity) String() string {
	return i.User + ":" + i.Group
}

// RootIdentity is the last resort owner.
var RootIdentity = Identity{User: "root", Group: "root"}

// NobodyCandidates are the unprivileged owners tried in order.
var NobodyCandidates = []Identity{
	{User: "nobody", Group: "nobody"},
	{User: "nobody", Group: "nogroup"},
	{User: "nobody", Group: "wheel"},
	{User: "nfsnobody", Group: "nfsnobody"},
}

// IdentityProbes builds one probe per candidate: the user must resolve
// with `id` and the group with `getent group`.
func (h *Host) IdentityProbes() []resolve.Probe[Identity] {
	probes := make([]resolve.Probe[Identity], 0, len(NobodyCandidates))
	for _, c := range NobodyCandidates {
		probes = append(probes, resolve.Probe[Identity]{
			Name:   c.String(),
			Check:  resolve.All(h.Succeeds("id", c.User), h.Succeeds("getent", "group", c.Group)),
			Result: c,
		})
	}
	return probes
}

// ResolveIdentity picks the unprivileged owner for the share.
func (h *Host) ResolveIdentity(ctx context.Context) resolve.Outcome[Identity] {
	out := resolve.ResolveFunc(ctx, h.IdentityProbes(), h.invokingIdentity)
	logOutcome(h.Log, "share owner", out)
	return out
}

// invokingIdentity returns the user that ran guestshare (through sudo when
// present) with its primary group, or root:root.
func (h *Host) invokingIdentity(ctx context.Context) Identity {
	user := "root"
	for _, key := range []string{"SUDO_USER", "USER"} {
		if v, ok := h.Sys.LookupEnv(key); ok && v != "" {
			user = v
			break
		}
	}
	group, err := h.Output(ctx, "id", "-gn", user)
	if err != nil || group == "" {
		return RootIdentity
	}
	return Identity{User: user, Group: group}
}
