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
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"guestshare/internal/resolve"
)

// Family groups distributions that share packaging conventions.
type Family string

const (
	FamilyDebian  Family = "debian"
	FamilyRedHat  Family = "redhat"
	FamilyArch    Family = "arch"
	FamilySUSE    Family = "suse"
	FamilyUnknown Family = "unknown"
)

// Profile describes how to install packages on a distribution.
type Profile struct {
	Family  Family
	Manager string
	Update  []string
	// UpdateTolerant marks check-update style commands that exit 100 when
	// updates are available and whose failure is not fatal.
	UpdateTolerant bool
	Install        []string // install command without package names
	ClientPackage  string   // package providing smbclient
}

// InstallCommand returns the full install command for pkgs.
func (p Profile) InstallCommand(pkgs ...string) []string {
	cmd := append([]string{}, p.Install...)
	return append(cmd, pkgs...)
}

func (p Profile) String() string {
	return string(p.Family) + "/" + p.Manager
}

var (
	AptProfile = Profile{
		Family:        FamilyDebian,
		Manager:       "apt",
		Update:        []string{"apt", "update"},
		Install:       []string{"apt", "install", "-y"},
		ClientPackage: "smbclient",
	}
	DnfProfile = Profile{
		Family:         FamilyRedHat,
		Manager:        "dnf",
		Update:         []string{"dnf", "check-update"},
		UpdateTolerant: true,
		Install:        []string{"dnf", "install", "-y"},
		ClientPackage:  "samba-client",
	}
	YumProfile = Profile{
		Family:         FamilyRedHat,
		Manager:        "yum",
		Update:         []string{"yum", "check-update"},
		UpdateTolerant: true,
		Install:        []string{"yum", "install", "-y"},
		ClientPackage:  "samba-client",
	}
	PacmanProfile = Profile{
		Family:        FamilyArch,
		Manager:       "pacman",
		Update:        []string{"pacman", "-Sy"},
		Install:       []string{"pacman", "-S", "--noconfirm"},
		ClientPackage: "smbclient",
	}
	ZypperProfile = Profile{
		Family:        FamilySUSE,
		Manager:       "zypper",
		Update:        []string{"zypper", "refresh"},
		Install:       []string{"zypper", "install", "-y"},
		ClientPackage: "samba-client",
	}
)

// UnknownProfile is the fallback: apt commands on an unrecognized family.
func UnknownProfile() Profile {
	p := AptProfile
	p.Family = FamilyUnknown
	return p
}

const osReleasePath = "/etc/os-release"

// OSRelease parses /etc/os-release. A missing file yields an empty map.
func (h *Host) OSRelease() (map[string]string, error) {
	data, err := h.Sys.ReadFile(osReleasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return godotenv.Unmarshal(string(data))
}

// OSReleaseLike matches when ID or ID_LIKE in /etc/os-release names any of ids.
func (h *Host) OSReleaseLike(ids ...string) resolve.Check {
	return func(context.Context) (bool, error) {
		fields, err := h.OSRelease()
		if err != nil {
			return false, err
		}
		known := strings.Fields(strings.ToLower(fields["ID"] + " " + fields["ID_LIKE"]))
		for _, k := range known {
			for _, id := range ids {
				if k == id {
					return true, nil
				}
			}
		}
		return false, nil
	}
}

// ProfileProbes lists the package manager cascade in priority order.
func (h *Host) ProfileProbes() []resolve.Probe[Profile] {
	return []resolve.Probe[Profile]{
		{Name: "debian_version", Check: h.FileExists("/etc/debian_version"), Result: AptProfile},
		{Name: "redhat-release", Check: resolve.Any(h.FileExists("/etc/redhat-release"), h.FileExists("/etc/fedora-release")), Result: DnfProfile},
		{Name: "centos-release+dnf", Check: resolve.All(h.FileExists("/etc/centos-release"), h.OnPath("dnf")), Result: DnfProfile},
		{Name: "centos-release", Check: h.FileExists("/etc/centos-release"), Result: YumProfile},
		{Name: "arch-release", Check: h.FileExists("/etc/arch-release"), Result: PacmanProfile},
		{Name: "suse-release", Check: resolve.Any(h.FileExists("/etc/SUSE-brand"), h.FileExists("/etc/SuSE-release")), Result: ZypperProfile},
		{Name: "os-release debian", Check: h.OSReleaseLike("debian", "ubuntu"), Result: AptProfile},
		{Name: "os-release rhel", Check: h.OSReleaseLike("rhel", "fedora", "centos"), Result: DnfProfile},
		{Name: "os-release arch", Check: h.OSReleaseLike("arch"), Result: PacmanProfile},
		{Name: "os-release suse", Check: h.OSReleaseLike("suse", "opensuse"), Result: ZypperProfile},
	}
}

// ResolveProfile detects the package manager profile.
func (h *Host) ResolveProfile(ctx context.Context) resolve.Outcome[Profile] {
	out := resolve.Resolve(ctx, h.ProfileProbes(), UnknownProfile())
	logOutcome(h.Log, "package manager", out)
	return out
}
