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
	"fmt"

	"guestshare/internal/common"
	"guestshare/internal/util"
)

// SambaInstalled reports whether the Samba server binary is on PATH.
func (h *Host) SambaInstalled() bool {
	return h.HasCommand("smbd")
}

// UpdatePackages refreshes package metadata. For check-update style
// profiles exit status 100 means updates are available and is not an error.
func (h *Host) UpdatePackages(ctx context.Context, p Profile) error {
	if p.UpdateTolerant {
		_, err := h.Run.Run(ctx, p.Update[0], p.Update[1:]...)
		if code := util.ExitCode(err); code == 0 || code == 100 {
			return nil
		}
		return err
	}
	return util.Retry(ctx, func() error {
		return h.runErr(ctx, p.Update[0], p.Update[1:]...)
	}, h.RetryOptions(ctx)...)
}

// InstallPackages installs pkgs with the profile's package manager.
func (h *Host) InstallPackages(ctx context.Context, p Profile, pkgs ...string) error {
	cmd := p.InstallCommand(pkgs...)
	if err := h.runErr(ctx, cmd[0], cmd[1:]...); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInstallFailed, err)
	}
	return nil
}

// EnsureSMBClient installs the smbclient tool when it is missing.
func (h *Host) EnsureSMBClient(ctx context.Context, p Profile) error {
	if h.HasCommand("smbclient") {
		return nil
	}
	h.Log.WithField("package", p.ClientPackage).Info("installing smbclient")
	return h.InstallPackages(ctx, p, p.ClientPackage)
}
