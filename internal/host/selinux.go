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
	"fmt"

	"guestshare/internal/common"
	"guestshare/internal/util"
)

// SELinux modes reported by getenforce.
const (
	SELinuxDisabled   = "Disabled"
	SELinuxEnforcing  = "Enforcing"
	SELinuxPermissive = "Permissive"
)

// SELinuxResult describes the outcome of labeling the share.
type SELinuxResult struct {
	// Mode is the getenforce output, empty when SELinux is not available.
	Mode     string
	Labeled  bool
	HomeDirs bool
	Err      error
}

// OK reports whether SELinux will not block Samba on the share.
func (r SELinuxResult) OK() bool {
	switch r.Mode {
	case "", SELinuxDisabled:
		return true
	case SELinuxEnforcing, SELinuxPermissive:
		return r.Labeled && r.Err == nil
	default:
		return false
	}
}

// ConfigureSELinux labels sharePath samba_share_t and enables home
// directory sharing when the share lives under /home/.
func (h *Host) ConfigureSELinux(ctx context.Context, sharePath string) SELinuxResult {
	mode, err := h.Output(ctx, "getenforce")
	if err != nil {
		if !errors.Is(err, common.ErrCommandNotFound) {
			h.Log.WithError(err).Debug("getenforce failed")
		}
		return SELinuxResult{}
	}

	res := SELinuxResult{Mode: mode}
	switch mode {
	case SELinuxDisabled:
		return res
	case SELinuxEnforcing, SELinuxPermissive:
	default:
		res.Err = fmt.Errorf("unknown SELinux status %q", mode)
		return res
	}

	if err := h.labelShare(ctx, sharePath); err != nil {
		res.Err = err
		return res
	}
	if _, err := h.Run.Run(ctx, "restorecon", "-R", sharePath); err != nil {
		res.Err = err
		return res
	}
	res.Labeled = true

	if common.IsHomePath(sharePath) {
		if _, err := h.Run.Run(ctx, "setsebool", "-P", "samba_enable_home_dirs", "on"); err != nil {
			res.Err = fmt.Errorf("%s: %w", util.CommandLine("setsebool", "-P", "samba_enable_home_dirs", "on"), err)
			return res
		}
		res.HomeDirs = true
	}
	return res
}

// labelShare adds the samba_share_t file context rule. A rule left by an
// earlier run makes `-a` fail, so the rule is then modified in place.
func (h *Host) labelShare(ctx context.Context, sharePath string) error {
	pattern := common.FileContextPattern(sharePath)
	_, err := h.Run.Run(ctx, "semanage", "fcontext", "-a", "-t", "samba_share_t", pattern)
	if err == nil {
		return nil
	}
	h.Log.WithError(err).Debug("fcontext rule not added, modifying existing rule")
	if _, merr := h.Run.Run(ctx, "semanage", "fcontext", "-m", "-t", "samba_share_t", pattern); merr != nil {
		return err
	}
	return nil
}
