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
	"os"

	"github.com/hashicorp/go-multierror"
)

// Share directory modes.
const (
	ShareDirMode      os.FileMode = 0755
	WorldWritableMode os.FileMode = 0777
)

// PermResult describes the permissions applied to the share.
type PermResult struct {
	Mode  os.FileMode
	Owner Identity
	// Fallback is set when ownership failed and the directory was made
	// world-writable instead.
	Fallback bool
	Cause    error
}

// EnsureDir creates path with ShareDirMode if needed.
func (h *Host) EnsureDir(path string) error {
	info, err := h.Sys.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", path)
		}
		return nil
	}
	return h.Sys.MkdirAll(path, ShareDirMode)
}

// SetSharePermissions applies 0755 and owner recursively. When that fails
// it falls back to 0777. An error is returned only when both fail.
func (h *Host) SetSharePermissions(ctx context.Context, path string, owner Identity) (PermResult, error) {
	cause := h.Sys.Chmod(path, ShareDirMode)
	if cause == nil {
		cause = h.runErr(ctx, "chown", "-R", owner.String(), path)
	}
	if cause == nil {
		return PermResult{Mode: ShareDirMode, Owner: owner}, nil
	}

	h.Log.WithError(cause).WithField("path", path).Warn("ownership change failed, falling back to world-writable")
	if err := h.Sys.Chmod(path, WorldWritableMode); err != nil {
		var errs *multierror.Error
		errs = multierror.Append(errs, cause, err)
		return PermResult{Cause: cause}, errs
	}
	return PermResult{Mode: WorldWritableMode, Fallback: true, Cause: cause}, nil
}
