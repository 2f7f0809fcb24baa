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

package common

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ExpandPath expands a leading ~ and returns a cleaned absolute path.
func ExpandPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// IsHomePath reports whether path lives under /home, which needs the
// samba_enable_home_dirs SELinux boolean.
func IsHomePath(path string) bool {
	clean := filepath.Clean(path)
	return strings.HasPrefix(clean, "/home/") || strings.Contains(clean, "/home/")
}

// FileContextPattern returns the semanage fcontext pattern covering path
// and everything below it.
func FileContextPattern(path string) string {
	return filepath.Clean(path) + "(/.*)?"
}

// UNCPath returns the Windows UNC path for a share on host.
func UNCPath(host, share string) string {
	return `\\` + host + `\` + share
}
