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

package samba

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/aymanbagabas/go-udiff"

	"guestshare/internal/artifacts"
	"guestshare/internal/common"
	"guestshare/internal/host"
)

// Default log levels.
const (
	DefaultLogLevel = 1
	VerboseLogLevel = 3
)

// Params fills the smb.conf template.
type Params struct {
	ShareName  string
	SharePath  string
	Interface  string // value of `interfaces`
	Protocol   Protocol
	Identity   host.Identity
	LogLevel   int
	BackupPath string
}

var confTemplate = template.Must(template.New("smb.conf").Parse(artifacts.SambaConfigTemplate))

// Render produces a complete smb.conf.
func Render(p Params) (string, error) {
	if p.LogLevel == 0 {
		p.LogLevel = DefaultLogLevel
	}
	var b strings.Builder
	if err := confTemplate.Execute(&b, p); err != nil {
		return "", fmt.Errorf("render smb.conf: %w", err)
	}
	return b.String(), nil
}

// FileSystem is the subset of host.System the config file needs.
type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// ConfigFile manages smb.conf and its one-time backup.
type ConfigFile struct {
	Path       string
	BackupPath string
	FS         FileSystem
}

// Exists reports whether the config file is present.
func (c ConfigFile) Exists() bool {
	_, err := c.FS.Stat(c.Path)
	return err == nil
}

// Backup copies the current config to BackupPath unless a backup already
// exists. It reports whether a backup was written.
func (c ConfigFile) Backup() (bool, error) {
	info, err := c.FS.Stat(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := c.FS.Stat(c.BackupPath); err == nil {
		return false, nil
	}
	data, err := c.FS.ReadFile(c.Path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", c.Path, err)
	}
	if err := c.FS.WriteFile(c.BackupPath, data, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write %s: %w", c.BackupPath, err)
	}
	return true, nil
}

// Write replaces the config with content and returns a unified diff
// against the previous content (empty when unchanged).
func (c ConfigFile) Write(content string) (string, error) {
	old, err := c.FS.ReadFile(c.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: read %s: %w", common.ErrConfigWrite, c.Path, err)
	}
	if err := c.FS.WriteFile(c.Path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrConfigWrite, err)
	}
	return udiff.Unified(c.Path+".orig", c.Path, string(old), content), nil
}

// EnableVerbose raises the log level in place. It reports whether the file
// changed.
func (c ConfigFile) EnableVerbose() (bool, error) {
	data, err := c.FS.ReadFile(c.Path)
	if err != nil {
		return false, err
	}
	updated, changed := VerboseConfig(string(data))
	if !changed {
		return false, nil
	}
	if err := c.FS.WriteFile(c.Path, []byte(updated), 0644); err != nil {
		return false, err
	}
	return true, nil
}

var logLevelRE = regexp.MustCompile(`log level = \d+`)

const debugOptions = "    debug timestamp = yes\n    debug uid = yes\n    debug pid = yes"

// VerboseConfig sets `log level = 3` and adds debug timestamps. Without an
// existing log level a debug block is inserted after [global].
func VerboseConfig(content string) (string, bool) {
	verbose := fmt.Sprintf("log level = %d", VerboseLogLevel)
	var out string
	if logLevelRE.MatchString(content) {
		out = logLevelRE.ReplaceAllString(content, verbose)
		if !strings.Contains(out, "debug timestamp") {
			out = strings.ReplaceAll(out, verbose, verbose+"\n"+debugOptions)
		}
	} else {
		block := "[global]\n# Debug logging configuration\n    " + verbose + "\n" + debugOptions
		out = strings.Replace(content, "[global]", block, 1)
	}
	return out, out != content
}
