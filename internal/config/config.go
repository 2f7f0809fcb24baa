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

// Package config manages guestshare settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"guestshare/internal/artifacts"
	"guestshare/internal/common"
)

// DefaultConfigDir is where settings live unless GUESTSHARE_CONFIG_DIR is set.
const DefaultConfigDir = "/etc/guestshare"

// getConfigDir returns the config directory path.
// Uses GUESTSHARE_CONFIG_DIR env var if set, otherwise /etc/guestshare.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("GUESTSHARE_CONFIG_DIR"); dir != "" {
		return dir
	}
	return DefaultConfigDir
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// SettingsPath returns the settings file path
func SettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0755)
}

// InitConfigDir creates the config directory and seeds the default settings
// file if none exists.
func InitConfigDir() error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	settingsPath := SettingsPath()
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, artifacts.GlobalSettings, 0644); err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
	}
	return nil
}

// Settings holds everything a setup session reads before it starts.
type Settings struct {
	SharePath       string `yaml:"share_path"`
	ShareName       string `yaml:"share_name"`
	SambaConfig     string `yaml:"samba_config"`
	BackupConfig    string `yaml:"backup_config"`
	PromptTimeout   int    `yaml:"prompt_timeout"`   // seconds
	MonitorDuration int    `yaml:"monitor_duration"` // seconds
	ReportDir       string `yaml:"report_dir"`
	StateDir        string `yaml:"state_dir"`
	Logging         string `yaml:"logging"` // none, warn, info, debug, trace
}

// loadDefaultSettings parses default settings from embedded artifact.
func loadDefaultSettings() Settings {
	var settings Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &settings); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	return settings
}

// Defaults returns the embedded default settings.
func Defaults() *Settings {
	s := loadDefaultSettings()
	return &s
}

// ApplyDefaults fills zero-value fields from the embedded defaults.
// A negative prompt timeout is kept: it means "auto-select immediately".
func (s *Settings) ApplyDefaults() {
	def := loadDefaultSettings()
	if s.SharePath == "" {
		s.SharePath = def.SharePath
	}
	if s.ShareName == "" {
		s.ShareName = def.ShareName
	}
	if s.SambaConfig == "" {
		s.SambaConfig = def.SambaConfig
	}
	if s.BackupConfig == "" {
		s.BackupConfig = def.BackupConfig
	}
	if s.PromptTimeout == 0 {
		s.PromptTimeout = def.PromptTimeout
	}
	if s.MonitorDuration <= 0 {
		s.MonitorDuration = def.MonitorDuration
	}
	if s.ReportDir == "" {
		s.ReportDir = def.ReportDir
	}
	if s.StateDir == "" {
		s.StateDir = def.StateDir
	}
	if s.Logging == "" {
		s.Logging = def.Logging
	}
}

// Validate normalizes paths and checks field values.
func (s *Settings) Validate() error {
	path, err := common.ExpandPath(s.SharePath)
	if err != nil {
		return fmt.Errorf("share_path: %w", err)
	}
	s.SharePath = path
	if strings.ContainsAny(s.ShareName, "[]/\\") || strings.TrimSpace(s.ShareName) == "" {
		return fmt.Errorf("share_name %q is not a valid share name", s.ShareName)
	}
	if _, err := ParseLevel(s.Logging); err != nil {
		return err
	}
	return nil
}

// PromptTimeoutDuration returns the menu timeout.
func (s *Settings) PromptTimeoutDuration() time.Duration {
	return time.Duration(s.PromptTimeout) * time.Second
}

// MonitorDurationValue returns the default log monitor duration.
func (s *Settings) MonitorDurationValue() time.Duration {
	return time.Duration(s.MonitorDuration) * time.Second
}

// LockPath returns the file guarding against concurrent setup runs.
func (s *Settings) LockPath() string {
	return filepath.Join(s.StateDir, "setup.lock")
}

// Load loads settings from the settings file.
// Falls back to embedded defaults if the file doesn't exist.
func Load() (*Settings, error) {
	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", SettingsPath(), err)
	}
	settings.ApplyDefaults()
	return &settings, nil
}

// Save writes settings to the settings file.
func Save(settings *Settings) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	// Add header comment (same as template header)
	header := []byte("# guestshare settings\n# See: guestshare config --help\n\n")
	return os.WriteFile(SettingsPath(), append(header, data...), 0644)
}
