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

package util

import (
	"context"
	"fmt"
)

// DaemonStartConfig configures daemon start behavior.
type DaemonStartConfig struct {
	Name       string     // Unit name, used in errors
	PollConfig PollConfig // Polling config for waiting
}

// DefaultDaemonStartConfig returns sensible defaults for name.
func DefaultDaemonStartConfig(name string) DaemonStartConfig {
	return DaemonStartConfig{
		Name:       name,
		PollConfig: ServicePollConfig(),
	}
}

// EnsureDaemon starts a daemon if it is not running and waits for it.
// isRunning reports the current state, start requests a start.
// Returns nil if the daemon is already running or came up in time.
func EnsureDaemon(ctx context.Context, cfg DaemonStartConfig, isRunning func() bool, start func() error) error {
	if isRunning() {
		return nil
	}

	if err := start(); err != nil {
		return fmt.Errorf("start %s: %w", cfg.Name, err)
	}

	if err := PollUntil(ctx, cfg.PollConfig, isRunning); err != nil {
		return fmt.Errorf("%s did not become active in time", cfg.Name)
	}
	return nil
}
