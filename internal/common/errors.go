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

import "errors"

var (
	ErrNotRoot         = errors.New("root privileges required")
	ErrSetupLocked     = errors.New("another setup run is in progress")
	ErrNoInterfaces    = errors.New("no usable network interface")
	ErrShareDir        = errors.New("share directory unavailable")
	ErrConfigWrite     = errors.New("samba configuration not written")
	ErrInstallFailed   = errors.New("samba installation failed")
	ErrCommandNotFound = errors.New("command not found")
	ErrInterrupted     = errors.New("interrupted")
)
