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

// Package samba renders and edits smb.conf and checks share visibility.
package samba

// Protocol is an allowed SMB dialect range.
type Protocol struct {
	Name     string
	Min      string
	Max      string
	Summary  string
	Clients  string
	Security string
}

func (p Protocol) String() string {
	return p.Min + " to " + p.Max
}

// Protocols lists the selectable ranges, most compatible first.
var Protocols = []Protocol{
	{
		Name:     "SMBv1 (NT1)",
		Min:      "NT1",
		Max:      "SMB3",
		Summary:  "SMBv1 to SMBv3 - Maximum compatibility (includes legacy Windows)",
		Clients:  "Best for: Windows XP, older systems, maximum compatibility",
		Security: "⚠️  Less secure but most compatible",
	},
	{
		Name:     "SMBv2",
		Min:      "SMB2",
		Max:      "SMB3",
		Summary:  "SMBv2 to SMBv3 - Good balance of security and compatibility",
		Clients:  "Best for: Windows 7+, modern systems",
		Security: "✅ More secure than SMBv1",
	},
	{
		Name:     "SMBv3 Only",
		Min:      "SMB3",
		Max:      "SMB3",
		Summary:  "SMBv3 only - Maximum security",
		Clients:  "Best for: Windows 8+, latest systems only",
		Security: "🔒 Most secure, requires modern clients",
	},
}

// DefaultProtocol is the range used when no choice is made.
var DefaultProtocol = Protocols[0]
