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

package testutil

import (
	"io/fs"
	"os"
	"path"
	"sync"
	"time"

	"guestshare/internal/host"
)

// FakeSystem is an in-memory host.System.
type FakeSystem struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	modes map[string]os.FileMode
	env   map[string]string

	EUID        int
	Ifaces      []host.Interface
	IfacesErr   error
	UnameOut    string
	UnameErr    error
	MkdirErr    error
	WriteErrs   map[string]error      // by path
	ChmodErrs   map[os.FileMode]error // by requested mode
	ChmodCalls  []os.FileMode
}

var _ host.System = (*FakeSystem)(nil)

// NewFakeSystem returns an empty system running as root.
func NewFakeSystem() *FakeSystem {
	return &FakeSystem{
		files:     map[string][]byte{},
		dirs:      map[string]bool{"/": true},
		modes:     map[string]os.FileMode{},
		env:       map[string]string{},
		WriteErrs: map[string]error{},
		ChmodErrs: map[os.FileMode]error{},
		UnameOut:  "Linux testhost 6.1.0 #1 SMP x86_64",
	}
}

// AddFile creates name with data.
func (s *FakeSystem) AddFile(name string, data string) *FakeSystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = []byte(data)
	s.modes[name] = 0644
	return s
}

// AddDir creates a directory.
func (s *FakeSystem) AddDir(name string) *FakeSystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[name] = true
	return s
}

// SetEnv sets an environment variable.
func (s *FakeSystem) SetEnv(key, value string) *FakeSystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env[key] = value
	return s
}

// File returns the content of name and whether it exists.
func (s *FakeSystem) File(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return string(data), ok
}

// Mode returns the last mode applied to name.
func (s *FakeSystem) Mode(name string) os.FileMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes[name]
}

// HasDir reports whether name was created as a directory.
func (s *FakeSystem) HasDir(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[name]
}

func notExist(op, name string) error {
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}

// Stat implements host.System.
func (s *FakeSystem) Stat(name string) (os.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.files[name]; ok {
		return fakeInfo{name: path.Base(name), size: int64(len(data)), mode: s.modes[name]}, nil
	}
	if s.dirs[name] {
		return fakeInfo{name: path.Base(name), mode: fs.ModeDir | s.modes[name]}, nil
	}
	return nil, notExist("stat", name)
}

// ReadFile implements host.System.
func (s *FakeSystem) ReadFile(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, notExist("open", name)
	}
	return append([]byte(nil), data...), nil
}

// WriteFile implements host.System.
func (s *FakeSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.WriteErrs[name]; err != nil {
		return &fs.PathError{Op: "open", Path: name, Err: err}
	}
	s.files[name] = append([]byte(nil), data...)
	if _, ok := s.modes[name]; !ok {
		s.modes[name] = perm
	}
	return nil
}

// MkdirAll implements host.System.
func (s *FakeSystem) MkdirAll(p string, perm os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MkdirErr != nil {
		return &fs.PathError{Op: "mkdir", Path: p, Err: s.MkdirErr}
	}
	for dir := p; dir != "/" && dir != "." && !s.dirs[dir]; dir = path.Dir(dir) {
		s.dirs[dir] = true
		s.modes[dir] = perm
	}
	return nil
}

// Chmod implements host.System.
func (s *FakeSystem) Chmod(name string, mode os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChmodCalls = append(s.ChmodCalls, mode)
	if err := s.ChmodErrs[mode]; err != nil {
		return &fs.PathError{Op: "chmod", Path: name, Err: err}
	}
	if _, ok := s.files[name]; !ok && !s.dirs[name] {
		return notExist("chmod", name)
	}
	s.modes[name] = mode
	return nil
}

// LookupEnv implements host.System.
func (s *FakeSystem) LookupEnv(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.env[key]
	return v, ok
}

// Geteuid implements host.System.
func (s *FakeSystem) Geteuid() int {
	return s.EUID
}

// InterfaceAddrs implements host.System.
func (s *FakeSystem) InterfaceAddrs() ([]host.Interface, error) {
	return s.Ifaces, s.IfacesErr
}

// Uname implements host.System.
func (s *FakeSystem) Uname() (string, error) {
	return s.UnameOut, s.UnameErr
}

type fakeInfo struct {
	name string
	size int64
	mode os.FileMode
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) Mode() os.FileMode  { return i.mode }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.mode.IsDir() }
func (i fakeInfo) Sys() any           { return nil }
