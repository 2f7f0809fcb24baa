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

// Package testutil provides fakes for the command runner and host system.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"guestshare/internal/common"
	"guestshare/internal/util"
)

// Response scripts the outcome of one command.
type Response struct {
	Stdout  string
	Stderr  string
	Exit    int
	Missing bool  // binary not on PATH
	Err     error // start failure other than a missing binary
}

// Stream scripts a long-running command.
type Stream struct {
	Lines []string
	// Hold keeps the command running after Lines until ctx is cancelled.
	Hold bool
	Err  error
}

// FakeRunner is a util.Runner answering from scripted responses keyed by
// the full command line.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string][]Response
	streams   map[string]Stream
	paths     map[string]bool
	calls     []string

	// Unscripted answers commands with no scripted response.
	Unscripted Response
}

var _ util.Runner = (*FakeRunner)(nil)

// NewFakeRunner returns a runner where unscripted commands are missing.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses:  map[string][]Response{},
		streams:    map[string]Stream{},
		paths:      map[string]bool{},
		Unscripted: Response{Missing: true},
	}
}

// On scripts cmdline. With several responses each call consumes the next
// one and the last repeats.
func (f *FakeRunner) On(cmdline string, rs ...Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(rs) == 0 {
		rs = []Response{{}}
	}
	f.responses[cmdline] = rs
	return f
}

// OK scripts cmdline to succeed with stdout.
func (f *FakeRunner) OK(cmdline, stdout string) *FakeRunner {
	return f.On(cmdline, Response{Stdout: stdout})
}

// Fail scripts cmdline to exit with code.
func (f *FakeRunner) Fail(cmdline string, code int) *FakeRunner {
	return f.On(cmdline, Response{Exit: code, Stderr: "failed"})
}

// OnStream scripts a streamed command.
func (f *FakeRunner) OnStream(cmdline string, s Stream) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[cmdline] = s
	return f
}

// Have puts names on the fake PATH.
func (f *FakeRunner) Have(names ...string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.paths[n] = true
	}
	return f
}

// Calls returns every command line run so far, in order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports how many times cmdline ran.
func (f *FakeRunner) Called(cmdline string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == cmdline {
			n++
		}
	}
	return n
}

func (f *FakeRunner) next(line string) Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)
	rs, ok := f.responses[line]
	if !ok {
		return f.Unscripted
	}
	r := rs[0]
	if len(rs) > 1 {
		f.responses[line] = rs[1:]
	}
	return r
}

// Run implements util.Runner.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (util.Result, error) {
	r := f.next(util.CommandLine(name, args...))
	res := util.Result{Stdout: r.Stdout, Stderr: r.Stderr, ExitCode: r.Exit}
	switch {
	case r.Missing:
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", name, common.ErrCommandNotFound)
	case r.Err != nil:
		res.ExitCode = -1
		return res, r.Err
	case r.Exit != 0:
		return res, &util.CommandError{Name: name, Args: args, ExitCode: r.Exit, Stderr: r.Stderr}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// Stream implements util.Runner.
func (f *FakeRunner) Stream(ctx context.Context, onLine func(string), name string, args ...string) error {
	line := util.CommandLine(name, args...)
	f.mu.Lock()
	f.calls = append(f.calls, line)
	s, ok := f.streams[line]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, common.ErrCommandNotFound)
	}
	if s.Err != nil {
		return s.Err
	}
	for _, l := range s.Lines {
		if ctx.Err() != nil {
			return nil
		}
		onLine(l)
	}
	if s.Hold {
		<-ctx.Done()
	}
	return nil
}

// LookPath implements util.Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paths[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("%s: %w", name, common.ErrCommandNotFound)
}
