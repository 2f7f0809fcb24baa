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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"guestshare/internal/common"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError reports a command that started but exited non-zero.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", CommandLine(e.Name, e.Args...), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ExitCode extracts the exit status from an error returned by a Runner.
// Returns -1 when err does not describe a finished command.
func ExitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	if err == nil {
		return 0
	}
	return -1
}

// Runner executes external commands.
//
// Run returns a nil error only when the command exits 0. A missing binary
// is reported as common.ErrCommandNotFound, a non-zero exit as *CommandError;
// the Result is filled in either way.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	// Stream runs a long-lived command, calling onLine for every stdout line
	// until the command exits or ctx is cancelled.
	Stream(ctx context.Context, onLine func(string), name string, args ...string) error
	LookPath(name string) (string, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	Log *log.Entry
}

// NewExecRunner returns an ExecRunner logging through logger.
func NewExecRunner(logger *log.Entry) *ExecRunner {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &ExecRunner{Log: logger}
}

// Run executes name with args and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		err = r.classify(name, args, err, &res)
	}
	r.Log.WithFields(log.Fields{
		"cmd":  CommandLine(name, args...),
		"exit": res.ExitCode,
	}).Debug("exec")
	return res, err
}

// Stream executes name and forwards its stdout line by line.
func (r *ExecRunner) Stream(ctx context.Context, onLine func(string), name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		var res Result
		return r.classify(name, args, err, &res)
	}
	r.Log.WithField("cmd", CommandLine(name, args...)).Debug("stream started")

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	err = cmd.Wait()
	if ctx.Err() != nil {
		// Killed by cancellation, not a failure.
		return nil
	}
	if err != nil {
		var res Result
		return r.classify(name, args, err, &res)
	}
	return nil
}

// LookPath searches PATH for name.
func (r *ExecRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, common.ErrCommandNotFound)
	}
	return path, nil
}

func (r *ExecRunner) classify(name string, args []string, err error, res *Result) error {
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return &CommandError{Name: name, Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	case errors.Is(err, exec.ErrNotFound):
		res.ExitCode = -1
		return fmt.Errorf("%s: %w", name, common.ErrCommandNotFound)
	default:
		res.ExitCode = -1
		return fmt.Errorf("%s: %w", CommandLine(name, args...), err)
	}
}

// CommandLine renders a command for logs and manual hints.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
