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

package prompt

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Console is the line-oriented operator terminal.
//
// Input is read by a single background goroutine so that every prompt of a
// session shares one reader; a line typed while no prompt is waiting is
// delivered to the next one.
type Console struct {
	in          io.Reader
	out         io.Writer
	interactive bool

	once  sync.Once
	lines chan string
}

// NewConsole returns a Console over in and out. interactive controls whether
// countdowns are redrawn in place.
func NewConsole(in io.Reader, out io.Writer, interactive bool) *Console {
	return &Console{in: in, out: out, interactive: interactive}
}

// StdConsole returns a Console over the process stdin/stdout.
func StdConsole() *Console {
	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	return NewConsole(os.Stdin, os.Stdout, interactive)
}

// Out returns the console writer.
func (c *Console) Out() io.Writer { return c.out }

// Interactive reports whether the console is a terminal.
func (c *Console) Interactive() bool { return c.interactive }

// Lines returns the channel of input lines. It is closed at EOF.
func (c *Console) Lines() <-chan string {
	c.once.Do(func() {
		c.lines = make(chan string)
		go func() {
			defer close(c.lines)
			// bufio.Reader has no line length limit, unlike bufio.Scanner.
			r := bufio.NewReader(c.in)
			for {
				line, err := r.ReadString('\n')
				if line != "" {
					c.lines <- strings.TrimRight(line, "\r\n")
				}
				if err != nil {
					return
				}
			}
		}()
	})
	return c.lines
}

// ReadLine blocks for the next input line.
// Returns io.EOF when input is exhausted and ctx.Err() on cancellation.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.Lines():
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// Ask writes question and reads one line.
func (c *Console) Ask(ctx context.Context, question string) (string, error) {
	_, _ = io.WriteString(c.out, question)
	return c.ReadLine(ctx)
}

// InterruptContext returns a context cancelled by SIGINT. It scopes operator
// aborts to one interactive step (a prompt, a log monitor, the debug menu).
func InterruptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}
