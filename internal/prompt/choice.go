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

// Package prompt implements timed interactive menus.
package prompt

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Reason explains how a Choice was resolved.
type Reason int

const (
	Selected Reason = iota
	TimedOut
	InvalidInput
	Interrupted
)

func (r Reason) String() string {
	switch r {
	case Selected:
		return "selected"
	case TimedOut:
		return "timeout"
	case InvalidInput:
		return "invalid"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Option is one menu entry. Value is opaque to the prompt.
type Option[T any] struct {
	Key     string
	Label   string
	Details []string
	Value   T
}

// Numbered assigns sequential keys starting at base.
func Numbered[T any](base int, opts []Option[T]) []Option[T] {
	out := make([]Option[T], len(opts))
	for i, o := range opts {
		o.Key = strconv.Itoa(base + i)
		out[i] = o
	}
	return out
}

// Choice is a menu that resolves to a default when the operator does not
// answer in time. It is built per decision and run once.
type Choice[T any] struct {
	Title        string
	Options      []Option[T]
	Timeout      time.Duration
	DefaultIndex int
	// Tick is the countdown granularity; one second when zero.
	Tick time.Duration
}

// Result is the resolved selection.
type Result[T any] struct {
	Value   T
	Index   int
	Label   string
	Reason  Reason
	Input   string
	Message string
}

// Run displays the menu and waits for a key until Timeout elapses.
//
// It never fails: a timeout, an unknown key, EOF on input or a cancelled
// ctx all resolve to DefaultIndex. Run panics if Options is empty, keys
// repeat or DefaultIndex is out of range.
func (c *Choice[T]) Run(ctx context.Context, con *Console) Result[T] {
	c.validate()
	out := con.Out()
	c.display(out)

	if c.Timeout <= 0 {
		return c.result(TimedOut, "", c.DefaultIndex)
	}

	tick := c.Tick
	if tick <= 0 {
		tick = time.Second
	}
	deadline := time.Now().Add(c.Timeout)
	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	lines := con.Lines()
	c.render(out, con.Interactive(), deadline, true)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return c.result(Interrupted, "", c.DefaultIndex)
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return c.result(Interrupted, "", c.DefaultIndex)
			}
			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}
			if !con.Interactive() {
				fmt.Fprintln(out)
			}
			if idx := c.indexOf(input); idx >= 0 {
				return c.result(Selected, input, idx)
			}
			return c.result(InvalidInput, input, c.DefaultIndex)
		case <-timer.C:
			fmt.Fprintln(out)
			return c.result(TimedOut, "", c.DefaultIndex)
		case <-ticker.C:
			c.render(out, con.Interactive(), deadline, false)
		}
	}
}

func (c *Choice[T]) validate() {
	if len(c.Options) == 0 {
		panic("prompt: choice needs at least one option")
	}
	if c.DefaultIndex < 0 || c.DefaultIndex >= len(c.Options) {
		panic(fmt.Sprintf("prompt: default index %d out of range [0,%d)", c.DefaultIndex, len(c.Options)))
	}
	seen := make(map[string]bool, len(c.Options))
	for _, o := range c.Options {
		if seen[o.Key] {
			panic(fmt.Sprintf("prompt: duplicate option key %q", o.Key))
		}
		seen[o.Key] = true
	}
}

// indexOf matches key exactly, then as an integer against numeric keys so
// "02" and "+2" select key "2".
func (c *Choice[T]) indexOf(key string) int {
	for i, o := range c.Options {
		if o.Key == key {
			return i
		}
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return -1
	}
	for i, o := range c.Options {
		if k, err := strconv.Atoi(o.Key); err == nil && k == n {
			return i
		}
	}
	return -1
}

func (c *Choice[T]) display(out io.Writer) {
	if c.Title != "" {
		fmt.Fprintln(out, c.Title)
		fmt.Fprintln(out)
	}
	for _, o := range c.Options {
		fmt.Fprintf(out, "  [%s] %s\n", o.Key, o.Label)
		for _, d := range o.Details {
			fmt.Fprintf(out, "      %s\n", d)
		}
	}
	fmt.Fprintln(out)
	if c.Timeout > 0 {
		def := c.Options[c.DefaultIndex]
		fmt.Fprintf(out, "You have %d seconds to choose an option.\n", seconds(c.Timeout))
		fmt.Fprintf(out, "If no input is provided, [%s] %s will be selected automatically.\n", def.Key, def.Label)
	}
}

// render draws the countdown. Non-interactive consoles get it once.
func (c *Choice[T]) render(out io.Writer, interactive bool, deadline time.Time, first bool) {
	if !interactive && !first {
		return
	}
	prefix := ""
	if interactive {
		prefix = "\r"
	}
	remaining := seconds(time.Until(deadline))
	fmt.Fprintf(out, "%sSelect option [%s-%s] (%ds remaining): ",
		prefix, c.Options[0].Key, c.Options[len(c.Options)-1].Key, remaining)
}

func (c *Choice[T]) result(reason Reason, input string, idx int) Result[T] {
	o := c.Options[idx]
	res := Result[T]{Value: o.Value, Index: idx, Label: o.Label, Reason: reason, Input: input}
	switch reason {
	case Selected:
		res.Message = "Selected: " + o.Label
	case TimedOut:
		res.Message = "Timeout reached, auto-selected default: " + o.Label
	case InvalidInput:
		res.Message = fmt.Sprintf("Invalid choice %q, auto-selected default: %s", input, o.Label)
	case Interrupted:
		res.Message = "Selection interrupted, auto-selected default: " + o.Label
	}
	return res
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
