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

// Package ui renders operator-facing status lines.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Printer writes status lines with a leading marker. Color is applied by
// fatih/color and disabled automatically when stdout is not a terminal.
type Printer struct {
	out  io.Writer
	ok   *color.Color
	warn *color.Color
	fail *color.Color
	head *color.Color
}

// NewPrinter returns a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:  out,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed),
		head: color.New(color.Bold),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.out }

// OK prints a success line.
func (p *Printer) OK(format string, args ...any) {
	_, _ = p.ok.Fprintf(p.out, "✅ "+format+"\n", args...)
}

// Warn prints a degraded-path line.
func (p *Printer) Warn(format string, args ...any) {
	_, _ = p.warn.Fprintf(p.out, "⚠️  "+format+"\n", args...)
}

// Fail prints a failure line.
func (p *Printer) Fail(format string, args ...any) {
	_, _ = p.fail.Fprintf(p.out, "❌ "+format+"\n", args...)
}

// Info prints a neutral line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, "ℹ️  "+format+"\n", args...)
}

// Hint prints a suggestion for the operator.
func (p *Printer) Hint(format string, args ...any) {
	fmt.Fprintf(p.out, "💡 "+format+"\n", args...)
}

// Step announces an action.
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintf(p.out, "🔧 "+format+"\n", args...)
}

// Line prints a plain line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Bullet prints an indented list item.
func (p *Printer) Bullet(format string, args ...any) {
	fmt.Fprintf(p.out, "  • "+format+"\n", args...)
}

// Section prints a blank line, a bold title and an underline of width n.
func (p *Printer) Section(title string, n int) {
	fmt.Fprintln(p.out)
	_, _ = p.head.Fprintln(p.out, title)
	fmt.Fprintln(p.out, strings.Repeat("=", n))
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.out)
}
