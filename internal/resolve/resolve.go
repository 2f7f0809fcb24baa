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

// Package resolve implements priority-ordered cascades over host probes.
//
// Every environment-dependent decision (package manager, unprivileged
// identity, service units, firewall manager, interface listing) is a list
// of candidates tried in order with a terminal fallback. A cascade never
// fails: a probe that errors counts as a miss and the fallback always
// exists.
package resolve

import "context"

// Check is a side-effect-free predicate against the host.
type Check func(ctx context.Context) (bool, error)

// Probe pairs a Check with the value it selects.
type Probe[T any] struct {
	Name   string
	Check  Check
	Result T
}

// Source produces a value directly; a nil error means it applies.
type Source[T any] struct {
	Name  string
	Fetch func(ctx context.Context) (T, error)
}

// Miss records a candidate that errored while being evaluated.
type Miss struct {
	Name string
	Err  error
}

// Outcome is the result of a cascade.
type Outcome[T any] struct {
	Value    T
	Matched  string // name of the winning candidate, empty on fallback
	Fallback bool
	Misses   []Miss
}

// Resolve returns the Result of the first probe whose Check reports true.
// Errors are recorded as misses. If nothing matches, or ctx is done before a
// match, fallback is returned.
func Resolve[T any](ctx context.Context, probes []Probe[T], fallback T) Outcome[T] {
	return ResolveFunc(ctx, probes, func(context.Context) T { return fallback })
}

// ResolveFunc is Resolve with a lazily computed fallback. fallback is only
// called when no probe matches.
func ResolveFunc[T any](ctx context.Context, probes []Probe[T], fallback func(context.Context) T) Outcome[T] {
	var out Outcome[T]
	for _, p := range probes {
		if ctx.Err() != nil {
			break
		}
		ok, err := p.Check(ctx)
		if err != nil {
			out.Misses = append(out.Misses, Miss{Name: p.Name, Err: err})
			continue
		}
		if ok {
			out.Value = p.Result
			out.Matched = p.Name
			return out
		}
	}
	out.Value = fallback(ctx)
	out.Fallback = true
	return out
}

// FirstOf returns the value of the first source that fetches without error.
func FirstOf[T any](ctx context.Context, sources []Source[T], fallback T) Outcome[T] {
	var out Outcome[T]
	for _, s := range sources {
		if ctx.Err() != nil {
			break
		}
		v, err := s.Fetch(ctx)
		if err != nil {
			out.Misses = append(out.Misses, Miss{Name: s.Name, Err: err})
			continue
		}
		out.Value = v
		out.Matched = s.Name
		return out
	}
	out.Value = fallback
	out.Fallback = true
	return out
}

// All is true when every check is true. It stops at the first false or
// error.
func All(checks ...Check) Check {
	return func(ctx context.Context) (bool, error) {
		for _, c := range checks {
			ok, err := c(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Any is true when at least one check is true. Errors count as false.
func Any(checks ...Check) Check {
	return func(ctx context.Context) (bool, error) {
		for _, c := range checks {
			if ok, err := c(ctx); err == nil && ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Not negates a check. An error stays an error.
func Not(c Check) Check {
	return func(ctx context.Context) (bool, error) {
		ok, err := c(ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// Always is a check that always matches.
func Always() Check {
	return func(context.Context) (bool, error) { return true, nil }
}
