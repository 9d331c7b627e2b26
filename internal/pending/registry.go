// go-uhf
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-uhf.
//
// go-uhf is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-uhf is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-uhf; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package pending correlates asynchronous replies with the request that is
// waiting for them. At most one operation per category is outstanding; its
// completion sinks run exactly once, with the reply or with a timeout.
package pending

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry errors
var (
	ErrAlreadyPending = errors.New("operation already pending")
	ErrTimeout        = errors.New("operation timeout")
)

// TimeoutError reports that no reply arrived for a category in time.
type TimeoutError struct {
	Category string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response after %v", e.Category, e.After)
}

// Unwrap returns ErrTimeout so errors.Is works.
func (*TimeoutError) Unwrap() error {
	return ErrTimeout
}

// Result is what a sink receives: the reply payload or an error.
type Result struct {
	Err     error
	Payload []byte
}

// Sink consumes the result of one operation.
type Sink func(Result)

type operation struct {
	issuedAt time.Time
	timer    *time.Timer
	category string
	sinks    []Sink
	timeout  time.Duration
	gen      uint64
}

// Registry is the pending-operation table. It is safe for concurrent use.
type Registry struct {
	ops map[string]*operation
	mu  sync.Mutex
	gen uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*operation)}
}

// Begin records an operation for category and arms its timer. It fails with
// ErrAlreadyPending when one is already outstanding. A timeout of zero or
// less waits until Resolve or Abort.
func (r *Registry) Begin(category string, timeout time.Duration, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.ops[category]; busy {
		return fmt.Errorf("%s: %w", category, ErrAlreadyPending)
	}
	r.startLocked(category, timeout, sink)
	return nil
}

// BeginOrJoin begins an operation like Begin, or when one is outstanding
// queues sink behind it. leader is true only for the caller that began the
// operation and therefore has to send the request.
func (r *Registry) BeginOrJoin(category string, timeout time.Duration, sink Sink) (leader bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op, busy := r.ops[category]; busy {
		op.sinks = append(op.sinks, sink)
		return false
	}
	r.startLocked(category, timeout, sink)
	return true
}

func (r *Registry) startLocked(category string, timeout time.Duration, sink Sink) {
	r.gen++
	op := &operation{
		category: category,
		issuedAt: time.Now(),
		timeout:  timeout,
		sinks:    []Sink{sink},
		gen:      r.gen,
	}
	if timeout > 0 {
		gen := op.gen
		op.timer = time.AfterFunc(timeout, func() {
			r.expire(category, gen)
		})
	}
	r.ops[category] = op
}

// Resolve completes the outstanding operation of category with res. It
// returns false when nothing is pending, in which case the reply is stale.
func (r *Registry) Resolve(category string, res Result) bool {
	op := r.take(category)
	if op == nil {
		return false
	}
	deliver(op, res)
	return true
}

// Fail completes the outstanding operation of category with err.
func (r *Registry) Fail(category string, err error) bool {
	return r.Resolve(category, Result{Err: err})
}

func (r *Registry) take(category string) *operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[category]
	if !ok {
		return nil
	}
	delete(r.ops, category)
	safeTimerStop(op.timer)
	return op
}

func (r *Registry) expire(category string, gen uint64) {
	r.mu.Lock()
	op, ok := r.ops[category]
	if !ok || op.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.ops, category)
	r.mu.Unlock()

	deliver(op, Result{Err: &TimeoutError{Category: category, After: time.Since(op.issuedAt)}})
}

// Abort fails every outstanding operation with err.
func (r *Registry) Abort(err error) {
	r.mu.Lock()
	ops := make([]*operation, 0, len(r.ops))
	for category, op := range r.ops {
		delete(r.ops, category)
		safeTimerStop(op.timer)
		ops = append(ops, op)
	}
	r.mu.Unlock()

	for _, op := range ops {
		deliver(op, Result{Err: err})
	}
}

// Pending reports whether category has an outstanding operation.
func (r *Registry) Pending(category string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ops[category]
	return ok
}

// Waiters returns how many sinks are queued on category.
func (r *Registry) Waiters(category string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.ops[category]; ok {
		return len(op.sinks)
	}
	return 0
}

// Categories lists the outstanding categories in sorted order.
func (r *Registry) Categories() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.ops))
	for category := range r.ops {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// deliver runs sinks in FIFO order. The operation has already left the
// table, so no sink can be reached twice.
// deliver hands each joined sink its own copy of the payload.
func deliver(op *operation, res Result) {
	var pristine []byte
	if len(op.sinks) > 1 && res.Payload != nil {
		pristine = bytes.Clone(res.Payload)
	}
	for i, sink := range op.sinks {
		if i > 0 && pristine != nil {
			res.Payload = bytes.Clone(pristine)
		}
		sink(res)
	}
}

func safeTimerStop(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
