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

// Package scan throttles and deduplicates the stream of tag sightings a
// continuous inventory produces.
package scan

import (
	"sync"
	"time"
)

// Batcher groups items into batches emitted at most once per interval.
// An Add returns the accumulated batch when more than interval has passed
// since the previous emission. Items held back are handed to the OnDue
// callback once their interval elapses, unless an Add or Flush takes them
// first.
type Batcher[T any] struct {
	last     time.Time
	now      func() time.Time
	onDue    func([]T)
	timer    *time.Timer
	pending  []T
	interval time.Duration
	gen      uint64
	mu       sync.Mutex
	manual   bool
}

// NewBatcher returns a batcher with the given minimum spacing.
func NewBatcher[T any](interval time.Duration) *Batcher[T] {
	return &Batcher[T]{interval: interval, now: time.Now}
}

// SetClock replaces the time source. Used by tests. With a replaced clock
// no flush timer is armed, so held items leave only through Add or Flush.
func (b *Batcher[T]) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	b.manual = true
	b.stopLocked()
}

// OnDue sets the receiver of batches that fall due between Adds. fn runs
// with the batcher locked and must not call back into it.
func (b *Batcher[T]) OnDue(fn func([]T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDue = fn
}

// SetInterval changes the minimum spacing between batches.
func (b *Batcher[T]) SetInterval(interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.interval = interval
}

// Interval returns the minimum spacing between batches.
func (b *Batcher[T]) Interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

// Add buffers items and returns a batch when one is due.
func (b *Batcher[T]) Add(items ...T) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, items...)
	if len(b.pending) == 0 {
		return nil
	}
	now := b.now()
	if wait := b.interval - now.Sub(b.last); !b.last.IsZero() && wait >= 0 {
		b.armLocked(wait)
		return nil
	}
	b.last = now
	return b.takeLocked()
}

// Flush returns whatever is buffered, or nil.
func (b *Batcher[T]) Flush() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	b.last = b.now()
	return b.takeLocked()
}

// Pending returns the number of buffered items.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Reset drops buffered items and forgets the last emission time.
func (b *Batcher[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
	b.last = time.Time{}
	b.stopLocked()
}

// takeLocked also cancels the flush timer: nothing is left for it.
func (b *Batcher[T]) takeLocked() []T {
	b.stopLocked()
	out := b.pending
	b.pending = nil
	return out
}

func (b *Batcher[T]) armLocked(wait time.Duration) {
	if b.onDue == nil || b.manual || b.timer != nil {
		return
	}
	gen := b.gen
	b.timer = time.AfterFunc(wait, func() { b.fire(gen) })
}

func (b *Batcher[T]) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}

func (b *Batcher[T]) fire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return
	}
	b.timer = nil
	if len(b.pending) == 0 || b.onDue == nil {
		return
	}
	b.last = b.now()
	b.onDue(b.takeLocked())
}
