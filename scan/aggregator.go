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

package scan

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-uhf/inventory"
)

// DefaultEventRate is the default minimum spacing between batches.
const DefaultEventRate = 200 * time.Millisecond

// Sound identifies an audible cue the consumer should play.
type Sound int

// Sounds
const (
	SoundNone Sound = iota
	// SoundFound is played the first time a tag enters the seen set.
	SoundFound
	// SoundSeen is played for a repeat sighting when repeat sounds are on.
	SoundSeen
	// SoundError is played when a tag operation fails.
	SoundError
)

func (s Sound) String() string {
	switch s {
	case SoundNone:
		return "none"
	case SoundFound:
		return "found"
	case SoundSeen:
		return "seen"
	case SoundError:
		return "error"
	default:
		return "unknown"
	}
}

// Config holds the tunables of an Aggregator.
type Config struct {
	SoundFilter  []string
	EventRate    time.Duration
	SoundEnabled bool
	RepeatSound  bool
}

// DefaultConfig returns sound off and a 200ms event rate.
func DefaultConfig() Config {
	return Config{EventRate: DefaultEventRate}
}

// Update is the outcome of feeding sightings to an Aggregator.
type Update struct {
	// Batch is non-nil when a batch is due for the consumer.
	Batch []inventory.TagRecord
	// Sound is the cue to play: SoundFound if any sighting was new,
	// otherwise SoundSeen or SoundNone.
	Sound Sound
}

// Metrics counts aggregator activity. Safe for concurrent use.
type Metrics struct {
	Sightings atomic.Int64
	NewTags   atomic.Int64
	Batches   atomic.Int64
	Sounds    atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Sightings int64
	NewTags   int64
	Batches   int64
	Sounds    int64
}

// Aggregator deduplicates sightings for audible feedback and throttles them
// into batches. Batches are never deduplicated; every sighting is delivered.
type Aggregator struct {
	seen         map[string]struct{}
	filter       map[string]struct{}
	batcher      *Batcher[inventory.TagRecord]
	metrics      Metrics
	mu           sync.Mutex
	soundEnabled bool
	repeatSound  bool
}

// NewAggregator returns an aggregator configured by cfg.
func NewAggregator(cfg Config) *Aggregator {
	a := &Aggregator{
		seen:         make(map[string]struct{}),
		batcher:      NewBatcher[inventory.TagRecord](cfg.EventRate),
		soundEnabled: cfg.SoundEnabled,
		repeatSound:  cfg.RepeatSound,
	}
	a.SetSoundFilter(cfg.SoundFilter)
	return a
}

// SetClock replaces the batcher's time source. Used by tests.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.batcher.SetClock(now)
}

// SetBatchFunc sets the receiver of batches that fall due while no new
// sighting arrives. fn must not call back into the aggregator.
func (a *Aggregator) SetBatchFunc(fn func([]inventory.TagRecord)) {
	if fn == nil {
		a.batcher.OnDue(nil)
		return
	}
	a.batcher.OnDue(func(batch []inventory.TagRecord) {
		a.metrics.Batches.Add(1)
		fn(batch)
	})
}

// Add records sightings. Every sighting updates the seen set; the returned
// Update carries a batch when one is due and the sound to play, if any.
func (a *Aggregator) Add(records ...inventory.TagRecord) Update {
	if len(records) == 0 {
		return Update{}
	}
	upd := Update{Sound: a.Evaluate(records...)}
	upd.Batch = a.batcher.Add(records...)
	if upd.Batch != nil {
		a.metrics.Batches.Add(1)
	}
	return upd
}

// Evaluate updates the seen set with records and returns the cue to play,
// without batching them. SoundFound wins if any sighting was new.
func (a *Aggregator) Evaluate(records ...inventory.TagRecord) Sound {
	sound := SoundNone
	a.mu.Lock()
	for i := range records {
		s := a.evaluateLocked(records[i].EPCHex())
		if s == SoundFound || (sound == SoundNone && s != SoundNone) {
			sound = s
		}
	}
	a.mu.Unlock()

	a.metrics.Sightings.Add(int64(len(records)))
	if sound != SoundNone {
		a.metrics.Sounds.Add(1)
	}
	return sound
}

// evaluateLocked returns the sound one sighting produces.
func (a *Aggregator) evaluateLocked(key string) Sound {
	_, known := a.seen[key]
	if !known {
		a.seen[key] = struct{}{}
		a.metrics.NewTags.Add(1)
	}
	if !a.soundEnabled {
		return SoundNone
	}
	if len(a.filter) > 0 {
		if _, ok := a.filter[key]; !ok {
			return SoundNone
		}
	}
	switch {
	case !known:
		return SoundFound
	case a.repeatSound:
		return SoundSeen
	default:
		return SoundNone
	}
}

// Flush returns buffered sightings, or nil.
func (a *Aggregator) Flush() []inventory.TagRecord {
	batch := a.batcher.Flush()
	if batch != nil {
		a.metrics.Batches.Add(1)
	}
	return batch
}

// Seen reports whether an EPC, in hex, is in the seen set.
func (a *Aggregator) Seen(epcHex string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.seen[strings.ToUpper(epcHex)]
	return ok
}

// SeenCount returns the size of the seen set.
func (a *Aggregator) SeenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

// ClearCache empties the seen set so every tag sounds again.
func (a *Aggregator) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.seen)
}

// Reset empties the seen set and drops buffered sightings.
func (a *Aggregator) Reset() {
	a.ClearCache()
	a.batcher.Reset()
}

// SetEventRate changes the minimum spacing between batches.
func (a *Aggregator) SetEventRate(rate time.Duration) {
	a.batcher.SetInterval(rate)
}

// EventRate returns the minimum spacing between batches.
func (a *Aggregator) EventRate() time.Duration {
	return a.batcher.Interval()
}

// SetSoundEnabled turns audible feedback on or off.
func (a *Aggregator) SetSoundEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.soundEnabled = enabled
}

// SoundEnabled reports whether audible feedback is on.
func (a *Aggregator) SoundEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.soundEnabled
}

// SetRepeatSound makes repeat sightings produce SoundSeen.
func (a *Aggregator) SetRepeatSound(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.repeatSound = enabled
}

// SetSoundFilter restricts sounds to the listed EPCs, in hex. An empty list
// lets every tag sound.
func (a *Aggregator) SetSoundFilter(epcs []string) {
	filter := make(map[string]struct{}, len(epcs))
	for _, e := range epcs {
		if e = strings.ToUpper(strings.TrimSpace(e)); e != "" {
			filter[e] = struct{}{}
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = filter
}

// Metrics returns a snapshot of the counters.
func (a *Aggregator) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Sightings: a.metrics.Sightings.Load(),
		NewTags:   a.metrics.NewTags.Load(),
		Batches:   a.metrics.Batches.Load(),
		Sounds:    a.metrics.Sounds.Load(),
	}
}
