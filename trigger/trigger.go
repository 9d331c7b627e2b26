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

// Package trigger reads a physical trigger button wired to a GPIO line, for
// fixed readers that have no trigger key of their own.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultDebounce is the minimum time between two reported transitions.
const DefaultDebounce = 30 * time.Millisecond

// pollInterval bounds WaitForEdge so cancellation is noticed.
const pollInterval = 100 * time.Millisecond

// ErrPinNotFound is returned by Open when the GPIO name is unknown.
var ErrPinNotFound = errors.New("gpio pin not found")

// Option configures a Button.
type Option func(*Button)

// WithDebounce sets the minimum time between reported transitions.
func WithDebounce(d time.Duration) Option {
	return func(b *Button) {
		if d >= 0 {
			b.debounce = d
		}
	}
}

// WithActiveHigh treats a high level as pressed. Buttons are active low by
// default, pulling the line to ground against the internal pull-up.
func WithActiveHigh() Option {
	return func(b *Button) {
		b.activeHigh = true
	}
}

// WithLogger sets the logger used for edge diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Button) {
		b.log = l
	}
}

// Button reports press and release transitions of a GPIO input.
type Button struct {
	pin        gpio.PinIn
	now        func() time.Time
	log        zerolog.Logger
	debounce   time.Duration
	activeHigh bool
}

// New wraps pin.
func New(pin gpio.PinIn, opts ...Option) *Button {
	b := &Button{
		pin:      pin,
		debounce: DefaultDebounce,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open initializes the host drivers and looks up the pin by name, for
// example "GPIO17".
func Open(name string, opts ...Option) (*Button, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return New(pin, opts...), nil
}

// Pressed reads the current state.
func (b *Button) Pressed() bool {
	return b.pressed(b.pin.Read())
}

func (b *Button) pressed(l gpio.Level) bool {
	return (l == gpio.High) == b.activeHigh
}

// Run configures the pin for edge detection and calls fn for every debounced
// transition until ctx is done.
func (b *Button) Run(ctx context.Context, fn func(pressed bool)) error {
	pull := gpio.PullUp
	if b.activeHigh {
		pull = gpio.PullDown
	}
	if err := b.pin.In(pull, gpio.BothEdges); err != nil {
		return fmt.Errorf("failed to configure %s: %w", b.pin, err)
	}
	defer func() { _ = b.pin.Halt() }()

	state := b.Pressed()
	var last time.Time
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !b.pin.WaitForEdge(pollInterval) {
			continue
		}

		now := b.now()
		pressed := b.Pressed()
		if pressed == state || (!last.IsZero() && now.Sub(last) < b.debounce) {
			continue
		}
		state, last = pressed, now
		b.log.Debug().Str("pin", b.pin.Name()).Bool("pressed", pressed).Msg("trigger edge")
		fn(pressed)
	}
}
