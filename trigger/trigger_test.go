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

package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func runButton(t *testing.T, b *Button) (chan bool, context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan bool, 8)
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, func(pressed bool) { got <- pressed })
	}()
	return got, cancel, done
}

func next(t *testing.T, got chan bool) bool {
	t.Helper()
	select {
	case v := <-got:
		return v
	case <-time.After(time.Second):
		t.Fatal("no transition reported")
		return false
	}
}

func drained(t *testing.T, pin *gpiotest.Pin) {
	t.Helper()
	require.Eventually(t, func() bool { return len(pin.EdgesChan) == 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
}

func TestButtonPressRelease(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level, 4)}
	b := New(pin, WithDebounce(0))
	got, cancel, done := runButton(t, b)

	pin.EdgesChan <- gpio.Low
	assert.True(t, next(t, got))
	pin.EdgesChan <- gpio.High
	assert.False(t, next(t, got))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, gpio.PullUp, pin.P)
}

func TestButtonDebounce(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level, 4)}
	b := New(pin, WithDebounce(time.Hour))
	got, cancel, done := runButton(t, b)
	defer func() {
		cancel()
		<-done
	}()

	pin.EdgesChan <- gpio.Low
	assert.True(t, next(t, got))

	// contact bounce inside the window
	pin.EdgesChan <- gpio.High
	pin.EdgesChan <- gpio.Low
	drained(t, pin)
	assert.Empty(t, got)
}

func TestButtonIgnoresRepeatedLevel(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level, 4)}
	b := New(pin, WithDebounce(0))
	got, cancel, done := runButton(t, b)
	defer func() {
		cancel()
		<-done
	}()

	pin.EdgesChan <- gpio.High
	drained(t, pin)
	assert.Empty(t, got)
}

func TestButtonActiveHigh(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO27", EdgesChan: make(chan gpio.Level, 4)}
	b := New(pin, WithActiveHigh(), WithDebounce(0))
	assert.False(t, b.Pressed())

	got, cancel, done := runButton(t, b)
	pin.EdgesChan <- gpio.High
	assert.True(t, next(t, got))
	cancel()
	<-done

	assert.Equal(t, gpio.PullDown, pin.P)
}

func TestPressedLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		level      gpio.Level
		activeHigh bool
		want       bool
	}{
		{name: "active low pressed", level: gpio.Low, want: true},
		{name: "active low released", level: gpio.High, want: false},
		{name: "active high pressed", level: gpio.High, activeHigh: true, want: true},
		{name: "active high released", level: gpio.Low, activeHigh: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := &Button{activeHigh: tt.activeHigh}
			assert.Equal(t, tt.want, b.pressed(tt.level))
		})
	}
}
