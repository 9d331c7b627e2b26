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

package uhf

import (
	"fmt"
	"maps"
	"time"

	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/ZaparooProject/go-uhf/scan"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// CategoryTimeouts overrides Timeout per operation category.
	CategoryTimeouts map[string]time.Duration
	// SoundFilter restricts audible feedback to these EPCs, in hex.
	SoundFilter []string
	// Timeout is the default reply timeout.
	Timeout time.Duration
	// EventRate is the minimum spacing between TagsScanned events.
	EventRate time.Duration
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
	// MaxFrameLength bounds inbound and outbound frames.
	MaxFrameLength int
	// Profile is the record layout assumed for inventory data.
	Profile inventory.Profile
	// SoundEnabled turns on SoundRequested events.
	SoundEnabled bool
	// RepeatSound plays SoundSeen for tags already in the seen set.
	RepeatSound bool
}

// DefaultCategoryTimeouts returns the per-category timeouts that differ
// from the default.
func DefaultCategoryTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		CategoryInventorySingle: 5 * time.Second,
		CategoryRead:            3 * time.Second,
		CategoryWrite:           3 * time.Second,
		CategoryLock:            3 * time.Second,
		CategoryKill:            3 * time.Second,
		CategoryUpgrade:         10 * time.Second,
	}
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		CategoryTimeouts: DefaultCategoryTimeouts(),
		Timeout:          2 * time.Second,
		EventRate:        scan.DefaultEventRate,
		EventBuffer:      64,
		MaxFrameLength:   frame.DefaultMaxFrameLength,
		Profile:          inventory.ProfileEPC,
	}
}

func (c *DeviceConfig) clone() *DeviceConfig {
	out := *c
	out.CategoryTimeouts = maps.Clone(c.CategoryTimeouts)
	if out.CategoryTimeouts == nil {
		out.CategoryTimeouts = make(map[string]time.Duration)
	}
	out.SoundFilter = append([]string(nil), c.SoundFilter...)
	return &out
}

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(config *DeviceConfig) Option {
	return func(d *Device) error {
		if config == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidParameter)
		}
		d.config = config.clone()
		return nil
	}
}

// WithTimeout sets the default timeout for device operations
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithCategoryTimeout sets the timeout of one operation category
func WithCategoryTimeout(category string, timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
		}
		d.config.CategoryTimeouts[category] = timeout
		return nil
	}
}

// WithEventRate sets the minimum spacing between TagsScanned events
func WithEventRate(rate time.Duration) Option {
	return func(d *Device) error {
		if rate < 0 {
			return fmt.Errorf("%w: negative event rate", ErrInvalidParameter)
		}
		d.config.EventRate = rate
		return nil
	}
}

// WithSound turns audible feedback events on or off
func WithSound(enabled bool) Option {
	return func(d *Device) error {
		d.config.SoundEnabled = enabled
		return nil
	}
}

// WithRepeatSound plays a cue for repeat sightings too
func WithRepeatSound(enabled bool) Option {
	return func(d *Device) error {
		d.config.RepeatSound = enabled
		return nil
	}
}

// WithSoundFilter restricts audible feedback to the given EPCs
func WithSoundFilter(epcs ...string) Option {
	return func(d *Device) error {
		d.config.SoundFilter = append([]string(nil), epcs...)
		return nil
	}
}

// WithEventBuffer sets the capacity of the Events channel
func WithEventBuffer(size int) Option {
	return func(d *Device) error {
		if size < 0 {
			return fmt.Errorf("%w: negative event buffer", ErrInvalidParameter)
		}
		d.config.EventBuffer = size
		return nil
	}
}

// WithFrameLimits bounds the total length of frames
func WithFrameLimits(maxFrameLength int) Option {
	return func(d *Device) error {
		if err := (frame.Limits{MaxFrameLength: maxFrameLength}).Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		d.config.MaxFrameLength = maxFrameLength
		return nil
	}
}

// WithProfile sets the record layout assumed until TagFormat reports one
func WithProfile(profile inventory.Profile) Option {
	return func(d *Device) error {
		if !profile.Valid() {
			return fmt.Errorf("%w: %v", ErrInvalidParameter, profile)
		}
		d.config.Profile = profile
		return nil
	}
}
