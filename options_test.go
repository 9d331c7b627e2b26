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
	"testing"
	"time"

	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDeviceConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultDeviceConfig()
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 200*time.Millisecond, cfg.EventRate)
	assert.Equal(t, inventory.ProfileEPC, cfg.Profile)
	assert.False(t, cfg.SoundEnabled)
	assert.Equal(t, 5*time.Second, cfg.CategoryTimeouts[CategoryInventorySingle])
}

func TestOptions(t *testing.T) {
	t.Parallel()

	device, _ := newTestDevice(t,
		WithTimeout(time.Second),
		WithCategoryTimeout(CategoryBattery, 50*time.Millisecond),
		WithEventRate(time.Second),
		WithSound(true),
		WithRepeatSound(true),
		WithSoundFilter("E200"),
		WithEventBuffer(8),
		WithFrameLimits(256),
		WithProfile(inventory.ProfileEPCTID),
	)

	assert.Equal(t, time.Second, device.timeoutFor(CategoryTemperature))
	assert.Equal(t, 50*time.Millisecond, device.timeoutFor(CategoryBattery))
	assert.Equal(t, time.Second, device.agg.EventRate())
	assert.True(t, device.agg.SoundEnabled())
	assert.Equal(t, 8, cap(device.events))
	assert.Equal(t, 256, device.limits().MaxFrameLength)
	assert.Equal(t, inventory.ProfileEPCTID, device.Profile())
}

func TestWithConfig_CopiesInput(t *testing.T) {
	t.Parallel()

	cfg := DefaultDeviceConfig()
	cfg.SoundEnabled = true
	device, _ := newTestDevice(t, WithConfig(cfg))

	cfg.CategoryTimeouts[CategoryBattery] = time.Hour
	assert.NotEqual(t, time.Hour, device.timeoutFor(CategoryBattery))
	assert.True(t, device.agg.SoundEnabled())

	_, err := New(NewMockTransport(), WithConfig(nil))
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestOptionValidation(t *testing.T) {
	t.Parallel()

	for name, opt := range map[string]Option{
		"negative event rate":   WithEventRate(-time.Second),
		"negative buffer":       WithEventBuffer(-1),
		"zero category timeout": WithCategoryTimeout(CategoryRead, 0),
		"bad profile":           WithProfile(inventory.Profile(9)),
		"oversized frames":      WithFrameLimits(1 << 20),
	} {
		_, err := New(NewMockTransport(), opt)
		require.ErrorIs(t, err, ErrInvalidParameter, name)
	}
}
