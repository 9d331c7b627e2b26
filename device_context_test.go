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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationsContextCancellation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		run      func(ctx context.Context, d *Device) error
		name     string
		category string
	}{
		{
			name:     "firmware version",
			category: CategoryFirmwareVersion,
			run: func(ctx context.Context, d *Device) error {
				_, err := d.FirmwareVersion(ctx)
				return err
			},
		},
		{
			name:     "battery level",
			category: CategoryBattery,
			run: func(ctx context.Context, d *Device) error {
				_, err := d.BatteryLevel(ctx)
				return err
			},
		},
		{
			name:     "power",
			category: CategoryPowerGet,
			run: func(ctx context.Context, d *Device) error {
				_, err := d.Power(ctx)
				return err
			},
		},
		{
			name:     "single inventory",
			category: CategoryInventorySingle,
			run: func(ctx context.Context, d *Device) error {
				_, err := d.SingleInventory(ctx)
				return err
			},
		},
		{
			name:     "buzzer",
			category: CategoryBuzzer,
			run: func(ctx context.Context, d *Device) error {
				return d.SetBuzzer(ctx, false)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// The mock has no replies configured so every request hangs.
			device, _ := newTestDevice(t, WithCategoryTimeout(tt.category, 200*time.Millisecond))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			err := tt.run(ctx, device)
			require.ErrorIs(t, err, context.DeadlineExceeded)

			// The category stays claimed until the reader answers or its
			// own timeout expires.
			assert.True(t, device.Busy(tt.category))
			require.Eventually(t, func() bool { return !device.Busy(tt.category) },
				time.Second, 5*time.Millisecond)
		})
	}
}

func TestStartInventoryContextCancellation(t *testing.T) {
	t.Parallel()

	device, _ := newTestDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := device.StartInventory(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, device.Scanning())
}
