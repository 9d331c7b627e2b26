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

	"github.com/ZaparooProject/go-uhf/internal/frame"
	testutil "github.com/ZaparooProject/go-uhf/internal/testing"
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProximity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rssi int
		want int
	}{
		{rssi: -120, want: 0},
		{rssi: LocateFloor, want: 0},
		{rssi: -60, want: 50},
		{rssi: -48, want: 70},
		{rssi: LocateCeiling, want: 100},
		{rssi: -10, want: 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Proximity(tt.rssi), "rssi %d", tt.rssi)
	}
}

func locateDevice(t *testing.T, epc []byte) (*Device, *MockTransport) {
	t.Helper()
	device, mock := newTestDevice(t)
	mock.SetResponse(frame.CmdSetFilter, []byte{frame.StatusSuccess})
	mock.SetResponse(frame.CmdStartInventory, []byte{frame.StatusSuccess})
	mock.SetResponse(frame.CmdStopInventory, []byte{frame.StatusSuccess})
	require.NoError(t, device.StartLocate(context.Background(), epc))
	return device, mock
}

func TestLocate_ReportsTargetOnly(t *testing.T) {
	t.Parallel()

	target := []byte{0xE2, 0x00, 0x00, 0x07}
	device, mock := locateDevice(t, target)
	assert.True(t, device.Scanning())
	assert.True(t, device.Locating())
	assert.Equal(t, []byte{frame.CmdSetFilter, frame.CmdStartInventory}, mock.SentCommands())

	// a neighbour sharing the prefix is not reported
	mock.Inject(testutil.BuildTagNotification(inventory.ProfileEPC,
		inventory.TagRecord{EPC: []byte{0xE2, 0x00, 0x00, 0x08}, RSSI: -40},
		inventory.TagRecord{EPC: target, RSSI: -60},
	))

	located := waitEvent[TagLocated](t, device)
	assert.Equal(t, target, located.EPC)
	assert.Equal(t, -60, located.RSSI)
	assert.Equal(t, 50, located.Proximity)

	for _, ev := range drainEvents(device) {
		_, batch := ev.(TagsScanned)
		assert.False(t, batch, "locate produced a scan batch")
		_, other := ev.(TagLocated)
		assert.False(t, other, "locate reported a second tag")
	}
	assert.Zero(t, device.InventoryMetrics().Sightings)
}

func TestLocate_StopClearsFilter(t *testing.T) {
	t.Parallel()

	device, mock := locateDevice(t, []byte{0xE2, 0x00, 0x00, 0x07})
	require.NoError(t, device.StopLocate(context.Background()))
	assert.False(t, device.Scanning())
	assert.False(t, device.Locating())

	sent := mock.Sent()
	require.Len(t, sent, 4)
	assert.Equal(t, byte(frame.CmdStopInventory), mock.SentCommands()[2])
	cleared, err := frame.Decode(sent[3])
	require.NoError(t, err)
	assert.Equal(t, byte(frame.CmdSetFilter), cleared.Command)
	want, err := appendFilter(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, want, cleared.Payload)

	// a second stop has nothing to do
	require.NoError(t, device.StopLocate(context.Background()))
	assert.Len(t, mock.Sent(), 4)

	// records after stop do not reach the locate path
	notifyEPC(mock, []byte{0xE2, 0x00, 0x00, 0x07})
	for _, ev := range drainEvents(device) {
		_, ok := ev.(TagLocated)
		assert.False(t, ok)
	}
}

func TestStartLocate_Validation(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	require.ErrorIs(t, device.StartLocate(context.Background(), nil), ErrInvalidParameter)
	assert.Empty(t, mock.Sent())

	scanning, _, _ := startScan(t)
	err := scanning.StartLocate(context.Background(), []byte{0xE2})
	require.ErrorIs(t, err, ErrInventoryActive)
	assert.False(t, scanning.Locating())
}

func TestStartLocate_FailedStartClearsFilter(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	mock.SetResponse(frame.CmdSetFilter, []byte{frame.StatusSuccess})
	mock.SetResponse(frame.CmdStartInventory, []byte{0x05})

	err := device.StartLocate(context.Background(), []byte{0xE2, 0x00})
	require.ErrorIs(t, err, ErrDeviceRejected)
	assert.False(t, device.Scanning())
	assert.False(t, device.Locating())
	assert.Equal(t, []byte{frame.CmdSetFilter, frame.CmdStartInventory, frame.CmdSetFilter},
		mock.SentCommands())
}

func TestLocate_VirtualReaderStreamsTarget(t *testing.T) {
	t.Parallel()

	target := testutil.NewVirtualTag([]byte{0x30, 0x02, 0xBB, 0xBB})
	target.RSSI = -45
	device, reader := newVirtualDevice(t,
		testutil.NewVirtualTag([]byte{0x30, 0x01, 0xAA, 0xAA}),
		target,
	)
	mock := device.transport.(*MockTransport)
	reader.SetNotifier(mock.Inject, 5*time.Millisecond)

	require.NoError(t, device.StartLocate(context.Background(), target.EPC))
	located := waitEvent[TagLocated](t, device)
	assert.Equal(t, target.EPC, located.EPC)
	assert.Equal(t, 75, located.Proximity)

	require.NoError(t, device.StopLocate(context.Background()))
	assert.False(t, reader.Scanning())
}
