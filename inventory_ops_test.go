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
	"github.com/ZaparooProject/go-uhf/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var scanEPC = []byte{0xE2, 0x00, 0x00, 0x01}

func startScan(t *testing.T, opts ...Option) (*Device, *MockTransport, *testClock) {
	t.Helper()
	device, mock := newTestDevice(t, opts...)
	clk := &testClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	device.agg.SetClock(clk.now)
	mock.SetResponse(frame.CmdStartInventory, []byte{frame.StatusSuccess})
	mock.SetResponse(frame.CmdStopInventory, []byte{frame.StatusSuccess})
	require.NoError(t, device.StartInventory(context.Background(), 0))
	require.True(t, device.Scanning())
	return device, mock, clk
}

func notifyEPC(mock *MockTransport, epc []byte) {
	mock.Inject(testutil.BuildTagNotification(inventory.ProfileEPC,
		inventory.TagRecord{EPC: epc, RSSI: -48}))
}

type eventCounts struct {
	batches [][]inventory.TagRecord
	sounds  []scan.Sound
	stopped int
}

func countEvents(d *Device) eventCounts {
	var c eventCounts
	for _, ev := range drainEvents(d) {
		switch e := ev.(type) {
		case TagsScanned:
			c.batches = append(c.batches, e.Tags)
		case SoundRequested:
			c.sounds = append(c.sounds, e.Sound)
		case InventoryStopped:
			c.stopped++
		}
	}
	return c
}

func TestInventory_ThrottledBatchesAndSingleSound(t *testing.T) {
	t.Parallel()

	device, mock, clk := startScan(t, WithSound(true), WithEventRate(100*time.Millisecond))

	notifyEPC(mock, scanEPC)
	clk.advance(30 * time.Millisecond)
	notifyEPC(mock, scanEPC)
	clk.advance(30 * time.Millisecond)
	notifyEPC(mock, scanEPC)
	clk.advance(150 * time.Millisecond)
	notifyEPC(mock, scanEPC)

	require.NoError(t, device.StopInventory(context.Background()))

	c := countEvents(device)
	require.Len(t, c.batches, 2)
	assert.Len(t, c.batches[0], 1)
	assert.Len(t, c.batches[1], 3)
	assert.Equal(t, "E2000001", c.batches[0][0].EPCHex())
	assert.Equal(t, []scan.Sound{scan.SoundFound}, c.sounds)
	assert.Equal(t, 1, c.stopped)
}

func TestInventory_ClearCacheSoundsAgain(t *testing.T) {
	t.Parallel()

	device, mock, _ := startScan(t, WithSound(true))

	notifyEPC(mock, scanEPC)
	notifyEPC(mock, scanEPC)
	assert.True(t, device.Seen("e2000001"))

	device.ClearCache()
	assert.False(t, device.Seen("E2000001"))
	notifyEPC(mock, scanEPC)

	c := countEvents(device)
	assert.Equal(t, []scan.Sound{scan.SoundFound, scan.SoundFound}, c.sounds)
}

func TestInventory_SoundFilter(t *testing.T) {
	t.Parallel()

	device, mock, _ := startScan(t, WithSound(true), WithSoundFilter("E2000002"))

	notifyEPC(mock, scanEPC)
	assert.Empty(t, countEvents(device).sounds)

	notifyEPC(mock, []byte{0xE2, 0x00, 0x00, 0x02})
	assert.Equal(t, []scan.Sound{scan.SoundFound}, countEvents(device).sounds)

	device.SetSoundFilter(nil)
	notifyEPC(mock, []byte{0xE2, 0x00, 0x00, 0x03})
	assert.Equal(t, []scan.Sound{scan.SoundFound}, countEvents(device).sounds)
}

func TestInventory_StopFlushesAndResets(t *testing.T) {
	t.Parallel()

	device, mock, _ := startScan(t, WithEventRate(time.Hour))

	notifyEPC(mock, scanEPC)
	notifyEPC(mock, []byte{0xE2, 0x00, 0x00, 0x02})

	partial := testutil.BuildRecords(inventory.ProfileEPC, inventory.TagRecord{EPC: scanEPC, RSSI: -60})
	mock.InjectFrame(frame.NotifyTags, partial[:3])
	assert.NotZero(t, device.parser.Buffered())

	require.NoError(t, device.StopInventory(context.Background()))
	assert.False(t, device.Scanning())
	assert.Zero(t, device.parser.Buffered())
	assert.Zero(t, device.deframer.Buffered())
	assert.False(t, device.Seen("E2000001"))

	c := countEvents(device)
	require.Len(t, c.batches, 2)
	assert.Len(t, c.batches[1], 1, "the buffered sighting is flushed on stop")
	assert.Equal(t, 1, c.stopped)
}

func TestInventory_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	require.NoError(t, device.StopInventory(context.Background()))
	require.NoError(t, device.StopInventory(context.Background()))
	assert.Empty(t, mock.Sent())
	assert.Empty(t, drainEvents(device))
}

func TestInventory_NotificationsOutsideScanDiscarded(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t, WithSound(true))
	notifyEPC(mock, scanEPC)
	assert.Empty(t, drainEvents(device))
	assert.False(t, device.Seen("E2000001"))
}

func TestInventory_StartTwice(t *testing.T) {
	t.Parallel()

	device, _, _ := startScan(t)
	require.ErrorIs(t, device.StartInventory(context.Background(), 0), ErrInventoryActive)
	_, err := device.SingleInventory(context.Background())
	require.ErrorIs(t, err, ErrInventoryActive)
}

func TestInventory_StartRejected(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	mock.SetResponse(frame.CmdStartInventory, []byte{frame.StatusFailure})

	err := device.StartInventory(context.Background(), 0)
	require.ErrorIs(t, err, ErrDeviceRejected)
	var de *DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, byte(frame.CmdStartInventory), de.Command)
	assert.False(t, device.Scanning())
}

func TestInventory_MalformedRecordReported(t *testing.T) {
	t.Parallel()

	device, mock, _ := startScan(t)
	mock.InjectFrame(frame.NotifyTags, []byte{0x00, 0xFF, 0xC0})

	ev := waitEvent[RecordSkipped](t, device)
	require.ErrorIs(t, ev.Err, ErrMalformedRecord)
}

func TestInventory_CountRoundTrip(t *testing.T) {
	t.Parallel()

	device, mock, _ := startScan(t)
	require.NoError(t, device.StopInventory(context.Background()))

	sent := mock.Sent()
	require.Len(t, sent, 2)
	start, err := frame.Decode(sent[0])
	require.NoError(t, err)
	assert.Equal(t, byte(frame.CmdStartInventory), start.Command)
	assert.Equal(t, []byte{0x00, 0x00}, start.Payload)
}

func TestSingleInventory_VirtualReader(t *testing.T) {
	t.Parallel()

	a := testutil.NewVirtualTag([]byte{0x30, 0x00, 0x00, 0x0A})
	b := testutil.NewVirtualTag([]byte{0x30, 0x00, 0x00, 0x0B})
	device, _ := newVirtualDevice(t, a, b)
	device.SetSoundEnabled(true)

	tags, err := device.SingleInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "3000000A", tags[0].EPCHex())
	assert.Equal(t, 1, tags[0].ReadCount)
	assert.Equal(t, scan.SoundFound, waitEvent[SoundRequested](t, device).Sound)
}

func TestSingleInventory_NoTags(t *testing.T) {
	t.Parallel()

	device, _ := newVirtualDevice(t)
	tags, err := device.SingleInventory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestSingleInventory_Aggregates(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	payload := testutil.BuildRecords(inventory.ProfileEPC,
		inventory.TagRecord{EPC: scanEPC, RSSI: -70},
		inventory.TagRecord{EPC: scanEPC, RSSI: -50},
	)
	mock.SetResponse(frame.CmdSingleInventory, payload)

	tags, err := device.SingleInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, 2, tags[0].ReadCount)
	assert.Equal(t, -50, tags[0].RSSI)
}

func TestContinuousInventory_VirtualReaderStreams(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	device, err := New(mock, WithEventRate(0), WithProfile(inventory.ProfileEPCTID))
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })

	reader := testutil.NewVirtualReader(testutil.NewVirtualTag([]byte{0xAB, 0xCD}))
	reader.SetNotifier(mock.Inject, 5*time.Millisecond)
	mock.SetResponder(reader.Handle)

	require.NoError(t, device.SetTagFormat(context.Background(), TagFormat{Profile: inventory.ProfileEPCTID}))
	require.NoError(t, device.StartInventory(context.Background(), 0))

	batch := waitEvent[TagsScanned](t, device)
	require.NotEmpty(t, batch.Tags)
	assert.Equal(t, "ABCD", batch.Tags[0].EPCHex())
	assert.NotEmpty(t, batch.Tags[0].TID)

	require.NoError(t, device.StopInventory(context.Background()))
	waitEvent[InventoryStopped](t, device)
	assert.False(t, reader.Scanning())
}

func TestInventory_StopKeepsOtherReplies(t *testing.T) {
	t.Parallel()

	device, mock, _ := startScan(t)

	type result struct {
		err   error
		level int
	}
	done := make(chan result, 1)
	go func() {
		level, err := device.BatteryLevel(context.Background())
		done <- result{level: level, err: err}
	}()
	require.Eventually(t, func() bool { return device.Busy(CategoryBattery) },
		time.Second, time.Millisecond)

	raw := testutil.BuildResponse(frame.CmdBattery, []byte{0x40})
	mock.Inject(raw[:4])
	require.NoError(t, device.StopInventory(context.Background()))
	assert.Equal(t, 4, device.deframer.Buffered())
	mock.Inject(raw[4:])

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, 0x40, r.level)
	case <-time.After(2 * time.Second):
		t.Fatal("battery reply split across stop was lost")
	}
}

func TestInventory_HeldSightingDeliveredAfterQuietGap(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t, WithEventRate(50*time.Millisecond))
	mock.SetResponse(frame.CmdStartInventory, []byte{frame.StatusSuccess})
	require.NoError(t, device.StartInventory(context.Background(), 0))

	notifyEPC(mock, scanEPC)
	notifyEPC(mock, []byte{0xE2, 0x00, 0x00, 0x02})

	first := waitEvent[TagsScanned](t, device)
	require.Len(t, first.Tags, 1)
	assert.Equal(t, "E2000001", first.Tags[0].EPCHex())

	// No further sighting arrives; the held one still goes out.
	second := waitEvent[TagsScanned](t, device)
	require.Len(t, second.Tags, 1)
	assert.Equal(t, "E2000002", second.Tags[0].EPCHex())
	assert.True(t, device.Scanning())
	assert.Equal(t, int64(2), device.InventoryMetrics().Batches)
}
