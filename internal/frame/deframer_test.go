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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, cmd byte, payload []byte) []byte {
	t.Helper()
	raw, err := Encode(cmd, payload)
	require.NoError(t, err)
	return raw
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestDeframer_SingleFrame(t *testing.T) {
	t.Parallel()

	d := NewDeframer(DefaultLimits())
	frames, errs := d.Feed(mustEncode(t, ResponseCode(CmdBattery), []byte{0x55}))
	require.Empty(t, errs)
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0xE5), frames[0].Command)
	assert.Equal(t, []byte{0x55}, frames[0].Payload)
	assert.Zero(t, d.Buffered())
}

func TestDeframer_EmptyPayloadIsNonNil(t *testing.T) {
	t.Parallel()

	d := NewDeframer(DefaultLimits())
	frames, _ := d.Feed(mustEncode(t, CmdStopInventory, nil))
	require.Len(t, frames, 1)
	assert.NotNil(t, frames[0].Payload)
	assert.Empty(t, frames[0].Payload)
}

func TestDeframer_ChunkBoundaryIndependence(t *testing.T) {
	t.Parallel()

	stream := concat(
		[]byte{0x00, 0x13},
		mustEncode(t, 0xE5, []byte{0x64}),
		[]byte{0xC8},
		mustEncode(t, NotifyTags, []byte{0x02, 0xE2, 0x00, 0xFF, 0xC4}),
		mustEncode(t, 0x35, []byte{0x00, 0x1A}),
	)

	whole := NewDeframer(DefaultLimits())
	want, _ := whole.Feed(stream)
	require.Len(t, want, 3)

	for size := 1; size <= len(stream); size++ {
		d := NewDeframer(DefaultLimits())
		var got []Frame
		for off := 0; off < len(stream); off += size {
			end := min(off+size, len(stream))
			frames, _ := d.Feed(stream[off:end])
			got = append(got, frames...)
		}
		assert.Equal(t, want, got, "chunk size %d", size)
		assert.Zero(t, d.Buffered(), "chunk size %d", size)
	}
}

func TestDeframer_CorruptFrameDoesNotBlock(t *testing.T) {
	t.Parallel()

	bad := mustEncode(t, 0xE5, []byte{0x10})
	bad[len(bad)-3] ^= 0x55
	good := mustEncode(t, 0x35, []byte{0x00, 0x20})

	d := NewDeframer(DefaultLimits())
	frames, errs := d.Feed(concat(bad, good))
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0x35), frames[0].Command)
	require.NotEmpty(t, errs)
	for _, err := range errs {
		require.ErrorIs(t, err, ErrMalformedFrame)
	}
}

func TestDeframer_OversizedLengthRejectedBeforeBuffering(t *testing.T) {
	t.Parallel()

	d := NewDeframer(Limits{MaxFrameLength: 64})
	frames, errs := d.Feed([]byte{0xC8, 0x8C, 0xFF, 0xFF, 0x01})
	assert.Empty(t, frames)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrMalformedFrame)
	assert.Zero(t, d.Buffered())
}

func TestDeframer_PartialFramePersists(t *testing.T) {
	t.Parallel()

	raw := mustEncode(t, 0x03, []byte("V1.2.3"))
	d := NewDeframer(DefaultLimits())

	frames, errs := d.Feed(raw[:7])
	assert.Empty(t, frames)
	assert.Empty(t, errs)
	assert.Equal(t, 7, d.Buffered())

	frames, errs = d.Feed(raw[7:])
	assert.Empty(t, errs)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("V1.2.3"), frames[0].Payload)
}

func TestDeframer_Reset(t *testing.T) {
	t.Parallel()

	raw := mustEncode(t, 0x03, []byte("V1"))
	d := NewDeframer(DefaultLimits())
	d.Feed(raw[:6])
	require.NotZero(t, d.Buffered())

	d.Reset()
	assert.Zero(t, d.Buffered())

	frames, _ := d.Feed(raw[6:])
	assert.Empty(t, frames)

	frames, errs := d.Feed(raw)
	assert.Empty(t, errs)
	assert.Len(t, frames, 1)
}

func TestDeframer_NoiseOnly(t *testing.T) {
	t.Parallel()

	d := NewDeframer(DefaultLimits())
	frames, errs := d.Feed([]byte{0x01, 0x02, 0x8C, 0x0D, 0x0A})
	assert.Empty(t, frames)
	assert.Empty(t, errs)
	assert.Zero(t, d.Buffered())

	frames, errs = d.Feed([]byte{0x00, 0xC8})
	assert.Empty(t, frames)
	assert.Empty(t, errs)
	assert.Equal(t, 1, d.Buffered())
}
