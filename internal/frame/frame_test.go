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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_BatteryRequest(t *testing.T) {
	t.Parallel()

	raw, err := Encode(CmdBattery, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC8, 0x8C, 0x00, 0x08, 0xE4, 0xEC, 0x0D, 0x0A}, raw)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
		cmd     byte
	}{
		{name: "empty payload", cmd: CmdGetPower, payload: []byte{}},
		{name: "single byte", cmd: CmdBuzzer, payload: []byte{0x01}},
		{name: "marker bytes in payload", cmd: CmdEncrypt, payload: []byte{0xC8, 0x8C, 0x0D, 0x0A}},
		{name: "max payload", cmd: CmdUpgradeData, payload: bytes.Repeat([]byte{0xA5}, DefaultMaxFrameLength-MinFrameLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw, err := Encode(tt.cmd, tt.payload)
			require.NoError(t, err)
			assert.Len(t, raw, MinFrameLength+len(tt.payload))

			f, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, f.Command)
			assert.Equal(t, tt.payload, f.Payload)
		})
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	t.Parallel()

	_, err := Encode(CmdUpgradeData, make([]byte, DefaultMaxFrameLength))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	small := Limits{MaxFrameLength: 16}
	_, err = small.Encode(CmdEncrypt, make([]byte, 9))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	_, err = small.Encode(CmdEncrypt, make([]byte, 8))
	require.NoError(t, err)
}

func TestDecode_Rejects(t *testing.T) {
	t.Parallel()

	good, err := Encode(CmdTemperature, []byte{0x00, 0x19})
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		c := append([]byte(nil), good...)
		return f(c)
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "too short", raw: good[:5]},
		{name: "bad header", raw: mutate(func(b []byte) []byte { b[1] = 0x00; return b })},
		{name: "length mismatch", raw: mutate(func(b []byte) []byte { b[3]++; return b })},
		{name: "bad tail", raw: mutate(func(b []byte) []byte { b[len(b)-1] = 0x00; return b })},
		{name: "bad checksum", raw: mutate(func(b []byte) []byte { b[len(b)-3] ^= 0xFF; return b })},
		{name: "payload flipped", raw: mutate(func(b []byte) []byte { b[5] ^= 0x01; return b })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.raw)
			require.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestDecode_PayloadIsCopied(t *testing.T) {
	t.Parallel()

	raw, err := Encode(CmdDecrypt, []byte{1, 2, 3})
	require.NoError(t, err)
	f, err := Decode(raw)
	require.NoError(t, err)

	raw[5] = 0xFF
	assert.Equal(t, []byte{1, 2, 3}, f.Payload)
}

func TestLimits_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultLimits().Validate())
	require.NoError(t, Limits{MaxFrameLength: MinFrameLength}.Validate())
	require.Error(t, Limits{MaxFrameLength: MinFrameLength - 1}.Validate())
	require.Error(t, Limits{MaxFrameLength: AbsoluteMaxFrameLength + 1}.Validate())
}

func TestResponseCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, byte(0xE5), ResponseCode(CmdBattery))
	assert.Equal(t, byte(0x85), ResponseCode(CmdReadTag))
}
