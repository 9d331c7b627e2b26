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

package testing

import (
	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/inventory"
)

// BuildResponse encodes the reply to request cmd carrying payload.
func BuildResponse(cmd byte, payload []byte) []byte {
	return mustEncode(frame.ResponseCode(cmd), payload)
}

// BuildStatusResponse encodes a single-byte status reply to cmd.
func BuildStatusResponse(cmd, status byte) []byte {
	return BuildResponse(cmd, []byte{status})
}

// BuildSuccessResponse encodes a success status reply to cmd.
func BuildSuccessResponse(cmd byte) []byte {
	return BuildStatusResponse(cmd, frame.StatusSuccess)
}

// BuildTagNotification encodes an unsolicited inventory notification.
func BuildTagNotification(profile inventory.Profile, records ...inventory.TagRecord) []byte {
	return mustEncode(frame.NotifyTags, BuildRecords(profile, records...))
}

// BuildRecords encodes records back to back in the layout of profile.
func BuildRecords(profile inventory.Profile, records ...inventory.TagRecord) []byte {
	out := []byte{}
	for _, r := range records {
		out = inventory.AppendRecord(out, profile, r)
	}
	return out
}

// BuildTriggerNotification encodes a trigger key notification.
func BuildTriggerNotification(pressed bool) []byte {
	state := byte(0x00)
	if pressed {
		state = 0x01
	}
	return mustEncode(frame.NotifyTrigger, []byte{state})
}

func mustEncode(cmd byte, payload []byte) []byte {
	raw, err := frame.Encode(cmd, payload)
	if err != nil {
		panic(err)
	}
	return raw
}
