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

// Package frame implements the reader's serial framing: header, length,
// command, payload, XOR block check character and CRLF tail.
package frame

// Frame markers
const (
	Header1 = 0xC8 // First header byte
	Header2 = 0x8C // Second header byte
	Tail1   = 0x0D // First tail byte (CR)
	Tail2   = 0x0A // Second tail byte (LF)
)

// Frame layout
const (
	// HeaderLength covers the two markers, the 16-bit length and the command.
	HeaderLength = 5
	// TrailerLength covers the BCC and the two tail bytes.
	TrailerLength = 3
	// MinFrameLength is an empty-payload frame.
	MinFrameLength = HeaderLength + TrailerLength
	// DefaultMaxFrameLength bounds the length field before allocation.
	DefaultMaxFrameLength = 1024
	// AbsoluteMaxFrameLength is the largest value the 16-bit length field holds.
	AbsoluteMaxFrameLength = 0xFFFF
)

// Status bytes returned in single-byte response payloads
const (
	StatusSuccess = 0x01
	StatusFailure = 0x00
)

// Request command codes. A response carries the request code plus one.
const (
	CmdHardwareVersion = 0x00
	CmdFirmwareVersion = 0x02
	CmdDeviceID        = 0x04
	CmdSoftwareReset   = 0x06
	CmdSetPower        = 0x10
	CmdGetPower        = 0x12
	CmdSetGen2         = 0x20
	CmdGetGen2         = 0x22
	CmdSetRegion       = 0x2C
	CmdGetRegion       = 0x2E
	CmdSetHopping      = 0x30
	CmdGetHopping      = 0x32
	CmdTemperature     = 0x34
	CmdSetRFLink       = 0x52
	CmdGetRFLink       = 0x54
	CmdSetKey          = 0x5A
	CmdGetKey          = 0x5C
	CmdEncrypt         = 0x5E
	CmdDecrypt         = 0x60
	CmdUserEncrypt     = 0x62
	CmdUserDecrypt     = 0x64
	CmdSetFilter       = 0x6E
	CmdSetTagFormat    = 0x70
	CmdGetTagFormat    = 0x72
	CmdSingleInventory = 0x80
	CmdStartInventory  = 0x82
	CmdReadTag         = 0x84
	CmdWriteTag        = 0x86
	CmdLockTag         = 0x88
	CmdKillTag         = 0x8A
	CmdStopInventory   = 0x8C
	CmdUpgradeEnter    = 0xC0
	CmdUpgradeBegin    = 0xC2
	CmdUpgradeData     = 0xC4
	CmdUpgradeExit     = 0xC6
	CmdBuzzer          = 0xE2
	CmdBattery         = 0xE4
)

// Unsolicited notifications sent by the reader.
const (
	NotifyTags    = 0xE1
	NotifyTrigger = 0xE6
)

// ResponseCode returns the command code a reply to cmd carries.
func ResponseCode(cmd byte) byte {
	return cmd + 1
}
