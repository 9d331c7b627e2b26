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
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame errors
var (
	ErrMalformedFrame  = errors.New("malformed frame")
	ErrPayloadTooLarge = errors.New("payload too large for frame")
)

// Frame is a decoded command or notification.
type Frame struct {
	Payload []byte
	Command byte
}

// Limits bounds the frames a codec accepts.
type Limits struct {
	// MaxFrameLength is the largest total frame length, header and tail
	// included.
	MaxFrameLength int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxFrameLength: DefaultMaxFrameLength}
}

// Validate reports whether the limits can frame at least an empty payload.
func (l Limits) Validate() error {
	if l.MaxFrameLength < MinFrameLength || l.MaxFrameLength > AbsoluteMaxFrameLength {
		return fmt.Errorf("max frame length %d outside [%d, %d]",
			l.MaxFrameLength, MinFrameLength, AbsoluteMaxFrameLength)
	}
	return nil
}

// MaxPayload returns the largest payload that fits in one frame.
func (l Limits) MaxPayload() int {
	return l.MaxFrameLength - MinFrameLength
}

// Encode builds a frame using the default limits.
func Encode(cmd byte, payload []byte) ([]byte, error) {
	return DefaultLimits().Encode(cmd, payload)
}

// Encode builds the wire bytes for cmd and payload.
func (l Limits) Encode(cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > l.MaxPayload() {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), l.MaxPayload())
	}

	total := MinFrameLength + len(payload)
	buf := make([]byte, 0, total)
	buf = append(buf, Header1, Header2)
	buf = binary.BigEndian.AppendUint16(buf, uint16(total))
	buf = append(buf, cmd)
	buf = append(buf, payload...)
	buf = append(buf, Checksum(buf[2:]), Tail1, Tail2)
	return buf, nil
}

// ValidateFrame checks markers, length, tail and BCC of one complete frame.
func ValidateFrame(raw []byte) error {
	if len(raw) < MinFrameLength {
		return fmt.Errorf("%w: %d bytes is shorter than the minimum frame", ErrMalformedFrame, len(raw))
	}
	if raw[0] != Header1 || raw[1] != Header2 {
		return fmt.Errorf("%w: bad header %02X %02X", ErrMalformedFrame, raw[0], raw[1])
	}
	declared := int(binary.BigEndian.Uint16(raw[2:4]))
	if declared != len(raw) {
		return fmt.Errorf("%w: length field %d, frame is %d bytes", ErrMalformedFrame, declared, len(raw))
	}
	n := len(raw)
	if raw[n-2] != Tail1 || raw[n-1] != Tail2 {
		return fmt.Errorf("%w: bad tail %02X %02X", ErrMalformedFrame, raw[n-2], raw[n-1])
	}
	if want, got := Checksum(raw[2:n-3]), raw[n-3]; want != got {
		return fmt.Errorf("%w: checksum mismatch: expected %02X, got %02X", ErrMalformedFrame, want, got)
	}
	return nil
}

// Decode validates a complete frame and returns its command and a copy of
// its payload.
func Decode(raw []byte) (Frame, error) {
	if err := ValidateFrame(raw); err != nil {
		return Frame{}, err
	}
	return extract(raw), nil
}

func extract(raw []byte) Frame {
	body := raw[HeaderLength : len(raw)-TrailerLength]
	payload := make([]byte, len(body))
	copy(payload, body)
	return Frame{Command: raw[4], Payload: payload}
}
