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
	"encoding/binary"
	"fmt"
)

var marker = []byte{Header1, Header2}

// Deframer reassembles frames from an arbitrarily chunked byte stream.
// It is not safe for concurrent use.
type Deframer struct {
	buf    []byte
	limits Limits
}

// NewDeframer returns a deframer bounded by limits.
func NewDeframer(limits Limits) *Deframer {
	return &Deframer{limits: limits}
}

// Feed appends data to the buffer and returns every complete frame now
// available. Invalid frames are dropped and reported in errs; scanning
// resumes one byte past the bad marker. Bytes of an incomplete frame stay
// buffered until the next call.
func (d *Deframer) Feed(data []byte) (frames []Frame, errs []error) {
	d.buf = append(d.buf, data...)

	for {
		idx := bytes.Index(d.buf, marker)
		if idx < 0 {
			d.dropNoise()
			break
		}
		if idx > 0 {
			d.consume(idx)
		}
		if len(d.buf) < 4 {
			break
		}

		total := int(binary.BigEndian.Uint16(d.buf[2:4]))
		if total < MinFrameLength || total > d.limits.MaxFrameLength {
			errs = append(errs, fmt.Errorf("%w: length field %d outside [%d, %d]",
				ErrMalformedFrame, total, MinFrameLength, d.limits.MaxFrameLength))
			d.consume(1)
			continue
		}
		if len(d.buf) < total {
			break
		}

		raw := d.buf[:total]
		if err := ValidateFrame(raw); err != nil {
			errs = append(errs, err)
			d.consume(1)
			continue
		}
		frames = append(frames, extract(raw))
		d.consume(total)
	}

	return frames, errs
}

// dropNoise discards bytes that cannot start a frame, keeping a trailing
// first marker byte whose partner may arrive in the next chunk.
func (d *Deframer) dropNoise() {
	if n := len(d.buf); n > 0 && d.buf[n-1] == Header1 {
		d.consume(n - 1)
		return
	}
	d.buf = d.buf[:0]
}

func (d *Deframer) consume(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Deframer) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered bytes.
func (d *Deframer) Reset() {
	d.buf = d.buf[:0]
}
