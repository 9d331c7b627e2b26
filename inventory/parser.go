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

package inventory

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var errFieldTooLong = fmt.Errorf("%w: field exceeds %d bytes", ErrMalformedRecord, MaxFieldLength)

// decodeRecord parses one record from the front of data. It returns n == 0
// and a nil error when data ends before the record does. A record with an
// empty EPC is consumed and reported as malformed.
func decodeRecord(profile Profile, data []byte) (rec TagRecord, n int, err error) {
	off := 0
	field := func() ([]byte, bool, error) {
		if off >= len(data) {
			return nil, false, nil
		}
		l := int(data[off])
		if l > MaxFieldLength {
			return nil, false, fmt.Errorf("%w (declared %d)", errFieldTooLong, l)
		}
		if off+1+l > len(data) {
			return nil, false, nil
		}
		out := make([]byte, l)
		copy(out, data[off+1:off+1+l])
		off += 1 + l
		return out, true, nil
	}

	fields := []*[]byte{&rec.EPC}
	if profile.HasTID() {
		fields = append(fields, &rec.TID)
	}
	if profile.HasUser() {
		fields = append(fields, &rec.User)
	}
	for _, dst := range fields {
		b, ok, ferr := field()
		if ferr != nil || !ok {
			return TagRecord{}, 0, ferr
		}
		*dst = b
	}

	if off+2 > len(data) {
		return TagRecord{}, 0, nil
	}
	rec.RSSI = int(int16(binary.BigEndian.Uint16(data[off:])))
	off += 2

	if len(rec.EPC) == 0 {
		return TagRecord{}, off, fmt.Errorf("%w: empty EPC", ErrMalformedRecord)
	}
	if len(rec.TID) == 0 {
		rec.TID = nil
	}
	if len(rec.User) == 0 {
		rec.User = nil
	}
	rec.ReadCount = 1
	return rec, off, nil
}

// Parser decodes the raw record stream of a continuous inventory. Records
// may straddle notification boundaries; a partial record is kept until the
// rest arrives. It is not safe for concurrent use.
type Parser struct {
	buf     []byte
	profile Profile
}

// NewParser returns a parser for records of profile.
func NewParser(profile Profile) *Parser {
	return &Parser{profile: profile}
}

// Profile returns the record layout the parser expects.
func (p *Parser) Profile() Profile {
	return p.profile
}

// SetProfile switches the record layout and drops any partial record.
func (p *Parser) SetProfile(profile Profile) {
	p.profile = profile
	p.Reset()
}

// Reset discards a buffered partial record without emitting it.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}

// Buffered returns the number of bytes held for a partial record.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Feed decodes every complete record in the buffered stream followed by
// payload. Each sighting is returned on its own with ReadCount 1. Records
// with an empty EPC are skipped; a field longer than MaxFieldLength makes
// the rest of the stream unparseable and drops it.
func (p *Parser) Feed(payload []byte) ([]TagRecord, []error) {
	p.buf = append(p.buf, payload...)

	var (
		records []TagRecord
		errs    []error
		off     int
	)
	for off < len(p.buf) {
		rec, n, err := decodeRecord(p.profile, p.buf[off:])
		if errors.Is(err, errFieldTooLong) {
			errs = append(errs, err)
			off = len(p.buf)
			break
		}
		if n == 0 {
			break
		}
		off += n
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	p.buf = append(p.buf[:0], p.buf[off:]...)

	return records, errs
}

// ParseAggregated decodes the reply of a single inventory round. Sightings
// of the same EPC are merged: ReadCount accumulates and the strongest RSSI
// wins. A trailing partial record yields ErrTruncatedRecord together with
// the records decoded before it.
func ParseAggregated(profile Profile, payload []byte) ([]TagRecord, error) {
	var (
		records []TagRecord
		skipped []error
		index   = make(map[string]int)
	)

	off := 0
	for off < len(payload) {
		rec, n, err := decodeRecord(profile, payload[off:])
		if errors.Is(err, errFieldTooLong) {
			return records, errors.Join(append(skipped, err)...)
		}
		if n == 0 {
			err = fmt.Errorf("%w: %d trailing bytes", ErrTruncatedRecord, len(payload)-off)
			return records, errors.Join(append(skipped, err)...)
		}
		off += n
		if err != nil {
			skipped = append(skipped, err)
			continue
		}

		key := rec.EPCHex()
		if i, seen := index[key]; seen {
			merge(&records[i], rec)
			continue
		}
		index[key] = len(records)
		records = append(records, rec)
	}

	return records, errors.Join(skipped...)
}

func merge(into *TagRecord, rec TagRecord) {
	into.ReadCount += rec.ReadCount
	if rec.RSSI > into.RSSI {
		into.RSSI = rec.RSSI
	}
	if into.TID == nil {
		into.TID = rec.TID
	}
	if into.User == nil {
		into.User = rec.User
	}
}
