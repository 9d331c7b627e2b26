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

// Package inventory decodes the tag records a reader reports during
// inventory rounds and bank reads.
package inventory

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Record errors
var (
	ErrTruncatedRecord = errors.New("truncated tag record")
	ErrMalformedRecord = errors.New("malformed tag record")
)

// MaxFieldLength is the largest EPC, TID or USER field a record may carry.
const MaxFieldLength = 66

// Profile selects which memory banks every inventory record carries.
type Profile byte

// Inventory profiles, as encoded in the tag format command.
const (
	ProfileEPC        Profile = 0x00
	ProfileEPCTID     Profile = 0x01
	ProfileEPCTIDUser Profile = 0x02
)

// HasTID reports whether records carry a TID field.
func (p Profile) HasTID() bool {
	return p == ProfileEPCTID || p == ProfileEPCTIDUser
}

// HasUser reports whether records carry a USER field.
func (p Profile) HasUser() bool {
	return p == ProfileEPCTIDUser
}

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool {
	return p <= ProfileEPCTIDUser
}

func (p Profile) String() string {
	switch p {
	case ProfileEPC:
		return "EPC"
	case ProfileEPCTID:
		return "EPC+TID"
	case ProfileEPCTIDUser:
		return "EPC+TID+USER"
	default:
		return fmt.Sprintf("Profile(%d)", byte(p))
	}
}

// ParseProfile accepts the names returned by String, case-insensitively.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EPC":
		return ProfileEPC, nil
	case "EPC+TID", "TID":
		return ProfileEPCTID, nil
	case "EPC+TID+USER", "USER":
		return ProfileEPCTIDUser, nil
	default:
		return 0, fmt.Errorf("unknown inventory profile %q", s)
	}
}

// Bank is a Gen2 tag memory bank.
type Bank byte

// Memory banks
const (
	BankReserved Bank = 0x00
	BankEPC      Bank = 0x01
	BankTID      Bank = 0x02
	BankUser     Bank = 0x03
)

// Valid reports whether b is one of the four banks.
func (b Bank) Valid() bool {
	return b <= BankUser
}

func (b Bank) String() string {
	switch b {
	case BankReserved:
		return "RESERVED"
	case BankEPC:
		return "EPC"
	case BankTID:
		return "TID"
	case BankUser:
		return "USER"
	default:
		return fmt.Sprintf("Bank(%d)", byte(b))
	}
}

// ParseBank accepts the names returned by String, case-insensitively.
func ParseBank(s string) (Bank, error) {
	for b := BankReserved; b <= BankUser; b++ {
		if strings.EqualFold(strings.TrimSpace(s), b.String()) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown memory bank %q", s)
}

// TagRecord is one observed tag.
type TagRecord struct {
	EPC      []byte
	TID      []byte
	User     []byte
	Reserved []byte
	// RSSI is the received signal strength in dBm.
	RSSI int
	// ReadCount is how many sightings the record stands for.
	ReadCount int
}

// EPCHex returns the EPC as upper-case hex, the key used for deduplication.
func (r TagRecord) EPCHex() string {
	return strings.ToUpper(hex.EncodeToString(r.EPC))
}

// TIDHex returns the TID as upper-case hex.
func (r TagRecord) TIDHex() string {
	return strings.ToUpper(hex.EncodeToString(r.TID))
}

// UserHex returns the USER bank data as upper-case hex.
func (r TagRecord) UserHex() string {
	return strings.ToUpper(hex.EncodeToString(r.User))
}

// RecordFromBank wraps the data of a bank read in a record.
func RecordFromBank(bank Bank, data []byte) TagRecord {
	buf := append([]byte(nil), data...)
	rec := TagRecord{ReadCount: 1}
	switch bank {
	case BankEPC:
		rec.EPC = buf
	case BankTID:
		rec.TID = buf
	case BankUser:
		rec.User = buf
	case BankReserved:
		rec.Reserved = buf
	}
	return rec
}

// ParseHex decodes an EPC or mask typed by a user. Spaces and colons are
// ignored.
func ParseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

// AppendRecord encodes rec in the record layout of profile and appends it
// to dst. Fields longer than MaxFieldLength are truncated.
func AppendRecord(dst []byte, profile Profile, rec TagRecord) []byte {
	dst = appendField(dst, rec.EPC)
	if profile.HasTID() {
		dst = appendField(dst, rec.TID)
	}
	if profile.HasUser() {
		dst = appendField(dst, rec.User)
	}
	return binary.BigEndian.AppendUint16(dst, uint16(int16(rec.RSSI)))
}

func appendField(dst, field []byte) []byte {
	if len(field) > MaxFieldLength {
		field = field[:MaxFieldLength]
	}
	dst = append(dst, byte(len(field)))
	return append(dst, field...)
}
