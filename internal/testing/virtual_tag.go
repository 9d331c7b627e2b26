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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-uhf/inventory"
)

// Virtual tag errors
var (
	ErrTagNotPresent = errors.New("tag not present")
	ErrOutOfRange    = errors.New("address out of range")
	ErrWrongPassword = errors.New("wrong password")
	ErrBankLocked    = errors.New("bank locked")
	ErrKillPassword  = errors.New("kill password not set")
)

// Default bank sizes in words
const (
	ReservedWords = 4
	TIDWords      = 6
	UserWords     = 32
)

// VirtualTag is a simulated Gen2 tag.
type VirtualTag struct {
	locked   map[inventory.Bank]bool
	Reserved []byte
	EPC      []byte
	TID      []byte
	User     []byte
	RSSI     int
	Present  bool
	Killed   bool
}

// NewVirtualTag returns a present tag with the given EPC, a TID derived
// from it, zeroed passwords and an empty USER bank.
func NewVirtualTag(epc []byte) *VirtualTag {
	tid := make([]byte, TIDWords*2)
	copy(tid, []byte{0xE2, 0x80, 0x11, 0x05})
	copy(tid[4:], epc)
	return &VirtualTag{
		locked:   make(map[inventory.Bank]bool),
		Reserved: make([]byte, ReservedWords*2),
		EPC:      append([]byte(nil), epc...),
		TID:      tid,
		User:     make([]byte, UserWords*2),
		RSSI:     -55,
		Present:  true,
	}
}

// Record returns the inventory record of the tag for profile.
func (v *VirtualTag) Record(profile inventory.Profile) inventory.TagRecord {
	rec := inventory.TagRecord{EPC: v.EPC, RSSI: v.RSSI, ReadCount: 1}
	if profile.HasTID() {
		rec.TID = v.TID
	}
	if profile.HasUser() {
		rec.User = v.User
	}
	return rec
}

// AccessPassword returns the access password stored in the reserved bank.
func (v *VirtualTag) AccessPassword() uint32 {
	return binary.BigEndian.Uint32(v.Reserved[4:8])
}

// KillPassword returns the kill password stored in the reserved bank.
func (v *VirtualTag) KillPassword() uint32 {
	return binary.BigEndian.Uint32(v.Reserved[0:4])
}

// SetPasswords stores the kill and access passwords.
func (v *VirtualTag) SetPasswords(kill, access uint32) {
	binary.BigEndian.PutUint32(v.Reserved[0:4], kill)
	binary.BigEndian.PutUint32(v.Reserved[4:8], access)
}

func (v *VirtualTag) bank(b inventory.Bank) *[]byte {
	switch b {
	case inventory.BankReserved:
		return &v.Reserved
	case inventory.BankEPC:
		return &v.EPC
	case inventory.BankTID:
		return &v.TID
	default:
		return &v.User
	}
}

func (v *VirtualTag) available() error {
	if !v.Present || v.Killed {
		return ErrTagNotPresent
	}
	return nil
}

// ReadBank reads words from a bank starting at word addr.
func (v *VirtualTag) ReadBank(b inventory.Bank, addr, words int) ([]byte, error) {
	if err := v.available(); err != nil {
		return nil, err
	}
	mem := *v.bank(b)
	start, end := addr*2, (addr+words)*2
	if start < 0 || end > len(mem) || words <= 0 {
		return nil, fmt.Errorf("%w: %v words %d..%d", ErrOutOfRange, b, addr, addr+words)
	}
	return append([]byte(nil), mem[start:end]...), nil
}

// WriteBank writes data, a whole number of words, at word addr.
func (v *VirtualTag) WriteBank(b inventory.Bank, addr int, data []byte, password uint32) error {
	if err := v.available(); err != nil {
		return err
	}
	if v.locked[b] && password != v.AccessPassword() {
		return ErrBankLocked
	}
	if b == inventory.BankTID {
		return ErrBankLocked
	}
	mem := v.bank(b)
	start := addr * 2
	if start < 0 || start+len(data) > len(*mem) {
		return fmt.Errorf("%w: %v word %d", ErrOutOfRange, b, addr)
	}
	copy((*mem)[start:], data)
	return nil
}

// Lock marks a bank as requiring the access password for writes.
func (v *VirtualTag) Lock(b inventory.Bank, password uint32) error {
	if err := v.available(); err != nil {
		return err
	}
	if password != v.AccessPassword() {
		return ErrWrongPassword
	}
	v.locked[b] = true
	return nil
}

// Locked reports whether writes to b need the access password.
func (v *VirtualTag) Locked(b inventory.Bank) bool {
	return v.locked[b]
}

// Kill disables the tag permanently.
func (v *VirtualTag) Kill(password uint32) error {
	if err := v.available(); err != nil {
		return err
	}
	if v.KillPassword() == 0 {
		return ErrKillPassword
	}
	if password != v.KillPassword() {
		return ErrWrongPassword
	}
	v.Killed = true
	return nil
}

// Remove takes the tag out of the field.
func (v *VirtualTag) Remove() {
	v.Present = false
}

// Insert puts the tag back in the field.
func (v *VirtualTag) Insert() {
	v.Present = true
}
