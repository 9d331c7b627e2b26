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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/inventory"
)

// Operation categories. At most one request per category is outstanding.
const (
	CategoryHardwareVersion = "hardware-version"
	CategoryFirmwareVersion = "firmware-version"
	CategoryDeviceID        = "device-id"
	CategoryBattery         = "battery"
	CategoryTemperature     = "temperature"
	CategoryTagFormatGet    = "tag-format.get"
	CategoryTagFormatSet    = "tag-format.set"
	CategoryPowerGet        = "power.get"
	CategoryPowerSet        = "power.set"
	CategoryRegionGet       = "region.get"
	CategoryRegionSet       = "region.set"
	CategoryGen2Get         = "gen2.get"
	CategoryGen2Set         = "gen2.set"
	CategoryRFLinkGet       = "rf-link.get"
	CategoryRFLinkSet       = "rf-link.set"
	CategoryHoppingGet      = "hopping.get"
	CategoryHoppingSet      = "hopping.set"
	CategoryBuzzer          = "buzzer"
	CategoryFilter          = "filter"
	CategoryInventorySingle = "inventory.single"
	CategoryInventoryStart  = "inventory.start"
	CategoryInventoryStop   = "inventory.stop"
	CategoryRead            = "read"
	CategoryWrite           = "write"
	CategoryLock            = "lock"
	CategoryKill            = "kill"
	CategoryKeyGet          = "key.get"
	CategoryKeySet          = "key.set"
	CategoryEncrypt         = "encrypt"
	CategoryDecrypt         = "decrypt"
	CategoryUserEncrypt     = "user.encrypt"
	CategoryUserDecrypt     = "user.decrypt"
	CategoryUpgrade         = "upgrade"
)

// responseCategories maps a response command to the category it resolves.
var responseCategories = map[byte]string{
	frame.ResponseCode(frame.CmdHardwareVersion): CategoryHardwareVersion,
	frame.ResponseCode(frame.CmdFirmwareVersion): CategoryFirmwareVersion,
	frame.ResponseCode(frame.CmdDeviceID):        CategoryDeviceID,
	frame.ResponseCode(frame.CmdSetGen2):         CategoryGen2Set,
	frame.ResponseCode(frame.CmdGetGen2):         CategoryGen2Get,
	frame.ResponseCode(frame.CmdSetHopping):      CategoryHoppingSet,
	frame.ResponseCode(frame.CmdGetHopping):      CategoryHoppingGet,
	frame.ResponseCode(frame.CmdSetRFLink):       CategoryRFLinkSet,
	frame.ResponseCode(frame.CmdGetRFLink):       CategoryRFLinkGet,
	frame.ResponseCode(frame.CmdUserEncrypt):     CategoryUserEncrypt,
	frame.ResponseCode(frame.CmdUserDecrypt):     CategoryUserDecrypt,
	frame.ResponseCode(frame.CmdSetPower):        CategoryPowerSet,
	frame.ResponseCode(frame.CmdGetPower):        CategoryPowerGet,
	frame.ResponseCode(frame.CmdSetRegion):       CategoryRegionSet,
	frame.ResponseCode(frame.CmdGetRegion):       CategoryRegionGet,
	frame.ResponseCode(frame.CmdTemperature):     CategoryTemperature,
	frame.ResponseCode(frame.CmdSetKey):          CategoryKeySet,
	frame.ResponseCode(frame.CmdGetKey):          CategoryKeyGet,
	frame.ResponseCode(frame.CmdEncrypt):         CategoryEncrypt,
	frame.ResponseCode(frame.CmdDecrypt):         CategoryDecrypt,
	frame.ResponseCode(frame.CmdSetFilter):       CategoryFilter,
	frame.ResponseCode(frame.CmdSetTagFormat):    CategoryTagFormatSet,
	frame.ResponseCode(frame.CmdGetTagFormat):    CategoryTagFormatGet,
	frame.ResponseCode(frame.CmdSingleInventory): CategoryInventorySingle,
	frame.ResponseCode(frame.CmdStartInventory):  CategoryInventoryStart,
	frame.ResponseCode(frame.CmdReadTag):         CategoryRead,
	frame.ResponseCode(frame.CmdWriteTag):        CategoryWrite,
	frame.ResponseCode(frame.CmdLockTag):         CategoryLock,
	frame.ResponseCode(frame.CmdKillTag):         CategoryKill,
	frame.ResponseCode(frame.CmdStopInventory):   CategoryInventoryStop,
	frame.ResponseCode(frame.CmdUpgradeEnter):    CategoryUpgrade,
	frame.ResponseCode(frame.CmdUpgradeBegin):    CategoryUpgrade,
	frame.ResponseCode(frame.CmdUpgradeData):     CategoryUpgrade,
	frame.ResponseCode(frame.CmdUpgradeExit):     CategoryUpgrade,
	frame.ResponseCode(frame.CmdBuzzer):          CategoryBuzzer,
	frame.ResponseCode(frame.CmdBattery):         CategoryBattery,
}

// Power limits in dBm
const (
	MinPower = 5.0
	MaxPower = 30.0
)

// PowerConfig is the RF output of one antenna, in dBm.
type PowerConfig struct {
	Read    float64
	Write   float64
	Antenna byte
}

func (p PowerConfig) encode(save bool) ([]byte, error) {
	for _, v := range []float64{p.Read, p.Write} {
		if v < MinPower || v > MaxPower {
			return nil, fmt.Errorf("%w: power %.2f dBm outside [%.0f, %.0f]", ErrInvalidParameter, v, MinPower, MaxPower)
		}
	}
	out := []byte{p.Antenna, boolByte(save)}
	out = binary.BigEndian.AppendUint16(out, uint16(math.Round(p.Read*100)))
	out = binary.BigEndian.AppendUint16(out, uint16(math.Round(p.Write*100)))
	return out, nil
}

func parsePowerConfig(payload []byte) (PowerConfig, error) {
	if len(payload) < 5 {
		return PowerConfig{}, fmt.Errorf("%w: power response is %d bytes", ErrMalformedFrame, len(payload))
	}
	return PowerConfig{
		Antenna: payload[0],
		Read:    float64(binary.BigEndian.Uint16(payload[1:3])) / 100,
		Write:   float64(binary.BigEndian.Uint16(payload[3:5])) / 100,
	}, nil
}

// Region is a regulatory frequency plan.
type Region byte

// Frequency regions
const (
	RegionChina920 Region = 0x01
	RegionChina840 Region = 0x02
	RegionEurope   Region = 0x04
	RegionUSA      Region = 0x08
	RegionKorea    Region = 0x16
	RegionJapan    Region = 0x32
)

var regionNames = map[Region]string{
	RegionChina920: "CN920",
	RegionChina840: "CN840",
	RegionEurope:   "EU",
	RegionUSA:      "US",
	RegionKorea:    "KR",
	RegionJapan:    "JP",
}

func (r Region) String() string {
	if name, ok := regionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Region(0x%02X)", byte(r))
}

// Valid reports whether r is a known region.
func (r Region) Valid() bool {
	_, ok := regionNames[r]
	return ok
}

// ParseRegion accepts the names returned by String.
func ParseRegion(s string) (Region, error) {
	for r, name := range regionNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown region %q", ErrInvalidParameter, s)
}

// TagFormat selects which banks inventory records carry.
type TagFormat struct {
	Profile inventory.Profile
	// UserAddr and UserWords select the USER window for ProfileEPCTIDUser.
	UserAddr  byte
	UserWords byte
}

func (f TagFormat) encode() ([]byte, error) {
	if !f.Profile.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, f.Profile)
	}
	return []byte{byte(f.Profile), f.UserAddr, f.UserWords}, nil
}

func parseTagFormat(payload []byte) (TagFormat, error) {
	if len(payload) < 3 {
		return TagFormat{}, fmt.Errorf("%w: tag format response is %d bytes", ErrMalformedFrame, len(payload))
	}
	f := TagFormat{Profile: inventory.Profile(payload[0]), UserAddr: payload[1], UserWords: payload[2]}
	if !f.Profile.Valid() {
		return TagFormat{}, fmt.Errorf("%w: unknown profile %d", ErrMalformedFrame, payload[0])
	}
	return f, nil
}

// Filter selects tags whose bank contents at Addr match Mask. Addr and
// Length are in bits.
type Filter struct {
	Mask   []byte
	Addr   uint16
	Length uint16
	Bank   inventory.Bank
}

// EPCFilter matches tags whose EPC starts with epc.
func EPCFilter(epc []byte) *Filter {
	return &Filter{
		Bank:   inventory.BankEPC,
		Addr:   32,
		Length: uint16(len(epc) * 8),
		Mask:   append([]byte(nil), epc...),
	}
}

// appendFilter encodes f, or the empty filter when f is nil.
func appendFilter(dst []byte, f *Filter) ([]byte, error) {
	if f == nil || f.Length == 0 {
		return append(dst, 0x00, 0x00, 0x00, 0x00, 0x00), nil
	}
	if !f.Bank.Valid() {
		return nil, fmt.Errorf("%w: filter bank %v", ErrInvalidParameter, f.Bank)
	}
	if want := (int(f.Length) + 7) / 8; len(f.Mask) != want {
		return nil, fmt.Errorf("%w: filter of %d bits needs %d mask bytes, got %d",
			ErrInvalidParameter, f.Length, want, len(f.Mask))
	}
	dst = append(dst, byte(f.Bank))
	dst = binary.BigEndian.AppendUint16(dst, f.Addr)
	dst = binary.BigEndian.AppendUint16(dst, f.Length)
	return append(dst, f.Mask...), nil
}

// ReadRequest reads Words 16-bit words from Bank starting at word Addr.
type ReadRequest struct {
	Filter   *Filter
	Password uint32
	Addr     uint16
	Words    uint16
	Bank     inventory.Bank
}

func (r ReadRequest) encode() ([]byte, error) {
	if !r.Bank.Valid() {
		return nil, fmt.Errorf("%w: bank %v", ErrInvalidParameter, r.Bank)
	}
	if r.Words == 0 {
		return nil, fmt.Errorf("%w: read of zero words", ErrInvalidParameter)
	}
	out := binary.BigEndian.AppendUint32(nil, r.Password)
	out, err := appendFilter(out, r.Filter)
	if err != nil {
		return nil, err
	}
	out = append(out, byte(r.Bank))
	out = binary.BigEndian.AppendUint16(out, r.Addr)
	return binary.BigEndian.AppendUint16(out, r.Words), nil
}

// WriteRequest writes Data, a whole number of words, to Bank at word Addr.
type WriteRequest struct {
	Filter   *Filter
	Data     []byte
	Password uint32
	Addr     uint16
	Bank     inventory.Bank
}

func (r WriteRequest) encode() ([]byte, error) {
	if !r.Bank.Valid() {
		return nil, fmt.Errorf("%w: bank %v", ErrInvalidParameter, r.Bank)
	}
	if len(r.Data) == 0 || len(r.Data)%2 != 0 {
		return nil, fmt.Errorf("%w: write data must be a non-empty whole number of words, got %d bytes",
			ErrInvalidParameter, len(r.Data))
	}
	out := binary.BigEndian.AppendUint32(nil, r.Password)
	out, err := appendFilter(out, r.Filter)
	if err != nil {
		return nil, err
	}
	out = append(out, byte(r.Bank))
	out = binary.BigEndian.AppendUint16(out, r.Addr)
	out = binary.BigEndian.AppendUint16(out, uint16(len(r.Data)/2))
	return append(out, r.Data...), nil
}

// LockTarget is a lockable memory area.
type LockTarget int

// Lock targets in Gen2 payload order
const (
	LockKillPassword LockTarget = iota
	LockAccessPassword
	LockEPC
	LockTID
	LockUser
)

// LockAction is the permission applied to a target.
type LockAction int

// Lock actions
const (
	LockOpen LockAction = iota
	LockPermaOpen
	LockSecured
	LockPermaSecured
)

// LockSpec pairs a target with an action.
type LockSpec struct {
	Target LockTarget
	Action LockAction
}

// EncodeLockPayload builds the 20-bit Gen2 mask and action fields, right
// aligned in three bytes. Targets not listed keep their state.
func EncodeLockPayload(specs ...LockSpec) ([3]byte, error) {
	var out [3]byte
	if len(specs) == 0 {
		return out, fmt.Errorf("%w: no lock targets", ErrInvalidParameter)
	}
	var bits uint32
	for _, s := range specs {
		if s.Target < LockKillPassword || s.Target > LockUser {
			return out, fmt.Errorf("%w: lock target %d", ErrInvalidParameter, s.Target)
		}
		if s.Action < LockOpen || s.Action > LockPermaSecured {
			return out, fmt.Errorf("%w: lock action %d", ErrInvalidParameter, s.Action)
		}
		shift := uint(8 - 2*int(s.Target))
		bits |= 0b11 << (shift + 10)
		bits |= uint32(s.Action) << shift
	}
	out[0] = byte(bits >> 16)
	out[1] = byte(bits >> 8)
	out[2] = byte(bits)
	return out, nil
}

// LockRequest applies Specs to the tags matched by Filter.
type LockRequest struct {
	Filter   *Filter
	Specs    []LockSpec
	Password uint32
}

func (r LockRequest) encode() ([]byte, error) {
	lock, err := EncodeLockPayload(r.Specs...)
	if err != nil {
		return nil, err
	}
	out := binary.BigEndian.AppendUint32(nil, r.Password)
	out, err = appendFilter(out, r.Filter)
	if err != nil {
		return nil, err
	}
	return append(out, lock[:]...), nil
}

// KeyLength is the size of an encryption key and its origin block.
const KeyLength = 16

// KeyMode selects how SetEncryptionKey treats the key.
type KeyMode byte

// Key modes
const (
	KeyModePlain   KeyMode = 0x00
	KeyModeDerived KeyMode = 0x01
)

// status checks a single-byte status reply.
func status(op string, cmd byte, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%s: %w: empty status", op, ErrMalformedFrame)
	}
	if payload[0] != frame.StatusSuccess {
		return &DeviceError{Op: op, Command: cmd, Status: payload[0]}
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}
