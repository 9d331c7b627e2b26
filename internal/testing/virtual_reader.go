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
	"sync"
	"time"

	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/inventory"
)

// Reader status codes returned by the simulation.
const (
	StatusNoTag       = 0x02
	StatusAccessError = 0x03
	StatusBadSequence = 0x04
	StatusBadRequest  = 0x05
)

// VirtualReader answers request frames the way a handheld reader does. It
// is safe for concurrent use.
type VirtualReader struct {
	notify       func([]byte)
	stop         chan struct{}
	done         chan struct{}
	Firmware     string
	Hardware     string
	filter       []byte
	key          []byte
	ID           []byte
	gen2         []byte
	hopping      []byte
	tags         []*VirtualTag
	interval     time.Duration
	mu           sync.Mutex
	Temperature  int16
	readPower    uint16
	writePower   uint16
	upgradeSeq   int
	Battery      byte
	region       byte
	rfLink       byte
	profile      inventory.Profile
	userAddr     byte
	userWords    byte
	buzzer       bool
	upgrading    bool
	Silent       bool
	upgradeBytes int
}

// NewVirtualReader returns a reader with the given tags in its field.
func NewVirtualReader(tags ...*VirtualTag) *VirtualReader {
	return &VirtualReader{
		Firmware:    "UHF-V2.3.1",
		Hardware:    "R6-HW1.0",
		Battery:     87,
		Temperature: 31,
		readPower:   3000,
		writePower:  3000,
		region:      0x08,
		key:         make([]byte, 16),
		ID:          []byte{0x20, 0x25, 0x06, 0x01, 0x00, 0x42},
		gen2:        []byte{0x00, 0x00, 0x00, 0x01, 0x04, 0x00, 0x0F, 0x01, 0x02, 0x00, 0x00, 0x01, 0x00, 0x00},
		hopping:     []byte{0x01, 0x00, 0x0E, 0x0B, 0xB0},
		rfLink:      0x01,
		tags:        tags,
		interval:    50 * time.Millisecond,
		buzzer:      true,
	}
}

// AddTag puts another tag in the field.
func (v *VirtualReader) AddTag(tag *VirtualTag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = append(v.tags, tag)
}

// Tags returns the tags in the field.
func (v *VirtualReader) Tags() []*VirtualTag {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*VirtualTag(nil), v.tags...)
}

// SetNotifier sets where continuous inventory notifications go and how
// often rounds run. Without a notifier start and stop are acknowledged but
// nothing is streamed.
func (v *VirtualReader) SetNotifier(fn func([]byte), interval time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notify = fn
	if interval > 0 {
		v.interval = interval
	}
}

// Profile returns the configured inventory profile.
func (v *VirtualReader) Profile() inventory.Profile {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profile
}

// UpgradeBytes returns how many firmware bytes were received.
func (v *VirtualReader) UpgradeBytes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.upgradeBytes
}

// Buzzer reports whether the beeper is on.
func (v *VirtualReader) Buzzer() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.buzzer
}

// Scanning reports whether continuous inventory is streaming.
func (v *VirtualReader) Scanning() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stop != nil
}

// Handle answers one request. It returns the encoded reply frames.
func (v *VirtualReader) Handle(cmd byte, payload []byte) [][]byte {
	if cmd == frame.CmdStopInventory {
		v.stopStreaming()
		return [][]byte{BuildSuccessResponse(cmd)}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Silent {
		return nil
	}
	reply := v.handleLocked(cmd, payload)
	if reply == nil {
		return nil
	}
	return [][]byte{reply}
}

func (v *VirtualReader) handleLocked(cmd byte, payload []byte) []byte {
	switch cmd {
	case frame.CmdHardwareVersion:
		return BuildResponse(cmd, []byte(v.Hardware))
	case frame.CmdFirmwareVersion:
		return BuildResponse(cmd, []byte(v.Firmware))
	case frame.CmdSoftwareReset:
		v.upgrading = false
		return nil
	case frame.CmdDeviceID:
		return BuildResponse(cmd, v.ID)
	case frame.CmdBattery:
		return BuildResponse(cmd, []byte{v.Battery})
	case frame.CmdTemperature:
		return BuildResponse(cmd, binary.BigEndian.AppendUint16(nil, uint16(v.Temperature)))
	case frame.CmdGetPower:
		out := []byte{0x01}
		out = binary.BigEndian.AppendUint16(out, v.readPower)
		return BuildResponse(cmd, binary.BigEndian.AppendUint16(out, v.writePower))
	case frame.CmdSetPower:
		if len(payload) < 6 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		v.readPower = binary.BigEndian.Uint16(payload[2:4])
		v.writePower = binary.BigEndian.Uint16(payload[4:6])
		return BuildSuccessResponse(cmd)
	case frame.CmdGetRegion:
		return BuildResponse(cmd, []byte{v.region})
	case frame.CmdSetRegion:
		if len(payload) < 2 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		v.region = payload[1]
		return BuildSuccessResponse(cmd)
	case frame.CmdGetGen2:
		return BuildResponse(cmd, v.gen2)
	case frame.CmdSetGen2:
		if len(payload) != len(v.gen2) {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		v.gen2 = append([]byte(nil), payload...)
		return BuildSuccessResponse(cmd)
	case frame.CmdGetRFLink:
		return BuildResponse(cmd, []byte{v.rfLink})
	case frame.CmdSetRFLink:
		if len(payload) != 1 || payload[0] > 3 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		v.rfLink = payload[0]
		return BuildSuccessResponse(cmd)
	case frame.CmdGetHopping:
		return BuildResponse(cmd, v.hopping)
	case frame.CmdSetHopping:
		if len(payload) < 5 || len(payload) != 1+4*int(payload[0]) {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		v.hopping = append([]byte(nil), payload...)
		return BuildSuccessResponse(cmd)
	case frame.CmdUserEncrypt, frame.CmdUserDecrypt:
		return v.userCipherLocked(cmd, payload)
	case frame.CmdGetTagFormat:
		return BuildResponse(cmd, []byte{byte(v.profile), v.userAddr, v.userWords})
	case frame.CmdSetTagFormat:
		if len(payload) < 3 || !inventory.Profile(payload[0]).Valid() {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		v.profile, v.userAddr, v.userWords = inventory.Profile(payload[0]), payload[1], payload[2]
		return BuildSuccessResponse(cmd)
	case frame.CmdBuzzer:
		v.buzzer = len(payload) > 0 && payload[0] != 0
		return BuildSuccessResponse(cmd)
	case frame.CmdSetFilter:
		v.filter = append([]byte(nil), payload...)
		return BuildSuccessResponse(cmd)
	case frame.CmdGetKey:
		return BuildResponse(cmd, v.key)
	case frame.CmdSetKey:
		if len(payload) != 33 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		v.key = append([]byte(nil), payload[1:17]...)
		return BuildSuccessResponse(cmd)
	case frame.CmdEncrypt, frame.CmdDecrypt:
		return BuildResponse(cmd, xorKey(payload, v.key))
	case frame.CmdSingleInventory:
		return v.singleInventoryLocked(cmd)
	case frame.CmdStartInventory:
		return v.startLocked(cmd, payload)
	case frame.CmdReadTag, frame.CmdWriteTag, frame.CmdLockTag, frame.CmdKillTag:
		return v.accessLocked(cmd, payload)
	case frame.CmdUpgradeEnter, frame.CmdUpgradeBegin, frame.CmdUpgradeData, frame.CmdUpgradeExit:
		return v.upgradeLocked(cmd, payload)
	default:
		return BuildStatusResponse(cmd, StatusBadRequest)
	}
}

func xorKey(data, key []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)] ^ 0x5A
	}
	return out
}

func (v *VirtualReader) visibleLocked(filter []byte) []*VirtualTag {
	var out []*VirtualTag
	for _, t := range v.tags {
		if t.available() == nil && matches(t, filter) {
			out = append(out, t)
		}
	}
	return out
}

func (v *VirtualReader) recordsLocked(filter []byte) []byte {
	var recs []inventory.TagRecord
	for _, t := range v.visibleLocked(filter) {
		recs = append(recs, t.Record(v.profile))
	}
	return BuildRecords(v.profile, recs...)
}

func (v *VirtualReader) singleInventoryLocked(cmd byte) []byte {
	if v.upgrading {
		return BuildStatusResponse(cmd, StatusBadRequest)
	}
	records := v.recordsLocked(v.filter)
	if len(records) == 0 {
		return BuildStatusResponse(cmd, StatusNoTag)
	}
	return BuildResponse(cmd, records)
}

func (v *VirtualReader) startLocked(cmd byte, payload []byte) []byte {
	if v.upgrading || v.stop != nil || len(payload) < 2 {
		return BuildStatusResponse(cmd, StatusBadRequest)
	}
	if v.notify == nil {
		return BuildSuccessResponse(cmd)
	}
	rounds := int(binary.BigEndian.Uint16(payload))
	v.stop = make(chan struct{})
	v.done = make(chan struct{})
	go v.stream(v.stop, v.done, v.notify, v.interval, rounds)
	return BuildSuccessResponse(cmd)
}

func (v *VirtualReader) stream(stop, done chan struct{}, notify func([]byte), interval time.Duration, rounds int) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; rounds == 0 || n < rounds; n++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		v.mu.Lock()
		records := v.recordsLocked(v.filter)
		v.mu.Unlock()
		if len(records) > 0 {
			notify(mustEncode(frame.NotifyTags, records))
		}
	}
}

func (v *VirtualReader) stopStreaming() {
	v.mu.Lock()
	stop, done := v.stop, v.done
	v.stop, v.done = nil, nil
	v.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

// accessLocked serves read, write, lock and kill. All share the layout
// pwd[4] filter ... after which the command specific fields follow.
func (v *VirtualReader) accessLocked(cmd byte, payload []byte) []byte {
	if v.upgrading || len(payload) < 9 {
		return BuildStatusResponse(cmd, StatusBadRequest)
	}
	password := binary.BigEndian.Uint32(payload)
	filter, rest, ok := splitFilter(payload[4:])
	if !ok {
		return BuildStatusResponse(cmd, StatusBadRequest)
	}
	visible := v.visibleLocked(filter)
	if len(visible) == 0 {
		return BuildStatusResponse(cmd, StatusNoTag)
	}
	tag := visible[0]

	switch cmd {
	case frame.CmdReadTag:
		if len(rest) < 5 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		bank := inventory.Bank(rest[0])
		addr := int(binary.BigEndian.Uint16(rest[1:3]))
		words := int(binary.BigEndian.Uint16(rest[3:5]))
		data, err := tag.ReadBank(bank, addr, words)
		if err != nil {
			return BuildStatusResponse(cmd, StatusAccessError)
		}
		return BuildResponse(cmd, data)
	case frame.CmdWriteTag:
		if len(rest) < 5 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		bank := inventory.Bank(rest[0])
		addr := int(binary.BigEndian.Uint16(rest[1:3]))
		words := int(binary.BigEndian.Uint16(rest[3:5]))
		data := rest[5:]
		if len(data) != words*2 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		if err := tag.WriteBank(bank, addr, data, password); err != nil {
			return BuildStatusResponse(cmd, StatusAccessError)
		}
		return BuildSuccessResponse(cmd)
	case frame.CmdLockTag:
		if len(rest) != 3 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		for _, b := range lockedBanks(rest) {
			if err := tag.Lock(b, password); err != nil {
				return BuildStatusResponse(cmd, StatusAccessError)
			}
		}
		return BuildSuccessResponse(cmd)
	default:
		if err := tag.Kill(password); err != nil {
			return BuildStatusResponse(cmd, StatusAccessError)
		}
		return BuildSuccessResponse(cmd)
	}
}

// userCipherLocked encrypts into or decrypts out of the USER bank of the
// first tag in the field. Payload: addr u16, words u16, then data on write.
func (v *VirtualReader) userCipherLocked(cmd byte, payload []byte) []byte {
	if v.upgrading || len(payload) < 4 {
		return BuildStatusResponse(cmd, StatusBadRequest)
	}
	visible := v.visibleLocked(nil)
	if len(visible) == 0 {
		return BuildStatusResponse(cmd, StatusNoTag)
	}
	tag := visible[0]
	addr := int(binary.BigEndian.Uint16(payload))
	words := int(binary.BigEndian.Uint16(payload[2:4]))

	if cmd == frame.CmdUserDecrypt {
		data, err := tag.ReadBank(inventory.BankUser, addr, words)
		if err != nil {
			return BuildStatusResponse(cmd, StatusAccessError)
		}
		return BuildResponse(cmd, xorKey(data, v.key))
	}
	data := payload[4:]
	if len(data) != words*2 {
		return BuildStatusResponse(cmd, StatusBadRequest)
	}
	if err := tag.WriteBank(inventory.BankUser, addr, xorKey(data, v.key), 0); err != nil {
		return BuildStatusResponse(cmd, StatusAccessError)
	}
	return BuildSuccessResponse(cmd)
}

// lockedBanks returns the memory banks whose write bit is set in a 20-bit
// lock payload.
func lockedBanks(payload []byte) []inventory.Bank {
	bits := uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
	targets := []inventory.Bank{inventory.BankReserved, inventory.BankReserved, inventory.BankEPC, inventory.BankTID, inventory.BankUser}
	var out []inventory.Bank
	for i, b := range targets {
		shift := uint(8 - 2*i)
		maskSet := bits>>(shift+10)&0b11 != 0
		secured := bits>>(shift+1)&1 != 0
		if maskSet && secured {
			out = append(out, b)
		}
	}
	return out
}

// splitFilter separates an encoded filter from the bytes after it.
func splitFilter(b []byte) (filter, rest []byte, ok bool) {
	if len(b) < 5 {
		return nil, nil, false
	}
	bits := int(binary.BigEndian.Uint16(b[3:5]))
	n := 5 + (bits+7)/8
	if len(b) < n {
		return nil, nil, false
	}
	return b[:n], b[n:], true
}

// matches applies an encoded filter to a tag.
func matches(t *VirtualTag, filter []byte) bool {
	if len(filter) < 5 {
		return true
	}
	bits := int(binary.BigEndian.Uint16(filter[3:5]))
	if bits == 0 {
		return true
	}
	addr := int(binary.BigEndian.Uint16(filter[1:3]))
	mask := filter[5:]

	mem := *t.bank(inventory.Bank(filter[0]))
	if inventory.Bank(filter[0]) == inventory.BankEPC {
		// EPC bank data starts after the CRC and PC words.
		mem = append(make([]byte, 4), mem...)
	}
	for i := range bits {
		pos := addr + i
		if pos/8 >= len(mem) {
			return false
		}
		got := mem[pos/8] >> (7 - pos%8) & 1
		want := mask[i/8] >> (7 - i%8) & 1
		if got != want {
			return false
		}
	}
	return true
}

func (v *VirtualReader) upgradeLocked(cmd byte, payload []byte) []byte {
	switch cmd {
	case frame.CmdUpgradeEnter:
		v.upgrading = true
		v.upgradeSeq = 0
		v.upgradeBytes = 0
	case frame.CmdUpgradeBegin:
		if !v.upgrading {
			return BuildStatusResponse(cmd, StatusBadSequence)
		}
		v.upgradeSeq = 0
	case frame.CmdUpgradeData:
		if !v.upgrading || len(payload) < 3 {
			return BuildStatusResponse(cmd, StatusBadRequest)
		}
		if int(binary.BigEndian.Uint16(payload)) != v.upgradeSeq {
			return BuildStatusResponse(cmd, StatusBadSequence)
		}
		v.upgradeSeq++
		v.upgradeBytes += len(payload) - 2
	case frame.CmdUpgradeExit:
		v.upgrading = false
	}
	return BuildSuccessResponse(cmd)
}
