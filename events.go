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
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/ZaparooProject/go-uhf/scan"
)

// ConnectionState is the link state of a Device.
type ConnectionState int

// Connection states
const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Event is delivered on Device.Events. The concrete types are
// ConnectionChanged, TagsScanned, TagLocated, SoundRequested,
// TriggerPressed, FrameDropped, RecordSkipped and InventoryStopped.
type Event interface {
	event()
}

// ConnectionChanged reports a link state transition. Err is set when the
// link was lost or could not be established.
type ConnectionChanged struct {
	Err   error
	State ConnectionState
}

// TagsScanned carries a batch of continuous inventory sightings.
type TagsScanned struct {
	Tags []inventory.TagRecord
}

// TagLocated reports one sighting of the tag a locate session follows.
// Proximity grows from 0 to 100 as the signal gets stronger.
type TagLocated struct {
	EPC       []byte
	RSSI      int
	Proximity int
}

// SoundRequested asks the consumer to play a cue.
type SoundRequested struct {
	Sound scan.Sound
}

// TriggerPressed reports the reader's trigger key.
type TriggerPressed struct {
	Pressed bool
}

// FrameDropped reports inbound bytes discarded by the deframer.
type FrameDropped struct {
	Err error
}

// RecordSkipped reports an inventory record that could not be decoded.
type RecordSkipped struct {
	Err error
}

// InventoryStopped is sent after the final batch of a continuous inventory.
type InventoryStopped struct{}

func (ConnectionChanged) event() {}
func (TagsScanned) event()       {}
func (TagLocated) event()        {}
func (SoundRequested) event()    {}
func (TriggerPressed) event()    {}
func (FrameDropped) event()      {}
func (RecordSkipped) event()     {}
func (InventoryStopped) event()  {}
