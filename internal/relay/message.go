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

package relay

import (
	"fmt"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/inventory"
)

// Message types sent to clients.
const (
	TypeTags          = "tags"
	TypeLocate        = "locate"
	TypeSound         = "sound"
	TypeTrigger       = "trigger"
	TypeConnection    = "connection"
	TypeStopped       = "inventory_stopped"
	TypeCommandResult = "command_result"
	TypePong          = "pong"
)

// Message types accepted from clients.
const (
	TypeCommand = "command"
	TypePing    = "ping"
)

// Commands a client may send.
const (
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandSingle = "single"
	CommandClear  = "clear"
)

// Tag is the JSON form of an inventory record.
type Tag struct {
	EPC   string `json:"epc"`
	TID   string `json:"tid,omitempty"`
	User  string `json:"user,omitempty"`
	RSSI  int    `json:"rssi"`
	Count int    `json:"count,omitempty"`
}

// Message is one websocket frame in either direction.
type Message struct {
	Pressed   *bool  `json:"pressed,omitempty"`
	Proximity *int   `json:"proximity,omitempty"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
	Command   string `json:"command,omitempty"`
	Status    string `json:"status,omitempty"`
	Sound     string `json:"sound,omitempty"`
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`
	Tags      []Tag  `json:"tags,omitempty"`
	Count     int    `json:"count,omitempty"`
}

func stamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339Nano)
}

// TagsFromRecords converts inventory records.
func TagsFromRecords(recs []inventory.TagRecord) []Tag {
	out := make([]Tag, 0, len(recs))
	for _, r := range recs {
		t := Tag{EPC: r.EPCHex(), RSSI: r.RSSI, Count: r.ReadCount}
		if len(r.TID) > 0 {
			t.TID = r.TIDHex()
		}
		if len(r.User) > 0 {
			t.User = r.UserHex()
		}
		out = append(out, t)
	}
	return out
}

// MessageFromEvent maps a device event to the message relayed for it.
// Diagnostic events are not relayed.
func MessageFromEvent(ev uhf.Event, now time.Time) (Message, bool) {
	msg := Message{Timestamp: stamp(now)}
	switch e := ev.(type) {
	case uhf.TagsScanned:
		msg.Type = TypeTags
		msg.Tags = TagsFromRecords(e.Tags)
	case uhf.TagLocated:
		proximity := e.Proximity
		msg.Type = TypeLocate
		msg.Tags = []Tag{{EPC: fmt.Sprintf("%X", e.EPC), RSSI: e.RSSI}}
		msg.Proximity = &proximity
	case uhf.SoundRequested:
		msg.Type = TypeSound
		msg.Sound = e.Sound.String()
	case uhf.TriggerPressed:
		pressed := e.Pressed
		msg.Type = TypeTrigger
		msg.Pressed = &pressed
	case uhf.ConnectionChanged:
		msg.Type = TypeConnection
		msg.State = e.State.String()
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
	case uhf.InventoryStopped:
		msg.Type = TypeStopped
	default:
		return Message{}, false
	}
	return msg, true
}
