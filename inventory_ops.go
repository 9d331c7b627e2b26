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
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/ZaparooProject/go-uhf/scan"
)

// SingleInventory runs one inventory round and returns the tags found,
// merged by EPC. A one-byte reply means no tag answered.
func (d *Device) SingleInventory(ctx context.Context) ([]inventory.TagRecord, error) {
	if err := d.checkTagOp(); err != nil {
		return nil, err
	}
	if d.scanning.Load() {
		return nil, ErrInventoryActive
	}

	resp, err := d.request(ctx, CategoryInventorySingle, frame.CmdSingleInventory, nil, false)
	if err != nil {
		return nil, fmt.Errorf("single inventory: %w", err)
	}
	if len(resp) <= 1 {
		return nil, nil
	}

	records, err := inventory.ParseAggregated(d.Profile(), resp)
	if len(records) > 0 {
		if s := d.agg.Evaluate(records...); s != scan.SoundNone {
			d.emit(SoundRequested{Sound: s})
		}
	}
	if err != nil {
		return records, fmt.Errorf("single inventory: %w", err)
	}
	return records, nil
}

// StartInventory starts continuous inventory. count limits the number of
// rounds; zero runs until StopInventory. Sightings arrive as TagsScanned
// events.
func (d *Device) StartInventory(ctx context.Context, count uint16) error {
	return d.startInventory(ctx, count, nil)
}

// startInventory routes sightings to locate events when target is set.
func (d *Device) startInventory(ctx context.Context, count uint16, target []byte) error {
	if err := d.beginScanning(); err != nil {
		return err
	}

	d.rxMu.Lock()
	d.parser.SetProfile(d.Profile())
	d.locateEPC = target
	d.rxMu.Unlock()
	d.agg.Reset()

	payload := binary.BigEndian.AppendUint16(nil, count)
	if err := d.requestStatus(ctx, "start inventory", CategoryInventoryStart, frame.CmdStartInventory, payload); err != nil {
		d.scanning.Store(false)
		d.rxMu.Lock()
		d.parser.Reset()
		d.locateEPC = nil
		d.rxMu.Unlock()
		d.agg.Reset()
		return err
	}
	debugf("inventory started, profile %v", d.Profile())
	return nil
}

// beginScanning marks the scan active unless the reader is upgrading or
// already scanning.
func (d *Device) beginScanning() error {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	if err := d.checkTagOp(); err != nil {
		return err
	}
	if d.scanning.Load() {
		return ErrInventoryActive
	}
	d.scanning.Store(true)
	return nil
}

// Scanning reports whether continuous inventory is running.
func (d *Device) Scanning() bool {
	return d.scanning.Load()
}

// StopInventory stops continuous inventory. It returns nil without I/O
// when none is running. The final partial batch is delivered, then an
// InventoryStopped event; the seen set is cleared.
func (d *Device) StopInventory(ctx context.Context) error {
	if !d.scanning.Load() {
		return nil
	}
	err := d.requestStatus(ctx, "stop inventory", CategoryInventoryStop, frame.CmdStopInventory, nil)
	d.endInventory()
	return err
}

// endInventory tears down the local scan session.
func (d *Device) endInventory() {
	if !d.scanning.CompareAndSwap(true, false) {
		return
	}

	// Only the record stream is dropped. The deframer may hold the head of
	// a reply for another category.
	d.rxMu.Lock()
	d.parser.Reset()
	d.locateEPC = nil
	d.rxMu.Unlock()

	if batch := d.agg.Flush(); batch != nil {
		d.emit(TagsScanned{Tags: batch})
	}
	d.agg.ClearCache()
	m := d.agg.Metrics()
	debugf("inventory stopped: %d sightings, %d unique", m.Sightings, m.NewTags)
	d.emit(InventoryStopped{})
}

// InventoryMetrics returns counters of the scan aggregator.
func (d *Device) InventoryMetrics() scan.MetricsSnapshot {
	return d.agg.Metrics()
}
