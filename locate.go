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
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/ZaparooProject/go-uhf/scan"
)

// RSSI range mapped onto TagLocated.Proximity, in dBm.
const (
	LocateFloor   = -90
	LocateCeiling = -30
)

// Proximity maps rssi onto 0 (at or below LocateFloor) to 100 (at or above
// LocateCeiling).
func Proximity(rssi int) int {
	switch {
	case rssi <= LocateFloor:
		return 0
	case rssi >= LocateCeiling:
		return 100
	default:
		return (rssi - LocateFloor) * 100 / (LocateCeiling - LocateFloor)
	}
}

// StartLocate runs a continuous inventory filtered to one EPC. Each sighting
// of the tag is reported as a TagLocated event instead of TagsScanned.
func (d *Device) StartLocate(ctx context.Context, epc []byte) error {
	if len(epc) == 0 {
		return fmt.Errorf("start locate: %w: empty EPC", ErrInvalidParameter)
	}
	if d.scanning.Load() {
		return ErrInventoryActive
	}
	if err := d.SetFilter(ctx, EPCFilter(epc)); err != nil {
		return fmt.Errorf("start locate: %w", err)
	}
	if err := d.startInventory(ctx, 0, bytes.Clone(epc)); err != nil {
		if clearErr := d.SetFilter(context.WithoutCancel(ctx), nil); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
		return fmt.Errorf("start locate: %w", err)
	}
	debugf("locating %X", epc)
	return nil
}

// Locating reports whether a locate session is running.
func (d *Device) Locating() bool {
	d.rxMu.Lock()
	defer d.rxMu.Unlock()
	return d.locateEPC != nil
}

// StopLocate ends a locate session and clears the reader's filter. It
// returns nil without I/O when no session is running.
func (d *Device) StopLocate(ctx context.Context) error {
	if !d.Locating() {
		return nil
	}
	err := d.StopInventory(ctx)
	if clearErr := d.SetFilter(ctx, nil); clearErr != nil {
		err = errors.Join(err, clearErr)
	}
	if err != nil {
		return fmt.Errorf("stop locate: %w", err)
	}
	return nil
}

// handleLocate runs under rxMu.
func (d *Device) handleLocate(records []inventory.TagRecord) {
	for i := range records {
		rec := records[i]
		if !bytes.Equal(rec.EPC, d.locateEPC) {
			continue
		}
		d.emit(TagLocated{EPC: rec.EPC, RSSI: rec.RSSI, Proximity: Proximity(rec.RSSI)})
		if d.agg.SoundEnabled() {
			d.emit(SoundRequested{Sound: scan.SoundSeen})
		}
	}
}
