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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

// DefaultUpgradeChunkSize is the firmware bytes sent per data frame.
const DefaultUpgradeChunkSize = 128

// UpgradeProgress is called after each acknowledged chunk.
type UpgradeProgress func(sent, total int)

// Upgrading reports whether the reader is in firmware upgrade mode.
func (d *Device) Upgrading() bool {
	return d.upgrading.Load()
}

// EnterUpgradeMode switches the reader to its boot loader. Tag operations
// fail with ErrUpgradeMode until ExitUpgradeMode.
func (d *Device) EnterUpgradeMode(ctx context.Context) error {
	d.modeMu.Lock()
	if d.scanning.Load() {
		d.modeMu.Unlock()
		return ErrInventoryActive
	}
	if d.upgrading.Load() {
		d.modeMu.Unlock()
		return nil
	}
	d.upgrading.Store(true)
	d.modeMu.Unlock()

	if err := d.requestStatus(ctx, "enter upgrade mode", CategoryUpgrade, frame.CmdUpgradeEnter, nil); err != nil {
		d.upgrading.Store(false)
		return err
	}
	debugln("entered firmware upgrade mode")
	return nil
}

// BeginUpgradeTransfer prepares the boot loader for image data.
func (d *Device) BeginUpgradeTransfer(ctx context.Context) error {
	if !d.upgrading.Load() {
		return ErrNotUpgrading
	}
	return d.requestStatus(ctx, "begin upgrade", CategoryUpgrade, frame.CmdUpgradeBegin, nil)
}

// SendUpgradeData sends one chunk of the firmware image.
func (d *Device) SendUpgradeData(ctx context.Context, seq uint16, chunk []byte) error {
	if !d.upgrading.Load() {
		return ErrNotUpgrading
	}
	if len(chunk) == 0 {
		return fmt.Errorf("upgrade data: %w: empty chunk", ErrInvalidParameter)
	}
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(chunk)), seq)
	payload = append(payload, chunk...)
	return d.requestStatus(ctx, "upgrade data", CategoryUpgrade, frame.CmdUpgradeData, payload)
}

// ExitUpgradeMode leaves the boot loader. Tag operations are allowed again
// even when the reader reports an error.
func (d *Device) ExitUpgradeMode(ctx context.Context) error {
	if !d.upgrading.Load() {
		return nil
	}
	defer d.upgrading.Store(false)
	return d.requestStatus(ctx, "exit upgrade mode", CategoryUpgrade, frame.CmdUpgradeExit, nil)
}

// Upgrade flashes image: it enters upgrade mode, streams the image in
// chunkSize pieces and exits. A chunkSize of zero uses
// DefaultUpgradeChunkSize. On failure upgrade mode is still left.
func (d *Device) Upgrade(ctx context.Context, image []byte, chunkSize int, progress UpgradeProgress) (err error) {
	if len(image) == 0 {
		return fmt.Errorf("upgrade: %w: empty image", ErrInvalidParameter)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultUpgradeChunkSize
	}
	if maxChunk := d.limits().MaxPayload() - 2; chunkSize > maxChunk {
		return fmt.Errorf("upgrade: %w: chunk size %d exceeds %d", ErrInvalidParameter, chunkSize, maxChunk)
	}
	if len(image) > chunkSize*0x10000 {
		return fmt.Errorf("upgrade: %w: image needs more than 65536 chunks", ErrInvalidParameter)
	}

	if err := d.EnterUpgradeMode(ctx); err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	defer func() {
		if exitErr := d.ExitUpgradeMode(context.WithoutCancel(ctx)); exitErr != nil {
			err = errors.Join(err, fmt.Errorf("upgrade: %w", exitErr))
		}
	}()

	if err := d.BeginUpgradeTransfer(ctx); err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	for off, seq := 0, 0; off < len(image); off, seq = off+chunkSize, seq+1 {
		end := min(off+chunkSize, len(image))
		if err := d.SendUpgradeData(ctx, uint16(seq), image[off:end]); err != nil {
			return fmt.Errorf("upgrade: chunk %d: %w", seq, err)
		}
		if progress != nil {
			progress(end, len(image))
		}
	}
	debugf("firmware image of %d bytes sent", len(image))
	return nil
}
