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
)

// ReadTag reads a bank of the first tag matching req.Filter. The data is
// returned in the record field of the bank read. A one-byte reply is a
// rejection status.
func (d *Device) ReadTag(ctx context.Context, req ReadRequest) (inventory.TagRecord, error) {
	rec, err := d.readTag(ctx, req)
	d.failSound(err)
	return rec, err
}

func (d *Device) readTag(ctx context.Context, req ReadRequest) (inventory.TagRecord, error) {
	if err := d.checkTagOp(); err != nil {
		return inventory.TagRecord{}, err
	}
	payload, err := req.encode()
	if err != nil {
		return inventory.TagRecord{}, fmt.Errorf("read tag: %w", err)
	}
	resp, err := d.request(ctx, CategoryRead, frame.CmdReadTag, payload, false)
	if err != nil {
		return inventory.TagRecord{}, fmt.Errorf("read tag: %w", err)
	}

	switch {
	case len(resp) == 1:
		return inventory.TagRecord{}, &DeviceError{Op: "read tag", Command: frame.CmdReadTag, Status: resp[0]}
	case len(resp) < 2 || len(resp)%2 != 0:
		return inventory.TagRecord{}, fmt.Errorf("read tag: %w: %d data bytes", ErrMalformedFrame, len(resp))
	}
	return inventory.RecordFromBank(req.Bank, resp), nil
}

// WriteTag writes req.Data to the first tag matching req.Filter.
func (d *Device) WriteTag(ctx context.Context, req WriteRequest) error {
	err := d.writeTag(ctx, req)
	d.failSound(err)
	return err
}

func (d *Device) writeTag(ctx context.Context, req WriteRequest) error {
	if err := d.checkTagOp(); err != nil {
		return err
	}
	payload, err := req.encode()
	if err != nil {
		return fmt.Errorf("write tag: %w", err)
	}
	return d.requestStatus(ctx, "write tag", CategoryWrite, frame.CmdWriteTag, payload)
}

// LockTag changes the lock state of memory areas on the first tag matching
// req.Filter.
func (d *Device) LockTag(ctx context.Context, req LockRequest) error {
	err := d.lockTag(ctx, req)
	d.failSound(err)
	return err
}

func (d *Device) lockTag(ctx context.Context, req LockRequest) error {
	if err := d.checkTagOp(); err != nil {
		return err
	}
	payload, err := req.encode()
	if err != nil {
		return fmt.Errorf("lock tag: %w", err)
	}
	return d.requestStatus(ctx, "lock tag", CategoryLock, frame.CmdLockTag, payload)
}

// KillTag permanently disables the first tag matching filter. A zero kill
// password is rejected, as tags with one cannot be killed.
func (d *Device) KillTag(ctx context.Context, password uint32, filter *Filter) error {
	err := d.killTag(ctx, password, filter)
	d.failSound(err)
	return err
}

func (d *Device) killTag(ctx context.Context, password uint32, filter *Filter) error {
	if err := d.checkTagOp(); err != nil {
		return err
	}
	if password == 0 {
		return fmt.Errorf("kill tag: %w: zero kill password", ErrInvalidParameter)
	}
	payload, err := appendFilter(binary.BigEndian.AppendUint32(nil, password), filter)
	if err != nil {
		return fmt.Errorf("kill tag: %w", err)
	}
	return d.requestStatus(ctx, "kill tag", CategoryKill, frame.CmdKillTag, payload)
}
