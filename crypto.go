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
)

// EncryptionKey returns the key the reader uses for Encrypt and Decrypt.
func (d *Device) EncryptionKey(ctx context.Context) ([]byte, error) {
	resp, err := d.request(ctx, CategoryKeyGet, frame.CmdGetKey, nil, true)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	if len(resp) != KeyLength {
		return nil, fmt.Errorf("encryption key: %w: key is %d bytes", ErrMalformedFrame, len(resp))
	}
	return resp, nil
}

// SetEncryptionKey installs key. origin is the block the key is derived
// from in KeyModeDerived and is ignored otherwise.
func (d *Device) SetEncryptionKey(ctx context.Context, mode KeyMode, key, origin []byte) error {
	if len(key) != KeyLength {
		return fmt.Errorf("set encryption key: %w: key must be %d bytes", ErrInvalidParameter, KeyLength)
	}
	if origin == nil {
		origin = make([]byte, KeyLength)
	}
	if len(origin) != KeyLength {
		return fmt.Errorf("set encryption key: %w: origin must be %d bytes", ErrInvalidParameter, KeyLength)
	}
	payload := make([]byte, 0, 1+2*KeyLength)
	payload = append(payload, byte(mode))
	payload = append(payload, key...)
	payload = append(payload, origin...)
	return d.requestStatus(ctx, "set encryption key", CategoryKeySet, frame.CmdSetKey, payload)
}

// Encrypt has the reader encrypt data with its key.
func (d *Device) Encrypt(ctx context.Context, data []byte) ([]byte, error) {
	return d.cipher(ctx, "encrypt", CategoryEncrypt, frame.CmdEncrypt, data)
}

// Decrypt has the reader decrypt data with its key.
func (d *Device) Decrypt(ctx context.Context, data []byte) ([]byte, error) {
	return d.cipher(ctx, "decrypt", CategoryDecrypt, frame.CmdDecrypt, data)
}

// WriteUserEncrypted has the reader encrypt data with its key and write it
// to the USER bank of the tag in the field, starting at word addr.
func (d *Device) WriteUserEncrypted(ctx context.Context, addr uint16, data []byte) error {
	err := d.writeUserEncrypted(ctx, addr, data)
	d.failSound(err)
	return err
}

func (d *Device) writeUserEncrypted(ctx context.Context, addr uint16, data []byte) error {
	if err := d.checkTagOp(); err != nil {
		return err
	}
	if len(data) == 0 || len(data)%2 != 0 {
		return fmt.Errorf("user encrypt: %w: data must be a non-empty whole number of words, got %d bytes",
			ErrInvalidParameter, len(data))
	}
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 4+len(data)), addr)
	payload = binary.BigEndian.AppendUint16(payload, uint16(len(data)/2))
	payload = append(payload, data...)
	return d.requestStatus(ctx, "user encrypt", CategoryUserEncrypt, frame.CmdUserEncrypt, payload)
}

// ReadUserDecrypted reads words from the USER bank of the tag in the field,
// starting at word addr, and returns them decrypted by the reader.
func (d *Device) ReadUserDecrypted(ctx context.Context, addr, words uint16) ([]byte, error) {
	data, err := d.readUserDecrypted(ctx, addr, words)
	d.failSound(err)
	return data, err
}

func (d *Device) readUserDecrypted(ctx context.Context, addr, words uint16) ([]byte, error) {
	if err := d.checkTagOp(); err != nil {
		return nil, err
	}
	if words == 0 {
		return nil, fmt.Errorf("user decrypt: %w: read of zero words", ErrInvalidParameter)
	}
	payload := binary.BigEndian.AppendUint16(nil, addr)
	payload = binary.BigEndian.AppendUint16(payload, words)
	resp, err := d.request(ctx, CategoryUserDecrypt, frame.CmdUserDecrypt, payload, false)
	if err != nil {
		return nil, fmt.Errorf("user decrypt: %w", err)
	}
	switch {
	case len(resp) == 1:
		return nil, &DeviceError{Op: "user decrypt", Command: frame.CmdUserDecrypt, Status: resp[0]}
	case len(resp) != 2*int(words):
		return nil, fmt.Errorf("user decrypt: %w: %d data bytes for %d words", ErrMalformedFrame, len(resp), words)
	}
	return resp, nil
}

func (d *Device) cipher(ctx context.Context, op, category string, cmd byte, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w: empty data", op, ErrInvalidParameter)
	}
	resp, err := d.request(ctx, category, cmd, data, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%s: %w: empty response", op, ErrMalformedFrame)
	}
	return resp, nil
}
