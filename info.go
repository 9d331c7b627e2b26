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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

// FirmwareVersion returns the reader's firmware version string.
func (d *Device) FirmwareVersion(ctx context.Context) (string, error) {
	resp, err := d.request(ctx, CategoryFirmwareVersion, frame.CmdFirmwareVersion, nil, true)
	if err != nil {
		return "", fmt.Errorf("firmware version: %w", err)
	}
	return cleanASCII(resp), nil
}

// HardwareVersion returns the reader's hardware version string.
func (d *Device) HardwareVersion(ctx context.Context) (string, error) {
	resp, err := d.request(ctx, CategoryHardwareVersion, frame.CmdHardwareVersion, nil, true)
	if err != nil {
		return "", fmt.Errorf("hardware version: %w", err)
	}
	return cleanASCII(resp), nil
}

// DeviceID returns the reader's module identifier in upper-case hex.
func (d *Device) DeviceID(ctx context.Context) (string, error) {
	resp, err := d.request(ctx, CategoryDeviceID, frame.CmdDeviceID, nil, true)
	if err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	if len(resp) == 0 {
		return "", fmt.Errorf("device id: %w: empty response", ErrMalformedFrame)
	}
	return strings.ToUpper(hex.EncodeToString(resp)), nil
}

// BatteryLevel returns the charge in percent. Concurrent callers share one
// request.
func (d *Device) BatteryLevel(ctx context.Context) (int, error) {
	resp, err := d.request(ctx, CategoryBattery, frame.CmdBattery, nil, true)
	if err != nil {
		return 0, fmt.Errorf("battery level: %w", err)
	}
	if len(resp) < 1 {
		return 0, fmt.Errorf("battery level: %w: empty response", ErrMalformedFrame)
	}
	return int(resp[0]), nil
}

// Temperature returns the reader's module temperature in degrees Celsius.
func (d *Device) Temperature(ctx context.Context) (int, error) {
	resp, err := d.request(ctx, CategoryTemperature, frame.CmdTemperature, nil, true)
	if err != nil {
		return 0, fmt.Errorf("temperature: %w", err)
	}
	if len(resp) < 2 {
		return 0, fmt.Errorf("temperature: %w: response is %d bytes", ErrMalformedFrame, len(resp))
	}
	return int(int16(binary.BigEndian.Uint16(resp))), nil
}

// SoftwareReset restarts the reader. It has no reply; outstanding
// requests are failed and a running inventory ends.
func (d *Device) SoftwareReset() error {
	if err := d.command(frame.CmdSoftwareReset, nil); err != nil {
		return fmt.Errorf("software reset: %w", err)
	}
	d.registry.Abort(fmt.Errorf("%w: reader reset", ErrNotConnected))
	d.endInventory()
	d.upgrading.Store(false)
	return nil
}

func cleanASCII(b []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}
