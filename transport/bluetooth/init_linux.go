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

//go:build linux

package bluetooth

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// Init opens the first HCI adapter and installs it as the default BLE
// device used by New and Discover.
func Init() error {
	dev, err := linux.NewDevice()
	if err != nil {
		return fmt.Errorf("failed to open HCI device: %w", err)
	}
	ble.SetDefaultDevice(dev)
	return nil
}
