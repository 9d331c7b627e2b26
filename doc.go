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

/*
Package uhf provides a pure Go engine for handheld UHF RFID readers that
speak the C8 8C framed serial protocol over UART or Bluetooth LE.

A Device wraps any Transport. Requests are grouped into categories; at most
one request per category is outstanding, each with its own timeout, and
replies are matched to the waiting caller by category. Continuous inventory
streams tag notifications that are decoded, batched and deduplicated before
they reach the Events channel.

Features:
  - UART and Bluetooth LE transports with automatic reader detection
  - Single and continuous inventory with EPC, TID and USER record profiles
  - Throttled TagsScanned batches and first-sighting sound cues
  - Tag read, write, lock and kill
  - Power, region, filter, buzzer and encryption settings
  - Firmware upgrade
  - Hardware trigger button support

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-uhf"
	    "github.com/ZaparooProject/go-uhf/transport/uart"
	)

	transport := uart.New("/dev/ttyUSB0")
	device, err := uhf.New(transport, uhf.WithSound(true))
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	if err := device.Connect(ctx); err != nil {
	    log.Fatal(err)
	}

	if err := device.StartInventory(ctx, 0); err != nil {
	    log.Fatal(err)
	}

	for ev := range device.Events() {
	    switch e := ev.(type) {
	    case uhf.TagsScanned:
	        for _, tag := range e.Tags {
	            fmt.Printf("EPC %s RSSI %d\n", tag.EPCHex(), tag.RSSI)
	        }
	    case uhf.ConnectionChanged:
	        if e.State == uhf.StateDisconnected {
	            return
	        }
	    }
	}

Errors returned by a Device wrap the sentinel values in errors.go, so
callers test them with errors.Is. Timeouts are reported as *TimeoutError and
transport failures as *TransportError; IsRetryable tells whether an
operation may be repeated.
*/
package uhf
