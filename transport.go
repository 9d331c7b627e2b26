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

import "context"

// Transport carries frames to and from a reader. Send writes one encoded
// frame; bytes arriving from the reader are passed, in order and in any
// chunking, to the function registered with SetReceiver.
type Transport interface {
	// Send writes raw bytes to the reader.
	Send(data []byte) error

	// SetReceiver registers the inbound byte sink.
	SetReceiver(fn func([]byte))

	// Close releases the link.
	Close() error

	// IsConnected returns true while the link is up.
	IsConnected() bool

	// Type returns the transport type.
	Type() TransportType
}

// Connector is implemented by transports that establish their link lazily.
type Connector interface {
	Connect(ctx context.Context) error
}

// StatusNotifier is implemented by transports that can report a link loss.
type StatusNotifier interface {
	SetDisconnectHandler(fn func(error))
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportBLE represents a Bluetooth Low Energy GATT link.
	TransportBLE TransportType = "ble"
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)
