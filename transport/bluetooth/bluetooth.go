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

// Package bluetooth provides a BLE GATT transport for handheld readers and a
// scanner that discovers them.
//
// The reader exposes a serial-over-GATT service: frames are written to one
// characteristic and arrive as notifications on another. Notifications may
// split or merge frames arbitrarily; the device deframer handles that.
package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/go-ble/ble"
	"github.com/rs/zerolog"
)

const (
	// DefaultMTU is the ATT MTU before negotiation.
	DefaultMTU = 23
	// TargetMTU is the MTU requested after connecting.
	TargetMTU = 247
	// DefaultConnectTimeout bounds dialing and service discovery.
	DefaultConnectTimeout = 10 * time.Second

	mtuHeaderSize = 3
)

// Default GATT layout of the reader's serial service.
var (
	DefaultServiceUUID = ble.MustParse("0000ffe0-0000-1000-8000-00805f9b34fb")
	DefaultNotifyUUID  = ble.MustParse("0000ffe4-0000-1000-8000-00805f9b34fb")
	DefaultWriteUUID   = ble.MustParse("0000ffe9-0000-1000-8000-00805f9b34fb")
)

// ErrCharacteristicNotFound is returned when the peer lacks the serial
// characteristics.
var ErrCharacteristicNotFound = errors.New("characteristic not found")

// client is the part of ble.Client the transport uses.
type client interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ExchangeMTU(rxMTU int) (int, error)
	CancelConnection() error
	Disconnected() <-chan struct{}
}

type dialFunc func(ctx context.Context, addr string) (client, error)

func dialDefault(ctx context.Context, addr string) (client, error) {
	return ble.Dial(ctx, ble.NewAddr(addr))
}

// Option configures a Transport.
type Option func(*Transport)

// WithUUIDs overrides the service and characteristic UUIDs.
func WithUUIDs(service, notify, write ble.UUID) Option {
	return func(t *Transport) {
		t.serviceUUID = service
		t.notifyUUID = notify
		t.writeUUID = write
	}
}

// WithConnectTimeout bounds Connect when the caller's context has no
// deadline.
func WithConnectTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.connectTimeout = d
		}
	}
}

// WithWriteResponse makes writes wait for an ATT write response.
func WithWriteResponse(enabled bool) Option {
	return func(t *Transport) {
		t.withResponse = enabled
	}
}

// WithLogger sets the logger used for link diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = l
	}
}

// Transport implements uhf.Transport over a GATT connection.
type Transport struct {
	cl             client
	writeChar      *ble.Characteristic
	receiver       func([]byte)
	onDisconnect   func(error)
	dial           dialFunc
	closing        chan struct{}
	log            zerolog.Logger
	address        string
	serviceUUID    ble.UUID
	notifyUUID     ble.UUID
	writeUUID      ble.UUID
	connectTimeout time.Duration
	mtu            int
	withResponse   bool
	mu             sync.Mutex
	sendMu         sync.Mutex
}

// New creates a transport for the peripheral at address. The link is
// established by Connect. Init must have installed a default BLE device.
func New(address string, opts ...Option) *Transport {
	t := &Transport{
		address:        address,
		serviceUUID:    DefaultServiceUUID,
		notifyUUID:     DefaultNotifyUUID,
		writeUUID:      DefaultWriteUUID,
		connectTimeout: DefaultConnectTimeout,
		mtu:            DefaultMTU,
		dial:           dialDefault,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials the peripheral, locates the serial characteristics,
// negotiates the MTU and subscribes to notifications.
func (t *Transport) Connect(ctx context.Context) error {
	if t.IsConnected() {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.connectTimeout)
		defer cancel()
	}

	cl, err := t.dial(ctx, t.address)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return uhf.NewTransportError("connect", t.address, ctxErr, uhf.ErrorTypeTimeout)
		}
		return uhf.NewTransportError("connect", t.address,
			fmt.Errorf("%w: %w", uhf.ErrDeviceNotFound, err), uhf.ErrorTypeTransient)
	}

	notifyChar, writeChar, err := t.discover(cl)
	if err != nil {
		_ = cl.CancelConnection()
		return uhf.NewTransportError("connect", t.address, err, uhf.ErrorTypePermanent)
	}

	mtu := DefaultMTU
	if got, err := cl.ExchangeMTU(TargetMTU); err == nil && got > mtuHeaderSize {
		mtu = got
	} else if err != nil {
		t.log.Debug().Err(err).Str("addr", t.address).Msg("mtu exchange failed, using default")
	}

	if err := cl.Subscribe(notifyChar, false, t.notified); err != nil {
		_ = cl.CancelConnection()
		return uhf.NewTransportError("subscribe", t.address, err, uhf.ErrorTypeTransient)
	}

	closing := make(chan struct{})
	t.mu.Lock()
	t.cl = cl
	t.writeChar = writeChar
	t.mtu = mtu
	t.closing = closing
	t.mu.Unlock()

	t.log.Debug().Str("addr", t.address).Int("mtu", mtu).Msg("ble connected")
	go t.watch(cl, closing)
	return nil
}

func (t *Transport) discover(cl client) (notify, write *ble.Characteristic, err error) {
	profile, err := cl.DiscoverProfile(true)
	if err != nil {
		return nil, nil, fmt.Errorf("discover profile: %w", err)
	}
	for _, s := range profile.Services {
		if !s.UUID.Equal(t.serviceUUID) {
			continue
		}
		for _, c := range s.Characteristics {
			switch {
			case c.UUID.Equal(t.notifyUUID):
				notify = c
			case c.UUID.Equal(t.writeUUID):
				write = c
			}
		}
	}
	if notify == nil || write == nil {
		return nil, nil, fmt.Errorf("%w: service %s", ErrCharacteristicNotFound, t.serviceUUID)
	}
	return notify, write, nil
}

func (t *Transport) notified(data []byte) {
	t.mu.Lock()
	recv := t.receiver
	t.mu.Unlock()
	if recv == nil || len(data) == 0 {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	recv(chunk)
}

// watch reports a link loss that was not caused by Close.
func (t *Transport) watch(cl client, closing chan struct{}) {
	select {
	case <-closing:
		return
	case <-cl.Disconnected():
	}

	t.mu.Lock()
	if t.cl != cl {
		t.mu.Unlock()
		return
	}
	t.cl = nil
	t.writeChar = nil
	handler := t.onDisconnect
	t.mu.Unlock()

	t.log.Debug().Str("addr", t.address).Msg("ble link lost")
	if handler != nil {
		handler(uhf.NewTransportError("link", t.address, uhf.ErrTransportClosed, uhf.ErrorTypeTransient))
	}
}

// Send writes data in MTU sized chunks.
func (t *Transport) Send(data []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	cl, char, mtu := t.cl, t.writeChar, t.mtu
	t.mu.Unlock()
	if cl == nil {
		return uhf.NewTransportError("send", t.address, uhf.ErrTransportClosed, uhf.ErrorTypePermanent)
	}

	for _, chunk := range chunks(data, mtu-mtuHeaderSize) {
		if err := cl.WriteCharacteristic(char, chunk, !t.withResponse); err != nil {
			return uhf.NewTransportError("send", t.address,
				fmt.Errorf("%w: %w", uhf.ErrTransportWrite, err), uhf.ErrorTypeTransient)
		}
	}
	return nil
}

func chunks(data []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultMTU - mtuHeaderSize
	}
	out := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

// SetReceiver installs the inbound byte callback.
func (t *Transport) SetReceiver(fn func([]byte)) {
	t.mu.Lock()
	t.receiver = fn
	t.mu.Unlock()
}

// SetDisconnectHandler installs the callback invoked on link loss.
func (t *Transport) SetDisconnectHandler(fn func(error)) {
	t.mu.Lock()
	t.onDisconnect = fn
	t.mu.Unlock()
}

// Close drops the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	cl := t.cl
	if cl == nil {
		t.mu.Unlock()
		return nil
	}
	t.cl = nil
	t.writeChar = nil
	close(t.closing)
	t.mu.Unlock()

	if err := cl.CancelConnection(); err != nil {
		return fmt.Errorf("failed to cancel connection to %s: %w", t.address, err)
	}
	return nil
}

// IsConnected returns true while a GATT connection is up.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cl != nil
}

// Type returns the transport type
func (*Transport) Type() uhf.TransportType {
	return uhf.TransportBLE
}

// Address returns the peripheral address.
func (t *Transport) Address() string {
	return t.address
}

// MTU returns the negotiated ATT MTU.
func (t *Transport) MTU() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mtu
}
