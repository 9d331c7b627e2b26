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

// Package uart provides a UART transport for readers attached over a serial
// or USB CDC port.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/internal/transport"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the rate handheld readers use on their UART.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds a single port read so Close is noticed.
	DefaultReadTimeout = 100 * time.Millisecond

	defaultWriteRetries = 3
	readBufferSize      = 512
	openRetryInterval   = 100 * time.Millisecond
)

// opener opens and configures a serial port.
type opener func(name string, baud int, readTimeout time.Duration) (io.ReadWriteCloser, error)

// Option configures a Transport.
type Option func(*Transport)

// WithBaudRate sets the line rate.
func WithBaudRate(baud int) Option {
	return func(t *Transport) {
		if baud > 0 {
			t.baud = baud
		}
	}
}

// WithReadTimeout sets the per-read timeout of the port.
func WithReadTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.readTimeout = d
		}
	}
}

// WithWriteRetries sets how many times a short write is resumed.
func WithWriteRetries(n int) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.writeRetries = n
		}
	}
}

// WithOpenWait makes Connect keep retrying a missing or busy port for up to
// d. Readers that re-enumerate after a reset or a firmware upgrade need it.
func WithOpenWait(d time.Duration) Option {
	return func(t *Transport) {
		if d >= 0 {
			t.openWait = d
		}
	}
}

// WithLogger sets the logger used for link diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = l
	}
}

// Transport implements uhf.Transport over a serial port. A background
// goroutine reads the port and hands every chunk to the receiver.
type Transport struct {
	port         io.ReadWriteCloser
	receiver     func([]byte)
	onDisconnect func(error)
	done         chan struct{}
	open         opener
	log          zerolog.Logger
	portName     string
	readTimeout  time.Duration
	openWait     time.Duration
	baud         int
	writeRetries int
	mu           sync.Mutex
	wg           sync.WaitGroup
}

// New creates a transport for portName. The port is opened by Connect.
func New(portName string, opts ...Option) *Transport {
	t := &Transport{
		portName:     portName,
		baud:         DefaultBaudRate,
		readTimeout:  DefaultReadTimeout,
		writeRetries: defaultWriteRetries,
		open:         openSerial,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates a transport and opens the port immediately.
func Open(ctx context.Context, portName string, opts ...Option) (*Transport, error) {
	t := New(portName, opts...)
	if err := t.Connect(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// newWithPort wraps an already open port.
func newWithPort(portName string, port io.ReadWriteCloser, opts ...Option) *Transport {
	t := New(portName, opts...)
	t.attach(port)
	return t
}

// Connect opens the serial port and starts the read loop. It is a no-op on
// an open transport.
func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	open := t.port != nil
	t.mu.Unlock()
	if open {
		return nil
	}

	p, err := t.openPort(ctx)
	if err != nil {
		return err
	}

	t.log.Debug().Str("port", t.portName).Int("baud", t.baud).Msg("serial port opened")
	t.attach(p)
	return nil
}

// openPort opens the port, polling for it while openWait allows.
func (t *Transport) openPort(ctx context.Context) (io.ReadWriteCloser, error) {
	if t.openWait <= 0 {
		return t.open(t.portName, t.baud, t.readTimeout)
	}

	var lastErr error
	p, err := transport.TimeoutRetry(ctx, t.openWait, openRetryInterval,
		func() (io.ReadWriteCloser, bool, error) {
			p, err := t.open(t.portName, t.baud, t.readTimeout)
			if err != nil {
				lastErr = err
				return nil, true, nil
			}
			return p, false, nil
		})
	if err != nil && lastErr != nil && ctx.Err() == nil {
		t.log.Debug().Err(lastErr).Str("port", t.portName).Dur("wait", t.openWait).Msg("port did not appear")
		return nil, lastErr
	}
	return p, err
}

func openSerial(name string, baud int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, uhf.NewTransportError("open", name,
			fmt.Errorf("%w: %w", uhf.ErrDeviceNotFound, err), uhf.ErrorTypePermanent)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, uhf.NewTransportError("open", name, err, uhf.ErrorTypePermanent)
	}
	_ = p.ResetInputBuffer()
	return p, nil
}

func (t *Transport) attach(p io.ReadWriteCloser) {
	t.mu.Lock()
	t.port = p
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	t.wg.Add(1)
	go t.readLoop(p, done)
}

func (t *Transport) readLoop(p io.ReadWriteCloser, done chan struct{}) {
	defer t.wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, err := p.Read(buf)
		if n > 0 {
			t.mu.Lock()
			recv := t.receiver
			t.mu.Unlock()
			if recv != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				recv(chunk)
			}
		}

		select {
		case <-done:
			return
		default:
		}

		if err != nil {
			t.lost(p, err)
			return
		}
	}
}

// lost tears down a port whose read loop failed.
func (t *Transport) lost(p io.ReadWriteCloser, err error) {
	t.mu.Lock()
	if t.port != p {
		t.mu.Unlock()
		return
	}
	t.port = nil
	close(t.done)
	handler := t.onDisconnect
	t.mu.Unlock()

	_ = p.Close()
	t.log.Debug().Err(err).Str("port", t.portName).Msg("serial link lost")

	if handler != nil {
		if errors.Is(err, io.EOF) {
			err = uhf.ErrTransportClosed
		}
		handler(uhf.NewTransportError("read", t.portName,
			fmt.Errorf("%w: %w", uhf.ErrTransportRead, err), uhf.ErrorTypeTransient))
	}
}

// Send writes a complete frame, resuming short writes.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return uhf.NewTransportError("send", t.portName, uhf.ErrTransportClosed, uhf.ErrorTypePermanent)
	}

	remaining := data
	_, err := transport.WithRetry(context.Background(), transport.RetryConfig{
		Description: "send",
		Port:        t.portName,
		MaxRetries:  t.writeRetries,
	}, func() (struct{}, bool, error) {
		n, err := t.port.Write(remaining)
		remaining = remaining[n:]
		if err != nil {
			return struct{}{}, false, uhf.NewTransportError("send", t.portName,
				fmt.Errorf("%w: %w", uhf.ErrTransportWrite, err), uhf.ErrorTypeTransient)
		}
		return struct{}{}, len(remaining) > 0, nil
	})
	return err
}

// SetReceiver installs the inbound byte callback.
func (t *Transport) SetReceiver(fn func([]byte)) {
	t.mu.Lock()
	t.receiver = fn
	t.mu.Unlock()
}

// SetDisconnectHandler installs the callback invoked when the read loop
// fails. It is not called for Close.
func (t *Transport) SetDisconnectHandler(fn func(error)) {
	t.mu.Lock()
	t.onDisconnect = fn
	t.mu.Unlock()
}

// Close closes the port and waits for the read loop to exit.
func (t *Transport) Close() error {
	t.mu.Lock()
	p := t.port
	if p == nil {
		t.mu.Unlock()
		return nil
	}
	t.port = nil
	close(t.done)
	t.mu.Unlock()

	err := p.Close()
	t.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true while the port is open.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() uhf.TransportType {
	return uhf.TransportUART
}

// PortName returns the port the transport was created for.
func (t *Transport) PortName() string {
	return t.portName
}
