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

package uart

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory serial port. Reads block until bytes are pushed
// or the port is closed.
type fakePort struct {
	reads    chan []byte
	closed   chan struct{}
	readErr  chan error
	written  []byte
	maxWrite int
	writeErr error
	mu       sync.Mutex
	once     sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{
		reads:   make(chan []byte, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case data := <-p.reads:
		return copy(b, data), nil
	case err := <-p.readErr:
		return 0, err
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	n := len(b)
	if p.maxWrite > 0 && n > p.maxWrite {
		n = p.maxWrite
	}
	p.written = append(p.written, b[:n]...)
	return n, nil
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written...)
}

// TestTransportCreation verifies basic transport creation and properties
func TestTransportCreation(t *testing.T) {
	t.Parallel()

	testPortName := "/dev/ttyUSB0"
	transport := New(testPortName)

	if transport.PortName() != testPortName {
		t.Errorf("Expected port name %s, got %s", testPortName, transport.PortName())
	}

	if transport.Type() != uhf.TransportUART {
		t.Errorf("Expected transport type %v, got %v", uhf.TransportUART, transport.Type())
	}

	if transport.IsConnected() {
		t.Error("Expected IsConnected() to return false for unopened transport")
	}

	assert.Equal(t, DefaultBaudRate, transport.baud)
	assert.Equal(t, DefaultReadTimeout, transport.readTimeout)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	transport := New("COM3", WithBaudRate(57600), WithReadTimeout(time.Second), WithWriteRetries(0))
	assert.Equal(t, 57600, transport.baud)
	assert.Equal(t, time.Second, transport.readTimeout)
	assert.Equal(t, 0, transport.writeRetries)

	transport = New("COM3", WithBaudRate(-1), WithReadTimeout(0), WithWriteRetries(-2))
	assert.Equal(t, DefaultBaudRate, transport.baud)
	assert.Equal(t, DefaultReadTimeout, transport.readTimeout)
	assert.Equal(t, defaultWriteRetries, transport.writeRetries)
}

func TestSendWritesFrame(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	transport := newWithPort("/dev/ttyUSB0", port)
	defer func() { _ = transport.Close() }()

	frameBytes := []byte{0xC8, 0x8C, 0x00, 0x08, 0xE4, 0xEC, 0x0D, 0x0A}
	require.NoError(t, transport.Send(frameBytes))
	assert.Equal(t, frameBytes, port.Written())
}

func TestSendResumesShortWrites(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		maxWrite int
		retries  int
		wantErr  bool
	}{
		{name: "enough retries", maxWrite: 3, retries: 3},
		{name: "too few retries", maxWrite: 2, retries: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			port := newFakePort()
			port.maxWrite = tt.maxWrite
			transport := newWithPort("/dev/ttyUSB0", port, WithWriteRetries(tt.retries))
			defer func() { _ = transport.Close() }()

			frameBytes := []byte{0xC8, 0x8C, 0x00, 0x08, 0xE4, 0xEC, 0x0D, 0x0A}
			err := transport.Send(frameBytes)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, uhf.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, frameBytes, port.Written())
		})
	}
}

func TestSendWriteError(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	port.writeErr = errors.New("device unplugged")
	transport := newWithPort("/dev/ttyUSB0", port)
	defer func() { _ = transport.Close() }()

	err := transport.Send([]byte{0x01})
	require.ErrorIs(t, err, uhf.ErrTransportWrite)

	var te *uhf.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "/dev/ttyUSB0", te.Port)
}

func TestSendWhenClosed(t *testing.T) {
	t.Parallel()

	transport := New("/dev/ttyUSB0")
	err := transport.Send([]byte{0x01})
	require.ErrorIs(t, err, uhf.ErrTransportClosed)
	assert.False(t, uhf.IsRetryable(err))
}

func TestReceiverGetsChunks(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	got := make(chan []byte, 4)
	transport := New("/dev/ttyUSB0")
	transport.SetReceiver(func(b []byte) { got <- b })
	transport.attach(port)
	defer func() { _ = transport.Close() }()

	port.reads <- []byte{0xC8, 0x8C}
	port.reads <- []byte{0x00, 0x08}

	for _, want := range [][]byte{{0xC8, 0x8C}, {0x00, 0x08}} {
		select {
		case b := <-got:
			assert.Equal(t, want, b)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for chunk")
		}
	}
}

func TestReadFailureReportsDisconnect(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	lost := make(chan error, 1)
	transport := New("/dev/ttyUSB0")
	transport.SetDisconnectHandler(func(err error) { lost <- err })
	transport.attach(port)

	port.readErr <- errors.New("i/o error")

	select {
	case err := <-lost:
		require.ErrorIs(t, err, uhf.ErrTransportRead)
	case <-time.After(time.Second):
		t.Fatal("disconnect handler not called")
	}
	assert.False(t, transport.IsConnected())
	require.NoError(t, transport.Close())
}

func TestCloseDoesNotReportDisconnect(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	called := make(chan error, 1)
	transport := New("/dev/ttyUSB0")
	transport.SetDisconnectHandler(func(err error) { called <- err })
	transport.attach(port)

	assert.True(t, transport.IsConnected())
	require.NoError(t, transport.Close())
	assert.False(t, transport.IsConnected())
	require.NoError(t, transport.Close())

	select {
	case err := <-called:
		t.Fatalf("unexpected disconnect: %v", err)
	default:
	}
}
