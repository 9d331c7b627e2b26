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
	"sync"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

// Responder produces the raw replies for one request frame. Returning nil
// leaves the request unanswered.
type Responder func(cmd byte, payload []byte) [][]byte

// MockTransport is an in-memory transport for tests and simulation. Replies
// are delivered to the receiver synchronously from Send.
type MockTransport struct {
	receiver   func([]byte)
	disconnect func(error)
	responder  Responder
	replies    map[byte][]byte
	sendErr    error
	sent       [][]byte
	mu         sync.Mutex
	connected  bool
}

// NewMockTransport returns a connected mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		replies:   make(map[byte][]byte),
		connected: true,
	}
}

// Send records data and delivers any configured reply.
func (m *MockTransport) Send(data []byte) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrTransportClosed
	}
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	responder := m.responder
	reply, hasReply := m.replies[commandOf(data)]
	m.mu.Unlock()

	f, err := frame.Decode(data)
	if err != nil {
		return nil
	}
	switch {
	case responder != nil:
		for _, raw := range responder(f.Command, f.Payload) {
			m.Inject(raw)
		}
	case hasReply:
		m.InjectFrame(frame.ResponseCode(f.Command), reply)
	}
	return nil
}

func commandOf(raw []byte) byte {
	if len(raw) < frame.HeaderLength {
		return 0
	}
	return raw[4]
}

// SetReceiver registers the inbound byte sink.
func (m *MockTransport) SetReceiver(fn func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiver = fn
}

// SetDisconnectHandler registers the link loss callback.
func (m *MockTransport) SetDisconnectHandler(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnect = fn
}

// SetResponse makes every request cmd answer with payload.
func (m *MockTransport) SetResponse(cmd byte, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[cmd] = append([]byte{}, payload...)
}

// ClearResponse removes the reply configured for cmd.
func (m *MockTransport) ClearResponse(cmd byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.replies, cmd)
}

// SetResponder replaces the fixed replies with fn.
func (m *MockTransport) SetResponder(fn Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// SetSendError makes Send fail with err until cleared with nil.
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Inject delivers raw bytes as if read from the link.
func (m *MockTransport) Inject(data []byte) {
	m.mu.Lock()
	receiver := m.receiver
	m.mu.Unlock()
	if receiver != nil {
		receiver(data)
	}
}

// InjectFrame encodes and delivers one frame.
func (m *MockTransport) InjectFrame(cmd byte, payload []byte) {
	raw, err := frame.Encode(cmd, payload)
	if err != nil {
		return
	}
	m.Inject(raw)
}

// Sent returns copies of every frame written so far.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, s := range m.sent {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// SentCommands returns the command byte of every frame written so far.
func (m *MockTransport) SentCommands() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, commandOf(s))
	}
	return out
}

// Disconnect simulates a link loss.
func (m *MockTransport) Disconnect(err error) {
	m.mu.Lock()
	m.connected = false
	handler := m.disconnect
	m.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// Close marks the transport disconnected.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns true until Close or Disconnect.
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
