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

// Package relay fans device events out to websocket clients and accepts
// inventory commands from them.
package relay

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeTimeout   = 5 * time.Second
	commandTimeout = 10 * time.Second
	clientBuffer   = 32
)

// Controller is the part of uhf.Device clients may drive.
type Controller interface {
	StartInventory(ctx context.Context, count uint16) error
	StopInventory(ctx context.Context) error
	SingleInventory(ctx context.Context) ([]inventory.TagRecord, error)
	ClearCache()
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub is an http.Handler that upgrades requests to websocket connections
// and broadcasts messages to all of them. A client whose buffer is full is
// disconnected.
type Hub struct {
	ctrl     Controller
	clients  map[*client]struct{}
	now      func() time.Time
	log      zerolog.Logger
	upgrader websocket.Upgrader
	mu       sync.Mutex
}

// NewHub creates a hub. ctrl may be nil, in which case commands fail.
func NewHub(ctrl Controller, log zerolog.Logger) *Hub {
	return &Hub{
		ctrl:    ctrl,
		clients: make(map[*client]struct{}),
		now:     time.Now,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan Message, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("relay client connected")

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
	h.remove(c)
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("relay client left")
}

func (h *Hub) writeLoop(c *client) {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch strings.ToLower(strings.TrimSpace(msg.Type)) {
		case TypePing:
			h.sendTo(c, Message{Type: TypePong, Timestamp: stamp(h.now())})
		case TypeCommand:
			h.sendTo(c, h.execute(ctx, msg.Command))
		}
	}
}

func (h *Hub) execute(ctx context.Context, command string) Message {
	command = strings.ToLower(strings.TrimSpace(command))
	out := Message{Type: TypeCommandResult, Command: command, Status: "completed"}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var err error
	switch {
	case h.ctrl == nil:
		err = uhf.ErrNotConnected
	case command == CommandStart:
		err = h.ctrl.StartInventory(ctx, 0)
	case command == CommandStop:
		err = h.ctrl.StopInventory(ctx)
	case command == CommandSingle:
		var recs []inventory.TagRecord
		recs, err = h.ctrl.SingleInventory(ctx)
		out.Tags = TagsFromRecords(recs)
	case command == CommandClear:
		h.ctrl.ClearCache()
	default:
		err = uhf.ErrInvalidParameter
	}

	out.Timestamp = stamp(h.now())
	if err != nil {
		out.Status = "failed"
		out.Error = err.Error()
	}
	h.log.Debug().Str("command", command).Str("status", out.Status).Msg("relay command")
	return out
}

// sendTo queues msg for one client, dropping the client if it is stuck.
func (h *Hub) sendTo(c *client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.removeLocked(c)
	}
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Debug().Msg("relay client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

// Run relays events until the channel closes or ctx is done.
func (h *Hub) Run(ctx context.Context, events <-chan uhf.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if msg, ok := MessageFromEvent(ev, h.now()); ok {
				h.Broadcast(msg)
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}
