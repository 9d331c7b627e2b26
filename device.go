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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/internal/pending"
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/ZaparooProject/go-uhf/scan"
)

// Device drives one UHF reader over a Transport.
//
// Thread Safety: Device is safe for concurrent use. Requests of different
// categories may be outstanding at once; replies are matched to requests
// by category. Inbound bytes are processed one chunk at a time.
type Device struct {
	transport Transport
	config    *DeviceConfig
	registry  *pending.Registry
	deframer  *frame.Deframer
	parser    *inventory.Parser
	agg       *scan.Aggregator
	events    chan Event
	// locateEPC is the tag of a locate session, guarded by rxMu.
	locateEPC []byte

	droppedEvents atomic.Int64
	state         atomic.Int32
	scanning      atomic.Bool
	upgrading     atomic.Bool

	// mu serializes outbound frames.
	mu sync.Mutex
	// modeMu makes entering inventory and upgrade mode exclusive.
	modeMu sync.Mutex
	// rxMu serializes inbound processing and guards deframer, parser and
	// locateEPC.
	rxMu sync.Mutex
	// cfgMu guards config.
	cfgMu sync.RWMutex
	// evMu guards events against Close.
	evMu     sync.RWMutex
	evClosed bool
}

// New creates a Device on transport and registers itself as the
// transport's receiver.
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}
	d := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
		registry:  pending.NewRegistry(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	cfg := d.config
	d.deframer = frame.NewDeframer(frame.Limits{MaxFrameLength: cfg.MaxFrameLength})
	d.parser = inventory.NewParser(cfg.Profile)
	d.agg = scan.NewAggregator(scan.Config{
		EventRate:    cfg.EventRate,
		SoundEnabled: cfg.SoundEnabled,
		RepeatSound:  cfg.RepeatSound,
		SoundFilter:  cfg.SoundFilter,
	})
	d.events = make(chan Event, cfg.EventBuffer)
	d.agg.SetBatchFunc(func(batch []inventory.TagRecord) {
		d.emit(TagsScanned{Tags: batch})
	})

	transport.SetReceiver(d.OnBytesReceived)
	if n, ok := transport.(StatusNotifier); ok {
		n.SetDisconnectHandler(d.handleDisconnect)
	}
	if transport.IsConnected() {
		d.state.Store(int32(StateConnected))
	}
	return d, nil
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport {
	return d.transport
}

// Events returns the channel of unsolicited notifications. Delivery never
// blocks the device: when the channel is full the event is dropped.
func (d *Device) Events() <-chan Event {
	return d.events
}

// DroppedEvents returns how many events were dropped on a full channel.
func (d *Device) DroppedEvents() int64 {
	return d.droppedEvents.Load()
}

// State returns the link state.
func (d *Device) State() ConnectionState {
	return ConnectionState(d.state.Load())
}

// Connect establishes the link for transports that implement Connector.
func (d *Device) Connect(ctx context.Context) error {
	conn, ok := d.transport.(Connector)
	if !ok {
		if !d.transport.IsConnected() {
			return ErrNotConnected
		}
		d.setState(StateConnected, nil)
		return nil
	}

	d.setState(StateConnecting, nil)
	if err := conn.Connect(ctx); err != nil {
		d.setState(StateDisconnected, err)
		return fmt.Errorf("connect: %w", err)
	}
	d.setState(StateConnected, nil)
	return nil
}

// Close aborts outstanding requests, closes the transport and the Events
// channel.
func (d *Device) Close() error {
	d.registry.Abort(ErrTransportClosed)
	d.endInventory()
	err := d.transport.Close()
	d.setState(StateDisconnected, nil)

	d.evMu.Lock()
	if !d.evClosed {
		d.evClosed = true
		close(d.events)
	}
	d.evMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

func (d *Device) handleDisconnect(err error) {
	debugf("link lost: %v", err)
	cause := ErrNotConnected
	if err != nil {
		cause = fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	d.registry.Abort(cause)
	d.endInventory()
	d.setState(StateDisconnected, err)
}

func (d *Device) setState(s ConnectionState, err error) {
	if ConnectionState(d.state.Swap(int32(s))) == s && err == nil {
		return
	}
	d.emit(ConnectionChanged{State: s, Err: err})
}

func (d *Device) emit(ev Event) {
	d.evMu.RLock()
	defer d.evMu.RUnlock()
	if d.evClosed {
		return
	}
	select {
	case d.events <- ev:
	default:
		d.droppedEvents.Add(1)
		debugf("event channel full, dropped %T", ev)
	}
}

// Busy reports whether a request of category is outstanding.
func (d *Device) Busy(category string) bool {
	return d.registry.Pending(category)
}

// OnBytesReceived feeds bytes from the transport into the device. Chunks
// may split or join frames arbitrarily.
func (d *Device) OnBytesReceived(data []byte) {
	d.rxMu.Lock()
	defer d.rxMu.Unlock()

	frames, errs := d.deframer.Feed(data)
	for _, err := range errs {
		debugf("dropped inbound frame: %v", err)
		d.emit(FrameDropped{Err: err})
	}
	for _, f := range frames {
		d.dispatch(f)
	}
}

func (d *Device) dispatch(f frame.Frame) {
	switch f.Command {
	case frame.NotifyTags:
		d.handleTags(f.Payload)
		return
	case frame.NotifyTrigger:
		d.emit(TriggerPressed{Pressed: len(f.Payload) > 0 && f.Payload[0] != 0})
		return
	}

	category, ok := responseCategories[f.Command]
	if !ok {
		debugf("ignoring frame with unknown command %02X", f.Command)
		return
	}
	if !d.registry.Resolve(category, pending.Result{Payload: f.Payload}) {
		debugf("discarding stale %s response", category)
	}
}

// handleTags runs under rxMu.
func (d *Device) handleTags(payload []byte) {
	if !d.scanning.Load() {
		debugln("discarding tag notification outside inventory")
		return
	}
	records, errs := d.parser.Feed(payload)
	for _, err := range errs {
		d.emit(RecordSkipped{Err: err})
	}
	if len(records) == 0 {
		return
	}
	if d.locateEPC != nil {
		d.handleLocate(records)
		return
	}
	upd := d.agg.Add(records...)
	if upd.Sound != scan.SoundNone {
		d.emit(SoundRequested{Sound: upd.Sound})
	}
	if upd.Batch != nil {
		d.emit(TagsScanned{Tags: upd.Batch})
	}
}

func (d *Device) timeoutFor(category string) time.Duration {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	if t, ok := d.config.CategoryTimeouts[category]; ok {
		return t
	}
	return d.config.Timeout
}

func (d *Device) limits() frame.Limits {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return frame.Limits{MaxFrameLength: d.config.MaxFrameLength}
}

// send writes one frame.
func (d *Device) send(raw []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transport.Send(raw); err != nil {
		return NewTransportError("send", string(d.transport.Type()), err, GetErrorType(err))
	}
	return nil
}

// command sends cmd without expecting a reply.
func (d *Device) command(cmd byte, payload []byte) error {
	if !d.transport.IsConnected() {
		return ErrNotConnected
	}
	raw, err := d.limits().Encode(cmd, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return d.send(raw)
}

// request sends cmd and waits for the reply of category. With coalesce a
// request arriving while another of the same category is outstanding waits
// for that reply instead of sending a second frame.
func (d *Device) request(ctx context.Context, category string, cmd byte, payload []byte, coalesce bool) ([]byte, error) {
	if !d.transport.IsConnected() {
		return nil, ErrNotConnected
	}
	raw, err := d.limits().Encode(cmd, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	done := make(chan pending.Result, 1)
	sink := func(r pending.Result) { done <- r }
	timeout := d.timeoutFor(category)

	leader := true
	if coalesce {
		leader = d.registry.BeginOrJoin(category, timeout, sink)
	} else if err := d.registry.Begin(category, timeout, sink); err != nil {
		return nil, err
	}

	if leader {
		if err := d.send(raw); err != nil {
			d.registry.Fail(category, err)
		}
	} else {
		debugf("joined outstanding %s request", category)
	}

	select {
	case r := <-done:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Payload, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", category, ctx.Err())
	}
}

// requestStatus sends cmd and checks a single-byte status reply.
func (d *Device) requestStatus(ctx context.Context, op, category string, cmd byte, payload []byte) error {
	resp, err := d.request(ctx, category, cmd, payload, false)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return status(op, cmd, resp)
}

// checkTagOp rejects tag operations during a firmware upgrade.
func (d *Device) checkTagOp() error {
	if d.upgrading.Load() {
		return ErrUpgradeMode
	}
	return nil
}

// failSound emits the error cue for a failed tag operation.
func (d *Device) failSound(err error) {
	if err == nil || errors.Is(err, ErrInvalidParameter) || !d.agg.SoundEnabled() {
		return
	}
	d.emit(SoundRequested{Sound: scan.SoundError})
}
