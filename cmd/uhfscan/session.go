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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/internal/config"
	"github.com/ZaparooProject/go-uhf/internal/relay"
	"github.com/ZaparooProject/go-uhf/trigger"
	"github.com/rs/zerolog"
)

const (
	requestTimeout  = 5 * time.Second
	shutdownTimeout = 2 * time.Second
	relayBuffer     = 64
)

// Session drives one connected reader.
type Session struct {
	device *uhf.Device
	output *Output
	hub    *relay.Hub
	relay  chan uhf.Event
	cfg    config.Config
	log    zerolog.Logger
}

// NewSession wraps a connected device.
func NewSession(cfg config.Config, device *uhf.Device, output *Output, log zerolog.Logger) *Session {
	return &Session{cfg: cfg, device: device, output: output, log: log}
}

// Configure applies the radio settings of the session.
func (s *Session) Configure(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if s.cfg.Power != 0 {
		p := uhf.PowerConfig{Read: s.cfg.Power, Write: s.cfg.Power, Antenna: 1}
		if err := s.device.SetPower(ctx, p, false); err != nil {
			return fmt.Errorf("set power: %w", err)
		}
		s.output.OK("Power set to %.1f dBm", s.cfg.Power)
	}
	if s.cfg.Region != "" {
		r, err := uhf.ParseRegion(s.cfg.Region)
		if err != nil {
			return err
		}
		if err := s.device.SetRegion(ctx, r, false); err != nil {
			return fmt.Errorf("set region: %w", err)
		}
		s.output.OK("Region set to %s", r)
	}
	// The reader keeps its own tag format; align it with the session.
	want := s.cfg.Device.Profile
	current, err := s.device.TagFormat(ctx)
	if err != nil {
		return fmt.Errorf("tag format: %w", err)
	}
	if current.Profile != want {
		if err := s.device.SetTagFormat(ctx, uhf.TagFormat{Profile: want, UserWords: 8}); err != nil {
			return fmt.Errorf("set tag format: %w", err)
		}
	}
	s.output.Verbose("   Tag format: %s", want)
	return nil
}

// PrintInfo shows the reader identification.
func (s *Session) PrintInfo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	firmware, err := s.device.FirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("firmware version: %w", err)
	}
	hardware, err := s.device.HardwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("hardware version: %w", err)
	}
	battery, err := s.device.BatteryLevel(ctx)
	if err != nil {
		return fmt.Errorf("battery level: %w", err)
	}
	temperature, err := s.device.Temperature(ctx)
	if err != nil {
		s.output.Warning("temperature unavailable: %v", err)
	}
	s.output.DeviceInfo(firmware, hardware, battery, temperature)
	return nil
}

// RunSingle performs one inventory round.
func (s *Session) RunSingle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	tags, err := s.device.SingleInventory(ctx)
	if err != nil {
		return fmt.Errorf("single inventory: %w", err)
	}
	if len(tags) == 0 {
		s.output.Info("No tags in the field")
		return nil
	}
	s.output.Tags(tags)
	return nil
}

// StartRelay serves device events to websocket clients on addr.
func (s *Session) StartRelay(ctx context.Context, addr string) (stop func()) {
	s.hub = relay.NewHub(s.device, s.log)
	s.relay = make(chan uhf.Event, relayBuffer)

	mux := http.NewServeMux()
	mux.Handle("/ws", s.hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go s.hub.Run(ctx, s.relay)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.output.Error("relay: %v", err)
		}
	}()
	s.output.Info("Relaying events on ws://%s/ws", addr)

	return func() {
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// RunContinuous runs continuous inventory until ctx is done or duration
// elapses. With a trigger button inventory runs only while it is held.
func (s *Session) RunContinuous(ctx context.Context, duration time.Duration, button *trigger.Button) error {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if button != nil {
		go func() {
			if err := button.Run(ctx, func(pressed bool) { s.onTrigger(ctx, pressed) }); err != nil &&
				!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				s.output.Error("trigger: %v", err)
			}
		}()
		s.output.Info("Hold the trigger to scan")
	} else if err := s.device.StartInventory(ctx, s.cfg.InventoryCount); err != nil {
		return fmt.Errorf("start inventory: %w", err)
	}

	err := s.loop(ctx)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
	defer cancel()
	if stopErr := s.device.StopInventory(stopCtx); stopErr != nil {
		s.output.Warning("stop inventory: %v", stopErr)
	}
	s.drain()
	s.output.Summary(s.device.InventoryMetrics())
	return err
}

// RunLocate follows one tag until ctx is done or duration elapses.
func (s *Session) RunLocate(ctx context.Context, epc []byte, duration time.Duration) error {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if err := s.device.StartLocate(ctx, epc); err != nil {
		return err
	}
	s.output.Info("Locating %X", epc)

	err := s.loop(ctx)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
	defer cancel()
	if stopErr := s.device.StopLocate(stopCtx); stopErr != nil {
		s.output.Warning("%v", stopErr)
	}
	s.drain()
	return err
}

func (s *Session) loop(ctx context.Context) error {
	events := s.device.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return uhf.ErrTransportClosed
			}
			if err := s.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// drain prints events queued before inventory stopped.
func (s *Session) drain() {
	for {
		select {
		case ev, ok := <-s.device.Events():
			if !ok {
				return
			}
			_ = s.handle(context.Background(), ev)
		default:
			return
		}
	}
}

func (s *Session) handle(ctx context.Context, ev uhf.Event) error {
	s.forward(ev)
	switch e := ev.(type) {
	case uhf.TagsScanned:
		s.output.Tags(e.Tags)
	case uhf.TagLocated:
		s.output.Located(e)
	case uhf.SoundRequested:
		s.output.Sound(e.Sound)
	case uhf.TriggerPressed:
		s.onTrigger(ctx, e.Pressed)
	case uhf.ConnectionChanged:
		if e.State == uhf.StateDisconnected {
			return fmt.Errorf("reader disconnected: %w", e.Err)
		}
	case uhf.FrameDropped:
		s.output.Verbose("   dropped frame: %v", e.Err)
	case uhf.RecordSkipped:
		s.output.Verbose("   skipped record: %v", e.Err)
	case uhf.InventoryStopped:
		s.output.Verbose("   inventory stopped")
	}
	return nil
}

func (s *Session) forward(ev uhf.Event) {
	if s.relay == nil {
		return
	}
	select {
	case s.relay <- ev:
	default:
		s.log.Debug().Msg("relay queue full, event dropped")
	}
}

func (s *Session) onTrigger(ctx context.Context, pressed bool) {
	if ctx.Err() != nil {
		return
	}
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var err error
	switch {
	case pressed && !s.device.Scanning():
		err = s.device.StartInventory(reqCtx, s.cfg.InventoryCount)
	case !pressed:
		err = s.device.StopInventory(reqCtx)
	}
	if err != nil {
		s.output.Warning("trigger: %v", err)
	}
}
