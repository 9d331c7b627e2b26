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
	"fmt"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/detection"
	"github.com/ZaparooProject/go-uhf/internal/config"
	testutil "github.com/ZaparooProject/go-uhf/internal/testing"
	"github.com/ZaparooProject/go-uhf/transport/bluetooth"
	"github.com/ZaparooProject/go-uhf/transport/uart"
	"github.com/go-ble/ble"
	"github.com/rs/zerolog"
)

const (
	// simulatedRound is how often the simulated reader streams inventory.
	simulatedRound = 100 * time.Millisecond
	// portOpenWait covers a reader that is still enumerating on USB.
	portOpenWait = 3 * time.Second
)

// Discovery handles reader discovery and transport creation
type Discovery struct {
	cfg    config.Config
	output *Output
	log    zerolog.Logger
}

// NewDiscovery creates a new discovery handler
func NewDiscovery(cfg config.Config, output *Output, log zerolog.Logger) *Discovery {
	return &Discovery{cfg: cfg, output: output, log: log}
}

// DiscoverReaders runs every registered detector.
func (d *Discovery) DiscoverReaders(ctx context.Context, mode detection.Mode) ([]detection.DeviceInfo, error) {
	d.output.Verbose("Discovering readers...")

	opts := detection.DefaultOptions()
	opts.Mode = mode

	readers, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("reader discovery failed: %w", err)
	}

	d.output.Verbose("   Found %d reader(s)", len(readers))
	return readers, nil
}

// CreateTransport builds the transport named by the session config. A
// serial session without a port uses the best detected reader.
func (d *Discovery) CreateTransport(ctx context.Context) (uhf.Transport, error) {
	switch d.cfg.Transport {
	case config.TransportSimulate:
		return d.simulator(), nil
	case config.TransportBLE:
		return d.bleTransport()
	case config.TransportUART:
		port := d.cfg.Port
		if port == "" {
			found, err := d.autodetect(ctx)
			if err != nil {
				return nil, err
			}
			port = found
		}
		return uart.New(port, uart.WithBaudRate(d.cfg.BaudRate), uart.WithOpenWait(portOpenWait),
			uart.WithLogger(d.log)), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", d.cfg.Transport)
	}
}

func (d *Discovery) autodetect(ctx context.Context) (string, error) {
	readers, err := d.DiscoverReaders(ctx, detection.Safe)
	if err != nil {
		return "", err
	}
	for _, r := range readers {
		if r.Transport == "uart" {
			d.output.Info("Using %s", r.String())
			return r.Path, nil
		}
	}
	return "", fmt.Errorf("%w: no serial reader", uhf.ErrDeviceNotFound)
}

func (d *Discovery) bleTransport() (uhf.Transport, error) {
	if err := bluetooth.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize bluetooth: %w", err)
	}

	opts := []bluetooth.Option{bluetooth.WithLogger(d.log)}
	if d.cfg.BLEService != "" || d.cfg.BLENotify != "" || d.cfg.BLEWrite != "" {
		service, err := parseUUID(d.cfg.BLEService, bluetooth.DefaultServiceUUID)
		if err != nil {
			return nil, err
		}
		notify, err := parseUUID(d.cfg.BLENotify, bluetooth.DefaultNotifyUUID)
		if err != nil {
			return nil, err
		}
		write, err := parseUUID(d.cfg.BLEWrite, bluetooth.DefaultWriteUUID)
		if err != nil {
			return nil, err
		}
		opts = append(opts, bluetooth.WithUUIDs(service, notify, write))
	}
	return bluetooth.New(d.cfg.BLEAddress, opts...), nil
}

func parseUUID(s string, fallback ble.UUID) (ble.UUID, error) {
	if s == "" {
		return fallback, nil
	}
	u, err := ble.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return u, nil
}

// simulator returns a mock transport backed by a virtual reader with a few
// tags in its field.
func (d *Discovery) simulator() uhf.Transport {
	tags := []*testutil.VirtualTag{
		testutil.NewVirtualTag([]byte{0xE2, 0x00, 0x34, 0x12, 0xDC, 0x03, 0x01, 0x18, 0x00, 0x01, 0x00, 0x01}),
		testutil.NewVirtualTag([]byte{0xE2, 0x00, 0x34, 0x12, 0xDC, 0x03, 0x01, 0x18, 0x00, 0x01, 0x00, 0x02}),
		testutil.NewVirtualTag([]byte{0x30, 0x08, 0x33, 0xB2, 0xDD, 0xD9, 0x01, 0x40, 0x00, 0x00, 0x00, 0x2A}),
	}
	tags[1].RSSI = -63
	tags[2].RSSI = -71

	reader := testutil.NewVirtualReader(tags...)
	mock := uhf.NewMockTransport()
	mock.SetResponder(reader.Handle)
	reader.SetNotifier(mock.Inject, simulatedRound)
	d.output.Info("Simulating a reader with %d tags", len(tags))
	return mock
}
