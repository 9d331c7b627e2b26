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

// Package uart detects readers attached as serial ports. Importing it
// registers the detector with the detection package.
package uart

import (
	"context"
	"fmt"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/detection"
	uarttransport "github.com/ZaparooProject/go-uhf/transport/uart"
	"go.bug.st/serial/enumerator"
)

const (
	// TransportName is the value of DeviceInfo.Transport for serial readers.
	TransportName = "uart"

	probeTimeout = time.Second
)

type (
	lister func() ([]*enumerator.PortDetails, error)
	prober func(ctx context.Context, path string) (string, error)
)

// detector implements the Detector interface for serial ports
type detector struct {
	list  lister
	probe prober
}

// New creates a new serial port detector
func New() detection.Detector {
	return &detector{list: enumerator.GetDetailedPortsList, probe: probeFirmware}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return TransportName
}

// Detect enumerates serial ports and, unless opts.Mode is Passive, asks
// candidates for their firmware version.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, p := range ports {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		if dev, ok := d.inspect(ctx, p, opts); ok {
			devices = append(devices, dev)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) inspect(ctx context.Context, p *enumerator.PortDetails, opts *detection.Options) (
	detection.DeviceInfo, bool,
) {
	if detection.IsPathIgnored(p.Name, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	dev := detection.DeviceInfo{
		Transport: TransportName,
		Path:      p.Name,
		Name:      p.Name,
		Metadata:  map[string]string{},
	}

	var vidpid string
	if p.IsUSB {
		vidpid = detection.ParseVIDPID(p.VID + ":" + p.PID)
		if detection.IsBlocked(vidpid, opts.Blocklist) {
			return detection.DeviceInfo{}, false
		}
		dev.Metadata["vidpid"] = vidpid
		if p.SerialNumber != "" {
			dev.Metadata["serial"] = p.SerialNumber
		}
		if p.Product != "" {
			dev.Name = p.Product
			dev.Metadata["product"] = p.Product
		}
	}

	bridge, known := detection.KnownBridge(vidpid)
	if known {
		dev.Confidence = detection.Medium
		dev.Metadata["bridge"] = bridge
	}

	probe := opts.Mode == detection.Full || (opts.Mode == detection.Safe && known)
	if !probe {
		// passive detection only reports USB bridges readers are built on
		return dev, known
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	version, err := d.probe(probeCtx, p.Name)
	cancel()
	if err != nil {
		return dev, known
	}
	dev.Confidence = detection.High
	dev.Metadata["firmware"] = version
	return dev, true
}

// probeFirmware opens path and asks the reader for its firmware version.
func probeFirmware(ctx context.Context, path string) (string, error) {
	t, err := uarttransport.Open(ctx, path)
	if err != nil {
		return "", err
	}
	device, err := uhf.New(t, uhf.WithTimeout(probeTimeout), uhf.WithSound(false))
	if err != nil {
		_ = t.Close()
		return "", err
	}
	defer func() { _ = device.Close() }()

	return device.FirmwareVersion(ctx)
}
