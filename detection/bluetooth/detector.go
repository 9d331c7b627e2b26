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

// Package bluetooth detects readers advertising the serial GATT service.
// Importing it registers the detector; bluetooth.Init must have been called
// on the transport package first.
package bluetooth

import (
	"context"
	"strconv"
	"time"

	"github.com/ZaparooProject/go-uhf/detection"
	blet "github.com/ZaparooProject/go-uhf/transport/bluetooth"
)

// TransportName is the value of DeviceInfo.Transport for BLE readers.
const TransportName = "ble"

// maxScan bounds a scan when the detection options carry no timeout.
const maxScan = 5 * time.Second

type discoverFunc func(ctx context.Context, opts blet.DiscoverOptions, found func([]blet.Peripheral)) error

type detector struct {
	discover discoverFunc
}

// New creates a new BLE detector
func New() detection.Detector {
	return &detector{discover: blet.Discover}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return TransportName
}

// Detect scans for peripherals advertising the reader service until ctx
// ends. Scanning is passive, so Mode does not change the result.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	var devices []detection.DeviceInfo
	scanOpts := blet.DiscoverOptions{Service: blet.DefaultServiceUUID}
	if _, ok := ctx.Deadline(); !ok {
		scanOpts.Timeout = maxScan
	}

	err := d.discover(ctx, scanOpts, func(batch []blet.Peripheral) {
		for _, p := range batch {
			if detection.IsPathIgnored(p.Address, opts.IgnorePaths) {
				continue
			}
			name := p.Name
			if name == "" {
				name = p.Address
			}
			devices = append(devices, detection.DeviceInfo{
				Transport:  TransportName,
				Path:       p.Address,
				Name:       name,
				Confidence: detection.Medium,
				Metadata:   map[string]string{"rssi": strconv.Itoa(p.RSSI)},
			})
		}
	})
	if len(devices) > 0 {
		return devices, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, detection.ErrNoDevicesFound
}
