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

// Package detection finds attached readers. Transport specific detectors
// register themselves on import; DetectAll runs every registered detector.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no devices found")
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	ErrDetectionTimeout    = errors.New("detection timed out")
)

// Mode controls how invasive detection is.
type Mode int

const (
	// Passive only enumerates, nothing is opened.
	Passive Mode = iota
	// Safe opens candidates that match a known reader signature and asks
	// for the firmware version.
	Safe
	// Full probes every candidate that is not blocklisted.
	Full
)

func (m Mode) String() string {
	switch m {
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return "passive"
	}
}

// Confidence ranks how likely a candidate is a reader.
type Confidence int

const (
	// Low means the device exists but nothing identifies it.
	Low Confidence = iota
	// Medium means the device matches a known reader signature.
	Medium
	// High means the device answered a probe.
	High
)

func (c Confidence) String() string {
	switch c {
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "low"
	}
}

// DeviceInfo describes a detected reader.
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

// String returns a short human readable description.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s:%s (%s, %s confidence)", d.Transport, d.Path, d.Name, d.Confidence)
}

// Options configures detection.
type Options struct {
	// Blocklist holds VID:PID pairs that are never opened.
	Blocklist []string
	// IgnorePaths holds device paths that are skipped entirely.
	IgnorePaths []string
	// Timeout bounds the whole detection run.
	Timeout time.Duration
	Mode    Mode
}

// DefaultOptions returns passive detection with a 5s timeout.
func DefaultOptions() Options {
	return Options{
		Mode:      Passive,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds readers on one kind of transport.
type Detector interface {
	Transport() string
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	detectors  = make(map[string]Detector)
)

// RegisterDetector adds d, replacing any detector for the same transport.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	detectors[d.Transport()] = d
}

// Detectors returns the registered detectors sorted by transport.
func Detectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Detector, 0, len(detectors))
	for _, d := range detectors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Transport() < out[j].Transport() })
	return out
}

// DetectAll runs every registered detector. Detectors that are unsupported on
// the platform are skipped. Results are sorted by confidence, best first.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	return detectWith(ctx, opts, Detectors())
}

func detectWith(ctx context.Context, opts *Options, ds []Detector) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		found []DeviceInfo
		errs  []error
	)
	for _, d := range ds {
		devices, err := d.Detect(ctx, opts)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnsupportedPlatform), errors.Is(err, ErrNoDevicesFound):
		case errors.Is(err, context.DeadlineExceeded):
			errs = append(errs, fmt.Errorf("%s: %w", d.Transport(), ErrDetectionTimeout))
		default:
			errs = append(errs, fmt.Errorf("%s: %w", d.Transport(), err))
		}
		found = append(found, devices...)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Confidence > found[j].Confidence })

	if len(found) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNoDevicesFound
	}
	return found, nil
}
