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

package bluetooth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/go-uhf/scan"
	"github.com/go-ble/ble"
	"github.com/rs/zerolog"
)

// DefaultDiscoveryInterval is the minimum spacing between discovery batches.
const DefaultDiscoveryInterval = 500 * time.Millisecond

// Peripheral is a reader seen while scanning.
type Peripheral struct {
	Address     string
	Name        string
	RSSI        int
	Connectable bool
}

// DiscoverOptions controls a scan.
type DiscoverOptions struct {
	// NamePrefix keeps only peripherals whose local name starts with it.
	NamePrefix string
	// Service keeps only peripherals advertising this service when set.
	Service ble.UUID
	// Timeout ends the scan; zero scans until ctx is done.
	Timeout time.Duration
	// Interval is the minimum spacing between batches.
	Interval time.Duration
}

type scanFunc func(ctx context.Context, allowDup bool, h ble.AdvHandler, f ble.AdvFilter) error

// Scanner discovers peripherals and reports them in rate limited batches.
type Scanner struct {
	scan scanFunc
	log  zerolog.Logger
}

// NewScanner returns a scanner on the default BLE device.
func NewScanner(log zerolog.Logger) *Scanner {
	return &Scanner{scan: ble.Scan, log: log}
}

// Discover runs a scan on the default BLE device. See Scanner.Discover.
func Discover(ctx context.Context, opts DiscoverOptions, found func([]Peripheral)) error {
	return NewScanner(zerolog.Nop()).Discover(ctx, opts, found)
}

// Discover scans until opts.Timeout or ctx ends. Each peripheral is reported
// once. Batches are delivered on arrival no more often than opts.Interval and
// the remainder is flushed when the scan stops. Reaching opts.Timeout is not
// an error.
func (s *Scanner) Discover(ctx context.Context, opts DiscoverOptions, found func([]Peripheral)) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultDiscoveryInterval
	}
	scanCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	batcher := scan.NewBatcher[Peripheral](interval)
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)

	handler := func(a ble.Advertisement) {
		p := Peripheral{
			Address:     a.Addr().String(),
			Name:        a.LocalName(),
			RSSI:        a.RSSI(),
			Connectable: a.Connectable(),
		}
		mu.Lock()
		if _, dup := seen[p.Address]; dup {
			mu.Unlock()
			return
		}
		seen[p.Address] = struct{}{}
		mu.Unlock()

		s.log.Debug().Str("addr", p.Address).Str("name", p.Name).Int("rssi", p.RSSI).Msg("peripheral found")
		if batch := batcher.Add(p); len(batch) > 0 {
			found(batch)
		}
	}

	err := s.scan(scanCtx, false, handler, opts.filter)
	if batch := batcher.Flush(); len(batch) > 0 {
		found(batch)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil
	default:
		return err
	}
}

func (o DiscoverOptions) filter(a ble.Advertisement) bool {
	if o.NamePrefix != "" && !strings.HasPrefix(a.LocalName(), o.NamePrefix) {
		return false
	}
	if len(o.Service) == 0 {
		return true
	}
	for _, u := range a.Services() {
		if u.Equal(o.Service) {
			return true
		}
	}
	return false
}
