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
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdv implements the advertisement fields discovery reads.
type fakeAdv struct {
	ble.Advertisement
	addr     string
	name     string
	services []ble.UUID
	rssi     int
}

func (a fakeAdv) Addr() ble.Addr       { return ble.NewAddr(a.addr) }
func (a fakeAdv) LocalName() string    { return a.name }
func (a fakeAdv) RSSI() int            { return a.rssi }
func (fakeAdv) Connectable() bool      { return true }
func (a fakeAdv) Services() []ble.UUID { return a.services }

func replay(advs []fakeAdv, err error) scanFunc {
	return func(_ context.Context, _ bool, h ble.AdvHandler, f ble.AdvFilter) error {
		for _, a := range advs {
			if f == nil || f(a) {
				h(a)
			}
		}
		return err
	}
}

func TestDiscoverDeduplicatesAndFlushes(t *testing.T) {
	t.Parallel()

	advs := []fakeAdv{
		{addr: "aa:aa:aa:aa:aa:01", name: "R6-01", rssi: -40},
		{addr: "aa:aa:aa:aa:aa:02", name: "R6-02", rssi: -60},
		{addr: "aa:aa:aa:aa:aa:01", name: "R6-01", rssi: -41},
	}
	s := &Scanner{scan: replay(advs, nil), log: zerolog.Nop()}

	var got []Peripheral
	batches := 0
	err := s.Discover(context.Background(), DiscoverOptions{Interval: time.Hour}, func(b []Peripheral) {
		batches++
		got = append(got, b...)
	})
	require.NoError(t, err)

	// first sighting is emitted immediately, the rest waits for the flush
	assert.Equal(t, 2, batches)
	require.Len(t, got, 2)
	assert.Equal(t, "R6-01", got[0].Name)
	assert.Equal(t, -40, got[0].RSSI)
	assert.Equal(t, "R6-02", got[1].Name)
	assert.True(t, got[1].Connectable)
}

func TestDiscoverFilters(t *testing.T) {
	t.Parallel()

	advs := []fakeAdv{
		{addr: "aa:aa:aa:aa:aa:01", name: "R6-01", services: []ble.UUID{DefaultServiceUUID}},
		{addr: "aa:aa:aa:aa:aa:02", name: "Headset"},
		{addr: "aa:aa:aa:aa:aa:03", name: "R6-03"},
	}

	tests := []struct {
		name string
		opts DiscoverOptions
		want []string
	}{
		{name: "no filter", want: []string{"R6-01", "Headset", "R6-03"}},
		{name: "name prefix", opts: DiscoverOptions{NamePrefix: "R6"}, want: []string{"R6-01", "R6-03"}},
		{name: "service", opts: DiscoverOptions{Service: DefaultServiceUUID}, want: []string{"R6-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &Scanner{scan: replay(advs, nil), log: zerolog.Nop()}
			var names []string
			require.NoError(t, s.Discover(context.Background(), tt.opts, func(b []Peripheral) {
				for _, p := range b {
					names = append(names, p.Name)
				}
			}))
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDiscoverErrors(t *testing.T) {
	t.Parallel()

	hciErr := errors.New("hci down")
	s := &Scanner{scan: replay(nil, hciErr), log: zerolog.Nop()}
	require.ErrorIs(t, s.Discover(context.Background(), DiscoverOptions{}, func([]Peripheral) {}), hciErr)

	timedOut := &Scanner{scan: func(ctx context.Context, _ bool, _ ble.AdvHandler, _ ble.AdvFilter) error {
		<-ctx.Done()
		return ctx.Err()
	}, log: zerolog.Nop()}
	require.NoError(t, timedOut.Discover(context.Background(), DiscoverOptions{Timeout: 10 * time.Millisecond},
		func([]Peripheral) {}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, timedOut.Discover(ctx, DiscoverOptions{Timeout: time.Second}, func([]Peripheral) {}),
		context.Canceled)
}
