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

package pending

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect() (Sink, <-chan Result) {
	ch := make(chan Result, 4)
	return func(r Result) { ch <- r }, ch
}

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("sink was not invoked")
		return Result{}
	}
}

func TestRegistry_BeginResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	sink, ch := collect()
	require.NoError(t, r.Begin("battery", time.Second, sink))
	assert.True(t, r.Pending("battery"))

	assert.True(t, r.Resolve("battery", Result{Payload: []byte{0x64}}))
	res := receive(t, ch)
	require.NoError(t, res.Err)
	assert.Equal(t, []byte{0x64}, res.Payload)
	assert.False(t, r.Pending("battery"))
}

func TestRegistry_BusyCategoryRejected(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first, firstCh := collect()
	second, secondCh := collect()

	require.NoError(t, r.Begin("read", time.Second, first))
	err := r.Begin("read", time.Second, second)
	require.ErrorIs(t, err, ErrAlreadyPending)

	require.True(t, r.Resolve("read", Result{Payload: []byte{1}}))
	assert.Equal(t, []byte{1}, receive(t, firstCh).Payload)
	assert.Empty(t, secondCh)
}

func TestRegistry_CategoriesAreIndependent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	readSink, readCh := collect()
	battSink, battCh := collect()
	require.NoError(t, r.Begin("read", time.Second, readSink))
	require.NoError(t, r.Begin("battery", time.Second, battSink))
	assert.Equal(t, []string{"battery", "read"}, r.Categories())

	require.True(t, r.Resolve("battery", Result{Payload: []byte{0x50}}))
	assert.Equal(t, []byte{0x50}, receive(t, battCh).Payload)
	assert.Empty(t, readCh)
	assert.True(t, r.Pending("read"))
}

func TestRegistry_StaleResponse(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.False(t, r.Resolve("battery", Result{}))
}

func TestRegistry_Timeout(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	sink, ch := collect()
	const timeout = 30 * time.Millisecond
	start := time.Now()
	require.NoError(t, r.Begin("temperature", timeout, sink))

	res := receive(t, ch)
	elapsed := time.Since(start)
	require.ErrorIs(t, res.Err, ErrTimeout)
	var te *TimeoutError
	require.ErrorAs(t, res.Err, &te)
	assert.Equal(t, "temperature", te.Category)
	assert.GreaterOrEqual(t, elapsed, timeout)

	assert.False(t, r.Pending("temperature"))
	assert.False(t, r.Resolve("temperature", Result{Payload: []byte{1}}), "late reply is stale")
}

func TestRegistry_NoTimeoutAfterResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var calls atomic.Int32
	sink := func(Result) { calls.Add(1) }
	require.NoError(t, r.Begin("power.get", 20*time.Millisecond, sink))
	require.True(t, r.Resolve("power.get", Result{}))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistry_OldTimerDoesNotExpireNewOperation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Begin("region.get", time.Hour, func(Result) {}))
	op := r.ops["region.get"]
	require.True(t, r.Resolve("region.get", Result{}))

	sink, ch := collect()
	require.NoError(t, r.Begin("region.get", time.Hour, sink))
	r.expire("region.get", op.gen)

	assert.True(t, r.Pending("region.get"))
	assert.Empty(t, ch)
}

func TestRegistry_BeginOrJoin(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a, aCh := collect()
	b, bCh := collect()

	assert.True(t, r.BeginOrJoin("battery", time.Second, a))
	assert.False(t, r.BeginOrJoin("battery", time.Second, b))
	assert.Equal(t, 2, r.Waiters("battery"))

	require.True(t, r.Resolve("battery", Result{Payload: []byte{0x42}}))
	assert.Equal(t, []byte{0x42}, receive(t, aCh).Payload)
	assert.Equal(t, []byte{0x42}, receive(t, bCh).Payload)
}

func TestRegistry_JoinedSinksGetOwnPayload(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var seen [][]byte
	for range 3 {
		r.BeginOrJoin("battery", time.Second, func(res Result) {
			seen = append(seen, append([]byte(nil), res.Payload...))
			res.Payload[0] = 0xFF
		})
	}
	r.Resolve("battery", Result{Payload: []byte{0x42, 0x01}})

	require.Len(t, seen, 3)
	for i, p := range seen {
		assert.Equal(t, []byte{0x42, 0x01}, p, "sink %d saw an earlier sink's write", i)
	}
}

func TestRegistry_SinksRunInOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var order []int
	for i := range 3 {
		r.BeginOrJoin("firmware-version", time.Second, func(Result) { order = append(order, i) })
	}
	r.Resolve("firmware-version", Result{})
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestRegistry_SinkMayBeginSameCategory(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var again error
	require.NoError(t, r.Begin("read", time.Second, func(Result) {
		again = r.Begin("read", time.Second, func(Result) {})
	}))
	require.True(t, r.Resolve("read", Result{}))
	require.NoError(t, again)
	assert.True(t, r.Pending("read"))
}

func TestRegistry_Abort(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	errGone := errors.New("link lost")
	a, aCh := collect()
	b, bCh := collect()
	require.NoError(t, r.Begin("read", time.Second, a))
	require.NoError(t, r.Begin("write", time.Second, b))

	r.Abort(errGone)
	require.ErrorIs(t, receive(t, aCh).Err, errGone)
	require.ErrorIs(t, receive(t, bCh).Err, errGone)
	assert.Empty(t, r.Categories())
}

func TestRegistry_ConcurrentResolveAndExpire(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for range 50 {
		var calls atomic.Int32
		require.NoError(t, r.Begin("kill", time.Millisecond, func(Result) { calls.Add(1) }))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			r.Resolve("kill", Result{})
		}()
		wg.Wait()
		time.Sleep(5 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
	}
}
