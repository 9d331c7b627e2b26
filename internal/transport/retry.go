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

// Package transport provides helpers shared by the transport adapters.
package transport

import (
	"context"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
)

// RetryOperation represents a function that can be retried
// Returns: data, shouldRetry, error
// - data: the result if successful
// - shouldRetry: true if the operation should be retried
// - error: any permanent error that should stop retries
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures retry behavior
type RetryConfig struct {
	OnRetry       func() error
	OnRetryFailed func() error
	Description   string
	Port          string
	MaxRetries    int
	RetryDelay    time.Duration
}

// WithRetry runs operation until it succeeds, fails permanently, exhausts
// MaxRetries or ctx is done.
func WithRetry[T any](ctx context.Context, config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if attempt >= config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, err
			}
		}

		if err := sleep(ctx, config.RetryDelay); err != nil {
			return zero, err
		}
	}

	if config.OnRetryFailed != nil {
		if err := config.OnRetryFailed(); err != nil {
			return zero, err
		}
	}

	return zero, uhf.NewTransportError(describe(config.Description, "retry"), config.Port,
		uhf.ErrTransportWrite, uhf.ErrorTypeTransient)
}

// TimeoutRetry polls operation until it reports done or timeout elapses.
func TimeoutRetry[T any](ctx context.Context, timeout, interval time.Duration, operation RetryOperation[T]) (T, error) {
	var zero T
	if interval <= 0 {
		interval = time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if err := sleep(ctx, interval); err != nil {
			return zero, err
		}
	}

	return zero, uhf.NewTimeoutError("timeoutRetry", "")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func describe(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
