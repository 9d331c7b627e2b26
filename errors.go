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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/internal/pending"
	"github.com/ZaparooProject/go-uhf/inventory"
)

// Protocol and correlation errors
var (
	ErrMalformedFrame  = frame.ErrMalformedFrame
	ErrPayloadTooLarge = frame.ErrPayloadTooLarge
	ErrAlreadyPending  = pending.ErrAlreadyPending
	ErrTimeout         = pending.ErrTimeout
	ErrTruncatedRecord = inventory.ErrTruncatedRecord
	ErrMalformedRecord = inventory.ErrMalformedRecord
)

// Device state errors
var (
	ErrDeviceRejected   = errors.New("device rejected command")
	ErrNotConnected     = errors.New("device not connected")
	ErrUpgradeMode      = errors.New("device is in firmware upgrade mode")
	ErrNotUpgrading     = errors.New("device is not in firmware upgrade mode")
	ErrInventoryActive  = errors.New("inventory is running")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Transport errors
var (
	ErrTransportClosed  = errors.New("transport closed")
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrDeviceNotFound   = errors.New("device not found")
)

// TimeoutError reports that a category received no reply in time.
type TimeoutError = pending.TimeoutError

// DeviceError is a non-success status returned by the reader.
type DeviceError struct {
	Op      string
	Command byte
	Status  byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: command %02X returned status %02X", e.Op, e.Command, e.Status)
}

// Unwrap returns ErrDeviceRejected so errors.Is works.
func (*DeviceError) Unwrap() error {
	return ErrDeviceRejected
}

// ErrorType categorizes errors for retry logic
type ErrorType int

const (
	// ErrorTypePermanent indicates a permanent error that should not be retried
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient indicates a transient error that may succeed on retry
	ErrorTypeTransient
	// ErrorTypeTimeout indicates a timeout error
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// TransportError wraps a transport failure with the port and operation it
// happened on.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error. Transient and timeout errors
// are marked retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Err:       err,
		Op:        op,
		Port:      port,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable transport timeout.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrMalformedFrame):
		return true
	default:
		return false
	}
}

// GetErrorType returns the retry category of err.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout), errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrMalformedFrame):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
