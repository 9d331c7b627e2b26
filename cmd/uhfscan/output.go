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
	"fmt"
	"io"
	"os"
	"strings"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/detection"
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/ZaparooProject/go-uhf/scan"
)

// Output handles consistent formatting of messages
type Output struct {
	w       io.Writer
	verbose bool
}

// NewOutput creates a new output handler
func NewOutput(verbose bool) *Output {
	return &Output{w: os.Stdout, verbose: verbose}
}

// Reader prints one detected reader.
func (o *Output) Reader(i int, reader detection.DeviceInfo) {
	_, _ = fmt.Fprintf(o.w, "%2d. %s\n", i+1, reader.String())
	if !o.verbose {
		return
	}
	for k, v := range reader.Metadata {
		_, _ = fmt.Fprintf(o.w, "      %s: %s\n", k, v)
	}
}

// DeviceInfo prints the reader identification block.
func (o *Output) DeviceInfo(firmware, hardware string, battery, temperature int) {
	_, _ = fmt.Fprintf(o.w, "Firmware:    %s\n", firmware)
	_, _ = fmt.Fprintf(o.w, "Hardware:    %s\n", hardware)
	_, _ = fmt.Fprintf(o.w, "Battery:     %d%%\n", battery)
	_, _ = fmt.Fprintf(o.w, "Temperature: %d C\n", temperature)
}

// Tags prints a batch of sightings.
func (o *Output) Tags(tags []inventory.TagRecord) {
	for _, t := range tags {
		var b strings.Builder
		_, _ = fmt.Fprintf(&b, "TAG: EPC=%s RSSI=%d", t.EPCHex(), t.RSSI)
		if len(t.TID) > 0 {
			_, _ = fmt.Fprintf(&b, " TID=%s", t.TIDHex())
		}
		if o.verbose && len(t.User) > 0 {
			_, _ = fmt.Fprintf(&b, " USER=%s", t.UserHex())
		}
		if t.ReadCount > 1 {
			_, _ = fmt.Fprintf(&b, " x%d", t.ReadCount)
		}
		_, _ = fmt.Fprintln(o.w, b.String())
	}
}

// Located prints one locate reading with a proximity bar.
func (o *Output) Located(l uhf.TagLocated) {
	filled := l.Proximity / 10
	bar := strings.Repeat("#", filled) + strings.Repeat("-", 10-filled)
	_, _ = fmt.Fprintf(o.w, "LOCATE: EPC=%X RSSI=%d [%s] %d%%\n", l.EPC, l.RSSI, bar, l.Proximity)
}

// Sound prints an audible cue as a terminal bell.
func (o *Output) Sound(s scan.Sound) {
	switch s {
	case scan.SoundFound:
		_, _ = fmt.Fprint(o.w, "\a")
	case scan.SoundError:
		_, _ = fmt.Fprint(o.w, "\a\a")
	default:
	}
	o.Verbose("   sound: %s", s)
}

// Summary prints the inventory counters.
func (o *Output) Summary(m scan.MetricsSnapshot) {
	_, _ = fmt.Fprintf(o.w, "Inventory: %d sightings, %d unique tags, %d batches\n",
		m.Sightings, m.NewTags, m.Batches)
}

// Error prints an error message
func (o *Output) Error(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, "ERROR: "+format+"\n", args...)
}

// Warning prints a warning message
func (o *Output) Warning(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, "WARNING: "+format+"\n", args...)
}

// Info prints an info message
func (o *Output) Info(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, "INFO: "+format+"\n", args...)
}

// OK prints a success message
func (o *Output) OK(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, "OK: "+format+"\n", args...)
}

// Verbose prints only if verbose mode is enabled
func (o *Output) Verbose(format string, args ...any) {
	if o.verbose {
		_, _ = fmt.Fprintf(o.w, format+"\n", args...)
	}
}
