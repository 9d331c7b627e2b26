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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		descriptor string
		want       string
	}{
		{descriptor: "VID:10c4 PID:ea60", want: "10C4:EA60"},
		{descriptor: "1a86:7523", want: "1A86:7523"},
		{descriptor: "vendor=0403 product=6001", want: "0403:6001"},
		{descriptor: "USB VID=0403 PID=6015 SER=A1", want: "0403:6015"},
		{descriptor: "ttyS0", want: ""},
		{descriptor: "zz:yy", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseVIDPID(tt.descriptor))
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{" 2341:0043 ", "1234:ABCD"}
	assert.True(t, IsBlocked("2341:0043", blocklist))
	assert.True(t, IsBlocked("1234:abcd", blocklist))
	assert.False(t, IsBlocked("10C4:EA60", blocklist))
	assert.False(t, IsBlocked("10C4:EA60", nil))
	assert.False(t, IsBlocked("", blocklist))
	assert.True(t, IsBlocked("10c4:ea60", []string{"VID:10C4 PID:EA60"}))
	assert.True(t, IsBlocked("2341:8036", DefaultBlocklist()))
}

func TestKnownBridge(t *testing.T) {
	t.Parallel()

	name, ok := KnownBridge("10c4:ea60")
	assert.True(t, ok)
	assert.Equal(t, "Silicon Labs CP210x", name)

	_, ok = KnownBridge("2341:0043")
	assert.False(t, ok)
	_, ok = KnownBridge(":")
	assert.False(t, ok)
}
