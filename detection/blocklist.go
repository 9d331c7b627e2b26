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
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns a list of known problematic USB devices
// that should not be probed during detection.
// Format: VID:PID in hexadecimal (case-insensitive).
func DefaultBlocklist() []string {
	return []string{
		// Arduino boards reset when their port is opened
		"2341:0043", // Uno R3
		"2341:0042", // Mega 2560 R3
		"2341:8036", // Leonardo
	}
}

// knownBridges lists USB serial bridges found in handheld readers and their
// charging cradles, keyed by VID:PID.
var knownBridges = map[string]string{
	"0403:6001": "FTDI FT232R",
	"0403:6015": "FTDI FT231X",
	"10C4:EA60": "Silicon Labs CP210x",
	"1A86:55D4": "WCH CH9102",
	"1A86:7523": "WCH CH340",
}

// KnownBridge reports whether vidpid is a USB serial bridge readers are built
// on, and its chip name.
func KnownBridge(vidpid string) (string, bool) {
	name, ok := knownBridges[strings.ToUpper(strings.TrimSpace(vidpid))]
	return name, ok
}

// IsBlocked checks if a USB device is in the blocklist. Entries may use any
// format ParseVIDPID accepts.
func IsBlocked(vidpid string, blocklist []string) bool {
	key := ParseVIDPID(vidpid)
	if key == "" {
		return false
	}
	for _, blocked := range blocklist {
		if ParseVIDPID(blocked) == key {
			return true
		}
	}
	return false
}

var (
	vidMarkers = []string{"VID:", "VID=", "VENDOR="}
	pidMarkers = []string{"PID:", "PID=", "PRODUCT="}
)

// ParseVIDPID extracts an upper-case VID:PID from descriptors such as
// "VID:10c4 PID:ea60", "vendor=0403 product=6001" or "1a86:7523". It
// returns "" when none is found.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(strings.TrimSpace(descriptor))

	vid, pid := afterMarker(descriptor, vidMarkers), afterMarker(descriptor, pidMarkers)
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	vid, pid, ok := strings.Cut(descriptor, ":")
	if ok && isHex(vid) && isHex(pid) {
		return vid + ":" + pid
	}
	return ""
}

// afterMarker returns the hex digits following the first marker present.
func afterMarker(s string, markers []string) string {
	for _, m := range markers {
		if idx := strings.Index(s, m); idx >= 0 {
			return leadingHex(s[idx+len(m):])
		}
	}
	return ""
}

func leadingHex(s string) string {
	end := 0
	for end < len(s) && isHex(s[end:end+1]) {
		end++
	}
	return s[:end]
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// IsPathIgnored reports whether devicePath, a port path or a BLE address,
// matches an entry of ignorePaths after cleaning and case folding.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := normalizedPath(devicePath)
	for _, p := range ignorePaths {
		if p != "" && normalizedPath(p) == device {
			return true
		}
	}
	return false
}

// normalizedPath cleans relative components and folds case, since Windows
// port names and BLE addresses are case-insensitive.
func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
