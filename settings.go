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
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/inventory"
)

// TagFormat returns the inventory record layout and remembers its profile
// for decoding.
func (d *Device) TagFormat(ctx context.Context) (TagFormat, error) {
	resp, err := d.request(ctx, CategoryTagFormatGet, frame.CmdGetTagFormat, nil, true)
	if err != nil {
		return TagFormat{}, fmt.Errorf("tag format: %w", err)
	}
	f, err := parseTagFormat(resp)
	if err != nil {
		return TagFormat{}, fmt.Errorf("tag format: %w", err)
	}
	d.setProfile(f.Profile)
	return f, nil
}

// SetTagFormat selects the inventory record layout.
func (d *Device) SetTagFormat(ctx context.Context, f TagFormat) error {
	payload, err := f.encode()
	if err != nil {
		return fmt.Errorf("set tag format: %w", err)
	}
	if err := d.requestStatus(ctx, "set tag format", CategoryTagFormatSet, frame.CmdSetTagFormat, payload); err != nil {
		return err
	}
	d.setProfile(f.Profile)
	return nil
}

// Profile returns the record layout used to decode inventory data.
func (d *Device) Profile() inventory.Profile {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.config.Profile
}

func (d *Device) setProfile(p inventory.Profile) {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.config.Profile = p
}

// Power returns the antenna RF output.
func (d *Device) Power(ctx context.Context) (PowerConfig, error) {
	resp, err := d.request(ctx, CategoryPowerGet, frame.CmdGetPower, nil, true)
	if err != nil {
		return PowerConfig{}, fmt.Errorf("power: %w", err)
	}
	p, err := parsePowerConfig(resp)
	if err != nil {
		return PowerConfig{}, fmt.Errorf("power: %w", err)
	}
	return p, nil
}

// SetPower sets the antenna RF output. With save the setting survives a
// power cycle.
func (d *Device) SetPower(ctx context.Context, p PowerConfig, save bool) error {
	payload, err := p.encode(save)
	if err != nil {
		return fmt.Errorf("set power: %w", err)
	}
	return d.requestStatus(ctx, "set power", CategoryPowerSet, frame.CmdSetPower, payload)
}

// Region returns the frequency plan.
func (d *Device) Region(ctx context.Context) (Region, error) {
	resp, err := d.request(ctx, CategoryRegionGet, frame.CmdGetRegion, nil, true)
	if err != nil {
		return 0, fmt.Errorf("region: %w", err)
	}
	if len(resp) < 1 {
		return 0, fmt.Errorf("region: %w: empty response", ErrMalformedFrame)
	}
	return Region(resp[0]), nil
}

// SetRegion sets the frequency plan.
func (d *Device) SetRegion(ctx context.Context, r Region, save bool) error {
	if !r.Valid() {
		return fmt.Errorf("set region: %w: %v", ErrInvalidParameter, r)
	}
	return d.requestStatus(ctx, "set region", CategoryRegionSet, frame.CmdSetRegion, []byte{boolByte(save), byte(r)})
}

// SetBuzzer turns the reader's own beeper on or off.
func (d *Device) SetBuzzer(ctx context.Context, on bool) error {
	return d.requestStatus(ctx, "set buzzer", CategoryBuzzer, frame.CmdBuzzer, []byte{boolByte(on)})
}

// SetFilter restricts inventory to tags matching f. A nil filter clears it.
func (d *Device) SetFilter(ctx context.Context, f *Filter) error {
	if err := d.checkTagOp(); err != nil {
		return err
	}
	payload, err := appendFilter(nil, f)
	if err != nil {
		return fmt.Errorf("set filter: %w", err)
	}
	return d.requestStatus(ctx, "set filter", CategoryFilter, frame.CmdSetFilter, payload)
}

// SetCategoryTimeout changes the reply timeout of one category. It applies
// to requests issued afterwards.
func (d *Device) SetCategoryTimeout(category string, timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
	}
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.config.CategoryTimeouts[category] = timeout
	return nil
}

// SetTimeout changes the default reply timeout.
func (d *Device) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
	}
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.config.Timeout = timeout
	return nil
}

// SetEventRate changes the minimum spacing between TagsScanned events.
func (d *Device) SetEventRate(rate time.Duration) {
	d.agg.SetEventRate(rate)
}

// SetSoundEnabled turns SoundRequested events on or off.
func (d *Device) SetSoundEnabled(enabled bool) {
	d.agg.SetSoundEnabled(enabled)
}

// SetRepeatSound makes repeat sightings request SoundSeen.
func (d *Device) SetRepeatSound(enabled bool) {
	d.agg.SetRepeatSound(enabled)
}

// SetSoundFilter restricts audible feedback to the given EPCs, in hex.
func (d *Device) SetSoundFilter(epcs []string) {
	d.agg.SetSoundFilter(epcs)
}

// ClearCache forgets which tags have been seen, so each sounds again.
func (d *Device) ClearCache() {
	d.agg.ClearCache()
}

// Seen reports whether an EPC, in hex, has been seen this session.
func (d *Device) Seen(epcHex string) bool {
	return d.agg.Seen(epcHex)
}
