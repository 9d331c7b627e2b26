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
	"encoding/binary"
	"fmt"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

// Gen2Config holds the EPC Gen2 air interface parameters. Field values are
// passed to the reader unchanged; see the Gen2 standard for their meaning.
type Gen2Config struct {
	// Target is the inventoried flag to select on, 0 for A and 1 for B.
	Target byte
	// Action is the Select action.
	Action byte
	// T is the Select target.
	T byte
	// QAlgorithm is 0 for a static Q and 1 for a dynamic Q.
	QAlgorithm byte
	StartQ     byte
	MinQ       byte
	MaxQ       byte
	// DR is the divide ratio.
	DR byte
	// Coding is the Miller subcarrier setting.
	Coding byte
	// Pilot enables the TRext pilot tone.
	Pilot   byte
	Sel     byte
	Session byte
	// G toggles the target between rounds.
	G byte
	// LinkFrequency selects the backscatter link frequency.
	LinkFrequency byte
}

const gen2Length = 14

func (g Gen2Config) encode() ([]byte, error) {
	switch {
	case g.Target > 1:
		return nil, fmt.Errorf("%w: gen2 target %d", ErrInvalidParameter, g.Target)
	case g.Session > 3:
		return nil, fmt.Errorf("%w: gen2 session %d", ErrInvalidParameter, g.Session)
	case g.MaxQ > 15:
		return nil, fmt.Errorf("%w: gen2 max Q %d", ErrInvalidParameter, g.MaxQ)
	case g.MinQ > g.StartQ || g.StartQ > g.MaxQ:
		return nil, fmt.Errorf("%w: gen2 Q range %d <= %d <= %d does not hold",
			ErrInvalidParameter, g.MinQ, g.StartQ, g.MaxQ)
	}
	return []byte{
		g.Target, g.Action, g.T, g.QAlgorithm, g.StartQ, g.MinQ, g.MaxQ,
		g.DR, g.Coding, g.Pilot, g.Sel, g.Session, g.G, g.LinkFrequency,
	}, nil
}

func parseGen2Config(payload []byte) (Gen2Config, error) {
	if len(payload) < gen2Length {
		return Gen2Config{}, fmt.Errorf("%w: gen2 response is %d bytes", ErrMalformedFrame, len(payload))
	}
	p := payload
	return Gen2Config{
		Target: p[0], Action: p[1], T: p[2], QAlgorithm: p[3],
		StartQ: p[4], MinQ: p[5], MaxQ: p[6],
		DR: p[7], Coding: p[8], Pilot: p[9], Sel: p[10],
		Session: p[11], G: p[12], LinkFrequency: p[13],
	}, nil
}

// Gen2 returns the air interface parameters.
func (d *Device) Gen2(ctx context.Context) (Gen2Config, error) {
	resp, err := d.request(ctx, CategoryGen2Get, frame.CmdGetGen2, nil, true)
	if err != nil {
		return Gen2Config{}, fmt.Errorf("gen2: %w", err)
	}
	g, err := parseGen2Config(resp)
	if err != nil {
		return Gen2Config{}, fmt.Errorf("gen2: %w", err)
	}
	return g, nil
}

// SetGen2 sets the air interface parameters.
func (d *Device) SetGen2(ctx context.Context, g Gen2Config) error {
	payload, err := g.encode()
	if err != nil {
		return fmt.Errorf("set gen2: %w", err)
	}
	return d.requestStatus(ctx, "set gen2", CategoryGen2Set, frame.CmdSetGen2, payload)
}

// RFLink is a preset of modulation, encoding and link frequency.
type RFLink byte

// RF link profiles
const (
	RFLinkDSBFM040K     RFLink = 0x00
	RFLinkPRMiller4250K RFLink = 0x01
	RFLinkPRMiller4300K RFLink = 0x02
	RFLinkDSBFM0400K    RFLink = 0x03
)

func (l RFLink) String() string {
	switch l {
	case RFLinkDSBFM040K:
		return "DSB_ASK/FM0/40KHz"
	case RFLinkPRMiller4250K:
		return "PR_ASK/Miller4/250KHz"
	case RFLinkPRMiller4300K:
		return "PR_ASK/Miller4/300KHz"
	case RFLinkDSBFM0400K:
		return "DSB_ASK/FM0/400KHz"
	default:
		return fmt.Sprintf("RFLink(%d)", byte(l))
	}
}

// Valid reports whether l is a known profile.
func (l RFLink) Valid() bool {
	return l <= RFLinkDSBFM0400K
}

// RFLink returns the active RF link profile.
func (d *Device) RFLink(ctx context.Context) (RFLink, error) {
	resp, err := d.request(ctx, CategoryRFLinkGet, frame.CmdGetRFLink, nil, true)
	if err != nil {
		return 0, fmt.Errorf("rf link: %w", err)
	}
	if len(resp) < 1 {
		return 0, fmt.Errorf("rf link: %w: empty response", ErrMalformedFrame)
	}
	return RFLink(resp[0]), nil
}

// SetRFLink selects the RF link profile.
func (d *Device) SetRFLink(ctx context.Context, l RFLink) error {
	if !l.Valid() {
		return fmt.Errorf("set rf link: %w: %v", ErrInvalidParameter, l)
	}
	return d.requestStatus(ctx, "set rf link", CategoryRFLinkSet, frame.CmdSetRFLink, []byte{byte(l)})
}

// Channel frequency bounds in kHz
const (
	MinChannelKHz = 840000
	MaxChannelKHz = 960000
	// MaxChannels is the largest hopping table the reader accepts.
	MaxChannels = 50
)

// FrequencyHopping returns the hopping table, channel frequencies in kHz.
func (d *Device) FrequencyHopping(ctx context.Context) ([]uint32, error) {
	resp, err := d.request(ctx, CategoryHoppingGet, frame.CmdGetHopping, nil, true)
	if err != nil {
		return nil, fmt.Errorf("frequency hopping: %w", err)
	}
	if len(resp) < 1 || len(resp) != 1+4*int(resp[0]) {
		return nil, fmt.Errorf("frequency hopping: %w: response is %d bytes", ErrMalformedFrame, len(resp))
	}
	channels := make([]uint32, resp[0])
	for i := range channels {
		channels[i] = binary.BigEndian.Uint32(resp[1+4*i:])
	}
	return channels, nil
}

// SetFrequencyHopping replaces the hopping table. The reader hops over the
// channels in the given order.
func (d *Device) SetFrequencyHopping(ctx context.Context, channelsKHz []uint32) error {
	if len(channelsKHz) == 0 || len(channelsKHz) > MaxChannels {
		return fmt.Errorf("set frequency hopping: %w: %d channels, want 1 to %d",
			ErrInvalidParameter, len(channelsKHz), MaxChannels)
	}
	payload := make([]byte, 0, 1+4*len(channelsKHz))
	payload = append(payload, byte(len(channelsKHz)))
	for _, ch := range channelsKHz {
		if ch < MinChannelKHz || ch > MaxChannelKHz {
			return fmt.Errorf("set frequency hopping: %w: channel %d kHz outside [%d, %d]",
				ErrInvalidParameter, ch, MinChannelKHz, MaxChannelKHz)
		}
		payload = binary.BigEndian.AppendUint32(payload, ch)
	}
	return d.requestStatus(ctx, "set frequency hopping", CategoryHoppingSet, frame.CmdSetHopping, payload)
}
