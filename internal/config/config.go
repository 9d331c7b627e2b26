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

// Package config loads the uhfscan session configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/ZaparooProject/go-uhf/transport/uart"
)

// Transport names accepted in the transport key.
const (
	TransportUART     = "uart"
	TransportBLE      = "ble"
	TransportSimulate = "simulate"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is a complete uhfscan session.
type Config struct {
	Device         *uhf.DeviceConfig
	Transport      string
	Port           string
	BLEAddress     string
	BLEService     string
	BLENotify      string
	BLEWrite       string
	RelayAddr      string
	TriggerPin     string
	Region         string
	BaudRate       int
	Power          float64
	InventoryCount uint16
	Debug          bool
}

// Default returns a session that auto-detects a serial reader and uses the
// library defaults.
func Default() Config {
	return Config{
		Device:    uhf.DefaultDeviceConfig(),
		Transport: TransportUART,
		BaudRate:  uart.DefaultBaudRate,
	}
}

// uhfscan config.toml key mapping to session settings.
type fileConfig struct {
	Timeouts       map[string]string `toml:"timeouts"`
	Transport      string            `toml:"transport"`
	Port           string            `toml:"port"`
	BLEAddress     string            `toml:"ble_address"`
	BLEService     string            `toml:"ble_service_uuid"`
	BLENotify      string            `toml:"ble_notify_uuid"`
	BLEWrite       string            `toml:"ble_write_uuid"`
	RelayAddr      string            `toml:"relay_addr"`
	TriggerPin     string            `toml:"trigger_pin"`
	Region         string            `toml:"region"`
	Timeout        string            `toml:"timeout"`
	EventRate      string            `toml:"event_rate"`
	Profile        string            `toml:"profile"`
	SoundFilter    []string          `toml:"sound_filter"`
	BaudRate       int               `toml:"baud_rate"`
	EventBuffer    int               `toml:"event_buffer"`
	MaxFrameLength int               `toml:"max_frame_length"`
	InventoryCount int               `toml:"inventory_count"`
	Power          float64           `toml:"power"`
	Sound          bool              `toml:"sound"`
	RepeatSound    bool              `toml:"repeat_sound"`
	Debug          bool              `toml:"debug"`
}

// Load reads path and overlays the keys it defines on Default. The result
// is validated.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load uhfscan config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load uhfscan config: %w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	cfg, err := overlay(Default(), raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("load uhfscan config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load uhfscan config: %w", err)
	}
	return cfg, nil
}

func overlay(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud_rate") {
		cfg.BaudRate = raw.BaudRate
	}
	if meta.IsDefined("ble_address") {
		cfg.BLEAddress = strings.TrimSpace(raw.BLEAddress)
	}
	if meta.IsDefined("ble_service_uuid") {
		cfg.BLEService = strings.TrimSpace(raw.BLEService)
	}
	if meta.IsDefined("ble_notify_uuid") {
		cfg.BLENotify = strings.TrimSpace(raw.BLENotify)
	}
	if meta.IsDefined("ble_write_uuid") {
		cfg.BLEWrite = strings.TrimSpace(raw.BLEWrite)
	}
	if meta.IsDefined("relay_addr") {
		cfg.RelayAddr = strings.TrimSpace(raw.RelayAddr)
	}
	if meta.IsDefined("trigger_pin") {
		cfg.TriggerPin = strings.TrimSpace(raw.TriggerPin)
	}
	if meta.IsDefined("region") {
		cfg.Region = strings.ToUpper(strings.TrimSpace(raw.Region))
	}
	if meta.IsDefined("power") {
		cfg.Power = raw.Power
	}
	if meta.IsDefined("inventory_count") {
		if raw.InventoryCount < 0 || raw.InventoryCount > 0xFFFF {
			return cfg, fmt.Errorf("%w: inventory_count %d out of range", ErrInvalidConfig, raw.InventoryCount)
		}
		cfg.InventoryCount = uint16(raw.InventoryCount)
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}

	dev := cfg.Device
	if meta.IsDefined("timeout") {
		d, err := parseDuration("timeout", raw.Timeout)
		if err != nil {
			return cfg, err
		}
		dev.Timeout = d
	}
	if meta.IsDefined("event_rate") {
		d, err := parseDuration("event_rate", raw.EventRate)
		if err != nil {
			return cfg, err
		}
		dev.EventRate = d
	}
	for category, value := range raw.Timeouts {
		d, err := parseDuration("timeouts."+category, value)
		if err != nil {
			return cfg, err
		}
		dev.CategoryTimeouts[category] = d
	}
	if meta.IsDefined("profile") {
		p, err := inventory.ParseProfile(raw.Profile)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		dev.Profile = p
	}
	if meta.IsDefined("sound_filter") {
		dev.SoundFilter = raw.SoundFilter
	}
	if meta.IsDefined("event_buffer") {
		dev.EventBuffer = raw.EventBuffer
	}
	if meta.IsDefined("max_frame_length") {
		dev.MaxFrameLength = raw.MaxFrameLength
	}
	if meta.IsDefined("sound") {
		dev.SoundEnabled = raw.Sound
	}
	if meta.IsDefined("repeat_sound") {
		dev.RepeatSound = raw.RepeatSound
	}
	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return d, nil
}

// Validate checks the session for contradictions.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportUART, TransportSimulate:
	case TransportBLE:
		if c.BLEAddress == "" {
			return fmt.Errorf("%w: ble transport needs ble_address", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("%w: baud_rate must be positive", ErrInvalidConfig)
	}
	if c.Power != 0 && (c.Power < uhf.MinPower || c.Power > uhf.MaxPower) {
		return fmt.Errorf("%w: power %.1f outside %.0f..%.0f dBm", ErrInvalidConfig, c.Power, uhf.MinPower, uhf.MaxPower)
	}
	if c.Region != "" {
		if _, err := uhf.ParseRegion(c.Region); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	dev := c.Device
	if dev == nil {
		return fmt.Errorf("%w: missing device settings", ErrInvalidConfig)
	}
	if dev.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if dev.EventRate < 0 {
		return fmt.Errorf("%w: event_rate must not be negative", ErrInvalidConfig)
	}
	if dev.EventBuffer <= 0 {
		return fmt.Errorf("%w: event_buffer must be positive", ErrInvalidConfig)
	}
	for category, d := range dev.CategoryTimeouts {
		if d <= 0 {
			return fmt.Errorf("%w: timeouts.%s must be positive", ErrInvalidConfig, category)
		}
	}
	return nil
}

// DeviceOptions returns the options that apply the device settings.
func (c Config) DeviceOptions() []uhf.Option {
	return []uhf.Option{uhf.WithConfig(c.Device)}
}
