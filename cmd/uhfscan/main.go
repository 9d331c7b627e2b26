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
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/detection"
	"github.com/ZaparooProject/go-uhf/internal/config"
	"github.com/ZaparooProject/go-uhf/inventory"
	"github.com/ZaparooProject/go-uhf/trigger"
	"github.com/rs/zerolog"

	// Import detection packages to register detectors
	_ "github.com/ZaparooProject/go-uhf/detection/bluetooth"
	_ "github.com/ZaparooProject/go-uhf/detection/uart"
)

type flags struct {
	configPath *string
	transport  *string
	port       *string
	bleAddress *string
	baud       *int
	detect     *bool
	detectMode *string
	single     *bool
	locate     *string
	duration   *time.Duration
	count      *uint
	relay      *string
	trigger    *string
	power      *float64
	region     *string
	profile    *string
	simulate   *bool
	debug      *bool
	verbose    *bool
}

func parseFlags() *flags {
	f := &flags{
		configPath: flag.String("config", "", "Path to a TOML session config"),
		transport:  flag.String("transport", config.TransportUART, "Transport: uart, ble or simulate"),
		port: flag.String("port", "",
			"Serial device path (e.g., /dev/ttyUSB0 or COM3). Leave empty for auto-detection."),
		bleAddress: flag.String("ble", "", "Bluetooth LE address of the reader (implies -transport ble)"),
		baud:       flag.Int("baud", 0, "Serial baud rate"),
		detect:     flag.Bool("detect", false, "List detected readers and exit"),
		detectMode: flag.String("detect-mode", "safe", "Detection mode: passive, safe or full"),
		single:     flag.Bool("single", false, "Run one inventory round and exit"),
		locate:     flag.String("locate", "", "Follow the tag with this EPC (hex) and report its proximity"),
		duration:   flag.Duration("duration", 0, "Stop continuous inventory after this long (0 runs until interrupted)"),
		count:      flag.Uint("count", 0, "Inventory rounds for continuous mode (0 is unlimited)"),
		relay:      flag.String("relay", "", "Serve events to websocket clients on this address (e.g., :8080)"),
		trigger:    flag.String("trigger", "", "GPIO pin of a trigger button; inventory runs while held"),
		power:      flag.Float64("power", 0, "Read and write power in dBm"),
		region:     flag.String("region", "", "Frequency region: CN920, CN840, EU, US, KR or JP"),
		profile:    flag.String("profile", "", "Inventory record format: epc, epc+tid or epc+tid+user"),
		simulate:   flag.Bool("simulate", false, "Use a simulated reader"),
		debug:      flag.Bool("debug", false, "Enable debug logging"),
		verbose:    flag.Bool("verbose", false, "Enable verbose output"),
	}
	flag.Parse()
	return f
}

// buildConfig loads the config file, then applies only the flags that were
// set on the command line.
func buildConfig(f *flags) (config.Config, error) {
	cfg := config.Default()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	var err error
	flag.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "transport":
			cfg.Transport = strings.ToLower(*f.transport)
		case "port":
			cfg.Port = *f.port
		case "ble":
			cfg.Transport = config.TransportBLE
			cfg.BLEAddress = *f.bleAddress
		case "baud":
			cfg.BaudRate = *f.baud
		case "count":
			if *f.count > 0xFFFF {
				err = fmt.Errorf("%w: count %d exceeds 65535", config.ErrInvalidConfig, *f.count)
				return
			}
			cfg.InventoryCount = uint16(*f.count)
		case "relay":
			cfg.RelayAddr = *f.relay
		case "trigger":
			cfg.TriggerPin = *f.trigger
		case "power":
			cfg.Power = *f.power
		case "region":
			cfg.Region = strings.ToUpper(*f.region)
		case "profile":
			var p inventory.Profile
			if p, err = inventory.ParseProfile(*f.profile); err != nil {
				err = fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
				return
			}
			cfg.Device.Profile = p
		case "simulate":
			if *f.simulate {
				cfg.Transport = config.TransportSimulate
			}
		case "debug":
			cfg.Debug = *f.debug
		}
	})
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func parseMode(s string) (detection.Mode, error) {
	switch strings.ToLower(s) {
	case "passive":
		return detection.Passive, nil
	case "safe":
		return detection.Safe, nil
	case "full":
		return detection.Full, nil
	default:
		return 0, fmt.Errorf("unknown detection mode %q", s)
	}
}

func main() {
	if run() != 0 {
		os.Exit(1)
	}
}

func run() int {
	f := parseFlags()
	output := NewOutput(*f.verbose)

	cfg, err := buildConfig(f)
	if err != nil {
		output.Error("%v", err)
		return 1
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)
	if cfg.Debug {
		log = log.Level(zerolog.DebugLevel)
		uhf.SetLogger(log.With().Str("component", "uhf").Logger())
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	discovery := NewDiscovery(cfg, output, log)

	if *f.detect {
		err = listReaders(ctx, discovery, output, *f.detectMode)
	} else {
		err = runScan(ctx, cfg, discovery, output, log, f)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		output.Error("%v", err)
		return 1
	}
	return 0
}

func listReaders(ctx context.Context, discovery *Discovery, output *Output, modeName string) error {
	mode, err := parseMode(modeName)
	if err != nil {
		return err
	}
	readers, err := discovery.DiscoverReaders(ctx, mode)
	if err != nil {
		return err
	}
	for i, r := range readers {
		output.Reader(i, r)
	}
	return nil
}

func runScan(ctx context.Context, cfg config.Config, discovery *Discovery, output *Output,
	log zerolog.Logger, f *flags,
) error {
	transport, err := discovery.CreateTransport(ctx)
	if err != nil {
		return err
	}

	device, err := uhf.New(transport, cfg.DeviceOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	defer func() { _ = device.Close() }()

	if err := device.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to reader: %w", err)
	}
	output.OK("Connected via %s", transport.Type())

	session := NewSession(cfg, device, output, log)
	if err := session.PrintInfo(ctx); err != nil {
		return err
	}
	if err := session.Configure(ctx); err != nil {
		return err
	}

	if *f.single {
		return session.RunSingle(ctx)
	}
	if *f.locate != "" {
		epc, err := hex.DecodeString(*f.locate)
		if err != nil || len(epc) == 0 {
			return fmt.Errorf("invalid EPC %q", *f.locate)
		}
		return session.RunLocate(ctx, epc, *f.duration)
	}

	if cfg.RelayAddr != "" {
		stop := session.StartRelay(ctx, cfg.RelayAddr)
		defer stop()
	}

	var button *trigger.Button
	if cfg.TriggerPin != "" {
		button, err = trigger.Open(cfg.TriggerPin, trigger.WithLogger(log))
		if err != nil {
			return fmt.Errorf("failed to open trigger: %w", err)
		}
	}

	output.Info("Scanning, press Ctrl+C to stop")
	return session.RunContinuous(ctx, *f.duration, button)
}
