// MountWatch Core
// Copyright (c) 2026 The MountWatch Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of MountWatch Core.
//
// MountWatch Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// MountWatch Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with MountWatch Core.  If not, see <http://www.gnu.org/licenses/>.

// Package cli holds the flag handling shared by the mountwatch binary's
// modes: the long-running watcher, one-shot table listing, and journal
// queries.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/MountWatchProject/mountwatch-core/pkg/config"
	"github.com/MountWatchProject/mountwatch-core/pkg/helpers"
	"github.com/rs/zerolog"
)

type Flags struct {
	Config           *string
	Version          *bool
	List             *bool
	Usage            *bool
	History          *int
	Coalesce         *time.Duration
	ImmediateInitial *bool
	Journal          *bool
	Notify           *bool
	JSON             *bool
}

// SetupFlags defines all CLI flags.
func SetupFlags() *Flags {
	return &Flags{
		Config: flag.String(
			"config",
			"",
			"path to config file (same as "+config.CfgEnv+")",
		),
		Version: flag.Bool(
			"version",
			false,
			"print version and exit",
		),
		List: flag.Bool(
			"list",
			false,
			"print the current mount table and exit",
		),
		Usage: flag.Bool(
			"usage",
			false,
			"include disk usage in -list output",
		),
		History: flag.Int(
			"history",
			0,
			"print the last N journaled mount events and exit",
		),
		Coalesce: flag.Duration(
			"coalesce",
			0,
			"collapse changes within this window into one event (0 disables)",
		),
		ImmediateInitial: flag.Bool(
			"immediate-initial",
			true,
			"deliver the initial mount table without waiting for a coalescing window",
		),
		Journal: flag.Bool(
			"journal",
			true,
			"record mount events to the journal database",
		),
		Notify: flag.Bool(
			"notify",
			false,
			"send a desktop notification per mount event",
		),
		JSON: flag.Bool(
			"json",
			false,
			"log as JSON lines instead of console output",
		),
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Pre runs flag parsing and actions any immediate flags that don't
// require environment setup. Add any custom flags before running this.
func (f *Flags) Pre() {
	flag.Parse()

	if *f.Version {
		_, _ = fmt.Printf("mountwatch v%s (%s)\n", config.AppVersion, runtime.GOOS)
		os.Exit(0)
	}

	if *f.Config != "" {
		// NewConfig resolves the override through the environment, so
		// the flag routes through the same path.
		if err := os.Setenv(config.CfgEnv, *f.Config); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error setting %s: %v\n", config.CfgEnv, err)
			os.Exit(1)
		}
	}
}

// Post overlays any explicitly passed flags onto the loaded config, so
// flags win over the file for this run without rewriting it.
func (f *Flags) Post(cfg *config.Instance) {
	if isFlagPassed("coalesce") {
		cfg.SetCoalesceDelay(*f.Coalesce)
	}
	if isFlagPassed("immediate-initial") {
		cfg.SetInitialImmediate(*f.ImmediateInitial)
	}
	if isFlagPassed("journal") {
		cfg.SetJournalEnabled(*f.Journal)
	}
	if isFlagPassed("notify") {
		cfg.SetNotifyEnabled(*f.Notify)
	}
}

// Setup initializes the user config and logging. Returns a user config object.
func Setup(defaultConfig config.Values, writers []io.Writer) *config.Instance {
	err := helpers.InitLogging(writers)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}

	configDir, err := helpers.ConfigDir()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(configDir, defaultConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return cfg
}
