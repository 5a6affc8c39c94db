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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MountWatchProject/mountwatch-core/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "MOUNTWATCH_CFG"
)

type Values struct {
	Watch        Watch   `toml:"watch,omitempty"`
	Journal      Journal `toml:"journal,omitempty"`
	Notify       Notify  `toml:"notify,omitempty"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

type Watch struct {
	// Coalesce is a duration string ("500ms", "2s"). Empty disables
	// coalescing, so every mount change is delivered as it happens.
	Coalesce         string `toml:"coalesce,omitempty"`
	coalesceDelay    time.Duration
	InitialImmediate bool `toml:"initial_immediate"`
}

type Journal struct {
	// Retain is the number of journal rows kept after pruning. Zero or
	// negative keeps everything.
	Retain  int  `toml:"retain,omitempty"`
	Enabled bool `toml:"enabled"`
}

type Notify struct {
	Enabled bool `toml:"enabled"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Watch: Watch{
		InitialImmediate: true,
	},
	Journal: Journal{
		Enabled: true,
		Retain:  1000,
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		mu:       syncutil.RWMutex{},
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	if _, err := os.Stat(c.cfgPath); err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	// This ensures fields not present in the file retain their default values.
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	c.vals = newVals

	// parse the coalesce window up front so a bad value fails at load
	// time instead of on the first mount event
	c.vals.Watch.coalesceDelay = 0
	if c.vals.Watch.Coalesce != "" {
		delay, err := time.ParseDuration(c.vals.Watch.Coalesce)
		if err != nil {
			return fmt.Errorf("failed to parse coalesce duration: %w", err)
		}
		if delay < 0 {
			return errors.New("coalesce duration cannot be negative")
		}
		c.vals.Watch.coalesceDelay = delay
	}

	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	// set current schema version
	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) CoalesceDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Watch.coalesceDelay
}

func (c *Instance) SetCoalesceDelay(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Watch.coalesceDelay = delay
	if delay > 0 {
		c.vals.Watch.Coalesce = delay.String()
	} else {
		c.vals.Watch.Coalesce = ""
	}
}

func (c *Instance) InitialImmediate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Watch.InitialImmediate
}

func (c *Instance) SetInitialImmediate(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Watch.InitialImmediate = enabled
}

func (c *Instance) JournalEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Journal.Enabled
}

func (c *Instance) SetJournalEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Journal.Enabled = enabled
}

func (c *Instance) JournalRetain() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Journal.Retain
}

func (c *Instance) NotifyEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Notify.Enabled
}

func (c *Instance) SetNotifyEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Notify.Enabled = enabled
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
