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

//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MountWatchProject/mountwatch-core/pkg/cli"
	"github.com/MountWatchProject/mountwatch-core/pkg/config"
	"github.com/MountWatchProject/mountwatch-core/pkg/helpers"
	"github.com/MountWatchProject/mountwatch-core/pkg/journal"
	"github.com/MountWatchProject/mountwatch-core/pkg/mounts"
	"github.com/MountWatchProject/mountwatch-core/pkg/notify"
	"github.com/MountWatchProject/mountwatch-core/pkg/watch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"
)

const procMountsPath = "/proc/mounts"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags()
	flags.Pre()

	var logWriters []io.Writer
	if *flags.JSON {
		logWriters = []io.Writer{os.Stderr}
	} else {
		logWriters = []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	}

	cfg := cli.Setup(config.BaseDefaults, logWriters)

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	flags.Post(cfg)

	if *flags.List {
		return listMounts(*flags.Usage)
	}

	if *flags.History > 0 {
		return printHistory(*flags.History)
	}

	return watchMounts(cfg)
}

func listMounts(withUsage bool) error {
	data, err := os.ReadFile(procMountsPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", procMountsPath, err)
	}

	list, err := mounts.ParseTable(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", procMountsPath, err)
	}

	for _, m := range list {
		if !withUsage {
			_, _ = fmt.Println(m.String())
			continue
		}

		usage, usageErr := disk.Usage(m.MountPoint)
		if usageErr != nil || usage.Total == 0 {
			_, _ = fmt.Println(m.String())
			continue
		}
		_, _ = fmt.Printf("%s  %.1f%% used (%s of %s)\n",
			m.String(), usage.UsedPercent,
			formatBytes(usage.Used), formatBytes(usage.Total))
	}
	return nil
}

func printHistory(limit int) error {
	dataDir, err := helpers.DataDir()
	if err != nil {
		return err
	}

	jrnl, err := journal.Open(context.Background(), dataDir)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() {
		if closeErr := jrnl.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close journal")
		}
	}()

	entries, err := jrnl.History(limit)
	if err != nil {
		return fmt.Errorf("failed to read journal history: %w", err)
	}

	for _, e := range entries {
		_, _ = fmt.Println(historyLine(e))
	}
	return nil
}

func historyLine(e journal.Entry) string {
	line := fmt.Sprintf("%s  %-7s  %s (%s)",
		e.Time.Format(time.RFC3339), e.Action, e.MountPoint, e.FSType)
	if e.Coalesced {
		line += "  [coalesced]"
	}
	if e.Initial {
		line += "  [initial]"
	}
	return line
}

func watchMounts(cfg *config.Instance) error {
	ctx := context.Background()

	var jrnl *journal.Journal
	if cfg.JournalEnabled() {
		dataDir, err := helpers.DataDir()
		if err != nil {
			return err
		}

		jrnl, err = journal.Open(ctx, dataDir)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer func() {
			if closeErr := jrnl.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("failed to close journal")
			}
		}()

		if keep := cfg.JournalRetain(); keep > 0 {
			removed, pruneErr := jrnl.Prune(keep)
			if pruneErr != nil {
				log.Warn().Err(pruneErr).Msg("failed to prune journal")
			} else if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("pruned journal")
			}
		}
	}

	var notifier *notify.Notifier
	if cfg.NotifyEnabled() {
		n, err := notify.New()
		if err != nil {
			log.Warn().Err(err).Msg("desktop notifications unavailable")
		} else {
			notifier = n
			defer func() {
				if closeErr := notifier.Close(); closeErr != nil {
					log.Warn().Err(closeErr).Msg("failed to close notifier")
				}
			}()
		}
	}

	w, err := watch.New(wrapHandler(cfg, eventHandler(jrnl, notifier)))
	if err != nil {
		return fmt.Errorf("failed to start mount watch: %w", err)
	}

	log.Info().Msg("watching for mount changes")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	done := make(chan error, 1)
	go func() { done <- w.Join() }()

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		if err := w.Stop(); err != nil {
			return fmt.Errorf("mount watch failed: %w", err)
		}
		return nil
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mount watch failed: %w", err)
		}
		return nil
	}
}

// eventHandler builds the terminal handler: log each event, then fan out
// to the optional journal and notifier.
func eventHandler(jrnl *journal.Journal, notifier *notify.Notifier) watch.Handler {
	return func(ev watch.Event) watch.Control {
		logEvent(ev)

		if jrnl != nil {
			if err := jrnl.Record(ev); err != nil {
				log.Error().Err(err).Msg("failed to journal mount event")
			}
		}
		if notifier != nil {
			if err := notifier.Send(ev); err != nil {
				log.Warn().Err(err).Msg("failed to send notification")
			}
		}
		return watch.Continue
	}
}

func logEvent(ev watch.Event) {
	if ev.Initial {
		log.Info().Int("mounts", len(ev.Mounted)).Msg("initial mount table")
		return
	}

	for _, m := range ev.Mounted {
		log.Info().
			Str("mountpoint", m.MountPoint).
			Str("fstype", m.FSType).
			Str("spec", m.Spec).
			Bool("coalesced", ev.Coalesced).
			Msg("mounted")
	}
	for _, m := range ev.Unmounted {
		log.Info().
			Str("mountpoint", m.MountPoint).
			Str("fstype", m.FSType).
			Str("spec", m.Spec).
			Bool("coalesced", ev.Coalesced).
			Msg("unmounted")
	}
}

// wrapHandler applies the configured coalescing policy around base.
func wrapHandler(cfg *config.Instance, base watch.Handler) watch.Handler {
	delay := cfg.CoalesceDelay()
	if delay <= 0 {
		return base
	}

	policy := watch.InitialCoalesce
	if cfg.InitialImmediate() {
		policy = watch.InitialImmediate
	}
	return watch.CoalesceEvery(delay, policy, base)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
