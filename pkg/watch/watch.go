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

package watch

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// pollTimeout bounds every blocking wait so the stop flag is noticed even
// when the mount table never changes.
const pollTimeout = 5 * time.Second

// Watcher is the handle to one running mount table watch. Exactly one
// goroutine per Watcher runs the wait loop and the handler. Dropping the
// last reference without calling Stop also ends the watch: a cleanup sets
// the stop flag and the goroutine exits at its next wake-up or timeout
// tick, without anything to wait on it.
type Watcher struct {
	stop *atomic.Bool
	res  *watchResult
}

// watchResult carries the loop's terminal error to Stop and Join. err is
// written by the watch goroutine before done is closed, and only read
// after done is closed.
type watchResult struct {
	done chan struct{}
	err  error
}

// New starts watching the mount table. The handler first receives an event
// carrying the entire current table (Initial set), then one event per
// change, all on the watch goroutine. A construction failure is returned
// as a *SetupError and nothing is left running.
func New(handler Handler) (*Watcher, error) {
	source, err := openProcMounts()
	if err != nil {
		return nil, &SetupError{Err: err}
	}
	return newWatcher(source, handler, pollTimeout)
}

// newWatcher wires the poller and spawns the loop. Split from New so tests
// can supply their own table source and a shorter poll timeout.
func newWatcher(source tableSource, handler Handler, timeout time.Duration) (*Watcher, error) {
	p, err := newPoller()
	if err != nil {
		_ = source.Close()
		return nil, &SetupError{Err: err}
	}
	if err := p.add(source.Fd(), unix.EPOLLPRI); err != nil {
		_ = p.close()
		_ = source.Close()
		return nil, &SetupError{Err: err}
	}

	w := &Watcher{
		stop: new(atomic.Bool),
		res:  &watchResult{done: make(chan struct{})},
	}

	// The goroutine must not reference the Watcher itself, only its shared
	// innards: a reachable receiver would keep the cleanup below from ever
	// running.
	go run(newMachine(source, handler, p), p, source, timeout, w.stop, w.res)

	runtime.SetFinalizer(w, func(w *Watcher) {
		w.stop.Store(true)
	})

	return w, nil
}

// Stop requests termination and waits for the watch goroutine to finish,
// returning the error it ended with: nil after a clean shutdown, otherwise
// the fatal loop error or recovered handler panic. Safe to call from any
// goroutine except the handler's own; inside the handler, return Stop
// instead. Calling it again returns the same result.
func (w *Watcher) Stop() error {
	w.stop.Store(true)
	return w.Join()
}

// Join waits for the watch to terminate on its own, either through a Stop
// decision from the handler or a fatal error, and returns the same result
// as Stop. It does not request termination.
func (w *Watcher) Join() error {
	<-w.res.done
	return w.res.err
}

// run is the watch goroutine body. It owns every descriptor for the rest
// of the watch's life and releases them all on the way out.
func run(m *machine, p *poller, source tableSource, timeout time.Duration, stop *atomic.Bool, res *watchResult) {
	defer close(res.done)
	defer func() {
		m.close()
		_ = source.Close()
		_ = p.close()
	}()
	defer func() {
		if r := recover(); r != nil {
			res.err = &PanicError{Value: r, Stack: debug.Stack()}
			log.Error().Any("panic", r).Msg("mount watch handler panicked")
		}
	}()

	log.Debug().Str("path", mountTablePath).Msg("watching mount table for changes")
	if err := loop(m, p, timeout, stop); err != nil {
		log.Error().Err(err).Msg("mount watch terminated")
		res.err = err
	}
}

// loop drives the state machine: one priming trigger for the initial
// event, then one trigger per wake-up until the handler says Stop, the
// stop flag is set, or a fatal error occurs.
func loop(m *machine, p *poller, timeout time.Duration, stop *atomic.Bool) error {
	// Mounts may have changed between process start and registration;
	// reporting the full table once up front closes that window and gives
	// the watch its baseline.
	decision, err := m.onTrigger(false, true)
	if err != nil {
		return err
	}
	if decision.act == actionStop {
		log.Debug().Msg("handler stopped mount watch on initial event")
		return nil
	}

	events := make([]unix.EpollEvent, 8)
	for !stop.Load() {
		n, err := p.wait(events, timeout)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPoll, err)
		}
		if n == 0 {
			continue
		}

		// One trigger per wake-up. When both descriptors fired at once,
		// the expiry must win: its edge is consumed either way, and the
		// simultaneous table change is captured by the post-expiry read.
		timerExpired := false
		if fd := m.timerFd(); fd >= 0 {
			for _, ev := range events[:n] {
				if int(ev.Fd) == fd {
					timerExpired = true
					break
				}
			}
		}

		decision, err := m.onTrigger(timerExpired, false)
		if err != nil {
			return err
		}
		if decision.act == actionStop {
			log.Debug().Msg("handler stopped mount watch")
			return nil
		}
	}

	log.Debug().Msg("mount watch stop flag set")
	return nil
}
