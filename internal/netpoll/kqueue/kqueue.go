// Copyright (c) 2024 The Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build freebsd || dragonfly || darwin

// Package kqueue is the BSD/Darwin backend: one kqueue instance
// multiplexing watched file descriptors plus an EVFILT_TIMER for the
// single earliest-deadline alarm and an EVFILT_USER note for
// cross-thread interrupt. Signal delivery is handled by
// internal/signalwatch rather than EVFILT_SIGNAL, since the dispatcher
// doesn't own an OS thread to mask signals on.
package kqueue

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/any1/aml/backend"
	"github.com/any1/aml/clock"
	"github.com/any1/aml/internal/signalwatch"
	"github.com/any1/aml/pkg/logging"
)

const deadlineTimerIdent = 1

// Backend implements backend.Backend on top of kqueue(2).
type Backend struct {
	kqfd int

	sig    *signalwatch.Watcher
	waking int32
	events []unix.Kevent_t

	deadlineArmed bool
}

var wakeNote = []unix.Kevent_t{{
	Ident:  0,
	Filter: unix.EVFILT_USER,
	Fflags: unix.NOTE_TRIGGER,
}}

// New creates a kqueue-backed Backend. Callers must Close it when done.
func New() (*Backend, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}

	b := &Backend{kqfd: kqfd, events: make([]unix.Kevent_t, 64)}
	b.sig = signalwatch.New(b.Interrupt)

	_, err = unix.Kevent(kqfd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		_ = unix.Close(kqfd)
		return nil, os.NewSyscallError("kevent add wake note", err)
	}

	return b, nil
}

// Capabilities reports kqueue as level-triggered; no re-arm is required.
func (b *Backend) Capabilities() backend.Capability { return 0 }

// FD exposes the kqueue instance itself for composition into a foreign loop.
func (b *Backend) FD() int { return b.kqfd }

// Close releases the kqueue descriptor.
func (b *Backend) Close() error {
	b.sig.Close()
	return os.NewSyscallError("close", unix.Close(b.kqfd))
}

func toFilters(mask backend.EventMask) []int16 {
	var filters []int16
	if mask&(backend.Read|backend.OOB) != 0 {
		filters = append(filters, unix.EVFILT_READ)
	}
	if mask&backend.Write != 0 {
		filters = append(filters, unix.EVFILT_WRITE)
	}
	return filters
}

// AddFD begins watching fd for mask.
func (b *Backend) AddFD(fd int, mask backend.EventMask) error {
	return b.changeFD(fd, mask, unix.EV_ADD)
}

// ModFD changes the watched conditions for fd. Since kqueue interest is
// per-filter, a mod deletes every filter for fd and then adds the wanted
// ones.
func (b *Backend) ModFD(fd int, mask backend.EventMask) error {
	if err := b.DelFD(fd); err != nil {
		return err
	}
	return b.AddFD(fd, mask)
}

// DelFD stops watching fd.
func (b *Backend) DelFD(fd int) error {
	return b.changeFD(fd, backend.Read|backend.Write, unix.EV_DELETE)
}

func (b *Backend) changeFD(fd int, mask backend.EventMask, flags uint16) error {
	var changes []unix.Kevent_t
	for _, filter := range toFilters(mask) {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: filter,
			Flags:  flags,
		})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(b.kqfd, changes, nil, nil)
	if err != nil && flags == unix.EV_DELETE && err == unix.ENOENT {
		return nil
	}
	return os.NewSyscallError("kevent", err)
}

// AddSignal begins watching for delivery of signo.
func (b *Backend) AddSignal(signo int) error { return b.sig.Add(signo) }

// DelSignal stops watching for signo.
func (b *Backend) DelSignal(signo int) error { return b.sig.Del(signo) }

// SetDeadline arms an EVFILT_TIMER note for absoluteMicros, or disarms
// it at zero.
func (b *Backend) SetDeadline(absoluteMicros int64) error {
	if !b.deadlineArmed && absoluteMicros <= 0 {
		return nil
	}

	if absoluteMicros <= 0 {
		_, err := unix.Kevent(b.kqfd, []unix.Kevent_t{{
			Ident:  deadlineTimerIdent,
			Filter: unix.EVFILT_TIMER,
			Flags:  unix.EV_DELETE,
		}}, nil, nil)
		b.deadlineArmed = false
		if err != nil && err != unix.ENOENT {
			return os.NewSyscallError("kevent delete timer", err)
		}
		return nil
	}

	// absoluteMicros is on the clock package's timeline, so it is
	// converted to a relative interval before arming.
	rel := absoluteMicros - clock.NowMicros()
	if rel < 0 {
		rel = 0
	}
	_, err := unix.Kevent(b.kqfd, []unix.Kevent_t{{
		Ident:  deadlineTimerIdent,
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
		Fflags: unix.NOTE_USECONDS,
		Data:   rel,
	}}, nil, nil)
	if err != nil {
		return os.NewSyscallError("kevent add timer", err)
	}
	b.deadlineArmed = true
	return nil
}

// Interrupt wakes a concurrently blocked Poll via the EVFILT_USER note.
func (b *Backend) Interrupt() {
	if atomic.CompareAndSwapInt32(&b.waking, 0, 1) {
		_, err := unix.Kevent(b.kqfd, wakeNote, nil, nil)
		if err != nil && err != unix.EAGAIN {
			logging.Errorf("kqueue backend: interrupt: %v", err)
		}
	}
}

// PostDispatch resets the interrupt-coalescing flag.
func (b *Backend) PostDispatch() {
	atomic.StoreInt32(&b.waking, 0)
}

// Poll blocks until readiness, the armed timer, an interrupt, or a
// pending signal, reporting everything observed to e.
func (b *Backend) Poll(timeoutMicros int64, e backend.Emitter) (int, error) {
	var ts unix.Timespec
	var tsp *unix.Timespec
	if timeoutMicros >= 0 {
		ts = unix.NsecToTimespec(timeoutMicros * 1000)
		tsp = &ts
	}

	n, err := unix.Kevent(b.kqfd, nil, b.events, tsp)
	if err == unix.EINTR {
		return -1, nil
	}
	if err != nil {
		wrapped := os.NewSyscallError("kevent wait", err)
		logging.Errorf("kqueue backend: %v", wrapped)
		return -1, wrapped
	}

	delivered := 0
	for i := 0; i < n; i++ {
		ev := &b.events[i]
		switch {
		case ev.Filter == unix.EVFILT_USER:
			// wake note, nothing further to do
		case ev.Filter == unix.EVFILT_TIMER:
			e.EmitTimeout()
			delivered++
		default:
			fd := int(ev.Ident)
			var mask backend.EventMask
			switch ev.Filter {
			case unix.EVFILT_READ:
				mask = backend.Read
			case unix.EVFILT_WRITE:
				mask = backend.Write
			}
			if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
				mask |= backend.Read | backend.Write
			}
			e.EmitFD(fd, mask)
			delivered++
		}
	}

	for _, signo := range b.sig.DrainPending() {
		e.EmitSignal(signo)
		delivered++
	}

	if delivered == 0 {
		return -1, nil
	}
	return delivered, nil
}
