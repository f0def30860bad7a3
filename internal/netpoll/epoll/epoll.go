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

//go:build linux

// Package epoll is the Linux backend: one epoll instance multiplexing
// watched file descriptors, a timerfd for the single earliest-deadline
// alarm, and an eventfd for cross-thread interrupt. Signal delivery is
// handled by internal/signalwatch rather than signalfd, since the
// dispatcher doesn't own an OS thread to mask signals on.
package epoll

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/any1/aml/backend"
	"github.com/any1/aml/clock"
	"github.com/any1/aml/internal/signalwatch"
	"github.com/any1/aml/pkg/logging"
)

// Backend implements backend.Backend on top of epoll(7).
type Backend struct {
	epfd    int
	timerfd int
	evfd    int // eventfd used for Interrupt
	evbuf   []byte

	sig     *signalwatch.Watcher
	waking  int32
	events  []unix.EpollEvent
	tbuf    []byte
}

// New creates an epoll-backed Backend. Callers must Close it when done.
func New() (*Backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	timerfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("timerfd_create", err)
	}

	evfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(timerfd)
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}

	b := &Backend{
		epfd:    epfd,
		timerfd: timerfd,
		evfd:    evfd,
		evbuf:   make([]byte, 8),
		events:  make([]unix.EpollEvent, 64),
		tbuf:    make([]byte, 8),
	}
	b.sig = signalwatch.New(b.Interrupt)

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, timerfd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(timerfd)}); err != nil {
		b.Close()
		return nil, os.NewSyscallError("epoll_ctl", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, evfd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(evfd)}); err != nil {
		b.Close()
		return nil, os.NewSyscallError("epoll_ctl", err)
	}

	return b, nil
}

// Capabilities reports epoll as level-triggered; no re-arm is required.
func (b *Backend) Capabilities() backend.Capability { return 0 }

// FD exposes the epoll instance itself for composition into a foreign loop.
func (b *Backend) FD() int { return b.epfd }

// Close releases the epoll, timerfd, and eventfd descriptors.
func (b *Backend) Close() error {
	b.sig.Close()
	_ = unix.Close(b.timerfd)
	_ = unix.Close(b.evfd)
	return os.NewSyscallError("close", unix.Close(b.epfd))
}

func toEpollEvents(mask backend.EventMask) uint32 {
	var ev uint32
	if mask&backend.Read != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if mask&backend.Write != 0 {
		ev |= unix.EPOLLOUT
	}
	if mask&backend.OOB != 0 {
		ev |= unix.EPOLLPRI
	}
	return ev
}

// AddFD begins watching fd for mask.
func (b *Backend) AddFD(fd int, mask backend.EventMask) error {
	return os.NewSyscallError("epoll_ctl",
		unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}))
}

// ModFD changes the watched conditions for fd.
func (b *Backend) ModFD(fd int, mask backend.EventMask) error {
	return os.NewSyscallError("epoll_ctl",
		unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}))
}

// DelFD stops watching fd.
func (b *Backend) DelFD(fd int) error {
	return os.NewSyscallError("epoll_ctl", unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil))
}

// AddSignal begins watching for delivery of signo.
func (b *Backend) AddSignal(signo int) error { return b.sig.Add(signo) }

// DelSignal stops watching for signo.
func (b *Backend) DelSignal(signo int) error { return b.sig.Del(signo) }

// SetDeadline arms the timerfd for absoluteMicros, or disarms it at zero.
// absoluteMicros is on the clock package's timeline, so it is converted
// to a relative interval before arming.
func (b *Backend) SetDeadline(absoluteMicros int64) error {
	var it unix.ItimerSpec
	if absoluteMicros > 0 {
		rel := absoluteMicros - clock.NowMicros()
		it.Value.Sec = rel / 1e6
		it.Value.Nsec = (rel % 1e6) * 1e3
		if rel <= 0 {
			// timerfd treats an all-zero it_value as "disarm"; nudge to
			// the smallest representable interval so an already-elapsed
			// deadline still fires immediately.
			it.Value.Sec = 0
			it.Value.Nsec = 1
		}
	}
	return os.NewSyscallError("timerfd_settime",
		unix.TimerfdSettime(b.timerfd, 0, &it, nil))
}

// Interrupt wakes a concurrently blocked Poll via the eventfd.
func (b *Backend) Interrupt() {
	if atomic.CompareAndSwapInt32(&b.waking, 0, 1) {
		one := [8]byte{1}
		for {
			_, err := unix.Write(b.evfd, one[:])
			if err != unix.EINTR {
				break
			}
		}
	}
}

// PostDispatch resets the interrupt-coalescing flag.
func (b *Backend) PostDispatch() {
	atomic.StoreInt32(&b.waking, 0)
}

// Poll blocks until readiness, the armed timerfd, an interrupt, or a
// pending signal, reporting everything observed to e.
func (b *Backend) Poll(timeoutMicros int64, e backend.Emitter) (int, error) {
	msec := -1
	if timeoutMicros >= 0 {
		msec = int(timeoutMicros / 1000)
	}

	n, err := unix.EpollWait(b.epfd, b.events, msec)
	if err == unix.EINTR {
		return -1, nil
	}
	if err != nil {
		wrapped := os.NewSyscallError("epoll_wait", err)
		logging.Errorf("epoll backend: %v", wrapped)
		return -1, wrapped
	}

	delivered := 0
	for i := 0; i < n; i++ {
		ev := &b.events[i]
		fd := int(ev.Fd)
		switch fd {
		case b.timerfd:
			_, _ = unix.Read(b.timerfd, b.tbuf)
			e.EmitTimeout()
			delivered++
		case b.evfd:
			_, _ = unix.Read(b.evfd, b.evbuf)
		default:
			var mask backend.EventMask
			if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
				mask |= backend.Read
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				mask |= backend.Write
			}
			if ev.Events&unix.EPOLLHUP != 0 || ev.Events&unix.EPOLLERR != 0 {
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
