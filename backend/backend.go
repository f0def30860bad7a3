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

// Package backend defines the abstract contract a readiness engine must
// satisfy to drive a Loop: fd registration, signal registration,
// blocking wait, deadline arming, and wakeup. The loop core depends only
// on this interface, never on a concrete engine, so the engine can be
// swapped at compile time (epoll, kqueue, or a foreign event source
// entirely) without touching the dispatcher.
package backend

import "errors"

// ErrModUnsupported is returned by ModFD when a backend has no in-place
// "modify" primitive. FdHandler.SetMask falls back to DelFD followed by
// AddFD in that case.
var ErrModUnsupported = errors.New("backend: mod_fd not supported, emulate with del_fd+add_fd")

// EventMask is a bitset over the readiness conditions a Backend can
// report for a file descriptor.
type EventMask uint8

const (
	// Read indicates the fd is ready for reading (or a listening socket
	// has a pending connection).
	Read EventMask = 1 << iota
	// Write indicates the fd is ready for writing.
	Write
	// OOB indicates out-of-band/priority data is available.
	OOB
)

// Capability is a bitset of optional backend behaviors the dispatcher
// must accommodate.
type Capability uint32

const (
	// EdgeTriggered instructs the dispatcher to re-arm (ModFD) a
	// descriptor on every drain rather than relying on level-triggered
	// re-delivery.
	EdgeTriggered Capability = 1 << iota
)

// Emitter is how a Backend reports readiness back to the loop core. The
// core passes its own emit function to Poll; Backend implementations
// never need to know what "emit" actually does.
type Emitter interface {
	// EmitFD reports that fd became ready with the given mask.
	EmitFD(fd int, revents EventMask)
	// EmitSignal reports that signo was delivered.
	EmitSignal(signo int)
	// EmitTimeout reports that the armed deadline (SetDeadline) elapsed.
	EmitTimeout()
}

// Backend is the engine a Loop drives to learn about fd readiness, timer
// expiry, and signal delivery.
//
// Every method except Interrupt runs on the loop's dispatch thread. Poll
// is the loop's only suspension point; Interrupt may be called from any
// goroutine to wake it.
type Backend interface {
	// Capabilities reports this backend's optional behavior flags.
	Capabilities() Capability

	// FD exposes a readiness-aggregation descriptor suitable for
	// composing this loop into a foreign loop. Returns -1 if the
	// backend has nothing to expose.
	FD() int

	// Close releases all backend-private state. Called exactly once,
	// during loop teardown.
	Close() error

	// Poll blocks until readiness, a deadline, or an interrupt, calling
	// methods on e for everything it observes before returning. timeout
	// is in microseconds; -1 blocks indefinitely. Returns the number of
	// events delivered to e, or -1 on timeout/interrupt with nothing
	// ready.
	Poll(timeoutMicros int64, e Emitter) (int, error)

	// AddFD begins watching fd for the conditions in mask.
	AddFD(fd int, mask EventMask) error
	// ModFD changes the watched conditions for an already-added fd. If a
	// backend can't support in-place modification it should return
	// ErrModUnsupported; FdHandler.SetMask then emulates ModFD as DelFD
	// followed by AddFD.
	ModFD(fd int, mask EventMask) error
	// DelFD stops watching fd.
	DelFD(fd int) error

	// AddSignal begins watching for delivery of signo.
	AddSignal(signo int) error
	// DelSignal stops watching for signo.
	DelSignal(signo int) error

	// SetDeadline arms a single earliest-deadline alarm, in absolute
	// monotonic microseconds, whose expiry causes Poll to return. A
	// deadline of 0 disarms it.
	SetDeadline(absoluteMicros int64) error

	// Interrupt causes a concurrently blocked Poll to return promptly.
	// Safe to call from any goroutine.
	Interrupt()
	// PostDispatch is called once per dispatch pass, after the queue and
	// idle drains, so backends with an internal producer arrangement can
	// resume waiting.
	PostDispatch()
}
