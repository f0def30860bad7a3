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

// Package aml is a general-purpose event loop: file-descriptor
// readiness, timers, signals, off-thread work, and idle callbacks
// dispatched on a single cooperative loop. The readiness engine itself
// (epoll, kqueue, ...) is pluggable; see the backend package.
package aml

import (
	"sync/atomic"

	"github.com/any1/aml/internal/registry"
)

// Kind identifies which variant a source is.
type Kind uint8

const (
	KindLoop Kind = iota
	KindFdHandler
	KindTimer
	KindTicker
	KindSignal
	KindWork
	KindIdle
)

func (k Kind) String() string {
	switch k {
	case KindLoop:
		return "loop"
	case KindFdHandler:
		return "fd-handler"
	case KindTimer:
		return "timer"
	case KindTicker:
		return "ticker"
	case KindSignal:
		return "signal"
	case KindWork:
		return "work"
	case KindIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// base is embedded by every source kind, including Loop itself. It
// carries the identity, reference count delegation, user payload, and
// the intrusive links the loop's started list and event queue use.
type base struct {
	kind Kind
	id   uint64

	userdata interface{}
	release  func(interface{})

	loop *Loop

	// invoke runs this source's dispatch callback; each constructor sets
	// it to a closure over its own typed pointer so the generic queue
	// drain never needs a type switch.
	invoke func()

	// afterInvoke, if set, runs immediately after invoke during the
	// queue-drain phase, on the dispatch thread: FdHandler clears its
	// pending mask and re-arms edge-triggered interest; Work auto-stops
	// the way a one-shot Timer does.
	afterInvoke func(l *Loop)

	// stop runs this source's typed Stop method; set by each
	// constructor so generic teardown (Loop.Close) never needs a type
	// switch over every kind.
	stop func() error

	started     bool
	startedPrev *base
	startedNext *base

	queued     int32 // atomic: 1 while linked into the loop's event queue
	queuedNext *base
}

func (b *base) init(kind Kind, self interface{}) {
	b.kind = kind
	b.id = registry.Register(self)
}

// ID returns this source's stable, process-unique 64-bit identity.
func (b *base) ID() uint64 { return b.id }

// Kind reports which source variant this is.
func (b *base) Kind() Kind { return b.kind }

// Userdata returns the payload set via SetUserdata, or nil if none has
// been set.
func (b *base) Userdata() interface{} { return b.userdata }

// SetUserdata replaces the payload and the callback invoked exactly
// once, with that payload, when this source's reference count reaches
// zero. It does not invoke the previous payload's release callback;
// callers that need that must do it themselves before overwriting.
func (b *base) SetUserdata(ud interface{}, release func(interface{})) {
	b.userdata = ud
	b.release = release
}

// IsStarted reports whether this source is currently registered on a loop.
func (b *base) IsStarted() bool { return b.started }

// Ref increments the reference count and returns the count observed
// immediately before the increment.
func (b *base) Ref() int { return registry.Ref(b.id) }

// Unref decrements the reference count and returns the new count. When
// it reaches zero the release callback (if any) runs with the current
// payload and the entry is retired from the registry.
func (b *base) Unref() int {
	n, _ := registry.Unref(b.id)
	if n == 0 && b.release != nil {
		b.release(b.userdata)
	}
	return n
}

func (b *base) markQueued() bool {
	return atomic.CompareAndSwapInt32(&b.queued, 0, 1)
}

func (b *base) clearQueued() {
	atomic.StoreInt32(&b.queued, 0)
}

// Upgrade turns a weak id into a strong reference, incrementing the
// refcount on success; the caller must eventually Unref the result. It
// returns (nil, false) if the id names a source that has already been
// finalized.
func Upgrade(id uint64) (interface{}, bool) {
	return registry.Upgrade(id)
}
