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

package aml

import (
	"sync"
	"sync/atomic"

	"github.com/any1/aml/backend"
	"github.com/any1/aml/internal/timerset"
	"github.com/any1/aml/internal/workerpool"
	amlerrors "github.com/any1/aml/pkg/errors"
)

// Loop owns one backend instance and dispatches every source started on
// it. A Loop is itself a source (KindLoop), so the same id/refcount
// machinery the rest of the package uses applies to it too.
type Loop struct {
	base

	backend backend.Backend

	timers *timerset.Set
	queue  eventQueue

	startedHead *base
	startedTail *base

	idleHead *Idle
	idleTail *Idle

	fdHandlers map[int]*FdHandler
	signals    map[int]*Signal

	exiting       int32
	closed        int32
	workerPoolRef int
}

var (
	defaultMu   sync.Mutex
	defaultLoop *Loop
)

// New creates a Loop driven by the platform's default backend.
func New() (*Loop, error) {
	be, err := newDefaultBackend()
	if err != nil {
		return nil, err
	}
	return newWithBackend(be), nil
}

// NewWithBackend creates a Loop driven by an arbitrary backend, for
// composing this loop's readiness into a foreign event source or for
// tests that supply a fake.
func NewWithBackend(be backend.Backend) *Loop {
	return newWithBackend(be)
}

func newWithBackend(be backend.Backend) *Loop {
	l := &Loop{
		backend:    be,
		timers:     timerset.New(),
		fdHandlers: make(map[int]*FdHandler),
		signals:    make(map[int]*Signal),
	}
	l.base.init(KindLoop, l)
	return l
}

// SetDefault installs l as the process-wide default loop. It is a pure
// pointer assignment: it does not affect l's reference count.
func SetDefault(l *Loop) {
	defaultMu.Lock()
	defaultLoop = l
	defaultMu.Unlock()
}

// GetDefault returns the process-wide default loop, or nil if none has
// been set.
func GetDefault() *Loop {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLoop
}

// FD exposes the backend's readiness-aggregation descriptor, or -1 if
// the backend doesn't support composition into a foreign loop.
func (l *Loop) FD() int { return l.backend.FD() }

// RequireWorkers acquires the process-wide thread pool used by Work
// sources, raising its capacity to n if n exceeds the pool's built-in
// floor (-1 means one per available CPU).
// Safe to call more than once; each call increments a reference count
// released when the Loop is destroyed.
func (l *Loop) RequireWorkers(n int) error {
	if err := workerpool.Acquire(n); err != nil {
		return err
	}
	l.workerPoolRef++
	return nil
}

// Interrupt causes a concurrently blocked Poll to return promptly. Safe
// to call from any goroutine.
func (l *Loop) Interrupt() { l.backend.Interrupt() }

// Exit requests that Run stop after the current dispatch pass, and
// wakes a blocked Poll so that happens promptly.
func (l *Loop) Exit() {
	atomic.StoreInt32(&l.exiting, 1)
	l.Interrupt()
}

func (l *Loop) exitRequested() bool {
	return atomic.LoadInt32(&l.exiting) != 0
}

// Poll blocks until readiness, a deadline, or an interrupt. timeoutMicros
// is in microseconds; -1 blocks indefinitely. It returns the number of
// readiness events the backend surfaced, or -1 on timeout/interrupt with
// nothing ready.
func (l *Loop) Poll(timeoutMicros int64) (int, error) {
	if timeoutMicros < -1 {
		return -1, amlerrors.ErrInvalidTimeout
	}
	if atomic.LoadInt32(&l.closed) != 0 {
		return -1, amlerrors.ErrLoopShutdown
	}
	return l.backend.Poll(timeoutMicros, l)
}

// Run polls and dispatches in a loop until Exit is called.
func (l *Loop) Run() error {
	for !l.exitRequested() {
		if _, err := l.Poll(-1); err != nil {
			return err
		}
		l.Dispatch()
	}
	return nil
}

// emit marks b as having a pending invocation, enqueueing it if it
// wasn't already queued. Safe to call from the dispatch thread, a
// worker goroutine, or a signal-watch goroutine.
func (l *Loop) emit(b *base) {
	if b.markQueued() {
		l.queue.push(b)
	}
}

// EmitFD implements backend.Emitter.
func (l *Loop) EmitFD(fd int, revents backend.EventMask) {
	if h, ok := l.fdHandlers[fd]; ok {
		h.onReady(l, revents)
	}
}

// EmitSignal implements backend.Emitter.
func (l *Loop) EmitSignal(signo int) {
	if s, ok := l.signals[signo]; ok {
		l.emit(&s.base)
	}
}

// EmitTimeout implements backend.Emitter. The armed deadline merely
// causes Poll to return; the timer-drain phase of Dispatch compares the
// current clock against the timer set to decide what actually fired.
func (l *Loop) EmitTimeout() {}

func (l *Loop) addStarted(b *base) {
	b.loop = l
	b.started = true
	b.startedPrev = l.startedTail
	b.startedNext = nil
	if l.startedTail != nil {
		l.startedTail.startedNext = b
	} else {
		l.startedHead = b
	}
	l.startedTail = b
}

func (l *Loop) removeStarted(b *base) {
	if b.startedPrev != nil {
		b.startedPrev.startedNext = b.startedNext
	} else {
		l.startedHead = b.startedNext
	}
	if b.startedNext != nil {
		b.startedNext.startedPrev = b.startedPrev
	} else {
		l.startedTail = b.startedPrev
	}
	b.startedPrev = nil
	b.startedNext = nil
	b.started = false
}

func (l *Loop) addIdle(i *Idle) {
	i.idlePrev = l.idleTail
	i.idleNext = nil
	if l.idleTail != nil {
		l.idleTail.idleNext = i
	} else {
		l.idleHead = i
	}
	l.idleTail = i
}

func (l *Loop) removeIdle(i *Idle) {
	if i.idlePrev != nil {
		i.idlePrev.idleNext = i.idleNext
	} else {
		l.idleHead = i.idleNext
	}
	if i.idleNext != nil {
		i.idleNext.idlePrev = i.idlePrev
	} else {
		l.idleTail = i.idlePrev
	}
	i.idlePrev = nil
	i.idleNext = nil
}

// rearmDeadline pushes the timer set's earliest deadline to the
// backend. Called whenever a new timer might have become the soonest.
func (l *Loop) rearmDeadline() {
	if e, ok := l.timers.Peek(); ok {
		_ = l.backend.SetDeadline(e.Deadline)
	}
}

// stopAllStarted runs every remaining started source's typed stop
// action, used during Close to mirror the ordered teardown destroying
// the Loop performs in the C original.
func (l *Loop) stopAllStarted() {
	for b := l.startedHead; b != nil; {
		next := b.startedNext
		if b.stop != nil {
			_ = b.stop()
		}
		b = next
	}
}

// Close tears down the loop: stops every remaining started source,
// releases the thread pool if it was ever acquired, destroys the
// backend, and drains the event queue. It does not itself wait for the
// loop's reference count to reach zero; callers own that via Unref.
// Poll and Run return ErrLoopShutdown once Close has run.
func (l *Loop) Close() error {
	l.stopAllStarted()
	for ; l.workerPoolRef > 0; l.workerPoolRef-- {
		workerpool.Release()
	}
	l.queue.drainAll()
	atomic.StoreInt32(&l.closed, 1)
	return l.backend.Close()
}
