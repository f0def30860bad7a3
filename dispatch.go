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

import "github.com/any1/aml/clock"

// Dispatch runs one pass on l's owning thread: drain expired timers,
// drain the event queue, run every idle, then re-arm the backend's
// deadline for whatever timer is now soonest.
func (l *Loop) Dispatch() {
	l.dispatchTimers()
	l.dispatchQueue()
	l.dispatchIdle()

	if l.timers.Len() > 0 {
		l.rearmDeadline()
	}
	l.backend.PostDispatch()
}

// dispatchTimers emits every timer whose deadline has passed. A Timer
// stops itself as part of firing; a Ticker re-arms for its next period.
// Emitting here enqueues the source so its callback actually runs
// during the queue-drain phase, preserving a single invocation path for
// every kind.
func (l *Loop) dispatchTimers() {
	now := clock.NowMicros()
	for _, e := range l.timers.PopExpired(now) {
		switch v := e.Handle.(type) {
		case *Timer:
			l.emit(&v.base)
			v.entry = nil
			l.removeStarted(&v.base)
			v.Unref()
		case *Ticker:
			l.emit(&v.base)
			v.rearm(l)
		}
	}
}

// dispatchQueue pops and runs sources until the queue is empty,
// including sources appended by callbacks run earlier in this same
// pass.
func (l *Loop) dispatchQueue() {
	for {
		b := l.queue.pop()
		if b == nil {
			return
		}
		b.clearQueued()
		if b.invoke != nil {
			b.invoke()
		}
		if b.afterInvoke != nil {
			b.afterInvoke(l)
		}
		b.Unref()
	}
}

// dispatchIdle runs every still-started idle. Idles remain armed across
// passes, so the next pointer is captured before invoke in case the
// callback stops (and so unlinks) the very idle it belongs to.
func (l *Loop) dispatchIdle() {
	for i := l.idleHead; i != nil; {
		next := i.idleNext
		if i.started && i.invoke != nil {
			i.invoke()
		}
		i = next
	}
}
