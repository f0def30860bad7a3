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

import "sync"

// eventQueue is the signal-safe, cross-thread FIFO of sources with a
// pending invocation. It is mutated from the dispatch thread, from
// worker goroutines, and from signal delivery; every mutation happens
// under mu, held only for the brief span of a link update.
//
// Membership is intrusive: a queued source is chained through its own
// base.queuedNext field, so enqueue and dequeue never allocate.
type eventQueue struct {
	mu   sync.Mutex
	head *base
	tail *base
}

// push appends b to the queue tail and takes the reference the
// dispatcher will release after running b's callback. The caller must
// already have established (via markQueued or the fd pending-mask
// check) that b is not already linked.
func (q *eventQueue) push(b *base) {
	b.Ref()

	q.mu.Lock()
	b.queuedNext = nil
	if q.tail != nil {
		q.tail.queuedNext = b
	} else {
		q.head = b
	}
	q.tail = b
	q.mu.Unlock()
}

// pop removes and returns the queue head, or nil if the queue is empty.
func (q *eventQueue) pop() *base {
	q.mu.Lock()
	b := q.head
	if b != nil {
		q.head = b.queuedNext
		if q.head == nil {
			q.tail = nil
		}
		b.queuedNext = nil
	}
	q.mu.Unlock()
	return b
}

// drainAll removes every remaining source, releasing the reference push
// took for each. Used during loop teardown.
func (q *eventQueue) drainAll() {
	for {
		b := q.pop()
		if b == nil {
			return
		}
		b.clearQueued()
		b.Unref()
	}
}
