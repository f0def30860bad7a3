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

// Package timerset is the per-loop set of armed timers, ordered by
// absolute deadline in microseconds. It is only ever touched from the
// loop's dispatch thread, so it needs no locking of its own.
package timerset

import "container/heap"

// Entry is one armed timer. Handle identifies the owning source so the
// dispatcher can map an expired entry back to it without storing a typed
// pointer here.
type Entry struct {
	Deadline int64 // absolute monotonic microseconds
	Handle   any

	index int // heap.Interface bookkeeping
}

// Set is a min-heap of Entry ordered by Deadline.
type Set struct {
	h entryHeap
}

// New returns an empty timer set.
func New() *Set {
	return &Set{}
}

// Len reports how many timers are currently armed.
func (s *Set) Len() int { return len(s.h) }

// Insert arms a new timer and returns its Entry, which Remove accepts
// later to disarm it before it fires.
func (s *Set) Insert(deadline int64, handle any) *Entry {
	e := &Entry{Deadline: deadline, Handle: handle}
	heap.Push(&s.h, e)
	return e
}

// Remove disarms e. It is a no-op if e has already fired (and therefore
// already been popped).
func (s *Set) Remove(e *Entry) {
	if e.index < 0 || e.index >= len(s.h) || s.h[e.index] != e {
		return
	}
	heap.Remove(&s.h, e.index)
}

// Peek returns the entry with the smallest deadline, without removing it,
// and true; or (nil, false) if the set is empty.
func (s *Set) Peek() (*Entry, bool) {
	if len(s.h) == 0 {
		return nil, false
	}
	return s.h[0], true
}

// PopExpired removes and returns every entry whose deadline is <= now, in
// strictly ascending deadline order (ties broken by heap traversal order,
// which is stable within a single call but otherwise unspecified, as the
// core's dispatch ordering guarantee allows).
func (s *Set) PopExpired(now int64) []*Entry {
	var expired []*Entry
	for len(s.h) > 0 && s.h[0].Deadline <= now {
		expired = append(expired, heap.Pop(&s.h).(*Entry))
	}
	return expired
}

type entryHeap []*Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Deadline < h[j].Deadline }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *entryHeap) Push(x interface{}) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
