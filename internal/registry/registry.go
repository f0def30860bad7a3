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

// Package registry is the process-wide, lock-protected table mapping a
// stable 64-bit id to every live source, and the sole owner of each
// source's reference count. Worker goroutines and signal callbacks hold
// ids rather than raw references and use Upgrade to obtain a strong
// reference without racing the dispatch thread's teardown of the same
// object; the refcount lives behind the same lock as the table so a
// drop-to-zero and the table removal happen as one atomic step.
package registry

import "sync"

var (
	mu      sync.Mutex
	nextID  uint64
	entries = make(map[uint64]*entry)
)

type entry struct {
	obj any
	ref int
}

// Register assigns a fresh, never-reused id to obj and inserts it with a
// reference count of 1. Id 0 is reserved to mean "no id" and is never
// handed out.
func Register(obj any) uint64 {
	mu.Lock()
	defer mu.Unlock()

	nextID++
	id := nextID
	entries[id] = &entry{obj: obj, ref: 1}
	return id
}

// Ref increments id's reference count and returns the count observed
// immediately before the increment.
func Ref(id uint64) int {
	mu.Lock()
	defer mu.Unlock()

	e := entries[id]
	prev := e.ref
	e.ref++
	return prev
}

// Unref decrements id's reference count. It returns the new count; when
// the new count is zero the entry has already been removed from the
// table in the same critical section, and the caller is responsible for
// finalizing obj exactly once.
func Unref(id uint64) (newCount int, obj any) {
	mu.Lock()
	defer mu.Unlock()

	e := entries[id]
	e.ref--
	newCount = e.ref
	obj = e.obj
	if newCount == 0 {
		delete(entries, id)
	}
	return
}

// Upgrade looks up id and, if its entry is still present, increments its
// reference count and returns (obj, true); the caller owns the resulting
// strong reference and must eventually Unref it. If id is absent (the
// object already finalized), Upgrade returns (nil, false).
func Upgrade(id uint64) (any, bool) {
	mu.Lock()
	defer mu.Unlock()

	e, ok := entries[id]
	if !ok {
		return nil, false
	}
	e.ref++
	return e.obj, true
}

// Count reports id's current reference count, or 0 if it's absent. It
// exists for diagnostics and tests; production code has no business
// peeking at another goroutine's refcount without racing it.
func Count(id uint64) int {
	mu.Lock()
	defer mu.Unlock()

	if e, ok := entries[id]; ok {
		return e.ref
	}
	return 0
}
