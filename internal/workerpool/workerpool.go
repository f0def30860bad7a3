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

// Package workerpool hosts the process-global worker pool that backs Work
// sources: a single ants.Pool shared by every loop in the process, acquired
// and released by reference count the way the default thread pool in the
// C original is shared across aml instances.
package workerpool

import (
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/any1/aml/pkg/logging"
)

const (
	// expiryDuration is how long an idle ants worker goroutine lingers
	// before being reaped.
	expiryDuration = 10 * time.Second

	// defaultPoolSize is the floor capacity of the shared pool: large
	// enough that, in practice, Enqueue never has to block the dispatch
	// thread waiting for a free worker. require_workers(n) can raise it
	// further but never below this.
	defaultPoolSize = 1 << 16
)

var (
	mu       sync.Mutex
	pool     *ants.PoolWithFunc
	users    int
	capacity int
)

// job is what gets submitted to the underlying ants pool.
type job struct {
	work func()
	done func()
}

func runJob(v interface{}) {
	j := v.(*job)
	if j.work != nil {
		j.work()
	}
	if j.done != nil {
		j.done()
	}
}

// Acquire ensures the shared pool exists with room for at least n concurrent
// work items and bumps the user count. n == -1 means "one per CPU".
//
// Workers are only ever added, never shrunk, by a later Acquire call with a
// smaller n: the pool's capacity is the high-water mark requested by any
// current user.
func Acquire(n int) error {
	if n == -1 {
		n = runtime.NumCPU()
	}
	if n < defaultPoolSize {
		n = defaultPoolSize
	}

	mu.Lock()
	defer mu.Unlock()

	if pool == nil {
		p, err := ants.NewPoolWithFunc(n, runJob,
			ants.WithExpiryDuration(expiryDuration),
			ants.WithNonblocking(true))
		if err != nil {
			return err
		}
		pool = p
		capacity = n
	} else if n > capacity {
		pool.Tune(n)
		capacity = n
	}

	users++
	return nil
}

// Release decrements the user count; the pool and all of its goroutines are
// torn down once the last user has released it.
func Release() {
	mu.Lock()
	defer mu.Unlock()

	if users == 0 {
		return
	}

	users--
	if users == 0 && pool != nil {
		pool.Release()
		pool = nil
		capacity = 0
	}
}

// Enqueue submits a unit of work to the shared pool. work runs on a pool
// goroutine; once it returns, done runs on that same goroutine (never on
// the caller's). The pool runs nonblocking with a capacity floor large
// enough that saturation never happens in practice, so Enqueue never
// blocks the caller waiting for a free worker, matching the "unbounded
// FIFO" contract of the work protocol.
func Enqueue(work func(), done func()) error {
	mu.Lock()
	p := pool
	mu.Unlock()

	if p == nil {
		logging.Errorf("work submitted with no thread pool acquired")
		return ants.ErrPoolClosed
	}

	return p.Invoke(&job{work: work, done: done})
}
