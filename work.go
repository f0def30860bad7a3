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
	"github.com/any1/aml/internal/registry"
	"github.com/any1/aml/internal/workerpool"
	amlerrors "github.com/any1/aml/pkg/errors"
)

// WorkFunc runs on a worker goroutine, off the dispatch thread. It must
// not touch the loop or any source without going through the registry,
// since by the time it runs the loop may already be gone.
type WorkFunc func()

// WorkDoneCallback runs on the dispatch thread once the worker function
// has returned.
type WorkDoneCallback func(w *Work)

// Work runs a function on the process-wide thread pool and delivers its
// completion back onto the dispatch thread.
type Work struct {
	base

	workFn WorkFunc
	doneCB WorkDoneCallback
}

// NewWork creates an unstarted Work source. workFn runs off-thread;
// doneFn runs on the dispatch thread once workFn returns.
func NewWork(workFn WorkFunc, doneFn WorkDoneCallback) *Work {
	w := &Work{workFn: workFn, doneCB: doneFn}
	w.base.init(KindWork, w)
	w.invoke = w.run
	w.afterInvoke = w.afterDispatch
	w.stop = w.Stop
	return w
}

func (w *Work) run() {
	if w.doneCB != nil {
		w.doneCB(w)
	}
}

// afterDispatch auto-stops a Work source after its single invocation,
// the way a one-shot Timer does, mirroring it may already have been
// stopped explicitly by the user before the worker finished.
func (w *Work) afterDispatch(l *Loop) {
	if !w.started {
		return
	}
	l.removeStarted(&w.base)
	w.Unref()
}

// Start submits w to the process-wide thread pool. RequireWorkers must
// have been called before this succeeds.
func (w *Work) Start(l *Loop) error {
	if w.started {
		return amlerrors.ErrAlreadyStarted
	}

	// The enqueue-time reference keeps w alive for the worker goroutine
	// independent of the loop's started-list reference, so an explicit
	// Stop before completion can never race a use-after-free.
	w.Ref()

	loopID := l.ID()
	fn := w.workFn
	done := func() {
		defer w.Unref()

		loop, ok := upgradeLoop(loopID)
		if !ok {
			return
		}
		defer loop.Unref()

		loop.emit(&w.base)
		loop.Interrupt()
	}

	if err := workerpool.Enqueue(fn, done); err != nil {
		w.Unref()
		return err
	}

	l.addStarted(&w.base)
	w.Ref()
	return nil
}

// Stop releases the loop's reference to w immediately. It cannot cancel
// an in-flight worker invocation: the worker function runs to
// completion regardless, and the done callback may still be delivered
// on a later dispatch if it was already emitted.
func (w *Work) Stop() error {
	if !w.started {
		return nil
	}
	l := w.loop
	l.removeStarted(&w.base)
	w.Unref()
	return nil
}

func upgradeLoop(id uint64) (*Loop, bool) {
	obj, ok := registry.Upgrade(id)
	if !ok {
		return nil, false
	}
	l, ok := obj.(*Loop)
	if !ok {
		return nil, false
	}
	return l, true
}
