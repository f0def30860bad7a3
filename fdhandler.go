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
	"fmt"
	"sync/atomic"

	"github.com/any1/aml/backend"
	amlerrors "github.com/any1/aml/pkg/errors"
)

// FdCallback is invoked on the dispatch thread when an FdHandler becomes
// ready. Call Revents to see which conditions fired.
type FdCallback func(h *FdHandler)

// FdHandler watches a file descriptor for readiness.
type FdHandler struct {
	base

	fd          int
	mask        backend.EventMask
	pendingMask uint32
	callback    FdCallback
}

// NewFdHandler creates an unstarted FdHandler watching fd for the
// conditions in mask. The handler's reference count starts at one.
func NewFdHandler(fd int, mask backend.EventMask, cb FdCallback) *FdHandler {
	h := &FdHandler{fd: fd, mask: mask, callback: cb}
	h.base.init(KindFdHandler, h)
	h.invoke = h.run
	h.afterInvoke = h.afterDispatch
	h.stop = h.Stop
	return h
}

// FD returns the watched file descriptor.
func (h *FdHandler) FD() int { return h.fd }

// Mask returns the conditions this handler is registered to watch.
func (h *FdHandler) Mask() backend.EventMask { return h.mask }

// SetMask changes the watched conditions, re-arming the backend
// immediately if h is currently started.
func (h *FdHandler) SetMask(mask backend.EventMask) error {
	h.mask = mask
	if !h.started {
		return nil
	}
	err := h.loop.backend.ModFD(h.fd, mask)
	if err == backend.ErrModUnsupported {
		if err := h.loop.backend.DelFD(h.fd); err != nil {
			return err
		}
		return h.loop.backend.AddFD(h.fd, mask)
	}
	return err
}

// Revents returns the readiness bits observed for the invocation
// currently being dispatched.
func (h *FdHandler) Revents() backend.EventMask {
	return backend.EventMask(atomic.LoadUint32(&h.pendingMask))
}

func (h *FdHandler) run() {
	if h.callback != nil {
		h.callback(h)
	}
}

// onReady is called by the loop (from the dispatch thread, a worker, or
// a signal handler context that owns the backend) when the backend
// reports revents for this handler's fd. The new bits are OR'd into the
// pending mask; the handler is enqueued only on the 0-to-nonzero edge,
// so repeat readiness before the dispatcher catches up coalesces into a
// single invocation.
func (h *FdHandler) onReady(l *Loop, revents backend.EventMask) {
	prev := atomic.LoadUint32(&h.pendingMask)
	for {
		next := prev | uint32(revents)
		if atomic.CompareAndSwapUint32(&h.pendingMask, prev, next) {
			if prev == 0 {
				l.queue.push(&h.base)
			}
			return
		}
		prev = atomic.LoadUint32(&h.pendingMask)
	}
}

// afterDispatch clears the pending mask and, on an edge-triggered
// backend, re-arms interest via ModFD so the next edge is observed.
func (h *FdHandler) afterDispatch(l *Loop) {
	atomic.StoreUint32(&h.pendingMask, 0)
	if l.backend.Capabilities()&backend.EdgeTriggered != 0 {
		_ = l.backend.ModFD(h.fd, h.mask)
	}
}

// Start registers h with l. Returns ErrAlreadyStarted if h is already
// registered on a loop.
func (h *FdHandler) Start(l *Loop) error {
	if h.started {
		return amlerrors.ErrAlreadyStarted
	}
	if err := l.backend.AddFD(h.fd, h.mask); err != nil {
		return fmt.Errorf("%w: %v", amlerrors.ErrBackendRejected, err)
	}
	l.fdHandlers[h.fd] = h
	l.addStarted(&h.base)
	h.Ref()
	return nil
}

// Stop unregisters h from its loop. Stopping an already-stopped handler
// is a benign no-op.
func (h *FdHandler) Stop() error {
	if !h.started {
		return nil
	}
	l := h.loop
	delete(l.fdHandlers, h.fd)
	err := l.backend.DelFD(h.fd)
	l.removeStarted(&h.base)
	h.Unref()
	return err
}
