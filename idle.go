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

import amlerrors "github.com/any1/aml/pkg/errors"

// IdleCallback is invoked once per dispatch pass, for every started
// Idle, after timers and the event queue have both been drained.
type IdleCallback func(i *Idle)

// Idle runs its callback at the end of every dispatch pass, for as long
// as it remains started. Unlike a Timer it never auto-stops.
type Idle struct {
	base

	callback IdleCallback

	idlePrev *Idle
	idleNext *Idle
}

// NewIdle creates an unstarted Idle.
func NewIdle(cb IdleCallback) *Idle {
	i := &Idle{callback: cb}
	i.base.init(KindIdle, i)
	i.invoke = i.run
	i.stop = i.Stop
	return i
}

func (i *Idle) run() {
	if i.callback != nil {
		i.callback(i)
	}
}

// Start adds i to l's idle list.
func (i *Idle) Start(l *Loop) error {
	if i.started {
		return amlerrors.ErrAlreadyStarted
	}
	l.addStarted(&i.base)
	i.Ref()
	l.addIdle(i)
	return nil
}

// Stop removes i from l's idle list. Stopping an already-stopped idle
// is a benign no-op.
func (i *Idle) Stop() error {
	if !i.started {
		return nil
	}
	l := i.loop
	l.removeIdle(i)
	l.removeStarted(&i.base)
	i.Unref()
	return nil
}
