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
	"time"

	"github.com/any1/aml/clock"
	amlerrors "github.com/any1/aml/pkg/errors"
	"github.com/any1/aml/internal/timerset"
)

// TimerCallback is invoked on the dispatch thread once a Timer expires.
type TimerCallback func(t *Timer)

// TickerCallback is invoked on the dispatch thread every time a Ticker's
// period elapses.
type TickerCallback func(t *Ticker)

// Timer fires its callback exactly once, duration after it is started.
type Timer struct {
	base

	duration time.Duration
	entry    *timerset.Entry
	callback TimerCallback
}

// NewTimer creates an unstarted one-shot Timer.
func NewTimer(d time.Duration, cb TimerCallback) *Timer {
	t := &Timer{duration: d, callback: cb}
	t.base.init(KindTimer, t)
	t.invoke = t.run
	t.stop = t.Stop
	return t
}

// Duration returns the timer's configured duration.
func (t *Timer) Duration() time.Duration { return t.duration }

func (t *Timer) run() {
	if t.callback != nil {
		t.callback(t)
	}
}

// Start arms t on l. A zero duration fires on the very next dispatch.
func (t *Timer) Start(l *Loop) error {
	if t.started {
		return amlerrors.ErrAlreadyStarted
	}
	deadline := clock.NowMicros() + t.duration.Microseconds()
	t.entry = l.timers.Insert(deadline, t)
	l.addStarted(&t.base)
	t.Ref()
	l.rearmDeadline()
	return nil
}

// Stop disarms t before it fires. Stopping an already-stopped timer is
// a benign no-op.
func (t *Timer) Stop() error {
	if !t.started {
		return nil
	}
	l := t.loop
	l.timers.Remove(t.entry)
	t.entry = nil
	l.removeStarted(&t.base)
	t.Unref()
	return nil
}

// Ticker fires its callback every period, starting period after it is
// started, until stopped.
type Ticker struct {
	base

	period   time.Duration
	deadline int64
	entry    *timerset.Entry
	callback TickerCallback
}

// NewTicker creates an unstarted Ticker. period must be positive.
func NewTicker(period time.Duration, cb TickerCallback) (*Ticker, error) {
	if period <= 0 {
		return nil, amlerrors.ErrZeroPeriod
	}
	tk := &Ticker{period: period, callback: cb}
	tk.base.init(KindTicker, tk)
	tk.invoke = tk.run
	tk.stop = tk.Stop
	return tk, nil
}

// Period returns the ticker's configured period.
func (tk *Ticker) Period() time.Duration { return tk.period }

func (tk *Ticker) run() {
	if tk.callback != nil {
		tk.callback(tk)
	}
}

// Start arms tk on l.
func (tk *Ticker) Start(l *Loop) error {
	if tk.started {
		return amlerrors.ErrAlreadyStarted
	}
	tk.deadline = clock.NowMicros() + tk.period.Microseconds()
	tk.entry = l.timers.Insert(tk.deadline, tk)
	l.addStarted(&tk.base)
	tk.Ref()
	l.rearmDeadline()
	return nil
}

// Stop disarms tk. Stopping an already-stopped ticker is a benign
// no-op.
func (tk *Ticker) Stop() error {
	if !tk.started {
		return nil
	}
	l := tk.loop
	l.timers.Remove(tk.entry)
	tk.entry = nil
	l.removeStarted(&tk.base)
	tk.Unref()
	return nil
}

// rearm re-inserts tk for its next period after it has fired. Called
// only by the loop's timer-drain phase.
func (tk *Ticker) rearm(l *Loop) {
	tk.deadline += tk.period.Microseconds()
	now := clock.NowMicros()
	if tk.deadline < now {
		tk.deadline = now
	}
	tk.entry = l.timers.Insert(tk.deadline, tk)
}
