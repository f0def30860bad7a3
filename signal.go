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

	amlerrors "github.com/any1/aml/pkg/errors"
)

// SignalCallback is invoked on the dispatch thread when the watched
// signal has been delivered.
type SignalCallback func(s *Signal)

// Signal fires its callback when the process receives a given signal
// number. Delivery is observed through the backend (see the backend
// package and internal/signalwatch), not by installing a Go signal
// handler directly.
type Signal struct {
	base

	signo    int
	callback SignalCallback
}

// NewSignal creates an unstarted Signal watching signo.
func NewSignal(signo int, cb SignalCallback) *Signal {
	s := &Signal{signo: signo, callback: cb}
	s.base.init(KindSignal, s)
	s.invoke = s.run
	s.stop = s.Stop
	return s
}

// Signo returns the watched signal number.
func (s *Signal) Signo() int { return s.signo }

func (s *Signal) run() {
	if s.callback != nil {
		s.callback(s)
	}
}

// Start arms s on l.
func (s *Signal) Start(l *Loop) error {
	if s.started {
		return amlerrors.ErrAlreadyStarted
	}
	if err := l.backend.AddSignal(s.signo); err != nil {
		return fmt.Errorf("%w: %v", amlerrors.ErrBackendRejected, err)
	}
	l.signals[s.signo] = s
	l.addStarted(&s.base)
	s.Ref()
	return nil
}

// Stop disarms s. Stopping an already-stopped signal is a benign no-op.
func (s *Signal) Stop() error {
	if !s.started {
		return nil
	}
	l := s.loop
	delete(l.signals, s.signo)
	err := l.backend.DelSignal(s.signo)
	l.removeStarted(&s.base)
	s.Unref()
	return err
}
