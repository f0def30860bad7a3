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

// Package errors defines the sentinel errors returned by the event-loop core.
package errors

import "errors"

var (
	// ErrAlreadyStarted occurs when Start is called on a source that is
	// already registered on a loop (its own, or another one).
	ErrAlreadyStarted = errors.New("aml: source is already started")
	// ErrNotStarted names the "source is not started" condition. Stop
	// does not return it: stopping a source that isn't started returns
	// nil.
	ErrNotStarted = errors.New("aml: source is not started")
	// ErrBackendRejected occurs when the backend refuses a registration
	// call (add_fd, add_signal).
	ErrBackendRejected = errors.New("aml: backend rejected the operation")
	// ErrLoopShutdown occurs when an operation is attempted against a loop
	// that has already torn down.
	ErrLoopShutdown = errors.New("aml: loop is shut down")
	// ErrZeroPeriod is returned by NewTicker when given a non-positive
	// period, rather than constructing a ticker that would spin.
	ErrZeroPeriod = errors.New("aml: ticker period must be non-zero")
	// ErrInvalidTimeout occurs when a negative timeout other than -1 is
	// passed to Poll.
	ErrInvalidTimeout = errors.New("aml: timeout must be >= 0 or -1")
)
