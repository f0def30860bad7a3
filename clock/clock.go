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

// Package clock is the single source of truth for "now", in the
// monotonic microsecond units the timer set, the dispatcher, and every
// backend's SetDeadline agree on. It is anchored at process start so
// that both the core (computing deadline = NowMicros() + duration) and a
// backend (converting an absolute deadline back to a relative timeout
// immediately before arming a kernel timer) read the same clock.
package clock

import "time"

var start = time.Now()

// NowMicros returns microseconds elapsed since the package was
// initialized, using time.Now's monotonic reading so it is immune to
// wall-clock adjustments.
func NowMicros() int64 {
	return time.Since(start).Microseconds()
}
