// Copyright 2025 go-highway Authors
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

package device

import "time"

// Stopwatch measures consecutive phases of host-side work.
type Stopwatch struct {
	start time.Time
	lap   time.Time
}

// StartStopwatch returns a running stopwatch.
func StartStopwatch() *Stopwatch {
	now := time.Now()
	return &Stopwatch{start: now, lap: now}
}

// Lap returns the time since the previous Lap, or since the start.
func (s *Stopwatch) Lap() time.Duration {
	now := time.Now()
	d := now.Sub(s.lap)
	s.lap = now
	return d
}

// Total returns the time since the start.
func (s *Stopwatch) Total() time.Duration {
	return time.Since(s.start)
}
