// Copyright 2025 Google LLC
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

package ffsclock

import "github.com/jacobsa/timeutil"

// Clock is github.com/jacobsa/timeutil.Clock, the interface the teacher's
// own clock package (clock.RealClock / clock.SimulatedClock) implements.
// Aliased rather than redeclared so RealClock/SimulatedClock below satisfy
// the real dependency directly. Timestamps for new inodes and mtime/atime/
// ctime updates are drawn from a Clock rather than time.Now directly so
// tests can hold time fixed.
type Clock = timeutil.Clock
