// Copyright 2024 Google Inc. All Rights Reserved.
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

package cfg

import "os"

// currentUID/currentGID seed the --uid/--gid flag defaults with the
// invoking process's own identity (spec.md §6 gives no default; mounting
// as oneself is the natural one).
func currentUID() int { return os.Getuid() }
func currentGID() int { return os.Getgid() }
