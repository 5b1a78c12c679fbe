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

// Package name implements the deterministic rules for validating,
// munging, sorting, padding, and restoring element names described in
// spec.md §4.2.
package name

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Valid reports whether s can be used as an on-disk name directly:
// neither "." nor ".." nor containing NUL or '/'.
func Valid(s string) bool {
	if s == "." || s == ".." {
		return false
	}
	return !strings.ContainsRune(s, '\x00') && !strings.ContainsRune(s, '/')
}

// Normalize maps the four forbidden forms to escaped replacements,
// repeating until a fixed point (the substitutions never introduce new
// forbidden characters, so this always terminates in one pass, but we
// loop defensively to keep the invariant explicit).
func Normalize(s string) string {
	for {
		next := normalizeOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	switch s {
	case ".":
		return "_."
	case "..":
		return "_.."
	}
	s = strings.ReplaceAll(s, "\x00", "_NUL_")
	s = strings.ReplaceAll(s, "/", "_SLASH_")
	return s
}

// MungePolicy selects what happens to an invalid incoming name at load
// time (spec.md §4.2).
type MungePolicy int

const (
	Rename MungePolicy = iota
	Filter
)

func (p MungePolicy) String() string {
	if p == Filter {
		return "filter"
	}
	return "rename"
}

func ParseMungePolicy(s string) (MungePolicy, error) {
	switch strings.ToLower(s) {
	case "rename":
		return Rename, nil
	case "filter":
		return Filter, nil
	default:
		return 0, fmt.Errorf("unknown munge policy %q", s)
	}
}

// Munge applies the configured MungePolicy to an invalid name. taken
// reports whether a candidate name is already used by an accepted
// sibling. It returns the on-disk name to use and ok=false if the entry
// should be dropped (Filter policy).
func Munge(policy MungePolicy, original string, taken func(string) bool) (onDisk string, ok bool) {
	if Valid(original) {
		return original, true
	}

	if policy == Filter {
		return "", false
	}

	candidate := Normalize(original)
	for taken(candidate) {
		candidate += "_"
	}
	return candidate, true
}

// Ignored reports whether a name must never be serialized back: "." and
// ".." always, and on macOS hosts any "._"-prefixed sidecar name unless
// keepMacOSXattrFile is set (spec.md §4.2).
func Ignored(n string, isDarwin bool, keepMacOSXattrFile bool) bool {
	if n == "." || n == ".." {
		return true
	}
	if isDarwin && !keepMacOSXattrFile && strings.HasPrefix(n, "._") {
		return true
	}
	return false
}

// Width returns ceil(log10(n)) used to zero-pad List directory element
// names, per spec.md §4.2. Width(0) and Width(1) are both 1 (a single
// zero-padded digit).
func Width(n int) int {
	if n <= 1 {
		return 1
	}
	return int(math.Ceil(math.Log10(float64(n))))
}

// PadName renders element i (0-based) of an n-element List directory.
// When padded is true the name is zero-padded to Width(n) digits so that
// byte-lexicographic sort order matches numeric order (spec.md I7); when
// false the caller has opted out of that guarantee.
func PadName(i, n int, padded bool) string {
	if !padded {
		return strconv.Itoa(i)
	}
	return fmt.Sprintf("%0*d", Width(n), i)
}
