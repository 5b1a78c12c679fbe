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

package value

import (
	"io"
	"unicode/utf8"
)

// Options controls the shared, format-independent knobs of serialization
// and re-interpretation described in spec.md §4.1 and §4.4.
type Options struct {
	// Pretty requests pretty-printed output. Advisory: formats without a
	// pretty mode ignore it (and a caller may warn via CanBePretty).
	Pretty bool

	// AddNewlines, when set, appends a single trailing '\n' to a rendered
	// file iff it doesn't already end in one, and strips exactly one
	// trailing '\n' before re-interpreting a file's contents. Disabled by
	// the CLI's --exact flag (spec.md §6, SPEC_FULL.md §3).
	AddNewlines bool
}

// Adapter is the uniform interface each supported document format
// (JSON, TOML, YAML) plugs into the Loader/Saver and the unpack/pack tree
// walks. Implementations are tagged variants per format; no shared base
// class is required (spec.md §9).
type Adapter interface {
	// Format identifies which Format this adapter implements.
	Format() Format

	// Parse reads a full document and produces its Value. Format-specific
	// errors are surfaced as an I/O-class failure (spec.md §7).
	Parse(r io.Reader) (Value, error)

	// Serialize writes v back out. opts.Pretty is advisory.
	Serialize(w io.Writer, v Value, opts Options) error

	// CanBePretty reports whether this format supports a pretty mode.
	CanBePretty() bool

	// InterpretLeaf applies the format's backward mapping (spec.md §4.4):
	// given a type hint and the file's raw bytes, decide whether this is a
	// byte-blob scalar (hint == Bytes, or the bytes are not valid UTF-8) or
	// a textual scalar to be interpreted via InterpretText.
	InterpretLeaf(hint Typ, raw []byte, opts Options) Value
}

// DefaultInterpretLeaf implements the shared rule of spec.md §4.4 used by
// JSON and YAML (formats without a bespoke scalar kind beyond the common
// set). TOML overrides it to add Datetime parsing.
func DefaultInterpretLeaf(hint Typ, raw []byte, opts Options) Value {
	if hint == Bytes {
		return NewScalar(Bytes, raw)
	}

	text := string(raw)
	if opts.AddNewlines && len(text) > 0 && text[len(text)-1] == '\n' {
		text = text[:len(text)-1]
	}

	if !utf8.Valid(raw) {
		return NewScalar(Bytes, raw)
	}

	return InterpretText(hint, text)
}
