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

// Package value defines the variant produced by a Value Adapter: the
// abstract document model that sits between a parsed JSON/TOML/YAML
// document and the inode tree that represents it in the mount.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Typ is the scalar type tag carried on file inodes and in the user.type
// xattr. Auto is a sentinel used at load time before a specific tag is
// chosen.
type Typ int

const (
	Auto Typ = iota
	Bytes
	Boolean
	Integer
	Float
	String
	Datetime
	Null
)

func (t Typ) String() string {
	switch t {
	case Auto:
		return "auto"
	case Bytes:
		return "bytes"
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Datetime:
		return "datetime"
	case Null:
		return "null"
	default:
		return fmt.Sprintf("Typ(%d)", int(t))
	}
}

// ParseTyp maps a user.type xattr string (or "list"/"named", handled by
// callers separately) back to a Typ. It returns Auto, false if s does not
// name a known scalar type.
func ParseTyp(s string) (Typ, bool) {
	switch strings.ToLower(s) {
	case "auto":
		return Auto, true
	case "bytes":
		return Bytes, true
	case "boolean", "bool":
		return Boolean, true
	case "integer", "int":
		return Integer, true
	case "float":
		return Float, true
	case "string":
		return String, true
	case "datetime":
		return Datetime, true
	case "null":
		return Null, true
	default:
		return Auto, false
	}
}

// Kind distinguishes the three Value variants.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

// Field is one entry of a Map value. Order of Field slices is significant
// and preserved on load and save (spec.md I5).
type Field struct {
	Name  string
	Value Value
}

// Value is the variant produced by a Value Adapter's parse step and
// consumed by its serialize step. Exactly one of the three shapes is
// populated, selected by Kind.
type Value struct {
	kind Kind

	// KindScalar
	typ   Typ
	bytes []byte

	// KindList
	list []Value

	// KindMap
	fields []Field
}

func NewScalar(t Typ, b []byte) Value {
	return Value{kind: KindScalar, typ: t, bytes: b}
}

func NewList(vs []Value) Value {
	return Value{kind: KindList, list: vs}
}

func NewMap(fields []Field) Value {
	return Value{kind: KindMap, fields: fields}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsScalar() bool { return v.kind == KindScalar }
func (v Value) IsList() bool   { return v.kind == KindList }
func (v Value) IsMap() bool    { return v.kind == KindMap }

// Scalar returns the type tag and raw bytes of a scalar value. It panics
// if v is not a scalar; callers must check Kind first.
func (v Value) Scalar() (Typ, []byte) {
	if v.kind != KindScalar {
		panic("value: Scalar called on non-scalar Value")
	}
	return v.typ, v.bytes
}

// List returns the ordered elements of a list value.
func (v Value) List() []Value {
	if v.kind != KindList {
		panic("value: List called on non-list Value")
	}
	return v.list
}

// Fields returns the ordered (name, value) pairs of a map value.
func (v Value) Fields() []Field {
	if v.kind != KindMap {
		panic("value: Fields called on non-map Value")
	}
	return v.fields
}

// Size counts every scalar plus every container reachable from v,
// inclusive of v itself. Used by the Loader to pre-size the Inode Store
// (spec.md §4.4).
func (v Value) Size() int {
	switch v.kind {
	case KindScalar:
		return 1
	case KindList:
		n := 1
		for _, e := range v.list {
			n += e.Size()
		}
		return n
	case KindMap:
		n := 1
		for _, f := range v.fields {
			n += f.Value.Size()
		}
		return n
	default:
		return 1
	}
}

// RenderScalar produces the canonical file-contents bytes for a scalar of
// the given type and native Go value, per spec.md §4.1's rendering rules.
// It is shared by all three Value Adapters.
func RenderScalar(t Typ, native any) []byte {
	switch t {
	case Boolean:
		if b, ok := native.(bool); ok {
			if b {
				return []byte("true")
			}
			return []byte("false")
		}
	case Null:
		return nil
	}
	switch x := native.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return []byte("true")
		}
		return []byte("false")
	case string:
		return []byte(x)
	case []byte:
		return x
	default:
		return []byte(fmt.Sprintf("%v", x))
	}
	return nil
}

// InterpretText applies spec.md §4.4's shared interpretation rule to text
// read back from a file: empty -> Null; true/false -> Boolean; integer
// syntax -> Integer; float syntax -> Float; else -> String. hint, when not
// Auto, is tried first; if the text doesn't parse as the hinted kind the
// text is still used as a string rather than discarded (spec.md's
// documented fallback, see DESIGN.md Open Question decisions).
func InterpretText(hint Typ, text string) Value {
	if hint != Auto {
		if v, ok := tryInterpretAs(hint, text); ok {
			return v
		}
		return NewScalar(String, []byte(text))
	}

	if text == "" {
		return NewScalar(Null, nil)
	}
	if text == "true" || text == "false" {
		return NewScalar(Boolean, []byte(text))
	}
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return NewScalar(Integer, []byte(text))
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		return NewScalar(Float, []byte(text))
	}
	return NewScalar(String, []byte(text))
}

// tryInterpretAs attempts to parse text strictly as the hinted kind.
func tryInterpretAs(hint Typ, text string) (Value, bool) {
	switch hint {
	case Null:
		if text == "" {
			return NewScalar(Null, nil), true
		}
	case Boolean:
		if text == "true" || text == "false" {
			return NewScalar(Boolean, []byte(text)), true
		}
	case Integer:
		if _, err := strconv.ParseInt(text, 10, 64); err == nil {
			return NewScalar(Integer, []byte(text)), true
		}
	case Float:
		if _, err := strconv.ParseFloat(text, 64); err == nil {
			return NewScalar(Float, []byte(text)), true
		}
	case Datetime:
		// Datetime parsing is format-specific (TOML only carries a first-class
		// Datetime scalar); adapters that support it override this case by
		// calling their own parser before falling through to InterpretText.
	case String:
		return NewScalar(String, []byte(text)), true
	}
	return Value{}, false
}

// Format names a supported document format.
type Format int

const (
	JSON Format = iota
	TOML
	YAML
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case TOML:
		return "toml"
	case YAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// ParseFormat maps a CLI/config string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return JSON, nil
	case "toml":
		return TOML, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

// FormatFromExtension infers a Format from a file extension (including the
// leading dot, e.g. ".json"), used by --new to infer format from a file
// name (spec.md §6).
func FormatFromExtension(ext string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return JSON, nil
	case "toml":
		return TOML, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return 0, fmt.Errorf("cannot infer format from extension %q", ext)
	}
}
