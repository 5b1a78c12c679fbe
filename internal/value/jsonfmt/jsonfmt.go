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

// Package jsonfmt adapts encoding/json to the value.Adapter interface.
//
// JSON has no third-party library in this project's dependency pack;
// encoding/json is the idiomatic standard-library choice for it (see
// DESIGN.md's justification for this one stdlib-based adapter).
package jsonfmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mgree/ffs/internal/value"
)

// Adapter implements value.Adapter for JSON documents. JSON has a single
// Number type (no distinct Integer/Float); Null exists; Datetime does not
// (spec.md §4.1).
type Adapter struct{}

var _ value.Adapter = Adapter{}

func (Adapter) Format() value.Format { return value.JSON }

func (Adapter) CanBePretty() bool { return true }

// Parse drives json.Decoder's token stream directly rather than decoding
// into map[string]any, because the latter does not preserve object key
// order and spec.md I5 requires load order to be preserved.
func (Adapter) Parse(r io.Reader) (value.Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return value.Value{}, fmt.Errorf("jsonfmt: empty document")
		}
		return value.Value{}, fmt.Errorf("jsonfmt: parse: %w", err)
	}

	v, err := decodeValue(dec, tok)
	if err != nil {
		return value.Value{}, fmt.Errorf("jsonfmt: parse: %w", err)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, tok json.Token) (value.Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return value.Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	case nil:
		return value.NewScalar(value.Null, nil), nil
	case bool:
		return value.NewScalar(value.Boolean, value.RenderScalar(value.Boolean, t)), nil
	case json.Number:
		s := t.String()
		if _, err := t.Int64(); err == nil {
			return value.NewScalar(value.Integer, []byte(s)), nil
		}
		return value.NewScalar(value.Float, []byte(s)), nil
	case string:
		return value.NewScalar(value.String, []byte(t)), nil
	default:
		return value.Value{}, fmt.Errorf("unexpected token %v (%T)", t, t)
	}
}

func decodeObject(dec *json.Decoder) (value.Value, error) {
	var fields []value.Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return value.Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("non-string object key %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return value.Value{}, err
		}
		v, err := decodeValue(dec, valTok)
		if err != nil {
			return value.Value{}, err
		}

		fields = append(fields, value.Field{Name: key, Value: v})
	}
	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return value.Value{}, err
	}
	return value.NewMap(fields), nil
}

func decodeArray(dec *json.Decoder) (value.Value, error) {
	var elems []value.Value
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return value.Value{}, err
		}
		v, err := decodeValue(dec, tok)
		if err != nil {
			return value.Value{}, err
		}
		elems = append(elems, v)
	}
	// Consume the closing ']'.
	if _, err := dec.Token(); err != nil {
		return value.Value{}, err
	}
	return value.NewList(elems), nil
}

// Serialize writes v's JSON text directly, preserving map field order
// (spec.md I5): encoding/json's map[string]any path would re-sort keys, so
// containers are written by hand while scalars still go through
// json.Marshal for correct escaping.
func (Adapter) Serialize(w io.Writer, v value.Value, opts value.Options) error {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return fmt.Errorf("jsonfmt: serialize: %w", err)
	}

	out := buf.Bytes()
	if opts.Pretty {
		var indented bytes.Buffer
		if err := json.Indent(&indented, out, "", "  "); err == nil {
			out = indented.Bytes()
		}
	}

	if opts.AddNewlines {
		if len(out) == 0 || out[len(out)-1] != '\n' {
			out = append(out, '\n')
		}
	}

	_, err := w.Write(out)
	return err
}

func writeValue(buf *bytes.Buffer, v value.Value) error {
	switch v.Kind() {
	case value.KindScalar:
		t, b := v.Scalar()
		switch t {
		case value.Null:
			buf.WriteString("null")
			return nil
		case value.Boolean:
			buf.WriteString(string(b))
			return nil
		case value.Integer, value.Float:
			buf.Write(b)
			return nil
		case value.Bytes:
			return fmt.Errorf("binary serialization unsupported")
		default:
			enc, err := json.Marshal(string(b))
			if err != nil {
				return err
			}
			buf.Write(enc)
			return nil
		}
	case value.KindList:
		buf.WriteByte('[')
		for i, e := range v.List() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case value.KindMap:
		buf.WriteByte('{')
		for i, f := range v.Fields() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Name)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeValue(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unknown value kind")
	}
}

func (Adapter) InterpretLeaf(hint value.Typ, raw []byte, opts value.Options) value.Value {
	return value.DefaultInterpretLeaf(hint, raw, opts)
}
