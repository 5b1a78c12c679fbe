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

// Package tomlfmt adapts github.com/pelletier/go-toml/v2 to the
// value.Adapter interface. go-toml/v2 decodes tables into plain Go maps,
// which (like any Go map) carry no order; the original ffs implementation
// this spec was distilled from used Rust's toml crate, whose Value::Table
// is a BTreeMap and therefore always iterates its keys in sorted order
// too. We match that behavior explicitly by sorting Named directory
// fields by name at load time (see DESIGN.md), rather than relying on a
// library order guarantee that doesn't exist for either language.
package tomlfmt

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mgree/ffs/internal/value"
	"github.com/pelletier/go-toml/v2"
)

// Adapter implements value.Adapter for TOML documents. Integers and
// floats are distinct; Datetime is a first-class scalar; there is no Null
// (spec.md §4.1).
type Adapter struct{}

var _ value.Adapter = Adapter{}

func (Adapter) Format() value.Format { return value.TOML }

func (Adapter) CanBePretty() bool { return false }

func (Adapter) Parse(r io.Reader) (value.Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return value.Value{}, fmt.Errorf("tomlfmt: read: %w", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return value.Value{}, fmt.Errorf("tomlfmt: parse: %w", err)
	}

	return fromNative(raw), nil
}

func fromNative(raw any) value.Value {
	switch x := raw.(type) {
	case nil:
		return value.NewScalar(value.Null, nil)
	case bool:
		return value.NewScalar(value.Boolean, value.RenderScalar(value.Boolean, x))
	case int64:
		return value.NewScalar(value.Integer, []byte(fmt.Sprintf("%d", x)))
	case float64:
		return value.NewScalar(value.Float, []byte(fmt.Sprintf("%v", x)))
	case string:
		return value.NewScalar(value.String, []byte(x))
	case time.Time:
		return value.NewScalar(value.Datetime, []byte(x.Format(time.RFC3339Nano)))
	case toml.LocalDate:
		return value.NewScalar(value.Datetime, []byte(x.String()))
	case toml.LocalDateTime:
		return value.NewScalar(value.Datetime, []byte(x.String()))
	case toml.LocalTime:
		return value.NewScalar(value.Datetime, []byte(x.String()))
	case []any:
		vs := make([]value.Value, len(x))
		for i, e := range x {
			vs[i] = fromNative(e)
		}
		return value.NewList(vs)
	case map[string]any:
		names := make([]string, 0, len(x))
		for k := range x {
			names = append(names, k)
		}
		sort.Strings(names)

		fields := make([]value.Field, len(names))
		for i, k := range names {
			fields[i] = value.Field{Name: k, Value: fromNative(x[k])}
		}
		return value.NewMap(fields)
	default:
		return value.NewScalar(value.String, []byte(fmt.Sprintf("%v", x)))
	}
}

func (Adapter) Serialize(w io.Writer, v value.Value, opts value.Options) error {
	native, err := toNative(v)
	if err != nil {
		return err
	}

	data, err := toml.Marshal(native)
	if err != nil {
		return fmt.Errorf("tomlfmt: serialize: %w", err)
	}

	if opts.AddNewlines {
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
	}

	_, err = w.Write(data)
	return err
}

// toNative builds the map[string]any/[]any tree go-toml/v2 expects.
// Null map fields are omitted entirely (TOML has no null; spec.md §4.1:
// "absence is achieved by not writing the key"). A Null inside a List has
// no such escape hatch and is a hard error.
func toNative(v value.Value) (any, error) {
	switch v.Kind() {
	case value.KindScalar:
		t, b := v.Scalar()
		switch t {
		case value.Null:
			return nil, nil
		case value.Boolean:
			return string(b) == "true", nil
		case value.Integer:
			var n int64
			if _, err := fmt.Sscanf(string(b), "%d", &n); err != nil {
				return nil, fmt.Errorf("tomlfmt: invalid integer %q", b)
			}
			return n, nil
		case value.Float:
			var f float64
			if _, err := fmt.Sscanf(string(b), "%g", &f); err != nil {
				return nil, fmt.Errorf("tomlfmt: invalid float %q", b)
			}
			return f, nil
		case value.Datetime:
			ts, err := time.Parse(time.RFC3339Nano, string(b))
			if err != nil {
				return nil, fmt.Errorf("tomlfmt: invalid datetime %q: %w", b, err)
			}
			return ts, nil
		case value.Bytes:
			return nil, fmt.Errorf("tomlfmt: binary serialization unsupported")
		default:
			return string(b), nil
		}
	case value.KindList:
		elems := v.List()
		out := make([]any, 0, len(elems))
		for _, e := range elems {
			if e.IsScalar() {
				if t, _ := e.Scalar(); t == value.Null {
					return nil, fmt.Errorf("tomlfmt: null values cannot appear inside a TOML array")
				}
			}
			n, err := toNative(e)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case value.KindMap:
		fields := v.Fields()
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			if f.Value.IsScalar() {
				if t, _ := f.Value.Scalar(); t == value.Null {
					continue
				}
			}
			n, err := toNative(f.Value)
			if err != nil {
				return nil, err
			}
			out[f.Name] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tomlfmt: unknown value kind")
	}
}

func (Adapter) InterpretLeaf(hint value.Typ, raw []byte, opts value.Options) value.Value {
	if hint == value.Bytes {
		return value.NewScalar(value.Bytes, raw)
	}

	text := string(raw)
	if opts.AddNewlines && len(text) > 0 && text[len(text)-1] == '\n' {
		text = text[:len(text)-1]
	}

	if hint == value.Datetime || hint == value.Auto {
		if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return value.NewScalar(value.Datetime, []byte(ts.Format(time.RFC3339Nano)))
		}
	}

	return value.InterpretText(hint, text)
}
