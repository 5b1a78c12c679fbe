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

// Package yamlfmt adapts gopkg.in/yaml.v3 to the value.Adapter interface,
// grounded on the teacher's own dependency on gopkg.in/yaml.v3 for its
// mount config file (cfg package).
package yamlfmt

import (
	"fmt"
	"io"

	"github.com/mgree/ffs/internal/value"
	"gopkg.in/yaml.v3"
)

// Adapter implements value.Adapter for YAML documents. Null exists;
// scalars are tagged textually via yaml.Node.Tag (spec.md §4.1).
type Adapter struct{}

var _ value.Adapter = Adapter{}

func (Adapter) Format() value.Format { return value.YAML }

// CanBePretty reports false: YAML has one canonical block-style rendering
// and no separate "pretty" mode (spec.md §4.1's "formats without a pretty
// mode warn and ignore").
func (Adapter) CanBePretty() bool { return false }

func (Adapter) Parse(r io.Reader) (value.Value, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return value.Value{}, fmt.Errorf("yamlfmt: empty document")
		}
		return value.Value{}, fmt.Errorf("yamlfmt: parse: %w", err)
	}

	// A top-level Decode produces a DocumentNode wrapping the real root.
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}

	return fromNode(root), nil
}

func fromNode(n *yaml.Node) value.Value {
	switch n.Kind {
	case yaml.SequenceNode:
		vs := make([]value.Value, len(n.Content))
		for i, c := range n.Content {
			vs[i] = fromNode(c)
		}
		return value.NewList(vs)
	case yaml.MappingNode:
		fields := make([]value.Field, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			val := n.Content[i+1]
			fields = append(fields, value.Field{Name: key.Value, Value: fromNode(val)})
		}
		return value.NewMap(fields)
	case yaml.ScalarNode:
		return fromScalarNode(n)
	case yaml.AliasNode:
		return fromNode(n.Alias)
	default:
		return value.NewScalar(value.String, []byte(n.Value))
	}
}

func fromScalarNode(n *yaml.Node) value.Value {
	switch n.Tag {
	case "!!null":
		return value.NewScalar(value.Null, nil)
	case "!!bool":
		return value.NewScalar(value.Boolean, []byte(n.Value))
	case "!!int":
		return value.NewScalar(value.Integer, []byte(n.Value))
	case "!!float":
		return value.NewScalar(value.Float, []byte(n.Value))
	default:
		return value.NewScalar(value.String, []byte(n.Value))
	}
}

func (Adapter) Serialize(w io.Writer, v value.Value, opts value.Options) error {
	node, err := toNode(v)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("yamlfmt: serialize: %w", err)
	}
	return enc.Close()
}

func toNode(v value.Value) (*yaml.Node, error) {
	switch v.Kind() {
	case value.KindScalar:
		t, b := v.Scalar()
		switch t {
		case value.Null:
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
		case value.Boolean:
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: string(b)}, nil
		case value.Integer:
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: string(b)}, nil
		case value.Float:
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: string(b)}, nil
		case value.Bytes:
			return nil, fmt.Errorf("yamlfmt: binary serialization unsupported")
		default:
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(b), Style: styleFor(b)}, nil
		}
	case value.KindList:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range v.List() {
			c, err := toNode(e)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case value.KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range v.Fields() {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Name}
			val, err := toNode(f.Value)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, key, val)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("yamlfmt: unknown value kind")
	}
}

// styleFor quotes strings that would otherwise be parsed back as a
// different scalar kind (e.g. the literal text "true" or "42"), so
// round-tripping a String value doesn't silently turn it into a Boolean
// or Integer on the next load.
func styleFor(b []byte) yaml.Style {
	s := string(b)
	if s == "" {
		return yaml.DoubleQuotedStyle
	}
	probe := value.InterpretText(value.Auto, s)
	if t, _ := probe.Scalar(); t != value.String {
		return yaml.DoubleQuotedStyle
	}
	return 0
}

func (Adapter) InterpretLeaf(hint value.Typ, raw []byte, opts value.Options) value.Value {
	return value.DefaultInterpretLeaf(hint, raw, opts)
}
