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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTypKnownNames(t *testing.T) {
	cases := []struct {
		name string
		s    string
		want Typ
	}{
		{"bytes", "bytes", Bytes},
		{"bool alias", "bool", Boolean},
		{"boolean", "boolean", Boolean},
		{"int alias", "int", Integer},
		{"integer", "integer", Integer},
		{"float", "float", Float},
		{"string", "string", String},
		{"datetime", "datetime", Datetime},
		{"null", "null", Null},
		{"case insensitive", "STRING", String},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTyp(tc.s)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseTypUnknownFallsBackToAuto(t *testing.T) {
	got, ok := ParseTyp("nonsense-type")
	assert.False(t, ok)
	assert.Equal(t, Auto, got)
}

func TestInterpretTextInfersKindFromText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Typ
	}{
		{"empty is null", "", Null},
		{"true is boolean", "true", Boolean},
		{"false is boolean", "false", Boolean},
		{"digits are integer", "42", Integer},
		{"negative integer", "-7", Integer},
		{"decimal is float", "3.14", Float},
		{"everything else is string", "hello", String},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := InterpretText(Auto, tc.text)
			typ, _ := v.Scalar()
			assert.Equal(t, tc.want, typ)
		})
	}
}

func TestInterpretTextHintFallsBackToStringWhenItDoesNotMatch(t *testing.T) {
	v := InterpretText(Integer, "not-a-number")
	typ, b := v.Scalar()
	assert.Equal(t, String, typ)
	assert.Equal(t, "not-a-number", string(b))
}

func TestInterpretTextHintWins(t *testing.T) {
	// "42" would infer as Integer unhinted; a String hint should keep it a
	// string rather than letting the unhinted fallback re-infer it.
	v := InterpretText(String, "42")
	typ, b := v.Scalar()
	assert.Equal(t, String, typ)
	assert.Equal(t, "42", string(b))
}

func TestRenderScalarBoolean(t *testing.T) {
	assert.Equal(t, []byte("true"), RenderScalar(Boolean, true))
	assert.Equal(t, []byte("false"), RenderScalar(Boolean, false))
}

func TestRenderScalarNull(t *testing.T) {
	assert.Nil(t, RenderScalar(Null, "anything"))
}

func TestValueSize(t *testing.T) {
	m := NewMap([]Field{
		{Name: "a", Value: NewScalar(Integer, []byte("1"))},
		{Name: "b", Value: NewList([]Value{
			NewScalar(Integer, []byte("2")),
			NewScalar(Integer, []byte("3")),
		})},
	})
	// root map + "a" scalar + "b" list + 2 list elements = 5
	assert.Equal(t, 5, m.Size())
}

func TestFormatRoundTrip(t *testing.T) {
	for _, f := range []Format{JSON, TOML, YAML} {
		got, err := ParseFormat(f.String())
		assert.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestParseFormatRejectsUnknown(t *testing.T) {
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}
