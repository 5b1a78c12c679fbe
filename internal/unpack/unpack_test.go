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

package unpack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/xattr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgree/ffs/internal/name"
	"github.com/mgree/ffs/internal/value"
)

func testConfig() Config {
	return Config{
		AllowXattr: true,
		Padded:     true,
		Munge:      name.Rename,
		FileMode:   0o644,
		DirMode:    0o755,
	}
}

func TestUnpackRejectsBareScalarRoot(t *testing.T) {
	dir := t.TempDir()
	err := Unpack(value.NewScalar(value.Integer, []byte("1")), dir, testConfig())
	assert.Error(t, err)
}

func TestUnpackWritesScalarFile(t *testing.T) {
	dir := t.TempDir()
	v := value.NewMap([]value.Field{
		{Name: "a", Value: value.NewScalar(value.Integer, []byte("42"))},
	})

	require.NoError(t, Unpack(v, dir, testConfig()))

	contents, err := os.ReadFile(filepath.Join(dir, "a"))
	require.NoError(t, err)
	assert.Equal(t, "42", string(contents))
}

func TestUnpackSetsUserTypeXattr(t *testing.T) {
	dir := t.TempDir()
	v := value.NewMap([]value.Field{
		{Name: "a", Value: value.NewScalar(value.Integer, []byte("42"))},
	})
	require.NoError(t, Unpack(v, dir, testConfig()))

	got, err := xattr.Get(filepath.Join(dir, "a"), userTypeAttr)
	require.NoError(t, err)
	assert.Equal(t, "integer", string(got))
}

func TestUnpackListPadsNames(t *testing.T) {
	dir := t.TempDir()
	elems := make([]value.Value, 12)
	for i := range elems {
		elems[i] = value.NewScalar(value.Integer, []byte("0"))
	}

	require.NoError(t, Unpack(value.NewList(elems), dir, testConfig()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Contains(t, names, "00")
	assert.Contains(t, names, "11")
}

func TestUnpackMungesInvalidMapKeyAndRecordsOriginalName(t *testing.T) {
	dir := t.TempDir()
	v := value.NewMap([]value.Field{
		{Name: "a/b", Value: value.NewScalar(value.Integer, []byte("1"))},
	})

	require.NoError(t, Unpack(v, dir, testConfig()))

	path := filepath.Join(dir, "a_SLASH_b")
	_, err := os.Stat(path)
	require.NoError(t, err)

	got, err := xattr.Get(path, userOriginalNameAttr)
	require.NoError(t, err)
	assert.Equal(t, "a/b", string(got))
}

func TestUnpackDoesNotRecreateRootDirectory(t *testing.T) {
	dir := t.TempDir()
	v := value.NewMap([]value.Field{
		{Name: "a", Value: value.NewScalar(value.Integer, []byte("1"))},
	})

	require.NoError(t, Unpack(v, dir, testConfig()))

	_, err := os.Stat(dir)
	require.NoError(t, err)
}

func TestUnpackNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	v := value.NewMap([]value.Field{
		{Name: "child", Value: value.NewMap([]value.Field{
			{Name: "leaf", Value: value.NewScalar(value.String, []byte("hi"))},
		})},
	})

	require.NoError(t, Unpack(v, dir, testConfig()))

	contents, err := os.ReadFile(filepath.Join(dir, "child", "leaf"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(contents))
}
