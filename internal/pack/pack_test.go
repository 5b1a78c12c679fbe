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

package pack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/xattr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgree/ffs/internal/value"
)

func testConfig() Config {
	return Config{
		Symlink:     NoFollow,
		MaxDepth:    -1,
		AllowXattr:  true,
		AddNewlines: true,
	}
}

func TestPackNamedDirSortsByFilename(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "b"), "integer", "2")
	write(t, filepath.Join(dir, "a"), "integer", "1")

	v, err := New(testConfig()).Pack(dir)
	require.NoError(t, err)
	require.True(t, v.IsMap())

	fields := v.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Name)
	assert.Equal(t, "b", fields[1].Name)
}

func TestPackListDirSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "10"), "integer", "10")
	write(t, filepath.Join(dir, "2"), "integer", "2")
	setXattr(t, dir, userTypeAttr, "list")

	v, err := New(testConfig()).Pack(dir)
	require.NoError(t, err)
	require.True(t, v.IsList())

	elems := v.List()
	require.Len(t, elems, 2)
	_, b0 := elems[0].Scalar()
	_, b1 := elems[1].Scalar()
	assert.Equal(t, "2", string(b0))
	assert.Equal(t, "10", string(b1))
}

func TestPackInfersListWhenAllNamesAreDigits(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "0"), "integer", "0")
	write(t, filepath.Join(dir, "1"), "integer", "1")

	v, err := New(testConfig()).Pack(dir)
	require.NoError(t, err)
	assert.True(t, v.IsList())
}

func TestPackInfersNamedWhenNamesAreNotAllDigits(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a"), "integer", "0")
	write(t, filepath.Join(dir, "1"), "integer", "1")

	v, err := New(testConfig()).Pack(dir)
	require.NoError(t, err)
	assert.True(t, v.IsMap())
}

func TestPackStripsTrailingNewlineWhenAddNewlines(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a"), "string", "hello\n")

	v, err := New(testConfig()).Pack(dir)
	require.NoError(t, err)

	f := v.Fields()[0]
	_, b := f.Value.Scalar()
	assert.Equal(t, "hello", string(b))
}

func TestPackRestoresOriginalNameFromXattr(t *testing.T) {
	dir := t.TempDir()
	childPath := filepath.Join(dir, "a_SLASH_b")
	write(t, childPath, "integer", "1")
	setXattr(t, childPath, userOriginalNameAttr, "a/b")

	v, err := New(testConfig()).Pack(dir)
	require.NoError(t, err)

	assert.Equal(t, "a/b", v.Fields()[0].Name)
}

func TestPackUnknownTypeIsFatal(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a"), "nonsense-type", "1")

	_, err := New(testConfig()).Pack(dir)
	assert.Error(t, err)
}

func TestPackRespectsMaxDepth(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "child")
	require.NoError(t, os.Mkdir(nested, 0o755))
	write(t, filepath.Join(nested, "leaf"), "integer", "1")

	cfg := testConfig()
	cfg.MaxDepth = 1
	v, err := New(cfg).Pack(dir)
	require.NoError(t, err)

	fields := v.Fields()
	require.Len(t, fields, 1)
	assert.True(t, fields[0].Value.IsMap())
	assert.Empty(t, fields[0].Value.Fields())
}

// TestPackInfersTypeWhenNoXattrPresent covers a leaf with no user.type
// xattr at all (readType falls back to "auto"): the packed scalar must be
// interpreted by its contents rather than passed through as a string,
// matching tree.saveFile's handling of the same Auto-typed case.
func TestPackInfersTypeWhenNoXattrPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("42"), 0o644))

	v, err := New(testConfig()).Pack(dir)
	require.NoError(t, err)

	f := v.Fields()[0]
	typ, b := f.Value.Scalar()
	assert.Equal(t, value.Integer, typ)
	assert.Equal(t, "42", string(b))
}

// TestPackInfersTypeWhenXattrDisabled covers the same fallback when
// AllowXattr is false, so readType never even attempts the xattr call.
func TestPackInfersTypeWhenXattrDisabled(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a"), "integer", "42")

	cfg := testConfig()
	cfg.AllowXattr = false
	v, err := New(cfg).Pack(dir)
	require.NoError(t, err)

	f := v.Fields()[0]
	typ, b := f.Value.Scalar()
	assert.Equal(t, value.Integer, typ)
	assert.Equal(t, "42", string(b))
}

func write(t *testing.T, path, typ, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	setXattr(t, path, userTypeAttr, typ)
}

func setXattr(t *testing.T, path, attr, val string) {
	t.Helper()
	if err := xattr.Set(path, attr, []byte(val)); err != nil {
		t.Skipf("xattrs not supported on this filesystem: %v", err)
	}
}
