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

package inode

import (
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(4)
	s.EnableInvariantChecking(true)
	s.SetRoot(Entry{Dir: NewDirContent(Named)}, 0, 0, 0o755, time.Unix(0, 0))
	return s
}

func TestFreshInodeAssignsSequentialNumbers(t *testing.T) {
	s := newTestStore(t)

	a := s.FreshInode(RootID, Entry{File: &File{Typ: 0}}, 0, 0, 0o644, time.Unix(0, 0))
	b := s.FreshInode(RootID, Entry{File: &File{Typ: 0}}, 0, 0, 0o644, time.Unix(0, 0))

	assert.Equal(t, a+1, b)
	assert.True(t, s.Dirty())
}

func TestGetUnknownInodeReturnsNoSuchInode(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(fuseops.InodeID(999))
	assert.IsType(t, NoSuchInode{}, err)
}

func TestUnlinkInvalidatesInodeSlot(t *testing.T) {
	s := newTestStore(t)
	root, err := s.Get(RootID)
	require.NoError(t, err)

	child := s.FreshInode(RootID, Entry{File: &File{Typ: 0}}, 0, 0, 0o644, time.Unix(0, 0))
	root.Entry.Dir.Insert("a", &DirEntry{Kind: RegularFile, Inum: child})

	require.NoError(t, s.Unlink(RootID, "a"))

	_, err = s.Get(child)
	assert.IsType(t, InvalidInode{}, err)
	assert.Nil(t, root.Entry.Dir.Get("a"))
}

func TestDirContentRenamePreservesOriginalNameOnlyForSameName(t *testing.T) {
	d := NewDirContent(Named)
	orig := "a/b"
	d.Insert("a_SLASH_b", &DirEntry{Kind: RegularFile, OriginalName: &orig, Inum: 5})

	d.Rename("a_SLASH_b", "a_SLASH_b")
	e := d.Get("a_SLASH_b")
	require.NotNil(t, e)
	require.NotNil(t, e.OriginalName)
	assert.Equal(t, "a/b", *e.OriginalName)

	d.Rename("a_SLASH_b", "renamed")
	e = d.Get("renamed")
	require.NotNil(t, e)
	assert.Nil(t, e.OriginalName)
}

func TestDirContentInsertionOrderPreservedAndExtendedAtEnd(t *testing.T) {
	d := NewDirContent(Named)
	d.Insert("z", &DirEntry{Kind: RegularFile, Inum: 1})
	d.Insert("a", &DirEntry{Kind: RegularFile, Inum: 2})
	d.Insert("m", &DirEntry{Kind: RegularFile, Inum: 3})

	assert.Equal(t, []string{"z", "a", "m"}, d.Names())
	assert.Equal(t, []string{"a", "m", "z"}, d.SortedNames())
}

func TestNlinkCountsSubdirectoriesOnly(t *testing.T) {
	d := NewDirContent(Named)
	d.Insert("file", &DirEntry{Kind: RegularFile, Inum: 1})
	d.Insert("dir1", &DirEntry{Kind: Directory, Inum: 2})
	d.Insert("dir2", &DirEntry{Kind: Directory, Inum: 3})

	in := &Inode{Entry: Entry{Dir: d}}
	attrs := in.Attributes()
	assert.EqualValues(t, 2+2, attrs.Nlink)
}

func TestInvariantViolationPanics(t *testing.T) {
	s := newTestStore(t)
	root, err := s.Get(RootID)
	require.NoError(t, err)
	root.Entry.Dir.Insert("dangling", &DirEntry{Kind: RegularFile, Inum: 999})

	assert.Panics(t, func() {
		s.Mu.Lock()
		s.Mu.Unlock()
	})
}
