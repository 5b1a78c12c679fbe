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

// Package inode implements the Inode Store: a vector of optional inode
// records indexed by inode number, with allocation, lookup, and the
// dirty/synced pair of flags described in spec.md §3 and §4.3.
package inode

import (
	"sort"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/mgree/ffs/internal/value"
)

// RootID is the well-known inode number of the mount root (spec.md §3:
// "root has both [parent and inum] equal to the well-known root id").
const RootID = fuseops.RootInodeID

// DirKind distinguishes a directory whose names are synthesized and only
// sort-ordered (List) from one whose names are user-meaningful (Named).
type DirKind int

const (
	Named DirKind = iota
	List
)

// EntryKind is the kind of filesystem object a DirEntry refers to.
type EntryKind int

const (
	RegularFile EntryKind = iota
	Directory
)

// DirEntry is a parent's record of a child: kind, possibly-munged-from
// name, and a non-owning index into the Inode Store (spec.md §3).
type DirEntry struct {
	Kind EntryKind

	// OriginalName is set when the on-disk name was munged from a user
	// name; it is cleared on rename (spec.md §3, P5).
	OriginalName *string

	Inum fuseops.InodeID
}

// File is the inode content of a regular file inode: a scalar type tag
// and the raw bytes currently on "disk".
type File struct {
	Typ  value.Typ
	Data []byte
}

// DirContent is the inode content of a directory inode: its DirKind and
// an ordered name -> DirEntry mapping. Order is the iteration order used
// for Named directories (spec.md I5); List directories re-derive order
// from name at save time (spec.md I4).
type DirContent struct {
	Kind DirKind

	// names preserves insertion order; entries indexes by name. Both are
	// kept in lockstep by the methods below so callers never touch them
	// directly.
	names   []string
	entries map[string]*DirEntry
}

func NewDirContent(kind DirKind) *DirContent {
	return &DirContent{Kind: kind, entries: make(map[string]*DirEntry)}
}

// Names returns the directory's child names in stored order.
func (d *DirContent) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Get returns the entry for name, or nil if absent.
func (d *DirContent) Get(name string) *DirEntry {
	return d.entries[name]
}

// Len returns the number of children.
func (d *DirContent) Len() int { return len(d.names) }

// Insert adds or replaces the entry for name, appending to the stored
// order if name is new (spec.md I5: "extended at the end on fresh
// insertions").
func (d *DirContent) Insert(name string, e *DirEntry) {
	if _, exists := d.entries[name]; !exists {
		d.names = append(d.names, name)
	}
	d.entries[name] = e
}

// Remove deletes name from the directory, if present.
func (d *DirContent) Remove(name string) {
	if _, exists := d.entries[name]; !exists {
		return
	}
	delete(d.entries, name)
	for i, n := range d.names {
		if n == name {
			d.names = append(d.names[:i], d.names[i+1:]...)
			break
		}
	}
}

// Rename moves the entry at oldName to newName, preserving OriginalName
// iff oldName == newName (spec.md P5) and otherwise clearing it. If an
// entry already exists at newName it is overwritten (the caller is
// responsible for checking collision/kind-compatibility rules first, per
// spec.md §4.5's rename contract).
func (d *DirContent) Rename(oldName, newName string) {
	e := d.entries[oldName]
	if e == nil {
		return
	}
	d.Remove(oldName)
	if newName != oldName {
		e.OriginalName = nil
	}
	d.Insert(newName, e)
}

// SortedNames returns child names sorted byte-lexicographically, used to
// serialize List directories (spec.md I4, P7).
func (d *DirContent) SortedNames() []string {
	out := d.Names()
	sort.Strings(out)
	return out
}

// NumSubdirectories returns the count of children whose kind is
// Directory, used to compute nlink (spec.md §4.5, P4).
func (d *DirContent) NumSubdirectories() int {
	n := 0
	for _, name := range d.names {
		if d.entries[name].Kind == Directory {
			n++
		}
	}
	return n
}

// Entry is a File or Directory payload for an Inode. Exactly one of File
// or Dir is non-nil.
type Entry struct {
	File *File
	Dir  *DirContent
}

func (e *Entry) IsDir() bool { return e.Dir != nil }

// Inode is the unit of the core (spec.md §3).
type Inode struct {
	Parent fuseops.InodeID
	Inum   fuseops.InodeID

	UID, GID uint32
	Mode     uint16 // low 9 bits are Unix permission bits

	Atime, Mtime, Ctime, Crtime time.Time

	Entry Entry
}
