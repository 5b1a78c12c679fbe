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

// Package tree implements the Loader/Saver: the eager traversal that
// materializes a parsed value.Value into an inode.Store, and the reverse
// walk that emits a value.Value from the store (spec.md §4.4).
package tree

import (
	"fmt"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/mgree/ffs/internal/ffsclock"
	"github.com/mgree/ffs/internal/inode"
	"github.com/mgree/ffs/internal/name"
	"github.com/mgree/ffs/internal/value"
)

// Config holds the knobs the Loader and Saver need beyond the document
// itself: ownership/permission defaults, name-munging policy, and the
// shared serialization Options of spec.md §4.1/§4.4.
type Config struct {
	UID, GID uint32
	FileMode uint16
	DirMode  uint16

	Padded bool
	Munge  name.MungePolicy

	// KeepMacOSXattrFile / IsDarwin describe the "._*" ignore rule of
	// spec.md §4.2. Load itself does not read them (every document key is
	// loaded), and IsDarwin has no default: callers set it (cmd/ffs passes
	// runtime.GOOS == "darwin").
	IsDarwin           bool
	KeepMacOSXattrFile bool

	Options value.Options

	Clock ffsclock.Clock

	// ExitOnInvariantViolation is threaded onto the resulting Store (see
	// inode.Store.ExitOnInvariantViolation); invariant checking itself is
	// enabled unconditionally, since Load builds the store a production
	// mount will actually serve.
	ExitOnInvariantViolation bool
}

type workItem struct {
	inum fuseops.InodeID
	v    value.Value
}

// Load materializes v into a freshly created inode.Store, per spec.md
// §4.4. The root of v must be a container (List or Map); a bare scalar at
// root is a fatal load error.
func Load(v value.Value, cfg Config) (*inode.Store, error) {
	if v.IsScalar() {
		return nil, fmt.Errorf("tree: root of document must be a container, not a scalar")
	}

	store := inode.NewStore(v.Size() + 1)
	store.ExitOnInvariantViolation = cfg.ExitOnInvariantViolation
	store.EnableInvariantChecking(true)
	now := cfg.Clock.Now()

	rootMode := cfg.DirMode
	store.SetRoot(inode.Entry{File: &inode.File{}}, cfg.UID, cfg.GID, rootMode, now)

	worklist := []workItem{{inum: inode.RootID, v: v}}

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		in, err := store.GetMut(item.inum)
		if err != nil {
			return nil, err
		}

		switch {
		case item.v.IsScalar():
			t, b := item.v.Scalar()
			in.Entry = inode.Entry{File: &inode.File{Typ: t, Data: append([]byte(nil), b...)}}

		case item.v.IsList():
			elems := item.v.List()
			dir := inode.NewDirContent(inode.List)
			in.Entry = inode.Entry{Dir: dir}

			n := len(elems)
			for i, e := range elems {
				childInum := store.FreshInode(item.inum, inode.Entry{File: &inode.File{}}, cfg.UID, cfg.GID, modeFor(e, cfg), now)
				onDisk := name.PadName(i, n, cfg.Padded)
				dir.Insert(onDisk, &inode.DirEntry{Kind: kindFor(e), Inum: childInum})
				worklist = append(worklist, workItem{inum: childInum, v: e})
			}

		case item.v.IsMap():
			dir := inode.NewDirContent(inode.Named)
			in.Entry = inode.Entry{Dir: dir}

			for _, f := range item.v.Fields() {
				onDisk, ok := name.Munge(cfg.Munge, f.Name, func(cand string) bool {
					return dir.Get(cand) != nil
				})
				if !ok {
					continue // Filter policy: drop the entry, warning is the caller's concern
				}

				childInum := store.FreshInode(item.inum, inode.Entry{File: &inode.File{}}, cfg.UID, cfg.GID, modeFor(f.Value, cfg), now)

				var original *string
				if onDisk != f.Name {
					o := f.Name
					original = &o
				}
				dir.Insert(onDisk, &inode.DirEntry{Kind: kindFor(f.Value), OriginalName: original, Inum: childInum})
				worklist = append(worklist, workItem{inum: childInum, v: f.Value})
			}
		}
	}

	store.MarkDirty()
	return store, nil
}

func modeFor(v value.Value, cfg Config) uint16 {
	if v.IsScalar() {
		return cfg.FileMode
	}
	return cfg.DirMode
}

func kindFor(v value.Value) inode.EntryKind {
	if v.IsScalar() {
		return inode.RegularFile
	}
	return inode.Directory
}
