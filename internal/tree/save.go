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

package tree

import (
	"fmt"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/mgree/ffs/internal/inode"
	"github.com/mgree/ffs/internal/name"
	"github.com/mgree/ffs/internal/value"
)

// Save walks the store from the root and emits the value.Value it
// represents (spec.md §4.4 "Saving"). adapter supplies the
// format-specific backward mapping used to interpret each file's bytes
// (InterpretLeaf); opts carries the shared AddNewlines knob.
func Save(store *inode.Store, adapter value.Adapter, opts value.Options, isDarwin, keepMacOSXattrFile bool) (value.Value, error) {
	return saveInode(store, inode.RootID, adapter, opts, isDarwin, keepMacOSXattrFile)
}

func saveInode(store *inode.Store, inum fuseops.InodeID, adapter value.Adapter, opts value.Options, isDarwin, keepMacOSXattrFile bool) (value.Value, error) {
	in, err := store.Get(inum)
	if err != nil {
		return value.Value{}, err
	}

	if !in.Entry.IsDir() {
		return saveFile(in.Entry.File, adapter, opts)
	}

	switch in.Entry.Dir.Kind {
	case inode.List:
		return saveListDir(store, in.Entry.Dir, adapter, opts, isDarwin, keepMacOSXattrFile)
	default:
		return saveNamedDir(store, in.Entry.Dir, adapter, opts, isDarwin, keepMacOSXattrFile)
	}
}

func saveFile(f *inode.File, adapter value.Adapter, opts value.Options) (value.Value, error) {
	if f.Typ == value.Bytes {
		return value.NewScalar(value.Bytes, f.Data), nil
	}
	return adapter.InterpretLeaf(f.Typ, f.Data, opts), nil
}

func saveListDir(store *inode.Store, dir *inode.DirContent, adapter value.Adapter, opts value.Options, isDarwin, keepMacOSXattrFile bool) (value.Value, error) {
	var elems []value.Value
	for _, childName := range dir.SortedNames() {
		if name.Ignored(childName, isDarwin, keepMacOSXattrFile) {
			continue
		}
		e := dir.Get(childName)
		v, err := saveInode(store, e.Inum, adapter, opts, isDarwin, keepMacOSXattrFile)
		if err != nil {
			return value.Value{}, err
		}
		elems = append(elems, v)
	}
	return value.NewList(elems), nil
}

func saveNamedDir(store *inode.Store, dir *inode.DirContent, adapter value.Adapter, opts value.Options, isDarwin, keepMacOSXattrFile bool) (value.Value, error) {
	var fields []value.Field
	for _, childName := range dir.Names() {
		if name.Ignored(childName, isDarwin, keepMacOSXattrFile) {
			continue
		}
		e := dir.Get(childName)
		key := childName
		if e.OriginalName != nil {
			key = *e.OriginalName
		}
		v, err := saveInode(store, e.Inum, adapter, opts, isDarwin, keepMacOSXattrFile)
		if err != nil {
			return value.Value{}, fmt.Errorf("tree: saving %q: %w", key, err)
		}
		fields = append(fields, value.Field{Name: key, Value: v})
	}
	return value.NewMap(fields), nil
}
