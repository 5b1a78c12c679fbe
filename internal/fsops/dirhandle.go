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

package fsops

import (
	"context"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/mgree/ffs/internal/inode"
)

// dirHandle buffers the listing for one OpenDir/ReadDir/
// ReleaseDirHandle session. Because the whole directory already lives
// in memory, the listing is computed once at OpenDir time rather than
// paged lazily the way the teacher's GCS-backed dirHandle must.
type dirHandle struct {
	entries []fuseutil.Dirent
}

func directoryType(kind inode.EntryKind) fuseutil.DirentType {
	if kind == inode.Directory {
		return fuseutil.DT_Directory
	}
	return fuseutil.DT_File
}

// listEntries renders ".", "..", then children in stored order (spec.md
// §4.5 readdir: "emits synthetic ., .. first, then children in stored
// order").
func listEntries(store *inode.Store, in *inode.Inode) []fuseutil.Dirent {
	entries := make([]fuseutil.Dirent, 0, in.Entry.Dir.Len()+2)
	offset := fuseops.DirOffset(1)

	entries = append(entries, fuseutil.Dirent{
		Offset: offset,
		Inode:  in.Inum,
		Name:   ".",
		Type:   fuseutil.DT_Directory,
	})
	offset++

	entries = append(entries, fuseutil.Dirent{
		Offset: offset,
		Inode:  in.Parent,
		Name:   "..",
		Type:   fuseutil.DT_Directory,
	})
	offset++

	for _, name := range in.Entry.Dir.Names() {
		e := in.Entry.Dir.Get(name)
		entries = append(entries, fuseutil.Dirent{
			Offset: offset,
			Inode:  e.Inum,
			Name:   name,
			Type:   directoryType(e.Kind),
		})
		offset++
	}

	return entries
}

// OpenDir implements spec.md §4.5's readdir setup.
func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) (err error) {
	defer fs.observe("OpenDir")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	in, err := fs.store.Get(op.Inode)
	if err != nil {
		return errNotFound
	}
	if !in.Entry.IsDir() {
		return errNotDir
	}

	handleID := fs.nextHandleID
	fs.nextHandleID++
	fs.handles[handleID] = &dirHandle{entries: listEntries(fs.store, in)}
	op.Handle = handleID
	return nil
}

// ReadDir implements spec.md §4.5's readdir.
func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) (err error) {
	defer fs.observe("ReadDir")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	dh, ok := fs.handles[op.Handle]
	if !ok {
		return errInvalid
	}

	index := int(op.Offset)
	for index < len(dh.entries) {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], dh.entries[index])
		if n == 0 {
			break
		}
		op.BytesRead += n
		index++
	}

	return nil
}

// ReleaseDirHandle implements the cleanup half of OpenDir.
func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.metrics.OpsCount("ReleaseDirHandle")

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	delete(fs.handles, op.Handle)
	return nil
}
