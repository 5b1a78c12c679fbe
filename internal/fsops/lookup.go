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
	"os"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/mgree/ffs/internal/inode"
)

// resolveChild returns the inum of name within parent's directory,
// handling the synthetic "." and ".." entries (spec.md §4.5's readdir
// contract implies lookup must agree with them, per P3).
func (fs *FileSystem) resolveChild(parent *inode.Inode, name string) (fuseops.InodeID, error) {
	if !parent.Entry.IsDir() {
		return 0, errNotDir
	}

	switch name {
	case ".":
		return parent.Inum, nil
	case "..":
		return parent.Parent, nil
	}

	e := parent.Entry.Dir.Get(name)
	if e == nil {
		return 0, errNotFound
	}
	return e.Inum, nil
}

// LookUpInode implements spec.md §4.5's lookup.
func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) (err error) {
	defer fs.observe("LookUpInode")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	parent, err := fs.store.Get(op.Parent)
	if err != nil {
		return errNotFound
	}

	childInum, err := fs.resolveChild(parent, op.Name)
	if err != nil {
		return err
	}

	child, err := fs.store.Get(childInum)
	if err != nil {
		return errNotFound
	}

	op.Entry.Child = childInum
	op.Entry.Attributes = child.Attributes()
	return nil
}

// GetInodeAttributes implements spec.md §4.5's getattr.
func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) (err error) {
	defer fs.observe("GetInodeAttributes")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	in, err := fs.store.Get(op.Inode)
	if err != nil {
		return errNotFound
	}

	op.Attributes = in.Attributes()
	return nil
}

// SetInodeAttributes implements spec.md §4.5's setattr: applies each
// supplied field, enforcing check_access and the uid/gid change rules;
// truncating a directory is EISDIR.
func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) (err error) {
	defer fs.observe("SetInodeAttributes")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	in, err := fs.store.Get(op.Inode)
	if err != nil {
		return errNotFound
	}

	if err := fs.checkAccess(); err != nil {
		return err
	}

	if err := fs.checkWritable(); err != nil {
		return err
	}

	if op.Size != nil {
		if in.Entry.IsDir() {
			return errIsDir
		}
		resizeFile(in.Entry.File, int(*op.Size))
		fs.store.MarkDirty()
	}

	if op.Mode != nil {
		in.Mode = uint16(*op.Mode & os.ModePerm)
		fs.store.MarkDirty()
	}

	if op.Atime != nil {
		in.Atime = *op.Atime
	}
	if op.Mtime != nil {
		in.Mtime = *op.Mtime
	}

	if op.Uid != nil {
		// "uid change must be noop unless uid==0" (spec.md §4.5).
		if fs.uid == 0 {
			in.UID = *op.Uid
			fs.store.MarkDirty()
		}
	}
	if op.Gid != nil {
		// Group change requires uid==0 or membership; ffs has no group
		// membership database, so only the superuser may change it.
		if fs.uid == 0 {
			in.GID = *op.Gid
			fs.store.MarkDirty()
		}
	}

	op.Attributes = in.Attributes()
	return nil
}

// ForgetInode implements the kernel's lookup-count decrement. The Inode
// Store never reclaims slots preemptively (spec.md §3 "Lifecycle" --
// reclamation happens only via unlink/rmdir), so there is nothing to do
// beyond acknowledging the call.
func (fs *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.metrics.OpsCount("ForgetInode")
	return nil
}

func resizeFile(f *inode.File, size int) {
	if size <= len(f.Data) {
		f.Data = f.Data[:size]
		return
	}
	grown := make([]byte, size)
	copy(grown, f.Data)
	f.Data = grown
}
