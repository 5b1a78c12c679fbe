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
	"github.com/mgree/ffs/internal/value"
)

// newChild allocates a fresh inode of kind regular-file or directory
// under parent and inserts the DirEntry, implementing the shared half
// of mknod/mkdir (spec.md §4.5).
func (fs *FileSystem) newChild(parent *inode.Inode, parentInum fuseops.InodeID, name string, mode uint16, isDir bool) (fuseops.InodeID, error) {
	if !parent.Entry.IsDir() {
		return 0, errNotDir
	}
	if parent.Entry.Dir.Get(name) != nil {
		return 0, errExists
	}

	now := fs.clock.Now()
	var entry inode.Entry
	var kind inode.EntryKind
	if isDir {
		entry = inode.Entry{Dir: inode.NewDirContent(inode.Named)}
		kind = inode.Directory
	} else {
		entry = inode.Entry{File: &inode.File{Typ: value.Auto}}
		kind = inode.RegularFile
	}

	childInum := fs.store.FreshInode(parentInum, entry, fs.uid, fs.gid, mode, now)
	parent.Entry.Dir.Insert(name, &inode.DirEntry{Kind: kind, Inum: childInum})
	return childInum, nil
}

// MkDir implements spec.md §4.5's mkdir.
func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) (err error) {
	defer fs.observe("MkDir")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if err := fs.checkAccess(); err != nil {
		return err
	}

	if err := fs.checkWritable(); err != nil {
		return err
	}

	parent, err := fs.store.Get(op.Parent)
	if err != nil {
		return errNotFound
	}

	childInum, err := fs.newChild(parent, op.Parent, op.Name, uint16(op.Mode.Perm()), true)
	if err != nil {
		return err
	}

	child, _ := fs.store.Get(childInum)
	op.Entry.Child = childInum
	op.Entry.Attributes = child.Attributes()
	return nil
}

// CreateFile implements spec.md §4.5's mknod/create for the common
// regular-file-via-O_CREAT case.
func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) (err error) {
	defer fs.observe("CreateFile")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if err := fs.checkAccess(); err != nil {
		return err
	}

	if err := fs.checkWritable(); err != nil {
		return err
	}

	parent, err := fs.store.Get(op.Parent)
	if err != nil {
		return errNotFound
	}

	childInum, err := fs.newChild(parent, op.Parent, op.Name, uint16(op.Mode.Perm()), false)
	if err != nil {
		return err
	}

	child, _ := fs.store.Get(childInum)
	op.Entry.Child = childInum
	op.Entry.Attributes = child.Attributes()
	return nil
}

// MkNode implements spec.md §4.5's mknod: only S_IFREG and S_IFDIR are
// supported, matching scenario 5 ("mknod with mode = S_IFBLK returns
// ENOSYS").
func (fs *FileSystem) MkNode(ctx context.Context, op *fuseops.MkNodeOp) (err error) {
	defer fs.observe("MkNode")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if err := fs.checkAccess(); err != nil {
		return err
	}

	if err := fs.checkWritable(); err != nil {
		return err
	}

	var isDir bool
	switch {
	case op.Mode.IsDir():
		isDir = true
	case op.Mode&os.ModeType == 0:
		isDir = false
	default:
		return errNotSupported
	}

	parent, err := fs.store.Get(op.Parent)
	if err != nil {
		return errNotFound
	}

	childInum, err := fs.newChild(parent, op.Parent, op.Name, uint16(op.Mode.Perm()), isDir)
	if err != nil {
		return err
	}

	child, _ := fs.store.Get(childInum)
	op.Entry.Child = childInum
	op.Entry.Attributes = child.Attributes()
	return nil
}

// RmDir implements spec.md §4.5's rmdir: entry must be a directory and
// empty.
func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) (err error) {
	defer fs.observe("RmDir")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if err := fs.checkAccess(); err != nil {
		return err
	}

	if err := fs.checkWritable(); err != nil {
		return err
	}

	parent, err := fs.store.Get(op.Parent)
	if err != nil {
		return errNotFound
	}
	if !parent.Entry.IsDir() {
		return errNotDir
	}

	e := parent.Entry.Dir.Get(op.Name)
	if e == nil {
		return errNotFound
	}
	if e.Kind != inode.Directory {
		return errNotDir
	}

	child, err := fs.store.Get(e.Inum)
	if err != nil {
		return errNotFound
	}
	if child.Entry.Dir.Len() > 0 {
		return errNotEmpty
	}

	return fs.store.Unlink(op.Parent, op.Name)
}

// Unlink implements spec.md §4.5's unlink: entry must be a regular
// file.
func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) (err error) {
	defer fs.observe("Unlink")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if err := fs.checkAccess(); err != nil {
		return err
	}

	if err := fs.checkWritable(); err != nil {
		return err
	}

	parent, err := fs.store.Get(op.Parent)
	if err != nil {
		return errNotFound
	}
	if !parent.Entry.IsDir() {
		return errNotDir
	}

	e := parent.Entry.Dir.Get(op.Name)
	if e == nil {
		return errNotFound
	}
	if e.Kind != inode.RegularFile {
		return errIsDir
	}

	return fs.store.Unlink(op.Parent, op.Name)
}

// Rename implements spec.md §4.5's rename contract, including scenario
// 6's cross-kind collisions and P5's original_name preservation rule.
func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) (err error) {
	defer fs.observe("Rename")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if err := fs.checkAccess(); err != nil {
		return err
	}

	if err := fs.checkWritable(); err != nil {
		return err
	}

	if op.OldName == "." || op.OldName == ".." || op.NewName == "." || op.NewName == ".." {
		return errInvalid
	}

	if op.OldParent == op.NewParent && op.OldName == op.NewName {
		return nil
	}

	oldParent, err := fs.store.Get(op.OldParent)
	if err != nil {
		return errNotFound
	}
	newParent, err := fs.store.Get(op.NewParent)
	if err != nil {
		return errNotFound
	}
	if !oldParent.Entry.IsDir() || !newParent.Entry.IsDir() {
		return errNotDir
	}

	srcEntry := oldParent.Entry.Dir.Get(op.OldName)
	if srcEntry == nil {
		return errNotFound
	}

	if dstEntry := newParent.Entry.Dir.Get(op.NewName); dstEntry != nil {
		if dstEntry.Kind != srcEntry.Kind {
			if srcEntry.Kind == inode.Directory {
				return errNotDir // renaming a directory over a regular file
			}
			return errIsDir // renaming a regular file over a directory
		}
		if dstEntry.Kind == inode.Directory {
			dstChild, err := fs.store.Get(dstEntry.Inum)
			if err != nil {
				return errNotFound
			}
			if dstChild.Entry.Dir.Len() > 0 {
				return errNotEmpty
			}
		}
		if err := fs.store.Unlink(op.NewParent, op.NewName); err != nil {
			return err
		}
	}

	oldParent.Entry.Dir.Remove(op.OldName)
	if op.OldName != op.NewName {
		srcEntry.OriginalName = nil
	}
	if op.OldParent != op.NewParent {
		child, err := fs.store.Get(srcEntry.Inum)
		if err != nil {
			return errNotFound
		}
		child.Parent = op.NewParent
	}
	newParent.Entry.Dir.Insert(op.NewName, srcEntry)
	fs.store.MarkDirty()

	return nil
}
