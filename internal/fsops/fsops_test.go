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
	"syscall"
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgree/ffs/internal/ffsclock"
	"github.com/mgree/ffs/internal/inode"
	"github.com/mgree/ffs/internal/tree"
	"github.com/mgree/ffs/internal/value"
)

// newTestFS builds a small document:
//
//	/ (map)
//	  greeting   = "hi"    (string)
//	  sub/ (map)
//	    inner    = "there"  (string)
//
// and mounts it behind a FileSystem with invariant checking enabled, owned
// by uid/gid 500.
func newTestFS(t *testing.T) (*FileSystem, *inode.Store) {
	t.Helper()

	doc := value.NewMap([]value.Field{
		{Name: "greeting", Value: value.NewScalar(value.String, []byte("hi"))},
		{Name: "sub", Value: value.NewMap([]value.Field{
			{Name: "inner", Value: value.NewScalar(value.String, []byte("there"))},
		})},
	})

	clock := ffsclock.NewSimulatedClock(time.Unix(1000, 0))
	store, err := tree.Load(doc, tree.Config{
		UID:      500,
		GID:      500,
		FileMode: 0o644,
		DirMode:  0o755,
		Clock:    clock,
	})
	require.NoError(t, err)
	store.EnableInvariantChecking(true)

	fs := New(Config{
		Store: store,
		UID:   500,
		GID:   500,
		Clock: clock,
	})
	return fs, store
}

func lookup(t *testing.T, fs *FileSystem, parent fuseops.InodeID, name string) *fuseops.LookUpInodeOp {
	t.Helper()
	op := &fuseops.LookUpInodeOp{Parent: parent, Name: name}
	require.NoError(t, fs.LookUpInode(context.Background(), op))
	return op
}

func TestLookupRootChildren(t *testing.T) {
	fs, _ := newTestFS(t)

	greeting := lookup(t, fs, inode.RootID, "greeting")
	assert.False(t, greeting.Entry.Attributes.Mode.IsDir())
	assert.Equal(t, uint64(2), greeting.Entry.Attributes.Size) // len("hi")

	sub := lookup(t, fs, inode.RootID, "sub")
	assert.True(t, sub.Entry.Attributes.Mode.IsDir())
}

func TestLookupMissingNameReturnsENOENT(t *testing.T) {
	fs, _ := newTestFS(t)

	op := &fuseops.LookUpInodeOp{Parent: inode.RootID, Name: "nope"}
	err := fs.LookUpInode(context.Background(), op)
	assert.Equal(t, syscall.ENOENT, err)
}

func TestLookupDotAndDotDot(t *testing.T) {
	fs, _ := newTestFS(t)

	sub := lookup(t, fs, inode.RootID, "sub")

	dot := lookup(t, fs, sub.Entry.Child, ".")
	assert.Equal(t, sub.Entry.Child, dot.Entry.Child)

	dotdot := lookup(t, fs, sub.Entry.Child, "..")
	assert.Equal(t, inode.RootID, dotdot.Entry.Child)
}

func TestGetInodeAttributesUnknownInode(t *testing.T) {
	fs, _ := newTestFS(t)

	op := &fuseops.GetInodeAttributesOp{Inode: fuseops.InodeID(999)}
	err := fs.GetInodeAttributes(context.Background(), op)
	assert.Equal(t, syscall.ENOENT, err)
}

func TestReadDirEmitsDotDotDotAndChildren(t *testing.T) {
	fs, _ := newTestFS(t)

	openOp := &fuseops.OpenDirOp{Inode: inode.RootID}
	require.NoError(t, fs.OpenDir(context.Background(), openOp))

	dst := make([]byte, 4096)
	readOp := &fuseops.ReadDirOp{Handle: openOp.Handle, Dst: dst}
	require.NoError(t, fs.ReadDir(context.Background(), readOp))
	assert.Greater(t, readOp.BytesRead, 0)

	require.NoError(t, fs.ReleaseDirHandle(context.Background(), &fuseops.ReleaseDirHandleOp{Handle: openOp.Handle}))
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	fs, _ := newTestFS(t)

	greeting := lookup(t, fs, inode.RootID, "greeting")

	writeOp := &fuseops.WriteFileOp{Inode: greeting.Entry.Child, Offset: 0, Data: []byte("hello world")}
	require.NoError(t, fs.WriteFile(context.Background(), writeOp))

	readOp := &fuseops.ReadFileOp{Inode: greeting.Entry.Child, Offset: 0, Dst: make([]byte, 64)}
	require.NoError(t, fs.ReadFile(context.Background(), readOp))
	assert.Equal(t, "hello world", string(readOp.Dst[:readOp.BytesRead]))
}

func TestWriteFileRejectedWhenReadOnly(t *testing.T) {
	fs, _ := newTestFS(t)
	fs.readOnly = true

	greeting := lookup(t, fs, inode.RootID, "greeting")
	err := fs.WriteFile(context.Background(), &fuseops.WriteFileOp{Inode: greeting.Entry.Child, Data: []byte("x")})
	assert.Equal(t, syscall.EROFS, err)
}

func TestMkDirAndCreateFile(t *testing.T) {
	fs, _ := newTestFS(t)

	mkdirOp := &fuseops.MkDirOp{Parent: inode.RootID, Name: "newdir", Mode: os.ModeDir | 0o755}
	require.NoError(t, fs.MkDir(context.Background(), mkdirOp))
	assert.True(t, mkdirOp.Entry.Attributes.Mode.IsDir())

	createOp := &fuseops.CreateFileOp{Parent: mkdirOp.Entry.Child, Name: "f", Mode: 0o644}
	require.NoError(t, fs.CreateFile(context.Background(), createOp))
	assert.False(t, createOp.Entry.Attributes.Mode.IsDir())

	// Duplicate create fails with EEXIST.
	dup := &fuseops.CreateFileOp{Parent: mkdirOp.Entry.Child, Name: "f", Mode: 0o644}
	err := fs.CreateFile(context.Background(), dup)
	assert.Equal(t, syscall.EEXIST, err)
}

func TestMkNodeRejectsUnsupportedModes(t *testing.T) {
	fs, _ := newTestFS(t)

	// mode = S_IFBLK is not representable via os.FileMode's ModeType bits
	// other than device; os.ModeDevice is the closest portable stand-in
	// for "not a plain file, not a directory".
	op := &fuseops.MkNodeOp{Parent: inode.RootID, Name: "blk", Mode: os.ModeDevice | 0o644}
	err := fs.MkNode(context.Background(), op)
	assert.Equal(t, syscall.ENOSYS, err)
}

func TestMkNodeSupportsRegularFile(t *testing.T) {
	fs, _ := newTestFS(t)

	op := &fuseops.MkNodeOp{Parent: inode.RootID, Name: "plain", Mode: 0o644}
	require.NoError(t, fs.MkNode(context.Background(), op))
	assert.False(t, op.Entry.Attributes.Mode.IsDir())
}

func TestRmDirRejectsNonEmpty(t *testing.T) {
	fs, _ := newTestFS(t)

	err := fs.RmDir(context.Background(), &fuseops.RmDirOp{Parent: inode.RootID, Name: "sub"})
	assert.Equal(t, syscall.ENOTEMPTY, err)
}

func TestUnlinkRejectsDirectory(t *testing.T) {
	fs, _ := newTestFS(t)

	err := fs.Unlink(context.Background(), &fuseops.UnlinkOp{Parent: inode.RootID, Name: "sub"})
	assert.Equal(t, syscall.EISDIR, err)
}

func TestUnlinkThenLookupReturnsENOENT(t *testing.T) {
	fs, _ := newTestFS(t)

	require.NoError(t, fs.Unlink(context.Background(), &fuseops.UnlinkOp{Parent: inode.RootID, Name: "greeting"}))

	op := &fuseops.LookUpInodeOp{Parent: inode.RootID, Name: "greeting"}
	err := fs.LookUpInode(context.Background(), op)
	assert.Equal(t, syscall.ENOENT, err)
}

func TestRenameOverNonEmptyDirReturnsENOTEMPTY(t *testing.T) {
	fs, _ := newTestFS(t)

	otherOp := &fuseops.MkDirOp{Parent: inode.RootID, Name: "other", Mode: os.ModeDir | 0o755}
	require.NoError(t, fs.MkDir(context.Background(), otherOp))
	require.NoError(t, fs.CreateFile(context.Background(), &fuseops.CreateFileOp{Parent: otherOp.Entry.Child, Name: "occupant", Mode: 0o644}))

	err := fs.Rename(context.Background(), &fuseops.RenameOp{
		OldParent: inode.RootID, OldName: "sub",
		NewParent: inode.RootID, NewName: "other",
	})
	assert.Equal(t, syscall.ENOTEMPTY, err)
}

func TestRenameDirOverRegularFileReturnsENOTDIR(t *testing.T) {
	fs, _ := newTestFS(t)

	err := fs.Rename(context.Background(), &fuseops.RenameOp{
		OldParent: inode.RootID, OldName: "sub",
		NewParent: inode.RootID, NewName: "greeting",
	})
	assert.Equal(t, syscall.ENOTDIR, err)
}

func TestRenameRegularFileOverDirReturnsEISDIR(t *testing.T) {
	fs, _ := newTestFS(t)

	err := fs.Rename(context.Background(), &fuseops.RenameOp{
		OldParent: inode.RootID, OldName: "greeting",
		NewParent: inode.RootID, NewName: "sub",
	})
	assert.Equal(t, syscall.EISDIR, err)
}

func TestRenameMovesAcrossDirectories(t *testing.T) {
	fs, _ := newTestFS(t)

	sub := lookup(t, fs, inode.RootID, "sub")

	require.NoError(t, fs.Rename(context.Background(), &fuseops.RenameOp{
		OldParent: inode.RootID, OldName: "greeting",
		NewParent: sub.Entry.Child, NewName: "moved",
	}))

	// No longer visible at the old location.
	err := fs.LookUpInode(context.Background(), &fuseops.LookUpInodeOp{Parent: inode.RootID, Name: "greeting"})
	assert.Equal(t, syscall.ENOENT, err)

	// Visible at the new location, with the same contents.
	moved := lookup(t, fs, sub.Entry.Child, "moved")
	assert.Equal(t, uint64(2), moved.Entry.Attributes.Size)
}

func TestXattrGetAndSetType(t *testing.T) {
	fs, _ := newTestFS(t)
	fs.allowXattr = true

	greeting := lookup(t, fs, inode.RootID, "greeting")

	getOp := &fuseops.GetXattrOp{Inode: greeting.Entry.Child, Name: "user.type", Dst: make([]byte, 64)}
	require.NoError(t, fs.GetXattr(context.Background(), getOp))
	assert.Equal(t, "string", string(getOp.Dst[:getOp.BytesRead]))

	setOp := &fuseops.SetXattrOp{Inode: greeting.Entry.Child, Name: "user.type", Value: []byte("integer")}
	require.NoError(t, fs.SetXattr(context.Background(), setOp))

	getOp2 := &fuseops.GetXattrOp{Inode: greeting.Entry.Child, Name: "user.type", Dst: make([]byte, 64)}
	require.NoError(t, fs.GetXattr(context.Background(), getOp2))
	assert.Equal(t, "integer", string(getOp2.Dst[:getOp2.BytesRead]))
}

func TestSetXattrUnknownNameReturnsEINVAL(t *testing.T) {
	fs, _ := newTestFS(t)
	fs.allowXattr = true

	greeting := lookup(t, fs, inode.RootID, "greeting")
	err := fs.SetXattr(context.Background(), &fuseops.SetXattrOp{
		Inode: greeting.Entry.Child, Name: "user.foo", Value: []byte("x"),
	})
	assert.Equal(t, syscall.EINVAL, err)
}

func TestRemoveXattrOfTypeReturnsEACCES(t *testing.T) {
	fs, _ := newTestFS(t)
	fs.allowXattr = true

	greeting := lookup(t, fs, inode.RootID, "greeting")
	err := fs.RemoveXattr(context.Background(), &fuseops.RemoveXattrOp{Inode: greeting.Entry.Child, Name: "user.type"})
	assert.Equal(t, syscall.EACCES, err)
}

func TestRemoveXattrOtherNameReturnsENODATA(t *testing.T) {
	fs, _ := newTestFS(t)
	fs.allowXattr = true

	greeting := lookup(t, fs, inode.RootID, "greeting")
	err := fs.RemoveXattr(context.Background(), &fuseops.RemoveXattrOp{Inode: greeting.Entry.Child, Name: "user.other"})
	assert.Equal(t, syscall.ENODATA, err)
}

func TestXattrDisabledReturnsENOSYS(t *testing.T) {
	fs, _ := newTestFS(t)
	fs.allowXattr = false

	greeting := lookup(t, fs, inode.RootID, "greeting")
	err := fs.GetXattr(context.Background(), &fuseops.GetXattrOp{Inode: greeting.Entry.Child, Name: "user.type", Dst: make([]byte, 8)})
	assert.Equal(t, syscall.ENOSYS, err)
}

func TestFallocateExtendsFile(t *testing.T) {
	fs, _ := newTestFS(t)

	greeting := lookup(t, fs, inode.RootID, "greeting")
	require.NoError(t, fs.Fallocate(context.Background(), &fuseops.FallocateOp{
		Inode: greeting.Entry.Child, Offset: 0, Length: 10,
	}))

	attrOp := &fuseops.GetInodeAttributesOp{Inode: greeting.Entry.Child}
	require.NoError(t, fs.GetInodeAttributes(context.Background(), attrOp))
	assert.Equal(t, uint64(10), attrOp.Attributes.Size)
}

func TestSyncFileUnsupported(t *testing.T) {
	fs, _ := newTestFS(t)

	greeting := lookup(t, fs, inode.RootID, "greeting")
	err := fs.SyncFile(context.Background(), &fuseops.SyncFileOp{Inode: greeting.Entry.Child})
	assert.Equal(t, syscall.ENOSYS, err)
}

func TestFlushFileInvokesSync(t *testing.T) {
	fs, _ := newTestFS(t)

	var calledWithLast *bool
	fs.sync = func(ctx context.Context, last bool) error {
		calledWithLast = &last
		return nil
	}

	greeting := lookup(t, fs, inode.RootID, "greeting")
	require.NoError(t, fs.FlushFile(context.Background(), &fuseops.FlushFileOp{Inode: greeting.Entry.Child}))
	require.NotNil(t, calledWithLast)
	assert.False(t, *calledWithLast)
}

func TestDestroyInvokesTerminalSync(t *testing.T) {
	fs, _ := newTestFS(t)

	var calledWithLast *bool
	fs.sync = func(ctx context.Context, last bool) error {
		calledWithLast = &last
		return nil
	}

	fs.Destroy()
	require.NotNil(t, calledWithLast)
	assert.True(t, *calledWithLast)
}

func TestCheckAccessRejectsOtherUIDWhenNotRoot(t *testing.T) {
	fs, _ := newTestFS(t)
	fs.uid = 12345 // not this process's uid, not root

	err := fs.checkAccess()
	if unixGetuidIsRoot() {
		// Running as root in CI/containers always passes checkAccess.
		assert.NoError(t, err)
	} else {
		assert.Equal(t, syscall.EPERM, err)
	}
}

func unixGetuidIsRoot() bool {
	return os.Getuid() == 0
}
