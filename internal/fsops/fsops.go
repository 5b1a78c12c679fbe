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

// Package fsops implements the Filesystem Operation Surface (spec.md
// §4.5): the kernel-visible FUSE operations, mediating permissions and
// maintaining the Inode Store's invariants.
package fsops

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/mgree/ffs/internal/ffsclock"
	"github.com/mgree/ffs/internal/inode"
	"github.com/mgree/ffs/internal/metrics"
	"github.com/mgree/ffs/internal/name"
	"golang.org/x/sys/unix"

	"github.com/jacobsa/fuse/fuseops"
)

// SyncFunc performs the document save described in spec.md §4.4's "Sync
// policy"; last is true only for the call made from Destroy. It is
// supplied by the mount command (cmd/ffs), which owns the adapter,
// output writer, and pretty/format options that fsops has no need to
// know about.
type SyncFunc func(ctx context.Context, last bool) error

// Config carries the dependencies and mount-wide settings FileSystem
// needs (spec.md §4.5, §6's shared flags).
type Config struct {
	Store *inode.Store

	UID, GID uint32

	ReadOnly   bool
	AllowXattr bool

	IsDarwin           bool
	KeepMacOSXattrFile bool

	Munge name.MungePolicy

	Clock ffsclock.Clock

	Sync SyncFunc

	Logger *slog.Logger

	// Metrics records per-op counts, errors, and latency (internal/metrics).
	// Defaults to a no-op handle when unset, so mounts started without
	// --metrics-addr pay no bookkeeping cost.
	Metrics metrics.Handle
}

// FileSystem implements fuseutil.FileSystem (spec.md §4.5) against an
// inode.Store. Callbacks are dispatched single-threaded and
// cooperatively by the FUSE transport (spec.md §5); Mu exists purely to
// re-verify store invariants on every call, not for mutual exclusion.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	store *inode.Store

	uid, gid uint32

	readOnly   bool
	allowXattr bool

	isDarwin           bool
	keepMacOSXattrFile bool

	munge name.MungePolicy

	clock ffsclock.Clock

	sync SyncFunc

	// sessionID identifies this mount instance in every log line it
	// emits, the same role request/session ids play in the teacher's
	// request-scoped logging.
	sessionID uuid.UUID

	log *slog.Logger

	metrics metrics.Handle

	// Mu re-checks the store's invariants on every lock/unlock, the same
	// InvariantMutex pattern the teacher's fileSystem.mu uses.
	Mu syncutil.InvariantMutex

	// handles tracks open directory handles (OpenDir/ReadDir/
	// ReleaseDirHandle); file handles need no tracked state because file
	// content lives directly on the inode.
	handles      map[fuseops.HandleID]*dirHandle
	nextHandleID fuseops.HandleID
}

// New constructs a FileSystem ready to be wrapped by
// fuseutil.NewFileSystemServer.
func New(cfg Config) *FileSystem {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop
	}

	sessionID := uuid.New()

	fs := &FileSystem{
		store:              cfg.Store,
		uid:                cfg.UID,
		gid:                cfg.GID,
		readOnly:           cfg.ReadOnly,
		allowXattr:         cfg.AllowXattr,
		isDarwin:           cfg.IsDarwin,
		keepMacOSXattrFile: cfg.KeepMacOSXattrFile,
		munge:              cfg.Munge,
		clock:              cfg.Clock,
		sync:               cfg.Sync,
		sessionID:          sessionID,
		log:                cfg.Logger.With("session_id", sessionID.String()),
		metrics:            cfg.Metrics,
		handles:            make(map[fuseops.HandleID]*dirHandle),
	}
	fs.Mu = syncutil.NewInvariantMutex(fs.checkInvariants)
	return fs
}

// observe records an op's count on entry and, via the returned closure,
// its latency and (if any) its error category on exit. Called as:
//
//	func (fs *FileSystem) Foo(ctx context.Context, op *fuseops.FooOp) (err error) {
//	    defer fs.observe("Foo")(&err)
//	    ...
//	}
func (fs *FileSystem) observe(op string) func(*error) {
	start := fs.clock.Now()
	fs.metrics.OpsCount(op)
	return func(errp *error) {
		fs.metrics.OpsLatency(op, fs.clock.Now().Sub(start))
		if errp != nil && *errp != nil {
			fs.metrics.OpsErrorCount(op, errorCategory(*errp))
		}
	}
}

func (fs *FileSystem) checkInvariants() {
	fs.store.Mu.Lock()
	fs.store.Mu.Unlock()
}

// checkAccess implements spec.md §4.5's check_access: "passes iff
// caller uid is 0 or equals the mount's configured uid." jacobsa/fuse
// does not thread the kernel-reported caller uid through to each op (a
// mount without allow_other is only reachable by its owning process in
// the first place), so the practical caller identity is the mounting
// process's own uid, which is what we compare against.
func (fs *FileSystem) checkAccess() error {
	callerUID := uint32(unix.Getuid())
	if callerUID == 0 || callerUID == fs.uid {
		return nil
	}
	return errPermission
}

// checkWritable rejects mutating ops when the mount was opened
// --readonly (spec.md §6).
func (fs *FileSystem) checkWritable() error {
	if fs.readOnly {
		return errReadOnly
	}
	return nil
}

// StatFS reports a synthetic filesystem summary; ffs has no notion of
// free space or inode limits beyond the in-memory store, so the reply
// advertises a single, always-available block and the number of inode
// slots (store.Len, which also counts slot 0 and unlinked slots) (spec.md §4.5 lists statfs as a supported op but prescribes no
// specific field semantics).
func (fs *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) (err error) {
	defer fs.observe("StatFS")(&err)

	op.BlockSize = 4096
	op.Blocks = 1
	op.BlocksFree = 1
	op.BlocksAvailable = 1
	op.IoSize = 4096
	op.Inodes = uint64(fs.store.Len())
	op.InodesFree = 0
	return nil
}

// Destroy triggers the terminal save (spec.md §4.4 "destroy triggers a
// save (last_sync = true)"). The interface gives Destroy no way to
// return an error, so a failing sync is logged instead.
func (fs *FileSystem) Destroy() {
	fs.metrics.OpsCount("Destroy")
	if fs.sync == nil {
		return
	}
	if err := fs.sync(context.Background(), true); err != nil {
		fs.log.Error("sync on destroy failed", "error", err)
	}
}
