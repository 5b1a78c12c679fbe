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
	"github.com/mgree/ffs/internal/inode"
	"github.com/mgree/ffs/internal/value"
)

// xattrTypeName is the "user.type" value.md §4.6/§4.5 recognize: the
// scalar Typ tag for a file, or "list"/"named" for a directory's
// DirKind.
func xattrTypeName(in *inode.Inode) string {
	if in.Entry.IsDir() {
		if in.Entry.Dir.Kind == inode.List {
			return "list"
		}
		return "named"
	}
	return in.Entry.File.Typ.String()
}

const userTypeAttr = "user.type"

// copyToDst implements the shared getxattr/listxattr buffer contract:
// a zero-length Dst is a size query; a too-small non-empty Dst is
// ERANGE.
func copyToDst(dst []byte, value []byte) (int, error) {
	if len(dst) == 0 {
		return len(value), nil
	}
	if len(dst) < len(value) {
		return 0, errRange
	}
	return copy(dst, value), nil
}

// GetXattr implements spec.md §4.5's getxattr: only "user.type" is
// recognized.
func (fs *FileSystem) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) (err error) {
	defer fs.observe("GetXattr")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if !fs.allowXattr {
		return errNotSupported
	}
	if op.Name != userTypeAttr {
		return errNoAttr
	}

	in, err := fs.store.Get(op.Inode)
	if err != nil {
		return errNotFound
	}

	n, err := copyToDst(op.Dst, []byte(xattrTypeName(in)))
	if err != nil {
		return err
	}
	op.BytesRead = n
	return nil
}

// ListXattr implements spec.md §4.5's listxattr: ffs exposes exactly
// one attribute, "user.type".
func (fs *FileSystem) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) (err error) {
	defer fs.observe("ListXattr")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if !fs.allowXattr {
		return errNotSupported
	}

	if _, err := fs.store.Get(op.Inode); err != nil {
		return errNotFound
	}

	listing := append([]byte(userTypeAttr), 0)
	n, err := copyToDst(op.Dst, listing)
	if err != nil {
		return err
	}
	op.BytesRead = n
	return nil
}

// SetXattr implements spec.md §4.5's setxattr: parses the value and
// assigns it; scenario 5 requires setxattr(user.foo, …) to return
// EINVAL.
func (fs *FileSystem) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) (err error) {
	defer fs.observe("SetXattr")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if !fs.allowXattr {
		return errNotSupported
	}
	if err := fs.checkAccess(); err != nil {
		return err
	}

	if err := fs.checkWritable(); err != nil {
		return err
	}
	if op.Name != userTypeAttr {
		return errInvalid
	}

	in, err := fs.store.Get(op.Inode)
	if err != nil {
		return errNotFound
	}

	s := string(op.Value)
	if in.Entry.IsDir() {
		switch s {
		case "list":
			in.Entry.Dir.Kind = inode.List
		case "named":
			in.Entry.Dir.Kind = inode.Named
		default:
			return errInvalid
		}
	} else {
		t, ok := value.ParseTyp(s)
		if !ok {
			return errInvalid
		}
		in.Entry.File.Typ = t
	}

	fs.store.MarkDirty()
	return nil
}

// RemoveXattr implements spec.md §4.5's removexattr: removing
// "user.type" is always EACCES (scenario 5); any other name is
// ENOATTR.
func (fs *FileSystem) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) (err error) {
	defer fs.observe("RemoveXattr")(&err)

	fs.Mu.Lock()
	defer fs.Mu.Unlock()

	if !fs.allowXattr {
		return errNotSupported
	}

	if op.Name == userTypeAttr {
		return errAccess
	}
	return errNoAttr
}
