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
	"errors"
	"syscall"
)

// Errno aliases used to translate filesystem-op errors per spec.md §7.
// jacobsa/fuse accepts any error satisfying syscall.Errno's interface
// and maps it to the corresponding FUSE reply, the same convention
// gcsfuse's own wrappers rely on for ENODATA (internal/fs/wrappers).
const (
	errNotFound    = syscall.ENOENT
	errNotDir      = syscall.ENOTDIR
	errIsDir       = syscall.EISDIR
	errExists      = syscall.EEXIST
	errNotEmpty    = syscall.ENOTEMPTY
	errPermission  = syscall.EPERM
	errAccess      = syscall.EACCES
	errInvalid     = syscall.EINVAL
	errRange       = syscall.ERANGE
	errNoAttr      = syscall.ENODATA // macOS ENOATTR; Linux has no such symbol, ENODATA is its xattr-absent equivalent
	errNotSupported = syscall.ENOSYS
	errNoSpace     = syscall.ENOSPC
	errReadOnly    = syscall.EROFS
)

// errorCategory reduces a returned error to the label internal/metrics
// groups it under (common/otel_metrics.go's FSErrCategoryKey groups
// gcsfuse's errors the same way, to keep the error-count series'
// cardinality bounded).
func errorCategory(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno.Error()
	}
	return "other"
}
