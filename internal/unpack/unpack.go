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

// Package unpack implements the offline `unpack` walk of spec.md §4.6: a
// breadth-first materialization of a parsed value.Value onto a real
// directory tree, the reverse of what internal/pack captures.
package unpack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/xattr"

	"github.com/mgree/ffs/internal/name"
	"github.com/mgree/ffs/internal/value"
)

// userTypeAttr and userOriginalNameAttr are the two xattr keys unpack and
// pack round-trip (spec.md §6 "Persisted state").
const (
	userTypeAttr         = "user.type"
	userOriginalNameAttr = "user.original_name"
)

// Config holds unpack's knobs, mirroring the shared flags of spec.md §6
// that apply to offline materialization.
type Config struct {
	AllowXattr bool
	Padded     bool
	Munge      name.MungePolicy

	FileMode os.FileMode
	DirMode  os.FileMode
}

type workItem struct {
	v            value.Value
	path         string
	originalName string
	hasOriginal  bool
}

// Unpack writes v onto the directory tree rooted at rootPath, which must
// already exist (its creation, or reuse of an existing empty directory, is
// the caller's responsibility per spec.md §4.6's "root directory is not
// re-created" rule and SPEC_FULL.md §3's root-is-mount-directory special
// case). v's root must be a List or Map; a bare scalar root is a fatal
// error.
func Unpack(v value.Value, rootPath string, cfg Config) error {
	if v.IsScalar() {
		return fmt.Errorf("unpack: root of document must be a directory, not a file")
	}

	queue := []workItem{{v: v, path: rootPath}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		children, err := unpackOne(item, rootPath, cfg)
		if err != nil {
			return err
		}
		queue = append(queue, children...)

		if cfg.AllowXattr && item.hasOriginal {
			if err := xattr.Set(item.path, userOriginalNameAttr, []byte(item.originalName)); err != nil {
				return fmt.Errorf("unpack: setting %s on %s: %w", userOriginalNameAttr, item.path, err)
			}
		}
	}

	return nil
}

func unpackOne(item workItem, rootPath string, cfg Config) ([]workItem, error) {
	switch item.v.Kind() {
	case value.KindScalar:
		return nil, unpackScalar(item, cfg)
	case value.KindList:
		return unpackList(item, rootPath, cfg)
	case value.KindMap:
		return unpackMap(item, rootPath, cfg)
	default:
		return nil, fmt.Errorf("unpack: unknown value kind at %s", item.path)
	}
}

func unpackScalar(item workItem, cfg Config) error {
	t, b := item.v.Scalar()

	f, err := os.OpenFile(item.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, cfg.FileMode)
	if err != nil {
		return fmt.Errorf("unpack: creating %s: %w", item.path, err)
	}
	_, werr := f.Write(b)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("unpack: writing %s: %w", item.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("unpack: closing %s: %w", item.path, cerr)
	}

	if cfg.AllowXattr {
		if err := xattr.Set(item.path, userTypeAttr, []byte(t.String())); err != nil {
			return fmt.Errorf("unpack: setting %s on %s: %w", userTypeAttr, item.path, err)
		}
	}
	return nil
}

func unpackList(item workItem, rootPath string, cfg Config) ([]workItem, error) {
	if err := ensureDir(item.path, rootPath, cfg.DirMode); err != nil {
		return nil, err
	}
	if cfg.AllowXattr {
		if err := xattr.Set(item.path, userTypeAttr, []byte("list")); err != nil {
			return nil, fmt.Errorf("unpack: setting %s on %s: %w", userTypeAttr, item.path, err)
		}
	}

	elems := item.v.List()
	n := len(elems)
	children := make([]workItem, 0, n)
	for i, child := range elems {
		onDisk := name.PadName(i, n, cfg.Padded)
		children = append(children, workItem{v: child, path: filepath.Join(item.path, onDisk)})
	}
	return children, nil
}

func unpackMap(item workItem, rootPath string, cfg Config) ([]workItem, error) {
	if err := ensureDir(item.path, rootPath, cfg.DirMode); err != nil {
		return nil, err
	}
	if cfg.AllowXattr {
		if err := xattr.Set(item.path, userTypeAttr, []byte("named")); err != nil {
			return nil, fmt.Errorf("unpack: setting %s on %s: %w", userTypeAttr, item.path, err)
		}
	}

	taken := make(map[string]bool)
	var children []workItem
	for _, field := range item.v.Fields() {
		onDisk, ok := name.Munge(cfg.Munge, field.Name, func(cand string) bool { return taken[cand] })
		if !ok {
			continue // Filter policy: drop the entry
		}
		taken[onDisk] = true

		w := workItem{v: field.Value, path: filepath.Join(item.path, onDisk)}
		if onDisk != field.Name {
			w.originalName = field.Name
			w.hasOriginal = true
		}
		children = append(children, w)
	}
	return children, nil
}

// ensureDir creates path as a directory unless it is rootPath, which the
// caller already guarantees exists (spec.md §4.6).
func ensureDir(path, rootPath string, mode os.FileMode) error {
	if path == rootPath {
		return nil
	}
	if err := os.Mkdir(path, mode); err != nil {
		return fmt.Errorf("unpack: creating directory %s: %w", path, err)
	}
	return nil
}
