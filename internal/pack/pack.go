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

// Package pack implements the offline `pack` walk of spec.md §4.7: a
// depth-first capture of a real directory tree into a value.Value, the
// reverse of what internal/unpack materializes.
package pack

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/xattr"

	"github.com/mgree/ffs/internal/name"
	"github.com/mgree/ffs/internal/value"
)

const (
	userTypeAttr         = "user.type"
	userOriginalNameAttr = "user.original_name"
)

// Symlink selects how pack treats symbolic links it encounters while
// walking the source directory (spec.md §4.7).
type Symlink int

const (
	NoFollow Symlink = iota
	Follow
)

// Config holds pack's knobs, mirroring spec.md §6's pack-specific and
// shared flags.
type Config struct {
	Symlink            Symlink
	MaxDepth           int // -1: unlimited
	AllowSymlinkEscape bool

	AllowXattr         bool
	KeepMacOSXattrFile bool
	IsDarwin           bool

	AddNewlines bool
}

// symlinkState records, for one symlink encountered along a Follow chain,
// its target and whether the chain is now known to be broken. Mirrors the
// Rust original's SymlinkMapData, memoized across the whole walk so a
// symlink visited from two different directories is only resolved once.
type symlinkState struct {
	target string
	broken bool
}

// Packer carries the state shared across one pack walk: the memoized
// symlink chain table and the canonicalized root (used for the
// allow-symlink-escape check).
type Packer struct {
	cfg      Config
	root     string
	symlinks map[string]*symlinkState
}

func New(cfg Config) *Packer {
	return &Packer{
		cfg:      cfg,
		symlinks: make(map[string]*symlinkState),
	}
}

// Pack captures the directory (or file) at rootPath into a value.Value.
// rootPath need not already be canonical; Pack canonicalizes it once to
// use as the escape-check boundary for followed symlinks.
func (p *Packer) Pack(rootPath string) (value.Value, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return value.Value{}, fmt.Errorf("pack: resolving %s: %w", rootPath, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	p.root = root

	v, ok, err := p.pack(root, 0)
	if err != nil {
		return value.Value{}, err
	}
	if !ok {
		return value.Value{}, fmt.Errorf("pack: %s was excluded by its own symlink/depth policy", rootPath)
	}
	return v, nil
}

// pack captures one path. ok is false when the entry should be silently
// dropped from its parent container (an ignored symlink, a depth cutoff,
// or a deliberately skipped broken/escaping link) rather than an error.
func (p *Packer) pack(path string, depth int) (v value.Value, ok bool, err error) {
	if p.cfg.MaxDepth >= 0 && depth > p.cfg.MaxDepth {
		return value.Value{}, false, nil
	}

	effective := path
	var pathType []byte

	isSymlink, err := isSymlink(path)
	if err != nil {
		return value.Value{}, false, fmt.Errorf("pack: statting %s: %w", path, err)
	}
	if isSymlink {
		if p.cfg.Symlink == NoFollow {
			return value.Value{}, false, nil
		}
		resolved, t, skip, err := p.resolveSymlink(path)
		if err != nil {
			return value.Value{}, false, err
		}
		if skip {
			return value.Value{}, false, nil
		}
		effective = resolved
		pathType = t
	}

	if pathType == nil {
		pathType = p.readType(effective)
	}
	typ := string(pathType)

	isDir, err := isDirectory(effective)
	if err != nil {
		return value.Value{}, false, fmt.Errorf("pack: statting %s: %w", effective, err)
	}

	if isDir && (typ == "auto" || (typ != "named" && typ != "list")) {
		inferred, err := inferDirType(effective)
		if err != nil {
			return value.Value{}, false, err
		}
		typ = inferred
	}

	switch {
	case typ == "named":
		return p.packNamedDir(effective, depth)
	case typ == "list":
		return p.packListDir(effective, depth)
	default:
		return p.packLeaf(effective, typ)
	}
}

// readType reads the user.type xattr of a real (non-symlink) path, falling
// back per spec.md §4.7: unset -> "auto"; unreadable (e.g. a macOS "._*"
// sidecar whose own xattr call fails) -> "bytes", with a warning.
func (p *Packer) readType(path string) []byte {
	if !p.cfg.AllowXattr {
		return []byte("auto")
	}
	v, err := xattr.Get(path, userTypeAttr)
	switch {
	case err == nil:
		return v
	case xattr.IsNotExist(err):
		return []byte("auto")
	default:
		fmt.Fprintf(os.Stderr, "pack: %s prevents xattr calls, encoding as bytes\n", path)
		return []byte("bytes")
	}
}

// resolveSymlink walks a Follow chain starting at path, memoizing each hop
// in p.symlinks. It returns the real target path and the first user.type
// xattr found along the chain (nil if none), or skip=true if the chain
// should be silently dropped (broken link, or escapes the packed root).
func (p *Packer) resolveSymlink(path string) (target string, pathType []byte, skip bool, err error) {
	var chain []string
	follower := path

	for {
		isLink, err := isSymlink(follower)
		if err != nil {
			return "", nil, false, fmt.Errorf("pack: statting %s: %w", follower, err)
		}
		if !isLink {
			break
		}
		if slices.Contains(chain, follower) {
			return "", nil, false, fmt.Errorf("pack: symlink loop detected at %s", follower)
		}
		chain = append(chain, follower)

		if pathType == nil && p.cfg.AllowXattr {
			if v, err := xattr.Get(follower, userTypeAttr); err == nil {
				pathType = v
			}
		}

		state, ok := p.symlinks[follower]
		if !ok {
			link, err := os.Readlink(follower)
			if err != nil {
				return "", nil, false, fmt.Errorf("pack: reading link %s: %w", follower, err)
			}
			if !filepath.IsAbs(link) {
				link = filepath.Join(filepath.Dir(follower), link)
			}
			state = &symlinkState{target: link}
			p.symlinks[follower] = state
		}
		if state.broken {
			break
		}
		follower = state.target
	}

	last := chain[len(chain)-1]
	if p.symlinks[last].broken || !exists(follower) {
		fmt.Fprintf(os.Stderr, "pack: the symlink chain starting from %s is broken\n", path)
		for _, link := range chain {
			p.symlinks[link].broken = true
		}
		return "", nil, true, nil
	}

	canonical, err := filepath.EvalSymlinks(follower)
	if err != nil {
		return "", nil, false, fmt.Errorf("pack: resolving %s: %w", follower, err)
	}

	if strings.HasPrefix(path+string(filepath.Separator), canonical+string(filepath.Separator)) || path == canonical {
		return "", nil, false, fmt.Errorf("pack: symlink %s points to an ancestor directory %s, causing an infinite loop", path, canonical)
	}

	if !p.cfg.AllowSymlinkEscape && !withinRoot(canonical, p.root) {
		fmt.Fprintf(os.Stderr, "pack: symlink %s points outside the packed root; use --allow-symlink-escape\n", path)
		return "", nil, true, nil
	}

	return canonical, pathType, false, nil
}

func withinRoot(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

func inferDirType(path string) (string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("pack: reading directory %s: %w", path, err)
	}
	// An empty directory vacuously satisfies "every child begins with a
	// digit", matching the Rust original's Iterator::all on an empty
	// iterator: an empty directory infers as "list".
	for _, e := range entries {
		if !beginsWithOptionalSignDigit(e.Name()) {
			return "named", nil
		}
	}
	return "list", nil
}

func beginsWithOptionalSignDigit(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		return len(s) > 1 && s[1] >= '0' && s[1] <= '9'
	}
	return s[0] >= '0' && s[0] <= '9'
}

// leadingInt extracts the leading signed integer of s (matching the Rust
// original's `^-?[0-9]+` regex), or math.MaxInt32 if s has none -- the
// default that pushes un-prefixed names to the end of a list directory.
func leadingInt(s string) int {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return math.MaxInt32
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return math.MaxInt32
	}
	return n
}

func (p *Packer) packNamedDir(path string, depth int) (value.Value, bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return value.Value{}, false, fmt.Errorf("pack: reading directory %s: %w", path, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)

	var fields []value.Field
	for _, childName := range names {
		if name.Ignored(childName, p.cfg.IsDarwin, p.cfg.KeepMacOSXattrFile) {
			continue
		}
		childPath := filepath.Join(path, childName)

		fieldName := childName
		if p.cfg.AllowXattr {
			if orig, err := xattr.Get(childPath, userOriginalNameAttr); err == nil {
				if !name.Valid(string(orig)) {
					fieldName = string(orig)
				}
			}
		}

		v, ok, err := p.pack(childPath, depth+1)
		if err != nil {
			return value.Value{}, false, fmt.Errorf("pack: %s: %w", fieldName, err)
		}
		if ok {
			fields = append(fields, value.Field{Name: fieldName, Value: v})
		}
	}

	return value.NewMap(fields), true, nil
}

type listChild struct {
	key  int
	name string
	path string
}

func (p *Packer) packListDir(path string, depth int) (value.Value, bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return value.Value{}, false, fmt.Errorf("pack: reading directory %s: %w", path, err)
	}

	children := make([]listChild, 0, len(entries))
	for _, e := range entries {
		children = append(children, listChild{
			key:  leadingInt(e.Name()),
			name: e.Name(),
			path: filepath.Join(path, e.Name()),
		})
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].key != children[j].key {
			return children[i].key < children[j].key
		}
		return children[i].name < children[j].name
	})

	var elems []value.Value
	for _, c := range children {
		if name.Ignored(c.name, p.cfg.IsDarwin, p.cfg.KeepMacOSXattrFile) {
			continue
		}
		v, ok, err := p.pack(c.path, depth+1)
		if err != nil {
			return value.Value{}, false, err
		}
		if ok {
			elems = append(elems, v)
		}
	}

	return value.NewList(elems), true, nil
}

func (p *Packer) packLeaf(path, typ string) (value.Value, bool, error) {
	t, ok := value.ParseTyp(typ)
	if !ok {
		return value.Value{}, false, fmt.Errorf("pack: %s has unrecognized type %q", path, typ)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return value.Value{}, false, fmt.Errorf("pack: reading %s: %w", path, err)
	}

	if t != value.Bytes && utf8.Valid(contents) {
		text := string(contents)
		if p.cfg.AddNewlines && strings.HasSuffix(text, "\n") {
			text = text[:len(text)-1]
		}
		// t is Auto whenever there's no user.type xattr (or xattr is
		// disabled); InterpretText resolves that the same way
		// tree.saveFile's adapter.InterpretLeaf call does, rather than
		// letting an Auto-tagged scalar reach the serializer untouched.
		return value.InterpretText(t, text), true, nil
	}
	return value.NewScalar(value.Bytes, contents), true, nil
}

func isSymlink(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return fi.Mode()&os.ModeSymlink != 0, nil
}

func isDirectory(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

