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

// Package cfg binds the flags spec.md §6 describes for ffs's three
// binaries to a viper-backed configuration struct, following the
// teacher's BindFlags/mapstructure-decode-hook pattern.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LoggingConfig controls internal/logger (an ambient concern spec.md §1
// places out of scope for the core, but every ffs binary still needs one).
type LoggingConfig struct {
	FilePath ResolvedPath `yaml:"file-path"`
	Severity LogSeverity  `yaml:"severity"`
	Format   string       `yaml:"format"`

	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

// LogRotateConfig mirrors lumberjack.Logger's knobs, grounded on the
// teacher's own LogRotateLoggingConfig.
type LogRotateConfig struct {
	MaxFileSizeMB   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateConfig{
			MaxFileSizeMB:   512,
			BackupFileCount: 10,
			Compress:        true,
		},
	}
}

// Shared holds the flags common to all three binaries (spec.md §6:
// "same shared flags").
type Shared struct {
	Source Format `yaml:"source"`
	Target Format `yaml:"target"`

	Pretty bool `yaml:"pretty"`

	UID Octal `yaml:"uid"`
	GID Octal `yaml:"gid"`

	FileMode Octal `yaml:"file-mode"`
	DirMode  Octal `yaml:"dir-mode"`

	NoXattr        bool        `yaml:"no-xattr"`
	KeepMacOSXattr bool        `yaml:"keep-macos-xattr"`
	Munge          MungePolicy `yaml:"munge"`
	Exact          bool        `yaml:"exact"`
	Unpadded       bool        `yaml:"unpadded"`

	Quiet bool `yaml:"quiet"`
	Debug bool `yaml:"debug"`
	Time  bool `yaml:"time"`

	// ExitOnInvariantViolation turns an inode.Store invariant violation
	// into a logged os.Exit(1) instead of a panic, for production mounts
	// that would rather restart cleanly than crash with a stack trace.
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	Output   string `yaml:"output"`
	NoOutput bool   `yaml:"no-output"`

	Logging LoggingConfig `yaml:"logging"`
}

// MountConfig is ffs (mount)'s full configuration.
type MountConfig struct {
	Shared `yaml:",inline"`

	Input string `yaml:"input"`

	New     string `yaml:"new"`
	Mount   string `yaml:"mount"`
	InPlace bool   `yaml:"in-place"`
	ReadOnly bool  `yaml:"readonly"`
	Eager    bool  `yaml:"eager"`

	Completions string `yaml:"completions"`

	MetricsAddr string `yaml:"metrics-addr"`
}

// UnpackConfig is unpack's full configuration.
type UnpackConfig struct {
	Shared `yaml:",inline"`

	Input string `yaml:"input"`
	Into  string `yaml:"into"`
}

// PackConfig is pack's full configuration.
type PackConfig struct {
	Shared `yaml:",inline"`

	Dir string `yaml:"dir"`

	FollowSymlinks     bool `yaml:"follow-symlinks"`
	MaxDepth           int  `yaml:"max-depth"`
	AllowSymlinkEscape bool `yaml:"allow-symlink-escape"`
}

// BindSharedFlags registers the flags common to all three binaries.
func BindSharedFlags(flags *pflag.FlagSet) error {
	flags.StringP("source", "s", "json", "input document format: json, toml, or yaml")
	flags.StringP("target", "t", "", "output document format (defaults to --source)")
	flags.Bool("pretty", false, "pretty-print output where the format supports it")
	flags.Uint32P("uid", "u", uint32(currentUID()), "owning uid for mounted/unpacked nodes")
	flags.Uint32P("gid", "g", uint32(currentGID()), "owning gid for mounted/unpacked nodes")
	flags.String("mode", "644", "octal file permission for regular files")
	flags.String("dirmode", "", "octal permission for directories (default: --mode with read implies execute)")
	flags.Bool("no-xattr", false, "disable the user.type extended attribute")
	flags.Bool("keep-macos-xattr", false, "do not ignore macOS \"._*\" xattr sidecar files")
	flags.String("munge", "rename", "policy for invalid map keys: filter or rename")
	flags.Bool("exact", false, "disable automatic trailing-newline add/strip")
	flags.Bool("unpadded", false, "do not zero-pad list element names")
	flags.BoolP("quiet", "q", false, "suppress non-error output")
	flags.BoolP("debug", "d", false, "enable debug logging")
	flags.Bool("time", false, "log elapsed wall-clock time on exit")
	flags.Bool("exit-on-invariant-violation", false, "exit instead of panicking on an internal invariant violation")
	flags.StringP("output", "o", "", "output file path (defaults to stdout)")
	flags.Bool("no-output", false, "do not write any output document")

	for _, name := range []string{
		"source", "target", "pretty", "uid", "gid", "mode", "dirmode",
		"no-xattr", "keep-macos-xattr", "munge", "exact", "unpadded",
		"quiet", "debug", "time", "exit-on-invariant-violation", "output", "no-output",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// BindMountFlags registers ffs (mount)'s flags, in addition to the shared
// set.
func BindMountFlags(flags *pflag.FlagSet) error {
	if err := BindSharedFlags(flags); err != nil {
		return err
	}

	flags.String("new", "", "create an empty document of the inferred format instead of reading INPUT")
	flags.StringP("mount", "m", "", "mount point directory (created and removed if inferred)")
	flags.BoolP("in-place", "i", false, "write output back to the input file")
	flags.Bool("readonly", false, "reject all mutating filesystem operations")
	flags.Bool("eager", false, "materialize the whole tree eagerly at mount time (ffs always does; flag kept for CLI compatibility)")
	flags.String("completions", "", "print shell completion script for the given shell and exit")
	flags.String("metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")

	for _, name := range []string{"new", "mount", "in-place", "readonly", "eager", "completions", "metrics-addr"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// BindUnpackFlags registers unpack's flags, in addition to the shared set.
func BindUnpackFlags(flags *pflag.FlagSet) error {
	if err := BindSharedFlags(flags); err != nil {
		return err
	}

	flags.StringP("into", "i", "", "destination directory (defaults to INPUT's basename without extension)")
	return viper.BindPFlag("into", flags.Lookup("into"))
}

// BindPackFlags registers pack's flags, in addition to the shared set.
func BindPackFlags(flags *pflag.FlagSet) error {
	if err := BindSharedFlags(flags); err != nil {
		return err
	}

	flags.BoolP("follow-symlinks", "L", false, "follow symlinks while walking the source directory")
	flags.BoolP("no-follow-symlinks", "P", true, "do not follow symlinks (default)")
	flags.Int("max-depth", -1, "maximum directory recursion depth (-1: unlimited)")
	flags.Bool("allow-symlink-escape", false, "allow a followed symlink to resolve outside the packed root")

	for _, name := range []string{"follow-symlinks", "max-depth", "allow-symlink-escape"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// DeriveDirMode implements spec.md §6's "--dirmode unset but --mode set"
// rule: each permission group (owner/group/other) that has the read bit
// also gets the execute bit, since a directory without +x cannot be
// traversed.
func DeriveDirMode(fileMode Octal) Octal {
	var dirMode Octal
	for _, shift := range []uint{6, 3, 0} {
		group := (fileMode >> shift) & 0o7
		if group&0o4 != 0 {
			group |= 0o1
		}
		dirMode |= group << shift
	}
	return dirMode
}
