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

// Command unpack materializes a JSON, TOML, or YAML document onto a real
// directory tree (spec.md §4.6, §6).
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgree/ffs/cfg"
	"github.com/mgree/ffs/cmd"
	"github.com/mgree/ffs/internal/docfmt"
	"github.com/mgree/ffs/internal/logger"
	"github.com/mgree/ffs/internal/name"
	"github.com/mgree/ffs/internal/unpack"
	"github.com/mgree/ffs/internal/value"
)

var cfgFile string

func rootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "unpack [flags] [INPUT]",
		Short: "Unpack a JSON, TOML, or YAML document into a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return runUnpack(input)
		},
	}
	c.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	if err := cfg.BindUnpackFlags(c.Flags()); err != nil {
		panic(err)
	}
	return c
}

func main() {
	c := rootCmd()
	if err := c.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitErr, ok := err.(exitError); ok {
			os.Exit(exitErr.code)
		}
		os.Exit(cmd.ExitCLI)
	}
}

// exitError carries a specific process exit code (spec.md §7) through
// cobra's plain error-returning RunE.
type exitError struct {
	code int
	error
}

func runUnpack(input string) error {
	var uc cfg.UnpackConfig
	if err := cmd.LoadConfig(cfgFile, &uc); err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	uc.Input = input

	if err := logger.InitLogFile(cfg.LoggingConfig{
		FilePath:  uc.Logging.FilePath,
		Severity:  cmd.Severity(uc.Quiet, uc.Debug),
		Format:    uc.Logging.Format,
		LogRotate: uc.Logging.LogRotate,
	}); err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	start := time.Now()
	if uc.Time {
		defer func() {
			fmt.Fprintf(os.Stderr, "unpack: %s elapsed\n", time.Since(start))
		}()
	}

	sourceFormat, err := value.ParseFormat(string(uc.Source))
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	sourceAdapter, err := docfmt.AdapterFor(sourceFormat)
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	r, closeFn, err := openInput(uc.Input)
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	doc, err := sourceAdapter.Parse(r)
	closeFn()
	if err != nil {
		return exitError{cmd.ExitCLI, fmt.Errorf("unpack: parsing %s: %w", uc.Input, err)}
	}

	into, err := resolveInto(uc.Into, uc.Input)
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	dirMode := uc.DirMode
	if dirMode == 0 {
		dirMode = cfg.DeriveDirMode(uc.FileMode)
	}

	mungePolicy := name.Rename
	if uc.Munge == cfg.MungeFilter {
		mungePolicy = name.Filter
	}

	err = unpack.Unpack(doc, into, unpack.Config{
		AllowXattr: !uc.NoXattr,
		Padded:     !uc.Unpadded,
		Munge:      mungePolicy,
		FileMode:   os.FileMode(uc.FileMode),
		DirMode:    os.FileMode(dirMode),
	})
	if err != nil {
		return exitError{cmd.ExitRuntime, err}
	}

	return nil
}

// openInput opens input for reading: "-" (or "") means stdin, which the
// caller must not close.
func openInput(input string) (io.Reader, func(), error) {
	if input == "" || input == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack: opening %s: %w", input, err)
	}
	return f, func() { f.Close() }, nil
}

// resolveInto implements spec.md §6's --into inference: an explicit --into
// wins; otherwise a directory is created from the input's basename (without
// extension). Per SPEC_FULL.md §3's root-directory special case, a
// pre-existing empty directory at that path is reused rather than treated
// as an error; a pre-existing non-empty directory is a CLI error. Reading
// from stdin without --into is also a CLI error, since there is no
// filename to infer from.
func resolveInto(into, input string) (string, error) {
	if into == "" {
		if input == "" || input == "-" {
			return "", fmt.Errorf("unpack: --into is required when reading from stdin")
		}
		base := filepath.Base(input)
		base = base[:len(base)-len(filepath.Ext(base))]
		into = filepath.Join(filepath.Dir(input), base)
	}

	if err := os.Mkdir(into, 0o755); err != nil {
		if !os.IsExist(err) {
			return "", fmt.Errorf("unpack: creating directory %s: %w", into, err)
		}
		entries, derr := os.ReadDir(into)
		if derr != nil {
			return "", fmt.Errorf("unpack: reading directory %s: %w", into, derr)
		}
		if len(entries) > 0 {
			return "", fmt.Errorf("unpack: directory %s already exists and is not empty", into)
		}
	}

	return filepath.Abs(into)
}
