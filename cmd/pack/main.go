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

// Command pack captures a real directory tree into a JSON, TOML, or YAML
// document (spec.md §4.7, §6).
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgree/ffs/cfg"
	"github.com/mgree/ffs/cmd"
	"github.com/mgree/ffs/internal/docfmt"
	"github.com/mgree/ffs/internal/logger"
	"github.com/mgree/ffs/internal/pack"
	"github.com/mgree/ffs/internal/value"
)

var cfgFile string

func rootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "pack [flags] DIR",
		Short: "Pack a directory into a JSON, TOML, or YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runPack(args[0])
		},
	}
	c.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	if err := cfg.BindPackFlags(c.Flags()); err != nil {
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

func runPack(dir string) error {
	var pc cfg.PackConfig
	if err := cmd.LoadConfig(cfgFile, &pc); err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	pc.Dir = dir

	if err := logger.InitLogFile(cfg.LoggingConfig{
		FilePath:  pc.Logging.FilePath,
		Severity:  cmd.Severity(pc.Quiet, pc.Debug),
		Format:    pc.Logging.Format,
		LogRotate: pc.Logging.LogRotate,
	}); err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	start := time.Now()
	if pc.Time {
		defer func() {
			fmt.Fprintf(os.Stderr, "pack: %s elapsed\n", time.Since(start))
		}()
	}

	targetFormat, err := value.ParseFormat(string(pc.Source))
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	if pc.Target != "" {
		if targetFormat, err = value.ParseFormat(string(pc.Target)); err != nil {
			return exitError{cmd.ExitCLI, err}
		}
	}
	targetAdapter, err := docfmt.AdapterFor(targetFormat)
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	symlink := pack.NoFollow
	if pc.FollowSymlinks {
		symlink = pack.Follow
	}

	p := pack.New(pack.Config{
		Symlink:            symlink,
		MaxDepth:           pc.MaxDepth,
		AllowSymlinkEscape: pc.AllowSymlinkEscape,
		AllowXattr:         !pc.NoXattr,
		KeepMacOSXattrFile: pc.KeepMacOSXattr,
		IsDarwin:           runtime.GOOS == "darwin",
		AddNewlines:        !pc.Exact,
	})

	doc, err := p.Pack(pc.Dir)
	if err != nil {
		return exitError{cmd.ExitRuntime, err}
	}

	if pc.NoOutput {
		return nil
	}

	w, closeFn, err := openOutput(pc.Output)
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	defer closeFn()

	opts := value.Options{Pretty: pc.Pretty, AddNewlines: !pc.Exact}
	if err := targetAdapter.Serialize(w, doc, opts); err != nil {
		return exitError{cmd.ExitRuntime, fmt.Errorf("pack: serializing output: %w", err)}
	}

	return nil
}

// openOutput opens the document output destination: an explicit --output
// path, or stdout when unset, matching spec.md §6's pack output rules
// (pack has no --in-place/--new, unlike ffs's mount).
func openOutput(output string) (io.Writer, func() error, error) {
	if output == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("pack: opening output %s: %w", output, err)
	}
	return f, f.Close, nil
}
