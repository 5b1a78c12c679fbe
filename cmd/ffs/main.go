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

// Command ffs mounts a JSON, TOML, or YAML document as a FUSE filesystem
// (spec.md §4, §6).
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mgree/ffs/cfg"
	"github.com/mgree/ffs/cmd"
	"github.com/mgree/ffs/internal/docfmt"
	"github.com/mgree/ffs/internal/ffsclock"
	"github.com/mgree/ffs/internal/fsops"
	"github.com/mgree/ffs/internal/inode"
	"github.com/mgree/ffs/internal/logger"
	"github.com/mgree/ffs/internal/metrics"
	"github.com/mgree/ffs/internal/name"
	"github.com/mgree/ffs/internal/tree"
	"github.com/mgree/ffs/internal/value"
)

// ffsInBackgroundEnv marks a re-exec'd child as already daemonized, the
// same signal cmd/mount.go's legacy path uses to avoid forking twice.
const ffsInBackgroundEnv = "FFS_IN_BACKGROUND_MODE"

var cfgFile string

func rootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ffs [flags] [INPUT]",
		Short: "Mount a JSON, TOML, or YAML document as a FUSE filesystem",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return runMount(input)
		},
	}
	c.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	if err := cfg.BindMountFlags(c.Flags()); err != nil {
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

func runMount(input string) error {
	var mc cfg.MountConfig
	if err := cmd.LoadConfig(cfgFile, &mc); err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	mc.Input = input

	if mc.Completions != "" {
		return printCompletions(mc.Completions)
	}

	if err := logger.InitLogFile(cfg.LoggingConfig{
		FilePath:  mc.Logging.FilePath,
		Severity:  cmd.Severity(mc.Quiet, mc.Debug),
		Format:    mc.Logging.Format,
		LogRotate: mc.Logging.LogRotate,
	}); err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	// Daemonize before touching INPUT: a backgrounded child re-parses the
	// same args from scratch, so stdin must still be unconsumed if it
	// re-execs (cmd/mount.go's legacy path daemonizes at the same point,
	// before any bucket/mount work begins).
	if shouldDaemonize(mc.Debug) {
		return daemonizeAndExit()
	}

	start := time.Now()
	if mc.Time {
		defer func() {
			fmt.Fprintf(os.Stderr, "ffs: %s elapsed\n", time.Since(start))
		}()
	}

	sourceFormat, err := value.ParseFormat(string(mc.Source))
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	targetFormat := sourceFormat
	if mc.Target != "" {
		if targetFormat, err = value.ParseFormat(string(mc.Target)); err != nil {
			return exitError{cmd.ExitCLI, err}
		}
	}

	sourceAdapter, err := docfmt.AdapterFor(sourceFormat)
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}
	targetAdapter, err := docfmt.AdapterFor(targetFormat)
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	var doc value.Value
	if mc.New != "" {
		newFormat, err := value.FormatFromExtension(filepath.Ext(mc.New))
		if err != nil {
			return exitError{cmd.ExitCLI, err}
		}
		if targetAdapter, err = docfmt.AdapterFor(newFormat); err != nil {
			return exitError{cmd.ExitCLI, err}
		}
		doc = value.NewMap(nil)
		mc.Input = mc.New
	} else {
		r, closeFn, err := openInput(mc.Input)
		if err != nil {
			return exitError{cmd.ExitCLI, err}
		}
		doc, err = sourceAdapter.Parse(r)
		closeFn()
		if err != nil {
			return exitError{cmd.ExitCLI, fmt.Errorf("ffs: parsing %s: %w", mc.Input, err)}
		}
	}

	dirMode := mc.DirMode
	if dirMode == 0 {
		dirMode = cfg.DeriveDirMode(mc.FileMode)
	}

	mungePolicy := name.Rename
	if mc.Munge == cfg.MungeFilter {
		mungePolicy = name.Filter
	}

	opts := value.Options{Pretty: mc.Pretty, AddNewlines: !mc.Exact}

	store, err := tree.Load(doc, tree.Config{
		UID:                      uint32(mc.UID),
		GID:                      uint32(mc.GID),
		FileMode:                 uint16(mc.FileMode),
		DirMode:                  uint16(dirMode),
		Padded:                   !mc.Unpadded,
		Munge:                    mungePolicy,
		IsDarwin:                 runtime.GOOS == "darwin",
		KeepMacOSXattrFile:       mc.KeepMacOSXattr,
		Options:                  opts,
		Clock:                    ffsclock.RealClock{},
		ExitOnInvariantViolation: mc.ExitOnInvariantViolation,
	})
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	mountPoint, cleanupMount, err := resolveMountPoint(mc.Mount, mc.Input)
	if err != nil {
		return exitError{cmd.ExitCLI, err}
	}

	metricsHandle := metrics.Handle(nil)
	if mc.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metricsHandle = metrics.New(reg)
		go func() {
			if err := http.ListenAndServe(mc.MetricsAddr, metrics.Handler(reg)); err != nil {
				logger.Errorf("metrics server: %v", err)
			}
		}()
	}

	sync := makeSyncFunc(store, targetAdapter, opts, mc, runtime.GOOS == "darwin")

	fs := fsops.New(fsops.Config{
		Store:              store,
		UID:                uint32(mc.UID),
		GID:                uint32(mc.GID),
		ReadOnly:           mc.ReadOnly,
		AllowXattr:         !mc.NoXattr,
		IsDarwin:           runtime.GOOS == "darwin",
		KeepMacOSXattrFile: mc.KeepMacOSXattr,
		Munge:              mungePolicy,
		Clock:              ffsclock.RealClock{},
		Sync:               sync,
		Metrics:            metricsHandle,
		Logger:             logger.Default(),
	})

	server := fuseutil.NewFileSystemServer(fs)

	mountOptions := map[string]string{}
	if mc.ReadOnly {
		mountOptions["ro"] = ""
	}
	mountCfg := &fuse.MountConfig{
		FSName:     mc.Input,
		Subtype:    "ffs",
		VolumeName: "ffs",
		Options:    mountOptions,
	}
	if cmd.Severity(mc.Quiet, mc.Debug).Rank() <= cfg.ErrorLogSeverity.Rank() {
		mountCfg.ErrorLogger = logger.NewLegacyLogger(logger.LevelError, "fuse: ")
	}
	if cmd.Severity(mc.Quiet, mc.Debug).Rank() <= cfg.TraceLogSeverity.Rank() {
		mountCfg.DebugLogger = logger.NewLegacyLogger(logger.LevelTrace, "fuse_debug: ")
	}

	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		reportOutcome(err)
		return exitError{cmd.ExitFUSE, fmt.Errorf("ffs: mounting %s: %w", mountPoint, err)}
	}
	reportOutcome(nil)

	err = mfs.Join(context.Background())
	if cleanupMount {
		cleanupMountPoint(mountPoint)
	}
	if err != nil {
		return exitError{cmd.ExitFUSE, fmt.Errorf("ffs: %w", err)}
	}
	return nil
}

// openInput opens mc.Input for reading: "-" (or "") means stdin, which the
// caller must not close.
func openInput(input string) (io.Reader, func(), error) {
	if input == "" || input == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, nil, fmt.Errorf("ffs: opening %s: %w", input, err)
	}
	return f, func() { f.Close() }, nil
}

// resolveMountPoint implements spec.md §6's mount-point inference: an
// explicit --mount wins; otherwise a directory is created from the input's
// basename (without extension) and owned by the mount (cleanup=true), the
// same rule unpack's --into inference uses. Reading from stdin without
// --mount is a CLI error, since there is no filename to infer from.
func resolveMountPoint(mount, input string) (path string, cleanup bool, err error) {
	if mount != "" {
		abs, err := filepath.Abs(mount)
		if err != nil {
			return "", false, err
		}
		return abs, false, nil
	}
	if input == "" || input == "-" {
		return "", false, fmt.Errorf("ffs: --mount is required when reading from stdin")
	}
	base := filepath.Base(input)
	base = base[:len(base)-len(filepath.Ext(base))]
	dir := filepath.Join(filepath.Dir(input), base)
	if err := os.Mkdir(dir, 0o755); err != nil && !os.IsExist(err) {
		return "", false, fmt.Errorf("ffs: creating mount point %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false, err
	}
	return abs, true, nil
}

func cleanupMountPoint(path string) {
	entries, err := os.ReadDir(path)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(path); err != nil {
		logger.Warnf("unable to clean up mount point %s: %v", path, err)
	}
}

// makeSyncFunc builds the fsops.SyncFunc spec.md §5's "dirty/synced
// discipline" describes: a sync writes iff the store is dirty or has never
// been synced, and stdout output only ever writes on the terminal sync.
func makeSyncFunc(store *inode.Store, adapter value.Adapter, opts value.Options, mc cfg.MountConfig, isDarwin bool) fsops.SyncFunc {
	outputPath, toStdout := outputDestination(mc)
	return func(ctx context.Context, last bool) error {
		if mc.NoOutput {
			return nil
		}
		if toStdout && !last {
			return nil
		}
		if !store.Dirty() && store.Synced() {
			return nil
		}

		var w io.Writer = os.Stdout
		if !toStdout {
			f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return fmt.Errorf("ffs: opening output %s: %w", outputPath, err)
			}
			defer f.Close()
			w = f
		}

		v, err := tree.Save(store, adapter, opts, isDarwin, mc.KeepMacOSXattr)
		if err != nil {
			return err
		}
		if err := adapter.Serialize(w, v, opts); err != nil {
			return fmt.Errorf("ffs: serializing output: %w", err)
		}
		store.MarkSynced()
		return nil
	}
}

func outputDestination(mc cfg.MountConfig) (path string, stdout bool) {
	switch {
	case mc.Output != "":
		return mc.Output, false
	case mc.InPlace:
		return mc.Input, false
	case mc.New != "":
		return mc.New, false
	default:
		return "", true
	}
}

func shouldDaemonize(debug bool) bool {
	if debug {
		return false
	}
	return os.Getenv(ffsInBackgroundEnv) == ""
}

// daemonizeAndExit re-execs the current binary in the background the way
// cmd/mount.go's legacy path does, then waits for the child to signal
// success or failure via daemonize.SignalOutcome.
func daemonizeAndExit() error {
	path, err := os.Executable()
	if err != nil {
		return exitError{cmd.ExitCLI, fmt.Errorf("ffs: locating executable: %w", err)}
	}
	args := os.Args[1:]
	env := append(os.Environ(), ffsInBackgroundEnv+"=true")
	if err := daemonize.Run(path, args, env, os.Stdout); err != nil {
		return exitError{cmd.ExitFUSE, fmt.Errorf("ffs: daemonize.Run: %w", err)}
	}
	return nil
}

// reportOutcome signals the parent process via daemonize.SignalOutcome
// when this process is itself the backgrounded child; a no-op otherwise.
func reportOutcome(err error) {
	if os.Getenv(ffsInBackgroundEnv) == "" {
		return
	}
	if err2 := daemonize.SignalOutcome(err); err2 != nil {
		logger.Errorf("ffs: signaling outcome to parent: %v", err2)
	}
}

func printCompletions(shell string) error {
	c := rootCmd()
	switch shell {
	case "bash":
		return c.GenBashCompletion(os.Stdout)
	case "zsh":
		return c.GenZshCompletion(os.Stdout)
	case "fish":
		return c.GenFishCompletion(os.Stdout, true)
	case "powershell":
		return c.GenPowerShellCompletion(os.Stdout)
	default:
		return exitError{cmd.ExitCLI, fmt.Errorf("ffs: unsupported shell %q for --completions", shell)}
	}
}
