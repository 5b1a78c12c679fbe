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

// Package cmd holds the CLI scaffolding shared by ffs's three binaries
// (cmd/ffs, cmd/unpack, cmd/pack): config-file loading via viper and the
// exit-code/verbosity conventions spec.md §6/§7 give all three. Each
// binary still owns its own cobra.Command and flag set, grounded on the
// teacher's cmd/root.go.
package cmd

import (
	"fmt"

	"github.com/mgree/ffs/cfg"
	"github.com/spf13/viper"
)

// Exit codes, spec.md §7. ExitFUSE is ffs (mount)'s runtime-failure code;
// ExitRuntime is the same numeric value under a subsystem-neutral name for
// unpack/pack, which fail at runtime without ever touching FUSE.
const (
	ExitSuccess = 0
	ExitFUSE    = 1
	ExitRuntime = ExitFUSE
	ExitCLI     = 2
)

// LoadConfig reads an optional YAML config file (if cfgFile is non-empty)
// and unmarshals the bound flags plus any config-file overrides into out,
// following the teacher's cmd/root.go initConfig pattern.
func LoadConfig(cfgFile string, out any) error {
	if cfgFile != "" {
		resolved, err := cfg.ResolvePath(cfgFile)
		if err != nil {
			return fmt.Errorf("cmd: resolving config file %q: %w", cfgFile, err)
		}
		viper.SetConfigFile(resolved)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("cmd: reading config file %q: %w", resolved, err)
		}
	}

	if err := viper.Unmarshal(out, cfg.DecoderConfigOption); err != nil {
		return fmt.Errorf("cmd: decoding configuration: %w", err)
	}
	return nil
}

// Severity maps the shared --quiet/--debug flags (SPEC_FULL.md §3) onto a
// logger severity: --debug wins over --quiet if both are set.
func Severity(quiet, debug bool) cfg.LogSeverity {
	switch {
	case debug:
		return cfg.TraceLogSeverity
	case quiet:
		return cfg.WarningLogSeverity
	default:
		return cfg.InfoLogSeverity
	}
}
