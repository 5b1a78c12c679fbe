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

package cfg

import (
	"github.com/mitchellh/mapstructure"
)

// DecodeHook composes the TextUnmarshaler-based hook (covering Octal,
// LogSeverity, ResolvedPath, Format, MungePolicy -- anything with an
// UnmarshalText method) with mapstructure's defaults, grounded on the
// teacher's cfg.DecodeHook.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// DecoderConfigOption applies DecodeHook to a mapstructure.DecoderConfig,
// the shape viper.Unmarshal's opts parameter expects.
func DecoderConfigOption(dc *mapstructure.DecoderConfig) {
	dc.DecodeHook = DecodeHook()
	dc.ErrorUnused = false
	dc.WeaklyTypedInput = true
}
