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

// Package docfmt selects the value.Adapter each of ffs's three binaries
// needs, the one piece of wiring all three cmd/ packages would otherwise
// duplicate. It lives outside internal/value to avoid that package
// importing its own format subpackages (jsonfmt/tomlfmt/yamlfmt already
// import value).
package docfmt

import (
	"fmt"

	"github.com/mgree/ffs/internal/value"
	"github.com/mgree/ffs/internal/value/jsonfmt"
	"github.com/mgree/ffs/internal/value/tomlfmt"
	"github.com/mgree/ffs/internal/value/yamlfmt"
)

// AdapterFor returns the Adapter implementing f.
func AdapterFor(f value.Format) (value.Adapter, error) {
	switch f {
	case value.JSON:
		return jsonfmt.Adapter{}, nil
	case value.TOML:
		return tomlfmt.Adapter{}, nil
	case value.YAML:
		return yamlfmt.Adapter{}, nil
	default:
		return nil, fmt.Errorf("docfmt: unsupported format %q", f)
	}
}
