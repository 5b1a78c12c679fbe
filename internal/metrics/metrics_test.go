// Copyright 2025 Google LLC
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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpsCountIncrementsPerOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OpsCount("LookUpInode")
	m.OpsCount("LookUpInode")
	m.OpsCount("ReadFile")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.opsCount.WithLabelValues("LookUpInode")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.opsCount.WithLabelValues("ReadFile")))
}

func TestOpsErrorCountLabelsByCategory(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OpsErrorCount("MkDir", "EEXIST")
	m.OpsErrorCount("MkDir", "EEXIST")
	m.OpsErrorCount("RmDir", "ENOTEMPTY")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.opsErrorCount.WithLabelValues("MkDir", "EEXIST")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.opsErrorCount.WithLabelValues("RmDir", "ENOTEMPTY")))
}

func TestOpsLatencyRecordsObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OpsLatency("ReadFile", 150*time.Microsecond)

	count := testutil.CollectAndCount(m.opsLatency)
	assert.Equal(t, 1, count)
}

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = New(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(families), 3)
}

func TestNoopHandleDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Noop.OpsCount("LookUpInode")
		Noop.OpsErrorCount("MkDir", "EEXIST")
		Noop.OpsLatency("ReadFile", time.Millisecond)
	})
}
