// Copyright 2020 ConsenSys Software Inc.
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

package diagram

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/graph"
)

func sampleFrame() *graph.Frame {
	fr := graph.NewFrame("main", 2)
	fr.Nodes[0] = graph.Node{Kind: graph.KindInput}
	fr.Nodes[1] = graph.Node{Kind: graph.KindOutput}
	fr.SafeAssignments = append(fr.SafeAssignments, graph.SafeAssignment{
		LHS: 1, RHS: map[field.SignalIndex]struct{}{0: {}}, Active: true,
	})
	fr.MarkFixed(0)
	fr.MarkFixed(1)
	return fr
}

func TestSnapshotWritesSVGAndBits(t *testing.T) {
	dir := t.TempDir()
	r, err := New(filepath.Join(dir, "svg"), false)
	require.NoError(t, err)

	fr := sampleFrame()
	require.NoError(t, r.Snapshot(fr, "main", nil))

	entries, err := os.ReadDir(filepath.Join(dir, "svg"))
	require.NoError(t, err)
	var haveSVG, haveBits, haveDot bool
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".svg"):
			haveSVG = true
		case strings.HasSuffix(e.Name(), ".bits"):
			haveBits = true
		case strings.HasSuffix(e.Name(), ".dot"):
			haveDot = true
		}
	}
	require.True(t, haveSVG)
	require.True(t, haveBits)
	require.True(t, haveDot)
}

func TestSnapshotDedupsIdenticalFrames(t *testing.T) {
	dir := t.TempDir()
	r, err := New(filepath.Join(dir, "svg"), false)
	require.NoError(t, err)

	fr := sampleFrame()
	require.NoError(t, r.Snapshot(fr, "main", nil))
	require.NoError(t, r.Snapshot(fr, "main", nil))

	entries, err := os.ReadDir(filepath.Join(dir, "svg"))
	require.NoError(t, err)
	require.Len(t, entries, 3) // only the first snapshot's svg+dot+bits
}

func TestReadFixedBitsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := New(filepath.Join(dir, "svg"), false)
	require.NoError(t, err)

	fr := sampleFrame()
	require.NoError(t, r.Snapshot(fr, "main", nil))

	bits, err := ReadFixedBits(filepath.Join(dir, "svg", "000-main.bits"), fr.MaxSignal)
	require.NoError(t, err)
	require.True(t, bits[0])
	require.True(t, bits[1])
}
