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

// Package diagram renders snapshots of a frame's verification graph between
// propagation sweeps into a monotonically numbered directory of SVG files.
// No external `dot`/Graphviz binary is spawned: the SVG is emitted directly
// from a hand-rolled topological layering computed over the frame itself
// (layout.go). The same frame is also modelled with github.com/emicklei/dot
// and written beside each SVG as a .dot file; that model plays no part in
// the SVG layout.
package diagram

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/emicklei/dot"
	"github.com/icza/bitio"
	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/graph"
	"golang.org/x/crypto/blake2b"
)

// Renderer accumulates the monotonically numbered svg/ sequence for one
// verification run.
type Renderer struct {
	dir        string
	seq        int
	lastHash   [blake2b.Size256]byte
	haveLast   bool
	Propagation bool // when true, every propagation step is snapshotted, not just frame boundaries (-p/--propagationsvg)
}

// New creates (or reuses) dir as the run's svg/ output directory.
func New(dir string, propagationSteps bool) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("circuitsafe: creating diagram directory %s: %w", dir, err)
	}
	return &Renderer{dir: dir, Propagation: propagationSteps}, nil
}

// HighlightSignals optionally marks the currently selected polynomial-system
// component's signals so Snapshot can give them a distinct fill.
type HighlightSignals map[field.SignalIndex]struct{}

// Snapshot renders fr's current state to svg/NNN-<name>.svg plus a
// svg/NNN-<name>.bits companion holding a compact encoding of fr.Fixed. A
// snapshot whose canonical byte encoding is identical to the previous one
// is skipped — a diagram between propagation sweeps only needs to show
// change.
func (r *Renderer) Snapshot(fr *graph.Frame, name string, highlight HighlightSignals) error {
	canonical := canonicalBytes(fr)
	hash := blake2b.Sum256(canonical)
	if r.haveLast && hash == r.lastHash {
		return nil
	}
	r.haveLast = true
	r.lastHash = hash

	g := buildDotGraph(fr, highlight)
	vg := newVisGraph(fr, highlight)

	base := fmt.Sprintf("%03d-%s", r.seq, name)
	r.seq++

	svgPath := filepath.Join(r.dir, base+".svg")
	if err := os.WriteFile(svgPath, []byte(vg.renderSVG()), 0o644); err != nil {
		return fmt.Errorf("circuitsafe: writing %s: %w", svgPath, err)
	}

	dotPath := filepath.Join(r.dir, base+".dot")
	if err := os.WriteFile(dotPath, []byte(g.String()), 0o644); err != nil {
		return fmt.Errorf("circuitsafe: writing %s: %w", dotPath, err)
	}

	bitsPath := filepath.Join(r.dir, base+".bits")
	if err := writeFixedBits(fr, bitsPath); err != nil {
		return err
	}
	return nil
}

// canonicalBytes produces a deterministic byte encoding of fr's signal
// kinds, fixed set and active edges, used purely as a dedup hash input —
// never persisted itself.
func canonicalBytes(fr *graph.Frame) []byte {
	var buf bytes.Buffer

	var signals []field.SignalIndex
	for s := range fr.Nodes {
		signals = append(signals, s)
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i] < signals[j] })
	for _, s := range signals {
		fmt.Fprintf(&buf, "n%d:%d:%d;", s, fr.Nodes[s].Kind, boolToInt(fr.IsFixed(s)))
	}
	for i, sa := range fr.SafeAssignments {
		fmt.Fprintf(&buf, "s%d:%d;", i, boolToInt(sa.Active))
	}
	for i, uc := range fr.UnsafeConstraints {
		fmt.Fprintf(&buf, "u%d:%d;", i, boolToInt(uc.Active))
	}
	return buf.Bytes()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// writeFixedBits persists a compact bit-per-signal snapshot of fr.Fixed, one
// bit per signal index from 0 to fr.MaxSignal.
func writeFixedBits(fr *graph.Frame, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("circuitsafe: creating %s: %w", path, err)
	}
	defer file.Close()

	w := bitio.NewWriter(file)
	for i := 0; i <= fr.MaxSignal; i++ {
		if err := w.WriteBool(fr.IsFixed(field.SignalIndex(i))); err != nil {
			return fmt.Errorf("circuitsafe: writing %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("circuitsafe: closing %s: %w", path, err)
	}
	return nil
}

// ReadFixedBits reads back a .bits snapshot written by writeFixedBits, for
// diagram/report viewers that want to diff sweeps without re-running
// propagation.
func ReadFixedBits(path string, maxSignal int) ([]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("circuitsafe: opening %s: %w", path, err)
	}
	defer file.Close()

	r := bitio.NewReader(file)
	out := make([]bool, maxSignal+1)
	for i := range out {
		b, err := r.ReadBool()
		if err != nil {
			return nil, fmt.Errorf("circuitsafe: reading %s: %w", path, err)
		}
		out[i] = b
	}
	return out, nil
}

// buildDotGraph models fr as a dot.Graph: one node per signal plus one
// pseudo-node per unsafe constraint. Nodes are coloured by signal role,
// fixed nodes get a double border, highlighted nodes get an orange outline,
// and inactive edges are dashed.
func buildDotGraph(fr *graph.Frame, highlight HighlightSignals) *dot.Graph {
	g := dot.NewGraph(dot.Directed)

	nodes := make(map[field.SignalIndex]dot.Node)
	var signals []field.SignalIndex
	for s := range fr.Nodes {
		signals = append(signals, s)
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i] < signals[j] })

	for _, s := range signals {
		n := fr.Nodes[s]
		dn := g.Node(fmt.Sprintf("sig%d", int(s)))
		dn = dn.Attr("label", fmt.Sprintf("%d", int(s)))
		dn = dn.Attr("fillcolor", colorForKind(n.Kind)).Attr("style", "filled")
		if fr.IsFixed(s) {
			dn = dn.Attr("peripheries", "2")
		}
		if _, ok := highlight[s]; ok {
			dn = dn.Attr("color", "orange").Attr("penwidth", "3")
		}
		nodes[s] = dn
	}

	for i, sa := range fr.SafeAssignments {
		lhs, ok := nodes[sa.LHS]
		if !ok {
			continue
		}
		for rhs := range sa.RHS {
			rn, ok := nodes[rhs]
			if !ok {
				continue
			}
			e := g.Edge(rn, lhs).Attr("label", fmt.Sprintf("sa%d", i))
			if !sa.Active {
				e = e.Attr("style", "dashed")
			}
		}
	}

	for i, uc := range fr.UnsafeConstraints {
		cn := g.Node(fmt.Sprintf("uc%d", i)).Attr("label", "c").Attr("shape", "diamond")
		for s := range uc.Signals {
			sn, ok := nodes[s]
			if !ok {
				continue
			}
			e := g.Edge(sn, cn)
			if !uc.Active {
				e = e.Attr("style", "dashed")
			}
		}
	}

	return g
}

func colorForKind(k graph.SignalKind) string {
	switch k {
	case graph.KindInput:
		return "lightblue"
	case graph.KindOutput:
		return "lightgreen"
	case graph.KindIntermediate:
		return "lightgray"
	case graph.KindSubComponentInput:
		return "lightyellow"
	case graph.KindSubComponentOutput:
		return "khaki"
	default:
		return "white"
	}
}
