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
	"fmt"
	"sort"
	"strings"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/graph"
)

const (
	nodeWidth   = 60
	nodeHeight  = 30
	colGap      = 100
	rowGap      = 60
	marginX     = 30
	marginY     = 30
)

// visNode is a layout-ready node: a signal or an unsafe-constraint pseudo
// node, independent of emicklei/dot's own node type so the hand-rolled SVG
// emitter never has to reach back into the dot package's internals.
type visNode struct {
	ID           string
	Label        string
	Fill         string
	Diamond      bool
	DoubleBorder bool
	Highlighted  bool
	Layer        int
	row          int
}

type visEdge struct {
	From, To string
	Dashed   bool
}

// visGraph is the hand-rolled topological layering of fr: signals with no
// incoming safe-assignment/unsafe-constraint edge sit in layer 0, and every
// other node off a cycle has a layer one more than its deepest predecessor.
type visGraph struct {
	nodes map[string]*visNode
	edges []visEdge
	order []string // insertion order, for deterministic iteration
}

func newVisGraph(fr *graph.Frame, highlight HighlightSignals) *visGraph {
	vg := &visGraph{nodes: make(map[string]*visNode)}

	var signals []field.SignalIndex
	for s := range fr.Nodes {
		signals = append(signals, s)
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i] < signals[j] })

	for _, s := range signals {
		n := fr.Nodes[s]
		_, hl := highlight[s]
		id := signalNodeID(s)
		vg.add(&visNode{
			ID:           id,
			Label:        fmt.Sprintf("%d", int(s)),
			Fill:         colorForKind(n.Kind),
			DoubleBorder: fr.IsFixed(s),
			Highlighted:  hl,
		})
	}

	for _, sa := range fr.SafeAssignments {
		if _, ok := vg.nodes[signalNodeID(sa.LHS)]; !ok {
			continue
		}
		for rhs := range sa.RHS {
			if _, ok := vg.nodes[signalNodeID(rhs)]; !ok {
				continue
			}
			vg.edges = append(vg.edges, visEdge{From: signalNodeID(rhs), To: signalNodeID(sa.LHS), Dashed: !sa.Active})
		}
	}

	for i, uc := range fr.UnsafeConstraints {
		cid := constraintNodeID(i)
		vg.add(&visNode{ID: cid, Label: "c", Diamond: true, Fill: "white"})
		for s := range uc.Signals {
			if _, ok := vg.nodes[signalNodeID(s)]; !ok {
				continue
			}
			vg.edges = append(vg.edges, visEdge{From: signalNodeID(s), To: cid, Dashed: !uc.Active})
		}
	}

	vg.assignLayers()
	return vg
}

func signalNodeID(s field.SignalIndex) string   { return fmt.Sprintf("sig%d", int(s)) }
func constraintNodeID(i int) string             { return fmt.Sprintf("uc%d", i) }

func (vg *visGraph) add(n *visNode) {
	if _, exists := vg.nodes[n.ID]; exists {
		return
	}
	vg.nodes[n.ID] = n
	vg.order = append(vg.order, n.ID)
}

// assignLayers runs a topological (Kahn) pass from every zero-indegree node,
// releasing a node only once all of its predecessors are placed. Nodes on a
// cycle are never released: they keep the layer their placed predecessors
// gave them (layer 0 when there are none), which is an acceptable layout
// degradation for a diagnostic picture, not a soundness concern.
func (vg *visGraph) assignLayers() {
	indegree := make(map[string]int)
	adj := make(map[string][]string)
	for _, e := range vg.edges {
		indegree[e.To]++
		adj[e.From] = append(adj[e.From], e.To)
	}

	var queue []string
	for _, id := range vg.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		cur := vg.nodes[id].Layer
		for _, to := range adj[id] {
			if vg.nodes[to].Layer < cur+1 {
				vg.nodes[to].Layer = cur + 1
			}
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	byLayer := make(map[int][]string)
	for _, id := range vg.order {
		l := vg.nodes[id].Layer
		byLayer[l] = append(byLayer[l], id)
	}
	for _, ids := range byLayer {
		sort.Strings(ids)
		for row, id := range ids {
			vg.nodes[id].row = row
		}
	}
}

// renderSVG emits a plain, dependency-free SVG rendering of the layered
// graph: one rect/diamond per node positioned by (Layer, row), and a line
// per edge.
func (vg *visGraph) renderSVG() string {
	maxLayer, maxRow := 0, 0
	for _, id := range vg.order {
		n := vg.nodes[id]
		if n.Layer > maxLayer {
			maxLayer = n.Layer
		}
		if n.row > maxRow {
			maxRow = n.row
		}
	}

	width := marginX*2 + (maxLayer+1)*(nodeWidth+colGap)
	height := marginY*2 + (maxRow+1)*(nodeHeight+rowGap)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n", width, height, width, height)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="white"/>`+"\n")

	centers := make(map[string][2]int)
	for _, id := range vg.order {
		n := vg.nodes[id]
		cx := marginX + n.Layer*(nodeWidth+colGap) + nodeWidth/2
		cy := marginY + n.row*(nodeHeight+rowGap) + nodeHeight/2
		centers[id] = [2]int{cx, cy}
	}

	for _, e := range vg.edges {
		from, ok1 := centers[e.From]
		to, ok2 := centers[e.To]
		if !ok1 || !ok2 {
			continue
		}
		dash := ""
		if e.Dashed {
			dash = ` stroke-dasharray="4,3"`
		}
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"%s/>`+"\n", from[0], from[1], to[0], to[1], dash)
	}

	for _, id := range vg.order {
		n := vg.nodes[id]
		c := centers[id]
		x, y := c[0]-nodeWidth/2, c[1]-nodeHeight/2
		stroke := "black"
		strokeWidth := 1
		if n.Highlighted {
			stroke = "orange"
			strokeWidth = 3
		}

		if n.Diamond {
			points := fmt.Sprintf("%d,%d %d,%d %d,%d %d,%d", c[0], y, x+nodeWidth, c[1], c[0], y+nodeHeight, x, c[1])
			fmt.Fprintf(&b, `<polygon points="%s" fill="%s" stroke="%s" stroke-width="%d"/>`+"\n", points, n.Fill, stroke, strokeWidth)
		} else {
			fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s" stroke="%s" stroke-width="%d"/>`+"\n",
				x, y, nodeWidth, nodeHeight, n.Fill, stroke, strokeWidth)
			if n.DoubleBorder {
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="%s"/>`+"\n",
					x+3, y+3, nodeWidth-6, nodeHeight-6, stroke)
			}
		}

		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" font-size="12">%s</text>`+"\n", c[0], c[1]+4, escapeXML(n.Label))
	}

	b.WriteString("</svg>\n")
	return b.String()
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
