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

// Package extract turns the residual, still-active unsafe constraints a
// StatusPendingExtraction frame was left with into one polynomial system per
// connected component, ready for the optimizer/CAS stage to settle.
//
// A component's signals_to_fix is deliberately kept narrow: the subset of
// its free signals that are either the frame's own declared outputs, or
// output ports of a sub-component that was activated (descended into)
// during propagation — rather than the broader output-reachable closure a
// more aggressive analysis could compute.
package extract

import (
	"sort"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/graph"
	"github.com/palmenros/circuitsafe/internal/loader"
	"github.com/palmenros/circuitsafe/internal/propagate"
)

// System is one connected component of residual unsafe constraints, reduced
// by the frame's accumulated substitutions so only genuinely free signals
// remain.
type System struct {
	ComponentName string
	TemplateName  string
	Constraints   []field.Constraint
	FreeSignals   []field.SignalIndex
	SignalsToFix  []field.SignalIndex
}

// ExceptionReason names a condition extraction cannot proceed past.
type ExceptionReason string

// NoUnsafeConstraintConnectedComponentWithoutCycles fires when a connected
// component of residual unsafe constraints is not a tree over its signals:
// the incidence graph (signals and constraints as nodes, membership as
// edges) has more edges than nodes-1, so at least one cycle exists. The
// extractor has no elimination order for such a component and bails.
const NoUnsafeConstraintConnectedComponentWithoutCycles ExceptionReason = "residual unsafe-constraint connected component contains a cycle"

// Exception is a fatal extraction failure for one frame.
type Exception struct {
	ComponentName string
	TemplateName  string
	Reason        ExceptionReason
}

// All walks a propagation result tree and extracts a System per connected
// component of every StatusPendingExtraction frame it finds.
func All(ctx *loader.Context, res *propagate.Result) ([]*System, []Exception) {
	var systems []*System
	var exceptions []Exception

	if res.Status == propagate.StatusPendingExtraction {
		s, e := frame(ctx, res)
		systems = append(systems, s...)
		exceptions = append(exceptions, e...)
	}

	for _, child := range res.Children {
		s, e := All(ctx, child)
		systems = append(systems, s...)
		exceptions = append(exceptions, e...)
	}

	return systems, exceptions
}

// frame computes the connected components of res.Frame's residual active
// unsafe constraints, checking each for cycles before building its System.
// Two constraints are connected only through a signal that is still
// unfixed: a fixed signal contributes no incidence edge, so sharing one
// never merges components, inflates the cycle-check edge count, or leaks
// into a System's free/ring variables.
func frame(ctx *loader.Context, res *propagate.Result) ([]*System, []Exception) {
	fr := res.Frame

	var active []graph.UnsafeConstraintIndex
	for idx, uc := range fr.UnsafeConstraints {
		if uc.Active {
			active = append(active, graph.UnsafeConstraintIndex(idx))
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	uf := newUnionFind()
	edges := make(map[node]int) // node -> incident edge count, for the tree check
	for _, idx := range active {
		uc := fr.UnsafeConstraints[idx]
		cNode := node{isConstraint: true, id: int(idx)}
		uf.add(cNode)
		edges[cNode] = 0
		for s := range uc.Signals {
			if fr.IsFixed(s) {
				continue
			}
			sNode := node{isConstraint: false, id: int(s)}
			uf.add(sNode)
			uf.union(cNode, sNode)
			edges[cNode]++
			edges[sNode]++
		}
	}

	groups := uf.groups()

	var systems []*System
	var exceptions []Exception
	for _, group := range groups {
		var constraintIdxs []graph.UnsafeConstraintIndex
		signalSet := make(map[field.SignalIndex]struct{})
		nodeCount := len(group)
		edgeCount := 0
		for _, n := range group {
			if n.isConstraint {
				constraintIdxs = append(constraintIdxs, graph.UnsafeConstraintIndex(n.id))
			} else {
				signalSet[field.SignalIndex(n.id)] = struct{}{}
			}
			edgeCount += edges[n]
		}
		edgeCount /= 2 // each incidence edge was counted from both endpoints

		if edgeCount > nodeCount-1 {
			exceptions = append(exceptions, Exception{
				ComponentName: res.ComponentName,
				TemplateName:  res.TemplateName,
				Reason:        NoUnsafeConstraintConnectedComponentWithoutCycles,
			})
			continue
		}

		systems = append(systems, buildSystem(ctx, res, fr, constraintIdxs, signalSet))
	}

	return systems, exceptions
}

func buildSystem(ctx *loader.Context, res *propagate.Result, fr *graph.Frame, constraintIdxs []graph.UnsafeConstraintIndex, signalSet map[field.SignalIndex]struct{}) *System {
	sys := &System{ComponentName: res.ComponentName, TemplateName: res.TemplateName}

	for _, idx := range constraintIdxs {
		uc := fr.UnsafeConstraints[idx]
		c := ctx.Constraints.Get(uc.AssociatedConstraint).Clone()
		for _, sub := range fr.Substitutions {
			field.ApplySubstitution(&c, sub, ctx.Field)
		}
		sys.Constraints = append(sys.Constraints, c)
	}

	for s := range signalSet {
		sys.FreeSignals = append(sys.FreeSignals, s)
	}
	sort.Slice(sys.FreeSignals, func(i, j int) bool { return sys.FreeSignals[i] < sys.FreeSignals[j] })

	activatedChildOutputs := make(map[field.SignalIndex]struct{})
	for _, child := range res.Children {
		for _, s := range child.Frame.OutputSignals() {
			activatedChildOutputs[s] = struct{}{}
		}
	}

	for _, s := range sys.FreeSignals {
		n, known := fr.Nodes[s]
		if !known {
			continue
		}
		if n.Kind == graph.KindOutput {
			sys.SignalsToFix = append(sys.SignalsToFix, s)
			continue
		}
		if n.Kind == graph.KindSubComponentOutput {
			if _, ok := activatedChildOutputs[s]; ok {
				sys.SignalsToFix = append(sys.SignalsToFix, s)
			}
		}
	}

	return sys
}

// node identifies either a signal or an unsafe-constraint edge within the
// union-find used for connected-component and cycle detection.
type node struct {
	isConstraint bool
	id           int
}

type unionFind struct {
	parent map[node]node
	rank   map[node]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[node]node), rank: make(map[node]int)}
}

func (u *unionFind) add(n node) {
	if _, ok := u.parent[n]; !ok {
		u.parent[n] = n
	}
}

func (u *unionFind) find(n node) node {
	root := n
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[n] != root {
		u.parent[n], n = root, u.parent[n]
	}
	return root
}

func (u *unionFind) union(a, b node) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

func (u *unionFind) groups() [][]node {
	byRoot := make(map[node][]node)
	var roots []node
	for n := range u.parent {
		r := u.find(n)
		if _, seen := byRoot[r]; !seen {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], n)
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].isConstraint != roots[j].isConstraint {
			return !roots[i].isConstraint
		}
		return roots[i].id < roots[j].id
	})
	out := make([][]node, 0, len(roots))
	for _, r := range roots {
		out = append(out, byRoot[r])
	}
	return out
}
