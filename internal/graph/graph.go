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

// Package graph implements the verification graph: a typed bipartite
// multigraph coupling signals, safe-assignment edges and unsafe-constraint
// hyper-edges for a single frame (sub-component) of the circuit's
// component tree.
package graph

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/palmenros/circuitsafe/internal/field"
	"golang.org/x/exp/maps"
)

// ComponentIndex identifies a sub-component within its parent frame.
type ComponentIndex int

// SignalKind tags the role a signal plays within a frame, mirroring the
// Node enum of verification_graph.rs.
type SignalKind int

const (
	KindInput SignalKind = iota
	KindOutput
	KindIntermediate
	KindSubComponentInput
	KindSubComponentOutput
)

// Node is a single entry of Frame.Nodes: a signal's kind, plus the owning
// sub-component index when the kind is one of the SubComponent* variants.
type Node struct {
	Kind      SignalKind
	Component ComponentIndex // meaningful only for SubComponentInput/Output
}

// SafeAssignment is an edge recording that LHS is safely defined by RHS,
// i.e. the compiler-emitted "<==" assignment.
type SafeAssignment struct {
	LHS                  field.SignalIndex
	RHS                  map[field.SignalIndex]struct{}
	AssociatedConstraint int
	Active               bool
}

// UnsafeConstraint is a hyper-edge over every signal participating in a
// constraint the compiler did not mark as a safe assignment.
type UnsafeConstraint struct {
	Signals              map[field.SignalIndex]struct{}
	AssociatedConstraint int
	Active               bool
}

// SubComponent is a child frame's port interface as seen from the parent:
// its declared inputs/outputs and which inputs remain unfixed.
type SubComponent struct {
	InputSignals      map[field.SignalIndex]struct{}
	OutputSignals     map[field.SignalIndex]struct{}
	NotYetFixedInputs map[field.SignalIndex]struct{}
	TemplateName      string
	InstanceName      string
}

// SafeAssignmentIndex and UnsafeConstraintIndex are stable, append-only
// indices into Frame.SafeAssignments / Frame.UnsafeConstraints: the only
// permitted mutation on an existing entry is flipping Active to false.
type SafeAssignmentIndex int
type UnsafeConstraintIndex int

// Frame is the per-sub-component verification graph for one node of the
// component tree.
type Frame struct {
	Nodes map[field.SignalIndex]Node

	SubComponents map[ComponentIndex]*SubComponent

	SafeAssignments   []SafeAssignment
	UnsafeConstraints []UnsafeConstraint

	IncomingSafeAssignments map[field.SignalIndex]SafeAssignmentIndex
	OutgoingSafeAssignments map[field.SignalIndex]map[SafeAssignmentIndex]struct{}
	EdgeConstraints         map[field.SignalIndex]map[UnsafeConstraintIndex]struct{}

	// Substitutions is the ordered, per-frame list of signal -> linear
	// expression rewrites applied to unsafe constraints during
	// propagation. Substitutions from a child frame never leak into
	// siblings or the parent.
	Substitutions []field.Substitution

	// Fixed is the bitset of signals proven uniquely determined so far.
	// Indexed directly by field.SignalIndex (signals are small, dense
	// non-negative integers in a compiled circuit).
	Fixed *bitset.BitSet

	// MaxSignal bounds the bitset allocation; kept so Fixed can be resized
	// defensively if a signal index arrives unexpectedly high.
	MaxSignal int

	Name string // qualified instance name, for diagnostics
}

// NewFrame allocates an empty frame sized for signals in [0, maxSignal).
func NewFrame(name string, maxSignal int) *Frame {
	return &Frame{
		Nodes:                   make(map[field.SignalIndex]Node),
		SubComponents:           make(map[ComponentIndex]*SubComponent),
		IncomingSafeAssignments: make(map[field.SignalIndex]SafeAssignmentIndex),
		OutgoingSafeAssignments: make(map[field.SignalIndex]map[SafeAssignmentIndex]struct{}),
		EdgeConstraints:         make(map[field.SignalIndex]map[UnsafeConstraintIndex]struct{}),
		Fixed:                   bitset.New(uint(maxSignal + 1)),
		MaxSignal:               maxSignal,
		Name:                    name,
	}
}

// bit converts a (possibly negative, though signals never are) SignalIndex
// to the uint index bitset wants, growing Fixed if needed.
func (fr *Frame) bit(s field.SignalIndex) uint {
	idx := uint(s)
	if idx >= fr.Fixed.Len() {
		fr.Fixed.Set(idx) // BitSet.Set auto-grows the underlying storage
		fr.Fixed.Clear(idx)
	}
	return idx
}

// MarkFixed adds s to the fixed set. Monotone: never un-marks.
func (fr *Frame) MarkFixed(s field.SignalIndex) {
	fr.Fixed.Set(fr.bit(s))
}

// IsFixed reports whether s has been proven uniquely determined.
func (fr *Frame) IsFixed(s field.SignalIndex) bool {
	return fr.Fixed.Test(fr.bit(s))
}

// AllFixed reports whether every signal in ss is fixed.
func (fr *Frame) AllFixed(ss map[field.SignalIndex]struct{}) bool {
	for s := range ss {
		if !fr.IsFixed(s) {
			return false
		}
	}
	return true
}

// DeactivateSafeAssignment sets the Active flag to false. Indices are
// never removed or reused, so existing SafeAssignmentIndex values stay
// valid for the lifetime of the frame.
func (fr *Frame) DeactivateSafeAssignment(idx SafeAssignmentIndex) {
	fr.SafeAssignments[idx].Active = false
}

// DeactivateUnsafeConstraint sets the Active flag to false.
func (fr *Frame) DeactivateUnsafeConstraint(idx UnsafeConstraintIndex) {
	fr.UnsafeConstraints[idx].Active = false
}

// ActiveUnsafeConstraintCount returns the number of unsafe-constraint edges
// still active, used by the propagator's termination argument.
func (fr *Frame) ActiveUnsafeConstraintCount() int {
	n := 0
	for _, uc := range fr.UnsafeConstraints {
		if uc.Active {
			n++
		}
	}
	return n
}

// OutputSignals returns the frame's own (non-subcomponent) output signals,
// sorted, so callers get deterministic, reproducible ordering regardless of
// map iteration order.
func (fr *Frame) OutputSignals() []field.SignalIndex {
	var out []field.SignalIndex
	for s, n := range fr.Nodes {
		if n.Kind == KindOutput {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InputSignals returns the frame's own input signals, sorted.
func (fr *Frame) InputSignals() []field.SignalIndex {
	var out []field.SignalIndex
	for s, n := range fr.Nodes {
		if n.Kind == KindInput {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedComponentIndices returns the frame's sub-component keys in
// ascending order.
func (fr *Frame) SortedComponentIndices() []ComponentIndex {
	keys := maps.Keys(fr.SubComponents)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
