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

package graph

import (
	"github.com/palmenros/circuitsafe/internal/field"
)

// TreeNode is the minimal view of a loader.TreeConstraints a Frame needs to
// be built, kept separate from the loader package to avoid a dependency
// cycle (graph is consumed by propagate, which also consumes loader).
type TreeNode struct {
	NodeID            int
	TemplateName      string
	ComponentName     string
	NumberInputs      int
	NumberOutputs     int
	NumberSignals     int
	InitialSignal     int
	InitialConstraint int
	NoConstraints     int
	AreDoubleArrow    []DoubleArrowRef
	Subcomponents     []*TreeNode
}

// DoubleArrowRef mirrors loader.DoubleArrow without importing loader.
type DoubleArrowRef struct {
	ConstraintID int
	SignalID     field.SignalIndex
}

// ConstraintLookup resolves a global constraint index to its constraint,
// i.e. loader.ConstraintStore.Get.
type ConstraintLookup func(idx int) field.Constraint

// Build constructs the verification graph for a single frame.
// It walks the frame's signals (outputs, then inputs, then intermediates),
// registers child ports, then classifies every constraint index in the
// frame's range as either a safe-assignment edge or an unsafe-constraint
// hyper-edge, and finally seeds the initial fixed set.
func Build(node *TreeNode, get ConstraintLookup, f field.Field) *Frame {
	maxSignal := node.InitialSignal + node.NumberSignals
	fr := NewFrame(node.ComponentName, maxSignal)

	// Outputs.
	for i := 0; i < node.NumberOutputs; i++ {
		s := field.SignalIndex(i + node.InitialSignal)
		fr.Nodes[s] = Node{Kind: KindOutput}
	}

	// Inputs.
	inputSignals := make(map[field.SignalIndex]struct{}, node.NumberInputs)
	for i := 0; i < node.NumberInputs; i++ {
		s := field.SignalIndex(i + node.NumberOutputs + node.InitialSignal)
		fr.Nodes[s] = Node{Kind: KindInput}
		inputSignals[s] = struct{}{}
	}

	// Intermediates.
	numIntermediates := node.NumberSignals - node.NumberOutputs - node.NumberInputs
	for i := 0; i < numIntermediates; i++ {
		s := field.SignalIndex(i + node.NumberOutputs + node.NumberInputs + node.InitialSignal)
		fr.Nodes[s] = Node{Kind: KindIntermediate}
	}

	// Sub-component ports.
	for _, child := range node.Subcomponents {
		compIdx := ComponentIndex(child.NodeID)

		subInputs := make(map[field.SignalIndex]struct{}, child.NumberInputs)
		for i := 0; i < child.NumberInputs; i++ {
			s := field.SignalIndex(i + child.NumberOutputs + child.InitialSignal)
			subInputs[s] = struct{}{}
			fr.Nodes[s] = Node{Kind: KindSubComponentInput, Component: compIdx}
		}

		subOutputs := make(map[field.SignalIndex]struct{}, child.NumberOutputs)
		for i := 0; i < child.NumberOutputs; i++ {
			s := field.SignalIndex(i + child.InitialSignal)
			subOutputs[s] = struct{}{}
			fr.Nodes[s] = Node{Kind: KindSubComponentOutput, Component: compIdx}
		}

		fr.SubComponents[compIdx] = &SubComponent{
			InputSignals:      subInputs,
			OutputSignals:     subOutputs,
			NotYetFixedInputs: cloneSignalSet(subInputs),
			TemplateName:      child.TemplateName,
			InstanceName:      child.ComponentName,
		}
	}

	// Safe-assignment edges.
	isDoubleArrow := make(map[int]struct{}, len(node.AreDoubleArrow))
	for _, da := range node.AreDoubleArrow {
		isDoubleArrow[da.ConstraintID] = struct{}{}

		c := get(da.ConstraintID)
		rhs := make(map[field.SignalIndex]struct{})
		for _, s := range c.Signals() {
			if s != da.SignalID {
				rhs[s] = struct{}{}
			}
		}

		idx := SafeAssignmentIndex(len(fr.SafeAssignments))
		fr.SafeAssignments = append(fr.SafeAssignments, SafeAssignment{
			LHS:                  da.SignalID,
			RHS:                  rhs,
			AssociatedConstraint: da.ConstraintID,
			Active:               true,
		})
		fr.IncomingSafeAssignments[da.SignalID] = idx

		for s := range rhs {
			if fr.OutgoingSafeAssignments[s] == nil {
				fr.OutgoingSafeAssignments[s] = make(map[SafeAssignmentIndex]struct{})
			}
			fr.OutgoingSafeAssignments[s][idx] = struct{}{}
		}
	}

	// Unsafe-constraint hyper-edges.
	for cid := node.InitialConstraint; cid < node.InitialConstraint+node.NoConstraints; cid++ {
		if _, ok := isDoubleArrow[cid]; ok {
			continue
		}

		c := get(cid)
		signals := make(map[field.SignalIndex]struct{})
		for _, s := range c.Signals() {
			signals[s] = struct{}{}
		}

		idx := UnsafeConstraintIndex(len(fr.UnsafeConstraints))
		fr.UnsafeConstraints = append(fr.UnsafeConstraints, UnsafeConstraint{
			Signals:              signals,
			AssociatedConstraint: cid,
			Active:               true,
		})

		for s := range signals {
			if fr.EdgeConstraints[s] == nil {
				fr.EdgeConstraints[s] = make(map[UnsafeConstraintIndex]struct{})
			}
			fr.EdgeConstraints[s][idx] = struct{}{}
		}
	}

	// Initial fixed set: frame inputs, LHS of empty-RHS safe
	// assignments, and the single signal of a linear, non-zero-coefficient
	// single-signal unsafe constraint.
	for s := range inputSignals {
		fr.MarkFixed(s)
	}
	for _, sa := range fr.SafeAssignments {
		if len(sa.RHS) == 0 {
			fr.MarkFixed(sa.LHS)
		}
	}
	for _, uc := range fr.UnsafeConstraints {
		seedSingleSignalLinear(fr, uc, get, f)
	}

	return fr
}

// seedSingleSignalLinear: if an unsafe constraint (after applying the
// frame's current substitutions, which at construction time is always the
// empty list) has exactly one participating signal and is linear with
// non-zero coefficient on it, that signal starts fixed.
func seedSingleSignalLinear(fr *Frame, uc UnsafeConstraint, get ConstraintLookup, f field.Field) {
	if len(uc.Signals) != 1 {
		return
	}
	var signal field.SignalIndex
	for s := range uc.Signals {
		signal = s
	}

	c := get(uc.AssociatedConstraint)
	for _, sub := range fr.Substitutions {
		field.ApplySubstitution(&c, sub, f)
	}

	if !c.IsLinear() {
		return
	}
	coeff, ok := c.C[signal]
	if !ok || coeff.Sign() == 0 {
		return
	}

	// Solve coeff*signal + constant = 0 for signal (it is the only
	// non-constant entry in c.C, since uc has exactly one signal), recording
	// the derivation as a substitution so later propagation can fold it into
	// other constraints without re-deriving it.
	value := f.Mul(f.Inverse(coeff), f.Neg(c.C.Constant()))

	fr.MarkFixed(signal)
	fr.Substitutions = append(fr.Substitutions, field.Substitution{
		Signal:     signal,
		Expression: field.LinearCombination{field.ConstantCoeffKey: value},
	})
}

func cloneSignalSet(m map[field.SignalIndex]struct{}) map[field.SignalIndex]struct{} {
	out := make(map[field.SignalIndex]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}
