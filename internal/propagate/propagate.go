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

package propagate

import (
	"sort"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/graph"
	"github.com/palmenros/circuitsafe/internal/loader"
)

// Verify runs propagation over the whole component tree, starting at main,
// and returns the nested per-frame outcome.
func Verify(ctx *loader.Context) *Result {
	return VerifyWithObserver(ctx, nil)
}

// VerifyWithObserver is Verify, additionally notifying obs once before the
// first propagation sweep of every frame and once after each sweep, for
// diagram snapshotting; obs may be nil.
func VerifyWithObserver(ctx *loader.Context, obs Observer) *Result {
	return verifyNode(ctx, ctx.TreeConstraints, nil, true, obs)
}

// verifyNode builds the frame for node, runs the fixpoint loop, recurses
// into any sub-component whose inputs become fully fixed, and folds the
// result. inputSubs carries the parent-derived substitutions for node's own
// declared inputs; it is ignored (and ctx.Witness used instead) at the root,
// since the circuit's true primary inputs are exogenous rather than
// constraint-derived.
func verifyNode(ctx *loader.Context, node *loader.TreeConstraints, inputSubs []field.Substitution, isRoot bool, obs Observer) *Result {
	fr := graph.Build(toTreeNode(node), ctx.Constraints.Get, ctx.Field)

	if isRoot {
		for _, s := range fr.InputSignals() {
			if w, ok := ctx.Witness[s]; ok {
				fr.Substitutions = append(fr.Substitutions, field.Substitution{
					Signal:     s,
					Expression: field.LinearCombination{field.ConstantCoeffKey: w},
				})
			}
		}
	} else {
		fr.Substitutions = append(fr.Substitutions, inputSubs...)
	}

	byNodeID := make(map[int]*loader.TreeConstraints, len(node.Subcomponents))
	for _, child := range node.Subcomponents {
		byNodeID[child.NodeID] = child
	}

	if obs != nil {
		obs.OnSweep(fr, node.ComponentName, node.TemplateName)
	}

	children := make(map[graph.ComponentIndex]*Result)
	runFixpoint(ctx, fr, byNodeID, children, node, obs)

	return buildResult(node, fr, children)
}

// runFixpoint repeatedly applies rules 1 (safe assignments), 3 (sub-component
// descent) and 2 (unsafe-constraint linearization), in that tie-break order,
// until a full pass fires nothing new ("monotone fixpoint").
func runFixpoint(ctx *loader.Context, fr *graph.Frame, byNodeID map[int]*loader.TreeConstraints, children map[graph.ComponentIndex]*Result, node *loader.TreeConstraints, obs Observer) {
	for {
		changed := false

		if fireSafeAssignments(ctx, fr) {
			changed = true
		}
		if descendSubComponents(ctx, fr, byNodeID, children, obs) {
			changed = true
		}
		if linearizeUnsafeConstraints(ctx, fr) {
			changed = true
		}

		if obs != nil {
			obs.OnSweep(fr, node.ComponentName, node.TemplateName)
		}

		if !changed {
			return
		}
	}
}

// fireSafeAssignments implements rule 1: once every RHS signal of an active
// safe assignment is fixed, its LHS is fixed too (a compiler-enforced "<=="
// guarantees this), with the concrete value taken straight from the witness.
func fireSafeAssignments(ctx *loader.Context, fr *graph.Frame) bool {
	changed := false
	for idx := range fr.SafeAssignments {
		sa := &fr.SafeAssignments[idx]
		if !sa.Active || fr.IsFixed(sa.LHS) {
			continue
		}
		if !fr.AllFixed(sa.RHS) {
			continue
		}

		fr.MarkFixed(sa.LHS)
		if w, ok := ctx.Witness[sa.LHS]; ok {
			fr.Substitutions = append(fr.Substitutions, field.Substitution{
				Signal:     sa.LHS,
				Expression: field.LinearCombination{field.ConstantCoeffKey: w},
			})
		}
		fr.DeactivateSafeAssignment(graph.SafeAssignmentIndex(idx))
		changed = true
	}
	return changed
}

// linearizeUnsafeConstraints implements rule 2: fold every already-fixed
// signal out of each active unsafe constraint via the frame's accumulated
// substitutions, and fix the sole remaining free signal whenever exactly one
// is left with a non-zero coefficient.
func linearizeUnsafeConstraints(ctx *loader.Context, fr *graph.Frame) bool {
	changed := false
	for idx := range fr.UnsafeConstraints {
		uc := &fr.UnsafeConstraints[idx]
		if !uc.Active {
			continue
		}

		c := ctx.Constraints.Get(uc.AssociatedConstraint).Clone()
		for _, sub := range fr.Substitutions {
			field.ApplySubstitution(&c, sub, ctx.Field)
		}

		lc, ok := linearize(c, ctx.Field)
		if !ok {
			continue
		}

		free := lc.Signals()
		switch len(free) {
		case 0:
			fr.DeactivateUnsafeConstraint(graph.UnsafeConstraintIndex(idx))
			changed = true
		case 1:
			s := free[0]
			fr.MarkFixed(s)
			fr.Substitutions = append(fr.Substitutions, solveSingle(s, lc, ctx.Field))
			fr.DeactivateUnsafeConstraint(graph.UnsafeConstraintIndex(idx))
			changed = true
		default:
			// Still genuinely under-determined this round; leave active.
		}
	}
	return changed
}

// descendSubComponents implements rule 3: once a child's declared inputs are
// all fixed in the parent frame, recursively verify the child, mark every one
// of its output ports fixed in the parent (the child is a black box whose own
// verdict is reported in its Result), and import whatever derivations the
// child found for those outputs.
func descendSubComponents(ctx *loader.Context, fr *graph.Frame, byNodeID map[int]*loader.TreeConstraints, children map[graph.ComponentIndex]*Result, obs Observer) bool {
	changed := false

	for _, compIdx := range fr.SortedComponentIndices() {
		if _, done := children[compIdx]; done {
			continue
		}
		sub := fr.SubComponents[compIdx]

		for s := range sub.NotYetFixedInputs {
			if fr.IsFixed(s) {
				delete(sub.NotYetFixedInputs, s)
			}
		}
		if len(sub.NotYetFixedInputs) > 0 {
			continue
		}

		childNode, ok := byNodeID[int(compIdx)]
		if !ok {
			continue
		}

		inputSubs := collectSubstitutions(fr.Substitutions, sub.InputSignals)
		childResult := verifyNode(ctx, childNode, inputSubs, false, obs)
		children[compIdx] = childResult

		for _, s := range childResult.Frame.OutputSignals() {
			if fr.IsFixed(s) {
				continue
			}
			fr.MarkFixed(s)
			if sub, ok := lastSubstitutionFor(childResult.Frame.Substitutions, s); ok {
				fr.Substitutions = append(fr.Substitutions, sub)
			}
		}
		changed = true
	}

	return changed
}

// lastSubstitutionFor returns the most recently appended substitution for
// signal, if any.
func lastSubstitutionFor(subs []field.Substitution, signal field.SignalIndex) (field.Substitution, bool) {
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].Signal == signal {
			return subs[i], true
		}
	}
	return field.Substitution{}, false
}

// collectSubstitutions returns the subset of subs whose Signal is in wanted,
// last-write-wins (a later substitution for the same signal in an ordered
// list supersedes an earlier one, matching how Frame.Substitutions accrues).
func collectSubstitutions(subs []field.Substitution, wanted map[field.SignalIndex]struct{}) []field.Substitution {
	bySignal := make(map[field.SignalIndex]field.Substitution, len(wanted))
	for _, s := range subs {
		if _, ok := wanted[s.Signal]; ok {
			bySignal[s.Signal] = s
		}
	}
	out := make([]field.Substitution, 0, len(bySignal))
	for _, s := range bySignal {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signal < out[j].Signal })
	return out
}

// buildResult derives a frame's final verdict once its fixpoint has settled.
func buildResult(node *loader.TreeConstraints, fr *graph.Frame, children map[graph.ComponentIndex]*Result) *Result {
	res := &Result{
		ComponentName: node.ComponentName,
		TemplateName:  node.TemplateName,
		NodeID:        node.NodeID,
		Frame:         fr,
	}
	for _, c := range children {
		res.Children = append(res.Children, c)
	}
	sort.Slice(res.Children, func(i, j int) bool { return res.Children[i].NodeID < res.Children[j].NodeID })

	for _, s := range fr.OutputSignals() {
		if !fr.IsFixed(s) {
			res.UnfixedOutputs = append(res.UnfixedOutputs, s)
		}
	}

	switch {
	case len(res.UnfixedOutputs) == 0:
		res.Status = StatusSafe
	case fr.ActiveUnsafeConstraintCount() == 0:
		res.Status = StatusUnsafe
		res.UnsafeReason = UnfixedOutputsAfterPropagation
	default:
		res.Status = StatusPendingExtraction
		for _, uc := range fr.UnsafeConstraints {
			if uc.Active {
				res.ResidualConstraints = append(res.ResidualConstraints, uc.AssociatedConstraint)
			}
		}
	}

	return res
}
