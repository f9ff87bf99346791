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
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/graph"
	"github.com/palmenros/circuitsafe/internal/loader"
)

// chainCircuit builds an unbroken safe-assignment path of length n: the
// declared output (signal 0) is derived from signal n, which is derived from
// signal n-1, and so on down to the declared input (signal n, at n == 1).
// Every generated instance fully propagates to StatusSafe, which is exactly
// what the properties below need: a family of frames of varying size to
// range sweep behaviour over, not an adversarial one.
func chainCircuit(n int, value int64) *loader.Context {
	store := loader.NewConstraintStore()
	var arrows []loader.DoubleArrow

	link := func(lhs, rhs field.SignalIndex) {
		cid := store.Add(field.Constraint{
			A: field.LinearCombination{},
			B: field.LinearCombination{},
			C: field.LinearCombination{lhs: bi(1), rhs: bi(-1)},
		})
		arrows = append(arrows, loader.DoubleArrow{ConstraintID: cid, SignalID: lhs})
	}

	for i := n; i > 1; i-- {
		link(field.SignalIndex(i), field.SignalIndex(i-1))
	}
	link(0, field.SignalIndex(n))

	witness := make(loader.Witness, n+1)
	symbols := make(loader.SymbolTable, n+1)
	for i := 0; i <= n; i++ {
		witness[field.SignalIndex(i)] = bi(value)
		symbols[field.SignalIndex(i)] = "s"
	}

	tree := &loader.TreeConstraints{
		NodeID:            0,
		ComponentName:     "main",
		TemplateName:      "Chain",
		NumberInputs:      1,
		NumberOutputs:     1,
		NumberSignals:     n + 1,
		InitialSignal:     0,
		InitialConstraint: 0,
		NoConstraints:     n,
		AreDoubleArrow:    arrows,
	}

	return &loader.Context{
		Field:           field.New(testPrime),
		Witness:         witness,
		Symbols:         symbols,
		TreeConstraints: tree,
		Constraints:     store,
	}
}

type sweepSnapshot struct {
	fixed  int
	active int
}

func collectSweeps(ctx *loader.Context) []sweepSnapshot {
	var snaps []sweepSnapshot
	obs := ObserverFunc(func(fr *graph.Frame, _, _ string) {
		snaps = append(snaps, sweepSnapshot{fixed: countFixed(fr), active: countActiveSafeAssignments(fr)})
	})
	VerifyWithObserver(ctx, obs)
	return snaps
}

func countFixed(fr *graph.Frame) int {
	n := 0
	for i := 0; i <= fr.MaxSignal; i++ {
		if fr.IsFixed(field.SignalIndex(i)) {
			n++
		}
	}
	return n
}

func countActiveSafeAssignments(fr *graph.Frame) int {
	n := 0
	for _, sa := range fr.SafeAssignments {
		if sa.Active {
			n++
		}
	}
	return n
}

func TestPropagationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("fixed-signal count never decreases and active safe-assignment count never increases across sweeps", prop.ForAll(
		func(n int) bool {
			snaps := collectSweeps(chainCircuit(n, 7))
			for i := 1; i < len(snaps); i++ {
				if snaps[i].fixed < snaps[i-1].fixed {
					return false
				}
				if snaps[i].active > snaps[i-1].active {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 16),
	))

	properties.Property("re-running the fixpoint once it has settled changes nothing", prop.ForAll(
		func(n int) bool {
			ctx := chainCircuit(n, 3)
			res := Verify(ctx)
			fr := res.Frame

			beforeFixed := countFixed(fr)
			beforeActive := countActiveSafeAssignments(fr)

			runFixpoint(ctx, fr, map[int]*loader.TreeConstraints{}, map[graph.ComponentIndex]*Result{}, ctx.TreeConstraints, nil)

			return countFixed(fr) == beforeFixed && countActiveSafeAssignments(fr) == beforeActive
		},
		gen.IntRange(1, 16),
	))

	properties.Property("declared inputs are fixed as soon as the frame is built, before any sweep runs", prop.ForAll(
		func(n int) bool {
			ctx := chainCircuit(n, 11)
			fr := graph.Build(toTreeNode(ctx.TreeConstraints), ctx.Constraints.Get, ctx.Field)
			for _, s := range fr.InputSignals() {
				if !fr.IsFixed(s) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 16),
	))

	properties.Property("a safe assignment is inactive only once its LHS is fixed", prop.ForAll(
		func(n int) bool {
			ctx := chainCircuit(n, 5)
			res := Verify(ctx)
			fr := res.Frame
			for _, sa := range fr.SafeAssignments {
				if !sa.Active && !fr.IsFixed(sa.LHS) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 16),
	))

	properties.TestingRun(t)
}

// TestSafeAssignmentRemainsActiveWhileRHSUnfixed covers the converse half of
// safe-assignment soundness: chainCircuit always fully resolves, so every one
// of its safe assignments ends up inactive, and the property above alone
// never exercises the "still active" branch. free is never linked to
// anything, so it never becomes fixed and the assignment defining dangling
// must stay active.
func TestSafeAssignmentRemainsActiveWhileRHSUnfixed(t *testing.T) {
	store := loader.NewConstraintStore()
	// dangling(1) <== free(2), but free is never constrained by anything else.
	cid := store.Add(field.Constraint{
		A: field.LinearCombination{},
		B: field.LinearCombination{},
		C: field.LinearCombination{1: bi(1), 2: bi(-1)},
	})

	tree := &loader.TreeConstraints{
		NodeID:            0,
		ComponentName:     "main",
		TemplateName:      "Dangling",
		NumberInputs:      0,
		NumberOutputs:     1,
		NumberSignals:     3,
		InitialSignal:     0,
		InitialConstraint: 0,
		NoConstraints:     1,
		AreDoubleArrow:    []loader.DoubleArrow{{ConstraintID: cid, SignalID: 1}},
	}

	ctx := &loader.Context{
		Field:           field.New(testPrime),
		Witness:         loader.Witness{0: bi(1)},
		Symbols:         loader.SymbolTable{0: "out", 1: "dangling", 2: "free"},
		TreeConstraints: tree,
		Constraints:     store,
	}

	res := Verify(ctx)
	fr := res.Frame

	if fr.IsFixed(2) {
		t.Fatalf("signal 2 (free) was never constrained and must not become fixed")
	}
	found := false
	for _, sa := range fr.SafeAssignments {
		if sa.LHS != 1 {
			continue
		}
		found = true
		if !sa.Active {
			t.Fatalf("safe assignment for signal 1 should still be active: its RHS signal 2 never fixes")
		}
		if fr.IsFixed(sa.LHS) {
			t.Fatalf("signal 1 should not be fixed while its defining safe assignment is still active")
		}
	}
	if !found {
		t.Fatalf("expected a safe assignment with LHS == 1")
	}
}
