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
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/loader"
)

var testPrime, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

func bi(i int64) *big.Int { return big.NewInt(i) }

// S1: out <== x + y, a straightforward safe assignment. Every output gets
// fixed by rule 1 alone.
func TestVerifySafeAssignmentResolvesOutput(t *testing.T) {
	// out(0) - x(1) - y(2) = 0, marked as the safe assignment defining out.
	store := loader.NewConstraintStore()
	cid := store.Add(field.Constraint{
		A: field.LinearCombination{},
		B: field.LinearCombination{},
		C: field.LinearCombination{0: bi(1), 1: bi(-1), 2: bi(-1)},
	})

	tree := &loader.TreeConstraints{
		NodeID:            0,
		ComponentName:     "main",
		TemplateName:      "Add",
		NumberInputs:      2,
		NumberOutputs:     1,
		NumberSignals:     3,
		InitialSignal:     0,
		InitialConstraint: 0,
		NoConstraints:     1,
		AreDoubleArrow:    []loader.DoubleArrow{{ConstraintID: cid, SignalID: 0}},
	}

	ctx := &loader.Context{
		Field:           field.New(testPrime),
		Witness:         loader.Witness{0: bi(7), 1: bi(3), 2: bi(4)},
		Symbols:         loader.SymbolTable{0: "out", 1: "x", 2: "y"},
		TreeConstraints: tree,
		Constraints:     store,
	}

	res := Verify(ctx)
	require.Equal(t, StatusSafe, res.Status)
	require.Empty(t, res.UnfixedOutputs)
	require.True(t, res.Frame.IsFixed(0))
}

// S2: out is declared an output but never constrained at all -> definitely
// under-constrained, no residual constraint could ever fix it.
func TestVerifyUnconstrainedOutputIsUnsafe(t *testing.T) {
	store := loader.NewConstraintStore()
	// An unrelated constraint over x alone, just so the circuit isn't empty.
	store.Add(field.Constraint{
		A: field.LinearCombination{},
		B: field.LinearCombination{},
		C: field.LinearCombination{1: bi(1), field.ConstantCoeffKey: bi(-3)},
	})

	tree := &loader.TreeConstraints{
		NodeID:            0,
		ComponentName:     "main",
		TemplateName:      "Dangling",
		NumberInputs:      1,
		NumberOutputs:     1,
		NumberSignals:     2,
		InitialSignal:     0,
		InitialConstraint: 0,
		NoConstraints:     1,
		AreDoubleArrow:    nil,
	}

	ctx := &loader.Context{
		Field:           field.New(testPrime),
		Witness:         loader.Witness{0: bi(99), 1: bi(3)},
		Symbols:         loader.SymbolTable{0: "out", 1: "x"},
		TreeConstraints: tree,
		Constraints:     store,
	}

	res := Verify(ctx)
	require.Equal(t, StatusUnsafe, res.Status)
	require.Equal(t, UnfixedOutputsAfterPropagation, res.UnsafeReason)
	require.Equal(t, []field.SignalIndex{0}, res.UnfixedOutputs)
}

// S3: out*out - out = 0 is the only constraint touching out: genuinely
// quadratic in an unfixed signal, so it can never linearize. Propagation
// alone cannot resolve it, but the constraint stays active, so the verdict
// must defer to the extractor/CAS stage rather than declare it unsafe.
func TestVerifyQuadraticSelfConstraintDefersToExtraction(t *testing.T) {
	store := loader.NewConstraintStore()
	cid := store.Add(field.Constraint{
		A: field.LinearCombination{0: bi(1)},
		B: field.LinearCombination{0: bi(1)},
		C: field.LinearCombination{0: bi(-1)},
	})

	tree := &loader.TreeConstraints{
		NodeID:            0,
		ComponentName:     "main",
		TemplateName:      "Idempotent",
		NumberInputs:      0,
		NumberOutputs:     1,
		NumberSignals:     1,
		InitialSignal:     0,
		InitialConstraint: 0,
		NoConstraints:     1,
		AreDoubleArrow:    nil,
	}

	ctx := &loader.Context{
		Field:           field.New(testPrime),
		Witness:         loader.Witness{0: bi(1)},
		Symbols:         loader.SymbolTable{0: "out"},
		TreeConstraints: tree,
		Constraints:     store,
	}

	res := Verify(ctx)
	require.Equal(t, StatusPendingExtraction, res.Status)
	require.Equal(t, []int{cid}, res.ResidualConstraints)
}
