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

package extract

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/loader"
	"github.com/palmenros/circuitsafe/internal/propagate"
)

var testPrime, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

func bi(i int64) *big.Int { return big.NewInt(i) }

// A single quadratic self-constraint over the lone output forms one
// connected component: one constraint node, one signal node, one edge —
// a tree, so no cycle exception, and the output belongs in signals_to_fix.
func TestFrameSingleComponentNoCycle(t *testing.T) {
	store := loader.NewConstraintStore()
	store.Add(field.Constraint{
		A: field.LinearCombination{0: bi(1)},
		B: field.LinearCombination{0: bi(1)},
		C: field.LinearCombination{0: bi(-1)},
	})

	tree := &loader.TreeConstraints{
		NodeID:            0,
		ComponentName:     "main",
		TemplateName:      "Idempotent",
		NumberOutputs:     1,
		NumberSignals:     1,
		NoConstraints:     1,
		InitialConstraint: 0,
	}
	ctx := &loader.Context{
		Field:           field.New(testPrime),
		Witness:         loader.Witness{0: bi(1)},
		TreeConstraints: tree,
		Constraints:     store,
	}

	res := propagate.Verify(ctx)
	require.Equal(t, propagate.StatusPendingExtraction, res.Status)

	systems, exceptions := All(ctx, res)
	require.Empty(t, exceptions)
	require.Len(t, systems, 1)
	require.Equal(t, []field.SignalIndex{0}, systems[0].FreeSignals)
	require.Equal(t, []field.SignalIndex{0}, systems[0].SignalsToFix)
}

// Two residual constraints that each reference the same fixed input signal,
// alongside their own distinct unfixed output, must NOT be unioned into one
// connected component through that shared fixed signal: each output is its
// own tree, and the fixed input never leaks into either System's free
// signals.
func TestFrameFixedSignalDoesNotConnectComponents(t *testing.T) {
	store := loader.NewConstraintStore()
	// out0*out0 - in = 0
	store.Add(field.Constraint{
		A: field.LinearCombination{0: bi(1)},
		B: field.LinearCombination{0: bi(1)},
		C: field.LinearCombination{2: bi(-1)},
	})
	// out1*out1 - in = 0
	store.Add(field.Constraint{
		A: field.LinearCombination{1: bi(1)},
		B: field.LinearCombination{1: bi(1)},
		C: field.LinearCombination{2: bi(-1)},
	})

	tree := &loader.TreeConstraints{
		NodeID:            0,
		ComponentName:     "main",
		TemplateName:      "SharedFixedInput",
		NumberOutputs:     2,
		NumberInputs:      1,
		NumberSignals:     3,
		NoConstraints:     2,
		InitialConstraint: 0,
	}
	ctx := &loader.Context{
		Field:           field.New(testPrime),
		Witness:         loader.Witness{0: bi(2), 1: bi(3), 2: bi(4)},
		TreeConstraints: tree,
		Constraints:     store,
	}

	res := propagate.Verify(ctx)
	require.Equal(t, propagate.StatusPendingExtraction, res.Status)

	systems, exceptions := All(ctx, res)
	require.Empty(t, exceptions)
	require.Len(t, systems, 2)
	for _, sys := range systems {
		require.Len(t, sys.FreeSignals, 1)
		require.NotEqual(t, field.SignalIndex(2), sys.FreeSignals[0])
	}
}

// Two constraints sharing the same three signals form cycles in the
// incidence graph (3 signal nodes + 2 constraint nodes, 6 edges > 4), so
// extraction must report the cycle exception instead of a System.
func TestFrameCycleIsException(t *testing.T) {
	store := loader.NewConstraintStore()
	// x*y - out = 0, and a second, redundant-looking constraint over the
	// same pair so the two constraints and two signals form a 4-cycle.
	store.Add(field.Constraint{
		A: field.LinearCombination{1: bi(1)},
		B: field.LinearCombination{2: bi(1)},
		C: field.LinearCombination{0: bi(-1)},
	})
	store.Add(field.Constraint{
		A: field.LinearCombination{1: bi(1)},
		B: field.LinearCombination{2: bi(1)},
		C: field.LinearCombination{0: bi(-1), field.ConstantCoeffKey: bi(0)},
	})

	tree := &loader.TreeConstraints{
		NodeID:            0,
		ComponentName:     "main",
		TemplateName:      "Mul",
		NumberInputs:      0,
		NumberOutputs:     3,
		NumberSignals:     3,
		NoConstraints:     2,
		InitialConstraint: 0,
	}
	ctx := &loader.Context{
		Field:           field.New(testPrime),
		Witness:         loader.Witness{0: bi(6), 1: bi(2), 2: bi(3)},
		TreeConstraints: tree,
		Constraints:     store,
	}

	res := propagate.Verify(ctx)
	require.Equal(t, propagate.StatusPendingExtraction, res.Status)

	systems, exceptions := All(ctx, res)
	require.Empty(t, systems)
	require.Len(t, exceptions, 1)
	require.Equal(t, NoUnsafeConstraintConnectedComponentWithoutCycles, exceptions[0].Reason)
}
