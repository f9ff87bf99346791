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

package optimize

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/palmenros/circuitsafe/internal/extract"
	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/loader"
)

var testPrime, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

func bi(i int64) *big.Int { return big.NewInt(i) }

func TestDetectBooleanSignals(t *testing.T) {
	f := field.New(testPrime)
	store := loader.NewConstraintStore()
	// b0 * (b0 - 1) = 0
	store.Add(field.Constraint{
		A: field.LinearCombination{0: bi(1)},
		B: field.LinearCombination{0: bi(1), field.ConstantCoeffKey: f.Neg(bi(1))},
		C: field.LinearCombination{},
	})
	// not boolean: x * y = 0
	store.Add(field.Constraint{
		A: field.LinearCombination{1: bi(1)},
		B: field.LinearCombination{2: bi(1)},
		C: field.LinearCombination{},
	})

	booleans := DetectBooleanSignals(store, f)
	require.True(t, booleans[0])
	require.False(t, booleans[1])
	require.False(t, booleans[2])
}

func TestBuildObligationMarksTimeoutWhenOverGuard(t *testing.T) {
	ctx := &loader.Context{
		Field:   field.New(testPrime),
		Witness: loader.Witness{0: bi(1), 1: bi(0)},
	}
	sys := &extract.System{
		ComponentName: "main",
		TemplateName:  "Wide",
		FreeSignals:   []field.SignalIndex{0, 1},
		SignalsToFix:  []field.SignalIndex{0, 1},
	}
	booleans := map[field.SignalIndex]bool{0: true} // signal 1 is non-boolean: costs 2 vars

	obligations := Build(ctx, []*extract.System{sys}, booleans, 1) // guard of 1 forces preemption
	require.Len(t, obligations, 1)
	require.True(t, obligations[0].Preempted)
	require.Equal(t, 3, obligations[0].VariableCount) // 1 (boolean) + 2 (non-boolean)
}

func TestBuildSkipsSystemWithNoSignalsToFix(t *testing.T) {
	ctx := &loader.Context{
		Field:   field.New(testPrime),
		Witness: loader.Witness{0: bi(1)},
	}
	sys := &extract.System{
		ComponentName: "main",
		TemplateName:  "NothingToProve",
		Constraints: []field.Constraint{{
			A: field.LinearCombination{0: bi(1)},
			B: field.LinearCombination{0: bi(1)},
			C: field.LinearCombination{0: bi(-1)},
		}},
		FreeSignals: []field.SignalIndex{0},
	}
	booleans := map[field.SignalIndex]bool{}

	obligations := Build(ctx, []*extract.System{sys}, booleans, DefaultMaxVars)
	require.Empty(t, obligations)
}

func TestScriptSkipsPreemptedObligations(t *testing.T) {
	ctx := &loader.Context{
		Field:   field.New(testPrime),
		Witness: loader.Witness{0: bi(1)},
	}
	sys := &extract.System{
		ComponentName: "main",
		TemplateName:  "Single",
		Constraints: []field.Constraint{{
			A: field.LinearCombination{0: bi(1)},
			B: field.LinearCombination{0: bi(1)},
			C: field.LinearCombination{0: bi(-1)},
		}},
		FreeSignals:  []field.SignalIndex{0},
		SignalsToFix: []field.SignalIndex{0},
	}
	booleans := map[field.SignalIndex]bool{}

	obligations := Build(ctx, []*extract.System{sys}, booleans, DefaultMaxVars)
	require.Len(t, obligations, 1)
	require.False(t, obligations[0].Preempted)
	obligations = append(obligations, &Obligation{ComponentName: "main", TemplateName: "Wide", Preempted: true})

	script, submitted, err := Script(ctx, obligations, 5)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	require.True(t, strings.Contains(script, "FINISHED"))
	require.True(t, strings.Contains(script, "OK: 0"))
	require.True(t, strings.Contains(script, "u0"))
}
