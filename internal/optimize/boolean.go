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

// Package optimize turns the extractor's residual polynomial systems into a
// single CocoaL5 script: it tags boolean signals, strips trivial
// constraints, encodes each obligation's prohibition polynomial via the
// Rabinowitsch trick, and enforces the variable-count guard. A system with
// no signals left to fix is discharged without ever becoming an
// Obligation: its prohibition polynomial would be the empty product, i.e.
// already the unit ideal member 1, so there is nothing left to ask the CAS.
package optimize

import (
	"math/big"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/loader"
)

// one is the shared big.Int literal 1, reused across every boolean check.
var one = big.NewInt(1)

// DetectBooleanSignals scans every constraint in store for the shape
// x*(x-1) = 0 (A and B may be swapped) and returns the set of signals it
// tags is_boolean.
func DetectBooleanSignals(store *loader.ConstraintStore, f field.Field) map[field.SignalIndex]bool {
	booleans := make(map[field.SignalIndex]bool)
	for i := 0; i < store.Len(); i++ {
		c := store.Get(i)
		if len(c.C) != 0 {
			continue
		}
		if s, ok := booleanSide(c.A, c.B, f); ok {
			booleans[s] = true
			continue
		}
		if s, ok := booleanSide(c.B, c.A, f); ok {
			booleans[s] = true
		}
	}
	return booleans
}

// booleanSide reports whether unit is exactly {s: 1} and offset is exactly
// {s: 1, const: c} with f.Neg(c) == 1, i.e. unit*offset encodes x*(x-1).
func booleanSide(unit, offset field.LinearCombination, f field.Field) (field.SignalIndex, bool) {
	unitSignals := unit.Signals()
	if len(unitSignals) != 1 || len(unit) != 1 {
		return 0, false
	}
	s := unitSignals[0]
	if unit[s].Cmp(one) != 0 {
		return 0, false
	}

	offsetSignals := offset.Signals()
	if len(offsetSignals) != 1 || offsetSignals[0] != s || len(offset) != 2 {
		return 0, false
	}
	if offset[s].Cmp(one) != 0 {
		return 0, false
	}
	constant, ok := offset[field.ConstantCoeffKey]
	if !ok || f.Neg(constant).Cmp(one) != 0 {
		return 0, false
	}

	return s, true
}
