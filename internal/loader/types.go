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

// Package loader parses the four artifacts circuitsafe consumes from a
// circuit's output directory: circuit_constraints.json, witness.json,
// circuit_signals.sym and circuit_treeconstraints.json.
package loader

import (
	"errors"
	"math/big"

	"github.com/palmenros/circuitsafe/internal/field"
)

// ErrSchema classifies any malformed-input failure ("Schema
// error... surfaces immediately as fatal").
var ErrSchema = errors.New("circuitsafe: schema error")

// DoubleArrow names one (constraint, lhs signal) pair marked as a safe
// assignment in the tree, i.e. one entry of TreeConstraints.AreDoubleArrow.
type DoubleArrow struct {
	ConstraintID int
	SignalID     field.SignalIndex
}

// TreeConstraints is the recursive sub-component frame description decoded
// from circuit_treeconstraints.json.
type TreeConstraints struct {
	FieldPrime       *big.Int // only present at the root; set by parseTreeConstraints
	NoConstraints    int
	InitialConstraint int
	NodeID           int
	TemplateName     string
	ComponentName    string
	NumberInputs     int
	NumberOutputs    int
	NumberSignals    int
	InitialSignal    int
	AreDoubleArrow   []DoubleArrow
	Subcomponents    []*TreeConstraints
}

// NumberIntermediates derives the intermediate-signal count from the
// invariant number_signals = number_inputs + number_outputs + number_intermediates
//.
func (t *TreeConstraints) NumberIntermediates() int {
	return t.NumberSignals - t.NumberInputs - t.NumberOutputs
}

// Witness maps a signal index to its concrete field value.
type Witness map[field.SignalIndex]*big.Int

// SymbolTable maps a signal index to its qualified, dot-separated name with
// the leading "main." component prefix stripped.
type SymbolTable map[field.SignalIndex]string

// Context is the immutable global context view produced by Load: witness,
// symbol table, component tree and field prime, plus the mutable
// constraint store ("global context view").
type Context struct {
	Field           field.Field
	Witness         Witness
	Symbols         SymbolTable
	TreeConstraints *TreeConstraints
	Constraints     *ConstraintStore
}
