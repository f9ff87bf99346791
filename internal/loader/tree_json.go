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

package loader

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/palmenros/circuitsafe/internal/field"
)

// treeJSON mirrors the on-disk shape of circuit_treeconstraints.json
//: { field, no_constraints, initial_constraint, node_id,
// template_name, component_name, number_inputs, number_outputs,
// number_signals, initial_signal, are_double_arrow: [[cid, sid], ...],
// subcomponents: [...] }. "field" (the prime, as a base-10 string) is only
// ever present on the root document.
type treeJSON struct {
	Field             *string    `json:"field"`
	NoConstraints     int        `json:"no_constraints"`
	InitialConstraint int        `json:"initial_constraint"`
	NodeID            int        `json:"node_id"`
	TemplateName      string     `json:"template_name"`
	ComponentName     string     `json:"component_name"`
	NumberInputs      int        `json:"number_inputs"`
	NumberOutputs     int        `json:"number_outputs"`
	NumberSignals     int        `json:"number_signals"`
	InitialSignal     int        `json:"initial_signal"`
	AreDoubleArrow    [][2]int   `json:"are_double_arrow"`
	Subcomponents     []treeJSON `json:"subcomponents"`
}

// parseTreeConstraints reads circuit_treeconstraints.json and returns the
// root TreeConstraints along with the field prime named at the root.
func parseTreeConstraints(path string) (*TreeConstraints, *big.Int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s: %v", ErrSchema, path, err)
	}

	var doc treeJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %s is not a valid tree-constraints document: %v", ErrSchema, path, err)
	}

	if doc.Field == nil {
		return nil, nil, fmt.Errorf("%w: %s: root document is missing the \"field\" prime", ErrSchema, path)
	}
	prime, ok := new(big.Int).SetString(*doc.Field, 10)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s: \"field\" value %q is not a base-10 integer", ErrSchema, path, *doc.Field)
	}

	root, err := doc.toTreeConstraints(path)
	if err != nil {
		return nil, nil, err
	}

	if err := root.checkInvariants(path); err != nil {
		return nil, nil, err
	}
	root.FieldPrime = prime

	return root, prime, nil
}

func (t treeJSON) toTreeConstraints(path string) (*TreeConstraints, error) {
	out := &TreeConstraints{
		NoConstraints:     t.NoConstraints,
		InitialConstraint: t.InitialConstraint,
		NodeID:            t.NodeID,
		TemplateName:      t.TemplateName,
		ComponentName:     t.ComponentName,
		NumberInputs:      t.NumberInputs,
		NumberOutputs:     t.NumberOutputs,
		NumberSignals:     t.NumberSignals,
		InitialSignal:     t.InitialSignal,
	}

	for _, pair := range t.AreDoubleArrow {
		out.AreDoubleArrow = append(out.AreDoubleArrow, DoubleArrow{
			ConstraintID: pair[0],
			SignalID:     field.SignalIndex(pair[1]),
		})
	}

	for _, childJSON := range t.Subcomponents {
		child, err := childJSON.toTreeConstraints(path)
		if err != nil {
			return nil, err
		}
		out.Subcomponents = append(out.Subcomponents, child)
	}

	return out, nil
}

// checkInvariants enforces the sub-component frame invariant:
// number_signals = number_inputs + number_outputs + number_intermediates,
// and that child signal/constraint ranges nest within the parent's.
func (t *TreeConstraints) checkInvariants(path string) error {
	if t.NumberIntermediates() < 0 {
		return fmt.Errorf("%w: %s: component %q has number_signals < number_inputs+number_outputs", ErrSchema, path, t.ComponentName)
	}

	parentSignalEnd := t.InitialSignal + t.NumberSignals
	parentConstraintEnd := t.InitialConstraint + t.NoConstraints

	for _, child := range t.Subcomponents {
		childSignalEnd := child.InitialSignal + child.NumberSignals
		if child.InitialSignal < t.InitialSignal || childSignalEnd > parentSignalEnd {
			return fmt.Errorf("%w: %s: subcomponent %q signal range [%d,%d) escapes parent %q range [%d,%d)",
				ErrSchema, path, child.ComponentName, child.InitialSignal, childSignalEnd,
				t.ComponentName, t.InitialSignal, parentSignalEnd)
		}
		childConstraintEnd := child.InitialConstraint + child.NoConstraints
		if child.InitialConstraint < t.InitialConstraint || childConstraintEnd > parentConstraintEnd {
			return fmt.Errorf("%w: %s: subcomponent %q constraint range [%d,%d) escapes parent %q range [%d,%d)",
				ErrSchema, path, child.ComponentName, child.InitialConstraint, childConstraintEnd,
				t.ComponentName, t.InitialConstraint, parentConstraintEnd)
		}
		if err := child.checkInvariants(path); err != nil {
			return err
		}
	}

	return nil
}
