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
	"strconv"

	"github.com/palmenros/circuitsafe/internal/field"
)

// parseConstraintList reads circuit_constraints.json: an object with a
// "constraints" array of 3-element arrays, each element an object mapping
// stringified signal index (sentinel "0" = constant term) to a base-10
// integer string.
func parseConstraintList(path string) (*ConstraintStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrSchema, path, err)
	}

	var doc struct {
		Constraints []json.RawMessage `json:"constraints"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid constraints document: %v", ErrSchema, path, err)
	}
	if doc.Constraints == nil {
		return nil, fmt.Errorf("%w: %s: main object does not contain a constraints array", ErrSchema, path)
	}

	store := NewConstraintStore()

	for i, rawConstraint := range doc.Constraints {
		var triple [3]map[string]string
		if err := json.Unmarshal(rawConstraint, &triple); err != nil {
			return nil, fmt.Errorf("%w: constraint %d: expected a 3-element array of objects: %v", ErrSchema, i, err)
		}

		lcs := make([]field.LinearCombination, 3)
		for side, m := range triple {
			lc, err := parseLinearCombination(m)
			if err != nil {
				return nil, fmt.Errorf("%w: constraint %d, side %d: %v", ErrSchema, i, side, err)
			}
			lcs[side] = lc
		}

		store.Add(field.Constraint{A: lcs[0], B: lcs[1], C: lcs[2]})
	}

	return store, nil
}

func parseLinearCombination(m map[string]string) (field.LinearCombination, error) {
	lc := make(field.LinearCombination, len(m))
	for k, v := range m {
		coeff, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("coefficient %q is not a base-10 integer", v)
		}

		if k == "0" {
			lc[field.ConstantCoeffKey] = coeff
			continue
		}

		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("signal key %q is not an integer: %w", k, err)
		}
		lc[field.SignalIndex(id)] = coeff
	}
	return lc, nil
}
