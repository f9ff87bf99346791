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

import "github.com/palmenros/circuitsafe/internal/field"

// ConstraintStore holds every R1CS constraint exactly once, referenced by
// index from frames across the whole component tree ("Constraints
// are stored once, globally, and referenced by index").
type ConstraintStore struct {
	constraints []field.Constraint
}

// NewConstraintStore returns an empty store.
func NewConstraintStore() *ConstraintStore {
	return &ConstraintStore{}
}

// Add appends c and returns its stable index.
func (s *ConstraintStore) Add(c field.Constraint) int {
	s.constraints = append(s.constraints, c)
	return len(s.constraints) - 1
}

// Get returns the constraint at idx.
func (s *ConstraintStore) Get(idx int) field.Constraint {
	return s.constraints[idx]
}

// Len returns the number of stored constraints.
func (s *ConstraintStore) Len() int {
	return len(s.constraints)
}
