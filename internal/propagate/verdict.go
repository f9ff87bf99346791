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
	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/graph"
)

// Status is the per-frame outcome of propagation alone, before any residual
// polynomial system reaches the extractor/CAS stage.
type Status int

const (
	// StatusSafe means every output of the frame was fixed by propagation
	// alone; no further algebraic check is needed.
	StatusSafe Status = iota
	// StatusUnsafe means propagation reached a fixpoint with unfixed
	// outputs and no remaining active unsafe constraint could possibly fix
	// them further: the module is definitely under-constrained.
	StatusUnsafe
	// StatusPendingExtraction means propagation reached a fixpoint with
	// unfixed outputs while some unsafe constraints are still active
	// (whether or not they touch those outputs): whether the module is safe
	// depends on the Gröbner-basis check the
	// extract/optimize/cas pipeline performs over those residual
	// constraints.
	StatusPendingExtraction
)

// UnsafeReason names why a StatusUnsafe verdict was reached.
type UnsafeReason string

// UnfixedOutputsAfterPropagation is the only reason propagation alone ever
// reports: the frame's own output signals never entered the fixed set, and
// no active unsafe constraint remained that could still pin them down.
const UnfixedOutputsAfterPropagation UnsafeReason = "unfixed outputs after propagation, no residual constraints could fix them"

// Result is one frame's propagation outcome, with its children's outcomes
// nested so the whole component tree can be folded by the report package
// without re-walking loader.TreeConstraints.
type Result struct {
	ComponentName string
	TemplateName  string
	NodeID        int

	Frame *graph.Frame

	Status       Status
	UnsafeReason UnsafeReason

	UnfixedOutputs []field.SignalIndex

	// ResidualConstraints are the AssociatedConstraint indices still active
	// when propagation reached its fixpoint; empty unless Status is
	// StatusPendingExtraction.
	ResidualConstraints []int

	Children []*Result
}
