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

// Package propagate implements the monotone fixed-signal propagation
// fixpoint: starting from a frame's declared inputs, it repeatedly fires
// safe assignments, linearizes unsafe constraints and descends into
// sub-components, until no further signal can be proven uniquely determined.
//
// Propagation reasons about the one supplied witness only (weak safety):
// root inputs and fired safe assignments are substituted with their witness
// values, and rule 2 solves constraints after those substitutions. No part
// of this package argues about other witnesses.
package propagate

import (
	"github.com/palmenros/circuitsafe/internal/graph"
	"github.com/palmenros/circuitsafe/internal/loader"
)

// toTreeNode adapts a loader.TreeConstraints into the graph package's
// dependency-free view, so graph.Build never has to import loader.
func toTreeNode(t *loader.TreeConstraints) *graph.TreeNode {
	n := &graph.TreeNode{
		NodeID:            t.NodeID,
		TemplateName:      t.TemplateName,
		ComponentName:     t.ComponentName,
		NumberInputs:      t.NumberInputs,
		NumberOutputs:     t.NumberOutputs,
		NumberSignals:     t.NumberSignals,
		InitialSignal:     t.InitialSignal,
		InitialConstraint: t.InitialConstraint,
		NoConstraints:     t.NoConstraints,
	}
	for _, da := range t.AreDoubleArrow {
		n.AreDoubleArrow = append(n.AreDoubleArrow, graph.DoubleArrowRef{
			ConstraintID: da.ConstraintID,
			SignalID:     da.SignalID,
		})
	}
	for _, child := range t.Subcomponents {
		n.Subcomponents = append(n.Subcomponents, toTreeNode(child))
	}
	return n
}
