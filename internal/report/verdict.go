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

// Package report folds a run's propagation tree, residual extraction
// exceptions and CAS verdicts into a single overall verdict, prints it
// human-readably, and persists it as a CBOR artifact.
package report

import (
	"github.com/palmenros/circuitsafe/internal/cas"
	"github.com/palmenros/circuitsafe/internal/extract"
	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/optimize"
	"github.com/palmenros/circuitsafe/internal/propagate"
)

// FindingKind distinguishes the three verification-finding shapes the tree
// fold can surface: an unsafe module, an extraction exception, and a failed
// CAS obligation.
type FindingKind int

const (
	FindingModuleUnsafe FindingKind = iota
	FindingException
	FindingObligationFailed
)

// Finding is one problem the run surfaced, tagged with enough context to
// print and to group by containing component.
type Finding struct {
	Kind          FindingKind
	ComponentName string
	TemplateName  string
	NodeID        int

	UnsafeReason    propagate.UnsafeReason  `cbor:",omitempty"`
	UnfixedOutputs  []field.SignalIndex     `cbor:",omitempty"`
	ExceptionReason extract.ExceptionReason `cbor:",omitempty"`

	// ObligationVerdict is set only for FindingObligationFailed: "ERROR" or
	// "TIMEOUT", matching the CAS protocol line it came from.
	ObligationVerdict string `cbor:",omitempty"`
}

// Report is the whole run's outcome: the complete set of findings plus a
// single overall pass/fail verdict. Every problem the run found is reported,
// not only the first.
type Report struct {
	SchemaVersion string

	Safe           bool
	CASUnavailable bool

	Findings []Finding
}

// Flatten walks the propagation result tree and the extractor's exceptions,
// then folds in one finding per ERROR or TIMEOUT verdict of the CAS driver,
// tagged with the obligation's originating component rather than a bare
// submission index (Summary groups those findings by component).
// casResult and submitted may both be nil when no residual obligation was
// ever submitted (every frame resolved during propagation).
func Flatten(res *propagate.Result, exceptions []extract.Exception, casUnavailable bool, casResult *cas.Result, submitted []*optimize.Obligation) *Report {
	r := &Report{SchemaVersion: SchemaVersion.String(), CASUnavailable: casUnavailable}

	flattenTree(res, r)
	for _, e := range exceptions {
		r.Findings = append(r.Findings, Finding{
			Kind:            FindingException,
			ComponentName:   e.ComponentName,
			TemplateName:    e.TemplateName,
			ExceptionReason: e.Reason,
		})
	}

	if casResult != nil {
		for _, idx := range casResult.ManySolutions() {
			r.Findings = append(r.Findings, obligationFinding(submitted, idx, "ERROR"))
		}
		for _, idx := range casResult.TimedOut() {
			r.Findings = append(r.Findings, obligationFinding(submitted, idx, "TIMEOUT"))
		}
	}

	r.Safe = !casUnavailable && len(r.Findings) == 0
	return r
}

func obligationFinding(submitted []*optimize.Obligation, idx int, verdict string) Finding {
	f := Finding{Kind: FindingObligationFailed, ObligationVerdict: verdict}
	if idx >= 0 && idx < len(submitted) {
		f.ComponentName = submitted[idx].ComponentName
		f.TemplateName = submitted[idx].TemplateName
	}
	return f
}

func flattenTree(res *propagate.Result, r *Report) {
	if res == nil {
		return
	}
	if res.Status == propagate.StatusUnsafe {
		r.Findings = append(r.Findings, Finding{
			Kind:           FindingModuleUnsafe,
			ComponentName:  res.ComponentName,
			TemplateName:   res.TemplateName,
			NodeID:         res.NodeID,
			UnsafeReason:   res.UnsafeReason,
			UnfixedOutputs: res.UnfixedOutputs,
		})
	}
	for _, child := range res.Children {
		flattenTree(child, r)
	}
}
