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
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/palmenros/circuitsafe/internal/extract"
	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/loader"
)

// DefaultMaxVars is the prohibition-polynomial variable soft limit, and the
// CLI default for -m/--maxvars.
const DefaultMaxVars = 75

// Factor is one signal's prohibition factor p_s.
type Factor struct {
	Signal  field.SignalIndex
	Boolean bool
	Witness *big.Int
	VarName string
	AuxName string // only set when !Boolean
}

// Obligation is one connected component's ideal-membership proof obligation:
// "1 ∈ I(C ∪ {P})".
type Obligation struct {
	ComponentName string
	TemplateName  string

	RingVars    []string
	Constraints []field.Constraint
	Factors     []Factor

	VariableCount int
	// Preempted is true when VariableCount exceeded the guard: the
	// obligation is reported TIMEOUT without ever reaching the CAS.
	Preempted bool
}

// Build turns every extracted System into an Obligation, in the same order
// as systems. A system with no signals left to fix has nothing to prove
// unsafe and is skipped entirely: it never reaches the CAS as an empty
// "1 ∈ I(C)" obligation.
func Build(ctx *loader.Context, systems []*extract.System, booleans map[field.SignalIndex]bool, maxVars int) []*Obligation {
	obligations := make([]*Obligation, 0, len(systems))
	for _, sys := range systems {
		if len(sys.SignalsToFix) == 0 {
			continue
		}
		obligations = append(obligations, buildOne(ctx, sys, booleans, maxVars))
	}
	return obligations
}

func buildOne(ctx *loader.Context, sys *extract.System, booleans map[field.SignalIndex]bool, maxVars int) *Obligation {
	ob := &Obligation{ComponentName: sys.ComponentName, TemplateName: sys.TemplateName}

	// Trivial-constraint stripping.
	for _, c := range sys.Constraints {
		if c.IsEmpty() {
			continue
		}
		ob.Constraints = append(ob.Constraints, c)
	}

	signalsToFix := append([]field.SignalIndex(nil), sys.SignalsToFix...)
	sort.Slice(signalsToFix, func(i, j int) bool { return signalsToFix[i] < signalsToFix[j] })

	for _, s := range signalsToFix {
		boolean := booleans[s]
		f := Factor{
			Signal:  s,
			Boolean: boolean,
			Witness: ctx.Witness[s],
			VarName: varName(s),
		}
		if !boolean {
			f.AuxName = auxName(s)
		}
		ob.Factors = append(ob.Factors, f)

		ob.VariableCount++ // x_s itself
		if !boolean {
			ob.VariableCount++ // Rabinowitsch auxiliary u_s
		}
	}

	freeSignals := append([]field.SignalIndex(nil), sys.FreeSignals...)
	sort.Slice(freeSignals, func(i, j int) bool { return freeSignals[i] < freeSignals[j] })
	for _, s := range freeSignals {
		ob.RingVars = append(ob.RingVars, varName(s))
	}
	for _, f := range ob.Factors {
		if !f.Boolean {
			ob.RingVars = append(ob.RingVars, f.AuxName)
		}
	}

	if ob.VariableCount > maxVars {
		ob.Preempted = true
	}

	return ob
}

func varName(s field.SignalIndex) string { return fmt.Sprintf("x%d", int(s)) }
func auxName(s field.SignalIndex) string { return fmt.Sprintf("u%d", int(s)) }

// prohibitionFactorPoly renders a single p_s:
//
//	(x_s - w_s)*u_s - 1   if non-boolean
//	(x_s - (1 - w_s))     if boolean
func prohibitionFactorPoly(f Factor, prime *big.Int) string {
	neg := new(big.Int).Mod(new(big.Int).Neg(f.Witness), prime)
	if f.Boolean {
		other := new(big.Int).Mod(new(big.Int).Sub(big.NewInt(1), f.Witness), prime)
		negOther := new(big.Int).Mod(new(big.Int).Neg(other), prime)
		return fmt.Sprintf("(%s + %s)", f.VarName, negOther.String())
	}
	return fmt.Sprintf("(%s + %s)*%s - 1", f.VarName, neg.String(), f.AuxName)
}

// polynomial renders c's left-hand side (the "A*B+C" printer with the
// trailing " = 0" trimmed), using signal variable names for the CocoaL5
// ring.
func polynomial(c field.Constraint, f field.Field, names map[field.SignalIndex]string) string {
	return strings.TrimSuffix(c.String(f, names), " = 0")
}
