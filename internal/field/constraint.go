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

package field

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// SignalIndex identifies a signal, unique within the whole circuit.
type SignalIndex int

// ConstantCoeffKey is the reserved sentinel signal index used inside a
// LinearCombination to carry the constant term, i.e. the "0" key in
// circuit_constraints.json. No real signal is ever indexed -1.
const ConstantCoeffKey SignalIndex = -1

// LinearCombination maps a signal (or ConstantCoeffKey) to its coefficient.
type LinearCombination map[SignalIndex]*big.Int

// Clone returns a deep copy of lc.
func (lc LinearCombination) Clone() LinearCombination {
	out := make(LinearCombination, len(lc))
	for s, c := range lc {
		out[s] = new(big.Int).Set(c)
	}
	return out
}

// Signals returns the non-constant signals appearing in lc, sorted.
func (lc LinearCombination) Signals() []SignalIndex {
	out := make([]SignalIndex, 0, len(lc))
	for s := range lc {
		if s != ConstantCoeffKey {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasConstant reports whether lc carries an explicit, non-zero constant term.
func (lc LinearCombination) HasConstant() bool {
	c, ok := lc[ConstantCoeffKey]
	return ok && c.Sign() != 0
}

// Constant returns the constant term of lc, or zero if absent.
func (lc LinearCombination) Constant() *big.Int {
	if c, ok := lc[ConstantCoeffKey]; ok {
		return new(big.Int).Set(c)
	}
	return new(big.Int)
}

// Constraint is an R1CS constraint A*B+C == 0 (mod P) over signals.
type Constraint struct {
	A, B, C LinearCombination
}

// IsLinear reports whether c has an empty A or B side, i.e. c reduces to a
// plain linear constraint C == 0.
func (c Constraint) IsLinear() bool {
	return len(c.A) == 0 || len(c.B) == 0
}

// IsEmpty reports whether c is the trivial "0 = 0" constraint.
func (c Constraint) IsEmpty() bool {
	return len(c.A) == 0 && len(c.B) == 0 && len(c.C) == 0
}

// Signals returns the set of all signals participating in c (across A, B, C),
// sorted and deduplicated. The constant term is never included.
func (c Constraint) Signals() []SignalIndex {
	seen := make(map[SignalIndex]struct{})
	for _, lc := range []LinearCombination{c.A, c.B, c.C} {
		for s := range lc {
			if s != ConstantCoeffKey {
				seen[s] = struct{}{}
			}
		}
	}
	out := make([]SignalIndex, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy of c.
func (c Constraint) Clone() Constraint {
	return Constraint{A: c.A.Clone(), B: c.B.Clone(), C: c.C.Clone()}
}

// Substitution replaces one signal by a linear expression over other
// signals, the unit of work in a Frame's ordered substitution list.
type Substitution struct {
	Signal     SignalIndex
	Expression LinearCombination
}

// ApplySubstitution rewrites every occurrence of s.Signal in c's three
// linear combinations by s.Expression, reducing coefficients mod f.P. The
// receiver is mutated in place.
func ApplySubstitution(c *Constraint, s Substitution, f Field) {
	c.A = substituteIn(c.A, s, f)
	c.B = substituteIn(c.B, s, f)
	c.C = substituteIn(c.C, s, f)
}

func substituteIn(lc LinearCombination, s Substitution, f Field) LinearCombination {
	coeff, ok := lc[s.Signal]
	if !ok {
		return lc
	}

	out := lc.Clone()
	delete(out, s.Signal)

	for sig, c := range s.Expression {
		term := f.Mul(coeff, c)
		if existing, ok := out[sig]; ok {
			out[sig] = f.Add(existing, term)
		} else {
			out[sig] = term
		}
	}

	for sig, c := range out {
		if c.Sign() == 0 && sig != ConstantCoeffKey {
			delete(out, sig)
		}
	}

	return out
}

// String renders c as "A * B + C = 0" (or "C = 0" when c is linear).
func (c Constraint) String(f Field, names map[SignalIndex]string) string {
	if c.IsLinear() {
		return fmt.Sprintf("%s = 0", linearTermString(c.C, f, names, false))
	}
	return fmt.Sprintf("%s * %s + %s = 0",
		linearTermString(c.A, f, names, true),
		linearTermString(c.B, f, names, true),
		linearTermString(c.C, f, names, false))
}

func linearTermString(lc LinearCombination, f Field, names map[SignalIndex]string, parens bool) string {
	if len(lc) == 0 {
		return "0"
	}

	signals := lc.Signals()
	terms := make([]string, 0, len(lc))

	if c, ok := lc[ConstantCoeffKey]; ok {
		terms = append(terms, f.SignedString(c))
	}
	for _, s := range signals {
		coeff := lc[s]
		name := names[s]
		switch {
		case coeff.Cmp(big.NewInt(1)) == 0:
			terms = append(terms, name)
		case f.Neg(coeff).Cmp(big.NewInt(1)) == 0:
			terms = append(terms, "-"+name)
		case f.IsNegative(coeff):
			terms = append(terms, fmt.Sprintf("-%s*%s", f.Neg(coeff).String(), name))
		default:
			terms = append(terms, fmt.Sprintf("%s*%s", f.Reduce(coeff).String(), name))
		}
	}

	s := strings.Join(terms, "+")
	if parens && len(terms) > 1 {
		return "(" + s + ")"
	}
	return s
}
