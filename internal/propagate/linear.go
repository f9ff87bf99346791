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
	"math/big"

	"github.com/palmenros/circuitsafe/internal/field"
)

// linearize folds a constraint's product term A*B into a single linear
// combination when at least one of A or B has reduced to a pure constant
// (i.e. carries no free signals). It reports ok=false when neither side is
// constant yet, meaning c cannot be linearized this round.
func linearize(c field.Constraint, f field.Field) (lc field.LinearCombination, ok bool) {
	aConst := len(c.A.Signals()) == 0
	bConst := len(c.B.Signals()) == 0

	switch {
	case aConst && bConst:
		v := f.Mul(c.A.Constant(), c.B.Constant())
		return mergeLC(field.LinearCombination{field.ConstantCoeffKey: v}, c.C, f), true
	case aConst:
		return mergeLC(scaleLC(c.B, c.A.Constant(), f), c.C, f), true
	case bConst:
		return mergeLC(scaleLC(c.A, c.B.Constant(), f), c.C, f), true
	default:
		return nil, false
	}
}

// scaleLC returns lc with every coefficient multiplied by v, mod f.P.
func scaleLC(lc field.LinearCombination, v *big.Int, f field.Field) field.LinearCombination {
	out := make(field.LinearCombination, len(lc))
	for s, coeff := range lc {
		scaled := f.Mul(coeff, v)
		if scaled.Sign() == 0 && s != field.ConstantCoeffKey {
			continue
		}
		out[s] = scaled
	}
	return out
}

// mergeLC adds two linear combinations together, dropping any signal whose
// combined coefficient reduces to zero.
func mergeLC(a, b field.LinearCombination, f field.Field) field.LinearCombination {
	out := a.Clone()
	for s, coeff := range b {
		if existing, present := out[s]; present {
			out[s] = f.Add(existing, coeff)
		} else {
			out[s] = new(big.Int).Set(coeff)
		}
	}
	for s, coeff := range out {
		if coeff.Sign() == 0 && s != field.ConstantCoeffKey {
			delete(out, s)
		}
	}
	return out
}

// solveSingle isolates the lone free signal of a linear combination known to
// carry exactly one, returning its derivation as a constant substitution:
// coeff*signal + constant = 0  =>  signal = -constant/coeff.
func solveSingle(signal field.SignalIndex, lc field.LinearCombination, f field.Field) field.Substitution {
	coeff := lc[signal]
	constant := lc.Constant()
	value := f.Mul(f.Inverse(coeff), f.Neg(constant))
	return field.Substitution{
		Signal:     signal,
		Expression: field.LinearCombination{field.ConstantCoeffKey: value},
	}
}
