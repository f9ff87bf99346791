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

// Package field implements modular arithmetic over a prime of arbitrary,
// runtime-chosen size. Unlike gnark-crypto's fr.Element types, which are
// generated per curve at compile time, the circuits verified by circuitsafe
// name their field's prime inside circuit_treeconstraints.json, so the
// modulus is only known once the artifact directory is loaded.
package field

import "math/big"

// Field is a prime field GF(P). It is a thin, reduction-only wrapper around
// math/big: circuits in the wild stay well under a few hundred bits, so
// there is no call for a fixed-width Montgomery representation here.
type Field struct {
	P *big.Int
}

// New returns the field GF(p).
func New(p *big.Int) Field {
	return Field{P: new(big.Int).Set(p)}
}

// Reduce returns x mod P, in [0, P).
func (f Field) Reduce(x *big.Int) *big.Int {
	r := new(big.Int).Mod(x, f.P)
	return r
}

// Neg returns P - x (mod P), i.e. the additive inverse of x.
func (f Field) Neg(x *big.Int) *big.Int {
	if x.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(f.P, f.Reduce(x))
}

// Add returns a+b mod P.
func (f Field) Add(a, b *big.Int) *big.Int {
	return f.Reduce(new(big.Int).Add(a, b))
}

// Sub returns a-b mod P.
func (f Field) Sub(a, b *big.Int) *big.Int {
	return f.Reduce(new(big.Int).Sub(a, b))
}

// Mul returns a*b mod P.
func (f Field) Mul(a, b *big.Int) *big.Int {
	return f.Reduce(new(big.Int).Mul(a, b))
}

// Inverse returns the multiplicative inverse of x mod P. x must be non-zero.
func (f Field) Inverse(x *big.Int) *big.Int {
	return new(big.Int).ModInverse(f.Reduce(x), f.P)
}

// IsNegative reports whether x's canonical (reduced) representative is
// greater than P/2 — used purely for sign-friendly pretty-printing, never
// for arithmetic.
func (f Field) IsNegative(x *big.Int) bool {
	half := new(big.Int).Rsh(f.P, 1)
	return f.Reduce(x).Cmp(half) > 0
}

// SignedString renders x as "-k" when IsNegative, "k" otherwise.
func (f Field) SignedString(x *big.Int) string {
	if f.IsNegative(x) {
		return "-" + f.Neg(x).String()
	}
	return f.Reduce(x).String()
}
