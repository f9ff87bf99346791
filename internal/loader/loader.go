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
	"math/big"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	constraintsFile = "circuit_constraints.json"
	witnessFile     = "witness.json"
	symbolsFile     = "circuit_signals.sym"
	treeFile        = "circuit_treeconstraints.json"
)

// Load reads the four artifacts in dir and assembles the immutable global
// context view of the circuit. The independent file reads run concurrently
// via errgroup, since none shares mutable state.
func Load(dir string, log zerolog.Logger) (*Context, error) {
	var (
		constraints *ConstraintStore
		witness     Witness
		symbols     SymbolTable
		tree        *TreeConstraints
		prime       *big.Int
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		constraints, err = parseConstraintList(filepath.Join(dir, constraintsFile))
		return err
	})
	g.Go(func() error {
		var err error
		witness, err = parseWitness(filepath.Join(dir, witnessFile))
		return err
	})
	g.Go(func() error {
		var err error
		symbols, err = parseSymbolTable(filepath.Join(dir, symbolsFile))
		return err
	})
	g.Go(func() error {
		var err error
		tree, prime, err = parseTreeConstraints(filepath.Join(dir, treeFile))
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := field.New(prime)
	log.Info().
		Str("dir", dir).
		Int("constraints", constraints.Len()).
		Int("witnessSize", len(witness)).
		Int("symbols", len(symbols)).
		Str("curve", identifyCurve(prime)).
		Msg("loaded circuit artifacts")

	return &Context{
		Field:           f,
		Witness:         witness,
		Symbols:         symbols,
		TreeConstraints: tree,
		Constraints:     constraints,
	}, nil
}

// identifyCurve logs a friendly name when p matches a curve gnark-crypto
// implements; purely diagnostic, never used for arithmetic. Field arithmetic
// always stays on math/big, since the prime is runtime-chosen, not a
// compile-time curve modulus.
func identifyCurve(p *big.Int) string {
	known := map[string]*big.Int{
		ecc.BN254.String():     bn254fr.Modulus(),
		ecc.BLS12_381.String(): bls12381fr.Modulus(),
	}
	for name, modulus := range known {
		if modulus.Cmp(p) == 0 {
			return name
		}
	}
	return "unknown"
}
