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
	"strings"
)

// ParseConstraint parses the output of Constraint.String back into a
// Constraint, given the inverse of the names map used to print it. It
// exists so the printer is round-trip testable: re-parsing printed output
// should yield a constraint equal to the original up to ordering of
// summands (ordering is irrelevant here since LinearCombination is a map).
func ParseConstraint(s string, ids map[string]SignalIndex) (Constraint, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "= 0")
	s = strings.TrimSpace(s)

	if !strings.Contains(s, " * ") || topLevelPlusOnly(s) {
		c, err := parseLinearTerm(s, ids)
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{A: LinearCombination{}, B: LinearCombination{}, C: c}, nil
	}

	aStr, bStr, cStr, err := splitABCplusProduct(s)
	if err != nil {
		return Constraint{}, err
	}

	a, err := parseLinearTerm(aStr, ids)
	if err != nil {
		return Constraint{}, err
	}
	b, err := parseLinearTerm(bStr, ids)
	if err != nil {
		return Constraint{}, err
	}
	c, err := parseLinearTerm(cStr, ids)
	if err != nil {
		return Constraint{}, err
	}

	return Constraint{A: a, B: b, C: c}, nil
}

// topLevelPlusOnly reports whether s contains no "*" outside parentheses,
// i.e. it is a pure linear term (no A*B product).
func topLevelPlusOnly(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case '*':
			if depth == 0 {
				return false
			}
		}
	}
	return true
}

// splitABCplusProduct splits "A * B + C" (A, B possibly parenthesized) into
// its three pieces.
func splitABCplusProduct(s string) (a, b, c string, err error) {
	// A is either "(...)" or a single term up to the first " * " separator.
	a, rest, err := takeFactor(s)
	if err != nil {
		return "", "", "", fmt.Errorf("parsing A: %w", err)
	}
	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "*"))

	b, rest, err = takeFactor(rest)
	if err != nil {
		return "", "", "", fmt.Errorf("parsing B: %w", err)
	}

	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "+"))
	c = strings.TrimSpace(rest)

	return a, b, c, nil
}

// takeFactor consumes a leading "(...)" group or a bare term up to the next
// " * " or " + " separator, returning the factor and the unconsumed
// remainder. A bare term may itself contain an unspaced "*" or "+" (as in
// "2*x"), which the printer never uses as a separator.
func takeFactor(s string) (factor, rest string, err error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") {
		depth := 0
		for i, r := range s {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return s[1:i], s[i+1:], nil
				}
			}
		}
		return "", "", fmt.Errorf("unbalanced parentheses in %q", s)
	}

	idx := -1
	for _, sep := range []string{" * ", " + "} {
		if i := strings.Index(s, sep); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	if idx < 0 {
		return s, "", nil
	}
	return strings.TrimSpace(s[:idx]), s[idx:], nil
}

// parseLinearTerm parses "3*x+y+-2" style sums (as produced by
// linearTermString) back into a LinearCombination.
func parseLinearTerm(s string, ids map[string]SignalIndex) (LinearCombination, error) {
	out := LinearCombination{}
	s = strings.Trim(strings.TrimSpace(s), "()")
	if s == "" || s == "0" {
		return out, nil
	}

	for _, term := range splitSummands(s) {
		coeff, name, err := splitCoeffSignal(term)
		if err != nil {
			return nil, err
		}
		if name == "" {
			existing := out[ConstantCoeffKey]
			if existing == nil {
				existing = new(big.Int)
			}
			out[ConstantCoeffKey] = new(big.Int).Add(existing, coeff)
			continue
		}
		id, ok := ids[name]
		if !ok {
			return nil, fmt.Errorf("unknown signal name %q", name)
		}
		existing := out[id]
		if existing == nil {
			existing = new(big.Int)
		}
		out[id] = new(big.Int).Add(existing, coeff)
	}

	return out, nil
}

// splitSummands splits "3*x+-y+2" into ["3*x", "-y", "2"], treating a
// leading '-' of a term as part of that term rather than a separator.
func splitSummands(s string) []string {
	var out []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || (s[i] == '-' && s[i-1] != '*') {
			out = append(out, s[start:i])
			start = i
		}
	}
	out = append(out, s[start:])

	var trimmed []string
	for _, t := range out {
		t = strings.TrimPrefix(t, "+")
		if t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return trimmed
}

func splitCoeffSignal(term string) (*big.Int, string, error) {
	neg := false
	if strings.HasPrefix(term, "-") {
		neg = true
		term = term[1:]
	}

	var coeff *big.Int
	var name string

	if idx := strings.Index(term, "*"); idx >= 0 {
		coeffStr := term[:idx]
		name = term[idx+1:]
		c, ok := new(big.Int).SetString(coeffStr, 10)
		if !ok {
			return nil, "", fmt.Errorf("invalid coefficient %q", coeffStr)
		}
		coeff = c
	} else if c, ok := new(big.Int).SetString(term, 10); ok {
		coeff = c
	} else {
		coeff = big.NewInt(1)
		name = term
	}

	if neg {
		coeff = new(big.Int).Neg(coeff)
	}

	return coeff, name, nil
}
