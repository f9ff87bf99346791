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
	"math/big"
	"strings"
	"text/template"

	"github.com/palmenros/circuitsafe/internal/field"
	"github.com/palmenros/circuitsafe/internal/loader"
)

// scriptTemplate emits one CocoaL5 ring + ideal + timed Gröbner-basis call
// per submitted obligation, terminated by a single FINISHED line.
var scriptTemplate = template.Must(template.New("cocoal5").Parse(
	`{{range .Obligations}}
Use R{{.Index}} ::= ZZ/({{$.Prime}})[{{.VarList}}];
I{{.Index}} := ideal(R{{.Index}}, [{{.PolyList}}]);
TimeOut({{$.TimeoutSeconds}}) Try
  if 1 IsIn I{{.Index}} then
    PrintLn "OK: {{.Index}}";
  else
    PrintLn "ERROR: {{.Index}}";
  endif;
UponTimeOut
  PrintLn "TIMEOUT: {{.Index}}";
EndTry;
{{end}}PrintLn "FINISHED";
`))

type scriptObligation struct {
	Index    int
	VarList  string
	PolyList string
}

type scriptData struct {
	Prime          string
	TimeoutSeconds int
	Obligations    []scriptObligation
}

// Script renders the full CocoaL5 script for every non-preempted obligation
// in order, and returns the submitted obligations in script order: the i of
// an "OK: i"/"ERROR: i"/"TIMEOUT: i" line is an obligation's position in that
// list, not in obligations. Preempted obligations never appear in the script
// at all.
func Script(ctx *loader.Context, obligations []*Obligation, timeoutSeconds int) (script string, submitted []*Obligation, err error) {
	data := scriptData{Prime: ctx.Field.P.String(), TimeoutSeconds: timeoutSeconds}

	for _, ob := range obligations {
		if ob.Preempted {
			continue
		}

		names := make(map[field.SignalIndex]string)
		for _, s := range ob.allSignals() {
			names[s] = varName(s)
		}

		polys := make([]string, 0, len(ob.Constraints)+1)
		for _, c := range ob.Constraints {
			polys = append(polys, polynomial(c, ctx.Field, names))
		}
		polys = append(polys, prohibitionPolynomial(ob.Factors, ctx.Field.P))

		submitted = append(submitted, ob)
		data.Obligations = append(data.Obligations, scriptObligation{
			Index:    len(submitted) - 1,
			VarList:  strings.Join(ob.RingVars, ", "),
			PolyList: strings.Join(polys, ", "),
		})
	}

	var buf strings.Builder
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return "", nil, err
	}
	return buf.String(), submitted, nil
}

// prohibitionPolynomial is P = product of every factor's p_s, rendered as a single CocoaL5 product expression.
func prohibitionPolynomial(factors []Factor, prime *big.Int) string {
	parts := make([]string, 0, len(factors))
	for _, f := range factors {
		parts = append(parts, prohibitionFactorPoly(f, prime))
	}
	return strings.Join(parts, "*")
}

// allSignals returns every signal referenced by ob's constraints, so the
// printer has a name for each one even when it is not itself a
// signals_to_fix entry.
func (ob *Obligation) allSignals() []field.SignalIndex {
	seen := make(map[field.SignalIndex]struct{})
	for _, c := range ob.Constraints {
		for _, s := range c.Signals() {
			seen[s] = struct{}{}
		}
	}
	for _, f := range ob.Factors {
		seen[f.Signal] = struct{}{}
	}
	out := make([]field.SignalIndex, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	return out
}
