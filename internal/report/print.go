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

package report

import (
	"fmt"
	"io"
	"sort"
)

// ANSI SGR codes for the handful of colours verdict printing needs. Not a
// parsing/formatting library concern, so this stays a few stdlib constants
// rather than a dependency.
const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

// Print writes r as a human-readable, colour-coded verdict summary to w,
// mirroring verifier.rs's green "safe" / red "unsafe"/"exception" lines.
func Print(w io.Writer, r *Report) {
	if r.CASUnavailable {
		fmt.Fprintf(w, "%sCAS unavailable: interpreter not found on PATH%s\n", ansiRed, ansiReset)
	}

	if r.Safe {
		fmt.Fprintf(w, "%ssafe%s\n", ansiGreen, ansiReset)
		return
	}

	fmt.Fprintf(w, "%sunsafe%s\n", ansiRed, ansiReset)
	for _, f := range r.Findings {
		fmt.Fprintf(w, "  %s\n", describe(f))
	}

	printSummary(w, Summary(r))
}

// printSummary renders counts (as produced by Summary) sorted by component
// name, after the per-finding listing, so a run with many findings in the
// same component still reads as one offender rather than a wall of
// identical-looking lines.
func printSummary(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "summary:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %d\n", name, counts[name])
	}
}

func describe(f Finding) string {
	switch f.Kind {
	case FindingModuleUnsafe:
		return fmt.Sprintf("%s[%s] unsafe: %s outputs %v", ansiRed, qualifiedName(f), f.UnsafeReason, f.UnfixedOutputs) + ansiReset
	case FindingException:
		return fmt.Sprintf("%s[%s] exception: %s%s", ansiRed, qualifiedName(f), f.ExceptionReason, ansiReset)
	case FindingObligationFailed:
		return fmt.Sprintf("%s[%s] obligation %s%s", ansiRed, qualifiedName(f), f.ObligationVerdict, ansiReset)
	default:
		return fmt.Sprintf("%s[%s] unknown finding%s", ansiRed, qualifiedName(f), ansiReset)
	}
}

func qualifiedName(f Finding) string {
	if f.ComponentName == "" {
		return f.TemplateName
	}
	return fmt.Sprintf("%s (%s)", f.ComponentName, f.TemplateName)
}

// Summary groups findings by containing component, matching the CAS
// driver's "group failed obligations by containing component and report
// counts and names" requirement.
func Summary(r *Report) map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Findings {
		counts[qualifiedName(f)]++
	}
	return counts
}
