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
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/palmenros/circuitsafe/internal/field"
)

// mainPrefix is the qualified-name prefix circom prepends to every signal
// of the main component; it is stripped before symbols reach the rest of
// the tool.
const mainPrefix = "main."

// parseSymbolTable reads circuit_signals.sym: CSV lines "id,_,_,qualified_name";
// only columns 1 and 4 are used.
func parseSymbolTable(path string) (SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrSchema, path, err)
	}
	defer f.Close()

	table := make(SymbolTable)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cols := strings.SplitN(line, ",", 4)
		if len(cols) != 4 {
			return nil, fmt.Errorf("%w: %s:%d: expected 4 comma-separated columns, got %d", ErrSchema, path, lineNo, len(cols))
		}

		id, err := strconv.Atoi(cols[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: signal id %q is not an integer: %v", ErrSchema, path, lineNo, cols[0], err)
		}

		name := strings.TrimPrefix(cols[3], mainPrefix)
		table[field.SignalIndex(id)] = name
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrSchema, path, err)
	}

	return table, nil
}
