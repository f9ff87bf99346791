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
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ArtifactName is the file written alongside groebner.cocoa5 in the
// circuit's artifact directory.
const ArtifactName = "report.cbor"

// Save encodes r as CBOR and writes it to path.
func Save(r *Report, path string) error {
	data, err := cbor.Marshal(r)
	if err != nil {
		return fmt.Errorf("circuitsafe: encoding %s: %w", ArtifactName, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("circuitsafe: writing %s: %w", ArtifactName, err)
	}
	return nil
}

// Load decodes a previously persisted report.cbor from path, rejecting one
// whose schema_version is incompatible with this build.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("circuitsafe: reading %s: %w", ArtifactName, err)
	}
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("circuitsafe: decoding %s: %w", ArtifactName, err)
	}
	if err := CheckSchemaVersion(r.SchemaVersion); err != nil {
		return nil, err
	}
	return &r, nil
}
