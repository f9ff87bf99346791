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

	"github.com/blang/semver/v4"
)

// SchemaVersion is the report.cbor artifact's own format version, bumped
// whenever the Report/Finding shape changes in an incompatible way, so a
// report.cbor from an incompatible tool version is rejected rather than
// silently misread.
var SchemaVersion = semver.MustParse("1.0.0")

// CheckSchemaVersion rejects a persisted report whose SchemaVersion major
// component differs from the running tool's, which is the only breaking
// boundary a CBOR struct-shape change can cross.
func CheckSchemaVersion(raw string) error {
	got, err := semver.Parse(raw)
	if err != nil {
		return fmt.Errorf("circuitsafe: parsing report schema_version %q: %w", raw, err)
	}
	if got.Major != SchemaVersion.Major {
		return fmt.Errorf("circuitsafe: report schema_version %s is incompatible with this tool's %s", got, SchemaVersion)
	}
	return nil
}
