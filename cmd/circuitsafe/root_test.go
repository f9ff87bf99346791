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

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/palmenros/circuitsafe/internal/optimize"
)

func TestFlagDefaults(t *testing.T) {
	cmd := newRootCommand()

	timeout, err := cmd.Flags().GetInt("timeout")
	require.NoError(t, err)
	require.Equal(t, 5, timeout)

	maxVars, err := cmd.Flags().GetInt("maxvars")
	require.NoError(t, err)
	require.Equal(t, optimize.DefaultMaxVars, maxVars)

	svg, err := cmd.Flags().GetBool("svg")
	require.NoError(t, err)
	require.False(t, svg)
}

func TestRootRequiresExactlyOnePositionalArg(t *testing.T) {
	cmd := newRootCommand()
	require.Error(t, cmd.Args(cmd, nil))
	require.Error(t, cmd.Args(cmd, []string{"a", "b"}))
	require.NoError(t, cmd.Args(cmd, []string{"a"}))
}
