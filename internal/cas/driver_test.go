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

package cas

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeReader lets stream() be exercised without an actual subprocess pipe.
type fakeReader struct {
	r *strings.Reader
}

func (f fakeReader) Read(p []byte) (int, error) { return f.r.Read(p) }

func TestStreamAggregatesVerdicts(t *testing.T) {
	in := "OK: 0\nERROR: 1\nTIMEOUT: 2\nFINISHED\n"
	got := make(map[int]Verdict)
	var killed bool

	err := stream(fakeReader{strings.NewReader(in)}, zerolog.Nop(), func(idx int, v Verdict) {
		got[idx] = v
	}, func() { killed = true })

	require.NoError(t, err)
	require.False(t, killed)
	require.Equal(t, VerdictOK, got[0])
	require.Equal(t, VerdictError, got[1])
	require.Equal(t, VerdictTimeout, got[2])
}

func TestStreamFatalOnUnexpectedLine(t *testing.T) {
	in := "OK: 0\ngarbage line\nFINISHED\n"
	var killed bool

	err := stream(fakeReader{strings.NewReader(in)}, zerolog.Nop(), func(int, Verdict) {}, func() {
		killed = true
	})

	require.Error(t, err)
	require.ErrorIs(t, err, ErrProtocol)
	require.True(t, killed)
}

func TestStreamFatalOnMissingFinished(t *testing.T) {
	in := "OK: 0\n"
	err := stream(fakeReader{strings.NewReader(in)}, zerolog.Nop(), func(int, Verdict) {}, func() {})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestResultManySolutionsAndTimedOut(t *testing.T) {
	r := Result{Verdicts: map[int]Verdict{0: VerdictOK, 1: VerdictError, 2: VerdictTimeout, 3: VerdictError}}
	require.ElementsMatch(t, []int{1, 3}, r.ManySolutions())
	require.ElementsMatch(t, []int{2}, r.TimedOut())
}
