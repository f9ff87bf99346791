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

// Package cas spawns the external CocoaL5 interpreter, feeds it the script
// the optimize package emits, and streams back its verdict lines.
package cas

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// InterpreterName is the CocoaL5 binary looked up on PATH.
const InterpreterName = "CoCoAInterpreter"

// ErrProtocol classifies any line the driver did not expect: anything other
// than "OK: N", "ERROR: N", "TIMEOUT: N" or "FINISHED" is a protocol error.
var ErrProtocol = errors.New("circuitsafe: CAS protocol error")

// Verdict is one submitted obligation's outcome.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictError
	VerdictTimeout
)

// Result is the aggregate outcome of one CAS run: every obligation index the
// interpreter reported, keyed by its submission index.
type Result struct {
	Verdicts map[int]Verdict
}

// ManySolutions returns the submission indices the CAS reported ERROR on.
func (r Result) ManySolutions() []int { return r.indicesOf(VerdictError) }

// TimedOut returns the submission indices the CAS reported TIMEOUT on.
func (r Result) TimedOut() []int { return r.indicesOf(VerdictTimeout) }

func (r Result) indicesOf(v Verdict) []int {
	var out []int
	for i, got := range r.Verdicts {
		if got == v {
			out = append(out, i)
		}
	}
	return out
}

// installDir is where the interpreter binary lives; the process's working
// directory must be set there, a quirk of CocoaL5's own file resolution.
func installDir() (string, error) {
	path, err := exec.LookPath(InterpreterName)
	if err != nil {
		return "", fmt.Errorf("circuitsafe: locating %s on PATH: %w", InterpreterName, err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	return filepath.Dir(resolved), nil
}

// Run writes script to a temp file, spawns the interpreter with
// "--no-preamble <script>", and streams its stdout line by line until
// FINISHED or a fatal error. Cancellation is cooperative: when a fatal
// protocol error is observed, the driver kills the child process.
func Run(ctx context.Context, script string, log zerolog.Logger) (Result, error) {
	dir, err := installDir()
	if err != nil {
		return Result{}, err
	}

	scriptFile, err := os.CreateTemp("", "circuitsafe-*.cocoa5")
	if err != nil {
		return Result{}, fmt.Errorf("circuitsafe: writing CAS script: %w", err)
	}
	defer os.Remove(scriptFile.Name())
	if _, err := scriptFile.WriteString(script); err != nil {
		scriptFile.Close()
		return Result{}, fmt.Errorf("circuitsafe: writing CAS script: %w", err)
	}
	if err := scriptFile.Close(); err != nil {
		return Result{}, fmt.Errorf("circuitsafe: writing CAS script: %w", err)
	}

	cmd := exec.CommandContext(ctx, InterpreterName, "--no-preamble", scriptFile.Name())
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("circuitsafe: attaching CAS stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("circuitsafe: starting %s: %w", InterpreterName, err)
	}

	result := Result{Verdicts: make(map[int]Verdict)}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stream(stdout, log, func(idx int, v Verdict) {
			result.Verdicts[idx] = v
		}, func() {
			_ = cmd.Process.Kill()
		})
	})

	streamErr := g.Wait()
	waitErr := cmd.Wait()

	if streamErr != nil {
		return result, streamErr
	}
	if waitErr != nil {
		return result, fmt.Errorf("circuitsafe: %s exited abnormally: %w", InterpreterName, waitErr)
	}
	return result, nil
}

// stream consumes the interpreter's output line by line, reporting every
// OK/ERROR/TIMEOUT verdict to onVerdict, stopping cleanly at FINISHED. Any
// unrecognized line is a protocol error; onFatal is invoked so the caller
// can kill the child process before returning.
func stream(out io.Reader, log zerolog.Logger, onVerdict func(idx int, v Verdict), onFatal func()) error {
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "FINISHED" {
			log.Debug().Msg("CAS run finished")
			return nil
		}

		idx, verdict, ok := parseLine(line)
		if !ok {
			onFatal()
			return fmt.Errorf("%w: unexpected line %q", ErrProtocol, line)
		}

		log.Debug().Int("obligation", idx).Str("verdict", verdictString(verdict)).Msg("CAS verdict")
		onVerdict(idx, verdict)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("circuitsafe: reading CAS output: %w", err)
	}
	return fmt.Errorf("%w: CAS exited before FINISHED", ErrProtocol)
}

func parseLine(line string) (idx int, v Verdict, ok bool) {
	for prefix, verdict := range map[string]Verdict{
		"OK: ":      VerdictOK,
		"ERROR: ":   VerdictError,
		"TIMEOUT: ": VerdictTimeout,
	} {
		if rest, found := strings.CutPrefix(line, prefix); found {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0, 0, false
			}
			return n, verdict, true
		}
	}
	return 0, 0, false
}

func verdictString(v Verdict) string {
	switch v {
	case VerdictOK:
		return "OK"
	case VerdictError:
		return "ERROR"
	case VerdictTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}
