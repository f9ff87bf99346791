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
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/palmenros/circuitsafe/internal/cas"
	"github.com/palmenros/circuitsafe/internal/diagram"
	"github.com/palmenros/circuitsafe/internal/extract"
	"github.com/palmenros/circuitsafe/internal/graph"
	"github.com/palmenros/circuitsafe/internal/loader"
	"github.com/palmenros/circuitsafe/internal/optimize"
	"github.com/palmenros/circuitsafe/internal/propagate"
	"github.com/palmenros/circuitsafe/internal/report"
)

// Options is circuitsafe's struct-of-knobs CLI configuration.
type Options struct {
	ArtifactDir     string
	TimeoutSeconds  int
	MaxVars         int
	SVG             bool
	PropagationSVG  bool
}

const (
	groebnerScriptFile = "groebner.cocoa5"
	svgDir             = "svg"
)

func newRootCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "circuitsafe <artifact-dir>",
		Short: "statically verify weak determinism of a compiled R1CS circuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ArtifactDir = args[0]
			if opts.PropagationSVG {
				opts.SVG = true
			}
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.TimeoutSeconds, "timeout", "t", 5, "per-obligation CAS timeout, in seconds")
	cmd.Flags().IntVarP(&opts.MaxVars, "maxvars", "m", optimize.DefaultMaxVars, "prohibition-polynomial variable soft limit")
	cmd.Flags().BoolVarP(&opts.SVG, "svg", "s", false, "render verification-graph diagrams")
	cmd.Flags().BoolVarP(&opts.PropagationSVG, "propagationsvg", "p", false, "render every propagation step (implies --svg)")

	return cmd
}

// run is the CLI's whole pipeline: load, propagate, extract, optimize,
// invoke the CAS, fold the verdict, print and persist it.
// It returns a non-nil error only for a fatal run (loading, diagram-directory,
// script-writing or CAS failure); an "unsafe" verification verdict is
// reported, not erred: run prints and persists the report, then exits the
// process with status 1 itself.
func run(ctx context.Context, opts *Options) error {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	lctx, err := loader.Load(opts.ArtifactDir, log)
	if err != nil {
		return err
	}

	var renderer *diagram.Renderer
	var obs propagate.Observer
	if opts.SVG {
		renderer, err = diagram.New(filepath.Join(opts.ArtifactDir, svgDir), opts.PropagationSVG)
		if err != nil {
			return err
		}
		obs = propagate.ObserverFunc(func(fr *graph.Frame, componentName, templateName string) {
			if !opts.PropagationSVG {
				return
			}
			if err := renderer.Snapshot(fr, componentName, nil); err != nil {
				log.Warn().Err(err).Msg("failed to render diagram snapshot")
			}
		})
	}

	propResult := propagate.VerifyWithObserver(lctx, obs)

	if renderer != nil && !opts.PropagationSVG {
		if err := renderer.Snapshot(propResult.Frame, propResult.ComponentName, nil); err != nil {
			log.Warn().Err(err).Msg("failed to render diagram snapshot")
		}
	}

	systems, exceptions := extract.All(lctx, propResult)
	booleans := optimize.DetectBooleanSignals(lctx.Constraints, lctx.Field)
	obligations := optimize.Build(lctx, systems, booleans, opts.MaxVars)

	script, submitted, err := optimize.Script(lctx, obligations, opts.TimeoutSeconds)
	if err != nil {
		return fmt.Errorf("circuitsafe: emitting CAS script: %w", err)
	}
	if err := os.WriteFile(filepath.Join(opts.ArtifactDir, groebnerScriptFile), []byte(script), 0o644); err != nil {
		return fmt.Errorf("circuitsafe: writing %s: %w", groebnerScriptFile, err)
	}

	var casResult *cas.Result
	var casUnavailable bool
	if len(submitted) > 0 {
		result, err := cas.Run(ctx, script, log)
		switch {
		case errors.Is(err, exec.ErrNotFound):
			casUnavailable = true
			log.Error().Msg("CAS unavailable: interpreter not found on PATH")
		case err != nil:
			return err
		default:
			casResult = &result
		}
	}

	rep := report.Flatten(propResult, exceptions, casUnavailable, casResult, submitted)
	report.Print(os.Stdout, rep)
	if err := report.Save(rep, filepath.Join(opts.ArtifactDir, report.ArtifactName)); err != nil {
		log.Warn().Err(err).Msg("failed to persist report.cbor")
	}

	if !rep.Safe {
		os.Exit(1)
	}
	return nil
}
