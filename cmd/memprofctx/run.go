// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/pkg/errors"

	"github.com/ccgraph/memprofctx/analysis/ccg"
	"github.com/ccgraph/memprofctx/analysis/ccg/dotexport"
	"github.com/ccgraph/memprofctx/analysis/ccg/ssaadapter"
	"github.com/ccgraph/memprofctx/analysis/config"
)

// runDisambiguation drives the core through its five stages over a graph
// built from wp, logging and dumping at each stage as cfg.Options asks, and
// returns the set of syntax files the run touched so the caller can print
// them back out.
func runDisambiguation(cfg *config.Config, log *config.LogGroup, wp *wiredProgram) (map[*dst.File]bool, error) {
	g := ccg.NewGraph[*ssaadapter.CallHandle, *ssaadapter.FuncHandle]()

	ccg.Build(g, wp.allocs)
	if err := checkpoint(cfg, log, g, "build"); err != nil {
		return nil, err
	}

	ccg.UpdateStackNodes(g, wp.adapter, wp.calls)
	if err := checkpoint(cfg, log, g, "match"); err != nil {
		return nil, err
	}

	ccg.SanitizeMultiTargets(g, wp.adapter)
	if err := checkpoint(cfg, log, g, "sanitize"); err != nil {
		return nil, err
	}

	ccg.IdentifyClones(g)
	if err := checkpoint(cfg, log, g, "clone"); err != nil {
		return nil, err
	}

	ccg.AssignFunctions(g, wp.adapter)
	if err := checkpoint(cfg, log, g, "assign"); err != nil {
		return nil, err
	}

	touched := make(map[*dst.File]bool)
	for _, n := range g.Nodes() {
		if n.EnclosingFunc != nil && n.EnclosingFunc.File != nil {
			touched[n.EnclosingFunc.File] = true
		}
	}
	return touched, nil
}

func checkpoint(cfg *config.Config, log *config.LogGroup, g *ccg.Graph[*ssaadapter.CallHandle, *ssaadapter.FuncHandle], stage string) error {
	if cfg.DumpGraph {
		log.Debugf("graph after %s: %d nodes", stage, len(g.Nodes()))
	}
	if cfg.VerifyGraph {
		if errs := ccg.VerifyGraph(g); len(errs) > 0 {
			for _, e := range errs {
				log.Errorf("%s: %v", stage, e)
			}
			return errors.Errorf("%d invariant violations after %s", len(errs), stage)
		}
	}
	if cfg.ExportDot {
		if err := dotexport.WriteStage(g, cfg.DotPathPrefix, stage); err != nil {
			return errors.Wrapf(err, "exporting dot for %s", stage)
		}
	}
	return nil
}

// writeRewrittenFiles prints every touched dst.File back to the source path
// it was loaded from.
func writeRewrittenFiles(lp *loadedProgram, touched map[*dst.File]bool) error {
	for f := range touched {
		path, ok := lp.pathByFile[f]
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := decorator.Fprint(&buf, f); err != nil {
			return errors.Wrapf(err, "printing %s", path)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
		fmt.Fprintf(os.Stderr, "rewrote %s\n", path)
	}
	return nil
}
