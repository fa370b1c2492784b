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

// memprofctx rewrites a Go program's allocation call sites so that each one
// carries a single, unambiguous allocation behavior, cloning functions along
// the way wherever one physical call site serves more than one calling
// context with conflicting behavior.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ccgraph/memprofctx/analysis/config"
	"github.com/ccgraph/memprofctx/internal/formatutil"
)

var (
	configPath  string
	profilePath string
	dryRun      bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&profilePath, "profile", "", "path to a memprofctx profile describing allocation and call contexts")
	flag.BoolVar(&dryRun, "dry-run", false, "run every stage but skip writing rewritten sources back out")
}

const usage = `Disambiguate allocation contexts in a Go program by profile-guided cloning.

Usage:
  memprofctx -profile profile.json package...

Use the -help flag to display the options.
`

func main() {
	if err := doMain(); err != nil {
		fmt.Fprintf(os.Stderr, "memprofctx: %s\n", err)
		os.Exit(1)
	}
}

func doMain() error {
	flag.Parse()

	if len(flag.Args()) == 0 || profilePath == "" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	config.SetGlobalConfig(configPath)
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	log := config.NewLogGroup(cfg)

	fmt.Fprintln(os.Stderr, formatutil.Faint("Reading sources"))
	lp, err := loadProgram(flag.Args())
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, formatutil.Faint("Reading profile"))
	doc, err := loadProfile(profilePath)
	if err != nil {
		return err
	}

	wp, err := wireProgram(lp, doc)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, formatutil.Faint("Disambiguating allocation contexts"))
	touched, err := runDisambiguation(cfg, log, wp)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(os.Stderr, "dry run: would rewrite %d file(s)\n", len(touched))
		return nil
	}

	return writeRewrittenFiles(lp, touched)
}
