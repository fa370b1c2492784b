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
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/ccgraph/memprofctx/analysis/ccg"
)

// profileDoc is the on-disk shape of a memprofctx profile: positions name
// source locations the way go/token.Position.String formats them
// ("file.go:line:col"), and every stack-id chain is already ordered from
// the frame itself outward, matching MIB.StackIDs and CallsiteCall's own
// contract. Real pprof ingestion and any summary-file format are both out
// of this package's scope; this is the plain
// boundary-shim encoding memprofctx reads at its own command line.
type profileDoc struct {
	Allocations []allocEntry `json:"allocations"`
	Calls       []callEntry  `json:"calls"`
}

type allocEntry struct {
	Pos                 string     `json:"pos"`
	MIBs                []mibEntry `json:"mibs"`
	CallContextStackIDs []uint64   `json:"call_context_stack_ids,omitempty"`
}

type mibEntry struct {
	StackIDs []uint64 `json:"stack_ids"`
	Label    string   `json:"label"`
}

type callEntry struct {
	Pos      string   `json:"pos"`
	StackIDs []uint64 `json:"stack_ids"`
}

func loadProfile(path string) (*profileDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading profile")
	}
	var doc profileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing profile")
	}
	return &doc, nil
}

func parseAllocType(label string) (ccg.AllocType, error) {
	switch label {
	case "notcold", "NotCold":
		return ccg.NotCold, nil
	case "cold", "Cold":
		return ccg.Cold, nil
	default:
		return ccg.None, errors.Errorf("unrecognized allocation label %q", label)
	}
}
