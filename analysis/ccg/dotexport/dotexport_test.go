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

package dotexport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccgraph/memprofctx/analysis/ccg"
)

func buildSmallGraph() *ccg.Graph[string, string] {
	g := ccg.NewGraph[string, string]()
	allocs := []ccg.Allocation[string, string]{
		{
			Call:          "alloc0",
			EnclosingFunc: "F",
			MIBs: []ccg.MIB{
				{StackIDs: []uint64{10, 20}, Label: ccg.NotCold},
			},
		},
	}
	ccg.Build(g, allocs)
	return g
}

func TestMarshalProducesValidDot(t *testing.T) {
	g := buildSmallGraph()
	data, err := Marshal(g, "contexts")
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "contexts") {
		t.Errorf("expected the graph name in the dot output, got:\n%s", out)
	}
	if !strings.Contains(out, "alloc") {
		t.Errorf("expected an alloc node label in the dot output, got:\n%s", out)
	}
}

func TestWriteStageWritesFile(t *testing.T) {
	g := buildSmallGraph()
	dir := t.TempDir()
	prefix := filepath.Join(dir, "run-")

	if err := WriteStage(g, prefix, "build"); err != nil {
		t.Fatalf("WriteStage: %v", err)
	}

	data, err := os.ReadFile(prefix + "build.dot")
	if err != nil {
		t.Fatalf("reading dot file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty dot output")
	}
}

func TestNodeLabelDistinguishesAllocFromCall(t *testing.T) {
	g := buildSmallGraph()
	var alloc, call *ccg.Node[string, string]
	for _, n := range g.Nodes() {
		if n.IsAllocation {
			alloc = n
		} else {
			call = n
		}
	}
	if alloc == nil || call == nil {
		t.Fatalf("expected both an alloc node and a stack node in the graph")
	}
	if !strings.HasPrefix(nodeLabel(alloc), "alloc") {
		t.Errorf("expected alloc label to start with %q, got %q", "alloc", nodeLabel(alloc))
	}
	if !strings.HasPrefix(nodeLabel(call), "call") {
		t.Errorf("expected call label to start with %q, got %q", "call", nodeLabel(call))
	}
}
