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
	"fmt"
	"os"

	"gonum.org/v1/gonum/graph/encoding/dot"

	"github.com/ccgraph/memprofctx/analysis/ccg"
	"github.com/ccgraph/memprofctx/internal/graphutil"
)

// Marshal renders g's current state as dot source. Edges follow the same
// caller-to-callee direction the graph itself is built in: an edge in the
// rendering points from the node farther out on the stack to the node
// nearer the allocation, exactly as builder.go wires it.
func Marshal[Call comparable, Func comparable](g *ccg.Graph[Call, Func], name string) ([]byte, error) {
	nodes := g.Nodes()
	ids := make([]int64, 0, len(nodes))
	byID := make(map[int64]*ccg.Node[Call, Func], len(nodes))
	for _, n := range nodes {
		id := int64(n.ID)
		ids = append(ids, id)
		byID[id] = n
	}

	label := func(id int64) string { return nodeLabel(byID[id]) }
	successors := func(id int64) []int64 {
		n := byID[id]
		out := make([]int64, 0, len(n.CalleeEdges()))
		for _, e := range n.CalleeEdges() {
			out = append(out, int64(e.Callee.ID))
		}
		return out
	}

	view := graphutil.NewGraph(ids, label, successors)
	return dot.Marshal(view, name, "", "  ")
}

// WriteStage renders g and writes it to pathPrefix+stage+".dot".
func WriteStage[Call comparable, Func comparable](g *ccg.Graph[Call, Func], pathPrefix, stage string) error {
	data, err := Marshal(g, stage)
	if err != nil {
		return err
	}
	return os.WriteFile(pathPrefix+stage+".dot", data, 0o644)
}

func nodeLabel[Call comparable, Func comparable](n *ccg.Node[Call, Func]) string {
	kind := "call"
	if n.IsAllocation {
		kind = "alloc"
	}
	if n.CloneOf != nil {
		return fmt.Sprintf("%s %d.%d [%s] (%d ctx)", kind, n.CloneOf.ID, n.CloneIndex, n.AllocTypes, len(n.ContextIDs))
	}
	return fmt.Sprintf("%s %d [%s] (%d ctx)", kind, n.ID, n.AllocTypes, len(n.ContextIDs))
}
