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

package ccg

import "github.com/ccgraph/memprofctx/internal/graphutil"

// MIB (Memory Information Block) is one observed allocation context: an
// ordered stack-id chain (nearest caller frame first, outermost caller
// last) and the allocation behavior observed along it.
type MIB struct {
	StackIDs []uint64
	Label    AllocType
}

// Allocation describes one heap-allocation callsite to ingest: its call,
// its enclosing function, the MIBs observed for it, and — if the allocation
// itself was inlined — the chain of stack ids representing its own
// callsite context (shared prefix of each MIB's chain that corresponds to
// inlining frames already accounted for by the allocation's current
// physical location).
type Allocation[Call comparable, Func comparable] struct {
	Call               Call
	EnclosingFunc      Func
	MIBs               []MIB
	CallContextStackIDs []uint64
}

// Build ingests every allocation's MIBs into g: one alloc node per
// allocation, fetch-or-create stack nodes for every frame in each MIB's
// chain beyond the allocation's own inlined prefix, and caller edges
// linking the allocation outward to its observed callers (§4.1).
//
// chain[0] (nearest real caller) becomes the immediate caller of the alloc
// node; chain[i+1] becomes the caller of chain[i]. Walking a node's caller
// edges therefore walks outward along the call stack, which is exactly what
// the cloning engine's "DFS up through caller edges from alloc nodes"
// (§4.4) requires.
func Build[Call comparable, Func comparable](g *Graph[Call, Func], allocs []Allocation[Call, Func]) {
	for _, alloc := range allocs {
		allocNode := g.NewAllocNode(alloc.Call, alloc.EnclosingFunc)

		for _, mib := range alloc.MIBs {
			id := g.Registry.Mint(mib.Label)
			allocNode.ContextIDs.add(id)
			allocNode.recomputeAllocTypes(g.Registry)
			if allocNode.OrigStackOrAllocID == 0 {
				allocNode.OrigStackOrAllocID = uint64(id)
			}

			remaining := skipSharedPrefix(mib.StackIDs, alloc.CallContextStackIDs)
			ingestChain(g, alloc.EnclosingFunc, allocNode, remaining, id)
		}
	}

	detectMutualRecursionSCC(g)
}

// skipSharedPrefix drops the leading elements of chain that match
// ownContext, frame for frame: those frames were already consumed by the
// inlining that placed the allocation at its current location (§4.1.c).
func skipSharedPrefix(chain, ownContext []uint64) []uint64 {
	i := 0
	for i < len(chain) && i < len(ownContext) && chain[i] == ownContext[i] {
		i++
	}
	return chain[i:]
}

// ingestChain walks remaining outward from the allocation, creating or
// reusing a stack node per id, wiring caller edges, and detecting
// same-chain direct recursion (§4.1.d-e).
//
// A freshly created stack node is stamped with the allocation's own
// enclosing function as a placeholder: the core has no capability to
// resolve a bare stack id to its real enclosing function. The stack-node
// matcher corrects this once (and if) the node is bound to a real call,
// whose adapter-supplied enclosing function is authoritative. Nodes that
// never get matched keep the placeholder, but they also never carry a call
// binding, so nothing downstream (the sanitizer, the cloner, the function
// assigner) ever reads it.
func ingestChain[Call comparable, Func comparable](
	g *Graph[Call, Func], enclosingFunc Func, allocNode *Node[Call, Func], remaining []uint64, id ContextID,
) {
	seen := make(map[uint64]bool, len(remaining))
	callee := allocNode
	for _, stackID := range remaining {
		node := g.getOrCreateStackNode(stackID, enclosingFunc)
		if seen[stackID] {
			node.Recursive = true
		}
		seen[stackID] = true

		g.connectEdge(node, callee, id)
		callee = node
	}
}

// detectMutualRecursionSCC is a supplement beyond §4.1.e's single-MIB-chain
// check: it runs strongly-connected-component detection over the whole
// stack-node subgraph (caller edges only) so that two different MIBs, each
// contributing one leg of a two-function recursive cycle, are still caught
// even though no single chain directly self-repeated. It only adds
// Recursive markings, never removes any, and never touches alloc nodes
// (allocations themselves are never part of a calling cycle).
func detectMutualRecursionSCC[Call comparable, Func comparable](g *Graph[Call, Func]) {
	byID := make(map[int64]*Node[Call, Func])
	ids := make([]int64, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.IsAllocation || n.CloneOf != nil {
			continue
		}
		id := int64(n.ID)
		byID[id] = n
		ids = append(ids, id)
	}

	successors := func(id int64) []int64 {
		n := byID[id]
		out := make([]int64, 0, len(n.callerEdges))
		for _, e := range n.callerEdges {
			if c, ok := byID[int64(e.Caller.ID)]; ok {
				out = append(out, int64(c.ID))
			}
		}
		return out
	}

	for _, scc := range graphutil.StronglyConnectedComponents(ids, successors) {
		if len(scc) < 2 {
			continue
		}
		for _, id := range scc {
			byID[id].Recursive = true
		}
	}
}
