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

import (
	"sort"

	"github.com/ccgraph/memprofctx/internal/funcutil"
)

// bucketEntry is one non-allocation call being matched against the graph,
// together with the portion of its work UpdateStackNodes has computed so
// far (§4.2 step B).
type bucketEntry[Call comparable, Func comparable] struct {
	call          Call
	enclosingFunc Func
	// chain is the call's stack-id chain restricted to ids that have a
	// node, ordered outermost first (chain[0] is the bucket key, the
	// last element is the innermost/callsite frame) — the orientation
	// caller edges walk in this package.
	chain []uint64
	// reachedOutermostFrame is true when chain[0] is the call's actual
	// outermost stack frame, i.e. no outer ids were dropped for lack of a
	// node.
	reachedOutermostFrame bool
	// assigned is the set of context ids UpdateStackNodes decided belong
	// to this call. Starts empty, filled in by step B.
	assigned idSet
}

// UpdateStackNodes attaches the program's non-allocation callsites to the
// graph and synthesizes interior nodes where inlining caused one real
// callsite to correspond to several stack ids (§4.2).
func UpdateStackNodes[Call comparable, Func comparable](
	g *Graph[Call, Func], adapter Adapter[Call, Func], calls []CallsiteCall[Call, Func],
) {
	buckets := bucketCalls(g, adapter, calls)
	if len(buckets) == 0 {
		return
	}

	oldToNew := make(map[ContextID][]ContextID)
	for outermostID, entries := range buckets {
		stackNode, ok := g.stackNode(outermostID)
		if !ok {
			continue
		}
		matchBucket(g, stackNode, entries, oldToNew)
	}

	propagateDuplicateIDs(g, oldToNew)
	assignPostOrder(g, buckets)
}

// CallsiteCall is one non-allocation call to match: its own stack-id chain,
// ordered from the callsite itself outward, as supplied by the adapter.
type CallsiteCall[Call comparable, Func comparable] struct {
	Call          Call
	EnclosingFunc Func
}

// bucketCalls implements step A: maps each call to the outermost stack id
// in its chain that has a corresponding node, and groups calls by that id.
func bucketCalls[Call comparable, Func comparable](
	g *Graph[Call, Func], adapter Adapter[Call, Func], calls []CallsiteCall[Call, Func],
) map[uint64][]*bucketEntry[Call, Func] {
	buckets := make(map[uint64][]*bucketEntry[Call, Func])
	for _, c := range calls {
		// StackIDsWithContextNodes returns the prefix ordered innermost
		// (callsite) first, outward; reverse it so chain[0] is the
		// outermost id, matching the caller-edge orientation the
		// builder wires (§4.1): chain[i+1] is the caller of chain[i].
		withNodes := adapter.StackIDsWithContextNodes(c.Call)
		var restricted []uint64
		for _, raw := range withNodes {
			id := adapter.StackID(raw)
			if _, ok := g.stackNode(id); ok {
				restricted = append(restricted, id)
			}
		}
		if len(restricted) == 0 {
			continue
		}
		chain := append([]uint64{}, restricted...)
		funcutil.Reverse(chain)
		outermost := chain[0]
		buckets[outermost] = append(buckets[outermost], &bucketEntry[Call, Func]{
			call:                  c.Call,
			enclosingFunc:         c.EnclosingFunc,
			chain:                 chain,
			reachedOutermostFrame: adapter.StackID(adapter.LastStackID(c.Call)) == chain[0],
			assigned:              make(idSet),
		})
	}
	return buckets
}

// matchBucket implements step B for a single bucket: sorts entries
// descending by chain length (ties broken lexicographically), computes each
// entry's context-id intersection along the chain, detects duplicate
// chains, and subtracts assigned ids from the running pool.
func matchBucket[Call comparable, Func comparable](
	g *Graph[Call, Func], outermostNode *Node[Call, Func], entries []*bucketEntry[Call, Func],
	oldToNew map[ContextID][]ContextID,
) {
	sort.SliceStable(entries, func(i, j int) bool {
		if len(entries[i].chain) != len(entries[j].chain) {
			return len(entries[i].chain) > len(entries[j].chain)
		}
		return lexLess(entries[i].chain, entries[j].chain)
	})

	lastNodeContextIDs := outermostNode.ContextIDs.clone()

	for i, entry := range entries {
		if outermostNode.Recursive {
			continue
		}

		ids := intersectAlongChain(g, outermostNode, entry.chain)
		if ids == nil {
			continue
		}
		ids = ids.intersect(lastNodeContextIDs)
		if len(ids) == 0 {
			continue
		}

		if !entry.reachedOutermostFrame {
			innermost, ok := g.stackNode(entry.chain[len(entry.chain)-1])
			if ok {
				for _, e := range innermost.callerEdges {
					ids.removeAll(e.ContextIDs)
				}
			}
		}

		if i+1 < len(entries) && sameChain(entries[i+1].chain, entry.chain) {
			dup := make(idSet, len(ids))
			for id := range ids {
				newID := g.Registry.Duplicate(id)
				dup.add(newID)
				oldToNew[id] = append(oldToNew[id], newID)
			}
			entry.assigned = dup
		} else {
			entry.assigned = ids
		}

		lastNodeContextIDs.removeAll(entry.assigned)
	}
}

// intersectAlongChain computes the intersection of context-id sets along
// every edge traversed from outermostNode inward through chain (ordered
// outermost first). It returns nil if any needed edge is absent or the
// running intersection becomes empty.
func intersectAlongChain[Call comparable, Func comparable](
	g *Graph[Call, Func], outermostNode *Node[Call, Func], chain []uint64,
) idSet {
	ids := outermostNode.ContextIDs.clone()
	cur := outermostNode
	for i := 1; i < len(chain); i++ {
		next, ok := g.stackNode(chain[i])
		if !ok {
			return nil
		}
		e := cur.findCalleeEdge(next)
		if e == nil {
			return nil
		}
		ids = ids.intersect(e.ContextIDs)
		if len(ids) == 0 {
			return nil
		}
		cur = next
	}
	return ids
}

func sameChain(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lexLess(a, b []uint64) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// propagateDuplicateIDs implements step C: for every old id that was
// duplicated, walk the graph along caller edges from every alloc node, and
// wherever an edge carries the old id, also insert the new id(s), extending
// both endpoints' context sets. Each edge is visited at most once.
func propagateDuplicateIDs[Call comparable, Func comparable](g *Graph[Call, Func], oldToNew map[ContextID][]ContextID) {
	if len(oldToNew) == 0 {
		return
	}
	visited := make(map[*Edge[Call, Func]]bool)
	var visit func(n *Node[Call, Func])
	visit = func(n *Node[Call, Func]) {
		for _, e := range n.callerEdges {
			if visited[e] {
				continue
			}
			visited[e] = true
			for old, news := range oldToNew {
				if !e.ContextIDs[old] {
					continue
				}
				for _, newID := range news {
					e.ContextIDs.add(newID)
					e.Caller.ContextIDs.add(newID)
					e.Callee.ContextIDs.add(newID)
				}
			}
			e.recomputeAllocTypes(g.Registry)
			e.Caller.recomputeAllocTypes(g.Registry)
			e.Callee.recomputeAllocTypes(g.Registry)
			visit(e.Caller)
		}
	}
	for _, n := range g.nodes {
		if n.IsAllocation {
			visit(n)
		}
	}
}

// assignPostOrder implements step D: a post-order traversal from alloc
// nodes up through caller edges, binding calls to existing or newly
// synthesized nodes.
func assignPostOrder[Call comparable, Func comparable](g *Graph[Call, Func], buckets map[uint64][]*bucketEntry[Call, Func]) {
	visited := make(map[*Node[Call, Func]]bool)
	var visit func(n *Node[Call, Func])
	visit = func(n *Node[Call, Func]) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, e := range n.callerEdges {
			visit(e.Caller)
		}
		entries, ok := buckets[n.OrigStackOrAllocID]
		if !ok || n.IsAllocation {
			return
		}
		assignBucketToNode(g, n, entries)
	}
	for _, n := range g.nodes {
		if n.IsAllocation {
			visit(n)
		}
	}
}

// assignBucketToNode implements the trivial and general cases of step D for
// a single bucket keyed by n.
func assignBucketToNode[Call comparable, Func comparable](g *Graph[Call, Func], n *Node[Call, Func], entries []*bucketEntry[Call, Func]) {
	if len(entries) == 1 && len(entries[0].chain) == 1 {
		if !n.Recursive {
			n.EnclosingFunc = entries[0].enclosingFunc
			g.BindCall(entries[0].call, n)
		}
		return
	}

	for _, entry := range entries {
		if len(entry.assigned) == 0 {
			continue
		}
		newNode := g.newNode(false, entry.enclosingFunc)
		newNode.OrigStackOrAllocID = n.OrigStackOrAllocID
		g.BindCall(entry.call, newNode)

		innermost, ok := g.stackNode(entry.chain[len(entry.chain)-1])
		if ok {
			spliceTowardCallee(g, innermost, newNode, entry.assigned)
		}
		spliceTowardCaller(g, n, newNode, entry.assigned)
		subtractAlongChain(g, entry.chain, entry.assigned)

		for id := range entry.assigned {
			newNode.ContextIDs.add(id)
		}
		newNode.recomputeAllocTypes(g.Registry)
	}
}

// spliceTowardCallee moves, for every callee edge of innermost, the subset
// of context ids matching assigned onto a fresh edge between the same
// callee and newNode, removing the old edge if it becomes empty.
func spliceTowardCallee[Call comparable, Func comparable](g *Graph[Call, Func], innermost, newNode *Node[Call, Func], assigned idSet) {
	for _, e := range append([]*Edge[Call, Func]{}, innermost.calleeEdges...) {
		moved := e.ContextIDs.intersect(assigned)
		if len(moved) == 0 {
			continue
		}
		for id := range moved {
			g.connectEdge(newNode, e.Callee, id)
			e.ContextIDs.remove(id)
		}
		e.recomputeAllocTypes(g.Registry)
		g.eraseEdgeIfEmpty(e)
	}
}

// spliceTowardCaller is the mirror of spliceTowardCallee, splicing from
// outermost's caller edges.
func spliceTowardCaller[Call comparable, Func comparable](g *Graph[Call, Func], outermost, newNode *Node[Call, Func], assigned idSet) {
	for _, e := range append([]*Edge[Call, Func]{}, outermost.callerEdges...) {
		moved := e.ContextIDs.intersect(assigned)
		if len(moved) == 0 {
			continue
		}
		for id := range moved {
			g.connectEdge(e.Caller, newNode, id)
			e.ContextIDs.remove(id)
		}
		e.recomputeAllocTypes(g.Registry)
		g.eraseEdgeIfEmpty(e)
	}
}

// subtractAlongChain walks chain's ids in order, subtracting assigned from
// every intermediate node and from the edges connecting consecutive ids,
// dropping edges that become empty.
func subtractAlongChain[Call comparable, Func comparable](g *Graph[Call, Func], chain []uint64, assigned idSet) {
	var nodes []*Node[Call, Func]
	for _, id := range chain {
		n, ok := g.stackNode(id)
		if !ok {
			return
		}
		nodes = append(nodes, n)
	}
	for _, n := range nodes {
		n.ContextIDs.removeAll(assigned)
		n.recomputeAllocTypes(g.Registry)
	}
	for i := 0; i+1 < len(nodes); i++ {
		// nodes is ordered outermost first: nodes[i] (farther out) is the
		// caller of nodes[i+1] (closer in).
		e := nodes[i].findCalleeEdge(nodes[i+1])
		if e == nil {
			continue
		}
		e.ContextIDs.removeAll(assigned)
		e.recomputeAllocTypes(g.Registry)
		g.eraseEdgeIfEmpty(e)
	}
}
