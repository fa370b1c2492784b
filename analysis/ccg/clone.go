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

import "sort"

// IdentifyClones splits nodes so that every kept node carries only one
// effective allocation-type label, collapsing NotCold|Cold to NotCold
// (§4.4). It is idempotent: running it again on an already-cloned graph
// produces zero new clones.
func IdentifyClones[Call comparable, Func comparable](g *Graph[Call, Func]) {
	visited := make(map[*Node[Call, Func]]bool)
	var visit func(n *Node[Call, Func])
	visit = func(n *Node[Call, Func]) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, e := range append([]*Edge[Call, Func]{}, n.callerEdges...) {
			visit(e.Caller)
		}
		if !n.HasCall || n.CloneOf != nil || n.Recursive {
			return
		}
		splitNode(g, n)
	}
	for _, n := range append([]*Node[Call, Func]{}, g.nodes...) {
		if n.IsAllocation {
			visit(n)
		}
	}
}

// calleeSignature is the per-callee-edge effective allocation type a node
// would present if only a given subset of its context ids remained.
type calleeSignature[Call comparable, Func comparable] struct {
	nodeEffective AllocType
	perCallee     map[*Node[Call, Func]]AllocType
}

func computeSignature[Call comparable, Func comparable](g *Graph[Call, Func], n *Node[Call, Func], ids idSet) calleeSignature[Call, Func] {
	sig := calleeSignature[Call, Func]{
		nodeEffective: ids.allocTypeOf(g.Registry).Effective(),
		perCallee:     make(map[*Node[Call, Func]]AllocType),
	}
	for _, e := range n.calleeEdges {
		sig.perCallee[e.Callee] = e.ContextIDs.intersect(ids).allocTypeOf(g.Registry).Effective()
	}
	return sig
}

// matchesOriginal reports whether sig is indistinguishable from n's current
// (pre-split) signature — meaning pulling those ids onto a clone would not
// disambiguate anything.
func matchesOriginal[Call comparable, Func comparable](n *Node[Call, Func], sig calleeSignature[Call, Func]) bool {
	if sig.nodeEffective != n.AllocTypes.Effective() {
		return false
	}
	for _, e := range n.calleeEdges {
		want := sig.perCallee[e.Callee]
		if want != e.AllocTypes.Effective() {
			return false
		}
	}
	return true
}

// compatibleClone reports whether clone's current signature already matches
// sig, meaning the edge being processed can join that clone instead of
// forcing a brand new one.
func compatibleClone[Call comparable, Func comparable](clone *Node[Call, Func], sig calleeSignature[Call, Func]) bool {
	if clone.AllocTypes.Effective() != sig.nodeEffective {
		return false
	}
	for _, e := range clone.calleeEdges {
		if e.AllocTypes.Effective() != sig.perCallee[e.Callee] {
			return false
		}
	}
	return true
}

// clonePriority orders caller edges so that Cold-only edges are processed
// first and NotCold-only edges last: the dominant, conservative label stays
// on the original node, which becomes the fallback target for any caller
// the profile didn't track (design note, spec.md §9).
func clonePriority(t AllocType) int {
	switch t {
	case Cold:
		return 1
	case All:
		return 2
	case None:
		return 3
	case NotCold:
		return 4
	default:
		return 5
	}
}

func minContextID(ids idSet) ContextID {
	first := true
	var min ContextID
	for id := range ids {
		if first || id < min {
			min = id
			first = false
		}
	}
	return min
}

// splitNode implements §4.4 steps 3-6 for a single node, once its callers
// have already been recursed into.
func splitNode[Call comparable, Func comparable](g *Graph[Call, Func], n *Node[Call, Func]) {
	if len(n.ContextIDs) == 0 {
		return
	}
	if singleEffectiveLabel(n) || len(n.callerEdges) <= 1 {
		return
	}

	edges := append([]*Edge[Call, Func]{}, n.callerEdges...)
	sort.SliceStable(edges, func(i, j int) bool {
		pi, pj := clonePriority(edges[i].AllocTypes), clonePriority(edges[j].AllocTypes)
		if pi != pj {
			return pi < pj
		}
		return minContextID(edges[i].ContextIDs) < minContextID(edges[j].ContextIDs)
	})

	for _, e := range edges {
		if singleEffectiveLabel(n) || len(n.callerEdges) <= 1 {
			break
		}
		sig := computeSignature(g, n, e.ContextIDs)
		if matchesOriginal(n, sig) {
			continue
		}
		var target *Node[Call, Func]
		for _, clone := range n.Clones {
			if compatibleClone(clone, sig) {
				target = clone
				break
			}
		}
		if target != nil {
			MoveEdgeToExistingCalleeClone(g, e, target)
		} else {
			MoveEdgeToNewCalleeClone(g, e)
		}
	}

	pruneEmptyEdges(g, n)
	for _, clone := range n.Clones {
		pruneEmptyEdges(g, clone)
	}
}

// singleEffectiveLabel reports whether n's current context ids already
// carry a single allocation type (NotCold or Cold alone), as opposed to the
// mixed All a split is meant to resolve.
func singleEffectiveLabel[Call comparable, Func comparable](n *Node[Call, Func]) bool {
	return n.AllocTypes != All
}
