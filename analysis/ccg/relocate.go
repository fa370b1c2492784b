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

// MoveEdgeToExistingCalleeClone re-attaches e so its callee becomes target
// instead of e's current callee, carrying e's context ids (and everything
// those ids reach further toward the allocation) onto target (§4.5).
func MoveEdgeToExistingCalleeClone[Call comparable, Func comparable](g *Graph[Call, Func], e *Edge[Call, Func], target *Node[Call, Func]) {
	moveCallerEdge(g, e, target)
}

// MoveEdgeToNewCalleeClone creates a fresh clone of e's current callee and
// moves e onto it, as MoveEdgeToExistingCalleeClone does onto an existing
// target.
func MoveEdgeToNewCalleeClone[Call comparable, Func comparable](g *Graph[Call, Func], e *Edge[Call, Func]) *Node[Call, Func] {
	clone := g.addClone(e.Callee)
	moveCallerEdge(g, e, clone)
	return clone
}

// moveCallerEdge re-homes e's callee endpoint from original to target, then
// splits every downstream callee edge of original so the ids that moved
// keep flowing to the same alloc-ward nodes, now via target.
func moveCallerEdge[Call comparable, Func comparable](g *Graph[Call, Func], e *Edge[Call, Func], target *Node[Call, Func]) {
	original := e.Callee
	ids := e.ContextIDs.clone()

	original.eraseCallerEdge(e)
	e.Callee = target
	target.addCallerEdge(e)

	target.ContextIDs.addAll(ids)
	target.recomputeAllocTypes(g.Registry)
	original.ContextIDs.removeAll(ids)
	original.recomputeAllocTypes(g.Registry)

	retargetDescendants(g, original, target, ids)
}

// retargetDescendants moves ids off every one of from's callee edges and
// onto a matching edge from to, erasing any callee edge of from left empty.
func retargetDescendants[Call comparable, Func comparable](g *Graph[Call, Func], from, to *Node[Call, Func], ids idSet) {
	for _, e2 := range append([]*Edge[Call, Func]{}, from.calleeEdges...) {
		moved := e2.ContextIDs.intersect(ids)
		if len(moved) == 0 {
			continue
		}
		for id := range moved {
			g.connectEdge(to, e2.Callee, id)
		}
		e2.ContextIDs.removeAll(moved)
		e2.recomputeAllocTypes(g.Registry)
		g.eraseEdgeIfEmpty(e2)
	}
}

// pruneEmptyEdges drops every callee edge of n left with no context ids
// (§4.7), shared by the cloning engine and the function assigner.
func pruneEmptyEdges[Call comparable, Func comparable](g *Graph[Call, Func], n *Node[Call, Func]) {
	for _, e := range append([]*Edge[Call, Func]{}, n.calleeEdges...) {
		g.eraseEdgeIfEmpty(e)
	}
}
