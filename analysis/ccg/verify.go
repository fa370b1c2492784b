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

import "github.com/pkg/errors"

// VerifyGraph checks the graph-level invariants from spec.md §3/§8 and
// returns every violation found, rather than stopping at the first one, so
// a single run surfaces the whole picture.
func VerifyGraph[Call comparable, Func comparable](g *Graph[Call, Func]) []error {
	var errs []error
	for _, n := range g.nodes {
		errs = append(errs, VerifyNode(g, n)...)
	}
	return errs
}

// VerifyNode checks the per-node and per-edge invariants centered on n.
func VerifyNode[Call comparable, Func comparable](g *Graph[Call, Func], n *Node[Call, Func]) []error {
	var errs []error

	// Invariant: AllocTypes is exactly the OR of the labels of every id
	// currently in ContextIDs.
	if want := n.ContextIDs.allocTypeOf(g.Registry); want != n.AllocTypes {
		errs = append(errs, errors.Errorf("node %d: AllocTypes %v, want %v from %d context ids", n.ID, n.AllocTypes, want, len(n.ContextIDs)))
	}

	// Invariant: a non-allocation node's context set is empty iff both of
	// its adjacency lists are empty. Allocation nodes are not checked here.
	empty := len(n.ContextIDs) == 0
	noEdges := len(n.calleeEdges) == 0 && len(n.callerEdges) == 0
	if empty != noEdges && !n.IsAllocation {
		errs = append(errs, errors.Errorf("node %d: context-id emptiness (%v) disagrees with adjacency emptiness (%v)", n.ID, empty, noEdges))
	}

	for _, e := range n.calleeEdges {
		errs = append(errs, verifyEdge(g, e)...)
	}

	// Invariant: after cloning, a bound, non-recursive node carries a
	// single effective allocation type, or has at most one caller edge.
	if n.HasCall && !n.Recursive && n.CloneOf == nil {
		if n.AllocTypes == All && len(n.callerEdges) > 1 {
			errs = append(errs, errors.Errorf("node %d: ambiguous AllocTypes %v survived cloning with %d caller edges", n.ID, n.AllocTypes, len(n.callerEdges)))
		}
	}

	return errs
}

func verifyEdge[Call comparable, Func comparable](g *Graph[Call, Func], e *Edge[Call, Func]) []error {
	var errs []error

	// Invariant: no callee edge carries an empty (None) context-id set.
	if e.IsEmpty() {
		errs = append(errs, errors.Errorf("edge %d->%d: empty context-id set was not pruned", e.Caller.ID, e.Callee.ID))
	}

	// Invariant: AllocTypes on the edge matches the OR of its own ids'
	// labels.
	if want := e.ContextIDs.allocTypeOf(g.Registry); want != e.AllocTypes {
		errs = append(errs, errors.Errorf("edge %d->%d: AllocTypes %v, want %v", e.Caller.ID, e.Callee.ID, e.AllocTypes, want))
	}

	// Invariant: an edge's context ids are a subset of both endpoints'.
	for id := range e.ContextIDs {
		if !e.Caller.ContextIDs[id] {
			errs = append(errs, errors.Errorf("edge %d->%d: id %d missing from caller's context ids", e.Caller.ID, e.Callee.ID, id))
		}
		if !e.Callee.ContextIDs[id] {
			errs = append(errs, errors.Errorf("edge %d->%d: id %d missing from callee's context ids", e.Caller.ID, e.Callee.ID, id))
		}
	}

	// Invariant: the edge is registered in both endpoints' adjacency lists.
	if e.Caller.findCalleeEdge(e.Callee) != e {
		errs = append(errs, errors.Errorf("edge %d->%d: not indexed on caller side", e.Caller.ID, e.Callee.ID))
	}
	if e.Callee.findCallerEdge(e.Caller) != e {
		errs = append(errs, errors.Errorf("edge %d->%d: not indexed on callee side", e.Caller.ID, e.Callee.ID))
	}

	return errs
}
