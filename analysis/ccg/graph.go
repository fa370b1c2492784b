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

// Node is either an allocation call (IsAllocation) or an interior callsite
// (a "stack node") in the calling context graph. Nodes are owned exclusively
// by their Graph's arena and are never deleted, only emptied; see IsRemoved.
type Node[Call comparable, Func comparable] struct {
	// ID is the node's position in its Graph's arena.
	ID int

	IsAllocation bool

	// Call is the identifier of the originating call. HasCall is false
	// when the node was created from a profiled stack id with no
	// matching callsite in the program, or after the node was
	// neutralized by the sanitizer.
	Call    Call
	HasCall bool

	// OrigStackOrAllocID is the raw profile stack id for stack nodes; for
	// alloc nodes it is the first context id minted for that allocation,
	// kept for labeling only.
	OrigStackOrAllocID uint64

	// AllocTypes is the bitwise OR of the labels of every id currently in
	// ContextIDs (invariant 3).
	AllocTypes AllocType

	// ContextIDs is the set of context ids flowing through this node.
	ContextIDs idSet

	// Recursive is set when mutual recursion is detected during MIB
	// ingestion or by the strongly-connected-component supplement.
	// Recursive nodes are never cloned and never carry a call binding.
	Recursive bool

	// EnclosingFunc is the function this node's call, if any, lives in.
	EnclosingFunc Func

	// Clones lists every clone derived from this node, in creation order.
	// Empty on a clone itself.
	Clones []*Node[Call, Func]

	// CloneOf is the non-owning back-reference to the original node, nil
	// for an original.
	CloneOf *Node[Call, Func]

	// CloneIndex is 0 for an original, and the clone's position (starting
	// at 1) among CloneOf.Clones otherwise. It appears in diagnostic
	// labels only; function clone numbers are chosen by AssignFunctions.
	CloneIndex int

	calleeEdges []*Edge[Call, Func]
	calleeIndex map[*Node[Call, Func]]*Edge[Call, Func]
	callerEdges []*Edge[Call, Func]
	callerIndex map[*Node[Call, Func]]*Edge[Call, Func]
}

// CalleeEdges returns the node's outgoing edges in insertion order.
func (n *Node[Call, Func]) CalleeEdges() []*Edge[Call, Func] { return n.calleeEdges }

// CallerEdges returns the node's incoming edges in insertion order.
func (n *Node[Call, Func]) CallerEdges() []*Edge[Call, Func] { return n.callerEdges }

// IsRemoved reports whether the node is logically gone: empty context set
// and empty adjacency lists (invariant 5). Nodes are never actually removed
// from the arena; this just reports the emptied state.
func (n *Node[Call, Func]) IsRemoved() bool {
	return len(n.ContextIDs) == 0 && len(n.calleeEdges) == 0 && len(n.callerEdges) == 0
}

// recomputeAllocTypes recomputes AllocTypes from ContextIDs (invariant 3).
func (n *Node[Call, Func]) recomputeAllocTypes(reg *Registry) {
	n.AllocTypes = n.ContextIDs.allocTypeOf(reg)
}

func (n *Node[Call, Func]) findCalleeEdge(callee *Node[Call, Func]) *Edge[Call, Func] {
	return n.calleeIndex[callee]
}

func (n *Node[Call, Func]) findCallerEdge(caller *Node[Call, Func]) *Edge[Call, Func] {
	return n.callerIndex[caller]
}

func (n *Node[Call, Func]) addCalleeEdge(e *Edge[Call, Func]) {
	n.calleeEdges = append(n.calleeEdges, e)
	n.calleeIndex[e.Callee] = e
}

func (n *Node[Call, Func]) addCallerEdge(e *Edge[Call, Func]) {
	n.callerEdges = append(n.callerEdges, e)
	n.callerIndex[e.Caller] = e
}

func (n *Node[Call, Func]) eraseCalleeEdge(e *Edge[Call, Func]) {
	delete(n.calleeIndex, e.Callee)
	n.calleeEdges = removeEdge(n.calleeEdges, e)
}

func (n *Node[Call, Func]) eraseCallerEdge(e *Edge[Call, Func]) {
	delete(n.callerIndex, e.Caller)
	n.callerEdges = removeEdge(n.callerEdges, e)
}

func removeEdge[Call comparable, Func comparable](s []*Edge[Call, Func], e *Edge[Call, Func]) []*Edge[Call, Func] {
	for i, x := range s {
		if x == e {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// Edge is directed from a caller node to a callee node. It is shared between
// both endpoints' adjacency lists; any mutation of its ContextIDs must be
// reflected on both Caller.ContextIDs/Callee.ContextIDs, and removing it
// always removes it from both lists in the same call (design note,
// spec.md §9).
type Edge[Call comparable, Func comparable] struct {
	Caller, Callee *Node[Call, Func]
	AllocTypes     AllocType
	ContextIDs     idSet
}

// IsEmpty reports whether the edge carries no context ids.
func (e *Edge[Call, Func]) IsEmpty() bool { return len(e.ContextIDs) == 0 }

func (e *Edge[Call, Func]) recomputeAllocTypes(reg *Registry) {
	e.AllocTypes = e.ContextIDs.allocTypeOf(reg)
}

// Graph is the arena that owns every Node, plus the indices the builder and
// matcher need to find nodes by stack id or by call.
type Graph[Call comparable, Func comparable] struct {
	Registry *Registry

	nodes []*Node[Call, Func]

	// stackNodes indexes original (non-clone) stack nodes by their raw
	// profile stack id.
	stackNodes map[uint64]*Node[Call, Func]

	// callIndex/callOrder together give an insertion-ordered map from
	// call to the node currently bound to it, following the teacher's
	// practice of pairing a map with an ordered key slice for
	// deterministic iteration (spec.md §5/§9).
	callIndex map[Call]*Node[Call, Func]
	callOrder []Call
}

// NewGraph returns an empty graph with a fresh Registry.
func NewGraph[Call comparable, Func comparable]() *Graph[Call, Func] {
	return &Graph[Call, Func]{
		Registry:   NewRegistry(),
		stackNodes: make(map[uint64]*Node[Call, Func]),
		callIndex:  make(map[Call]*Node[Call, Func]),
	}
}

// Nodes returns every node in the arena, in creation order, including
// clones.
func (g *Graph[Call, Func]) Nodes() []*Node[Call, Func] { return g.nodes }

func (g *Graph[Call, Func]) newNode(isAlloc bool, enclosingFunc Func) *Node[Call, Func] {
	n := &Node[Call, Func]{
		ID:            len(g.nodes),
		IsAllocation:  isAlloc,
		ContextIDs:    make(idSet),
		EnclosingFunc: enclosingFunc,
		calleeIndex:   make(map[*Node[Call, Func]]*Edge[Call, Func]),
		callerIndex:   make(map[*Node[Call, Func]]*Edge[Call, Func]),
	}
	g.nodes = append(g.nodes, n)
	return n
}

// NewAllocNode creates a fresh allocation node and binds call to it, so
// NodeForCall resolves an allocation call like any other bound call.
func (g *Graph[Call, Func]) NewAllocNode(call Call, enclosingFunc Func) *Node[Call, Func] {
	n := g.newNode(true, enclosingFunc)
	g.BindCall(call, n)
	return n
}

// stackNode looks up (without creating) the original stack node for id.
func (g *Graph[Call, Func]) stackNode(id uint64) (*Node[Call, Func], bool) {
	n, ok := g.stackNodes[id]
	return n, ok
}

// getOrCreateStackNode returns the existing original stack node for id, or
// creates and registers one.
func (g *Graph[Call, Func]) getOrCreateStackNode(id uint64, enclosingFunc Func) *Node[Call, Func] {
	if n, ok := g.stackNodes[id]; ok {
		return n
	}
	n := g.newNode(false, enclosingFunc)
	n.OrigStackOrAllocID = id
	g.stackNodes[id] = n
	return n
}

// BindCall records that call is now handled by n, following insertion order
// for any call seen for the first time.
func (g *Graph[Call, Func]) BindCall(call Call, n *Node[Call, Func]) {
	if _, existed := g.callIndex[call]; !existed {
		g.callOrder = append(g.callOrder, call)
	}
	g.callIndex[call] = n
	n.Call = call
	n.HasCall = true
}

// UnbindCall clears the node's call binding and removes it from the
// call-to-node map (§4.3).
func (g *Graph[Call, Func]) UnbindCall(n *Node[Call, Func]) {
	if n.HasCall {
		delete(g.callIndex, n.Call)
	}
	var zero Call
	n.Call = zero
	n.HasCall = false
}

// NodeForCall returns the node currently bound to call, if any.
func (g *Graph[Call, Func]) NodeForCall(call Call) (*Node[Call, Func], bool) {
	n, ok := g.callIndex[call]
	return n, ok
}

// Calls returns every call with a current binding, in the order each was
// first bound.
func (g *Graph[Call, Func]) Calls() []Call {
	out := make([]Call, 0, len(g.callOrder))
	for _, c := range g.callOrder {
		if _, ok := g.callIndex[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// connectEdge fetches the existing edge from caller to callee, or creates
// one, then inserts id and ORs label into both the edge's and both
// endpoints' context sets.
func (g *Graph[Call, Func]) connectEdge(caller, callee *Node[Call, Func], id ContextID) *Edge[Call, Func] {
	e := caller.findCalleeEdge(callee)
	if e == nil {
		e = &Edge[Call, Func]{Caller: caller, Callee: callee, ContextIDs: make(idSet)}
		caller.addCalleeEdge(e)
		callee.addCallerEdge(e)
	}
	e.ContextIDs.add(id)
	e.recomputeAllocTypes(g.Registry)
	caller.ContextIDs.add(id)
	caller.recomputeAllocTypes(g.Registry)
	callee.ContextIDs.add(id)
	callee.recomputeAllocTypes(g.Registry)
	return e
}

// eraseEdgeIfEmpty removes e from both endpoints' adjacency lists if it
// carries no context ids (invariant 4).
func (g *Graph[Call, Func]) eraseEdgeIfEmpty(e *Edge[Call, Func]) {
	if !e.IsEmpty() {
		return
	}
	e.Caller.eraseCalleeEdge(e)
	e.Callee.eraseCallerEdge(e)
}

// addClone creates a clone of original: same call binding, allocation flag,
// and enclosing function, but empty adjacency and empty context ids. The
// clone is registered with the root original (original itself, or
// original.CloneOf when original is already a clone), appended to its
// Clones and to the graph's arena.
func (g *Graph[Call, Func]) addClone(original *Node[Call, Func]) *Node[Call, Func] {
	root := original
	if root.CloneOf != nil {
		root = root.CloneOf
	}
	clone := g.newNode(original.IsAllocation, original.EnclosingFunc)
	clone.Call = original.Call
	clone.HasCall = original.HasCall
	clone.OrigStackOrAllocID = original.OrigStackOrAllocID
	clone.CloneOf = root
	clone.CloneIndex = len(root.Clones) + 1
	root.Clones = append(root.Clones, clone)
	return clone
}
