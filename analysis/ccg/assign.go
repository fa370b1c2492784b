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

// assignState carries the bookkeeping that AssignFunctions needs across
// every original function and callsite it processes (§4.6).
type assignState[Call comparable, Func comparable] struct {
	g       *Graph[Call, Func]
	adapter Adapter[Call, Func]

	// extraClones holds, per original function, the function clones
	// materialized so far beyond the original itself, in creation order.
	extraClones map[Func][]Func

	// callsiteToCalleeFuncClone maps a node whose call invokes some
	// function to the clone of that function it should now target. This
	// is also the state the final emit pass reads back.
	callsiteToCalleeFuncClone map[*Node[Call, Func]]Func

	// funcClonesToCallMap records, for every function clone materialized
	// so far, the mapping from an original call of that function to its
	// physical copy inside the clone's body. Every callsite node placed
	// into a function clone — whether that placement is what triggers the
	// clone's creation or reuses a clone created for some earlier
	// callsite — rebinds its Call through this map, so no two nodes ever
	// stay bound to the same physical call once they're assigned to
	// different function clones (§4.6 "State").
	funcClonesToCallMap map[Func]map[Call]Call
}

// AssignFunctions resolves graph cloning into a concrete set of function
// clones and a call-retarget for every caller, then emits the result
// through the adapter (§4.6).
func AssignFunctions[Call comparable, Func comparable](g *Graph[Call, Func], adapter Adapter[Call, Func]) {
	st := &assignState[Call, Func]{
		g:                         g,
		adapter:                   adapter,
		extraClones:               make(map[Func][]Func),
		callsiteToCalleeFuncClone: make(map[*Node[Call, Func]]Func),
		funcClonesToCallMap:       make(map[Func]map[Call]Call),
	}

	// Allocation nodes are grouped and processed exactly like ordinary
	// callsite nodes, not skipped: an allocation whose caller edges carry
	// more than one label needs its physically-one call site to live
	// inside more than one clone of its enclosing function, and that
	// decision is assignCallsite's job either way (see the callMapping
	// rebind in resolveFuncClone below, which is what keeps each
	// allocation clone pointed at its own physical copy of the call
	// instead of all of them colliding on the original).
	var order []Func
	seen := make(map[Func]bool)
	byFunc := make(map[Func][]*Node[Call, Func])
	for _, n := range g.Nodes() {
		if n.CloneOf != nil || !n.HasCall {
			continue
		}
		f := n.EnclosingFunc
		if !seen[f] {
			seen[f] = true
			order = append(order, f)
		}
		byFunc[f] = append(byFunc[f], n)
	}

	for _, f := range order {
		for _, n := range byFunc[f] {
			st.assignCallsite(f, n)
		}
	}

	for _, n := range g.Nodes() {
		pruneEmptyEdges(g, n)
	}

	st.emit()
}

// assignCallsite processes one original callsite node and every clone of
// it, deciding which physical function clone of f each lands in and
// retargeting every caller accordingly (§4.6).
//
// A caller that already calls some function clone Q for a different node
// clone of this same callsite can't simply be rebound: it would start
// calling Q for a context it was never specialized for. Instead the
// caller's edge is split off onto a fresh node clone pinned to Q, so Q
// keeps seeing exactly the callsite behavior it was already assigned.
func (st *assignState[Call, Func]) assignCallsite(f Func, n *Node[Call, Func]) {
	pinned := make(map[*Node[Call, Func]]Func)

	worklist := make([]*Node[Call, Func], 0, 1+len(n.Clones))
	if len(n.ContextIDs) > 0 {
		worklist = append(worklist, n)
	}
	worklist = append(worklist, n.Clones...)

	k := 0
	for len(worklist) > 0 {
		c := worklist[0]
		worklist = worklist[1:]
		if len(c.ContextIDs) == 0 {
			continue
		}

		target, ok := pinned[c]
		if !ok {
			k++
			target = st.resolveFuncClone(f, c, k)
		} else {
			// c was spliced off a caller-edge conflict straight onto an
			// already-resolved target (resolveFuncClone never ran for it),
			// but it still carries its own physical call that needs to live
			// inside target's body same as any other node assigned there.
			st.bindCallIntoClone(target, c)
		}

		for _, e := range append([]*Edge[Call, Func]{}, c.callerEdges...) {
			caller := e.Caller
			if bound, ok := st.callsiteToCalleeFuncClone[caller]; ok {
				if bound == target {
					continue
				}
				split := MoveEdgeToNewCalleeClone(st.g, e)
				pinned[split] = bound
				worklist = append(worklist, split)
				continue
			}
			st.callsiteToCalleeFuncClone[caller] = target
		}
	}
}

// resolveFuncClone implements §4.6 step 2: pick or materialize the k-th
// function clone of f for node c.
func (st *assignState[Call, Func]) resolveFuncClone(f Func, c *Node[Call, Func], k int) Func {
	existing := st.extraClones[f]

	var target Func
	if k <= 1+len(existing) {
		if k == 1 {
			target = f
		} else {
			target = existing[k-2]
		}
	} else {
		cloneNo := len(existing) + 1
		newFunc, callMapping := st.adapter.CloneFunctionForCallsite(f, c.Call, cloneNo)
		st.extraClones[f] = append(existing, newFunc)
		st.funcClonesToCallMap[newFunc] = callMapping
		target = newFunc
	}

	// c's own call must physically live inside whichever function clone it
	// was just assigned to — reused or freshly materialized, it makes no
	// difference: every callsite node placed into a clone rebinds through
	// that clone's own original-call -> cloned-call map, so two node clones
	// landing in two different function clones never keep pointing at the
	// same physical call.
	st.bindCallIntoClone(target, c)
	return target
}

// bindCallIntoClone rebinds c's physical call through target's own
// original-call -> cloned-call map, so that c ends up pointing at the copy
// of the call living inside target's body rather than whatever call it
// inherited at clone-creation time. This runs for every node placed into a
// function clone, regardless of whether that placement is what resolved the
// clone (resolveFuncClone) or reused an already-resolved one (a split node
// pinned onto a target by assignCallsite) — either way, two node clones
// landing in two different function clones must never keep pointing at the
// same physical call.
func (st *assignState[Call, Func]) bindCallIntoClone(target Func, c *Node[Call, Func]) {
	if !c.HasCall {
		return
	}
	callMap, ok := st.funcClonesToCallMap[target]
	if !ok {
		return
	}
	if mapped, ok := callMap[c.Call]; ok {
		st.g.BindCall(mapped, c)
	}
}

// emit walks every clone reachable from an alloc node and writes the final
// labels and call-retargets back through the adapter (§4.6 final pass).
func (st *assignState[Call, Func]) emit() {
	visited := make(map[*Node[Call, Func]]bool)
	var visit func(n *Node[Call, Func])
	visit = func(n *Node[Call, Func]) {
		if visited[n] {
			return
		}
		visited[n] = true

		if n.IsAllocation {
			if n.HasCall {
				st.adapter.UpdateAllocationCall(n.Call, n.AllocTypes.Effective())
			}
		} else if n.HasCall {
			if target, ok := st.callsiteToCalleeFuncClone[n]; ok {
				st.adapter.UpdateCall(n.Call, target)
			}
		}

		for _, e := range n.callerEdges {
			visit(e.Caller)
		}
	}
	for _, n := range append([]*Node[Call, Func]{}, st.g.nodes...) {
		if n.IsAllocation {
			visit(n)
		}
	}
}
