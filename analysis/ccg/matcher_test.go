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
	"fmt"
	"testing"
)

// TestUpdateStackNodesSplitsDuplicateChains covers the duplicate-chain case:
// two distinct physical calls share the exact same stack-id chain into one
// allocation (the profiler observed the same call more than once along an
// identical context). Matching must not let both calls collapse onto one
// node; the second occurrence gets a freshly duplicated context id so each
// call keeps its own slice of the allocation's contexts.
func TestUpdateStackNodesSplitsDuplicateChains(t *testing.T) {
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{
			Call:          "alloc0",
			EnclosingFunc: "F",
			MIBs: []MIB{
				{StackIDs: []uint64{10, 20}, Label: NotCold},
			},
		},
	}
	Build(g, allocs)

	adapter := newFakeAdapter()
	adapter.contextIDs["callA"] = []uint64{10, 20}
	adapter.contextIDs["callB"] = []uint64{10, 20}
	adapter.lastStackID["callA"] = 20
	adapter.lastStackID["callB"] = 20

	calls := []CallsiteCall[string, string]{
		{Call: "callA", EnclosingFunc: "F"},
		{Call: "callB", EnclosingFunc: "F"},
	}
	UpdateStackNodes(g, adapter, calls)

	nodeA, okA := g.NodeForCall("callA")
	nodeB, okB := g.NodeForCall("callB")
	if !okA || !okB {
		t.Fatalf("expected both callA and callB to resolve to a node, got okA=%v okB=%v", okA, okB)
	}
	if nodeA == nodeB {
		t.Fatalf("expected callA and callB to bind to distinct nodes after duplicate-chain splitting")
	}
	if len(nodeA.ContextIDs) != 1 || len(nodeB.ContextIDs) != 1 {
		t.Fatalf("expected each split node to carry exactly one context id, got %d and %d", len(nodeA.ContextIDs), len(nodeB.ContextIDs))
	}
	for id := range nodeA.ContextIDs {
		if nodeB.ContextIDs[id] {
			t.Errorf("expected nodeA and nodeB to carry disjoint context ids, both have %v", id)
		}
	}

	node20, _ := g.stackNode(20)
	node10, _ := g.stackNode(10)
	if len(node20.ContextIDs) != 0 || len(node10.ContextIDs) != 0 {
		t.Errorf("expected the shared chain nodes to be fully drained once both calls were spliced off, got node20=%v node10=%v", node20.ContextIDs, node10.ContextIDs)
	}

	if errs := VerifyGraph(g); len(errs) != 0 {
		t.Errorf("unexpected invariant violations: %v", errs)
	}
}

// TestUpdateStackNodesSharedCallerMinimality covers minimality across
// multiple allocations with a shared caller: two allocations inlined at the
// same call frame should drive a single, unambiguous callsite match onto the
// existing stack node rather than synthesizing a redundant one, and the
// shared context stays shared all the way through AssignFunctions — no
// clone gets manufactured when nothing downstream actually disambiguates.
func TestUpdateStackNodesSharedCallerMinimality(t *testing.T) {
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{Call: "alloc1", EnclosingFunc: "F", MIBs: []MIB{{StackIDs: []uint64{50}, Label: NotCold}}},
		{Call: "alloc2", EnclosingFunc: "F", MIBs: []MIB{{StackIDs: []uint64{50}, Label: NotCold}}},
	}
	Build(g, allocs)

	node50, ok := g.stackNode(50)
	if !ok {
		t.Fatalf("expected a shared stack node for id 50")
	}
	if len(node50.ContextIDs) != 2 {
		t.Fatalf("expected the shared caller to carry both allocations' context ids, got %v", node50.ContextIDs)
	}

	adapter := newFakeAdapter()
	adapter.contextIDs["callM"] = []uint64{50}
	adapter.lastStackID["callM"] = 50

	before := len(g.Nodes())
	UpdateStackNodes(g, adapter, []CallsiteCall[string, string]{{Call: "callM", EnclosingFunc: "F"}})
	after := len(g.Nodes())

	if after != before {
		t.Errorf("expected an unambiguous single-chain match to bind in place, not synthesize a node: node count went from %d to %d", before, after)
	}
	bound, ok := g.NodeForCall("callM")
	if !ok || bound != node50 {
		t.Fatalf("expected callM to bind directly to the shared node, got bound=%v ok=%v", bound, ok)
	}
	if len(node50.ContextIDs) != 2 {
		t.Errorf("expected the shared node's context ids to survive minimal matching untouched, got %v", node50.ContextIDs)
	}

	SanitizeMultiTargets(g, adapter)
	IdentifyClones(g)
	AssignFunctions(g, adapter)

	if errs := VerifyGraph(g); len(errs) != 0 {
		t.Errorf("unexpected invariant violations after full pipeline: %v", errs)
	}
	if adapter.cloneCount["F"] != 0 {
		t.Errorf("expected no function clone of F when nothing disambiguates the shared callsite, got %d", adapter.cloneCount["F"])
	}
}

// funcScopedAdapter models the positional, whole-function call mapping
// ssaadapter.CloneFunctionForCallsite actually builds (every call inside the
// cloned function gets a counterpart, not just the call that triggered the
// clone), as opposed to fakeAdapter's single-entry mapping. It exists so this
// test can exercise a second, independent callsite in the same function
// reusing a function clone created for the first.
type funcScopedAdapter struct {
	callsOfFunc   map[string][]string
	cloneCount    map[string]int
	updatedCalls  map[string]string
	updatedAllocs map[string]AllocType
}

func newFuncScopedAdapter() *funcScopedAdapter {
	return &funcScopedAdapter{
		callsOfFunc:   make(map[string][]string),
		cloneCount:    make(map[string]int),
		updatedCalls:  make(map[string]string),
		updatedAllocs: make(map[string]AllocType),
	}
}

func (a *funcScopedAdapter) StackID(raw uint64) uint64                        { return raw }
func (a *funcScopedAdapter) LastStackID(call string) uint64                   { return 0 }
func (a *funcScopedAdapter) StackIDsWithContextNodes(call string) []uint64    { return nil }
func (a *funcScopedAdapter) CalleeMatchesFunc(call string, fn string) bool    { return true }
func (a *funcScopedAdapter) UpdateAllocationCall(call string, label AllocType) {
	a.updatedAllocs[call] = label
}
func (a *funcScopedAdapter) UpdateCall(call string, calleeFunc string) {
	a.updatedCalls[call] = calleeFunc
}
func (a *funcScopedAdapter) CloneFunctionForCallsite(fn string, call string, cloneNo int) (string, map[string]string) {
	a.cloneCount[fn]++
	clone := fmt.Sprintf("%s.%d", fn, cloneNo)
	mapping := make(map[string]string, len(a.callsOfFunc[fn]))
	for _, c := range a.callsOfFunc[fn] {
		mapping[c] = c + "@" + clone
	}
	return clone, mapping
}
func (a *funcScopedAdapter) Label(fn string, call string, cloneNo int) string {
	return fmt.Sprintf("%s.%d", fn, cloneNo)
}

// TestAssignFunctionsRebindsSecondCallsiteIntoReusedFuncClone is the
// regression case for a sibling callsite reusing a function clone that a
// different callsite's own split already materialized: two distinct
// allocations share an enclosing function, each split by IdentifyClones into
// an original plus one clone. Assigning the first callsite's clone creates
// G.1; assigning the second callsite's own clone then reuses G.1 rather than
// creating G.2. Every node with a call binding must end up pointing at a
// distinct physical call afterward — reusing G.1 without rebinding would
// leave the second callsite's clone still pointing at the same physical call
// as the second callsite's original.
func TestAssignFunctionsRebindsSecondCallsiteIntoReusedFuncClone(t *testing.T) {
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{
			Call:          "alloc1",
			EnclosingFunc: "G",
			MIBs: []MIB{
				{StackIDs: []uint64{11, 101}, Label: NotCold},
				{StackIDs: []uint64{11, 201}, Label: Cold},
			},
		},
		{
			Call:          "alloc2",
			EnclosingFunc: "G",
			MIBs: []MIB{
				{StackIDs: []uint64{12, 102}, Label: NotCold},
				{StackIDs: []uint64{12, 202}, Label: Cold},
			},
		},
	}
	Build(g, allocs)

	n11, ok := g.stackNode(11)
	if !ok {
		t.Fatalf("expected a stack node for id 11")
	}
	g.BindCall("call11", n11)
	n12, ok := g.stackNode(12)
	if !ok {
		t.Fatalf("expected a stack node for id 12")
	}
	g.BindCall("call12", n12)

	IdentifyClones(g)
	if len(n11.Clones) == 0 || len(n12.Clones) == 0 {
		t.Fatalf("expected both mixed-label callsites to be split by IdentifyClones, got %d and %d clones", len(n11.Clones), len(n12.Clones))
	}

	adapter := newFuncScopedAdapter()
	adapter.callsOfFunc["G"] = []string{"call11", "call12"}

	AssignFunctions(g, adapter)

	if errs := VerifyGraph(g); len(errs) != 0 {
		t.Errorf("unexpected invariant violations after assignment: %v", errs)
	}

	seen := make(map[string]*Node[string, string])
	for _, n := range g.Nodes() {
		if !n.HasCall {
			continue
		}
		if other, dup := seen[n.Call]; dup {
			t.Errorf("call %q bound to more than one node after AssignFunctions (node %d and node %d) — a reused function clone failed to rebind its callsite", n.Call, other.ID, n.ID)
			continue
		}
		seen[n.Call] = n
	}

	if adapter.cloneCount["G"] == 0 {
		t.Fatalf("expected at least one function clone of G to be materialized, got none — test setup did not exercise cloning")
	}
}

// TestAssignFunctionsRebindsPinnedSplitOntoSharedFunctionClone is the
// regression case for assignCallsite's "pinned" branch specifically: a
// caller shared by two callsites of the same function sees the first
// callsite materialize a new function clone, then the second, unsplit
// callsite's own edge to that same caller gets spliced off onto a fresh
// node pinned directly to the already-resolved clone — bypassing
// resolveFuncClone entirely, since the target is already known. The
// spliced node must still rebind its own physical call through the
// target clone's call map; skipping that would leave it pointing at the
// same physical call as the original, now-orphaned node it was split away
// from.
func TestAssignFunctionsRebindsPinnedSplitOntoSharedFunctionClone(t *testing.T) {
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{
			Call:          "allocN",
			EnclosingFunc: "Leaf",
			MIBs: []MIB{
				{StackIDs: []uint64{100, 500}, Label: NotCold},
				{StackIDs: []uint64{100, 600}, Label: Cold},
			},
		},
		{
			Call:          "allocM",
			EnclosingFunc: "Leaf",
			MIBs: []MIB{
				{StackIDs: []uint64{200, 600}, Label: NotCold},
			},
		},
	}
	Build(g, allocs)

	// The builder stamps fresh stack nodes with the allocation's own
	// enclosing function as a placeholder (builder.go); correct it here to
	// "F" the way the stack-node matcher would once these are bound to
	// real calls in F's body.
	n100, ok := g.stackNode(100)
	if !ok {
		t.Fatalf("expected a stack node for id 100")
	}
	n100.EnclosingFunc = "F"
	g.BindCall("callN", n100)

	n200, ok := g.stackNode(200)
	if !ok {
		t.Fatalf("expected a stack node for id 200")
	}
	n200.EnclosingFunc = "F"
	g.BindCall("callM", n200)

	IdentifyClones(g)
	if len(n100.Clones) == 0 {
		t.Fatalf("expected callN's mixed-label node to be split, got %d clones", len(n100.Clones))
	}
	if len(n200.Clones) != 0 {
		t.Fatalf("expected callM's single-label node to stay unsplit, got %d clones", len(n200.Clones))
	}

	adapter := newFuncScopedAdapter()
	adapter.callsOfFunc["F"] = []string{"callN", "callM"}

	AssignFunctions(g, adapter)

	if errs := VerifyGraph(g); len(errs) != 0 {
		t.Errorf("unexpected invariant violations after assignment: %v", errs)
	}

	if adapter.cloneCount["F"] == 0 {
		t.Fatalf("expected a function clone of F to be materialized, got none — test setup did not reach the pinned branch")
	}

	if _, ok := g.NodeForCall("callM@F.1"); !ok {
		t.Fatalf("expected callM's pinned split to rebind into F.1's own copy of the call, found no node bound to %q", "callM@F.1")
	}

	seen := make(map[string]*Node[string, string])
	for _, n := range g.Nodes() {
		if !n.HasCall {
			continue
		}
		if other, dup := seen[n.Call]; dup {
			t.Errorf("call %q bound to more than one node after AssignFunctions (node %d and node %d) — a pinned split failed to rebind its callsite", n.Call, other.ID, n.ID)
			continue
		}
		seen[n.Call] = n
	}
}
