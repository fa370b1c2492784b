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

// fakeAdapter is a minimal, in-memory Adapter[string, string] for exercising
// the core without any SSA or summary machinery. Calls and funcs are both
// plain strings; CalleeMatchesFunc consults a caller-supplied lookup table.
type fakeAdapter struct {
	calleeOf    map[string]string // call -> function it actually targets
	lastStackID map[string]uint64
	contextIDs  map[string][]uint64 // call -> stack-id chain, callsite (innermost) first

	cloneCount map[string]int
	updatedAllocs map[string]AllocType
	updatedCalls  map[string]string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		calleeOf:      make(map[string]string),
		lastStackID:   make(map[string]uint64),
		contextIDs:    make(map[string][]uint64),
		cloneCount:    make(map[string]int),
		updatedAllocs: make(map[string]AllocType),
		updatedCalls:  make(map[string]string),
	}
}

func (f *fakeAdapter) StackID(raw uint64) uint64 { return raw }
func (f *fakeAdapter) LastStackID(call string) uint64 { return f.lastStackID[call] }
func (f *fakeAdapter) StackIDsWithContextNodes(call string) []uint64 { return f.contextIDs[call] }
func (f *fakeAdapter) CalleeMatchesFunc(call string, fn string) bool {
	target, ok := f.calleeOf[call]
	return !ok || target == fn
}
func (f *fakeAdapter) UpdateAllocationCall(call string, label AllocType) {
	f.updatedAllocs[call] = label
}
func (f *fakeAdapter) UpdateCall(call string, calleeFunc string) {
	f.updatedCalls[call] = calleeFunc
}
func (f *fakeAdapter) CloneFunctionForCallsite(fn string, call string, cloneNo int) (string, map[string]string) {
	f.cloneCount[fn]++
	clone := fmt.Sprintf("%s.%d", fn, cloneNo)
	return clone, map[string]string{call: call + "@" + clone}
}
func (f *fakeAdapter) Label(fn string, call string, cloneNo int) string {
	return fmt.Sprintf("%s.%d", fn, cloneNo)
}

func TestBuildDirectRecursion(t *testing.T) {
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{
			Call:          "alloc0",
			EnclosingFunc: "F",
			MIBs: []MIB{
				{StackIDs: []uint64{10, 20, 10, 30}, Label: NotCold},
			},
		},
	}
	Build(g, allocs)

	n, ok := g.stackNode(10)
	if !ok {
		t.Fatalf("expected a stack node for id 10")
	}
	if !n.Recursive {
		t.Errorf("expected node for repeated stack id 10 to be marked Recursive")
	}
}

func TestBuildMutualRecursionSCC(t *testing.T) {
	g := NewGraph[string, string]()
	// Two MIBs, each contributing one leg of a two-function cycle: 10 calls
	// 20 in one chain, 20 calls 10 in the other. Neither chain alone
	// repeats a stack id, so only the SCC supplement catches this.
	allocs := []Allocation[string, string]{
		{
			Call:          "alloc0",
			EnclosingFunc: "F",
			MIBs: []MIB{
				{StackIDs: []uint64{10, 20}, Label: NotCold},
				{StackIDs: []uint64{20, 10}, Label: NotCold},
			},
		},
	}
	Build(g, allocs)

	n10, _ := g.stackNode(10)
	n20, _ := g.stackNode(20)
	if !n10.Recursive || !n20.Recursive {
		t.Errorf("expected both nodes in the mutual-recursion cycle to be marked Recursive")
	}
}

func TestVerifyGraphCleanAfterBuild(t *testing.T) {
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{
			Call:          "alloc0",
			EnclosingFunc: "F",
			MIBs: []MIB{
				{StackIDs: []uint64{10, 20}, Label: NotCold},
				{StackIDs: []uint64{30}, Label: Cold},
			},
		},
	}
	Build(g, allocs)

	if errs := VerifyGraph(g); len(errs) != 0 {
		t.Errorf("unexpected invariant violations: %v", errs)
	}
}

func TestSanitizeMultiTargetsUnbindsMismatch(t *testing.T) {
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{
			Call:          "alloc0",
			EnclosingFunc: "F",
			MIBs: []MIB{
				{StackIDs: []uint64{10}, Label: NotCold},
			},
		},
	}
	Build(g, allocs)

	n, _ := g.stackNode(10)
	g.BindCall("call10", n)

	adapter := newFakeAdapter()
	allocNode, _ := g.NodeForCall("alloc0")
	adapter.calleeOf["call10"] = "NotF" // disagrees with allocNode's EnclosingFunc
	_ = allocNode

	SanitizeMultiTargets(g, adapter)

	if n.HasCall {
		t.Errorf("expected node to be unbound after sanitization, still bound to %v", n.Call)
	}
	if _, ok := g.NodeForCall("call10"); ok {
		t.Errorf("expected call10 to no longer resolve to any node")
	}
}

func TestSanitizeMultiTargetsKeepsMatch(t *testing.T) {
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{
			Call:          "alloc0",
			EnclosingFunc: "F",
			MIBs: []MIB{
				{StackIDs: []uint64{10}, Label: NotCold},
			},
		},
	}
	Build(g, allocs)

	n, _ := g.stackNode(10)
	g.BindCall("call10", n)

	adapter := newFakeAdapter()
	allocNode, _ := g.NodeForCall("alloc0")
	adapter.calleeOf["call10"] = allocNode.EnclosingFunc

	SanitizeMultiTargets(g, adapter)

	if !n.HasCall {
		t.Errorf("expected matching call binding to survive sanitization")
	}
}

// buildMixedLabelNode constructs a single stack node with two caller edges
// whose MIBs disagree on label (one NotCold-only, one Cold-only), so the
// node itself ends up carrying the mixed All label that IdentifyClones is
// meant to split apart.
func buildMixedLabelNode(t *testing.T) (*Graph[string, string], *Node[string, string]) {
	t.Helper()
	g := NewGraph[string, string]()
	allocs := []Allocation[string, string]{
		{
			Call:          "alloc0",
			EnclosingFunc: "F",
			MIBs: []MIB{
				{StackIDs: []uint64{10, 100}, Label: NotCold},
				{StackIDs: []uint64{10, 200}, Label: Cold},
			},
		},
	}
	Build(g, allocs)
	n, ok := g.stackNode(10)
	if !ok {
		t.Fatalf("expected stack node for id 10")
	}
	g.BindCall("call10", n)
	return g, n
}

func TestIdentifyClonesSplitsMixedLabel(t *testing.T) {
	g, n := buildMixedLabelNode(t)
	if n.AllocTypes != All {
		t.Fatalf("expected setup to produce a mixed-label node, got %v", n.AllocTypes)
	}

	IdentifyClones(g)

	if n.AllocTypes == All && len(n.callerEdges) > 1 {
		t.Errorf("node %d still ambiguous after IdentifyClones: %v with %d caller edges", n.ID, n.AllocTypes, len(n.callerEdges))
	}
	for _, clone := range n.Clones {
		if clone.AllocTypes == All && len(clone.callerEdges) > 1 {
			t.Errorf("clone %d still ambiguous after IdentifyClones", clone.ID)
		}
	}
	if errs := VerifyGraph(g); len(errs) != 0 {
		t.Errorf("unexpected invariant violations after cloning: %v", errs)
	}
}

func TestIdentifyClonesIdempotent(t *testing.T) {
	g, _ := buildMixedLabelNode(t)
	IdentifyClones(g)
	before := len(g.Nodes())

	IdentifyClones(g)
	after := len(g.Nodes())

	if before != after {
		t.Errorf("expected re-running IdentifyClones to be a no-op, node count went from %d to %d", before, after)
	}
}

func TestAssignFunctionsBasic(t *testing.T) {
	g, n := buildMixedLabelNode(t)
	IdentifyClones(g)

	adapter := newFakeAdapter()
	AssignFunctions(g, adapter)

	if errs := VerifyGraph(g); len(errs) != 0 {
		t.Errorf("unexpected invariant violations after assignment: %v", errs)
	}

	if len(n.Clones) > 0 && adapter.cloneCount["F"] == 0 {
		t.Errorf("expected at least one function clone of F to be materialized once the callsite split")
	}
}
