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

package summaryadapter

import (
	"testing"

	"github.com/ccgraph/memprofctx/analysis/ccg"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	alloc := &AllocRecord{ID: 1, Func: 10, CallContextStackIDs: []uint64{100}}
	call := &CallRecord{ID: 2, Func: 10, StackIDs: []uint64{200}, CalleeGuess: 20}
	funcs := []*FuncRecord{
		{ID: 10, Name: "pkg.caller", Allocs: []*AllocRecord{alloc}, Calls: []*CallRecord{call}},
		{ID: 20, Name: "pkg.callee"},
	}
	idx, err := NewIndex(funcs, nil)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func TestNewIndexRejectsDuplicateFuncID(t *testing.T) {
	funcs := []*FuncRecord{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}}
	if _, err := NewIndex(funcs, nil); err == nil {
		t.Fatal("expected an error for duplicate function ids")
	}
}

func TestAllocationsOrderedByFuncID(t *testing.T) {
	idx := testIndex(t)
	allocs := idx.Allocations()
	if len(allocs) != 1 {
		t.Fatalf("got %d allocations, want 1", len(allocs))
	}
	if allocs[0].EnclosingFunc != 10 {
		t.Fatalf("got enclosing func %d, want 10", allocs[0].EnclosingFunc)
	}
	if len(allocs[0].CallContextStackIDs) != 1 || allocs[0].CallContextStackIDs[0] != 100 {
		t.Fatalf("unexpected call context: %v", allocs[0].CallContextStackIDs)
	}
}

func TestUpdateAllocationCallAppendsVersions(t *testing.T) {
	idx := testIndex(t)
	a := NewAdapter(idx)
	handle := &CallHandle{Alloc: idx.funcs[10].Allocs[0]}

	a.UpdateAllocationCall(handle, ccg.NotCold)
	a.UpdateAllocationCall(handle, ccg.Cold)

	got := handle.Alloc.Versions
	want := []ccg.AllocType{ccg.NotCold, ccg.Cold}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got versions %v, want %v", got, want)
	}
}

func TestUpdateCallAppendsTargets(t *testing.T) {
	idx := testIndex(t)
	a := NewAdapter(idx)
	handle := &CallHandle{Call: idx.funcs[10].Calls[0]}

	a.UpdateCall(handle, 20)
	a.UpdateCall(handle, 30)

	got := handle.Call.Targets
	if len(got) != 2 || got[0] != 20 || got[1] != 30 {
		t.Fatalf("got targets %v, want [20 30]", got)
	}
}

func TestCloneFunctionForCallsiteHasNoCallMapping(t *testing.T) {
	idx := testIndex(t)
	a := NewAdapter(idx)
	handle := &CallHandle{Call: idx.funcs[10].Calls[0]}

	clone, mapping := a.CloneFunctionForCallsite(10, handle, 1)
	if mapping != nil {
		t.Fatalf("expected a nil call mapping, got %v", mapping)
	}
	if idx.baseOf(clone) != 10 {
		t.Fatalf("clone %d does not trace back to base func 10", clone)
	}
}

func TestCalleeMatchesFuncFollowsCloneBase(t *testing.T) {
	idx := testIndex(t)
	a := NewAdapter(idx)
	handle := &CallHandle{Call: idx.funcs[10].Calls[0]} // CalleeGuess = 20

	clone, _ := a.CloneFunctionForCallsite(20, handle, 1)
	if !a.CalleeMatchesFunc(handle, clone) {
		t.Fatal("expected a clone of the guessed callee to match")
	}

	other := FuncID(999)
	idx.cloneBase[other] = other
	if a.CalleeMatchesFunc(handle, other) {
		t.Fatal("did not expect an unrelated function to match")
	}
}

func TestLabelUsesBaseFuncName(t *testing.T) {
	idx := testIndex(t)
	a := NewAdapter(idx)
	handle := &CallHandle{Call: idx.funcs[10].Calls[0]}

	clone, _ := a.CloneFunctionForCallsite(10, handle, 3)
	got := a.Label(clone, handle, 3)
	want := "pkg.caller.memprof.3"
	if got != want {
		t.Fatalf("got label %q, want %q", got, want)
	}
}
