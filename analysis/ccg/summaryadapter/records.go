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

import "github.com/ccgraph/memprofctx/analysis/ccg"

// FuncID identifies a function within a whole-program summary. Clone 0 is
// always the original record; a clone ID beyond the original range names a
// versioned output slot layered on top of the same record.
type FuncID uint32

// CallID identifies one call site (allocation or ordinary) within a
// function's record.
type CallID uint32

// FuncRecord is one function's entry in the summary: its identity plus
// every allocation and ordinary call site recorded for it.
type FuncRecord struct {
	ID     FuncID
	Name   string
	Allocs []*AllocRecord
	Calls  []*CallRecord
}

// AllocRecord is one allocation call site: every MIB the summary producer
// observed for it, plus the allocation's own inlined callsite context
// (outward order), used to trim the shared prefix out of each MIB's chain
// the way ccg.Allocation.CallContextStackIDs does.
//
// A summary has no second physical copy of this call to hold a second
// label, the way a cloned function body does on the IR side; per §6 its
// output is instead a version array, one label per function clone that
// ended up owning this allocation. Versions receives one entry per
// UpdateAllocationCall, in the deterministic order emit visits clones, so
// Versions[i] is always the label for this allocation's i-th materialized
// function clone (Versions[0] is always the original).
type AllocRecord struct {
	ID                  CallID
	Func                FuncID
	MIBs                []ccg.MIB
	CallContextStackIDs []uint64
	Versions            []ccg.AllocType
}

// CallRecord is one ordinary (non-allocation) call site. StackIDs is its
// own callsite context, outward order; CalleeGuess is the statically
// resolved callee the summary producer recorded, used by sanitization the
// same way the call's static callee is used on the IR side. Targets receives the
// output: one callee-clone target per function clone this call site ended
// up living in, in the same version-array sense as AllocRecord.Versions.
type CallRecord struct {
	ID          CallID
	Func        FuncID
	StackIDs    []uint64
	CalleeGuess FuncID
	Targets     []FuncID
}
