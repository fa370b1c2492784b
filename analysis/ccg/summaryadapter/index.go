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
	"sort"

	"github.com/pkg/errors"

	"github.com/ccgraph/memprofctx/analysis/ccg"
)

// CallHandle is the call identity this adapter hands to the core: exactly
// one of Alloc or Call is set, mirroring the two record kinds a summary
// distinguishes.
type CallHandle struct {
	Alloc *AllocRecord
	Call  *CallRecord
}

func (h *CallHandle) stackIDs() []uint64 {
	if h.Alloc != nil {
		return h.Alloc.CallContextStackIDs
	}
	return h.Call.StackIDs
}

// Index holds every function record of a loaded summary, plus the bookkeeping
// a FuncID needs once function cloning starts minting ids beyond the
// summary's own range.
type Index struct {
	funcs       map[FuncID]*FuncRecord
	canonical   []uint64
	nextCloneID FuncID
	cloneBase   map[FuncID]FuncID
	cloneNo     map[FuncID]int
}

// NewIndex builds an Index over funcs. canonical, if non-nil, maps a
// stack-id index (as a summary on disk often stores them, to save space)
// to its canonical 64-bit stack id; pass nil when the summary already
// stores canonical ids directly.
func NewIndex(funcs []*FuncRecord, canonical []uint64) (*Index, error) {
	idx := &Index{
		funcs:     make(map[FuncID]*FuncRecord, len(funcs)),
		canonical: canonical,
		cloneBase: make(map[FuncID]FuncID, len(funcs)),
		cloneNo:   make(map[FuncID]int, len(funcs)),
	}
	var maxID FuncID
	for _, f := range funcs {
		if _, dup := idx.funcs[f.ID]; dup {
			return nil, errors.Errorf("summaryadapter: duplicate function id %d (%s)", f.ID, f.Name)
		}
		idx.funcs[f.ID] = f
		idx.cloneBase[f.ID] = f.ID
		idx.cloneNo[f.ID] = 0
		if f.ID > maxID {
			maxID = f.ID
		}
	}
	idx.nextCloneID = maxID + 1
	return idx, nil
}

func (idx *Index) baseOf(fn FuncID) FuncID {
	if b, ok := idx.cloneBase[fn]; ok {
		return b
	}
	return fn
}

// Allocations builds the ccg.Build input for every allocation record in
// idx, wrapping each in a *CallHandle.
func (idx *Index) Allocations() []ccg.Allocation[*CallHandle, FuncID] {
	var out []ccg.Allocation[*CallHandle, FuncID]
	for _, f := range idx.funcsInOrder() {
		for _, a := range f.Allocs {
			out = append(out, ccg.Allocation[*CallHandle, FuncID]{
				Call:                &CallHandle{Alloc: a},
				EnclosingFunc:       f.ID,
				MIBs:                a.MIBs,
				CallContextStackIDs: a.CallContextStackIDs,
			})
		}
	}
	return out
}

// funcsInOrder returns idx's function records ordered by id, so that
// building the allocation list (and anything else iterating idx.funcs) is
// deterministic despite map iteration.
func (idx *Index) funcsInOrder() []*FuncRecord {
	ids := make([]FuncID, 0, len(idx.funcs))
	for id := range idx.funcs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*FuncRecord, len(ids))
	for i, id := range ids {
		out[i] = idx.funcs[id]
	}
	return out
}
