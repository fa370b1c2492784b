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
	"fmt"

	"github.com/ccgraph/memprofctx/analysis/ccg"
)

// Adapter binds ccg.Adapter[*CallHandle, FuncID] to an Index.
type Adapter struct {
	idx *Index
}

// NewAdapter wraps idx for use as a ccg.Adapter.
func NewAdapter(idx *Index) *Adapter { return &Adapter{idx: idx} }

func (a *Adapter) StackID(raw uint64) uint64 {
	if a.idx.canonical == nil || raw >= uint64(len(a.idx.canonical)) {
		return raw
	}
	return a.idx.canonical[raw]
}

func (a *Adapter) LastStackID(call *CallHandle) uint64 {
	ids := call.stackIDs()
	if len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1]
}

func (a *Adapter) StackIDsWithContextNodes(call *CallHandle) []uint64 {
	return call.stackIDs()
}

// CalleeMatchesFunc compares against the summary producer's own static
// guess, the same role the call's static callee plays for the IR adapter.
// Allocation calls have no callee to guess and always pass.
func (a *Adapter) CalleeMatchesFunc(call *CallHandle, fn FuncID) bool {
	if call.Call == nil {
		return true
	}
	return a.idx.baseOf(call.Call.CalleeGuess) == a.idx.baseOf(fn)
}

func (a *Adapter) UpdateAllocationCall(call *CallHandle, label ccg.AllocType) {
	call.Alloc.Versions = append(call.Alloc.Versions, label)
}

func (a *Adapter) UpdateCall(call *CallHandle, calleeFunc FuncID) {
	call.Call.Targets = append(call.Call.Targets, calleeFunc)
}

// CloneFunctionForCallsite mints a new FuncID layered on fn's base record.
// A summary has no notion of a second physical function body, so there is
// nothing to duplicate; the clone is purely an output-addressing identity,
// and every call inside fn keeps referring to the one record it always
// did — hence the nil call-mapping, which tells AssignFunctions there is
// nothing to rebind.
func (a *Adapter) CloneFunctionForCallsite(fn FuncID, call *CallHandle, cloneNo int) (FuncID, map[*CallHandle]*CallHandle) {
	base := a.idx.baseOf(fn)
	clone := a.idx.nextCloneID
	a.idx.nextCloneID++
	a.idx.cloneBase[clone] = base
	a.idx.cloneNo[clone] = cloneNo
	return clone, nil
}

func (a *Adapter) Label(fn FuncID, call *CallHandle, cloneNo int) string {
	name := fmt.Sprintf("func#%d", fn)
	if rec, ok := a.idx.funcs[a.idx.baseOf(fn)]; ok {
		name = rec.Name
	}
	return fmt.Sprintf("%s.memprof.%d", name, cloneNo)
}
