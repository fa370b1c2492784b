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

package main

import (
	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"

	"github.com/ccgraph/memprofctx/analysis/ccg"
	"github.com/ccgraph/memprofctx/analysis/ccg/ssaadapter"
)

// wiredProgram holds the materials ssaadapter.NewAdapter and ccg.Build both
// need, resolved once from a loadedProgram and a profileDoc.
type wiredProgram struct {
	adapter *ssaadapter.Adapter
	allocs  []ccg.Allocation[*ssaadapter.CallHandle, *ssaadapter.FuncHandle]
	calls   []ccg.CallsiteCall[*ssaadapter.CallHandle, *ssaadapter.FuncHandle]
}

func wireProgram(lp *loadedProgram, doc *profileDoc) (*wiredProgram, error) {
	funcHandles := make(map[*ssa.Function]*ssaadapter.FuncHandle)
	funcHandleFor := func(fn *ssa.Function) *ssaadapter.FuncHandle {
		if fn == nil {
			return nil
		}
		if h, ok := funcHandles[fn]; ok {
			return h
		}
		h := &ssaadapter.FuncHandle{Orig: fn}
		if fn.Pkg != nil {
			if site, ok := lp.funcSiteByName[funcKey(fn.Pkg.Pkg.Path(), fn.Name())]; ok {
				h.Decl = site.decl
				h.File = site.file
			}
		}
		funcHandles[fn] = h
		return h
	}

	var allCallHandles []*ssaadapter.CallHandle
	stackIDs := make(map[*ssaadapter.CallHandle][]uint64)

	resolve := func(pos string) (*ssaadapter.CallHandle, ssa.CallInstruction, error) {
		expr, ok := lp.callExprByPos[pos]
		if !ok {
			return nil, nil, errors.Errorf("no call syntax found at %s", pos)
		}
		instr := lp.callInstrByPos[pos]
		h := &ssaadapter.CallHandle{Instr: instr, Expr: expr}
		allCallHandles = append(allCallHandles, h)
		return h, instr, nil
	}

	enclosingFuncOf := func(instr ssa.CallInstruction) *ssa.Function {
		if instr == nil {
			return nil
		}
		return instr.Parent()
	}

	var allocs []ccg.Allocation[*ssaadapter.CallHandle, *ssaadapter.FuncHandle]
	for _, a := range doc.Allocations {
		handle, instr, err := resolve(a.Pos)
		if err != nil {
			return nil, err
		}
		mibs := make([]ccg.MIB, 0, len(a.MIBs))
		for _, m := range a.MIBs {
			label, err := parseAllocType(m.Label)
			if err != nil {
				return nil, errors.Wrapf(err, "allocation at %s", a.Pos)
			}
			mibs = append(mibs, ccg.MIB{StackIDs: m.StackIDs, Label: label})
		}
		stackIDs[handle] = a.CallContextStackIDs
		allocs = append(allocs, ccg.Allocation[*ssaadapter.CallHandle, *ssaadapter.FuncHandle]{
			Call:                handle,
			EnclosingFunc:       funcHandleFor(enclosingFuncOf(instr)),
			MIBs:                mibs,
			CallContextStackIDs: a.CallContextStackIDs,
		})
	}

	var calls []ccg.CallsiteCall[*ssaadapter.CallHandle, *ssaadapter.FuncHandle]
	for _, c := range doc.Calls {
		handle, instr, err := resolve(c.Pos)
		if err != nil {
			return nil, err
		}
		stackIDs[handle] = c.StackIDs
		calls = append(calls, ccg.CallsiteCall[*ssaadapter.CallHandle, *ssaadapter.FuncHandle]{
			Call:          handle,
			EnclosingFunc: funcHandleFor(enclosingFuncOf(instr)),
		})
	}

	adapter := ssaadapter.NewAdapter(lp.prog, allCallHandles, stackIDs)
	return &wiredProgram{adapter: adapter, allocs: allocs, calls: calls}, nil
}
