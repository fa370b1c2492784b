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

package ssaadapter

import (
	"fmt"

	"github.com/dave/dst"
	"golang.org/x/tools/go/ssa"

	"github.com/ccgraph/memprofctx/analysis/ccg"
)

// Adapter binds ccg.Adapter[*CallHandle, *FuncHandle] to a loaded program.
// Every correlation table is built once by the caller (cmd/memprofctx, which
// owns the go/packages load and the profile symbolization) and handed to
// NewAdapter; the adapter itself never re-derives them.
type Adapter struct {
	prog *ssa.Program

	// stackIDs is, per call, its own stack-id chain ordered from the
	// callsite itself outward, as the profile symbolized it.
	stackIDs map[*CallHandle][]uint64

	// handleByExpr lets CloneFunctionForCallsite find the CallHandle that
	// already exists for a dst.CallExpr inside the function being cloned,
	// so it can build the returned call-mapping.
	handleByExpr map[*dst.CallExpr]*CallHandle
}

// NewAdapter builds an Adapter. calls is every CallHandle the caller has
// constructed for the program, allocation calls and ordinary calls alike;
// stackIDs carries the stack-id chain for the subset the core needs one
// for (ordinary, non-allocation calls, per the StackIDsWithContextNodes and
// LastStackID contracts).
func NewAdapter(prog *ssa.Program, calls []*CallHandle, stackIDs map[*CallHandle][]uint64) *Adapter {
	a := &Adapter{
		prog:         prog,
		stackIDs:     stackIDs,
		handleByExpr: make(map[*dst.CallExpr]*CallHandle, len(calls)),
	}
	for _, c := range calls {
		a.handleByExpr[c.Expr] = c
	}
	return a
}

func (a *Adapter) StackID(raw uint64) uint64 { return raw }

func (a *Adapter) LastStackID(call *CallHandle) uint64 {
	chain := a.stackIDs[call]
	if len(chain) == 0 {
		return 0
	}
	return chain[len(chain)-1]
}

func (a *Adapter) StackIDsWithContextNodes(call *CallHandle) []uint64 {
	return a.stackIDs[call]
}

// CalleeMatchesFunc reports whether call's operand resolves statically to
// exactly fn. A call with no static callee — an interface method call, a
// call through a func value, anything CHA would otherwise have to expand
// into a set of candidates — never matches: spec.md's multi-target
// Non-goal requires those callsites excluded from cloning outright, not
// cloned on the strength of one plausible candidate among several.
func (a *Adapter) CalleeMatchesFunc(call *CallHandle, fn *FuncHandle) bool {
	if call.Instr == nil || fn.Orig == nil {
		// Either side was born from cloning, after sanitization already
		// ran against the live program; there is nothing left to check.
		return true
	}
	callee := call.Instr.Common().StaticCallee()
	return callee != nil && callee == fn.Orig
}

func (a *Adapter) UpdateAllocationCall(call *CallHandle, label ccg.AllocType) {
	tagAllocation(call.Expr, label)
}

func (a *Adapter) UpdateCall(call *CallHandle, calleeFunc *FuncHandle) {
	retarget(call.Expr, calleeFunc.name())
}

// CloneFunctionForCallsite deep-copies fn's declaration under a new name and
// splices it into the same file, right after the original. The two
// declarations are structurally identical at the moment of cloning, so the
// call expressions inside each line up one-for-one in encounter order; that
// positional correspondence is how the returned call-mapping is built,
// without needing the clone to have gone through the SSA builder itself.
func (a *Adapter) CloneFunctionForCallsite(fn *FuncHandle, call *CallHandle, cloneNo int) (*FuncHandle, map[*CallHandle]*CallHandle) {
	clonedDecl, ok := dst.Clone(fn.Decl).(*dst.FuncDecl)
	if !ok {
		return fn, nil
	}
	cloneName := cloneFuncName(fn.name(), cloneNo)
	clonedDecl.Name = dst.NewIdent(cloneName)

	for i, d := range fn.File.Decls {
		if d == fn.Decl {
			decls := make([]dst.Decl, 0, len(fn.File.Decls)+1)
			decls = append(decls, fn.File.Decls[:i+1]...)
			decls = append(decls, clonedDecl)
			decls = append(decls, fn.File.Decls[i+1:]...)
			fn.File.Decls = decls
			break
		}
	}

	clone := &FuncHandle{Orig: fn.Orig, CloneName: cloneName, Decl: clonedDecl, File: fn.File}

	callMapping := make(map[*CallHandle]*CallHandle)
	originalExprs := collectCallExprs(fn.Decl)
	clonedExprs := collectCallExprs(clonedDecl)
	for i, origExpr := range originalExprs {
		if i >= len(clonedExprs) {
			break
		}
		origHandle, ok := a.handleByExpr[origExpr]
		if !ok {
			continue
		}
		cloneHandle := &CallHandle{Expr: clonedExprs[i]}
		a.handleByExpr[clonedExprs[i]] = cloneHandle
		callMapping[origHandle] = cloneHandle
	}
	return clone, callMapping
}

func (a *Adapter) Label(fn *FuncHandle, call *CallHandle, cloneNo int) string {
	return fmt.Sprintf("%s#%d", fn.name(), cloneNo)
}
