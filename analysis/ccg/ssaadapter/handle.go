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
)

// FuncHandle is the function identity this adapter hands to the core.
// Orig is always the SSA function that owns Decl's body, whether the
// handle names that function itself (CloneName empty) or one of its
// syntax-only clones.
type FuncHandle struct {
	Orig      *ssa.Function
	CloneName string
	Decl      *dst.FuncDecl
	File      *dst.File
}

func (h *FuncHandle) name() string {
	if h.CloneName != "" {
		return h.CloneName
	}
	return h.Orig.Name()
}

func (h *FuncHandle) String() string { return h.name() }

// CallHandle is the call identity this adapter hands to the core: the
// syntax node every mutation actually lands on, plus, for calls that
// predate any cloning, the SSA instruction used to resolve stack ids and
// check the call's real callee. A call born inside a freshly materialized
// function clone has Instr == nil: it was never seen by the SSA builder.
type CallHandle struct {
	Instr ssa.CallInstruction
	Expr  *dst.CallExpr
}

func cloneFuncName(base string, cloneNo int) string {
	return fmt.Sprintf("%s.memprof.%d", base, cloneNo)
}
