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
	"github.com/dave/dst/dstutil"

	"github.com/ccgraph/memprofctx/analysis/ccg"
)

// collectCallExprs walks decl in a fixed pre-order and returns every
// dst.CallExpr it contains, in encounter order. dst.Clone preserves that
// same structure and order, so the i-th entry of a clone's own
// collectCallExprs result is exactly the copy of the i-th entry here.
func collectCallExprs(decl *dst.FuncDecl) []*dst.CallExpr {
	var calls []*dst.CallExpr
	dstutil.Apply(decl, func(c *dstutil.Cursor) bool {
		if call, ok := c.Node().(*dst.CallExpr); ok {
			calls = append(calls, call)
		}
		return true
	}, nil)
	return calls
}

// retarget rewrites expr's callee identifier in place, preserving any
// receiver or package qualifier already present.
func retarget(expr *dst.CallExpr, calleeName string) {
	switch fn := expr.Fun.(type) {
	case *dst.Ident:
		fn.Name = calleeName
	case *dst.SelectorExpr:
		fn.Sel.Name = calleeName
	}
}

// tagAllocation annotates expr with the effective allocation behavior the
// core assigned it. There is no IR-level metadata slot to attach this to
// once the rewrite leaves dst and is printed back to source, so the label
// is recorded as a structured comment a downstream escape-analysis pass (or
// a human reviewer) can pick up.
func tagAllocation(expr *dst.CallExpr, label ccg.AllocType) {
	expr.Decs.Start.Append(fmt.Sprintf("//memprof:%s", label))
}
