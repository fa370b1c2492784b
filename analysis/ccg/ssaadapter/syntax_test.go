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
	"strings"
	"testing"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"

	"github.com/ccgraph/memprofctx/analysis/ccg"
)

const testSource = `package p

func callee() *int { return new(int) }

func caller() {
	x := callee()
	y := callee()
	_ = x
	_ = y
}
`

func parseTestFile(t *testing.T) *dst.File {
	t.Helper()
	f, err := decorator.Parse(testSource)
	if err != nil {
		t.Fatalf("parsing test source: %v", err)
	}
	return f
}

func funcDecl(t *testing.T, f *dst.File, name string) *dst.FuncDecl {
	t.Helper()
	for _, d := range f.Decls {
		if fd, ok := d.(*dst.FuncDecl); ok && fd.Name.Name == name {
			return fd
		}
	}
	t.Fatalf("no function named %q in test source", name)
	return nil
}

func TestCollectCallExprsFindsEveryCall(t *testing.T) {
	f := parseTestFile(t)
	decl := funcDecl(t, f, "caller")
	calls := collectCallExprs(decl)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
}

func TestRetargetIdent(t *testing.T) {
	f := parseTestFile(t)
	decl := funcDecl(t, f, "caller")
	call := collectCallExprs(decl)[0]

	retarget(call, "callee2")

	ident, ok := call.Fun.(*dst.Ident)
	if !ok {
		t.Fatalf("expected call.Fun to stay an *dst.Ident, got %T", call.Fun)
	}
	if ident.Name != "callee2" {
		t.Fatalf("got callee name %q, want %q", ident.Name, "callee2")
	}
}

func TestTagAllocationAddsComment(t *testing.T) {
	f := parseTestFile(t)
	decl := funcDecl(t, f, "caller")
	call := collectCallExprs(decl)[0]

	tagAllocation(call, ccg.Cold)

	found := false
	for _, c := range call.Decs.Start {
		if strings.Contains(c, "memprof:cold") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a memprof:cold decoration on the call, got %v", call.Decs.Start)
	}
}

func TestCloneFuncName(t *testing.T) {
	got := cloneFuncName("caller", 2)
	want := "caller.memprof.2"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
