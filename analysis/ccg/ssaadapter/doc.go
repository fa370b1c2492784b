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

// Package ssaadapter binds ccg.Adapter to a live golang.org/x/tools/go/ssa
// program plus its decorator-tracked syntax tree, so the core can run
// directly against a loaded Go module and emit its results as a
// source-level rewrite.
//
// Neither of the core's two type parameters is instantiated with a bare
// *ssa.Function or ssa.CallInstruction here. A materialized function clone
// has no SSA form of its own — nothing rebuilds SSA mid-run — so Func is a
// FuncHandle that is either a live ssa.Function or a syntax-only clone of
// one, and Call is a CallHandle pairing a dst.CallExpr (always present, the
// node every mutation actually lands on) with the ssa.CallInstruction it
// originated from (present only for calls that predate any cloning).
//
// Stack ids, and the correlation between a profile frame and the
// ssa.CallInstruction it symbolizes, are supplied by the caller at
// construction time: the adapter has no opinion on how raw profile frames
// were matched to call sites (a pprof Location can carry more than one Line
// when the backend compiler inlined at that program counter, which is the
// real source of the "one stack id fans out to several frames" scenario the
// core handles). cmd/memprofctx resolves that correlation while it loads the
// program and hands this package simple per-call tables.
package ssaadapter
