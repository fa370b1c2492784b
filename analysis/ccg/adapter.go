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

package ccg

// Adapter is the capability set the core needs from whatever is supplying
// call and function identities — a live IR module or a deserialized
// whole-program summary. The core never looks behind this interface.
//
// Call and Func are opaque handle types chosen by the concrete adapter
// (*ssaadapter.CallHandle/*ssaadapter.FuncHandle for the IR flavor,
// *summaryadapter.CallHandle/summaryadapter.FuncID for the summary flavor).
type Adapter[Call comparable, Func comparable] interface {
	// StackID canonicalizes a raw profile stack id into the 64-bit id
	// space the graph keys stack nodes by. For adapters whose stack ids
	// are already canonical this is the identity function.
	StackID(raw uint64) uint64

	// LastStackID returns the outermost stack id of call's own callsite
	// context (used to detect whether a matched chain reaches all the
	// way out to where call actually is).
	LastStackID(call Call) uint64

	// StackIDsWithContextNodes returns call's stack-id chain, ordered
	// from the callsite outward. Adapters do not consult the graph; the
	// matcher itself drops ids that have no stack node.
	StackIDsWithContextNodes(call Call) []uint64

	// CalleeMatchesFunc reports whether call's actual, resolved callee is
	// fn.
	CalleeMatchesFunc(call Call, fn Func) bool

	// UpdateAllocationCall attaches the given effective label to an
	// allocation call.
	UpdateAllocationCall(call Call, label AllocType)

	// UpdateCall retargets call so that it calls calleeFunc.
	UpdateCall(call Call, calleeFunc Func)

	// CloneFunctionForCallsite produces function clone number cloneNo of
	// fn (cloneNo > 0), specialized for call. It returns the new function
	// and a mapping from every call in the original fn to its
	// counterpart in the clone.
	CloneFunctionForCallsite(fn Func, call Call, cloneNo int) (clone Func, callMapping map[Call]Call)

	// Label returns a human-readable string for diagnostics.
	Label(fn Func, call Call, cloneNo int) string
}
