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

// SanitizeMultiTargets neutralizes every non-allocation node whose callee
// edge points to a node whose recorded enclosing function disagrees with
// the actual callee of the node's own call (§4.3). A neutralized node keeps
// its place in the graph for structural reasons but never participates in
// cloning or function assignment.
func SanitizeMultiTargets[Call comparable, Func comparable](g *Graph[Call, Func], adapter Adapter[Call, Func]) {
	for _, n := range g.nodes {
		if n.IsAllocation || !n.HasCall || n.CloneOf != nil {
			continue
		}
		for _, e := range n.calleeEdges {
			if !adapter.CalleeMatchesFunc(n.Call, e.Callee.EnclosingFunc) {
				g.UnbindCall(n)
				break
			}
		}
	}
}
