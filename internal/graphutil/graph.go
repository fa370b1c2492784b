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

package graphutil

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
)

// CGraph is a generic directed graph over int64-identified nodes. It carries
// no dependency on any particular domain graph: callers build one from
// whatever graph they have (a calling context graph, a call graph, ...) by
// supplying the node ids, a label function, and a successor function. It
// implements gonum's graph.Graph so gonum algorithms and encoders can run
// over it directly, and also offers Order/Visit adjacency iteration.
type CGraph struct {
	// The order of the graph
	order int

	// IDMap maps from node IDs to CNodes
	IDMap map[int64]CNode

	// Keys are all the node IDs
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool
}

// NewGraph builds a CGraph from an explicit set of node ids, a label lookup
// and a successor function. The resulting graph's node ids are exactly ids.
func NewGraph(ids []int64, label func(int64) string, successors func(int64) []int64) CGraph {
	n := len(ids)
	idmap := make(map[int64]CNode, n)
	edges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, n)
	copy(keys, ids)

	for _, id := range ids {
		idmap[id] = CNode{id: id, label: label(id)}
		m := make(map[int64]bool, 4)
		for _, succ := range successors(id) {
			m[succ] = true
		}
		edges[id] = m
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return CGraph{
		order: n,
		IDMap: idmap,
		Edges: edges,
		Keys:  keys,
	}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and IDMap are the same as in origin, meaning that node indices will stay consistent
// across subgraphs.
func Subgraph(original CGraph, include []int64) CGraph {
	idmap := make(map[int64]CNode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}

	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
			}
		}
	}

	return CGraph{
		order: original.Order(),
		IDMap: idmap,
		Edges: edges,
		Keys:  keys,
	}
}

// Order returns the graph's order: the number of node ids it was built over
func (c CGraph) Order() int {
	return c.order
}

// Visit calls do for every successor w of node v, stopping early if do returns true
func (c CGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c CGraph) Node(v int64) graph.Node {
	return c.IDMap[v]
}

// Nodes returns the set of nodes in the graph
func (c CGraph) Nodes() graph.Nodes {
	keys := make([]int64, len(c.IDMap))

	i := 0
	for k := range c.IDMap {
		keys[i] = k
		i++
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   0,
	}
}

// From returns the set of nodes reachable from the id
func (c CGraph) From(id int64) graph.Nodes {
	var keys []int64

	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   0,
	}
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c CGraph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c CGraph) Edge(uid, vid int64) graph.Edge {
	ue := c.Edges[uid]
	if ue != nil {
		if ue[vid] {
			return CEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
		}
	}
	return nil
}

// *************** Nodes implementation **********************

// CNode is a node in a CGraph: an int64 id plus the label its owner chose
// for it (e.g. a node's LongID string). It implements the graph.Node interface.
type CNode struct {
	id    int64
	label string
}

// ID returns the id of the node
func (n CNode) ID() int64 {
	return n.id
}

func (n CNode) String() string {
	return n.label
}

// Attributes implements gonum's encoding.Attributer, so the dot encoder
// renders the node's label.
func (n CNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: n.label}}
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]CNode

	// ids is the set of node ids in the iterator
	// invariant: len(ids) = len(nodes)
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: 0 <= cur < len(nodes)
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the length of the node set
func (ns *NodeSet) Len() int {
	return len(ns.ids)
}

// Reset resets the id of the current node in the set
func (ns *NodeSet) Reset() {
	ns.cur = 0
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// CEdge implements the graph.Edge interface
type CEdge struct {
	from CNode
	to   CNode
}

// From returns the origin of the edge
func (e CEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e CEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e CEdge) ReversedEdge() graph.Edge {
	return CEdge{from: e.to, to: e.from}
}
