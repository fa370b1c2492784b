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

import "fmt"

// ContextID identifies a single (stack chain, label) observation. Ids are
// minted by a Registry in monotonically increasing order, starting at zero
// for every fresh run, so that a fixed input always produces the same ids.
type ContextID uint32

// AllocType is a bitfield over the behavioral labels that can be attached to
// a context id, a node, or an edge.
type AllocType uint8

const (
	// None means no context id is assigned; edges and clones with this
	// type are pruned.
	None AllocType = 0
	// NotCold marks a context observed as a hot allocation.
	NotCold AllocType = 1
	// Cold marks a context observed as a cold allocation.
	Cold AllocType = 2
	// All is the union NotCold|Cold: a context (or node, or edge) that
	// mixes both behaviors. Its effective label collapses to NotCold;
	// see Effective.
	All AllocType = NotCold | Cold
)

func (a AllocType) String() string {
	switch a {
	case None:
		return "none"
	case NotCold:
		return "notcold"
	case Cold:
		return "cold"
	case All:
		return "notcold|cold"
	default:
		return fmt.Sprintf("alloctype(%d)", uint8(a))
	}
}

// Effective collapses the mixed NotCold|Cold label down to NotCold: once a
// context mixes both behaviors, further splitting yields no benefit, so
// downstream code generation treats it as hot.
func (a AllocType) Effective() AllocType {
	if a == All {
		return NotCold
	}
	return a
}

// Registry mints ContextIDs and remembers the label assigned to each one.
// There is exactly one Registry per Graph; ids are never reused across
// Registries, and a given id always maps to exactly one label (invariant 7,
// spec.md §3/§8).
type Registry struct {
	next   ContextID
	labels map[ContextID]AllocType
}

// NewRegistry returns a Registry whose counter starts at zero.
func NewRegistry() *Registry {
	return &Registry{labels: make(map[ContextID]AllocType)}
}

// Mint allocates a fresh context id and records its label.
func (r *Registry) Mint(label AllocType) ContextID {
	id := r.next
	r.next++
	r.labels[id] = label
	return id
}

// Duplicate mints a fresh id that carries the same label as old.
func (r *Registry) Duplicate(old ContextID) ContextID {
	return r.Mint(r.labels[old])
}

// Label returns the label registered for id.
func (r *Registry) Label(id ContextID) AllocType {
	return r.labels[id]
}

// idSet is a set of context ids. It is a plain map rather than a dedicated
// type so that the rest of the package can use ordinary map operations and
// range loops on it directly.
type idSet map[ContextID]bool

func newIDSet(ids ...ContextID) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func (s idSet) clone() idSet {
	c := make(idSet, len(s))
	for id := range s {
		c[id] = true
	}
	return c
}

func (s idSet) add(id ContextID) {
	s[id] = true
}

func (s idSet) addAll(other idSet) {
	for id := range other {
		s[id] = true
	}
}

func (s idSet) remove(id ContextID) {
	delete(s, id)
}

func (s idSet) removeAll(other idSet) {
	for id := range other {
		delete(s, id)
	}
}

// intersect returns a new set containing the ids present in both s and
// other.
func (s idSet) intersect(other idSet) idSet {
	r := make(idSet)
	for id := range s {
		if other[id] {
			r[id] = true
		}
	}
	return r
}

// allocTypeOf ORs together the labels of every id in s, as recorded in reg.
func (s idSet) allocTypeOf(reg *Registry) AllocType {
	var t AllocType
	for id := range s {
		t |= reg.Label(id)
	}
	return t
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
