// Copyright 2024 The nlexpr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eval computes values and exact derivatives of compiled
// expression graphs.
//
// A session's roots are compiled once into a tape: the reachable nodes in
// ascending arena-id order, which is a topological order by construction.
// Every sweep below is a single pass over the tape, so a subexpression
// shared by several roots is computed exactly once per point:
//
//   - the forward sweep computes node values;
//   - the reverse sweep propagates adjoints from seeded roots down to
//     variable leaves, yielding gradients at graph-size cost;
//   - the forward-over-reverse sweep additionally carries a tangent and an
//     adjoint-tangent per node, yielding one Hessian column per pass.
package eval

import (
	"nlexpr.org/go/internal/core/adt"
	"nlexpr.org/go/internal/core/runtime"
)

// A Tape is the compiled evaluation order for a fixed set of roots. It is
// immutable after construction; all mutable sweep state lives in an
// Evaluator.
type Tape struct {
	r     *runtime.Runtime
	roots []adt.NodeID

	// nodes holds the reachable arena ids in ascending order.
	nodes []adt.NodeID

	// pos maps an arena id to its tape slot, or -1 if unreachable.
	pos []int32
}

// NewTape compiles the reachable subgraph of the given roots.
func NewTape(r *runtime.Runtime, roots []adt.NodeID) *Tape {
	marked := make([]bool, r.Arena.Len())
	var mark func(id adt.NodeID)
	mark = func(id adt.NodeID) {
		if marked[id] {
			return
		}
		marked[id] = true
		for _, arg := range r.Arena.Node(id).Args {
			mark(arg)
		}
	}
	for _, root := range roots {
		mark(root)
	}

	t := &Tape{
		r:     r,
		roots: roots,
		pos:   make([]int32, r.Arena.Len()),
	}
	for id, ok := range marked {
		if ok {
			t.pos[id] = int32(len(t.nodes))
			t.nodes = append(t.nodes, adt.NodeID(id))
		} else {
			t.pos[id] = -1
		}
	}
	return t
}

// Len returns the number of tape slots.
func (t *Tape) Len() int { return len(t.nodes) }

// Slot returns the tape slot of an arena id. The id must be reachable from
// one of the tape's roots.
func (t *Tape) Slot(id adt.NodeID) int32 { return t.pos[id] }
