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

package eval

import (
	"sort"

	"nlexpr.org/go/internal/core/adt"
)

// The structural pass below is run once per session. It decides which
// Jacobian and Hessian positions can ever be nonzero, looking only at the
// graph, never at a point. Numeric sweeps then fill values into the fixed
// pattern; a position may still evaluate to zero at a particular point,
// but never the other way around.

// A Coord is one structurally nonzero position. Hessian coordinates are
// reported on the lower triangle: Row >= Col.
type Coord struct {
	Row, Col int
}

// Supports returns, per tape slot, the sorted variable indices that occur
// beneath the node. Both branches of a conditional count: the active
// branch changes with the point, but the pattern may not.
func (t *Tape) Supports() [][]int32 {
	sup := make([][]int32, t.Len())
	for i, id := range t.nodes {
		n := t.r.Arena.Node(id)
		switch n.Op {
		case adt.ConstOp, adt.ParamOp:
		case adt.VarOp:
			sup[i] = []int32{n.X}
		default:
			var s []int32
			for _, arg := range n.Args {
				s = mergeSupports(s, sup[t.pos[arg]])
			}
			sup[i] = s
		}
	}
	return sup
}

// Support returns the sorted variable indices a root depends on. This is
// the root's Jacobian row pattern.
func (t *Tape) Support(sup [][]int32, root adt.NodeID) []int32 {
	return sup[t.Slot(root)]
}

// HessianPattern returns the lower-triangular positions of the Hessian of
// any weighting of the tape's roots, sorted by row then column.
//
// Linear nodes contribute no interactions of their own; every nonlinear
// node couples the variable supports of the operands it is nonlinear in.
// Any pair a node misses is caught by a nonlinear ancestor, whose support
// is a superset.
func (t *Tape) HessianPattern() []Coord {
	sup := t.Supports()
	pairs := map[Coord]struct{}{}

	for i, id := range t.nodes {
		n := t.r.Arena.Node(id)
		if n.Op.IsLinear() {
			continue
		}
		switch n.Op {
		case adt.MulOp:
			cross(pairs, sup[t.pos[n.Args[0]]], sup[t.pos[n.Args[1]]])
		case adt.QuoOp:
			y := sup[t.pos[n.Args[1]]]
			cross(pairs, sup[t.pos[n.Args[0]]], y)
			cross(pairs, y, y)
		case adt.PowOp:
			if t.r.Arena.Node(n.Args[1]).Op == adt.ConstOp {
				x := sup[t.pos[n.Args[0]]]
				cross(pairs, x, x)
			} else {
				cross(pairs, sup[i], sup[i])
			}
		case adt.ProdOp:
			for k := range n.Args {
				for m := k + 1; m < len(n.Args); m++ {
					cross(pairs, sup[t.pos[n.Args[k]]], sup[t.pos[n.Args[m]]])
				}
			}
		case adt.SinOp, adt.CosOp, adt.TanOp, adt.LogOp, adt.ExpOp, adt.SqrtOp, adt.CallOp:
			cross(pairs, sup[i], sup[i])
		}
	}

	out := make([]Coord, 0, len(pairs))
	for c := range pairs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// cross records every lower-triangular pair from a × b.
func cross(pairs map[Coord]struct{}, a, b []int32) {
	for _, i := range a {
		for _, j := range b {
			r, c := int(i), int(j)
			if r < c {
				r, c = c, r
			}
			pairs[Coord{Row: r, Col: c}] = struct{}{}
		}
	}
}

// mergeSupports merges two sorted unique index slices into a new sorted
// unique slice.
func mergeSupports(a, b []int32) []int32 {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]int32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
