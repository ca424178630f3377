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
	"fmt"
	"math"

	"nlexpr.org/go/internal/core/adt"
	"nlexpr.org/go/nlexpr/stats"
)

// An Evaluator holds the reusable sweep buffers for one tape. It is owned
// by a single session and not safe for concurrent use; the session's
// caller drives it strictly call-and-return.
type Evaluator struct {
	tape *Tape

	vals   []float64
	adj    []float64
	tan    []float64
	adjTan []float64

	// argbuf and gradbuf are scratch for user function calls, sized to the
	// largest arity on the tape.
	argbuf  []float64
	gradbuf []float64
	hessbuf [][]float64

	counts stats.Counts
}

// NewEvaluator returns an evaluator with buffers sized for t.
func NewEvaluator(t *Tape) *Evaluator {
	maxArity := 0
	for _, id := range t.nodes {
		if n := t.r.Arena.Node(id); n.Op == adt.CallOp && len(n.Args) > maxArity {
			maxArity = len(n.Args)
		}
	}
	hess := make([][]float64, maxArity)
	for i := range hess {
		hess[i] = make([]float64, maxArity)
	}
	return &Evaluator{
		tape:    t,
		vals:    make([]float64, t.Len()),
		adj:     make([]float64, t.Len()),
		tan:     make([]float64, t.Len()),
		adjTan:  make([]float64, t.Len()),
		argbuf:  make([]float64, maxArity),
		gradbuf: make([]float64, maxArity),
		hessbuf: hess,
	}
}

// Counts returns the accumulated sweep statistics.
func (e *Evaluator) Counts() stats.Counts { return e.counts }

// AddCacheHit records a query answered without a sweep.
func (e *Evaluator) AddCacheHit() { e.counts.CacheHits++ }

// A Seed assigns a reverse-sweep weight to a root. Seeding several roots
// at once differentiates their weighted sum in a single sweep, which is
// how the Lagrangian gradient and Hessian are obtained.
type Seed struct {
	Root   adt.NodeID
	Weight float64
}

// Forward runs the value sweep at the given point, reading parameter
// values from the runtime's store as of now.
func (e *Evaluator) Forward(point []float64) {
	e.counts.Evaluations++
	arena, params := &e.tape.r.Arena, e.tape.r.Params
	for i, id := range e.tape.nodes {
		n := arena.Node(id)
		e.counts.NodeVisits++
		switch n.Op {
		case adt.ConstOp:
			e.vals[i] = n.Val
		case adt.VarOp:
			e.vals[i] = point[n.X]
		case adt.ParamOp:
			e.vals[i] = params[n.X]
		case adt.CondOp:
			if n.Cmp.Eval(e.val(n.Args[0]), e.val(n.Args[1])) {
				e.vals[i] = e.val(n.Args[2])
			} else {
				e.vals[i] = e.val(n.Args[3])
			}
		case adt.CallOp:
			f := e.tape.r.Func(n.X)
			args := e.args(n)
			e.vals[i] = f.Eval(args)
		case adt.SumOp, adt.ProdOp:
			e.vals[i] = adt.NaryValue(n.Op, e.args(n))
		default:
			switch {
			case n.Op.IsUnary():
				e.vals[i] = adt.UnaryValue(n.Op, e.val(n.Args[0]))
			case n.Op.IsBinary():
				e.vals[i] = adt.BinaryValue(n.Op, e.val(n.Args[0]), e.val(n.Args[1]))
			default:
				panic(fmt.Sprintf("eval: invalid op %v", n.Op))
			}
		}
	}
}

// Value returns the value of a root computed by the last Forward sweep.
func (e *Evaluator) Value(root adt.NodeID) float64 {
	return e.vals[e.tape.Slot(root)]
}

// val returns the forward value of an arena id.
func (e *Evaluator) val(id adt.NodeID) float64 {
	return e.vals[e.tape.pos[id]]
}

// args gathers the forward values of a node's operands into the shared
// scratch buffer. The result is only valid until the next call.
func (e *Evaluator) args(n *adt.Node) []float64 {
	buf := e.argbuf
	if len(n.Args) > len(buf) {
		buf = make([]float64, len(n.Args))
	}
	buf = buf[:len(n.Args)]
	for k, arg := range n.Args {
		buf[k] = e.vals[e.tape.pos[arg]]
	}
	return buf
}

// Gradient runs a reverse adjoint sweep over the values of the last
// Forward call and accumulates d(Σ w·root)/dx into grad, which must be
// zeroed by the caller and have one entry per variable.
//
// The adjoint of each root is seeded with its weight; walking the tape
// backwards applies every node's local partial-derivative rules, so the
// cost is proportional to the tape, not to the number of variables.
func (e *Evaluator) Gradient(seeds []Seed, grad []float64) {
	e.counts.GradientSweeps++
	arena := &e.tape.r.Arena
	for i := range e.adj {
		e.adj[i] = 0
	}
	for _, s := range seeds {
		e.adj[e.tape.Slot(s.Root)] += s.Weight
	}
	for i := len(e.tape.nodes) - 1; i >= 0; i-- {
		a := e.adj[i]
		if a == 0 {
			continue
		}
		n := arena.Node(e.tape.nodes[i])
		switch n.Op {
		case adt.ConstOp, adt.ParamOp:
			// Derivatives are with respect to variables only.
		case adt.VarOp:
			grad[n.X] += a
		case adt.CondOp:
			// Only the branch active at this point contributes; nothing
			// flows into the predicate.
			if n.Cmp.Eval(e.val(n.Args[0]), e.val(n.Args[1])) {
				e.bump(n.Args[2], a)
			} else {
				e.bump(n.Args[3], a)
			}
		case adt.CallOp:
			f := e.tape.r.Func(n.X)
			g := e.gradbuf[:len(n.Args)]
			f.Gradient(e.args(n), g)
			for k, arg := range n.Args {
				e.bump(arg, a*g[k])
			}
		default:
			e.reverseArith(n, i, a)
		}
	}
}

// bump adds w to the adjoint of an arena id.
func (e *Evaluator) bump(id adt.NodeID, w float64) {
	e.adj[e.tape.pos[id]] += w
}

// reverseArith propagates the adjoint a of slot i through a built-in
// arithmetic node.
func (e *Evaluator) reverseArith(n *adt.Node, i int, a float64) {
	switch n.Op {
	case adt.NegOp:
		e.bump(n.Args[0], -a)
	case adt.SinOp:
		e.bump(n.Args[0], a*math.Cos(e.val(n.Args[0])))
	case adt.CosOp:
		e.bump(n.Args[0], -a*math.Sin(e.val(n.Args[0])))
	case adt.TanOp:
		t := e.vals[i]
		e.bump(n.Args[0], a*(1+t*t))
	case adt.LogOp:
		e.bump(n.Args[0], a/e.val(n.Args[0]))
	case adt.ExpOp:
		e.bump(n.Args[0], a*e.vals[i])
	case adt.SqrtOp:
		e.bump(n.Args[0], a/(2*e.vals[i]))
	case adt.AddOp:
		e.bump(n.Args[0], a)
		e.bump(n.Args[1], a)
	case adt.SubOp:
		e.bump(n.Args[0], a)
		e.bump(n.Args[1], -a)
	case adt.MulOp:
		e.bump(n.Args[0], a*e.val(n.Args[1]))
		e.bump(n.Args[1], a*e.val(n.Args[0]))
	case adt.QuoOp:
		y := e.val(n.Args[1])
		e.bump(n.Args[0], a/y)
		e.bump(n.Args[1], -a*e.vals[i]/y)
	case adt.PowOp:
		x, y := e.val(n.Args[0]), e.val(n.Args[1])
		e.bump(n.Args[0], a*y*math.Pow(x, y-1))
		// d/dy x^y needs log x, which is a domain error for x <= 0 even
		// when the exponent is structurally constant. Skip the term for
		// constant exponents; their adjoint is never read.
		if e.tape.r.Arena.Node(n.Args[1]).Op != adt.ConstOp {
			e.bump(n.Args[1], a*e.vals[i]*math.Log(x))
		}
	case adt.SumOp:
		for _, arg := range n.Args {
			e.bump(arg, a)
		}
	case adt.ProdOp:
		// Partial with respect to operand k is the product of the others.
		// Quadratic in the operand count, which stays small in practice;
		// this form has no trouble with zero operands, unlike dividing
		// the total product.
		for k, arg := range n.Args {
			p := 1.0
			for m, other := range n.Args {
				if m != k {
					p *= e.val(other)
				}
			}
			e.bump(arg, a*p)
		}
	default:
		panic(fmt.Sprintf("eval: invalid op %v", n.Op))
	}
}
