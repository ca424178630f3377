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
)

// HessianColumn computes one column of the Hessian of Σ w·root by
// forward-over-reverse differentiation: a tangent sweep seeded on variable
// j, then a reverse sweep that carries an (adjoint, adjoint-tangent) pair
// per node. On return col[i] holds d²(Σ w·root)/dx_i dx_j for every
// variable i; col must be zeroed by the caller.
//
// Forward must have been run at the current point first; the sweep reuses
// its node values.
func (e *Evaluator) HessianColumn(seeds []Seed, j int, col []float64) {
	e.counts.HessianSweeps++
	e.tangent(j)

	arena := &e.tape.r.Arena
	for i := range e.adj {
		e.adj[i] = 0
		e.adjTan[i] = 0
	}
	for _, s := range seeds {
		e.adj[e.tape.Slot(s.Root)] += s.Weight
	}

	for i := len(e.tape.nodes) - 1; i >= 0; i-- {
		a, at := e.adj[i], e.adjTan[i]
		if a == 0 && at == 0 {
			continue
		}
		n := arena.Node(e.tape.nodes[i])
		switch n.Op {
		case adt.ConstOp, adt.ParamOp:
		case adt.VarOp:
			col[n.X] += at
		case adt.CondOp:
			br := n.Args[3]
			if n.Cmp.Eval(e.val(n.Args[0]), e.val(n.Args[1])) {
				br = n.Args[2]
			}
			e.push2(br, a, at, 1, 0)
		case adt.CallOp:
			e.reverseCall2(n, a, at)
		default:
			e.reverseArith2(n, i, a, at)
		}
	}
}

// tangent runs the forward tangent sweep for seed direction e_j, filling
// e.tan with the directional derivative of every node value.
func (e *Evaluator) tangent(j int) {
	arena := &e.tape.r.Arena
	for i, id := range e.tape.nodes {
		n := arena.Node(id)
		switch n.Op {
		case adt.ConstOp, adt.ParamOp:
			e.tan[i] = 0
		case adt.VarOp:
			if int(n.X) == j {
				e.tan[i] = 1
			} else {
				e.tan[i] = 0
			}
		case adt.NegOp:
			e.tan[i] = -e.tanOf(n.Args[0])
		case adt.SinOp:
			e.tan[i] = math.Cos(e.val(n.Args[0])) * e.tanOf(n.Args[0])
		case adt.CosOp:
			e.tan[i] = -math.Sin(e.val(n.Args[0])) * e.tanOf(n.Args[0])
		case adt.TanOp:
			t := e.vals[i]
			e.tan[i] = (1 + t*t) * e.tanOf(n.Args[0])
		case adt.LogOp:
			e.tan[i] = e.tanOf(n.Args[0]) / e.val(n.Args[0])
		case adt.ExpOp:
			e.tan[i] = e.vals[i] * e.tanOf(n.Args[0])
		case adt.SqrtOp:
			e.tan[i] = e.tanOf(n.Args[0]) / (2 * e.vals[i])
		case adt.AddOp:
			e.tan[i] = e.tanOf(n.Args[0]) + e.tanOf(n.Args[1])
		case adt.SubOp:
			e.tan[i] = e.tanOf(n.Args[0]) - e.tanOf(n.Args[1])
		case adt.MulOp:
			e.tan[i] = e.tanOf(n.Args[0])*e.val(n.Args[1]) + e.val(n.Args[0])*e.tanOf(n.Args[1])
		case adt.QuoOp:
			y := e.val(n.Args[1])
			e.tan[i] = (e.tanOf(n.Args[0]) - e.vals[i]*e.tanOf(n.Args[1])) / y
		case adt.PowOp:
			x, y := e.val(n.Args[0]), e.val(n.Args[1])
			d := y * math.Pow(x, y-1) * e.tanOf(n.Args[0])
			if arena.Node(n.Args[1]).Op != adt.ConstOp {
				d += e.vals[i] * math.Log(x) * e.tanOf(n.Args[1])
			}
			e.tan[i] = d
		case adt.SumOp:
			s := 0.0
			for _, arg := range n.Args {
				s += e.tanOf(arg)
			}
			e.tan[i] = s
		case adt.ProdOp:
			s := 0.0
			for k, arg := range n.Args {
				p := e.tanOf(arg)
				for m, other := range n.Args {
					if m != k {
						p *= e.val(other)
					}
				}
				s += p
			}
			e.tan[i] = s
		case adt.CondOp:
			if n.Cmp.Eval(e.val(n.Args[0]), e.val(n.Args[1])) {
				e.tan[i] = e.tanOf(n.Args[2])
			} else {
				e.tan[i] = e.tanOf(n.Args[3])
			}
		case adt.CallOp:
			f := e.tape.r.Func(n.X)
			g := e.gradbuf[:len(n.Args)]
			f.Gradient(e.args(n), g)
			s := 0.0
			for k, arg := range n.Args {
				s += g[k] * e.tanOf(arg)
			}
			e.tan[i] = s
		default:
			panic(fmt.Sprintf("eval: invalid op %v", n.Op))
		}
	}
}

func (e *Evaluator) tanOf(id adt.NodeID) float64 {
	return e.tan[e.tape.pos[id]]
}

// push2 propagates an (adjoint, adjoint-tangent) pair to a child through a
// local partial d with directional derivative dDot.
func (e *Evaluator) push2(id adt.NodeID, a, at, d, dDot float64) {
	p := e.tape.pos[id]
	e.adj[p] += a * d
	e.adjTan[p] += at*d + a*dDot
}

// reverseArith2 is the second-order counterpart of reverseArith: for each
// operand it propagates through the local partial d and its tangent ḋ.
func (e *Evaluator) reverseArith2(n *adt.Node, i int, a, at float64) {
	switch n.Op {
	case adt.NegOp:
		e.push2(n.Args[0], a, at, -1, 0)
	case adt.SinOp:
		x, xd := e.val(n.Args[0]), e.tanOf(n.Args[0])
		e.push2(n.Args[0], a, at, math.Cos(x), -math.Sin(x)*xd)
	case adt.CosOp:
		x, xd := e.val(n.Args[0]), e.tanOf(n.Args[0])
		e.push2(n.Args[0], a, at, -math.Sin(x), -math.Cos(x)*xd)
	case adt.TanOp:
		v, vd := e.vals[i], e.tan[i]
		e.push2(n.Args[0], a, at, 1+v*v, 2*v*vd)
	case adt.LogOp:
		x, xd := e.val(n.Args[0]), e.tanOf(n.Args[0])
		e.push2(n.Args[0], a, at, 1/x, -xd/(x*x))
	case adt.ExpOp:
		e.push2(n.Args[0], a, at, e.vals[i], e.tan[i])
	case adt.SqrtOp:
		v, vd := e.vals[i], e.tan[i]
		e.push2(n.Args[0], a, at, 1/(2*v), -vd/(2*v*v))
	case adt.AddOp:
		e.push2(n.Args[0], a, at, 1, 0)
		e.push2(n.Args[1], a, at, 1, 0)
	case adt.SubOp:
		e.push2(n.Args[0], a, at, 1, 0)
		e.push2(n.Args[1], a, at, -1, 0)
	case adt.MulOp:
		x, xd := e.val(n.Args[0]), e.tanOf(n.Args[0])
		y, yd := e.val(n.Args[1]), e.tanOf(n.Args[1])
		e.push2(n.Args[0], a, at, y, yd)
		e.push2(n.Args[1], a, at, x, xd)
	case adt.QuoOp:
		y, yd := e.val(n.Args[1]), e.tanOf(n.Args[1])
		v, vd := e.vals[i], e.tan[i]
		e.push2(n.Args[0], a, at, 1/y, -yd/(y*y))
		e.push2(n.Args[1], a, at, -v/y, -(vd*y-v*yd)/(y*y))
	case adt.PowOp:
		x, xd := e.val(n.Args[0]), e.tanOf(n.Args[0])
		y := e.val(n.Args[1])
		v, vd := e.vals[i], e.tan[i]
		dx := y * math.Pow(x, y-1)
		if e.tape.r.Arena.Node(n.Args[1]).Op == adt.ConstOp {
			e.push2(n.Args[0], a, at, dx, y*(y-1)*math.Pow(x, y-2)*xd)
		} else {
			yd := e.tanOf(n.Args[1])
			dxDot := yd*math.Pow(x, y-1) + y*(y-1)*math.Pow(x, y-2)*xd +
				dx*math.Log(x)*yd
			e.push2(n.Args[0], a, at, dx, dxDot)
			e.push2(n.Args[1], a, at, v*math.Log(x), vd*math.Log(x)+v*xd/x)
		}
	case adt.SumOp:
		for _, arg := range n.Args {
			e.push2(arg, a, at, 1, 0)
		}
	case adt.ProdOp:
		for k, arg := range n.Args {
			p, pd := 1.0, 0.0
			for m, other := range n.Args {
				if m != k {
					pd = pd*e.val(other) + p*e.tanOf(other)
					p *= e.val(other)
				}
			}
			e.push2(arg, a, at, p, pd)
		}
	default:
		panic(fmt.Sprintf("eval: invalid op %v", n.Op))
	}
}

// reverseCall2 propagates a second-order adjoint pair through a user
// function call using its gradient and full Hessian.
func (e *Evaluator) reverseCall2(n *adt.Node, a, at float64) {
	f := e.tape.r.Func(n.X)
	args := e.args(n)
	g := e.gradbuf[:len(n.Args)]
	f.Gradient(args, g)
	h := e.hessbuf[:len(n.Args)]
	f.Hessian(args, h)
	for k, arg := range n.Args {
		dDot := 0.0
		for m := range n.Args {
			dDot += h[k][m] * e.tanOf(n.Args[m])
		}
		e.push2(arg, a, at, g[k], dDot)
	}
}
