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

// Package compile lowers front-end expression trees into arena graphs.
//
// Compilation resolves every reference against the model's runtime:
// variable indices and parameter ids must be declared, function names
// registered with matching arity, and named expressions registered before
// first use. A dangling reference fails the whole build.
package compile

import (
	"nlexpr.org/go/internal/core/adt"
	"nlexpr.org/go/internal/core/runtime"
	"nlexpr.org/go/nlexpr/ast"
	"nlexpr.org/go/nlexpr/errors"
)

// Config configures a compilation.
type Config struct {
	// Simplify enables the algebraic normalization pass: constant folding
	// of subtrees without variable or parameter references, flattening of
	// nested sums and products of the same kind, and removal of the
	// neutral elements +0 and ×1. Each rewrite preserves the computed
	// float64 value for every input; conditional branch boundaries are
	// kept exactly.
	Simplify bool
}

// Expr compiles a front-end tree against r and returns the root id of the
// compiled graph.
func Expr(r *runtime.Runtime, cfg *Config, x ast.Node) (adt.NodeID, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := &compiler{r: r, cfg: cfg}
	return c.expr(x)
}

type compiler struct {
	r   *runtime.Runtime
	cfg *Config
}

func (c *compiler) expr(x ast.Node) (adt.NodeID, error) {
	switch n := x.(type) {
	case *ast.Num:
		return c.constant(n.Value), nil

	case *ast.Var:
		if n.Index < 0 || n.Index >= c.r.NumVars {
			return adt.NoNode, &errors.UnresolvedReferenceError{Kind: errors.RefVariable, Index: n.Index}
		}
		return c.r.Arena.Add(adt.Node{Op: adt.VarOp, X: int32(n.Index)}), nil

	case *ast.Param:
		if n.ID < 0 || n.ID >= len(c.r.Params) {
			return adt.NoNode, &errors.UnresolvedReferenceError{Kind: errors.RefParameter, Index: n.ID}
		}
		return c.r.Arena.Add(adt.Node{Op: adt.ParamOp, X: int32(n.ID)}), nil

	case *ast.Unary:
		return c.unary(n)

	case *ast.Binary:
		return c.binary(n)

	case *ast.Nary:
		return c.nary(n)

	case *ast.Cond:
		return c.cond(n)

	case *ast.Call:
		return c.call(n)

	case *ast.Ref:
		id, ok := c.r.LookupNamed(n.Name)
		if !ok {
			return adt.NoNode, &errors.UnresolvedReferenceError{Kind: errors.RefExpression, Name: n.Name}
		}
		return id, nil
	}
	return adt.NoNode, errors.Newf("compile: unknown expression node %T", x)
}

func (c *compiler) constant(v float64) adt.NodeID {
	return c.r.Arena.Add(adt.Node{Op: adt.ConstOp, Val: v})
}

func (c *compiler) unary(n *ast.Unary) (adt.NodeID, error) {
	op, ok := unaryOps[n.Op]
	if !ok {
		return adt.NoNode, errors.Newf("compile: invalid unary operator %v", n.Op)
	}
	x, err := c.expr(n.X)
	if err != nil {
		return adt.NoNode, err
	}
	if c.cfg.Simplify {
		if v, ok := c.constValue(x); ok {
			return c.constant(adt.UnaryValue(op, v)), nil
		}
	}
	return c.r.Arena.Add(adt.Node{Op: op, Args: []adt.NodeID{x}}), nil
}

func (c *compiler) binary(n *ast.Binary) (adt.NodeID, error) {
	op, ok := binaryOps[n.Op]
	if !ok {
		return adt.NoNode, errors.Newf("compile: invalid binary operator %v", n.Op)
	}
	x, err := c.expr(n.X)
	if err != nil {
		return adt.NoNode, err
	}
	y, err := c.expr(n.Y)
	if err != nil {
		return adt.NoNode, err
	}
	if c.cfg.Simplify {
		if id, ok := c.reduceBinary(op, x, y); ok {
			return id, nil
		}
	}
	return c.r.Arena.Add(adt.Node{Op: op, Args: []adt.NodeID{x, y}}), nil
}

// reduceBinary applies constant folding and neutral-element removal to a
// binary node under construction.
func (c *compiler) reduceBinary(op adt.Op, x, y adt.NodeID) (adt.NodeID, bool) {
	xv, xc := c.constValue(x)
	yv, yc := c.constValue(y)
	if xc && yc {
		return c.constant(adt.BinaryValue(op, xv, yv)), true
	}
	switch op {
	case adt.AddOp:
		if xc && xv == 0 {
			return y, true
		}
		if yc && yv == 0 {
			return x, true
		}
	case adt.SubOp:
		if yc && yv == 0 {
			return x, true
		}
	case adt.MulOp:
		if xc && xv == 1 {
			return y, true
		}
		if yc && yv == 1 {
			return x, true
		}
	case adt.QuoOp:
		if yc && yv == 1 {
			return x, true
		}
	}
	return adt.NoNode, false
}

func (c *compiler) nary(n *ast.Nary) (adt.NodeID, error) {
	op, ok := naryOps[n.Op]
	if !ok {
		return adt.NoNode, errors.Newf("compile: invalid n-ary operator %v", n.Op)
	}
	neutral := 0.0
	if op == adt.ProdOp {
		neutral = 1.0
	}

	var args []adt.NodeID
	constPart := neutral
	allConst := true
	for _, el := range n.List {
		id, err := c.expr(el)
		if err != nil {
			return adt.NoNode, err
		}
		if !c.cfg.Simplify {
			args = append(args, id)
			continue
		}
		// Flatten a nested node of the same kind.
		if nd := c.r.Arena.Node(id); nd.Op == op {
			args = append(args, nd.Args...)
			allConst = false // flattened children were not folded
			continue
		}
		if v, ok := c.constValue(id); ok {
			constPart = adt.BinaryValue(pointwise(op), constPart, v)
			continue
		}
		allConst = false
		args = append(args, id)
	}

	if !c.cfg.Simplify {
		return c.r.Arena.Add(adt.Node{Op: op, Args: args}), nil
	}
	if allConst && len(args) == 0 {
		return c.constant(constPart), nil
	}
	if constPart != neutral {
		args = append(args, c.constant(constPart))
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return c.r.Arena.Add(adt.Node{Op: op, Args: args}), nil
}

// pointwise maps an n-ary op to the binary op that folds two of its
// operands.
func pointwise(op adt.Op) adt.Op {
	if op == adt.SumOp {
		return adt.AddOp
	}
	return adt.MulOp
}

func (c *compiler) cond(n *ast.Cond) (adt.NodeID, error) {
	cmp, ok := cmpOps[n.Cmp]
	if !ok {
		return adt.NoNode, errors.Newf("compile: invalid comparison %v", n.Cmp)
	}
	x, err := c.expr(n.X)
	if err != nil {
		return adt.NoNode, err
	}
	y, err := c.expr(n.Y)
	if err != nil {
		return adt.NoNode, err
	}
	then, err := c.expr(n.Then)
	if err != nil {
		return adt.NoNode, err
	}
	els, err := c.expr(n.Else)
	if err != nil {
		return adt.NoNode, err
	}
	// A constant predicate selects its branch for every input, so folding
	// it cannot move a branch boundary. Both branches are compiled either
	// way: a rewrite must not change whether references resolve, and the
	// dead branch's nodes are unreachable from any root.
	if c.cfg.Simplify {
		if xv, xc := c.constValue(x); xc {
			if yv, yc := c.constValue(y); yc {
				if cmp.Eval(xv, yv) {
					return then, nil
				}
				return els, nil
			}
		}
	}
	return c.r.Arena.Add(adt.Node{
		Op:   adt.CondOp,
		Cmp:  cmp,
		Args: []adt.NodeID{x, y, then, els},
	}), nil
}

func (c *compiler) call(n *ast.Call) (adt.NodeID, error) {
	id, ok := c.r.LookupFunc(n.Name)
	if !ok {
		return adt.NoNode, &errors.UnresolvedReferenceError{Kind: errors.RefFunction, Name: n.Name}
	}
	f := c.r.Func(id)
	if len(n.Args) != f.Arity {
		return adt.NoNode, errors.Newf("compile: function %q takes %d arguments, called with %d",
			f.Name, f.Arity, len(n.Args))
	}
	args := make([]adt.NodeID, len(n.Args))
	for i, a := range n.Args {
		x, err := c.expr(a)
		if err != nil {
			return adt.NoNode, err
		}
		args[i] = x
	}
	// User bodies are opaque: no folding through them, even for constant
	// arguments. Their evaluation is deferred to query time.
	return c.r.Arena.Add(adt.Node{Op: adt.CallOp, X: id, Args: args}), nil
}

func (c *compiler) constValue(id adt.NodeID) (float64, bool) {
	if nd := c.r.Arena.Node(id); nd.Op == adt.ConstOp {
		return nd.Val, true
	}
	return 0, false
}

var unaryOps = map[ast.Op]adt.Op{
	ast.OpNeg:  adt.NegOp,
	ast.OpSin:  adt.SinOp,
	ast.OpCos:  adt.CosOp,
	ast.OpTan:  adt.TanOp,
	ast.OpLog:  adt.LogOp,
	ast.OpExp:  adt.ExpOp,
	ast.OpSqrt: adt.SqrtOp,
}

var binaryOps = map[ast.Op]adt.Op{
	ast.OpAdd: adt.AddOp,
	ast.OpSub: adt.SubOp,
	ast.OpMul: adt.MulOp,
	ast.OpQuo: adt.QuoOp,
	ast.OpPow: adt.PowOp,
}

var naryOps = map[ast.Op]adt.Op{
	ast.OpSum:  adt.SumOp,
	ast.OpProd: adt.ProdOp,
}

var cmpOps = map[ast.CmpOp]adt.CmpOp{
	ast.CmpEq:  adt.EqualOp,
	ast.CmpNeq: adt.NotEqualOp,
	ast.CmpLt:  adt.LessThanOp,
	ast.CmpLeq: adt.LessEqualOp,
	ast.CmpGt:  adt.GreaterThanOp,
	ast.CmpGeq: adt.GreaterEqualOp,
}
