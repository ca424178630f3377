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

// Package export converts compiled graphs back to front-end trees and
// text. It is introspection only: exporting never evaluates anything.
package export

import (
	"fmt"
	"strings"

	"nlexpr.org/go/internal/core/adt"
	"nlexpr.org/go/internal/core/runtime"
	"nlexpr.org/go/nlexpr/ast"
	"nlexpr.org/go/nlexpr/literal"
)

// Expr rebuilds the front-end tree of a compiled root. Shared subgraphs
// are expanded in place; the result is a plain tree with no references
// left in it.
func Expr(r *runtime.Runtime, root adt.NodeID) ast.Node {
	n := r.Arena.Node(root)
	switch n.Op {
	case adt.ConstOp:
		return &ast.Num{Value: n.Val}
	case adt.VarOp:
		return &ast.Var{Index: int(n.X)}
	case adt.ParamOp:
		return &ast.Param{ID: int(n.X)}
	case adt.CondOp:
		return &ast.Cond{
			Cmp:  cmpOps[n.Cmp],
			X:    Expr(r, n.Args[0]),
			Y:    Expr(r, n.Args[1]),
			Then: Expr(r, n.Args[2]),
			Else: Expr(r, n.Args[3]),
		}
	case adt.CallOp:
		call := &ast.Call{Name: r.Func(n.X).Name}
		for _, arg := range n.Args {
			call.Args = append(call.Args, Expr(r, arg))
		}
		return call
	case adt.SumOp, adt.ProdOp:
		nary := &ast.Nary{Op: naryOps[n.Op]}
		for _, arg := range n.Args {
			nary.List = append(nary.List, Expr(r, arg))
		}
		return nary
	default:
		switch {
		case n.Op.IsUnary():
			return &ast.Unary{Op: unaryOps[n.Op], X: Expr(r, n.Args[0])}
		case n.Op.IsBinary():
			return &ast.Binary{
				Op: binaryOps[n.Op],
				X:  Expr(r, n.Args[0]),
				Y:  Expr(r, n.Args[1]),
			}
		}
	}
	panic(fmt.Sprintf("export: invalid op %v", n.Op))
}

// String renders a compiled root as expression text. The form is meant
// for inspection and golden tests, not for parsing back.
func String(r *runtime.Runtime, root adt.NodeID) string {
	var b strings.Builder
	write(&b, r, root)
	return b.String()
}

func write(b *strings.Builder, r *runtime.Runtime, id adt.NodeID) {
	n := r.Arena.Node(id)
	switch n.Op {
	case adt.ConstOp:
		b.WriteString(literal.FormatFloat(n.Val))
	case adt.VarOp:
		fmt.Fprintf(b, "x%d", n.X)
	case adt.ParamOp:
		fmt.Fprintf(b, "p%d", n.X)
	case adt.NegOp:
		b.WriteString("-")
		write(b, r, n.Args[0])
	case adt.SinOp, adt.CosOp, adt.TanOp, adt.LogOp, adt.ExpOp, adt.SqrtOp:
		b.WriteString(n.Op.String())
		b.WriteString("(")
		write(b, r, n.Args[0])
		b.WriteString(")")
	case adt.AddOp, adt.SubOp, adt.MulOp, adt.QuoOp, adt.PowOp:
		b.WriteString("(")
		write(b, r, n.Args[0])
		fmt.Fprintf(b, " %v ", n.Op)
		write(b, r, n.Args[1])
		b.WriteString(")")
	case adt.SumOp, adt.ProdOp:
		fmt.Fprintf(b, "%v(", n.Op)
		for k, arg := range n.Args {
			if k > 0 {
				b.WriteString(", ")
			}
			write(b, r, arg)
		}
		b.WriteString(")")
	case adt.CondOp:
		b.WriteString("if(")
		write(b, r, n.Args[0])
		fmt.Fprintf(b, " %v ", n.Cmp)
		write(b, r, n.Args[1])
		b.WriteString(", ")
		write(b, r, n.Args[2])
		b.WriteString(", ")
		write(b, r, n.Args[3])
		b.WriteString(")")
	case adt.CallOp:
		b.WriteString(r.Func(n.X).Name)
		b.WriteString("(")
		for k, arg := range n.Args {
			if k > 0 {
				b.WriteString(", ")
			}
			write(b, r, arg)
		}
		b.WriteString(")")
	default:
		panic(fmt.Sprintf("export: invalid op %v", n.Op))
	}
}

var unaryOps = map[adt.Op]ast.Op{
	adt.NegOp:  ast.OpNeg,
	adt.SinOp:  ast.OpSin,
	adt.CosOp:  ast.OpCos,
	adt.TanOp:  ast.OpTan,
	adt.LogOp:  ast.OpLog,
	adt.ExpOp:  ast.OpExp,
	adt.SqrtOp: ast.OpSqrt,
}

var binaryOps = map[adt.Op]ast.Op{
	adt.AddOp: ast.OpAdd,
	adt.SubOp: ast.OpSub,
	adt.MulOp: ast.OpMul,
	adt.QuoOp: ast.OpQuo,
	adt.PowOp: ast.OpPow,
}

var naryOps = map[adt.Op]ast.Op{
	adt.SumOp:  ast.OpSum,
	adt.ProdOp: ast.OpProd,
}

var cmpOps = map[adt.CmpOp]ast.CmpOp{
	adt.EqualOp:        ast.CmpEq,
	adt.NotEqualOp:     ast.CmpNeq,
	adt.LessThanOp:     ast.CmpLt,
	adt.LessEqualOp:    ast.CmpLeq,
	adt.GreaterThanOp:  ast.CmpGt,
	adt.GreaterEqualOp: ast.CmpGeq,
}
