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

// Package ast declares the expression trees handed to the evaluator by a
// modeling front-end.
//
// The trees are plain data: they carry no positions and no owner. A tree is
// only given meaning by compiling it against a model, which resolves
// variable indices, parameter ids, function names, and named references.
package ast // import "nlexpr.org/go/nlexpr/ast"

// A Node represents any node in an expression tree.
type Node interface {
	exprNode()
}

// A Num is a numeric constant.
type Num struct {
	Value float64
}

// A Var refers to a position in the solver's point vector. It never owns
// the value; the index must have been declared on the model.
type Var struct {
	Index int
}

// A Param refers to a mutable parameter cell declared on the model.
// Parameters may change between evaluations without rebuilding the tree.
type Param struct {
	ID int
}

// A Unary is the application of a unary operator.
type Unary struct {
	Op Op // OpNeg, OpSin, OpCos, OpTan, OpLog, OpExp, OpSqrt
	X  Node
}

// A Binary is the application of a binary arithmetic operator.
type Binary struct {
	Op Op // OpAdd, OpSub, OpMul, OpQuo, OpPow
	X  Node
	Y  Node
}

// A Nary is an associative sum or product over an ordered list of operands.
// The order is irrelevant for the value but fixed so that derivative
// accumulation is reproducible.
type Nary struct {
	Op   Op // OpSum, OpProd
	List []Node
}

// A Cond selects between two branches on a comparison of two expressions.
// The predicate is value-level only: no derivative flows through it.
type Cond struct {
	Cmp  CmpOp
	X, Y Node // predicate operands
	Then Node
	Else Node
}

// A Call invokes a function registered on the model, by name.
type Call struct {
	Name string
	Args []Node
}

// A Ref refers to a named expression previously registered on the model.
// Multiple roots may refer to the same name without duplicating the
// subgraph; the shared node is evaluated once per point.
type Ref struct {
	Name string
}

func (*Num) exprNode()    {}
func (*Var) exprNode()    {}
func (*Param) exprNode()  {}
func (*Unary) exprNode()  {}
func (*Binary) exprNode() {}
func (*Nary) exprNode()   {}
func (*Cond) exprNode()   {}
func (*Call) exprNode()   {}
func (*Ref) exprNode()    {}

// An Op identifies an arithmetic operator.
type Op int

const (
	NoOp Op = iota

	OpNeg
	OpSin
	OpCos
	OpTan
	OpLog
	OpExp
	OpSqrt

	OpAdd
	OpSub
	OpMul
	OpQuo
	OpPow

	OpSum
	OpProd
)

var opNames = map[Op]string{
	OpNeg:  "-",
	OpSin:  "sin",
	OpCos:  "cos",
	OpTan:  "tan",
	OpLog:  "log",
	OpExp:  "exp",
	OpSqrt: "sqrt",
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpQuo:  "/",
	OpPow:  "^",
	OpSum:  "sum",
	OpProd: "prod",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "<unknown op>"
}

// A CmpOp identifies a comparison operator used in a Cond predicate.
type CmpOp int

const (
	NoCmp CmpOp = iota
	CmpEq
	CmpNeq
	CmpLt
	CmpLeq
	CmpGt
	CmpGeq
)

var cmpNames = map[CmpOp]string{
	CmpEq:  "==",
	CmpNeq: "!=",
	CmpLt:  "<",
	CmpLeq: "<=",
	CmpGt:  ">",
	CmpGeq: ">=",
}

func (op CmpOp) String() string {
	if s, ok := cmpNames[op]; ok {
		return s
	}
	return "<unknown cmp>"
}
