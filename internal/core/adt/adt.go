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

// Package adt represents compiled expression graphs.
//
// A graph is stored in an arena: an append-only slice of nodes addressed by
// stable integer ids. Operands are ids, not pointers, so a subgraph can be
// shared by any number of roots without aliasing hazards; the arena's
// lifetime bounds all node lifetimes. Nodes are appended children-first, so
// ascending id order is always a valid evaluation order.
//
// The node kind set is closed. Every operation over graphs (evaluation,
// differentiation, sparsity analysis, printing) is an exhaustive switch
// over Op; adding a kind means extending each of those switches.
package adt

import "fmt"

// A NodeID addresses a node within its owning arena.
type NodeID int32

// NoNode is an invalid id, used where an id is optional.
const NoNode NodeID = -1

// An Op is the kind tag of a node.
type Op uint8

const (
	NoOp Op = iota

	// Leaves.
	ConstOp // numeric constant; Val holds the value
	VarOp   // solver point entry; X holds the variable index
	ParamOp // parameter store cell; X holds the parameter id

	// Unary operators; Args[0] is the operand.
	NegOp
	SinOp
	CosOp
	TanOp
	LogOp
	ExpOp
	SqrtOp

	// Binary operators; Args[0] op Args[1].
	AddOp
	SubOp
	MulOp
	QuoOp
	PowOp

	// N-ary associative operators over Args.
	SumOp
	ProdOp

	// Conditional; Args is [predLHS, predRHS, then, else] and Cmp holds
	// the comparison. The predicate is value-level only.
	CondOp

	// Call of a registered function; X holds the function id, Args the
	// arguments in order.
	CallOp
)

var opNames = []string{
	NoOp:    "noop",
	ConstOp: "const",
	VarOp:   "var",
	ParamOp: "param",
	NegOp:   "-",
	SinOp:   "sin",
	CosOp:   "cos",
	TanOp:   "tan",
	LogOp:   "log",
	ExpOp:   "exp",
	SqrtOp:  "sqrt",
	AddOp:   "+",
	SubOp:   "-",
	MulOp:   "*",
	QuoOp:   "/",
	PowOp:   "^",
	SumOp:   "sum",
	ProdOp:  "prod",
	CondOp:  "cond",
	CallOp:  "call",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// IsUnary reports whether op takes exactly one operand.
func (op Op) IsUnary() bool { return op >= NegOp && op <= SqrtOp }

// IsBinary reports whether op takes exactly two operands.
func (op Op) IsBinary() bool { return op >= AddOp && op <= PowOp }

// IsLinear reports whether op is linear in each of its operands, so that
// it contributes no second-derivative interactions of its own.
func (op Op) IsLinear() bool {
	switch op {
	case ConstOp, VarOp, ParamOp, NegOp, AddOp, SubOp, SumOp, CondOp:
		return true
	}
	return false
}

// A CmpOp is the comparison of a conditional predicate.
type CmpOp uint8

const (
	NoCmp CmpOp = iota
	EqualOp
	NotEqualOp
	LessThanOp
	LessEqualOp
	GreaterThanOp
	GreaterEqualOp
)

var cmpNames = []string{
	NoCmp:          "nocmp",
	EqualOp:        "==",
	NotEqualOp:     "!=",
	LessThanOp:     "<",
	LessEqualOp:    "<=",
	GreaterThanOp:  ">",
	GreaterEqualOp: ">=",
}

func (op CmpOp) String() string {
	if int(op) < len(cmpNames) {
		return cmpNames[op]
	}
	return fmt.Sprintf("CmpOp(%d)", op)
}

// Eval reports whether `x op y` holds. Boundary convention: at exact
// equality the comparisons <=, >=, and == hold, so a conditional takes its
// then branch there, for the value and for the derivative.
func (op CmpOp) Eval(x, y float64) bool {
	switch op {
	case EqualOp:
		return x == y
	case NotEqualOp:
		return x != y
	case LessThanOp:
		return x < y
	case LessEqualOp:
		return x <= y
	case GreaterThanOp:
		return x > y
	case GreaterEqualOp:
		return x >= y
	}
	panic(fmt.Sprintf("adt: invalid comparison %v", op))
}

// A Node is one cell of an arena. Its meaning depends on Op; unused fields
// are zero.
type Node struct {
	Op   Op
	Cmp  CmpOp    // CondOp only
	X    int32    // VarOp: variable index; ParamOp: parameter id; CallOp: function id
	Val  float64  // ConstOp only
	Args []NodeID // operand ids, all smaller than the node's own id
}

// An Arena owns the nodes of all expressions compiled against one model.
// It is append-only: compiled expressions are immutable, and named
// sub-expressions are shared by id.
type Arena struct {
	Nodes []Node
}

// Add appends n and returns its id.
func (a *Arena) Add(n Node) NodeID {
	a.Nodes = append(a.Nodes, n)
	return NodeID(len(a.Nodes) - 1)
}

// Node returns the node with the given id.
func (a *Arena) Node(id NodeID) *Node {
	return &a.Nodes[id]
}

// Len returns the number of nodes in the arena.
func (a *Arena) Len() int { return len(a.Nodes) }
