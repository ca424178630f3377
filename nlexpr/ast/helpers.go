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

package ast

// NewNum returns a constant node.
func NewNum(v float64) *Num { return &Num{Value: v} }

// NewVar returns a reference to variable index i.
func NewVar(i int) *Var { return &Var{Index: i} }

// NewParam returns a reference to parameter id.
func NewParam(id int) *Param { return &Param{ID: id} }

// NewUnary applies op to x.
func NewUnary(op Op, x Node) *Unary { return &Unary{Op: op, X: x} }

// NewBinary applies a binary op to x and y.
func NewBinary(op Op, x, y Node) *Binary { return &Binary{Op: op, X: x, Y: y} }

// NewSum returns the associative sum of the given operands.
func NewSum(xs ...Node) *Nary { return &Nary{Op: OpSum, List: xs} }

// NewProd returns the associative product of the given operands.
func NewProd(xs ...Node) *Nary { return &Nary{Op: OpProd, List: xs} }

// NewCall invokes the registered function name with the given arguments.
func NewCall(name string, args ...Node) *Call { return &Call{Name: name, Args: args} }

// NewRef refers to the named expression name.
func NewRef(name string) *Ref { return &Ref{Name: name} }

// NewCond selects then if `x cmp y` holds at the evaluation point, else
// otherwise. At exact equality of a <=, >=, or == predicate the then branch
// is taken, for both the value and the derivative.
func NewCond(cmp CmpOp, x, y, then, els Node) *Cond {
	return &Cond{Cmp: cmp, X: x, Y: y, Then: then, Else: els}
}
