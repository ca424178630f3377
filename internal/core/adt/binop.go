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

package adt

import (
	"fmt"
	"math"
)

// The scalar rules below are the single source of truth for what each
// operator computes. The evaluator's forward sweep and the compiler's
// constant folder both call them, so folding a constant subtree yields
// bit-identical results to evaluating it.
//
// Domain failures (log of a non-positive value, 0^-1, ...) follow the math
// package: they produce NaN or Inf and propagate. This layer never
// intercepts them; trial points outside a function's domain are the
// caller's step-rejection problem.

// UnaryValue applies a unary operator to x.
func UnaryValue(op Op, x float64) float64 {
	switch op {
	case NegOp:
		return -x
	case SinOp:
		return math.Sin(x)
	case CosOp:
		return math.Cos(x)
	case TanOp:
		return math.Tan(x)
	case LogOp:
		return math.Log(x)
	case ExpOp:
		return math.Exp(x)
	case SqrtOp:
		return math.Sqrt(x)
	}
	panic(fmt.Sprintf("adt: invalid unary op %v", op))
}

// BinaryValue applies a binary operator to x and y.
func BinaryValue(op Op, x, y float64) float64 {
	switch op {
	case AddOp:
		return x + y
	case SubOp:
		return x - y
	case MulOp:
		return x * y
	case QuoOp:
		return x / y
	case PowOp:
		return math.Pow(x, y)
	}
	panic(fmt.Sprintf("adt: invalid binary op %v", op))
}

// NaryValue folds an n-ary operator over xs.
func NaryValue(op Op, xs []float64) float64 {
	switch op {
	case SumOp:
		s := 0.0
		for _, x := range xs {
			s += x
		}
		return s
	case ProdOp:
		p := 1.0
		for _, x := range xs {
			p *= x
		}
		return p
	}
	panic(fmt.Sprintf("adt: invalid n-ary op %v", op))
}
