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

import "nlexpr.org/go/nlexpr/dual"

// A Func is an externally supplied scalar function referenced by CallOp
// nodes. A Func is registered once, before any expression names it, and is
// immutable thereafter.
//
// Derivative policy, in order of preference:
//   - Grad/Hess, if supplied, are the hand-written derivatives.
//   - EvalDual, if supplied, is the same numeric body written against
//     [dual.Num]; the engine derives the gradient from it with one forward
//     pass per argument, and for univariate functions also the second
//     derivative.
//   - With neither, the function is opaque: it can be evaluated but not
//     differentiated through.
type Func struct {
	Name  string
	Arity int

	// Eval computes the function value. len(args) == Arity.
	Eval func(args []float64) float64

	// Grad, if non-nil, writes the partial derivatives into grad.
	Grad func(args, grad []float64)

	// Hess, if non-nil, writes the full symmetric Hessian into hess, an
	// Arity×Arity matrix.
	Hess func(args []float64, hess [][]float64)

	// EvalDual, if non-nil, is the autodiff body.
	EvalDual func(args []dual.Num) dual.Num
}

// HasGradient reports whether first derivatives are obtainable.
func (f *Func) HasGradient() bool {
	return f.Grad != nil || f.EvalDual != nil
}

// HasHessian reports whether second derivatives are obtainable. An
// autodiff body yields a Hessian only for univariate functions; carrying
// cross derivatives would need one pass per argument pair, which hand-
// written Hessians avoid.
func (f *Func) HasHessian() bool {
	return f.Hess != nil || (f.EvalDual != nil && f.Arity == 1)
}

// Gradient writes the partial derivatives at args into grad.
// The caller must have checked HasGradient.
func (f *Func) Gradient(args, grad []float64) {
	if f.Grad != nil {
		f.Grad(args, grad)
		return
	}
	duals := make([]dual.Num, len(args))
	for i, a := range args {
		duals[i] = dual.Const(a)
	}
	for i := range args {
		duals[i] = dual.Seed(args[i])
		grad[i] = f.EvalDual(duals).D1
		duals[i] = dual.Const(args[i])
	}
}

// Hessian writes the full symmetric Hessian at args into hess.
// The caller must have checked HasHessian.
func (f *Func) Hessian(args []float64, hess [][]float64) {
	if f.Hess != nil {
		f.Hess(args, hess)
		return
	}
	// Univariate autodiff body.
	hess[0][0] = f.EvalDual([]dual.Num{dual.Seed(args[0])}).D2
}
