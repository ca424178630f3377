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

// Package nlexpr compiles nonlinear algebraic expressions into graphs that
// an external solver can query for values, gradients, Jacobians, and
// Hessians at arbitrary points.
//
// A modeling layer declares variables, parameters, and user functions on a
// [Model], builds expressions from [nlexpr.org/go/nlexpr/ast] trees, and
// hands a [Session] to the solver. The solver then drives repeated
// point queries; all derivative computation is exact (automatic
// differentiation), never finite differencing.
//
// A Model and its sessions are single-caller objects: the solver blocks on
// each query and parameters may only be mutated between queries.
package nlexpr // import "nlexpr.org/go/nlexpr"

import (
	"nlexpr.org/go/internal/core/adt"
	"nlexpr.org/go/internal/core/compile"
	"nlexpr.org/go/internal/core/export"
	"nlexpr.org/go/internal/core/runtime"
	"nlexpr.org/go/nlexpr/ast"
	"nlexpr.org/go/nlexpr/dual"
	"nlexpr.org/go/nlexpr/errors"
)

// A Model owns the declarations and compiled graphs of one optimization
// model: variables, mutable parameters, registered functions, and named
// shared sub-expressions.
type Model struct {
	rt  *runtime.Runtime
	cfg compile.Config
}

// An Option configures a Model.
type Option func(*Model)

// WithSimplify toggles algebraic normalization at expression build time:
// constant folding, flattening of nested sums and products, and removal of
// the neutral elements +0 and ×1. Simplification preserves the computed
// value for every input.
func WithSimplify(on bool) Option {
	return func(m *Model) { m.cfg.Simplify = on }
}

// New creates an empty model.
func New(opts ...Option) *Model {
	m := &Model{rt: runtime.New()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// DeclareVariable declares the next variable and returns its index into
// the point vector passed to session queries.
func (m *Model) DeclareVariable() int {
	return m.rt.DeclareVariable()
}

// DeclareParameter declares a mutable parameter cell and returns its id.
func (m *Model) DeclareParameter(init float64) int {
	return m.rt.DeclareParameter(init)
}

// SetParameter rewrites a parameter value. Expressions referencing the
// parameter pick up the new value on their next evaluation; no graphs are
// rebuilt and no sparsity patterns change. Cached point results of live
// sessions are invalidated.
//
// SetParameter must not be called concurrently with an in-flight query.
func (m *Model) SetParameter(id int, v float64) error {
	return m.rt.SetParameter(id, v)
}

// A Func is an externally supplied scalar function. Eval is required.
//
// Derivatives are optional. Grad and Hess are hand-written derivatives;
// EvalDual is the same body written against [dual.Num], from which the
// engine derives the gradient (and, for univariate functions, the second
// derivative) automatically.
type Func struct {
	Name  string
	Arity int

	Eval     func(args []float64) float64
	Grad     func(args, grad []float64)
	Hess     func(args []float64, hess [][]float64)
	EvalDual func(args []dual.Num) dual.Num
}

// RegisterFunc registers f. The name must not already be registered, and
// registration must precede any expression calling f.
func (m *Model) RegisterFunc(f Func) error {
	if f.Name == "" {
		return errors.New("nlexpr: function must have a name")
	}
	if f.Eval == nil {
		return errors.Newf("nlexpr: function %q has no body", f.Name)
	}
	if f.Arity < 1 {
		return errors.Newf("nlexpr: function %q must take at least one argument", f.Name)
	}
	return m.rt.RegisterFunc(&adt.Func{
		Name:     f.Name,
		Arity:    f.Arity,
		Eval:     f.Eval,
		Grad:     f.Grad,
		Hess:     f.Hess,
		EvalDual: f.EvalDual,
	})
}

// An Expression is a handle to a compiled graph root. Expressions are
// immutable; only parameter values may change underneath them.
type Expression struct {
	model *Model
	root  adt.NodeID
}

// BuildExpression compiles a front-end tree against the model. All
// variable, parameter, function, and named references must resolve, or
// building fails with an [errors.UnresolvedReferenceError].
func (m *Model) BuildExpression(x ast.Node) (Expression, error) {
	root, err := compile.Expr(m.rt, &m.cfg, x)
	if err != nil {
		return Expression{}, err
	}
	return Expression{model: m, root: root}, nil
}

// RegisterNamed compiles a tree and binds it to name for sharing: an
// [ast.Ref] to the name compiles to the same graph node, so every
// expression referencing it shares one subgraph, evaluated once per point.
func (m *Model) RegisterNamed(name string, x ast.Node) (Expression, error) {
	e, err := m.BuildExpression(x)
	if err != nil {
		return Expression{}, err
	}
	if err := m.rt.RegisterNamed(name, e.root); err != nil {
		return Expression{}, err
	}
	return e, nil
}

// Syntax rebuilds the front-end tree of the expression, with shared
// subgraphs expanded in place.
func (e Expression) Syntax() ast.Node {
	return export.Expr(e.model.rt, e.root)
}

// String renders the expression as text for inspection.
func (e Expression) String() string {
	return export.String(e.model.rt, e.root)
}
