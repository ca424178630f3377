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

package nlexpr_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"nlexpr.org/go/nlexpr"
	"nlexpr.org/go/nlexpr/ast"
	"nlexpr.org/go/nlexpr/errors"
)

// square builds x_i^2 as an ast tree.
func square(i int) ast.Node {
	return ast.NewBinary(ast.OpPow, ast.NewVar(i), ast.NewNum(2))
}

func TestFeatureGate(t *testing.T) {
	m := nlexpr.New()
	x := m.DeclareVariable()
	obj, err := m.BuildExpression(square(x))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj)
	qt.Assert(t, qt.IsNil(err))

	// Queries before Init fail: no feature has been requested yet.
	_, err = s.ValueAt([]float64{1})
	qt.Assert(t, qt.ErrorIs(err, errors.ErrFeatureNotAvailable))

	qt.Assert(t, qt.IsNil(s.Init(nlexpr.Value)))

	v, err := s.ValueAt([]float64{3})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 9.0))

	// Gradient was not requested.
	_, err = s.GradientAt([]float64{3})
	qt.Assert(t, qt.ErrorIs(err, errors.ErrFeatureNotAvailable))

	// A session is initialized exactly once.
	qt.Assert(t, qt.ErrorMatches(s.Init(nlexpr.Gradient), "nlexpr: session already initialized"))
}

func TestLastPointCache(t *testing.T) {
	m := nlexpr.New()
	x := m.DeclareVariable()
	obj, err := m.BuildExpression(ast.NewUnary(ast.OpExp, ast.NewVar(x)))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(s.Init(nlexpr.Value, nlexpr.Gradient)))

	v1, err := s.ValueAt([]float64{0.5})
	qt.Assert(t, qt.IsNil(err))
	v2, err := s.ValueAt([]float64{0.5})
	qt.Assert(t, qt.IsNil(err))

	// Bit-identical, and served by a single forward sweep.
	qt.Assert(t, qt.Equals(v1, v2))
	qt.Assert(t, qt.Equals(s.Stats().Evaluations, int64(1)))
	qt.Assert(t, qt.Equals(s.Stats().CacheHits, int64(1)))

	// Value, gradient, and constraints at one iterate share the sweep.
	_, err = s.GradientAt([]float64{0.5})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s.Stats().Evaluations, int64(1)))
	qt.Assert(t, qt.Equals(s.Stats().GradientSweeps, int64(1)))

	// A repeated gradient query is one cache hit, not two.
	hits := s.Stats().CacheHits
	_, err = s.GradientAt([]float64{0.5})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s.Stats().GradientSweeps, int64(1)))
	qt.Assert(t, qt.Equals(s.Stats().CacheHits, hits+1))

	// A new point sweeps again.
	_, err = s.ValueAt([]float64{0.25})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s.Stats().Evaluations, int64(2)))
}

func TestParameterMutationInvalidatesCache(t *testing.T) {
	m := nlexpr.New()
	x := m.DeclareVariable()
	p := m.DeclareParameter(2)
	obj, err := m.BuildExpression(ast.NewBinary(ast.OpMul, ast.NewParam(p), ast.NewVar(x)))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(s.Init(nlexpr.Value)))

	v, err := s.ValueAt([]float64{3})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 6.0))

	// Same point, new parameter value: the cached sweep must not be
	// reused.
	qt.Assert(t, qt.IsNil(m.SetParameter(p, 10)))
	v, err = s.ValueAt([]float64{3})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 30.0))
	qt.Assert(t, qt.Equals(s.Stats().Evaluations, int64(2)))
	qt.Assert(t, qt.Equals(s.Stats().CacheHits, int64(0)))
}

func TestHessianGateIsSessionWide(t *testing.T) {
	m := nlexpr.New()
	x := m.DeclareVariable()

	// Two multivariate functions; "nohess" lacks second derivatives.
	qt.Assert(t, qt.IsNil(m.RegisterFunc(nlexpr.Func{
		Name:  "full",
		Arity: 2,
		Eval:  func(args []float64) float64 { return args[0] * args[1] },
		Grad:  func(args, grad []float64) { grad[0], grad[1] = args[1], args[0] },
		Hess: func(args []float64, hess [][]float64) {
			hess[0][0], hess[0][1] = 0, 1
			hess[1][0], hess[1][1] = 1, 0
		},
	})))
	qt.Assert(t, qt.IsNil(m.RegisterFunc(nlexpr.Func{
		Name:  "nohess",
		Arity: 2,
		Eval:  func(args []float64) float64 { return args[0] + args[1] },
		Grad:  func(args, grad []float64) { grad[0], grad[1] = 1, 1 },
	})))

	// The objective never references "nohess", but the gate is global.
	obj, err := m.BuildExpression(square(x))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(s.Init(nlexpr.Value, nlexpr.Hessian)))

	// Construction succeeded; the failure is lazy, on first query.
	_, err = s.LagrangianHessianAt([]float64{1}, 1, nil)
	qt.Assert(t, qt.ErrorIs(err, errors.ErrHessianUnavailable))
	qt.Assert(t, qt.ErrorMatches(err, `hessian disabled for session: function "nohess" has no hessian`))

	// Values keep working: the session degrades, it does not abort.
	v, err := s.ValueAt([]float64{3})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 9.0))

	// The structural pattern stays available.
	pat, err := s.HessianSparsity()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(pat, []nlexpr.Coord{{Row: 0, Col: 0}}))
}

func TestUndifferentiableFunctionFailsInit(t *testing.T) {
	m := nlexpr.New()
	x := m.DeclareVariable()
	qt.Assert(t, qt.IsNil(m.RegisterFunc(nlexpr.Func{
		Name:  "opaque",
		Arity: 1,
		Eval:  func(args []float64) float64 { return args[0] },
	})))

	obj, err := m.BuildExpression(ast.NewCall("opaque", ast.NewVar(x)))
	qt.Assert(t, qt.IsNil(err))

	// Value-only sessions may call it...
	s1, err := m.NewSession(obj)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(s1.Init(nlexpr.Value)))
	v, err := s1.ValueAt([]float64{7})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 7.0))

	// ...but a gradient session cannot be built over it.
	s2, err := m.NewSession(obj)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.ErrorMatches(s2.Init(nlexpr.Value, nlexpr.Gradient),
		`nlexpr: function "opaque" has no gradient and no autodiff body`))

	// A failed Init leaves the session re-initializable with fewer
	// features.
	qt.Assert(t, qt.IsNil(s2.Init(nlexpr.Value)))
	v, err = s2.ValueAt([]float64{-3})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, -3.0))
	_, err = s2.GradientAt([]float64{-3})
	qt.Assert(t, qt.ErrorIs(err, errors.ErrFeatureNotAvailable))
}

func TestDuplicateRegistration(t *testing.T) {
	m := nlexpr.New()
	f := nlexpr.Func{
		Name:  "f",
		Arity: 1,
		Eval:  func(args []float64) float64 { return args[0] },
	}
	qt.Assert(t, qt.IsNil(m.RegisterFunc(f)))
	qt.Assert(t, qt.ErrorIs(m.RegisterFunc(f), errors.ErrDuplicateRegistration))

	m.DeclareVariable()
	_, err := m.RegisterNamed("e", ast.NewVar(0))
	qt.Assert(t, qt.IsNil(err))
	_, err = m.RegisterNamed("e", ast.NewVar(0))
	qt.Assert(t, qt.ErrorIs(err, errors.ErrDuplicateRegistration))
}

func TestSharedExpressionAcrossConstraints(t *testing.T) {
	m := nlexpr.New()
	x := m.DeclareVariable()
	p := m.DeclareParameter(1)

	// Both constraints share p0*x0^2 through a named expression.
	_, err := m.RegisterNamed("core",
		ast.NewBinary(ast.OpMul, ast.NewParam(p), square(x)))
	qt.Assert(t, qt.IsNil(err))

	obj, err := m.BuildExpression(ast.NewVar(x))
	qt.Assert(t, qt.IsNil(err))
	c0, err := m.BuildExpression(ast.NewBinary(ast.OpAdd, ast.NewRef("core"), ast.NewNum(1)))
	qt.Assert(t, qt.IsNil(err))
	c1, err := m.BuildExpression(ast.NewBinary(ast.OpMul, ast.NewRef("core"), ast.NewNum(2)))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj, c0, c1)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(s.Init(nlexpr.Value)))

	cons, err := s.ConstraintsAt([]float64{3})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(cons, []float64{10, 18}))

	qt.Assert(t, qt.Equals(s.Stats().Evaluations, int64(1)))

	// Mutating the shared parameter changes both constraints coherently.
	qt.Assert(t, qt.IsNil(m.SetParameter(p, 2)))
	cons, err = s.ConstraintsAt([]float64{3})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(cons, []float64{19, 36}))
}

func TestJacobian(t *testing.T) {
	m := nlexpr.New()
	x0 := m.DeclareVariable()
	x1 := m.DeclareVariable()
	m.DeclareVariable() // x2 appears in no constraint

	obj, err := m.BuildExpression(ast.NewVar(x0))
	qt.Assert(t, qt.IsNil(err))
	// g0 = x0*x1, g1 = x0 + x1^2
	g0, err := m.BuildExpression(ast.NewBinary(ast.OpMul, ast.NewVar(x0), ast.NewVar(x1)))
	qt.Assert(t, qt.IsNil(err))
	g1, err := m.BuildExpression(ast.NewBinary(ast.OpAdd, ast.NewVar(x0), square(x1)))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj, g0, g1)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(s.Init(nlexpr.Value, nlexpr.Jacobian)))

	pat, err := s.JacobianSparsity()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(pat, []nlexpr.Coord{
		{Row: 0, Col: 0}, {Row: 0, Col: 1},
		{Row: 1, Col: 0}, {Row: 1, Col: 1},
	}))

	vals, err := s.JacobianAt([]float64{2, 3, 99})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(vals, []float64{3, 2, 1, 6}))

	// Same point again: no further sweeps, one cache hit.
	evals := s.Stats().Evaluations
	grads := s.Stats().GradientSweeps
	hits := s.Stats().CacheHits
	_, err = s.JacobianAt([]float64{2, 3, 99})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s.Stats().Evaluations, evals))
	qt.Assert(t, qt.Equals(s.Stats().GradientSweeps, grads))
	qt.Assert(t, qt.Equals(s.Stats().CacheHits, hits+1))
}

func TestLagrangianHessian(t *testing.T) {
	m := nlexpr.New()
	x0 := m.DeclareVariable()
	x1 := m.DeclareVariable()

	// f = x0^2 + x1^2, g = x0*x1.
	obj, err := m.BuildExpression(ast.NewBinary(ast.OpAdd, square(x0), square(x1)))
	qt.Assert(t, qt.IsNil(err))
	g, err := m.BuildExpression(ast.NewBinary(ast.OpMul, ast.NewVar(x0), ast.NewVar(x1)))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj, g)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(s.Init(nlexpr.Value, nlexpr.Hessian)))

	pat, err := s.HessianSparsity()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(pat, []nlexpr.Coord{
		{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 1, Col: 1},
	}))

	// H(σf + λg) = [[2σ, λ], [λ, 2σ]].
	vals, err := s.LagrangianHessianAt([]float64{5, -2}, 2, []float64{3})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(vals, []float64{4, 3, 4}))

	// Multiplier count is validated.
	_, err = s.LagrangianHessianAt([]float64{5, -2}, 1, nil)
	qt.Assert(t, qt.ErrorMatches(err, "nlexpr: 0 multipliers for 1 constraints"))
}

func TestConditionalThroughSession(t *testing.T) {
	m := nlexpr.New()
	x := m.DeclareVariable()
	obj, err := m.BuildExpression(ast.NewCond(ast.CmpLeq, ast.NewVar(x), ast.NewNum(1),
		square(x), ast.NewVar(x)))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(s.Init(nlexpr.Value, nlexpr.Gradient)))

	v, err := s.ValueAt([]float64{2})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 2.0))
	grad, err := s.GradientAt([]float64{2})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(grad[0], 1.0))

	v, err = s.ValueAt([]float64{0.5})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 0.25))
	grad, err = s.GradientAt([]float64{0.5})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(grad[0], 1.0))
}

func TestExpressionTreeIntrospection(t *testing.T) {
	m := nlexpr.New()
	x := m.DeclareVariable()
	obj, err := m.BuildExpression(ast.NewUnary(ast.OpSin, ast.NewVar(x)))
	qt.Assert(t, qt.IsNil(err))
	c, err := m.BuildExpression(square(x))
	qt.Assert(t, qt.IsNil(err))

	s, err := m.NewSession(obj, c)
	qt.Assert(t, qt.IsNil(err))

	qt.Assert(t, qt.IsNil(s.Init(nlexpr.ExpressionTree)))

	e, err := s.Objective()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(e.String(), "sin(x0)"))

	e, err = s.Constraint(0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(e.String(), "(x0 ^ 2)"))

	_, err = s.Constraint(1)
	qt.Assert(t, qt.ErrorMatches(err, "nlexpr: no constraint 1"))

	// Introspection costs no numeric work.
	qt.Assert(t, qt.Equals(s.Stats().Evaluations, int64(0)))

	// But evaluation was not requested.
	_, err = s.ValueAt([]float64{0})
	qt.Assert(t, qt.ErrorIs(err, errors.ErrFeatureNotAvailable))
}

func TestSimplifiedModelEvaluatesIdentically(t *testing.T) {
	build := func(opts ...nlexpr.Option) float64 {
		m := nlexpr.New(opts...)
		x := m.DeclareVariable()
		obj, err := m.BuildExpression(ast.NewSum(
			ast.NewBinary(ast.OpMul, ast.NewNum(1), ast.NewVar(x)),
			ast.NewBinary(ast.OpAdd, ast.NewNum(2), ast.NewNum(3)),
			ast.NewNum(0),
		))
		if err != nil {
			panic(err)
		}
		s, err := m.NewSession(obj)
		if err != nil {
			panic(err)
		}
		if err := s.Init(nlexpr.Value); err != nil {
			panic(err)
		}
		v, err := s.ValueAt([]float64{0.1})
		if err != nil {
			panic(err)
		}
		return v
	}
	qt.Assert(t, qt.Equals(build(), build(nlexpr.WithSimplify(true))))
}
