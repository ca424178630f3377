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

package nlexpr

import (
	"nlexpr.org/go/internal/core/adt"
	"nlexpr.org/go/internal/core/eval"
	"nlexpr.org/go/nlexpr/errors"
	"nlexpr.org/go/nlexpr/stats"
)

// A Feature is a capability a solver requests at session initialization.
// Structure for a feature is compiled exactly once, at Init time; querying
// a feature that was not requested fails with
// [errors.FeatureNotAvailableError].
type Feature uint8

const (
	Value Feature = 1 << iota
	Gradient
	Jacobian
	Hessian
	ExpressionTree
)

var featureNames = map[Feature]string{
	Value:          "value",
	Gradient:       "gradient",
	Jacobian:       "jacobian",
	Hessian:        "hessian",
	ExpressionTree: "expression_tree",
}

func (f Feature) String() string {
	if s, ok := featureNames[f]; ok {
		return s
	}
	return "<unknown feature>"
}

// Has reports whether f includes all features of g.
func (f Feature) Has(g Feature) bool { return f&g == g }

// A Coord is a structurally nonzero position of the constraint Jacobian or
// the Lagrangian Hessian. Hessian coordinates are on the lower triangle.
type Coord = eval.Coord

type sessionState uint8

const (
	uninitialized sessionState = iota
	initialized
	ready
)

// A Session is the compiled, query-able object handed to an external
// solver for one model instance: one objective and any number of
// constraints over the same variable space.
//
// A session caches the results of the last evaluated point. Consecutive
// queries at an identical point, with no parameter mutation in between,
// are answered from the cache without walking the graphs again, since a
// solver commonly requests value, gradient, and constraint values at the
// same iterate. Parameter mutation invalidates the cache but never the
// sparsity patterns.
//
// Sessions are not safe for concurrent use.
type Session struct {
	model       *Model
	objective   adt.NodeID
	constraints []adt.NodeID

	state    sessionState
	features Feature

	tape *eval.Tape
	ev   *eval.Evaluator

	// Jacobian structure: per constraint, the sorted variable support.
	jacRows [][]int32
	jacPat  []Coord

	// Hessian structure.
	hessPat  []Coord
	hessCols []hessColumn

	// The session-wide Hessian capability gate, fixed at Init time.
	hessOK   bool
	hessGate string // offending function name

	// Last-point cache.
	point        []float64
	pointValid   bool
	paramVersion uint64

	grad      []float64
	gradValid bool
	jacVals   []float64
	jacValid  bool

	// Scratch for dense gradient extraction.
	dense []float64
}

// A hessColumn groups the pattern entries of one Hessian column so that a
// single forward-over-reverse sweep fills all of them.
type hessColumn struct {
	col  int
	rows []int // variable rows
	out  []int // positions in the pattern value slice
}

// NewSession creates an uninitialized session for the given objective and
// constraints. All expressions must belong to the same model.
func (m *Model) NewSession(objective Expression, constraints ...Expression) (*Session, error) {
	if objective.model != m {
		return nil, errors.New("nlexpr: objective was built on a different model")
	}
	s := &Session{
		model:     m,
		objective: objective.root,
	}
	for i, c := range constraints {
		if c.model != m {
			return nil, errors.Newf("nlexpr: constraint %d was built on a different model", i)
		}
		s.constraints = append(s.constraints, c.root)
	}
	return s, nil
}

// Init compiles the session structures for exactly the requested features
// and makes the session ready for queries. The expression set is fixed
// from here on; adding or removing a constraint means creating a new
// session.
func (s *Session) Init(features ...Feature) error {
	if s.state != uninitialized {
		return errors.New("nlexpr: session already initialized")
	}
	for _, f := range features {
		s.features |= f
	}
	s.state = initialized

	roots := append([]adt.NodeID{s.objective}, s.constraints...)
	s.tape = eval.NewTape(s.model.rt, roots)

	if s.features.Has(Gradient) || s.features.Has(Jacobian) || s.features.Has(Hessian) {
		if name, ok := s.undifferentiableCall(); ok {
			// Leave the session re-initializable, for instance value-only.
			s.tape = nil
			s.features = 0
			s.state = uninitialized
			return errors.Newf("nlexpr: function %q has no gradient and no autodiff body", name)
		}
	}

	if s.features.Has(Jacobian) {
		sup := s.tape.Supports()
		for i, c := range s.constraints {
			row := s.tape.Support(sup, c)
			s.jacRows = append(s.jacRows, row)
			for _, j := range row {
				s.jacPat = append(s.jacPat, Coord{Row: i, Col: int(j)})
			}
		}
	}

	if s.features.Has(Hessian) {
		s.hessOK, s.hessGate = s.hessianCapability()
		s.hessPat = s.tape.HessianPattern()
		byCol := map[int]*hessColumn{}
		var order []int
		for k, c := range s.hessPat {
			hc, ok := byCol[c.Col]
			if !ok {
				hc = &hessColumn{col: c.Col}
				byCol[c.Col] = hc
				order = append(order, c.Col)
			}
			hc.rows = append(hc.rows, c.Row)
			hc.out = append(hc.out, k)
		}
		for _, col := range order {
			s.hessCols = append(s.hessCols, *byCol[col])
		}
	}

	s.ev = eval.NewEvaluator(s.tape)
	s.grad = make([]float64, s.model.rt.NumVars)
	s.jacVals = make([]float64, len(s.jacPat))
	s.dense = make([]float64, s.model.rt.NumVars)
	s.state = ready
	return nil
}

// undifferentiableCall scans the tape for a call to a function with no
// first-derivative source.
func (s *Session) undifferentiableCall() (string, bool) {
	for _, f := range s.callees() {
		if !f.HasGradient() {
			return f.Name, true
		}
	}
	return "", false
}

// hessianCapability computes the session-wide Hessian gate: any registered
// multivariate function without a Hessian disables second derivatives for
// the whole session, whether or not it is called; a univariate one
// disables them only if it appears on the tape.
func (s *Session) hessianCapability() (bool, string) {
	for _, f := range s.model.rt.Funcs() {
		if f.Arity > 1 && !f.HasHessian() {
			return false, f.Name
		}
	}
	for _, f := range s.callees() {
		if !f.HasHessian() {
			return false, f.Name
		}
	}
	return true, ""
}

// callees returns the distinct functions called on the tape.
func (s *Session) callees() []*adt.Func {
	seen := map[int32]bool{}
	var out []*adt.Func
	arena := &s.model.rt.Arena
	for id := adt.NodeID(0); int(id) < arena.Len(); id++ {
		if s.tape.Slot(id) < 0 {
			continue
		}
		if n := arena.Node(id); n.Op == adt.CallOp && !seen[n.X] {
			seen[n.X] = true
			out = append(out, s.model.rt.Func(n.X))
		}
	}
	return out
}

func (s *Session) require(f Feature) error {
	if s.state != ready || !s.features.Has(f) {
		return &errors.FeatureNotAvailableError{Feature: f.String()}
	}
	return nil
}

// ensurePoint makes the forward values current for x, reusing the cached
// sweep when x and the parameter store are unchanged since the last query.
func (s *Session) ensurePoint(x []float64) error {
	if len(x) != s.model.rt.NumVars {
		return errors.Newf("nlexpr: point has %d entries, model has %d variables",
			len(x), s.model.rt.NumVars)
	}
	if s.pointValid && s.paramVersion == s.model.rt.ParamVersion && samePoint(s.point, x) {
		s.ev.AddCacheHit()
		return nil
	}
	s.ev.Forward(x)
	s.point = append(s.point[:0], x...)
	s.pointValid = true
	s.paramVersion = s.model.rt.ParamVersion
	s.gradValid = false
	s.jacValid = false
	return nil
}

func samePoint(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ValueAt evaluates the objective at x.
func (s *Session) ValueAt(x []float64) (float64, error) {
	if err := s.require(Value); err != nil {
		return 0, err
	}
	if err := s.ensurePoint(x); err != nil {
		return 0, err
	}
	return s.ev.Value(s.objective), nil
}

// ConstraintsAt evaluates all constraint bodies at x, in declaration
// order.
func (s *Session) ConstraintsAt(x []float64) ([]float64, error) {
	if err := s.require(Value); err != nil {
		return nil, err
	}
	if err := s.ensurePoint(x); err != nil {
		return nil, err
	}
	out := make([]float64, len(s.constraints))
	for i, c := range s.constraints {
		out[i] = s.ev.Value(c)
	}
	return out, nil
}

// GradientAt evaluates the objective gradient at x.
func (s *Session) GradientAt(x []float64) ([]float64, error) {
	if err := s.require(Gradient); err != nil {
		return nil, err
	}
	if err := s.ensurePoint(x); err != nil {
		return nil, err
	}
	// A repeated query was already counted as one hit by ensurePoint.
	if !s.gradValid {
		for i := range s.grad {
			s.grad[i] = 0
		}
		s.ev.Gradient([]eval.Seed{{Root: s.objective, Weight: 1}}, s.grad)
		s.gradValid = true
	}
	out := make([]float64, len(s.grad))
	copy(out, s.grad)
	return out, nil
}

// JacobianSparsity returns the structurally nonzero positions of the
// constraint Jacobian, fixed for the session's lifetime, sorted by
// constraint row.
func (s *Session) JacobianSparsity() ([]Coord, error) {
	if err := s.require(Jacobian); err != nil {
		return nil, err
	}
	out := make([]Coord, len(s.jacPat))
	copy(out, s.jacPat)
	return out, nil
}

// JacobianAt evaluates the constraint Jacobian at x. The result holds one
// value per [Session.JacobianSparsity] position, in the same order: one
// reverse sweep per constraint row fills its run of the pattern.
func (s *Session) JacobianAt(x []float64) ([]float64, error) {
	if err := s.require(Jacobian); err != nil {
		return nil, err
	}
	if err := s.ensurePoint(x); err != nil {
		return nil, err
	}
	if !s.jacValid {
		k := 0
		for i, c := range s.constraints {
			for j := range s.dense {
				s.dense[j] = 0
			}
			s.ev.Gradient([]eval.Seed{{Root: c, Weight: 1}}, s.dense)
			for _, j := range s.jacRows[i] {
				s.jacVals[k] = s.dense[j]
				k++
			}
		}
		s.jacValid = true
	}
	out := make([]float64, len(s.jacVals))
	copy(out, s.jacVals)
	return out, nil
}

// HessianSparsity returns the lower-triangular structurally nonzero
// positions of the Lagrangian Hessian, fixed for the session's lifetime.
// The pattern is structural and available even when the numeric Hessian is
// gated off by a function without second derivatives.
func (s *Session) HessianSparsity() ([]Coord, error) {
	if err := s.require(Hessian); err != nil {
		return nil, err
	}
	out := make([]Coord, len(s.hessPat))
	copy(out, s.hessPat)
	return out, nil
}

// LagrangianHessianAt evaluates the Hessian of
//
//	sigma·objective + Σ lambda[i]·constraint[i]
//
// at x. The result holds one value per [Session.HessianSparsity] position,
// in the same order. One forward-over-reverse sweep is run per structurally
// nonzero column.
//
// If any registered multivariate function lacks a Hessian, or any function
// on the session's graphs has none, the session is degraded to
// gradient-only and the call fails with [errors.HessianUnavailableError].
func (s *Session) LagrangianHessianAt(x []float64, sigma float64, lambda []float64) ([]float64, error) {
	if err := s.require(Hessian); err != nil {
		return nil, err
	}
	if !s.hessOK {
		return nil, &errors.HessianUnavailableError{Func: s.hessGate}
	}
	if len(lambda) != len(s.constraints) {
		return nil, errors.Newf("nlexpr: %d multipliers for %d constraints",
			len(lambda), len(s.constraints))
	}
	if err := s.ensurePoint(x); err != nil {
		return nil, err
	}
	seeds := make([]eval.Seed, 0, 1+len(lambda))
	seeds = append(seeds, eval.Seed{Root: s.objective, Weight: sigma})
	for i, c := range s.constraints {
		seeds = append(seeds, eval.Seed{Root: c, Weight: lambda[i]})
	}
	out := make([]float64, len(s.hessPat))
	for _, hc := range s.hessCols {
		for j := range s.dense {
			s.dense[j] = 0
		}
		s.ev.HessianColumn(seeds, hc.col, s.dense)
		for k, row := range hc.rows {
			out[hc.out[k]] = s.dense[row]
		}
	}
	return out, nil
}

// Objective returns the objective expression for introspection. No
// numeric work is done.
func (s *Session) Objective() (Expression, error) {
	if err := s.require(ExpressionTree); err != nil {
		return Expression{}, err
	}
	return Expression{model: s.model, root: s.objective}, nil
}

// Constraint returns constraint i for introspection.
func (s *Session) Constraint(i int) (Expression, error) {
	if err := s.require(ExpressionTree); err != nil {
		return Expression{}, err
	}
	if i < 0 || i >= len(s.constraints) {
		return Expression{}, errors.Newf("nlexpr: no constraint %d", i)
	}
	return Expression{model: s.model, root: s.constraints[i]}, nil
}

// Stats returns the accumulated evaluation counters of the session.
func (s *Session) Stats() stats.Counts {
	if s.ev == nil {
		return stats.Counts{}
	}
	return s.ev.Counts()
}
