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

// Package stats provides counters for key events during expression
// evaluation.
package stats

import (
	"strings"
	"sync"
	"text/template"
)

// Counts holds counters for key events during evaluation of a session.
//
// The counters are the evaluator's only observability surface; solvers and
// tests use them to verify caching behavior and to spot pathological
// evaluation patterns.
type Counts struct {
	// Sweep counters
	//
	// These counters account for full passes over a session's tape.

	// Evaluations counts forward value sweeps. Consecutive queries at an
	// identical point share one sweep, so Evaluations stays below the
	// number of queries for well-behaved solvers.
	Evaluations int64

	// GradientSweeps counts reverse adjoint sweeps. One sweep serves a
	// whole gradient or Jacobian row set for a point.
	GradientSweeps int64

	// HessianSweeps counts forward-over-reverse sweeps. One sweep is run
	// per structurally nonzero Hessian column, so this grows with the
	// density of the Lagrangian Hessian.
	HessianSweeps int64

	// Node counters

	// NodeVisits counts individual node evaluations across all forward
	// sweeps. A shared subexpression is visited once per sweep regardless
	// of how many roots reference it.
	NodeVisits int64

	// Cache counters

	// CacheHits counts queries answered from the last-point cache without
	// a new forward sweep.
	CacheHits int64
}

func (c *Counts) Add(other Counts) {
	c.Evaluations += other.Evaluations
	c.GradientSweeps += other.GradientSweeps
	c.HessianSweeps += other.HessianSweeps
	c.NodeVisits += other.NodeVisits
	c.CacheHits += other.CacheHits
}

func (c Counts) Since(start Counts) Counts {
	c.Evaluations -= start.Evaluations
	c.GradientSweeps -= start.GradientSweeps
	c.HessianSweeps -= start.HessianSweeps
	c.NodeVisits -= start.NodeVisits
	c.CacheHits -= start.CacheHits
	return c
}

var stats = sync.OnceValue(func() *template.Template {
	return template.Must(template.New("stats").Parse(`{{"" -}}

Evaluations:    {{.Evaluations}}
GradientSweeps: {{.GradientSweeps}}
HessianSweeps:  {{.HessianSweeps}}

NodeVisits: {{.NodeVisits}}
CacheHits:  {{.CacheHits}}`))
})

func (c Counts) String() string {
	buf := &strings.Builder{}
	err := stats().Execute(buf, c)
	if err != nil {
		panic(err)
	}
	return buf.String()
}
