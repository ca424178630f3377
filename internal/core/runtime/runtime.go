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

// Package runtime maintains the mutable bookkeeping shared by all
// expressions of one model: the node arena, the variable and parameter
// declarations, the user function registry, and the named-expression
// table.
package runtime

import (
	"nlexpr.org/go/internal/core/adt"
	"nlexpr.org/go/nlexpr/errors"
)

// A Runtime indexes the declarations that compiled expressions refer to.
//
// The structural parts (arena, registry, named table) grow monotonically
// and are never mutated in place. Parameter values are the single
// exception: they may be rewritten between queries, and every write bumps
// ParamVersion so that sessions can invalidate point caches without
// rescanning the store.
type Runtime struct {
	Arena adt.Arena

	// NumVars is the length of the solver's point vector.
	NumVars int

	// Params holds the current parameter values, indexed by parameter id.
	Params []float64

	// ParamVersion counts parameter writes. It never decreases.
	ParamVersion uint64

	funcs     []*adt.Func
	funcIndex map[string]int32

	named map[string]adt.NodeID
}

// New creates an empty Runtime.
func New() *Runtime {
	return &Runtime{
		funcIndex: map[string]int32{},
		named:     map[string]adt.NodeID{},
	}
}

// DeclareVariable declares the next variable and returns its index into
// the point vector.
func (r *Runtime) DeclareVariable() int {
	r.NumVars++
	return r.NumVars - 1
}

// DeclareParameter declares a parameter cell with the given initial value
// and returns its id.
func (r *Runtime) DeclareParameter(init float64) int {
	r.Params = append(r.Params, init)
	return len(r.Params) - 1
}

// SetParameter rewrites the value of an existing parameter cell. It does
// not touch the expression graph; only cached evaluation results become
// stale, which sessions detect through ParamVersion.
func (r *Runtime) SetParameter(id int, v float64) error {
	if id < 0 || id >= len(r.Params) {
		return &errors.UnresolvedReferenceError{Kind: errors.RefParameter, Index: id}
	}
	r.Params[id] = v
	r.ParamVersion++
	return nil
}

// RegisterFunc adds f to the registry. The name must be unused.
func (r *Runtime) RegisterFunc(f *adt.Func) error {
	if _, ok := r.funcIndex[f.Name]; ok {
		return &errors.DuplicateRegistrationError{Kind: errors.RefFunction, Name: f.Name}
	}
	r.funcIndex[f.Name] = int32(len(r.funcs))
	r.funcs = append(r.funcs, f)
	return nil
}

// LookupFunc resolves a function name to its id.
func (r *Runtime) LookupFunc(name string) (int32, bool) {
	id, ok := r.funcIndex[name]
	return id, ok
}

// Func returns the function with the given id.
func (r *Runtime) Func(id int32) *adt.Func {
	return r.funcs[id]
}

// Funcs returns all registered functions, in registration order.
func (r *Runtime) Funcs() []*adt.Func {
	return r.funcs
}

// RegisterNamed binds name to an already compiled root. The name must be
// unused; named expressions, like functions, cannot be redefined.
func (r *Runtime) RegisterNamed(name string, root adt.NodeID) error {
	if _, ok := r.named[name]; ok {
		return &errors.DuplicateRegistrationError{Kind: errors.RefExpression, Name: name}
	}
	r.named[name] = root
	return nil
}

// LookupNamed resolves a named-expression reference.
func (r *Runtime) LookupNamed(name string) (adt.NodeID, bool) {
	id, ok := r.named[name]
	return id, ok
}
