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

// Package errors defines shared types for handling nlexpr errors.
//
// All failures surfaced by the evaluator are one of a small, closed set of
// conditions. Build-time failures (dangling references, duplicate
// registrations) are fatal and reported immediately; query-time failures
// (uninitialized features, the session-wide Hessian gate) signal a contract
// violation by the caller. Numeric domain failures are not errors at this
// layer: they propagate as NaN or Inf results for the solver to reject.
package errors // import "nlexpr.org/go/nlexpr/errors"

import (
	"errors"
	"fmt"
)

// New is a convenience wrapper for errors.New in the core library.
func New(msg string) error {
	return errors.New(msg)
}

// Newf creates an error with the given format and arguments.
func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Sentinel values for use with [Is]. Each typed error below unwraps to the
// corresponding sentinel.
var (
	ErrUnresolvedReference   = errors.New("unresolved reference")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrFeatureNotAvailable   = errors.New("feature not available")
	ErrHessianUnavailable    = errors.New("hessian unavailable")
)

// A RefKind says what namespace a dangling reference was resolved against.
type RefKind string

const (
	RefVariable   RefKind = "variable"
	RefParameter  RefKind = "parameter"
	RefFunction   RefKind = "function"
	RefExpression RefKind = "expression"
)

// An UnresolvedReferenceError reports a reference to an undeclared
// variable, parameter, function, or named expression at graph-build time.
type UnresolvedReferenceError struct {
	Kind  RefKind
	Name  string // function or expression name, if named
	Index int    // variable index or parameter id, if indexed
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unresolved reference to %s %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("unresolved reference to %s %d", e.Kind, e.Index)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }

// A DuplicateRegistrationError reports a function or named-expression
// registration under a name that is already taken. Registrations are
// immutable; there is no overwrite.
type DuplicateRegistrationError struct {
	Kind RefKind
	Name string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("duplicate registration of %s %q", e.Kind, e.Name)
}

func (e *DuplicateRegistrationError) Unwrap() error { return ErrDuplicateRegistration }

// A FeatureNotAvailableError reports a query for a feature that was not
// requested when the session was initialized.
type FeatureNotAvailableError struct {
	Feature string
}

func (e *FeatureNotAvailableError) Error() string {
	return fmt.Sprintf("feature %q not requested at session initialization", e.Feature)
}

func (e *FeatureNotAvailableError) Unwrap() error { return ErrFeatureNotAvailable }

// A HessianUnavailableError reports a Hessian query on a session whose
// function registry contains a multivariate function without a usable
// Hessian. The gate is session-wide: it fires even for roots that never
// call the offending function. The session remains usable for values and
// gradients.
type HessianUnavailableError struct {
	Func string // first offending function, for the message
}

func (e *HessianUnavailableError) Error() string {
	return fmt.Sprintf("hessian disabled for session: function %q has no hessian", e.Func)
}

func (e *HessianUnavailableError) Unwrap() error { return ErrHessianUnavailable }
