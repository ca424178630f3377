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

// Package dual implements second-order forward-mode scalar
// differentiation.
//
// A Num carries a value together with the first and second derivative with
// respect to a single seed direction. User functions registered for
// autodiff write their numeric body against this type; the engine then
// obtains a gradient by one forward pass per argument and, for univariate
// functions, the exact second derivative in the same pass.
package dual

import "math"

// A Num is a scalar with its first and second directional derivatives.
type Num struct {
	Val float64
	D1  float64
	D2  float64
}

// Const lifts a constant into a Num: both derivatives are zero.
func Const(v float64) Num { return Num{Val: v} }

// Seed lifts the active input into a Num: derivative one, curvature zero.
func Seed(v float64) Num { return Num{Val: v, D1: 1} }

func Add(x, y Num) Num {
	return Num{x.Val + y.Val, x.D1 + y.D1, x.D2 + y.D2}
}

func Sub(x, y Num) Num {
	return Num{x.Val - y.Val, x.D1 - y.D1, x.D2 - y.D2}
}

func Neg(x Num) Num {
	return Num{-x.Val, -x.D1, -x.D2}
}

func Mul(x, y Num) Num {
	return Num{
		x.Val * y.Val,
		x.D1*y.Val + x.Val*y.D1,
		x.D2*y.Val + 2*x.D1*y.D1 + x.Val*y.D2,
	}
}

func Quo(x, y Num) Num {
	v := x.Val / y.Val
	d1 := (x.D1 - v*y.D1) / y.Val
	d2 := (x.D2 - 2*d1*y.D1 - v*y.D2) / y.Val
	return Num{v, d1, d2}
}

func Sin(x Num) Num {
	s, c := math.Sin(x.Val), math.Cos(x.Val)
	return Num{s, c * x.D1, c*x.D2 - s*x.D1*x.D1}
}

func Cos(x Num) Num {
	s, c := math.Sin(x.Val), math.Cos(x.Val)
	return Num{c, -s * x.D1, -s*x.D2 - c*x.D1*x.D1}
}

func Tan(x Num) Num {
	t := math.Tan(x.Val)
	u := 1 + t*t // sec^2
	return Num{t, u * x.D1, u*x.D2 + 2*t*u*x.D1*x.D1}
}

func Log(x Num) Num {
	d1 := x.D1 / x.Val
	return Num{math.Log(x.Val), d1, x.D2/x.Val - d1*d1}
}

func Exp(x Num) Num {
	e := math.Exp(x.Val)
	return Num{e, e * x.D1, e * (x.D1*x.D1 + x.D2)}
}

func Sqrt(x Num) Num {
	s := math.Sqrt(x.Val)
	d1 := x.D1 / (2 * s)
	return Num{s, d1, x.D2/(2*s) - x.D1*x.D1/(4*s*x.Val)}
}

// PowConst raises x to a constant exponent c.
func PowConst(x Num, c float64) Num {
	v := math.Pow(x.Val, c)
	p1 := c * math.Pow(x.Val, c-1)
	p2 := c * (c - 1) * math.Pow(x.Val, c-2)
	return Num{v, p1 * x.D1, p2*x.D1*x.D1 + p1*x.D2}
}

// Pow raises x to the power y. When y carries no derivative the constant
// exponent rule applies, which also covers negative bases with integral
// exponents; otherwise x^y is computed as exp(y*log x) and requires a
// positive base.
func Pow(x, y Num) Num {
	if y.D1 == 0 && y.D2 == 0 {
		return PowConst(x, y.Val)
	}
	return Exp(Mul(y, Log(x)))
}
