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

// Package literal converts numeric literal text exchanged with a modeling
// front-end to and from the float64 values the evaluator computes with.
//
// Parsing goes through an exact decimal representation first, so that
// literal text like "0.1" maps to the nearest float64 deterministically and
// independently of the front-end's own number handling.
package literal // import "nlexpr.org/go/nlexpr/literal"

import (
	"strconv"

	"github.com/cockroachdb/apd/v3"

	"nlexpr.org/go/nlexpr/errors"
)

// ParseNum parses a decimal literal, with optional sign, fraction, and
// exponent, into the nearest float64.
func ParseNum(s string) (float64, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return 0, errors.Newf("invalid numeric literal %q: %v", s, err)
	}
	f, err := d.Float64()
	if err != nil {
		return 0, errors.Newf("numeric literal %q out of float64 range: %v", s, err)
	}
	return f, nil
}

// FormatFloat renders f as the shortest decimal literal that parses back to
// the same float64. Integral values print without a decimal point.
func FormatFloat(f float64) string {
	if f == float64(int64(f)) && f > -1e15 && f < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
