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

package literal

import (
	"testing"

	"github.com/go-quicktest/qt"
)

func TestParseNum(t *testing.T) {
	testCases := []struct {
		in  string
		out float64
		err string
	}{
		{in: "0", out: 0},
		{in: "2", out: 2},
		{in: "-3.5", out: -3.5},
		{in: "0.1", out: 0.1},
		{in: "1e3", out: 1000},
		{in: "2.5E-2", out: 0.025},
		{in: "-1.25e+10", out: -1.25e10},
		{in: "", err: `invalid numeric literal "".*`},
		{in: "abc", err: `invalid numeric literal "abc".*`},
		{in: "1.2.3", err: `invalid numeric literal "1.2.3".*`},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseNum(tc.in)
			if tc.err != "" {
				qt.Assert(t, qt.ErrorMatches(err, tc.err))
				return
			}
			qt.Assert(t, qt.IsNil(err))
			qt.Assert(t, qt.Equals(got, tc.out))
		})
	}
}

func TestFormatFloat(t *testing.T) {
	testCases := []struct {
		in  float64
		out string
	}{
		{0, "0"},
		{2, "2"},
		{-7, "-7"},
		{2.5, "2.5"},
		{0.1, "0.1"},
		{1e20, "1e+20"},
		{-1.25e-10, "-1.25e-10"},
	}
	for _, tc := range testCases {
		qt.Assert(t, qt.Equals(FormatFloat(tc.in), tc.out))
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 0.1, 1.0 / 3, 123456.789, 1e-300} {
		got, err := ParseNum(FormatFloat(f))
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.Equals(got, f))
	}
}
