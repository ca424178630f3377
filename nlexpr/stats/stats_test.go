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

package stats

import (
	"testing"

	"github.com/go-quicktest/qt"
)

func TestAddSince(t *testing.T) {
	var c Counts
	c.Add(Counts{Evaluations: 2, NodeVisits: 10})
	c.Add(Counts{Evaluations: 1, GradientSweeps: 3, NodeVisits: 5, CacheHits: 4})

	qt.Assert(t, qt.Equals(c, Counts{
		Evaluations:    3,
		GradientSweeps: 3,
		NodeVisits:     15,
		CacheHits:      4,
	}))

	start := c
	c.Add(Counts{Evaluations: 1, HessianSweeps: 2, NodeVisits: 5})
	qt.Assert(t, qt.Equals(c.Since(start), Counts{
		Evaluations:   1,
		HessianSweeps: 2,
		NodeVisits:    5,
	}))
}

func TestString(t *testing.T) {
	c := Counts{
		Evaluations:    12,
		GradientSweeps: 8,
		HessianSweeps:  2,
		NodeVisits:     720,
		CacheHits:      31,
	}
	qt.Assert(t, qt.Equals(c.String(), `Evaluations:    12
GradientSweeps: 8
HessianSweeps:  2

NodeVisits: 720
CacheHits:  31`))
}
