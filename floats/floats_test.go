// Copyright 2025 coral Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package floats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	a := []float64{1, 2, 3}
	Zero(a)
	assert.Equal(t, []float64{0, 0, 0}, a)
}

func TestMulConstAddTo(t *testing.T) {
	a := []float64{1, 2, 3}
	dst := []float64{1, 1, 1}
	MulConstAddTo(a, 2, dst)
	assert.Equal(t, []float64{3, 5, 7}, dst)
	assert.Panics(t, func() { MulConstAddTo(a, 2, nil) })
}

func TestDot(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	assert.Equal(t, 32.0, Dot(a, b))
	assert.Panics(t, func() { Dot(a, nil) })
}

func TestSum(t *testing.T) {
	assert.Equal(t, 6.0, Sum([]float64{1, 2, 3}))
}
