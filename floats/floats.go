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

// Zero resets a vector: dst = 0
func Zero(dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
}

// MulConstAddTo multiplies a vector with a const and adds to dst: dst = dst + a * c
func MulConstAddTo(a []float64, c float64, dst []float64) {
	if len(dst) != len(a) {
		panic("floats: slice lengths do not match")
	}
	for i := range dst {
		dst[i] += a[i] * c
	}
}

// Dot computes the dot product of two vectors.
func Dot(a, b []float64) (ret float64) {
	if len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		ret += a[i] * b[i]
	}
	return
}

// Sum returns the sum of a vector.
func Sum(a []float64) (ret float64) {
	for i := range a {
		ret += a[i]
	}
	return
}
