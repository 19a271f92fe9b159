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

package base

import (
	"math/rand"

	"github.com/juju/errors"
)

// RandomGenerator is the random generator for coral.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// TruncatedNormalVector64 makes a vec filled with truncated normal random floats.
// Values farther than two standard deviations from the mean are resampled.
func (rng RandomGenerator) TruncatedNormalVector64(size int, mean, stdDev float64) []float64 {
	ret := make([]float64, size)
	for i := 0; i < len(ret); i++ {
		for {
			v := rng.NormFloat64()
			if v >= -2 && v <= 2 {
				ret[i] = v*stdDev + mean
				break
			}
		}
	}
	return ret
}

// WeightedSampleInt32 samples n distinct values without replacement, each value
// drawn with probability proportional to its weight. Weights must be positive.
func (rng RandomGenerator) WeightedSampleInt32(values []int32, weights []float64, n int) ([]int32, error) {
	if len(values) != len(weights) {
		return nil, errors.New("values and weights must have the same length")
	}
	if n > len(values) {
		return nil, errors.Errorf("cannot sample %d values from %d candidates", n, len(values))
	}
	remainingValues := make([]int32, len(values))
	copy(remainingValues, values)
	remainingWeights := make([]float64, len(weights))
	copy(remainingWeights, weights)
	total := 0.0
	for _, w := range remainingWeights {
		if w <= 0 {
			return nil, errors.Errorf("non-positive weight %f", w)
		}
		total += w
	}
	sampled := make([]int32, 0, n)
	for len(sampled) < n {
		target := rng.Float64() * total
		cursor := 0.0
		chosen := len(remainingValues) - 1
		for i, w := range remainingWeights {
			cursor += w
			if target < cursor {
				chosen = i
				break
			}
		}
		sampled = append(sampled, remainingValues[chosen])
		total -= remainingWeights[chosen]
		remainingValues = append(remainingValues[:chosen], remainingValues[chosen+1:]...)
		remainingWeights = append(remainingWeights[:chosen], remainingWeights[chosen+1:]...)
	}
	return sampled, nil
}
