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

package model

import (
	"github.com/chewxy/math32"
	"github.com/coral-rec/coral/dataset"
)

// IndexPredictor scores a (user, item) pair by dense indices with
// task-specific post-processing applied.
type IndexPredictor interface {
	PredictIndex(userIndex, itemIndex int32) float64
}

// Evaluator measures the quality of predictions over a dataset.
type Evaluator func(p IndexPredictor, data *dataset.Dataset) float32

// RMSE is the root of mean squared error between predictions and labels.
func RMSE(p IndexPredictor, data *dataset.Dataset) float32 {
	if data.CountFeedback() == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < data.CountFeedback(); i++ {
		userIndex, itemIndex, label := data.GetIndex(i)
		diff := p.PredictIndex(userIndex, itemIndex) - label
		sum += diff * diff
	}
	return math32.Sqrt(float32(sum / float64(data.CountFeedback())))
}

// Accuracy is the share of thresholded predictions matching binary labels.
func Accuracy(p IndexPredictor, data *dataset.Dataset) float32 {
	if data.CountFeedback() == 0 {
		return 0
	}
	hit := 0
	for i := 0; i < data.CountFeedback(); i++ {
		userIndex, itemIndex, label := data.GetIndex(i)
		if p.PredictIndex(userIndex, itemIndex) == label {
			hit++
		}
	}
	return float32(hit) / float32(data.CountFeedback())
}
