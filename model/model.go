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
	"github.com/coral-rec/coral/base"
	"github.com/juju/errors"
)

// TaskType decides how predictions are post-processed and which solver
// variant a factorization model runs.
type TaskType string

const (
	// TaskRating predicts explicit ratings, clipped to the rating range.
	TaskRating TaskType = "rating"
	// TaskRanking predicts implicit preference, thresholded probabilities.
	TaskRanking TaskType = "ranking"
)

// ParseTask validates a task name. Unrecognized names are rejected before any
// training begins.
func ParseTask(name string) (TaskType, error) {
	switch TaskType(name) {
	case TaskRating:
		return TaskRating, nil
	case TaskRanking:
		return TaskRanking, nil
	default:
		return "", errors.NotValidf("task %q", name)
	}
}

// Model is the interface for all models. Any model in this
// package should implement it.
type Model interface {
	// Set parameters.
	SetParams(params Params)
	// Get parameters.
	GetParams() Params
	// Get parameters grid.
	GetParamsGrid(withSize bool) ParamsGrid
	// Clear model weights.
	Clear()
	// Invalid returns true if the model has no trained weights.
	Invalid() bool
}

// BaseModel must be included by every recommendation model. Hyper-parameters
// and the random generator are managed by the BaseModel.
type BaseModel struct {
	Params    Params               // Hyper-parameters
	rng       base.RandomGenerator // Random generator
	randState int64                // Random seed
}

// SetParams sets hyper-parameters for the BaseModel.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.randState = model.Params.GetInt64(RandomState, 0)
	model.rng = base.NewRandomGenerator(model.randState)
}

// GetParams returns all hyper-parameters.
func (model *BaseModel) GetParams() Params {
	return model.Params
}

func (model *BaseModel) GetRandomGenerator() base.RandomGenerator {
	return model.rng
}

// ResetRandomGenerator recreates the random generator from the stored seed so
// that repeated training runs are reproducible.
func (model *BaseModel) ResetRandomGenerator() {
	model.rng = base.NewRandomGenerator(model.randState)
}
