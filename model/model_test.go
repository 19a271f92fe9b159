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
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTask(t *testing.T) {
	task, err := ParseTask("rating")
	require.NoError(t, err)
	assert.Equal(t, TaskRating, task)
	task, err = ParseTask("ranking")
	require.NoError(t, err)
	assert.Equal(t, TaskRanking, task)
	_, err = ParseTask("classification")
	assert.True(t, errors.IsNotValid(err))
}

func TestBaseModelRandomGenerator(t *testing.T) {
	var a, b BaseModel
	a.SetParams(Params{RandomState: 42})
	b.SetParams(Params{RandomState: 42})
	assert.Equal(t, a.GetRandomGenerator().Int63(), b.GetRandomGenerator().Int63())
	// reseeding restarts the sequence
	a.ResetRandomGenerator()
	first := a.GetRandomGenerator().Int63()
	a.ResetRandomGenerator()
	second := a.GetRandomGenerator().Int63()
	assert.Equal(t, first, second)
}
