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

package mf

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/coral-rec/coral/dataset"
	"github.com/coral-rec/coral/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// newRatingDataset builds an explicit feedback set where users prefer items
// with matching parity.
func newRatingDataset() *dataset.Dataset {
	data := dataset.NewDataset(8, 8)
	for u := 0; u < 8; u++ {
		for i := 0; i < 8; i++ {
			if (u+i)%3 == 0 {
				continue
			}
			label := 2.0
			if u%2 == i%2 {
				label = 4.0
			}
			data.AddFeedback(fmt.Sprintf("user%d", u), fmt.Sprintf("item%d", i), label)
		}
	}
	return data
}

// newRankingDataset builds an implicit feedback set of two disjoint blocks.
func newRankingDataset() *dataset.Dataset {
	data := dataset.NewDataset(6, 6)
	for u := 0; u < 6; u++ {
		for i := 0; i < 6; i++ {
			if (u < 3) == (i < 3) {
				data.AddFeedback(fmt.Sprintf("user%d", u), fmt.Sprintf("item%d", i), 1)
			}
		}
	}
	return data
}

func TestALS_Deterministic(t *testing.T) {
	data := newRatingDataset()
	params := model.Params{
		model.NFactors:    4,
		model.NEpochs:     5,
		model.Reg:         0.1,
		model.RandomState: 42,
	}
	a := NewALS(params)
	_, err := a.Fit(context.Background(), data, nil, NewFitConfig().SetJobs(4).SetVerbose(10))
	require.NoError(t, err)
	b := NewALS(params)
	_, err = b.Fit(context.Background(), data, nil, NewFitConfig().SetJobs(1).SetVerbose(10))
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(a.UserFactor, b.UserFactor, 1e-12))
	assert.True(t, mat.EqualApprox(a.ItemFactor, b.ItemFactor, 1e-12))
	recommendationsA, err := a.Recommend("user0", 3, false)
	require.NoError(t, err)
	recommendationsB, err := b.Recommend("user0", 3, false)
	require.NoError(t, err)
	assert.Equal(t, recommendationsA, recommendationsB)
}

func TestALS_PredictionsInRange(t *testing.T) {
	data := newRatingDataset()
	a := NewALS(model.Params{
		model.NFactors: 4,
		model.NEpochs:  5,
		model.Reg:      0.1,
	})
	_, err := a.Fit(context.Background(), data, nil, NewFitConfig().SetVerbose(10))
	require.NoError(t, err)
	for u := 0; u < 8; u++ {
		for i := 0; i < 8; i++ {
			prediction := a.Predict(fmt.Sprintf("user%d", u), fmt.Sprintf("item%d", i))
			assert.GreaterOrEqual(t, prediction, float32(1))
			assert.LessOrEqual(t, prediction, float32(5))
		}
	}
	// cold start falls back to the global mean
	assert.Equal(t, float32(data.GlobalMean()), a.Predict("no_such_user", "item0"))
	assert.Equal(t, float32(data.GlobalMean()), a.Predict("user0", "no_such_item"))
}

func TestALS_MonotonicTrainingError(t *testing.T) {
	data := newRatingDataset()
	var scores []float32
	a := NewALS(model.Params{
		model.NFactors: 4,
		model.NEpochs:  10,
		model.Reg:      0.1,
	})
	config := NewFitConfig().SetVerbose(1).SetOnEpoch(func(epoch int, trainScore float32) {
		scores = append(scores, trainScore)
	})
	_, err := a.Fit(context.Background(), data, nil, config)
	require.NoError(t, err)
	require.Len(t, scores, 10)
	assert.LessOrEqual(t, scores[len(scores)-1], scores[0])
}

func TestALS_VerboseZero(t *testing.T) {
	// verbose 0 disables diagnostics instead of breaking the epoch loop
	data := newRatingDataset()
	epochs := 0
	a := NewALS(model.Params{
		model.NFactors: 4,
		model.NEpochs:  3,
		model.Reg:      0.1,
	})
	config := NewFitConfig().SetVerbose(0).SetJobs(0).SetOnEpoch(func(epoch int, trainScore float32) {
		epochs++
	})
	score, err := a.Fit(context.Background(), data, nil, config)
	require.NoError(t, err)
	assert.Zero(t, epochs)
	assert.Greater(t, score.RMSE, float32(0))
}

func TestALS_RoundTrip3x3(t *testing.T) {
	ratings := [3][3]float64{
		{4, 2, 3},
		{2, 4, 3},
		{3, 3, 4},
	}
	data := dataset.NewDataset(3, 3)
	for u := 0; u < 3; u++ {
		for i := 0; i < 3; i++ {
			data.AddFeedback(fmt.Sprintf("user%d", u), fmt.Sprintf("item%d", i), ratings[u][i])
		}
	}
	params := model.Params{
		model.NFactors:    2,
		model.NEpochs:     1,
		model.Reg:         1.0,
		model.RandomState: 42,
	}
	squaredError := func(a *ALS) float64 {
		sum := 0.0
		for i := 0; i < data.CountFeedback(); i++ {
			userIndex, itemIndex, label := data.GetIndex(i)
			diff := a.PredictIndex(userIndex, itemIndex) - label
			sum += diff * diff
		}
		return sum
	}
	first := NewALS(params)
	_, err := first.Fit(context.Background(), data, nil, NewFitConfig().SetVerbose(10))
	require.NoError(t, err)
	last := NewALS(params.Overwrite(model.Params{model.NEpochs: 5}))
	_, err = last.Fit(context.Background(), data, nil, NewFitConfig().SetVerbose(10))
	require.NoError(t, err)
	assert.Less(t, squaredError(last), squaredError(first))
}

func TestALS_RankingTask(t *testing.T) {
	data := newRankingDataset()
	a := NewALS(model.Params{
		model.NFactors: 4,
		model.NEpochs:  10,
		model.Reg:      0.1,
		model.Alpha:    10.0,
		model.Task:     string(model.TaskRanking),
	})
	score, err := a.Fit(context.Background(), data, nil, NewFitConfig().SetVerbose(10))
	require.NoError(t, err)
	assert.Greater(t, score.Accuracy, float32(0.8))
	for i := 0; i < data.CountFeedback(); i++ {
		userIndex, itemIndex, _ := data.GetIndex(i)
		prediction := a.PredictIndex(userIndex, itemIndex)
		assert.True(t, prediction == 0 || prediction == 1)
		probability := a.Probability(userIndex, itemIndex)
		assert.GreaterOrEqual(t, probability, 0.0)
		assert.LessOrEqual(t, probability, 1.0)
	}
}

func TestALS_Validate(t *testing.T) {
	data := newRatingDataset()
	// invalid task
	a := NewALS(model.Params{model.Task: "classification"})
	_, err := a.Fit(context.Background(), data, nil, nil)
	assert.Error(t, err)
	// non-positive regularization
	a = NewALS(model.Params{model.Reg: -1.0})
	_, err = a.Fit(context.Background(), data, nil, nil)
	assert.Error(t, err)
	// empty train set
	a = NewALS(nil)
	_, err = a.Fit(context.Background(), dataset.NewDataset(0, 0), nil, nil)
	assert.Error(t, err)
}

func TestALS_Cancel(t *testing.T) {
	data := newRatingDataset()
	a := NewALS(model.Params{model.NEpochs: 100})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Fit(ctx, data, nil, NewFitConfig().SetJobs(2))
	assert.Error(t, err)
}

func TestALS_ClearInvalid(t *testing.T) {
	data := newRatingDataset()
	a := NewALS(nil)
	assert.True(t, a.Invalid())
	_, err := a.Fit(context.Background(), data, nil, NewFitConfig().SetVerbose(10))
	require.NoError(t, err)
	assert.False(t, a.Invalid())
	a.Clear()
	assert.True(t, a.Invalid())
}

func TestALS_SkipsEntitiesWithoutFeedback(t *testing.T) {
	data := newRatingDataset()
	data.AddUser("hermit")
	data.AddItem("unseen")
	a := NewALS(model.Params{
		model.NFactors:    2,
		model.NEpochs:     3,
		model.Reg:         0.1,
		model.RandomState: 1,
	})
	_, err := a.Fit(context.Background(), data, nil, NewFitConfig().SetVerbose(10))
	require.NoError(t, err)
	assert.False(t, a.IsUserPredictable(a.UserIndex.Id("hermit")))
	assert.False(t, a.IsItemPredictable(a.ItemIndex.Id("unseen")))
	// untouched rows keep their finite initialization
	for _, v := range a.GetUserFactor(a.UserIndex.Id("hermit")) {
		assert.False(t, math.IsNaN(v))
	}
}
