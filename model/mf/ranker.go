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
	"github.com/coral-rec/coral/base"
	"github.com/coral-rec/coral/dataset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// ErrNotEnoughCandidates is returned by random recommendation when fewer
// items pass the score threshold than requested.
var ErrNotEnoughCandidates = errors.New("not enough candidates over threshold")

// randomRecThreshold is the minimal clipped score an item needs to enter the
// random recommendation pool.
const randomRecThreshold = 4.0

// Recommendation is a single ranked item.
type Recommendation struct {
	ItemId    string
	ItemIndex int32
	Score     float64
}

// Recommend returns the top n items the user has not interacted with, ranked
// by clipped score. Ties are broken by ascending item index so results are
// reproducible. In random mode the items are instead sampled without
// replacement from candidates over a score threshold, weighted by score.
func (als *ALS) Recommend(userId string, n int, randomMode bool) ([]Recommendation, error) {
	if als.Invalid() {
		return nil, errors.New("model is not trained")
	}
	if n <= 0 {
		return nil, errors.NotValidf("n = %v", n)
	}
	userIndex := als.UserIndex.Id(userId)
	if userIndex == dataset.NotId {
		return nil, errors.NotFoundf("user %q", userId)
	}
	if randomMode {
		return als.recommendRandom(userIndex, n)
	}
	return als.recommendTop(userIndex, n)
}

func (als *ALS) recommendTop(userIndex int32, n int) ([]Recommendation, error) {
	interacted := mapset.NewSet[int32](als.UserFeedback[userIndex]...)
	topItems := base.NewMaxHeap(n)
	for itemIndex := int32(0); itemIndex < als.ItemIndex.Count(); itemIndex++ {
		if interacted.Contains(itemIndex) {
			continue
		}
		topItems.Add(itemIndex, als.rankScore(userIndex, itemIndex))
	}
	itemIndices, scores := topItems.ToSorted()
	return als.collectRecommendations(itemIndices, scores), nil
}

func (als *ALS) recommendRandom(userIndex int32, n int) ([]Recommendation, error) {
	interacted := mapset.NewSet[int32](als.UserFeedback[userIndex]...)
	candidates := make([]int32, 0)
	weights := make([]float64, 0)
	for itemIndex := int32(0); itemIndex < als.ItemIndex.Count(); itemIndex++ {
		if interacted.Contains(itemIndex) {
			continue
		}
		score := als.rankScore(userIndex, itemIndex)
		if score >= randomRecThreshold {
			candidates = append(candidates, itemIndex)
			weights = append(weights, score)
		}
	}
	if len(candidates) < n {
		return nil, errors.Annotatef(ErrNotEnoughCandidates, "%v < %v", len(candidates), n)
	}
	sampled, err := als.GetRandomGenerator().WeightedSampleInt32(candidates, weights, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	scores := make([]float64, len(sampled))
	for i, itemIndex := range sampled {
		scores[i] = als.rankScore(userIndex, itemIndex)
	}
	return als.collectRecommendations(sampled, scores), nil
}

// rankScore is the clipped raw score used for ranking candidates, for both
// the rating task and the ranking task.
func (als *ALS) rankScore(userIndex, itemIndex int32) float64 {
	return clip(als.internalPredict(userIndex, itemIndex), als.minRating, als.maxRating)
}

func (als *ALS) collectRecommendations(itemIndices []int32, scores []float64) []Recommendation {
	recommendations := make([]Recommendation, len(itemIndices))
	for i, itemIndex := range itemIndices {
		itemId, _ := als.ItemIndex.String(itemIndex)
		recommendations[i] = Recommendation{
			ItemId:    itemId,
			ItemIndex: itemIndex,
			Score:     scores[i],
		}
	}
	return recommendations
}
