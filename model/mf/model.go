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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/coral-rec/coral/base/encoding"
	"github.com/coral-rec/coral/base/log"
	"github.com/coral-rec/coral/dataset"
	"github.com/coral-rec/coral/floats"
	"github.com/coral-rec/coral/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Score reports the fit quality on the evaluation set. RMSE is filled for the
// rating task, Accuracy for the ranking task.
type Score struct {
	RMSE     float32
	Accuracy float32
}

type FitConfig struct {
	Jobs    int
	Verbose int
	// OnEpoch is an optional diagnostic callback invoked after every reported
	// epoch with the training score.
	OnEpoch func(epoch int, trainScore float32)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 5,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetOnEpoch(callback func(epoch int, trainScore float32)) *FitConfig {
	config.OnEpoch = callback
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	if config.Jobs < 1 {
		config.Jobs = 1
	}
	return config
}

type MatrixFactorization interface {
	model.Model
	// Fit a model with a train set and parameters.
	Fit(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) (Score, error)
	// Predict the score given by a user (userId) to a item (itemId).
	Predict(userId, itemId string) float32
	// PredictIndex predicts the score given by a user index to a item index.
	PredictIndex(userIndex, itemIndex int32) float64
	// Recommend top-n un-interacted items for a user.
	Recommend(userId string, n int, randomMode bool) ([]Recommendation, error)
	// GetUserIndex returns user index.
	GetUserIndex() *dataset.FreqDict
	// GetItemIndex returns item index.
	GetItemIndex() *dataset.FreqDict
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
}

type BaseMatrixFactorization struct {
	model.BaseModel
	UserIndex       *dataset.FreqDict
	ItemIndex       *dataset.FreqDict
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Model parameters
	UserFactor *mat.Dense // p_u
	ItemFactor *mat.Dense // q_i
	// GlobalMean is the fallback for cold predictions.
	GlobalMean float64
	// UserFeedback keeps the training neighbor view for the ranker.
	UserFeedback [][]int32
}

func (baseModel *BaseMatrixFactorization) Init(trainSet *dataset.Dataset) {
	baseModel.UserIndex = trainSet.GetUserDict()
	baseModel.ItemIndex = trainSet.GetItemDict()
	baseModel.GlobalMean = trainSet.GlobalMean()
	baseModel.UserFeedback = trainSet.GetUserFeedback()
	// set user trained flags
	baseModel.UserPredictable = bitset.New(uint(baseModel.UserIndex.Count()))
	for userIndex := int32(0); userIndex < baseModel.UserIndex.Count(); userIndex++ {
		if len(trainSet.GetUserFeedback()[userIndex]) > 0 {
			baseModel.UserPredictable.Set(uint(userIndex))
		}
	}
	// set item trained flags
	baseModel.ItemPredictable = bitset.New(uint(baseModel.ItemIndex.Count()))
	for itemIndex := int32(0); itemIndex < baseModel.ItemIndex.Count(); itemIndex++ {
		if len(trainSet.GetItemFeedback()[itemIndex]) > 0 {
			baseModel.ItemPredictable.Set(uint(itemIndex))
		}
	}
}

func (baseModel *BaseMatrixFactorization) GetUserIndex() *dataset.FreqDict {
	return baseModel.UserIndex
}

func (baseModel *BaseMatrixFactorization) GetItemIndex() *dataset.FreqDict {
	return baseModel.ItemIndex
}

// IsUserPredictable returns false if user has no feedback and its embedding vector never be trained.
func (baseModel *BaseMatrixFactorization) IsUserPredictable(userIndex int32) bool {
	if userIndex >= baseModel.UserIndex.Count() || userIndex < 0 {
		return false
	}
	return baseModel.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if item has no feedback and its embedding vector never be trained.
func (baseModel *BaseMatrixFactorization) IsItemPredictable(itemIndex int32) bool {
	if itemIndex >= baseModel.ItemIndex.Count() || itemIndex < 0 {
		return false
	}
	return baseModel.ItemPredictable.Test(uint(itemIndex))
}

// GetUserFactor returns the latent factor of a user.
func (baseModel *BaseMatrixFactorization) GetUserFactor(userIndex int32) []float64 {
	return baseModel.UserFactor.RawRowView(int(userIndex))
}

// GetItemFactor returns the latent factor of an item.
func (baseModel *BaseMatrixFactorization) GetItemFactor(itemIndex int32) []float64 {
	return baseModel.ItemFactor.RawRowView(int(itemIndex))
}

// internalPredict is the raw dot product of two latent vectors.
func (baseModel *BaseMatrixFactorization) internalPredict(userIndex, itemIndex int32) float64 {
	return floats.Dot(baseModel.UserFactor.RawRowView(int(userIndex)),
		baseModel.ItemFactor.RawRowView(int(itemIndex)))
}

// inBounds reports whether both indices lie inside the trained factor
// matrices.
func (baseModel *BaseMatrixFactorization) inBounds(userIndex, itemIndex int32) bool {
	if baseModel.UserFactor == nil || baseModel.ItemFactor == nil {
		return false
	}
	userCount, _ := baseModel.UserFactor.Dims()
	itemCount, _ := baseModel.ItemFactor.Dims()
	return userIndex >= 0 && int(userIndex) < userCount &&
		itemIndex >= 0 && int(itemIndex) < itemCount
}

// Marshal model into byte stream.
func (baseModel *BaseMatrixFactorization) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// write global mean
	if err := binary.Write(w, binary.LittleEndian, baseModel.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	// write indices
	if err := encoding.WriteGob(w, dictNames(baseModel.UserIndex)); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, dictNames(baseModel.ItemIndex)); err != nil {
		return errors.Trace(err)
	}
	// write trained flags
	if err := writeBitSet(w, baseModel.UserPredictable); err != nil {
		return errors.Trace(err)
	}
	if err := writeBitSet(w, baseModel.ItemPredictable); err != nil {
		return errors.Trace(err)
	}
	// write factors
	if err := encoding.WriteDense(w, baseModel.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteDense(w, baseModel.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	// write neighbor view
	if err := encoding.WriteGob(w, baseModel.UserFeedback); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (baseModel *BaseMatrixFactorization) Unmarshal(r io.Reader) error {
	// read params
	if err := encoding.ReadGob(r, &baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// read global mean
	if err := binary.Read(r, binary.LittleEndian, &baseModel.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	// read indices
	var userNames, itemNames []string
	if err := encoding.ReadGob(r, &userNames); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &itemNames); err != nil {
		return errors.Trace(err)
	}
	baseModel.UserIndex = dictFromNames(userNames)
	baseModel.ItemIndex = dictFromNames(itemNames)
	// read trained flags
	var err error
	if baseModel.UserPredictable, err = readBitSet(r); err != nil {
		return errors.Trace(err)
	}
	if baseModel.ItemPredictable, err = readBitSet(r); err != nil {
		return errors.Trace(err)
	}
	// read factors
	if err := encoding.ReadDense(r, &baseModel.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadDense(r, &baseModel.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	// read neighbor view
	if err := encoding.ReadGob(r, &baseModel.UserFeedback); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (baseModel *BaseMatrixFactorization) Clear() {
	baseModel.UserIndex = nil
	baseModel.ItemIndex = nil
	baseModel.ItemFactor = nil
	baseModel.UserFactor = nil
	baseModel.UserFeedback = nil
}

func (baseModel *BaseMatrixFactorization) Invalid() bool {
	return baseModel == nil ||
		baseModel.UserIndex == nil ||
		baseModel.ItemIndex == nil ||
		baseModel.ItemFactor == nil ||
		baseModel.UserFactor == nil
}

func dictNames(dict *dataset.FreqDict) []string {
	names := make([]string, dict.Count())
	for i := int32(0); i < dict.Count(); i++ {
		names[i], _ = dict.String(i)
	}
	return names
}

func dictFromNames(names []string) *dataset.FreqDict {
	dict := dataset.NewFreqDict()
	for _, name := range names {
		dict.NotCount(name)
	}
	return dict
}

func writeBitSet(w io.Writer, b *bitset.BitSet) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteBytes(w, data)
}

func readBitSet(r io.Reader) (*bitset.BitSet, error) {
	data, err := encoding.ReadBytes(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	b := new(bitset.BitSet)
	if err := b.UnmarshalBinary(data); err != nil {
		return nil, errors.Trace(err)
	}
	return b, nil
}

func GetModelName(m model.Model) string {
	switch m.(type) {
	case *ALS:
		return "als"
	default:
		return fmt.Sprintf("%T", m)
	}
}

func MarshalModel(w io.Writer, m MatrixFactorization) error {
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func UnmarshalModel(r io.Reader) (MatrixFactorization, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch name {
	case "als":
		var als ALS
		if err := als.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &als, nil
	}
	return nil, errors.NotValidf("model %v", name)
}

func logFitProgress(name string, epoch, nEpochs int, fields ...zap.Field) {
	log.Logger().Info(fmt.Sprintf("fit %v %v/%v", name, epoch, nEpochs), fields...)
}
