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

package dataset

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/coral-rec/coral/base/log"
	"github.com/coral-rec/coral/floats"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Dataset is the interaction index consumed by factorization models. Every
// feedback triple (user, item, label) is stored three ways: grouped by user,
// grouped by item and flattened. The grouped views keep parallel arrays of
// neighbor indices and labels so that Gram matrix assembly walks contiguous
// slices instead of hash maps.
type Dataset struct {
	userDict *FreqDict
	itemDict *FreqDict
	// grouped by user
	userFeedback [][]int32
	userLabels   [][]float64
	// grouped by item
	itemFeedback [][]int32
	itemLabels   [][]float64
	// flattened triples
	feedbackUsers  []int32
	feedbackItems  []int32
	feedbackLabels []float64
}

// NewDataset creates an empty dataset with capacity hints.
func NewDataset(userCount, itemCount int) *Dataset {
	return &Dataset{
		userDict:     NewFreqDict(),
		itemDict:     NewFreqDict(),
		userFeedback: make([][]int32, 0, userCount),
		userLabels:   make([][]float64, 0, userCount),
		itemFeedback: make([][]int32, 0, itemCount),
		itemLabels:   make([][]float64, 0, itemCount),
	}
}

// AddUser inserts a user without any feedback.
func (d *Dataset) AddUser(userId string) {
	userIndex := d.userDict.NotCount(userId)
	for int(userIndex) >= len(d.userFeedback) {
		d.userFeedback = append(d.userFeedback, nil)
		d.userLabels = append(d.userLabels, nil)
	}
}

// AddItem inserts an item without any feedback.
func (d *Dataset) AddItem(itemId string) {
	itemIndex := d.itemDict.NotCount(itemId)
	for int(itemIndex) >= len(d.itemFeedback) {
		d.itemFeedback = append(d.itemFeedback, nil)
		d.itemLabels = append(d.itemLabels, nil)
	}
}

// AddFeedback inserts one (user, item, label) triple. The triple lands in
// exactly one user bucket, one item bucket and one slot of the flattened view.
func (d *Dataset) AddFeedback(userId, itemId string, label float64) {
	userIndex := d.userDict.Add(userId)
	itemIndex := d.itemDict.Add(itemId)
	for int(userIndex) >= len(d.userFeedback) {
		d.userFeedback = append(d.userFeedback, nil)
		d.userLabels = append(d.userLabels, nil)
	}
	for int(itemIndex) >= len(d.itemFeedback) {
		d.itemFeedback = append(d.itemFeedback, nil)
		d.itemLabels = append(d.itemLabels, nil)
	}
	d.userFeedback[userIndex] = append(d.userFeedback[userIndex], itemIndex)
	d.userLabels[userIndex] = append(d.userLabels[userIndex], label)
	d.itemFeedback[itemIndex] = append(d.itemFeedback[itemIndex], userIndex)
	d.itemLabels[itemIndex] = append(d.itemLabels[itemIndex], label)
	d.feedbackUsers = append(d.feedbackUsers, userIndex)
	d.feedbackItems = append(d.feedbackItems, itemIndex)
	d.feedbackLabels = append(d.feedbackLabels, label)
}

func (d *Dataset) CountUsers() int {
	return int(d.userDict.Count())
}

func (d *Dataset) CountItems() int {
	return int(d.itemDict.Count())
}

func (d *Dataset) CountFeedback() int {
	return len(d.feedbackLabels)
}

// GlobalMean returns the mean of all labels, the fallback for cold
// predictions. Zero for an empty dataset.
func (d *Dataset) GlobalMean() float64 {
	if len(d.feedbackLabels) == 0 {
		return 0
	}
	return floats.Sum(d.feedbackLabels) / float64(len(d.feedbackLabels))
}

func (d *Dataset) GetUserDict() *FreqDict {
	return d.userDict
}

func (d *Dataset) GetItemDict() *FreqDict {
	return d.itemDict
}

// GetUserFeedback returns item indices grouped by user.
func (d *Dataset) GetUserFeedback() [][]int32 {
	return d.userFeedback
}

// GetUserLabels returns labels parallel to GetUserFeedback.
func (d *Dataset) GetUserLabels() [][]float64 {
	return d.userLabels
}

// GetItemFeedback returns user indices grouped by item.
func (d *Dataset) GetItemFeedback() [][]int32 {
	return d.itemFeedback
}

// GetItemLabels returns labels parallel to GetItemFeedback.
func (d *Dataset) GetItemLabels() [][]float64 {
	return d.itemLabels
}

// GetIndex returns the i-th flattened triple.
func (d *Dataset) GetIndex(i int) (int32, int32, float64) {
	return d.feedbackUsers[i], d.feedbackItems[i], d.feedbackLabels[i]
}

// LoadDataFromCSV loads a dataset from a csv file with columns
// user, item, label.
func LoadDataFromCSV(fileName, sep string, hasHeader bool) (*Dataset, error) {
	dataset := NewDataset(0, 0)
	// Open file
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	// Read CSV file
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// Ignore header
		if hasHeader {
			hasHeader = false
			continue
		}
		fields := strings.Split(line, sep)
		// Ignore empty line
		if len(fields) < 2 {
			continue
		}
		label := 1.0
		if len(fields) > 2 {
			label, err = strconv.ParseFloat(fields[2], 64)
			if err != nil {
				log.Logger().Warn("failed to parse label",
					zap.String("label", fields[2]), zap.Error(err))
				continue
			}
		}
		dataset.AddFeedback(fields[0], fields[1], label)
	}
	return dataset, errors.Trace(scanner.Err())
}
