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
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataset_AddFeedback(t *testing.T) {
	d := NewDataset(0, 0)
	for i := 0; i < 4; i++ {
		for j := i; j < 5; j++ {
			d.AddFeedback(strconv.Itoa(i), strconv.Itoa(j), float64(i+j))
		}
	}
	assert.Equal(t, 14, d.CountFeedback())
	assert.Equal(t, 4, d.CountUsers())
	assert.Equal(t, 5, d.CountItems())
	d.AddUser("10")
	d.AddItem("10")
	assert.Equal(t, 5, d.CountUsers())
	assert.Equal(t, 6, d.CountItems())
	// inserted entities without feedback have empty buckets
	assert.Empty(t, d.GetUserFeedback()[4])
	assert.Empty(t, d.GetItemFeedback()[5])
}

func TestDataset_ViewsConsistent(t *testing.T) {
	d := NewDataset(0, 0)
	d.AddFeedback("u0", "i0", 5)
	d.AddFeedback("u0", "i1", 3)
	d.AddFeedback("u1", "i0", 1)
	// user view
	assert.Equal(t, [][]int32{{0, 1}, {0}}, d.GetUserFeedback())
	assert.Equal(t, [][]float64{{5, 3}, {1}}, d.GetUserLabels())
	// item view
	assert.Equal(t, [][]int32{{0, 1}, {0}}, d.GetItemFeedback())
	assert.Equal(t, [][]float64{{5, 1}, {3}}, d.GetItemLabels())
	// flattened view
	assert.Equal(t, 3, d.CountFeedback())
	u, i, label := d.GetIndex(1)
	assert.Equal(t, int32(0), u)
	assert.Equal(t, int32(1), i)
	assert.Equal(t, 3.0, label)
	// global mean
	assert.InDelta(t, 3.0, d.GlobalMean(), 1e-6)
}

func TestDataset_GlobalMeanEmpty(t *testing.T) {
	d := NewDataset(0, 0)
	assert.Zero(t, d.GlobalMean())
}

func TestLoadDataFromCSV(t *testing.T) {
	temp, err := os.MkdirTemp("", "test_coral")
	assert.NoError(t, err)
	path := filepath.Join(temp, "feedback.csv")
	err = os.WriteFile(path, []byte("user,item,label\n1,1,4\n1,2,3\n2,1,5\n"), 0644)
	assert.NoError(t, err)
	d, err := LoadDataFromCSV(path, ",", true)
	assert.NoError(t, err)
	assert.Equal(t, 3, d.CountFeedback())
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 2, d.CountItems())
	assert.InDelta(t, 4.0, d.GlobalMean(), 1e-6)
}
