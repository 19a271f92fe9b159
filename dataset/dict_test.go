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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreqDict(t *testing.T) {
	d := NewFreqDict()
	assert.Equal(t, int32(0), d.Count())
	assert.Equal(t, int32(0), d.Add("a"))
	assert.Equal(t, int32(1), d.Add("b"))
	assert.Equal(t, int32(0), d.Add("a"))
	assert.Equal(t, int32(2), d.Count())
	assert.Equal(t, 2, d.Freq(0))
	assert.Equal(t, 1, d.Freq(1))
	assert.Equal(t, 0, d.Freq(100))
	// lookup never inserts
	assert.Equal(t, NotId, d.Id("c"))
	assert.Equal(t, int32(2), d.Count())
	assert.Equal(t, int32(0), d.Id("a"))
	// NotCount inserts without counting
	assert.Equal(t, int32(2), d.NotCount("c"))
	assert.Equal(t, 0, d.Freq(2))
	// reverse lookup
	s, ok := d.String(1)
	assert.True(t, ok)
	assert.Equal(t, "b", s)
	_, ok = d.String(100)
	assert.False(t, ok)
}
