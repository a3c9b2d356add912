// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package width

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWidth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text  string
		width int
	}{
		{"", 0},
		{"message", 7},
		{"\tx", 5},
		{"ab\tc", 5},
		{"abcd\t", 8},
		{"貓", 2},
		{"é", 1},
		{"🐈‍⬛", 2},
	}
	for _, test := range tests {
		assert.Equal(t, test.width, Width(test.text, 4), "%q", test.text)
	}
}

func TestAdvance(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 8, Advance(3, "\t", 4))
	assert.Equal(t, 4, Advance(3, "\t", 2))
	assert.Equal(t, 5, Advance(3, "貓", 4))
}

func TestExpand(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "no tabs", Expand("no tabs", 4))
	assert.Equal(t, "    x", Expand("\tx", 4))
	assert.Equal(t, "ab  c   d", Expand("ab\tc\td", 4))
	assert.Equal(t, "貓  x", Expand("貓\tx", 4))
}
