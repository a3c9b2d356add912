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

package checker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/protoembed/internal/corpora"
	"github.com/bufbuild/protoembed/parser"
	"github.com/bufbuild/protoembed/reporter"
)

// TestCorpus checks every file under testdata. Set PROTOEMBED_REFRESH to a
// glob such as "**" to regenerate the expected outputs.
func TestCorpus(t *testing.T) {
	t.Parallel()
	corpora.Corpus{
		Root:      "testdata",
		Refresh:   "PROTOEMBED_REFRESH",
		Extension: "proto",
		Outputs: []corpora.Output{
			{Extension: "stderr"},
			{Extension: "order"},
		},
		Test: func(t *testing.T, path, text string) []string {
			file, err := parser.ParseString(path, text)
			require.NoError(t, err)

			var stderr strings.Builder
			res, err := Check(file, reporter.NewReporter(
				func(err reporter.ErrorWithPos) error {
					fmt.Fprintf(&stderr, "error: %v\n", err)
					return nil
				},
				func(err reporter.ErrorWithPos) {
					fmt.Fprintf(&stderr, "warning: %v\n", err)
				},
			))
			if err != nil {
				assert.True(t, IsConstraintError(err), "unexpected error: %v", err)
			}

			var order strings.Builder
			for _, decl := range res.Order {
				fmt.Fprintln(&order, declName(decl))
			}
			return []string{stderr.String(), order.String()}
		},
	}.Run(t)
}
