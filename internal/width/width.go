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

// Package width measures the number of terminal cells that source text is
// expected to use up, so that diagnostics can place carets under the right
// characters. Grapheme clusters are measured with uniseg; tabstops advance
// to the next multiple of the tab width.
package width

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Width makes a best-effort guess at the width of s when displayed on a
// terminal, starting at column zero.
func Width(s string, tabstop int) int {
	return Advance(0, s, tabstop)
}

// Advance returns the column reached by printing s starting at column.
func Advance(column int, s string, tabstop int) int {
	// uniseg.StringWidth does not know about tabstops, so measure the text
	// between tabs separately.
	for s != "" {
		next, rest, haveTab := strings.Cut(s, "\t")
		column += uniseg.StringWidth(next)
		if haveTab {
			column += tabstop - column%tabstop
		}
		s = rest
	}
	return column
}

// Expand returns s with every tab replaced by enough spaces to reach the
// next tabstop.
func Expand(s string, tabstop int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var sb strings.Builder
	var column int
	for s != "" {
		next, rest, haveTab := strings.Cut(s, "\t")
		sb.WriteString(next)
		column += uniseg.StringWidth(next)
		if haveTab {
			pad := tabstop - column%tabstop
			sb.WriteString(strings.Repeat(" ", pad))
			column += pad
		}
		s = rest
	}
	return sb.String()
}
