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

package ast

import (
	"fmt"
	"sort"
)

// FileInfo contains information about the contents of a source file. A
// scanner records the start of every line as it goes, which allows byte
// offsets to be turned into line and column information on demand.
type FileInfo struct {
	// The name of the source file.
	name string
	// The raw contents of the source file.
	data []byte
	// The offsets for each line in the file. The value is the zero-based byte
	// offset for a given line. The line is given by its index. So the value at
	// index 0 is the offset for the first line (which is always zero). The
	// value at index 1 is the offset at which the second line begins. Etc.
	lines []int
}

// NewFileInfo creates a new instance for the given file.
func NewFileInfo(filename string, contents []byte) *FileInfo {
	return &FileInfo{
		name:  filename,
		data:  contents,
		lines: []int{0},
	}
}

// Name returns the name of the file.
func (f *FileInfo) Name() string {
	return f.name
}

// Data returns the raw contents of the file. Callers must not modify it.
func (f *FileInfo) Data() []byte {
	return f.data
}

// AddLine adds the offset representing the beginning of the "next" line in the file.
// The first line always starts at offset 0, the second line starts at offset-of-newline-char+1.
func (f *FileInfo) AddLine(offset int) {
	if offset < 0 {
		panic(fmt.Sprintf("invalid offset: %d must not be negative", offset))
	}
	if offset > len(f.data) {
		panic(fmt.Sprintf("invalid offset: %d is greater than file size %d", offset, len(f.data)))
	}

	lastOffset := f.lines[len(f.lines)-1]
	if offset <= lastOffset {
		panic(fmt.Sprintf("invalid offset: %d is not greater than previously observed line offset %d", offset, lastOffset))
	}

	f.lines = append(f.lines, offset)
}

// SourcePos computes the position of the given byte offset. Lines must have
// been recorded up to offset for the result to be accurate.
func (f *FileInfo) SourcePos(offset int) SourcePos {
	lineNumber := sort.Search(len(f.lines), func(n int) bool {
		return f.lines[n] > offset
	})

	col := 0
	for i := f.lines[lineNumber-1]; i < offset && i < len(f.data); i++ {
		switch {
		case f.data[i] == '\t':
			col += 8 - (col % 8)
		case f.data[i]&0xC0 == 0x80:
			// UTF-8 continuation byte; the rune was counted at its first byte.
		default:
			col++
		}
	}

	return SourcePos{
		Filename: f.name,
		Offset:   offset,
		Line:     lineNumber,
		// Columns are 1-indexed in this AST
		Col: col + 1,
	}
}

// Line returns the text of the line containing the given 1-indexed line
// number, without its line terminator. Lines must have been recorded up to
// line; it returns the empty string otherwise.
func (f *FileInfo) Line(line int) string {
	if line <= 0 || line > len(f.lines) {
		return ""
	}
	start := f.lines[line-1]
	end := start
	for end < len(f.data) && f.data[end] != '\n' {
		end++
	}
	if end > start && f.data[end-1] == '\r' {
		end--
	}
	return string(f.data[start:end])
}

// SourcePos identifies a location in a proto source file.
type SourcePos struct {
	Filename  string
	Line, Col int
	Offset    int
}

func (pos SourcePos) String() string {
	if pos.Line <= 0 || pos.Col <= 0 {
		return pos.Filename
	}
	return fmt.Sprintf("%s:%d:%d", pos.Filename, pos.Line, pos.Col)
}

// UnknownPos is a placeholder position when only the file name is known.
func UnknownPos(filename string) SourcePos {
	return SourcePos{Filename: filename}
}
