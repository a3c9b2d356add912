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

package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bufbuild/protoembed/ast"
	"github.com/bufbuild/protoembed/reporter"
)

// ErrUnexpectedCharacter is the underlying error of a LexError caused by a
// character that cannot start any token.
var ErrUnexpectedCharacter = errors.New("unexpected character")

// LexError is reported for the first lexeme the scanner cannot recognize.
type LexError struct {
	Pos ast.SourcePos
	// Char is the offending character, or zero when the problem is not a
	// single character (for example, an unterminated comment).
	Char rune
	Err  error
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.message())
}

func (e *LexError) message() string {
	if e.Char != 0 && errors.Is(e.Err, ErrUnexpectedCharacter) {
		return fmt.Sprintf("%v %q", e.Err, e.Char)
	}
	return e.Err.Error()
}

// GetPosition implements [reporter.ErrorWithPos].
func (e *LexError) GetPosition() ast.SourcePos { return e.Pos }

// Unwrap implements [reporter.ErrorWithPos].
func (e *LexError) Unwrap() error { return e.Err }

// SyntaxError is reported when the parser finds a token that the grammar
// does not allow at that point.
type SyntaxError struct {
	Pos ast.SourcePos
	// Expected describes the tokens that would have been accepted.
	Expected []string
	Found    Token
	// Detail optionally replaces the generic expected/found message.
	Detail string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.message())
}

func (e *SyntaxError) message() string {
	if e.Detail != "" {
		return "syntax error: " + e.Detail
	}
	return fmt.Sprintf("syntax error: expected %s, found %s", joinExpected(e.Expected), e.Found.Describe())
}

// GetPosition implements [reporter.ErrorWithPos].
func (e *SyntaxError) GetPosition() ast.SourcePos { return e.Pos }

// Unwrap implements [reporter.ErrorWithPos].
func (e *SyntaxError) Unwrap() error { return errors.New(e.message()) }

var (
	_ reporter.ErrorWithPos = (*LexError)(nil)
	_ reporter.ErrorWithPos = (*SyntaxError)(nil)
)

func joinExpected(expected []string) string {
	switch len(expected) {
	case 0:
		return "nothing"
	case 1:
		return expected[0]
	case 2:
		return expected[0] + " or " + expected[1]
	default:
		return strings.Join(expected[:len(expected)-1], ", ") + ", or " + expected[len(expected)-1]
	}
}
