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
	"fmt"
	"strconv"

	"github.com/bufbuild/protoembed/ast"
)

// TokenKind classifies a Token.
type TokenKind int

const (
	EOF TokenKind = iota
	Identifier
	Int
	Float
	String
	LBrace    // {
	RBrace    // }
	LBracket  // [
	RBracket  // ]
	Equals    // =
	Semicolon // ;
	Comma     // ,
	Minus     // -
)

var punctuation = map[rune]TokenKind{
	'{': LBrace,
	'}': RBrace,
	'[': LBracket,
	']': RBracket,
	'=': Equals,
	';': Semicolon,
	',': Comma,
	'-': Minus,
}

// String describes the kind the way it is shown in an expected-token set.
func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "end of file"
	case Identifier:
		return "identifier"
	case Int:
		return "int literal"
	case Float:
		return "float literal"
	case String:
		return "string literal"
	}
	for r, kind := range punctuation {
		if kind == k {
			return strconv.Quote(string(r))
		}
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexeme. Tokens are produced one at a time by a Scanner
// and are never modified.
type Token struct {
	Kind TokenKind
	// Text is the token exactly as it appears in source.
	Text string
	Pos  ast.SourcePos

	// Interpreted values for literal tokens.
	Int    uint64
	Float  float64
	String string
}

// Is reports whether t is the identifier word.
func (t Token) Is(word string) bool {
	return t.Kind == Identifier && t.Text == word
}

// Describe renders the token for use in an error message.
func (t Token) Describe() string {
	switch t.Kind {
	case EOF:
		return "end of file"
	case Identifier:
		return fmt.Sprintf("identifier %q", t.Text)
	case Int, Float:
		return fmt.Sprintf("%s %s", t.Kind, t.Text)
	case String:
		return fmt.Sprintf("string literal %s", t.Text)
	default:
		return strconv.Quote(t.Text)
	}
}
