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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/protoembed/ast"
)

func TestLexer(t *testing.T) {
	t.Parallel()
	toks, err := Tokenize("test.proto", []byte(`
	// comment

	/*
	 * block comment
	 */ /* inline comment */

	message Foo_1 {
		"\032\x16\n\rfoo\"bar"   'another\tstring\'s'
	}

	12345 012 0x2134abcdef30 0
	.01 .01e12 1.5e+5 0.033e-1 101.
	[ ] = ; , -
	inf nan
`))
	require.NoError(t, err)

	type tok struct {
		kind TokenKind
		text string
	}
	var got []tok
	for _, tk := range toks {
		got = append(got, tok{tk.Kind, tk.Text})
	}
	assert.Equal(t, []tok{
		{Identifier, "message"},
		{Identifier, "Foo_1"},
		{LBrace, "{"},
		{String, `"\032\x16\n\rfoo\"bar"`},
		{String, `'another\tstring\'s'`},
		{RBrace, "}"},
		{Int, "12345"},
		{Int, "012"},
		{Int, "0x2134abcdef30"},
		{Int, "0"},
		{Float, ".01"},
		{Float, ".01e12"},
		{Float, "1.5e+5"},
		{Float, "0.033e-1"},
		{Float, "101."},
		{LBracket, "["},
		{RBracket, "]"},
		{Equals, "="},
		{Semicolon, ";"},
		{Comma, ","},
		{Minus, "-"},
		{Identifier, "inf"},
		{Identifier, "nan"},
		{EOF, ""},
	}, got)

	assert.Equal(t, "\032\x16\n\rfoo\"bar", toks[3].String)
	assert.Equal(t, "another\tstring's", toks[4].String)
	assert.Equal(t, uint64(12345), toks[6].Int)
	assert.Equal(t, uint64(10), toks[7].Int)
	assert.Equal(t, uint64(0x2134abcdef30), toks[8].Int)
	assert.Equal(t, uint64(0), toks[9].Int)
	assert.InDelta(t, 0.01, toks[10].Float, 1e-12)
	assert.InDelta(t, 0.01e12, toks[11].Float, 1e-3)
	assert.InDelta(t, 150000.0, toks[12].Float, 1e-9)
	assert.InDelta(t, 0.0033, toks[13].Float, 1e-12)
	assert.InDelta(t, 101.0, toks[14].Float, 1e-12)
}

func TestLexerPositions(t *testing.T) {
	t.Parallel()
	toks, err := Tokenize("test.proto", []byte("message A {\n\trequired int32 éx"))
	require.Error(t, err)
	assert.Nil(t, toks)

	toks, err = Tokenize("test.proto", []byte("message A {\n\trequired int32 x = 1;\r\n}"))
	require.NoError(t, err)
	positions := make([]string, len(toks))
	for i, tk := range toks {
		positions[i] = tk.Pos.String()
	}
	assert.Equal(t, []string{
		"test.proto:1:1",  // message
		"test.proto:1:9",  // A
		"test.proto:1:11", // {
		"test.proto:2:9",  // required (tab stops at 8)
		"test.proto:2:18", // int32
		"test.proto:2:24", // x
		"test.proto:2:26", // =
		"test.proto:2:28", // 1
		"test.proto:2:29", // ;
		"test.proto:3:1",  // }
		"test.proto:3:2",  // EOF
	}, positions)
	assert.Equal(t, 13, toks[3].Pos.Offset)
}

func TestLexerByteOrderMark(t *testing.T) {
	t.Parallel()
	toks, err := Tokenize("test.proto", []byte("\xEF\xBB\xBFenum"))
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.True(t, toks[0].Is("enum"))
	assert.Equal(t, 3, toks[0].Pos.Offset)
}

func TestLexerErrors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		str    string
		errMsg string
	}{
		{str: `0xffffffffffffffffffff`, errMsg: "test.proto:1:1: value out of range for hexadecimal integer: 0xffffffffffffffffffff"},
		{str: `"foobar`, errMsg: "test.proto:1:1: unterminated string literal, unexpected EOF"},
		{str: `"foobar\J"`, errMsg: `test.proto:1:1: invalid escape sequence: "\\J"`},
		{str: `"foobar\xgfoo"`, errMsg: "test.proto:1:1: invalid hex escape: \\x must be followed by a hex digit"},
		{str: `"\400"`, errMsg: "test.proto:1:1: octal escape is out range, must be between 0 and 377: \\400"},
		{str: "'foobar\nbaz'", errMsg: "test.proto:1:1: encountered end-of-line before end of string literal"},
		{str: "'foobar\000baz'", errMsg: "test.proto:1:1: null character ('\\0') not allowed in string literal"},
		{str: `1.543g12`, errMsg: "test.proto:1:1: invalid syntax in float value: 1.543g12"},
		{str: `0.1234.5678`, errMsg: "test.proto:1:1: invalid syntax in float value: 0.1234.5678"},
		{str: `0x987.345aaf`, errMsg: "test.proto:1:1: invalid syntax in hexadecimal integer value: 0x987.345aaf"},
		{str: `09`, errMsg: "test.proto:1:1: invalid syntax in integer value: 09"},
		{str: `12abc`, errMsg: "test.proto:1:1: invalid syntax in integer value: 12abc"},
		{str: `/* foobar`, errMsg: "test.proto:1:1: block comment never terminates, unexpected EOF"},
		{str: "message\n  @", errMsg: "test.proto:2:3: unexpected character '@'"},
		{str: "a . b", errMsg: "test.proto:1:3: unexpected character '.'"},
		{str: "a / b", errMsg: "test.proto:1:3: unexpected character '/'"},
	}
	for _, tc := range testCases {
		t.Run(tc.str, func(t *testing.T) {
			t.Parallel()
			_, err := Tokenize("test.proto", []byte(tc.str))
			require.Error(t, err)
			assert.EqualError(t, err, tc.errMsg)
			var lexErr *LexError
			require.ErrorAs(t, err, &lexErr)
			assert.Equal(t, "test.proto", lexErr.GetPosition().Filename)
		})
	}
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	t.Parallel()
	_, err := Tokenize("test.proto", []byte("message $"))
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
	assert.True(t, errors.Is(err, ErrUnexpectedCharacter))
	assert.Equal(t, '$', lexErr.Char)
	assert.Equal(t, ast.SourcePos{Filename: "test.proto", Line: 1, Col: 9, Offset: 8}, lexErr.Pos)
}

func TestScannerIsSticky(t *testing.T) {
	t.Parallel()
	sc := NewScanner(ast.NewFileInfo("test.proto", []byte("a # b")))
	tok, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", tok.Text)
	_, err1 := sc.Next()
	require.Error(t, err1)
	_, err2 := sc.Next()
	assert.Same(t, err1, err2)

	var count int
	for _, err := range NewScanner(ast.NewFileInfo("test.proto", []byte("a b c"))).Tokens() {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 4, count)
}
