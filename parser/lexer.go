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
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bufbuild/protoembed/ast"
)

type runeReader struct {
	data []byte
	pos  int
	err  error
	mark int
}

func (rr *runeReader) readRune() (r rune, size int, err error) {
	if rr.err != nil {
		return 0, 0, rr.err
	}
	if rr.pos == len(rr.data) {
		rr.err = io.EOF
		return 0, 0, rr.err
	}
	r, sz := utf8.DecodeRune(rr.data[rr.pos:])
	if r == utf8.RuneError && sz <= 1 {
		rr.err = fmt.Errorf("invalid UTF8 at offset %d: %x", rr.pos, rr.data[rr.pos])
		return 0, 0, rr.err
	}
	rr.pos += sz
	return r, sz, nil
}

func (rr *runeReader) offset() int {
	return rr.pos
}

func (rr *runeReader) unreadRune(sz int) {
	newPos := rr.pos - sz
	if newPos < rr.mark {
		panic("unread past mark")
	}
	rr.pos = newPos
}

func (rr *runeReader) setMark() {
	rr.mark = rr.pos
}

func (rr *runeReader) getMark() string {
	return string(rr.data[rr.mark:rr.pos])
}

var utf8Bom = []byte{0xEF, 0xBB, 0xBF}

// Scanner turns the contents of a file into Tokens, one at a time. A
// Scanner is used for a single pass over a single file; it stops at the
// first error.
type Scanner struct {
	input *runeReader
	info  *ast.FileInfo
	err   error
}

// NewScanner creates a scanner over the contents of info. A leading UTF-8
// byte order mark is skipped.
func NewScanner(info *ast.FileInfo) *Scanner {
	data := info.Data()
	rr := &runeReader{data: data}
	if bytes.HasPrefix(data, utf8Bom) {
		rr.pos = len(utf8Bom)
	}
	return &Scanner{input: rr, info: info}
}

// Info returns the file being scanned.
func (s *Scanner) Info() *ast.FileInfo {
	return s.info
}

// Tokens returns an iterator over the remaining tokens. Iteration ends after
// the EOF token or after the first error, which is yielded with a zero Token.
func (s *Scanner) Tokens() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		for {
			tok, err := s.Next()
			if !yield(tok, err) || err != nil || tok.Kind == EOF {
				return
			}
		}
	}
}

// Next returns the next token. Once the end of input is reached, Next keeps
// returning EOF tokens. Once an error is returned, Next keeps returning it.
func (s *Scanner) Next() (Token, error) {
	if s.err != nil {
		return Token{}, s.err
	}
	tok, err := s.next()
	if err != nil {
		s.err = err
	}
	return tok, err
}

func (s *Scanner) maybeNewLine(r rune) {
	if r == '\n' {
		s.info.AddLine(s.input.offset())
	}
}

func (s *Scanner) token(kind TokenKind) Token {
	return Token{
		Kind: kind,
		Text: s.input.getMark(),
		Pos:  s.info.SourcePos(s.input.mark),
	}
}

func (s *Scanner) errorAt(offset int, char rune, err error) error {
	return &LexError{Pos: s.info.SourcePos(offset), Char: char, Err: err}
}

func (s *Scanner) next() (Token, error) {
	for {
		s.input.setMark()

		c, _, err := s.input.readRune()
		if errors.Is(err, io.EOF) {
			return s.token(EOF), nil
		} else if err != nil {
			return Token{}, s.errorAt(s.input.offset(), 0, err)
		}

		if strings.ContainsRune("\n\r\t\f\v ", c) {
			// skip whitespace
			s.maybeNewLine(c)
			continue
		}

		if c == '.' {
			// decimal literals could start with a dot
			cn, szn, err := s.input.readRune()
			if err == nil && cn >= '0' && cn <= '9' {
				return s.number(true)
			}
			if err == nil {
				s.input.unreadRune(szn)
			}
			return Token{}, s.errorAt(s.input.mark, c, ErrUnexpectedCharacter)
		}

		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			s.readIdentifier()
			return s.token(Identifier), nil
		}

		if c >= '0' && c <= '9' {
			return s.number(false)
		}

		if c == '\'' || c == '"' {
			str, err := s.readStringLiteral(c)
			if err != nil {
				return Token{}, s.errorAt(s.input.mark, 0, err)
			}
			tok := s.token(String)
			tok.String = str
			return tok, nil
		}

		if c == '/' {
			cn, szn, err := s.input.readRune()
			if err == nil && cn == '/' {
				s.skipToEndOfLineComment()
				continue
			}
			if err == nil && cn == '*' {
				if ok := s.skipToEndOfBlockComment(); !ok {
					return Token{}, s.errorAt(s.input.mark, 0, errors.New("block comment never terminates, unexpected EOF"))
				}
				continue
			}
			if err == nil {
				s.input.unreadRune(szn)
			}
		}

		if kind, ok := punctuation[c]; ok {
			return s.token(kind), nil
		}
		return Token{}, s.errorAt(s.input.mark, c, ErrUnexpectedCharacter)
	}
}

func (s *Scanner) number(leadingDot bool) (Token, error) {
	s.readNumber()
	text := s.input.getMark()
	isHex := strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X")
	if isHex {
		ui, err := strconv.ParseUint(text[2:], 16, 64)
		if err != nil {
			return Token{}, s.errorAt(s.input.mark, 0, numError(err, "hexadecimal integer", text))
		}
		tok := s.token(Int)
		tok.Int = ui
		return tok, nil
	}
	if leadingDot || strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || strings.ContainsRune(text, '_') {
			if err == nil {
				err = strconv.ErrSyntax
			}
			return Token{}, s.errorAt(s.input.mark, 0, numError(err, "float", text))
		}
		tok := s.token(Float)
		tok.Float = f
		return tok, nil
	}
	base := 10
	digits := text
	if len(text) > 1 && text[0] == '0' {
		base = 8
		digits = text[1:]
	}
	ui, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return Token{}, s.errorAt(s.input.mark, 0, numError(err, "integer", text))
	}
	tok := s.token(Int)
	tok.Int = ui
	return tok, nil
}

func (s *Scanner) readNumber() {
	allowExpSign := false
	for {
		c, sz, err := s.input.readRune()
		if err != nil {
			break
		}
		if (c == '-' || c == '+') && !allowExpSign {
			s.input.unreadRune(sz)
			break
		}
		allowExpSign = false
		if c != '.' && c != '_' && (c < '0' || c > '9') &&
			(c < 'a' || c > 'z') && (c < 'A' || c > 'Z') &&
			c != '-' && c != '+' {
			// no more chars in the number token
			s.input.unreadRune(sz)
			break
		}
		if c == 'e' || c == 'E' {
			// scientific notation char can be followed by
			// an exponent sign
			allowExpSign = true
		}
	}
}

func numError(err error, kind, s string) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
		return fmt.Errorf("value out of range for %s: %s", kind, s)
	}
	// syntax error
	return fmt.Errorf("invalid syntax in %s value: %s", kind, s)
}

func (s *Scanner) readIdentifier() {
	for {
		c, sz, err := s.input.readRune()
		if err != nil {
			break
		}
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			s.input.unreadRune(sz)
			break
		}
	}
}

func (s *Scanner) readStringLiteral(quote rune) (string, error) {
	var buf bytes.Buffer
	for {
		c, _, err := s.input.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("unterminated string literal, unexpected EOF")
			}
			return "", err
		}
		if c == '\n' {
			return "", errors.New("encountered end-of-line before end of string literal")
		}
		if c == quote {
			break
		}
		if c == 0 {
			return "", errors.New("null character ('\\0') not allowed in string literal")
		}
		if c != '\\' {
			buf.WriteRune(c)
			continue
		}

		// escape sequence
		c, _, err = s.input.readRune()
		if err != nil {
			return "", errors.New("unterminated string literal, unexpected EOF")
		}
		switch {
		case c == 'x' || c == 'X':
			// hex escape: one or two digits
			var hex []rune
			for len(hex) < 2 {
				h, sz, err := s.input.readRune()
				if err != nil {
					break
				}
				if (h < '0' || h > '9') && (h < 'a' || h > 'f') && (h < 'A' || h > 'F') {
					s.input.unreadRune(sz)
					break
				}
				hex = append(hex, h)
			}
			if len(hex) == 0 {
				return "", errors.New("invalid hex escape: \\x must be followed by a hex digit")
			}
			i, _ := strconv.ParseUint(string(hex), 16, 8)
			buf.WriteByte(byte(i))

		case c >= '0' && c <= '7':
			// octal escape: one to three digits
			octal := []rune{c}
			for len(octal) < 3 {
				o, sz, err := s.input.readRune()
				if err != nil {
					break
				}
				if o < '0' || o > '7' {
					s.input.unreadRune(sz)
					break
				}
				octal = append(octal, o)
			}
			i, _ := strconv.ParseUint(string(octal), 8, 16)
			if i > 0xff {
				return "", fmt.Errorf("octal escape is out range, must be between 0 and 377: \\%s", string(octal))
			}
			buf.WriteByte(byte(i))

		default:
			b, ok := simpleEscapes[c]
			if !ok {
				return "", fmt.Errorf("invalid escape sequence: %q", "\\"+string(c))
			}
			buf.WriteByte(b)
		}
	}
	return buf.String(), nil
}

var simpleEscapes = map[rune]byte{
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
	'?':  '?',
}

func (s *Scanner) skipToEndOfLineComment() {
	for {
		c, _, err := s.input.readRune()
		if err != nil {
			return
		}
		if c == '\n' {
			s.info.AddLine(s.input.offset())
			return
		}
	}
}

func (s *Scanner) skipToEndOfBlockComment() bool {
	for {
		c, _, err := s.input.readRune()
		if err != nil {
			return false
		}
		s.maybeNewLine(c)
		if c == '*' {
			c, sz, err := s.input.readRune()
			if err != nil {
				return false
			}
			if c == '/' {
				return true
			}
			s.input.unreadRune(sz)
		}
	}
}
