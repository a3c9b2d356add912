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
	"io"
	"math"

	"github.com/bufbuild/protoembed/ast"
)

// Parse reads the source of a proto file and builds its AST. Parsing stops
// at the first lexical or syntax error, which is returned as a *LexError or a
// *SyntaxError; no partial tree is ever returned.
func Parse(filename string, r io.Reader) (*ast.File, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(filename, contents)
}

// ParseBytes is like Parse, but takes the file contents directly.
func ParseBytes(filename string, contents []byte) (*ast.File, error) {
	info := ast.NewFileInfo(filename, contents)
	p := parser{sc: NewScanner(info)}
	file, err := p.parseFile()
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ParseString is like Parse, but takes the file contents as a string.
func ParseString(filename, contents string) (*ast.File, error) {
	return ParseBytes(filename, []byte(contents))
}

// parser is a recursive-descent parser with a single token of lookahead.
type parser struct {
	sc  *Scanner
	tok Token
}

func (p *parser) advance() error {
	tok, err := p.sc.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(expected ...string) error {
	return &SyntaxError{Pos: p.tok.Pos, Expected: expected, Found: p.tok}
}

// expect consumes a token of the given kind.
func (p *parser) expect(kind TokenKind) (Token, error) {
	if p.tok.Kind != kind {
		return Token{}, p.errorf(kind.String())
	}
	tok := p.tok
	return tok, p.advance()
}

func (p *parser) ident() (ast.Ident, error) {
	tok, err := p.expect(Identifier)
	if err != nil {
		return ast.Ident{}, err
	}
	return ast.Ident{Pos: tok.Pos, Name: tok.Text}, nil
}

func (p *parser) intLiteral() (ast.IntLiteral, error) {
	if p.tok.Kind == Int && p.tok.Int > math.MaxUint32 {
		return ast.IntLiteral{}, &SyntaxError{
			Pos:    p.tok.Pos,
			Found:  p.tok,
			Detail: fmt.Sprintf("integer %s does not fit in 32 bits", p.tok.Text),
		}
	}
	tok, err := p.expect(Int)
	if err != nil {
		return ast.IntLiteral{}, err
	}
	return ast.IntLiteral{Pos: tok.Pos, Value: tok.Int}, nil
}

func (p *parser) parseFile() (*ast.File, error) {
	file := &ast.File{Info: p.sc.Info()}
	if err := p.advance(); err != nil {
		return nil, err
	}
	for p.tok.Kind != EOF {
		var (
			decl ast.Decl
			err  error
		)
		switch {
		case p.tok.Is("message"):
			decl, err = p.parseMessage()
		case p.tok.Is("enum"):
			decl, err = p.parseEnum()
		default:
			err = p.errorf(`"message"`, `"enum"`, EOF.String())
		}
		if err != nil {
			return nil, err
		}
		file.Decls = append(file.Decls, decl)
	}
	return file, nil
}

func (p *parser) parseMessage() (*ast.MessageDecl, error) {
	msg := &ast.MessageDecl{Keyword: p.tok.Pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if msg.Name, err = p.ident(); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBrace); err != nil {
		return nil, err
	}
	for p.tok.Kind != RBrace {
		if p.tok.Kind != Identifier || ast.CardinalityByName[p.tok.Text] == 0 {
			return nil, p.errorf(`"required"`, `"optional"`, `"repeated"`, RBrace.String())
		}
		fld, err := p.parseField()
		if err != nil {
			return nil, err
		}
		msg.Fields = append(msg.Fields, fld)
	}
	return msg, p.advance()
}

func (p *parser) parseField() (*ast.FieldDecl, error) {
	fld := &ast.FieldDecl{
		Label: ast.Label{Pos: p.tok.Pos, Cardinality: ast.CardinalityByName[p.tok.Text]},
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	typeName, err := p.ident()
	if err != nil {
		return nil, err
	}
	if scalar, ok := ast.ScalarByName[typeName.Name]; ok {
		fld.Type = &ast.PrimitiveType{Pos: typeName.Pos, Scalar: scalar}
	} else {
		fld.Type = &ast.NamedType{Name: typeName}
	}

	if fld.Name, err = p.ident(); err != nil {
		return nil, err
	}
	if _, err := p.expect(Equals); err != nil {
		return nil, err
	}
	if fld.Tag, err = p.intLiteral(); err != nil {
		return nil, err
	}

	if p.tok.Kind == LBracket {
		if fld.Options, err = p.parseOptions(); err != nil {
			return nil, err
		}
	}

	if p.tok.Kind != Semicolon {
		if fld.Options == nil {
			return nil, p.errorf(LBracket.String(), Semicolon.String())
		}
		return nil, p.errorf(Semicolon.String())
	}
	return fld, p.advance()
}

func (p *parser) parseOptions() ([]*ast.Option, error) {
	if err := p.advance(); err != nil { // [
		return nil, err
	}
	var opts []*ast.Option
	for {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(Equals); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		opts = append(opts, &ast.Option{Name: name, Value: val})

		switch p.tok.Kind {
		case Comma:
			if err := p.advance(); err != nil {
				return nil, err
			}
		case RBracket:
			return opts, p.advance()
		default:
			return nil, p.errorf(Comma.String(), RBracket.String())
		}
	}
}

func (p *parser) parseLiteral() (ast.Literal, error) {
	start := p.tok
	negative := false
	if p.tok.Kind == Minus {
		negative = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	tok := p.tok
	var lit ast.Literal
	switch {
	case tok.Kind == Int:
		lit = &ast.IntLiteral{Pos: start.Pos, Value: tok.Int, Negative: negative}
	case tok.Kind == Float:
		f := tok.Float
		if negative {
			f = -f
		}
		lit = &ast.FloatLiteral{Pos: start.Pos, Value: f}
	case negative && (tok.Is("inf") || tok.Is("nan")):
		lit = &ast.FloatLiteral{Pos: start.Pos, Value: math.Copysign(specialFloat(tok.Text), -1)}
	case negative:
		return nil, p.errorf(Int.String(), Float.String())
	case tok.Kind == String:
		lit = &ast.StringLiteral{Pos: tok.Pos, Value: tok.String}
	case tok.Kind == Identifier:
		lit = &ast.IdentLiteral{Ident: ast.Ident{Pos: tok.Pos, Name: tok.Text}}
	default:
		return nil, p.errorf(Int.String(), Float.String(), String.String(), Identifier.String())
	}
	return lit, p.advance()
}

func specialFloat(word string) float64 {
	if word == "nan" {
		return math.NaN()
	}
	return math.Inf(1)
}

func (p *parser) parseEnum() (*ast.EnumDecl, error) {
	enum := &ast.EnumDecl{Keyword: p.tok.Pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if enum.Name, err = p.ident(); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBrace); err != nil {
		return nil, err
	}
	for p.tok.Kind != RBrace {
		if p.tok.Kind != Identifier {
			return nil, p.errorf(Identifier.String(), RBrace.String())
		}
		val := &ast.EnumValueDecl{}
		if val.Name, err = p.ident(); err != nil {
			return nil, err
		}
		if _, err := p.expect(Equals); err != nil {
			return nil, err
		}
		if val.Number, err = p.intLiteral(); err != nil {
			return nil, err
		}
		if _, err := p.expect(Semicolon); err != nil {
			return nil, err
		}
		enum.Values = append(enum.Values, val)
	}
	return enum, p.advance()
}

// Tokenize scans all of contents and returns its tokens, ending with EOF.
// It is mostly useful for debugging and tests.
func Tokenize(filename string, contents []byte) ([]Token, error) {
	var toks []Token
	for tok, err := range NewScanner(ast.NewFileInfo(filename, contents)).Tokens() {
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
	return toks, nil
}
