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

// Node is implemented by every element of the tree.
type Node interface {
	// Start returns the position of the node's first token.
	Start() SourcePos
}

// Ident is an identifier along with where it appeared.
type Ident struct {
	Pos  SourcePos
	Name string
}

func (i Ident) Start() SourcePos { return i.Pos }

func (i Ident) String() string { return i.Name }

// File is the root of the tree for a single proto source file.
//
// # Grammar
//
//	ProtoFile := (MessageDecl | EnumDecl)*
type File struct {
	// Info is the scanned file, used to compute positions and to show
	// source snippets in diagnostics.
	Info *FileInfo
	// Decls are the file's type declarations, in source order.
	Decls []Decl
}

func (f *File) Start() SourcePos {
	if f.Info == nil {
		return SourcePos{}
	}
	return f.Info.SourcePos(0)
}

// Name returns the name of the source file.
func (f *File) Name() string {
	if f == nil || f.Info == nil {
		return ""
	}
	return f.Info.Name()
}

// Messages returns the message declarations of f, in source order.
func (f *File) Messages() []*MessageDecl {
	var msgs []*MessageDecl
	for _, d := range f.Decls {
		if m, ok := d.(*MessageDecl); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Enums returns the enum declarations of f, in source order.
func (f *File) Enums() []*EnumDecl {
	var enums []*EnumDecl
	for _, d := range f.Decls {
		if e, ok := d.(*EnumDecl); ok {
			enums = append(enums, e)
		}
	}
	return enums
}

// Decl is a top-level type declaration: either a *MessageDecl or an
// *EnumDecl.
type Decl interface {
	Node
	// DeclName is the name the declaration introduces.
	DeclName() Ident
	isDecl()
}

var (
	_ Decl = (*MessageDecl)(nil)
	_ Decl = (*EnumDecl)(nil)
)

// MessageDecl is a message type.
//
// # Grammar
//
//	MessageDecl := 'message' Identifier '{' FieldDecl* '}'
type MessageDecl struct {
	Keyword SourcePos
	Name    Ident
	Fields  []*FieldDecl
}

func (m *MessageDecl) Start() SourcePos { return m.Keyword }
func (m *MessageDecl) DeclName() Ident  { return m.Name }
func (*MessageDecl) isDecl()            {}

// FieldDecl is a single field of a message.
//
// # Grammar
//
//	FieldDecl := Cardinality Type Identifier '=' IntegerLiteral FieldOptions? ';'
type FieldDecl struct {
	Label   Label
	Type    TypeRef
	Name    Ident
	Tag     IntLiteral
	Options []*Option
}

func (f *FieldDecl) Start() SourcePos { return f.Label.Pos }

// Option returns the option with the given name, or nil.
func (f *FieldDecl) Option(name string) *Option {
	for _, opt := range f.Options {
		if opt.Name.Name == name {
			return opt
		}
	}
	return nil
}

// Default returns the value of the field's default option, or nil if the
// field has none.
func (f *FieldDecl) Default() Literal {
	if opt := f.Option("default"); opt != nil {
		return opt.Value
	}
	return nil
}

// Option is a bracketed field option, such as [default = 5].
type Option struct {
	Name  Ident
	Value Literal
}

func (o *Option) Start() SourcePos { return o.Name.Pos }

// EnumDecl is an enum type.
//
// # Grammar
//
//	EnumDecl := 'enum' Identifier '{' EnumValueDecl* '}'
type EnumDecl struct {
	Keyword SourcePos
	Name    Ident
	Values  []*EnumValueDecl
}

func (e *EnumDecl) Start() SourcePos { return e.Keyword }
func (e *EnumDecl) DeclName() Ident  { return e.Name }
func (*EnumDecl) isDecl()            {}

// Value returns the member with the given name, or nil.
func (e *EnumDecl) Value(name string) *EnumValueDecl {
	for _, v := range e.Values {
		if v.Name.Name == name {
			return v
		}
	}
	return nil
}

// EnumValueDecl is a single member of an enum.
//
// # Grammar
//
//	EnumValueDecl := Identifier '=' IntegerLiteral ';'
type EnumValueDecl struct {
	Name   Ident
	Number IntLiteral
}

func (v *EnumValueDecl) Start() SourcePos { return v.Name.Pos }
