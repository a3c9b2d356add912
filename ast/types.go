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

import "fmt"

// Cardinality is the multiplicity marker that starts every field.
type Cardinality int

const (
	Required Cardinality = iota + 1
	Optional
	Repeated
)

var cardinalityNames = map[Cardinality]string{
	Required: "required",
	Optional: "optional",
	Repeated: "repeated",
}

// CardinalityByName maps the source keywords to cardinalities.
var CardinalityByName = map[string]Cardinality{
	"required": Required,
	"optional": Optional,
	"repeated": Repeated,
}

func (c Cardinality) String() string {
	if s, ok := cardinalityNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Cardinality(%d)", int(c))
}

// Label is a field's cardinality keyword.
type Label struct {
	Pos         SourcePos
	Cardinality Cardinality
}

func (l Label) Start() SourcePos { return l.Pos }

// ScalarType enumerates the built-in field types.
type ScalarType int

const (
	Double ScalarType = iota + 1
	Float
	Int32
	Int64
	Uint32
	Uint64
	Sint32
	Sint64
	Fixed32
	Fixed64
	Sfixed32
	Sfixed64
	Bool
	String
	Bytes
)

var scalarNames = [...]string{
	Double:   "double",
	Float:    "float",
	Int32:    "int32",
	Int64:    "int64",
	Uint32:   "uint32",
	Uint64:   "uint64",
	Sint32:   "sint32",
	Sint64:   "sint64",
	Fixed32:  "fixed32",
	Fixed64:  "fixed64",
	Sfixed32: "sfixed32",
	Sfixed64: "sfixed64",
	Bool:     "bool",
	String:   "string",
	Bytes:    "bytes",
}

// ScalarByName maps the source spelling of each built-in type to its kind.
var ScalarByName = func() map[string]ScalarType {
	m := make(map[string]ScalarType, len(scalarNames))
	for i, name := range scalarNames {
		if name != "" {
			m[name] = ScalarType(i)
		}
	}
	return m
}()

func (s ScalarType) String() string {
	if s > 0 && int(s) < len(scalarNames) {
		return scalarNames[s]
	}
	return fmt.Sprintf("ScalarType(%d)", int(s))
}

// IsNumeric reports whether values of s are numbers (this excludes bool,
// string and bytes).
func (s ScalarType) IsNumeric() bool {
	return s >= Double && s <= Sfixed64
}

// IsIntegral reports whether values of s are integers.
func (s ScalarType) IsIntegral() bool {
	return s >= Int32 && s <= Sfixed64
}

// IsSigned reports whether s can hold negative values.
func (s ScalarType) IsSigned() bool {
	switch s {
	case Double, Float, Int32, Int64, Sint32, Sint64, Sfixed32, Sfixed64:
		return true
	default:
		return false
	}
}

// Is32Bit reports whether s is an integer type with a 32-bit range.
func (s ScalarType) Is32Bit() bool {
	switch s {
	case Int32, Uint32, Sint32, Fixed32, Sfixed32:
		return true
	default:
		return false
	}
}

// IsLengthDelimited reports whether s is string or bytes.
func (s ScalarType) IsLengthDelimited() bool {
	return s == String || s == Bytes
}

// TypeRef is the type of a field: either a *PrimitiveType or a *NamedType.
type TypeRef interface {
	Node
	// TypeName is the name as written in source.
	TypeName() string
	isTypeRef()
}

var (
	_ TypeRef = (*PrimitiveType)(nil)
	_ TypeRef = (*NamedType)(nil)
)

// PrimitiveType is a reference to a built-in scalar type.
type PrimitiveType struct {
	Pos    SourcePos
	Scalar ScalarType
}

func (p *PrimitiveType) Start() SourcePos { return p.Pos }
func (p *PrimitiveType) TypeName() string { return p.Scalar.String() }
func (*PrimitiveType) isTypeRef()         {}

// NamedType is a reference to a message or enum by name. It is resolved by
// the checker, not the parser.
type NamedType struct {
	Name Ident
}

func (n *NamedType) Start() SourcePos { return n.Name.Pos }
func (n *NamedType) TypeName() string { return n.Name.Name }
func (*NamedType) isTypeRef()         {}
