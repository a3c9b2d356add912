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

package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bufbuild/protoembed/ast"
)

// scalarInfo describes how a scalar type is stored in C and carried on the
// wire.
type scalarInfo struct {
	// The C type of a struct member.
	ctype string
	// The suffix of the pb_put_, pb_get_ and pb_size_ helpers.
	helper string
	wire   protowire.Type
	// The largest encoded size of a value, not counting its key.
	maxSize int
}

var scalars = map[ast.ScalarType]scalarInfo{
	ast.Double:   {"double", "double", protowire.Fixed64Type, 8},
	ast.Float:    {"float", "float", protowire.Fixed32Type, 4},
	ast.Int32:    {"int32_t", "int32", protowire.VarintType, protowire.SizeVarint(math.MaxUint64)},
	ast.Int64:    {"int64_t", "int64", protowire.VarintType, protowire.SizeVarint(math.MaxUint64)},
	ast.Uint32:   {"uint32_t", "uint32", protowire.VarintType, protowire.SizeVarint(math.MaxUint32)},
	ast.Uint64:   {"uint64_t", "uint64", protowire.VarintType, protowire.SizeVarint(math.MaxUint64)},
	ast.Sint32:   {"int32_t", "sint32", protowire.VarintType, protowire.SizeVarint(math.MaxUint32)},
	ast.Sint64:   {"int64_t", "sint64", protowire.VarintType, protowire.SizeVarint(math.MaxUint64)},
	ast.Fixed32:  {"uint32_t", "fixed32", protowire.Fixed32Type, 4},
	ast.Fixed64:  {"uint64_t", "fixed64", protowire.Fixed64Type, 8},
	ast.Sfixed32: {"int32_t", "sfixed32", protowire.Fixed32Type, 4},
	ast.Sfixed64: {"int64_t", "sfixed64", protowire.Fixed64Type, 8},
	ast.Bool:     {"bool", "bool", protowire.VarintType, 1},
	ast.String:   {"char", "", protowire.BytesType, 0},
	ast.Bytes:    {"uint8_t", "", protowire.BytesType, 0},
}

// CType returns the C type used to store a single value of s. For string
// and bytes, it is the element type of the inline array.
func CType(s ast.ScalarType) string {
	return scalars[s].ctype
}

// WireType returns the protobuf wire type used to encode s.
func WireType(s ast.ScalarType) protowire.Type {
	return scalars[s].wire
}

// cIdent turns a file name into something usable in a C identifier, such as
// an include guard.
func cIdent(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteString("PB_")
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// cIntLiteral renders an integer default of the given type as a C constant
// expression.
func cIntLiteral(s ast.ScalarType, lit *ast.IntLiteral) string {
	if !s.IsSigned() {
		if s.Is32Bit() {
			return "UINT32_C(" + strconv.FormatUint(lit.Value, 10) + ")"
		}
		return "UINT64_C(" + strconv.FormatUint(lit.Value, 10) + ")"
	}
	v, _ := lit.Int64()
	if s.Is32Bit() {
		if v == math.MinInt32 {
			return "INT32_MIN"
		}
		return "INT32_C(" + strconv.FormatInt(v, 10) + ")"
	}
	if v == math.MinInt64 {
		return "INT64_MIN"
	}
	return "INT64_C(" + strconv.FormatInt(v, 10) + ")"
}

// cFloatLiteral renders a floating point default as a C constant
// expression.
func cFloatLiteral(s ast.ScalarType, f float64) string {
	var text string
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INFINITY"
	case math.IsInf(f, -1):
		return "-INFINITY"
	case s == ast.Float:
		text = strconv.FormatFloat(f, 'g', -1, 32)
	default:
		text = strconv.FormatFloat(f, 'g', -1, 64)
	}
	if !strings.ContainsAny(text, ".e") {
		text += ".0"
	}
	if s == ast.Float {
		text += "f"
	}
	return text
}

// cStringLiteral quotes b as a C string literal. Anything outside of
// printable ASCII is written as a three digit octal escape, which cannot run
// into the characters after it.
func cStringLiteral(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range b {
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '?':
			// Avoid trigraphs.
			sb.WriteString(`\?`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\%03o", c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
