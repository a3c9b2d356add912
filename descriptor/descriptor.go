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

// Package descriptor converts checked files into protobuf descriptors, so
// that schemas compiled for embedded targets can be shared with tools that
// speak the standard protobuf descriptor format.
//
// Options that only affect the C representation, such as max_count and
// max_size, have no descriptor equivalent and are dropped.
package descriptor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/protoembed/ast"
	"github.com/bufbuild/protoembed/checker"
)

var scalarTypes = map[ast.ScalarType]descriptorpb.FieldDescriptorProto_Type{
	ast.Double:   descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	ast.Float:    descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
	ast.Int32:    descriptorpb.FieldDescriptorProto_TYPE_INT32,
	ast.Int64:    descriptorpb.FieldDescriptorProto_TYPE_INT64,
	ast.Uint32:   descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	ast.Uint64:   descriptorpb.FieldDescriptorProto_TYPE_UINT64,
	ast.Sint32:   descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	ast.Sint64:   descriptorpb.FieldDescriptorProto_TYPE_SINT64,
	ast.Fixed32:  descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
	ast.Fixed64:  descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
	ast.Sfixed32: descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
	ast.Sfixed64: descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
	ast.Bool:     descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	ast.String:   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	ast.Bytes:    descriptorpb.FieldDescriptorProto_TYPE_BYTES,
}

var labels = map[ast.Cardinality]descriptorpb.FieldDescriptorProto_Label{
	ast.Required: descriptorpb.FieldDescriptorProto_LABEL_REQUIRED,
	ast.Optional: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL,
	ast.Repeated: descriptorpb.FieldDescriptorProto_LABEL_REPEATED,
}

// FromAST returns the descriptor for a checked file. Types appear in
// declaration order. The file uses proto2 syntax, which descriptors encode
// by leaving the syntax field unset.
//
// It is an error to call FromAST with a result that has violations.
func FromAST(res *checker.Result) (*descriptorpb.FileDescriptorProto, error) {
	if res.Violations > 0 {
		return nil, fmt.Errorf("%s: cannot build descriptor: %d constraint violation(s)", res.File.Name(), res.Violations)
	}
	fd := &descriptorpb.FileDescriptorProto{
		Name: proto.String(res.File.Name()),
	}
	for _, decl := range res.File.Decls {
		switch decl := decl.(type) {
		case *ast.MessageDecl:
			md, err := message(res, decl)
			if err != nil {
				return nil, err
			}
			fd.MessageType = append(fd.MessageType, md)
		case *ast.EnumDecl:
			fd.EnumType = append(fd.EnumType, enum(decl))
		}
	}
	return fd, nil
}

// NewFile builds a descriptor and links it into a protoreflect.FileDescriptor,
// which also validates it the way protoc would.
func NewFile(res *checker.Result) (protoreflect.FileDescriptor, error) {
	fd, err := FromAST(res)
	if err != nil {
		return nil, err
	}
	return protodesc.NewFile(fd, new(protoregistry.Files))
}

// Set wraps the given files in a FileDescriptorSet.
func Set(files ...*descriptorpb.FileDescriptorProto) *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{File: files}
}

// Text renders a descriptor in the protobuf text format, for debugging.
func Text(m proto.Message) string {
	return prototext.MarshalOptions{Multiline: true, Indent: "  "}.Format(m)
}

func enum(decl *ast.EnumDecl) *descriptorpb.EnumDescriptorProto {
	ed := &descriptorpb.EnumDescriptorProto{
		Name: proto.String(decl.Name.Name),
	}
	seen := make(map[uint64]struct{}, len(decl.Values))
	for _, v := range decl.Values {
		if _, ok := seen[v.Number.Value]; ok && ed.Options == nil {
			ed.Options = &descriptorpb.EnumOptions{AllowAlias: proto.Bool(true)}
		}
		seen[v.Number.Value] = struct{}{}
		ed.Value = append(ed.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name.Name),
			Number: proto.Int32(int32(v.Number.Value)), //nolint:gosec // values fit in 32 bits
		})
	}
	return ed
}

func message(res *checker.Result, decl *ast.MessageDecl) (*descriptorpb.DescriptorProto, error) {
	md := &descriptorpb.DescriptorProto{
		Name: proto.String(decl.Name.Name),
	}
	for _, fld := range decl.Fields {
		scope := fmt.Sprintf("field %s.%s", decl.Name.Name, fld.Name.Name)
		fdp := &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(fld.Name.Name),
			Number:   proto.Int32(int32(fld.Tag.Value)), //nolint:gosec // tags are range checked
			Label:    labels[fld.Label.Cardinality].Enum(),
			JsonName: proto.String(jsonName(fld.Name.Name)),
		}
		switch t := fld.Type.(type) {
		case *ast.PrimitiveType:
			fdp.Type = scalarTypes[t.Scalar].Enum()
		case *ast.NamedType:
			fdp.TypeName = proto.String("." + t.Name.Name)
			switch res.Resolve(t).(type) {
			case *ast.EnumDecl:
				fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
			case *ast.MessageDecl:
				fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			default:
				return nil, fmt.Errorf("%s: %s: unresolved type %s", fld.Type.Start(), scope, t.Name.Name)
			}
		}
		if lit := fld.Default(); lit != nil {
			def, err := defaultValue(fdp.GetType(), lit)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", lit.Start(), scope, err)
			}
			fdp.DefaultValue = proto.String(def)
		}
		md.Field = append(md.Field, fdp)
	}
	return md, nil
}

// defaultValue renders a default the way descriptors store it: strings
// verbatim, bytes C-escaped, enums by member name, and numbers in decimal
// with inf, -inf and nan spelled out.
func defaultValue(typ descriptorpb.FieldDescriptorProto_Type, lit ast.Literal) (string, error) {
	switch typ {
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if s, ok := lit.(*ast.StringLiteral); ok {
			return s.Value, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		if s, ok := lit.(*ast.StringLiteral); ok {
			return escapeBytes([]byte(s.Value)), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM, descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		if id, ok := lit.(*ast.IdentLiteral); ok {
			return id.Name, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		var f float64
		switch lit := lit.(type) {
		case *ast.IntLiteral:
			f = lit.Float()
		case *ast.FloatLiteral:
			f = lit.Value
		case *ast.IdentLiteral:
			switch lit.Name {
			case "inf":
				f = math.Inf(1)
			case "nan":
				f = math.NaN()
			default:
				return "", fmt.Errorf("invalid default value %s", lit.Name)
			}
		default:
			return "", fmt.Errorf("invalid default value %s", lit)
		}
		bits := 64
		if typ == descriptorpb.FieldDescriptorProto_TYPE_FLOAT {
			bits = 32
		}
		switch {
		case math.IsInf(f, 1):
			return "inf", nil
		case math.IsInf(f, -1):
			return "-inf", nil
		case math.IsNaN(f):
			return "nan", nil
		default:
			return strconv.FormatFloat(f, 'g', -1, bits), nil
		}
	default:
		if i, ok := lit.(*ast.IntLiteral); ok {
			return i.String(), nil
		}
	}
	return "", fmt.Errorf("invalid default value %s", lit)
}

// escapeBytes uses the same escapes as protoc: the usual C escapes for
// control characters and quotes, and three-digit octal for anything else
// that is not printable ASCII.
func escapeBytes(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch c {
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '"':
			sb.WriteString(`\"`)
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&sb, "\\%03o", c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// jsonName is the lowerCamelCase name protoc assigns a field.
func jsonName(name string) string {
	var sb strings.Builder
	upper := false
	for i := range len(name) {
		c := name[i]
		switch {
		case c == '_':
			upper = true
		case upper && c >= 'a' && c <= 'z':
			sb.WriteByte(c - 'a' + 'A')
			upper = false
		default:
			sb.WriteByte(c)
			upper = false
		}
	}
	return sb.String()
}
