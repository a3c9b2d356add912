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

// Package codegen renders a checked file into a C header and source file.
//
// Rendering is driven by two template groups (see [Group]): one for the
// header and one for the source. The generator walks the declarations in
// topological order, picks a fragment for each node by its kind, binds the
// fragment's variables and joins the rendered children into their parent.
// Nothing is written to disk here; both documents are returned in memory.
package codegen

import (
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bufbuild/protoembed/ast"
	"github.com/bufbuild/protoembed/checker"
)

// Capacities used for fields without a max_count or max_size option, unless
// overridden in Options.
const (
	DefaultMaxRepeatedLen = 32
	DefaultMaxStringLen   = 32
)

// Options control the shape of the generated code.
type Options struct {
	// MaxRepeatedLen is the capacity of repeated fields that have no
	// max_count option. Zero means DefaultMaxRepeatedLen.
	MaxRepeatedLen int
	// MaxStringLen is the capacity in bytes of string and bytes fields that
	// have no max_size option. Zero means DefaultMaxStringLen.
	MaxStringLen int
}

func (o Options) maxRepeated() int {
	if o.MaxRepeatedLen == 0 {
		return DefaultMaxRepeatedLen
	}
	return o.MaxRepeatedLen
}

func (o Options) maxString() int {
	if o.MaxStringLen == 0 {
		return DefaultMaxStringLen
	}
	return o.MaxStringLen
}

func (o Options) validate() error {
	if o.MaxRepeatedLen < 0 || o.MaxRepeatedLen > math.MaxUint16 {
		return fmt.Errorf("invalid max repeated length %d: must be between 1 and %d", o.MaxRepeatedLen, math.MaxUint16)
	}
	if o.MaxStringLen < 0 || o.MaxStringLen > math.MaxUint16 {
		return fmt.Errorf("invalid max string length %d: must be between 1 and %d", o.MaxStringLen, math.MaxUint16)
	}
	return nil
}

// Artifact is a generated file.
type Artifact struct {
	// Path is the file name, relative to the output directory.
	Path string
	Text string
}

// Output is the result of generating code for one file.
type Output struct {
	Header Artifact
	Source Artifact
}

// Generator renders C code from checked files. A Generator holds no state
// between calls to Generate, so it may be used concurrently.
type Generator struct {
	Header  *Group
	Source  *Group
	Options Options
}

// New returns a Generator that uses the built-in template groups.
func New(opts Options) (*Generator, error) {
	header, err := DefaultGroup(HeaderGroup)
	if err != nil {
		return nil, err
	}
	source, err := DefaultGroup(SourceGroup)
	if err != nil {
		return nil, err
	}
	return &Generator{Header: header, Source: source, Options: opts}, nil
}

// Generate renders the header and source for file, declaring types in the
// given order, which must list each declaration after the ones it depends
// on (as computed by [checker.Check]). The artifacts are named after
// baseName. Template problems are returned as a *GenerationError.
func (g *Generator) Generate(file *ast.File, order []ast.Decl, baseName string) (*Output, error) {
	if err := g.Options.validate(); err != nil {
		return nil, err
	}
	gen := &generation{
		Generator: g,
		types:     make(map[string]ast.Decl, len(file.Decls)),
		maxSizes:  make(map[string]uint64, len(order)),
	}
	for _, decl := range file.Decls {
		if _, ok := gen.types[decl.DeclName().Name]; !ok {
			gen.types[decl.DeclName().Name] = decl
		}
	}

	headerName := path.Base(baseName) + ".h"
	var types, messages strings.Builder
	for _, decl := range order {
		switch decl := decl.(type) {
		case *ast.EnumDecl:
			if err := gen.enum(&types, decl); err != nil {
				return nil, err
			}
		case *ast.MessageDecl:
			fields, err := gen.fields(decl)
			if err != nil {
				return nil, err
			}
			if err := gen.messageHeader(&types, decl, fields); err != nil {
				return nil, err
			}
			if err := gen.messageSource(&messages, decl, fields); err != nil {
				return nil, err
			}
		}
	}

	header, err := g.Header.Render("file", map[string]string{
		"source":       file.Name(),
		"guard":        cIdent(path.Base(baseName)) + "_H",
		"max_string":   strconv.Itoa(g.Options.maxString()),
		"max_repeated": strconv.Itoa(g.Options.maxRepeated()),
		"types":        types.String(),
	})
	if err != nil {
		return nil, err
	}
	source, err := g.Source.Render("file", map[string]string{
		"source":   file.Name(),
		"header":   headerName,
		"messages": messages.String(),
	})
	if err != nil {
		return nil, err
	}
	return &Output{
		Header: Artifact{Path: baseName + ".h", Text: header},
		Source: Artifact{Path: baseName + ".c", Text: source},
	}, nil
}

// generation is the state of a single call to Generate.
type generation struct {
	*Generator
	types map[string]ast.Decl
	// The largest encoded size of each message rendered so far.
	maxSizes map[string]uint64
}

func (gen *generation) enum(sb *strings.Builder, enum *ast.EnumDecl) error {
	var values strings.Builder
	for _, val := range enum.Values {
		err := gen.Header.RenderTo(&values, "enum_value", map[string]string{
			"enum":   enum.Name.Name,
			"name":   val.Name.Name,
			"number": strconv.FormatUint(val.Number.Value, 10),
		})
		if err != nil {
			return err
		}
	}
	return gen.Header.RenderTo(sb, "enum", map[string]string{
		"name":   enum.Name.Name,
		"values": values.String(),
	})
}

// category is how a field is stored and encoded.
type category string

const (
	scalarField  category = "scalar"
	blobField    category = "blob"
	messageField category = "message"
)

// field is a field along with everything the templates need to know
// about it.
type field struct {
	decl     *ast.FieldDecl
	category category
	// Template variables.
	vars map[string]string
	// Capacity macros, in the order they are declared.
	capacities [][2]string
	// The default value to set in _clear, if any.
	defaultValue string
	defaultLen   int
	maxSize      uint64
}

func (f *field) card() string {
	return f.decl.Label.Cardinality.String()
}

func (gen *generation) fields(msg *ast.MessageDecl) ([]*field, error) {
	fields := make([]*field, 0, len(msg.Fields))
	for _, fld := range msg.Fields {
		f, err := gen.field(msg, fld)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (gen *generation) field(msg *ast.MessageDecl, fld *ast.FieldDecl) (*field, error) {
	f := &field{decl: fld}
	num := protowire.Number(fld.Tag.Value) //nolint:gosec // tags are checked to fit
	var (
		wire    protowire.Type
		ctype   string
		elemMax uint64
	)
	switch typ := fld.Type.(type) {
	case *ast.PrimitiveType:
		info := scalars[typ.Scalar]
		wire, ctype = info.wire, info.ctype
		if typ.Scalar.IsLengthDelimited() {
			f.category = blobField
		} else {
			f.category = scalarField
			elemMax = uint64(info.maxSize)
		}
	case *ast.NamedType:
		switch decl := gen.types[typ.Name.Name].(type) {
		case *ast.EnumDecl:
			f.category = scalarField
			wire = protowire.VarintType
			var maxValue uint64
			for _, val := range decl.Values {
				maxValue = max(maxValue, val.Number.Value)
			}
			elemMax = uint64(protowire.SizeVarint(maxValue))
		case *ast.MessageDecl:
			f.category = messageField
			wire = protowire.BytesType
			sub, ok := gen.maxSizes[decl.Name.Name]
			if !ok {
				return nil, fmt.Errorf("message %s: type %s is used before it is generated", msg.Name.Name, decl.Name.Name)
			}
			elemMax = addSat(uint64(protowire.SizeVarint(sub)), sub)
		default:
			return nil, fmt.Errorf("field %s.%s: unresolved type %q", msg.Name.Name, fld.Name.Name, typ.Name.Name)
		}
		ctype = typ.Name.Name
	}

	key := protowire.EncodeTag(num, wire)
	keySize := protowire.SizeVarint(key)
	f.vars = map[string]string{
		"msg":       msg.Name.Name,
		"field":     fld.Name.Name,
		"tag":       strconv.FormatUint(fld.Tag.Value, 10),
		"key":       strconv.FormatUint(key, 10),
		"key_size":  strconv.Itoa(keySize),
		"wire_type": strconv.Itoa(int(wire)),
		"ctype":     ctype,
	}

	switch f.category {
	case scalarField:
		if prim, ok := fld.Type.(*ast.PrimitiveType); ok {
			f.vars["kind"] = scalars[prim.Scalar].helper
			f.vars["vtype"] = ctype
		} else {
			f.vars["kind"] = "enum"
			f.vars["vtype"] = "int32_t"
		}
	case blobField:
		size := capacity(fld, checker.OptionMaxSize, gen.Options.maxString())
		macro := fmt.Sprintf("%s_%s_MAX_LEN", msg.Name.Name, fld.Name.Name)
		f.vars["size"] = macro
		f.capacities = append(f.capacities, [2]string{macro, strconv.Itoa(size)})
		elemMax = uint64(protowire.SizeBytes(size))
	case messageField:
		f.vars["type"] = ctype
	}

	elemMax = addSat(elemMax, uint64(keySize))
	f.maxSize = elemMax
	if fld.Label.Cardinality == ast.Repeated {
		count := capacity(fld, checker.OptionMaxCount, gen.Options.maxRepeated())
		macro := fmt.Sprintf("%s_%s_MAX_COUNT", msg.Name.Name, fld.Name.Name)
		f.vars["count"] = macro
		f.capacities = append([][2]string{{macro, strconv.Itoa(count)}}, f.capacities...)
		f.maxSize = mulSat(elemMax, uint64(count))
	}

	if err := gen.defaultValue(msg, f); err != nil {
		return nil, err
	}
	return f, nil
}

// capacity returns the value of a positive integer option, or def.
func capacity(fld *ast.FieldDecl, option string, def int) int {
	if opt := fld.Option(option); opt != nil {
		if lit, ok := opt.Value.(*ast.IntLiteral); ok && !lit.Negative && lit.Value > 0 && lit.Value <= math.MaxUint16 {
			return int(lit.Value)
		}
	}
	return def
}

func (gen *generation) defaultValue(msg *ast.MessageDecl, f *field) error {
	lit := f.decl.Default()
	if lit == nil || f.decl.Label.Cardinality == ast.Repeated {
		return nil
	}
	switch typ := f.decl.Type.(type) {
	case *ast.PrimitiveType:
		switch {
		case typ.Scalar.IsLengthDelimited():
			str, ok := lit.(*ast.StringLiteral)
			if !ok {
				return nil
			}
			size := capacity(f.decl, checker.OptionMaxSize, gen.Options.maxString())
			if len(str.Value) > size {
				return &GenerationError{
					Template: gen.Source.Name(),
					Key:      "default_blob",
					Err: fmt.Errorf("field %s.%s: default value is %d bytes, which exceeds the capacity of %d",
						msg.Name.Name, f.decl.Name.Name, len(str.Value), size),
				}
			}
			f.defaultValue = cStringLiteral([]byte(str.Value))
			f.defaultLen = len(str.Value)
		case typ.Scalar == ast.Bool:
			if id, ok := lit.(*ast.IdentLiteral); ok {
				f.defaultValue = id.Name
			}
		case typ.Scalar == ast.Float || typ.Scalar == ast.Double:
			switch lit := lit.(type) {
			case *ast.IntLiteral:
				f.defaultValue = cFloatLiteral(typ.Scalar, lit.Float())
			case *ast.FloatLiteral:
				f.defaultValue = cFloatLiteral(typ.Scalar, lit.Value)
			case *ast.IdentLiteral:
				if lit.Name == "nan" {
					f.defaultValue = cFloatLiteral(typ.Scalar, math.NaN())
				} else {
					f.defaultValue = cFloatLiteral(typ.Scalar, math.Inf(1))
				}
			}
		default:
			if lit, ok := lit.(*ast.IntLiteral); ok {
				f.defaultValue = cIntLiteral(typ.Scalar, lit)
			}
		}
	case *ast.NamedType:
		if id, ok := lit.(*ast.IdentLiteral); ok {
			f.defaultValue = typ.Name.Name + "_" + id.Name
		}
	}
	return nil
}

func (gen *generation) messageHeader(sb *strings.Builder, msg *ast.MessageDecl, fields []*field) error {
	var capacities, members strings.Builder
	var maxSize uint64
	for _, f := range fields {
		for _, c := range f.capacities {
			err := gen.Header.RenderTo(&capacities, "capacity", map[string]string{"macro": c[0], "value": c[1]})
			if err != nil {
				return err
			}
		}
		key := "member_" + f.card()
		if f.category == blobField {
			key = "member_blob_" + f.card()
		}
		if err := gen.Header.RenderTo(&members, key, f.vars); err != nil {
			return err
		}
		maxSize = addSat(maxSize, f.maxSize)
	}
	if len(fields) == 0 {
		if err := gen.Header.RenderTo(&members, "members_empty", nil); err != nil {
			return err
		}
	}
	if maxSize == math.MaxUint64 {
		// The sums saturate instead of wrapping.
		return &GenerationError{
			Template: gen.Header.Name(),
			Key:      "message",
			Err:      fmt.Errorf("message %s: %w", msg.Name.Name, ErrSizeOverflow),
		}
	}
	gen.maxSizes[msg.Name.Name] = maxSize

	return gen.Header.RenderTo(sb, "message", map[string]string{
		"name":       msg.Name.Name,
		"capacities": capacities.String(),
		"max_size":   strconv.FormatUint(maxSize, 10),
		"members":    members.String(),
	})
}

func (gen *generation) messageSource(sb *strings.Builder, msg *ast.MessageDecl, fields []*field) error {
	var defaults, sizes, encoders, decoders strings.Builder
	for _, f := range fields {
		if f.defaultValue != "" {
			vars := map[string]string{"field": f.decl.Name.Name, "value": f.defaultValue}
			key := "default_value"
			if f.category == blobField {
				key = "default_blob"
				vars["length"] = strconv.Itoa(f.defaultLen)
			}
			if err := gen.Source.RenderTo(&defaults, key, vars); err != nil {
				return err
			}
		}
		suffix := string(f.category) + "_" + f.card()
		for _, part := range []struct {
			sb   *strings.Builder
			kind string
		}{
			{&sizes, "size_"},
			{&encoders, "encode_"},
			{&decoders, "decode_"},
		} {
			if err := gen.Source.RenderTo(part.sb, part.kind+suffix, f.vars); err != nil {
				return err
			}
		}
	}
	return gen.Source.RenderTo(sb, "message", map[string]string{
		"name":          msg.Name.Name,
		"defaults":      defaults.String(),
		"size_fields":   sizes.String(),
		"encode_fields": encoders.String(),
		"decode_fields": decoders.String(),
	})
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func mulSat(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}
	return a * b
}
