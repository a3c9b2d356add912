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

package checker

import (
	"math"

	"github.com/bufbuild/protoembed/ast"
)

// Names of the field options this compiler understands.
const (
	OptionDefault  = "default"
	OptionMaxCount = "max_count"
	OptionMaxSize  = "max_size"
)

// maxCapacity bounds max_count and max_size so that generated array sizes
// and length fields stay within a 16-bit target's size_t.
const maxCapacity = math.MaxUint16

func (c *checker) checkOptions(scope string, fld *ast.FieldDecl) error {
	seen := make(map[string]bool, len(fld.Options))
	for _, opt := range fld.Options {
		name := opt.Name.Name
		if seen[name] {
			if err := c.handler.HandleErrorf(opt.Name.Pos, "%s: duplicate option %q", scope, name); err != nil {
				return err
			}
			continue
		}
		seen[name] = true

		var err error
		switch name {
		case OptionDefault:
			err = c.checkDefault(scope, fld, opt.Value)
		case OptionMaxCount:
			if fld.Label.Cardinality != ast.Repeated {
				err = c.handler.HandleErrorf(opt.Name.Pos, "%s: option %q is only allowed on repeated fields", scope, name)
			} else {
				err = c.checkCapacity(scope, name, opt.Value)
			}
		case OptionMaxSize:
			if prim, ok := fld.Type.(*ast.PrimitiveType); !ok || !prim.Scalar.IsLengthDelimited() {
				err = c.handler.HandleErrorf(opt.Name.Pos, "%s: option %q is only allowed on string and bytes fields", scope, name)
			} else {
				err = c.checkCapacity(scope, name, opt.Value)
			}
		default:
			err = c.handler.HandleErrorf(opt.Name.Pos, "%s: unknown option %q", scope, name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkCapacity(scope, name string, val ast.Literal) error {
	lit, ok := val.(*ast.IntLiteral)
	if !ok || lit.Negative || lit.Value == 0 || lit.Value > maxCapacity {
		return c.handler.HandleErrorf(val.Start(), "%s: option %q must be an integer between 1 and %d", scope, name, maxCapacity)
	}
	return nil
}

func (c *checker) checkDefault(scope string, fld *ast.FieldDecl, val ast.Literal) error {
	if fld.Label.Cardinality == ast.Repeated {
		return c.handler.HandleErrorf(val.Start(), "%s: default values are not allowed on repeated fields", scope)
	}
	switch typ := fld.Type.(type) {
	case *ast.PrimitiveType:
		if msg := checkScalarDefault(typ.Scalar, val); msg != "" {
			return c.handler.HandleErrorf(val.Start(), "%s: %s", scope, msg)
		}
		str, isString := val.(*ast.StringLiteral)
		if opt := fld.Option(OptionMaxSize); isString && opt != nil {
			if size, ok := opt.Value.(*ast.IntLiteral); ok && !size.Negative && uint64(len(str.Value)) > size.Value {
				return c.handler.HandleErrorf(val.Start(), "%s: default value is %d bytes, longer than max_size %d", scope, len(str.Value), size.Value)
			}
		}
	case *ast.NamedType:
		switch decl := c.res.types[typ.Name.Name].(type) {
		case *ast.EnumDecl:
			id, ok := val.(*ast.IdentLiteral)
			if !ok || decl.Value(id.Name) == nil {
				return c.handler.HandleErrorf(val.Start(), "%s: default value %s is not a value of enum %s", scope, val, decl.Name.Name)
			}
		case *ast.MessageDecl:
			return c.handler.HandleErrorf(val.Start(), "%s: default values are not allowed on message fields", scope)
		}
	}
	return nil
}

// checkScalarDefault returns a description of what is wrong with val as a
// default for a field of type s, or "" if it is acceptable.
func checkScalarDefault(s ast.ScalarType, val ast.Literal) string {
	switch {
	case s == ast.Bool:
		if id, ok := val.(*ast.IdentLiteral); ok && (id.Name == "true" || id.Name == "false") {
			return ""
		}
		return "default value for bool field must be true or false, found " + val.String()

	case s.IsLengthDelimited():
		if _, ok := val.(*ast.StringLiteral); ok {
			return ""
		}
		return "default value for " + s.String() + " field must be a string, found " + val.String()

	case s == ast.Float || s == ast.Double:
		switch val := val.(type) {
		case *ast.IntLiteral, *ast.FloatLiteral:
			return ""
		case *ast.IdentLiteral:
			if val.Name == "inf" || val.Name == "nan" {
				return ""
			}
		}
		return "default value for " + s.String() + " field must be a number, found " + val.String()

	case s.IsIntegral():
		lit, ok := val.(*ast.IntLiteral)
		if !ok {
			return "default value for " + s.String() + " field must be an integer, found " + val.String()
		}
		if !fitsScalar(s, lit) {
			return "default value " + lit.String() + " is out of range for " + s.String()
		}
		return ""
	}
	return ""
}

func fitsScalar(s ast.ScalarType, lit *ast.IntLiteral) bool {
	if !s.IsSigned() {
		if lit.Negative {
			return false
		}
		if s.Is32Bit() {
			return lit.Value <= math.MaxUint32
		}
		return true
	}
	v, ok := lit.Int64()
	if !ok {
		return false
	}
	if s.Is32Bit() {
		return v >= math.MinInt32 && v <= math.MaxInt32
	}
	return true
}

// cKeywords are the C99/C11 reserved words, plus the macros from the
// standard headers generated code includes.
var cKeywords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "struct": true, "switch": true,
	"typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true, "_Bool": true, "_Complex": true,
	"_Imaginary": true, "_Alignas": true, "_Alignof": true, "_Atomic": true,
	"_Generic": true, "_Noreturn": true, "_Static_assert": true,
	"_Thread_local": true, "bool": true, "true": true, "false": true,
	"NULL": true,
}
