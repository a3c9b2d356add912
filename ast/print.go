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

import (
	"fmt"
	"io"
	"strings"
)

// Print writes an indented, human-readable dump of the tree to w. It is a
// debugging aid; the format is not stable.
func Print(w io.Writer, file *File) error {
	p := printer{w: w}
	p.printf(0, "file %q", file.Name())
	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *MessageDecl:
			p.printf(1, "message %s @%d:%d", decl.Name.Name, decl.Keyword.Line, decl.Keyword.Col)
			for _, fld := range decl.Fields {
				var opts string
				if len(fld.Options) > 0 {
					parts := make([]string, len(fld.Options))
					for i, opt := range fld.Options {
						parts[i] = opt.Name.Name + " = " + opt.Value.String()
					}
					opts = " [" + strings.Join(parts, ", ") + "]"
				}
				p.printf(2, "field %s %s %s = %d%s", fld.Label.Cardinality, typeString(fld.Type), fld.Name.Name, fld.Tag.Value, opts)
			}
		case *EnumDecl:
			p.printf(1, "enum %s @%d:%d", decl.Name.Name, decl.Keyword.Line, decl.Keyword.Col)
			for _, val := range decl.Values {
				p.printf(2, "value %s = %d", val.Name.Name, val.Number.Value)
			}
		}
	}
	return p.err
}

func typeString(t TypeRef) string {
	switch t := t.(type) {
	case *PrimitiveType:
		return t.Scalar.String()
	case *NamedType:
		return "<" + t.Name.Name + ">"
	default:
		return "?"
	}
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}
