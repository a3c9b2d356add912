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
	"github.com/bufbuild/protoembed/ast"
)

// messageFunctions are the suffixes of the functions declared for every
// message.
var messageFunctions = []string{
	"clear",
	"size",
	"encode",
	"decode",
	"write_delimited_to",
	"read_delimited_from",
}

type cName struct {
	owner string
	pos   ast.SourcePos
	macro bool
}

// checkCNames reports identifiers the generated C would declare twice.
// Type names, enumerators, functions and macros share the file scope;
// struct members share their message's scope and must not be macro names.
func (c *checker) checkCNames() error {
	global := make(map[string]cName)
	declare := func(owner string, pos ast.SourcePos, name string, macro bool) error {
		if prev, ok := global[name]; ok {
			return c.handler.HandleErrorf(pos, "%s: C name %q is also generated for %s at %v", owner, name, prev.owner, prev.pos)
		}
		global[name] = cName{owner: owner, pos: pos, macro: macro}
		return nil
	}

	for _, decl := range c.file.Decls {
		name := decl.DeclName()
		if c.res.types[name.Name] != decl {
			continue
		}
		switch decl := decl.(type) {
		case *ast.MessageDecl:
			owner := "message " + name.Name
			if err := declare(owner, name.Pos, name.Name, false); err != nil {
				return err
			}
			if err := declare(owner, name.Pos, name.Name+"_MAX_SIZE", true); err != nil {
				return err
			}
			for _, fn := range messageFunctions {
				if err := declare(owner, name.Pos, name.Name+"_"+fn, false); err != nil {
					return err
				}
			}
			for _, fld := range uniqueFields(decl) {
				owner := "field " + name.Name + "." + fld.Name.Name
				prefix := name.Name + "_" + fld.Name.Name
				if fld.Label.Cardinality == ast.Repeated {
					if err := declare(owner, fld.Name.Pos, prefix+"_MAX_COUNT", true); err != nil {
						return err
					}
				}
				if isBlob(fld) {
					if err := declare(owner, fld.Name.Pos, prefix+"_MAX_LEN", true); err != nil {
						return err
					}
				}
			}
		case *ast.EnumDecl:
			if err := declare("enum "+name.Name, name.Pos, name.Name, false); err != nil {
				return err
			}
			seen := make(map[string]bool, len(decl.Values))
			for _, val := range decl.Values {
				if seen[val.Name.Name] {
					continue
				}
				seen[val.Name.Name] = true
				owner := "enum value " + name.Name + "." + val.Name.Name
				if err := declare(owner, val.Name.Pos, name.Name+"_"+val.Name.Name, false); err != nil {
					return err
				}
			}
		}
	}

	for _, msg := range c.file.Messages() {
		members := make(map[string]*ast.FieldDecl)
		for _, fld := range uniqueFields(msg) {
			owner := "field " + msg.Name.Name + "." + fld.Name.Name
			for _, member := range memberNames(fld) {
				if prev, ok := members[member]; ok {
					if err := c.handler.HandleErrorf(fld.Name.Pos, "%s: C member %q is also generated for field %s.%s at %v", owner, member, msg.Name.Name, prev.Name.Name, prev.Name.Pos); err != nil {
						return err
					}
					continue
				}
				members[member] = fld
				if prev, ok := global[member]; ok && prev.macro {
					if err := c.handler.HandleErrorf(fld.Name.Pos, "%s: C member %q is a macro generated for %s at %v", owner, member, prev.owner, prev.pos); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// uniqueFields returns the fields of msg, skipping any whose name repeats
// an earlier field's, which is reported on its own.
func uniqueFields(msg *ast.MessageDecl) []*ast.FieldDecl {
	seen := make(map[string]bool, len(msg.Fields))
	fields := make([]*ast.FieldDecl, 0, len(msg.Fields))
	for _, fld := range msg.Fields {
		if !seen[fld.Name.Name] {
			seen[fld.Name.Name] = true
			fields = append(fields, fld)
		}
	}
	return fields
}

// memberNames lists the struct members generated for fld.
func memberNames(fld *ast.FieldDecl) []string {
	name := fld.Name.Name
	names := []string{name}
	switch fld.Label.Cardinality {
	case ast.Optional:
		names = append(names, "has_"+name)
	case ast.Repeated:
		names = append(names, name+"_count")
	}
	if isBlob(fld) {
		names = append(names, name+"_len")
	}
	return names
}

func isBlob(fld *ast.FieldDecl) bool {
	prim, ok := fld.Type.(*ast.PrimitiveType)
	return ok && prim.Scalar.IsLengthDelimited()
}
