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

// Package checker validates a parsed file and computes the order in which
// its types must be declared in C.
//
// Checking is not fail-fast: every violation is reported through a
// [reporter.Handler], and the total is returned in the [Result]. Only a file
// with no violations gets a topological order.
package checker

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bufbuild/protoembed/ast"
	"github.com/bufbuild/protoembed/internal/toposort"
	"github.com/bufbuild/protoembed/reporter"
)

const (
	// MaxTag is the largest field tag the wire format can carry.
	MaxTag = 536870911
	// The range of tags reserved for the protobuf implementation.
	reservedTagStart = 19000
	reservedTagEnd   = 19999
)

// Result is the outcome of checking a file.
type Result struct {
	File *ast.File
	// Violations is the number of constraint violations found.
	Violations int
	// Order lists every declaration of File so that each type comes after
	// the types it embeds. It is nil unless Violations is zero.
	Order []ast.Decl

	types map[string]ast.Decl
}

// Lookup returns the declaration with the given name, or nil.
func (r *Result) Lookup(name string) ast.Decl {
	return r.types[name]
}

// Resolve returns the declaration a named type refers to, or nil for
// primitive or unresolved types.
func (r *Result) Resolve(t ast.TypeRef) ast.Decl {
	if named, ok := t.(*ast.NamedType); ok {
		return r.types[named.Name.Name]
	}
	return nil
}

// ConstraintError is returned by Check when a file has constraint
// violations.
type ConstraintError struct {
	// Count is the total number of violations.
	Count int
	// Errs holds every violation, in the order they were found.
	Errs []reporter.ErrorWithPos
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%d constraint violation(s)", e.Count)
}

// Is reports whether target is [reporter.ErrInvalidSource], which every
// ConstraintError stands for.
func (e *ConstraintError) Is(target error) bool {
	return target == reporter.ErrInvalidSource
}

// Unwrap returns the individual violations.
func (e *ConstraintError) Unwrap() []error {
	errs := make([]error, len(e.Errs))
	for i, err := range e.Errs {
		errs[i] = err
	}
	return errs
}

// Check validates file. Every violation is passed to rep (which may be nil).
// If rep returns a non-nil error, checking stops and that error is returned.
// Otherwise, if any violations were found, Check returns the Result along
// with a *ConstraintError.
func Check(file *ast.File, rep reporter.Reporter) (*Result, error) {
	if rep == nil {
		rep = reporter.NewReporter(nil, nil)
	}
	var errs []reporter.ErrorWithPos
	handler := reporter.NewHandler(reporter.NewReporter(
		func(err reporter.ErrorWithPos) error {
			errs = append(errs, err)
			return rep.Error(err)
		},
		rep.Warning,
	))

	c := &checker{
		file:    file,
		handler: handler,
		res: &Result{
			File:  file,
			types: make(map[string]ast.Decl, len(file.Decls)),
		},
	}
	// A pass only fails with the error the reporter returned, which the
	// handler keeps.
	_ = c.run()
	c.res.Violations = handler.ErrorCount()
	if err := handler.Error(); err != nil {
		if errors.Is(err, reporter.ErrInvalidSource) {
			return c.res, &ConstraintError{Count: c.res.Violations, Errs: errs}
		}
		return c.res, err
	}

	order, err := toposort.Sort(file.Decls, declName, c.dependencies)
	if err != nil {
		// Cycles were reported above, so this cannot happen for a file that
		// passed every rule.
		return c.res, fmt.Errorf("internal error: %w", err)
	}
	c.res.Order = order
	return c.res, nil
}

type checker struct {
	file    *ast.File
	handler *reporter.Handler
	res     *Result
}

func (c *checker) run() error {
	for _, pass := range []func() error{
		c.checkTypeNames,
		c.checkMessages,
		c.checkEnums,
		c.checkCNames,
		c.checkCycles,
	} {
		if err := pass(); err != nil {
			return err
		}
	}
	return nil
}

func declName(d ast.Decl) string {
	return d.DeclName().Name
}

func (c *checker) checkTypeNames() error {
	for _, decl := range c.file.Decls {
		name := decl.DeclName()
		if err := c.checkIdent(kindOf(decl)+" "+name.Name, name); err != nil {
			return err
		}
		if prev, ok := c.res.types[name.Name]; ok {
			if err := c.handler.HandleErrorf(name.Pos, "duplicate type name %q, previously declared at %v", name.Name, prev.DeclName().Pos); err != nil {
				return err
			}
			continue
		}
		c.res.types[name.Name] = decl
	}
	return nil
}

func kindOf(decl ast.Decl) string {
	switch decl.(type) {
	case *ast.MessageDecl:
		return "message"
	case *ast.EnumDecl:
		return "enum"
	default:
		return "type"
	}
}

func (c *checker) checkIdent(scope string, id ast.Ident) error {
	if cKeywords[id.Name] {
		return c.handler.HandleErrorf(id.Pos, "%s: %q is a reserved word in C", scope, id.Name)
	}
	return nil
}

func (c *checker) checkMessages() error {
	for _, msg := range c.file.Messages() {
		names := make(map[string]*ast.FieldDecl, len(msg.Fields))
		tags := make(map[uint64]*ast.FieldDecl, len(msg.Fields))
		for _, fld := range msg.Fields {
			scope := fmt.Sprintf("field %s.%s", msg.Name.Name, fld.Name.Name)
			if err := c.checkIdent(scope, fld.Name); err != nil {
				return err
			}

			if prev, ok := names[fld.Name.Name]; ok {
				if err := c.handler.HandleErrorf(fld.Name.Pos, "%s: duplicate field name, previously declared at %v", scope, prev.Name.Pos); err != nil {
					return err
				}
			} else {
				names[fld.Name.Name] = fld
			}

			tag := fld.Tag.Value
			if prev, ok := tags[tag]; ok {
				if err := c.handler.HandleErrorf(fld.Tag.Pos, "%s: duplicate tag %d, already used by field %s.%s", scope, tag, msg.Name.Name, prev.Name.Name); err != nil {
					return err
				}
			} else {
				tags[tag] = fld
			}
			switch {
			case tag < 1 || tag > MaxTag:
				if err := c.handler.HandleErrorf(fld.Tag.Pos, "%s: tag %d is out of range, must be between 1 and %d", scope, tag, MaxTag); err != nil {
					return err
				}
			case tag >= reservedTagStart && tag <= reservedTagEnd:
				if err := c.handler.HandleErrorf(fld.Tag.Pos, "%s: tag %d is in the range reserved for the protobuf implementation (%d to %d)", scope, tag, reservedTagStart, reservedTagEnd); err != nil {
					return err
				}
			}

			if named, ok := fld.Type.(*ast.NamedType); ok && c.res.types[named.Name.Name] == nil {
				if err := c.handler.HandleErrorf(named.Name.Pos, "%s: unresolved type %q", scope, named.Name.Name); err != nil {
					return err
				}
			}

			if err := c.checkOptions(scope, fld); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *checker) checkEnums() error {
	for _, enum := range c.file.Enums() {
		if len(enum.Values) == 0 {
			if err := c.handler.HandleErrorf(enum.Name.Pos, "enum %s: must declare at least one value", enum.Name.Name); err != nil {
				return err
			}
			continue
		}

		names := make(map[string]*ast.EnumValueDecl, len(enum.Values))
		numbers := make(map[uint64]*ast.EnumValueDecl, len(enum.Values))
		for _, val := range enum.Values {
			scope := fmt.Sprintf("enum value %s.%s", enum.Name.Name, val.Name.Name)
			if err := c.checkIdent(scope, val.Name); err != nil {
				return err
			}
			if prev, ok := names[val.Name.Name]; ok {
				if err := c.handler.HandleErrorf(val.Name.Pos, "enum %s: duplicate enum value name %q, previously declared at %v", enum.Name.Name, val.Name.Name, prev.Name.Pos); err != nil {
					return err
				}
			} else {
				names[val.Name.Name] = val
			}

			if val.Number.Value > math.MaxInt32 {
				if err := c.handler.HandleErrorf(val.Number.Pos, "%s: number %d is out of range, must be at most %d", scope, val.Number.Value, math.MaxInt32); err != nil {
					return err
				}
			}
			if prev, ok := numbers[val.Number.Value]; ok {
				c.handler.HandleWarningf(val.Number.Pos, "%s: number %d is also used by %s", scope, val.Number.Value, prev.Name.Name)
			} else {
				numbers[val.Number.Value] = val
			}
		}
	}
	return nil
}

// embeds returns the messages that msg embeds by value, in field order.
func (c *checker) embeds(decl ast.Decl) []ast.Decl {
	msg, ok := decl.(*ast.MessageDecl)
	if !ok {
		return nil
	}
	var out []ast.Decl
	for _, fld := range msg.Fields {
		if dep, ok := c.res.Resolve(fld.Type).(*ast.MessageDecl); ok {
			out = append(out, dep)
		}
	}
	return out
}

// dependencies returns every type decl refers to, including enums, since
// those must be declared before use too.
func (c *checker) dependencies(decl ast.Decl) []ast.Decl {
	msg, ok := decl.(*ast.MessageDecl)
	if !ok {
		return nil
	}
	var out []ast.Decl
	for _, fld := range msg.Fields {
		if dep := c.res.Resolve(fld.Type); dep != nil {
			out = append(out, dep)
		}
	}
	return out
}

func (c *checker) checkCycles() error {
	var roots []ast.Decl
	for _, decl := range c.file.Decls {
		// Only the first of several same-named declarations takes part in
		// resolution.
		if c.res.types[declName(decl)] == decl {
			roots = append(roots, decl)
		}
	}
	for _, cycle := range toposort.Cycles(roots, declName, c.embeds) {
		names := make([]string, len(cycle))
		for i, decl := range cycle {
			names[i] = declName(decl)
		}
		// Point at the field that closes the cycle.
		last := cycle[len(cycle)-2].(*ast.MessageDecl)
		pos := last.Name.Pos
		for _, fld := range last.Fields {
			if c.res.Resolve(fld.Type) == cycle[len(cycle)-1] {
				pos = fld.Type.Start()
				break
			}
		}
		if err := c.handler.HandleErrorf(pos, "message %s: cycle in value-embedded fields: %s", names[0], strings.Join(names, " -> ")); err != nil {
			return err
		}
	}
	return nil
}

// IsConstraintError reports whether err is, or wraps, a *ConstraintError.
func IsConstraintError(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}
