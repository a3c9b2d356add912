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

// Package report renders compiler errors as diagnostics for people: either
// one line per error, in the style of the Go compiler, or annotated with the
// offending source line, in the style of the Rust compiler.
package report

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/bufbuild/protoembed/ast"
	"github.com/bufbuild/protoembed/reporter"
)

const (
	Error Level = 1 + iota
	Warning
	note // Used internally for secondary snippets.
)

const (
	Simple Style = 1 + iota
	Monochrome
	Colored
)

// Level represents the severity of a diagnostic message.
type Level int8

// Style indicates how a diagnostic should be rendered to show a user.
type Style int

var styleNames = map[string]Style{
	"simple": Simple,
	"text":   Monochrome,
	"color":  Colored,
}

// ParseStyle returns the style with the given name: simple, text or color.
func ParseStyle(name string) (Style, error) {
	if s, ok := styleNames[name]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown diagnostic style %q: must be simple, text or color", name)
}

// Diagnostic is an error or warning that can be rendered with the source it
// refers to.
type Diagnostic struct {
	// The error that prompted this diagnostic.
	Err error
	// The kind of diagnostic this is.
	Level Level

	mention     string
	snippets    []snippet
	notes, help []string

	// Stack trace of the code that created the diagnostic. Only populated
	// when the env var PROTOEMBED_DEBUG is set.
	trace []runtime.Frame
}

type snippet struct {
	file    *ast.FileInfo
	pos     ast.SourcePos
	message string
	primary bool
}

// Message returns the diagnostic's message, without the position prefix
// that positioned errors carry.
func (d *Diagnostic) Message() string {
	msg := d.Err.Error()
	var ewp reporter.ErrorWithPos
	if errors.As(d.Err, &ewp) {
		msg = strings.TrimPrefix(msg, ewp.GetPosition().String()+": ")
	}
	return msg
}

// Primary returns the position of the diagnostic's primary snippet. If it
// has none, it is the position of a positioned error, or else just the
// mentioned file.
func (d *Diagnostic) Primary() ast.SourcePos {
	if len(d.snippets) > 0 {
		return d.snippets[0].pos
	}
	var ewp reporter.ErrorWithPos
	if errors.As(d.Err, &ewp) && ewp.GetPosition().Filename != "" {
		return ewp.GetPosition()
	}
	return ast.UnknownPos(d.mention)
}

// DiagnosticOption is an option that can be applied to a [Diagnostic].
type DiagnosticOption func(*Diagnostic)

// MentionFile returns a DiagnosticOption that causes a diagnostic without
// a snippet to mention the given file.
func MentionFile(path string) DiagnosticOption {
	return func(d *Diagnostic) { d.mention = path }
}

// Snippet returns a DiagnosticOption that shows the source at pos, which
// must be a position in file. The first snippet added is the primary one.
func Snippet(file *ast.FileInfo, pos ast.SourcePos, format string, args ...any) DiagnosticOption {
	return func(d *Diagnostic) {
		d.snippets = append(d.snippets, snippet{
			file:    file,
			pos:     pos,
			message: fmt.Sprintf(format, args...),
			primary: len(d.snippets) == 0,
		})
	}
}

// Note returns a DiagnosticOption that provides the user with context about
// the diagnostic, after the snippets.
func Note(format string, args ...any) DiagnosticOption {
	return func(d *Diagnostic) {
		d.notes = append(d.notes, fmt.Sprintf(format, args...))
	}
}

// Help returns a DiagnosticOption that provides the user with a helpful
// prose suggestion for resolving the diagnostic.
func Help(format string, args ...any) DiagnosticOption {
	return func(d *Diagnostic) {
		d.help = append(d.help, fmt.Sprintf(format, args...))
	}
}

// Report is a collection of diagnostics.
type Report []Diagnostic

// Error pushes an error diagnostic onto this report.
func (r *Report) Error(err error, opts ...DiagnosticOption) {
	r.push(1, err, Error, opts)
}

// Warn pushes a warning diagnostic onto this report.
func (r *Report) Warn(err error, opts ...DiagnosticOption) {
	r.push(1, err, Warning, opts)
}

// AddError pushes a diagnostic for every error in err. Errors that wrap
// several errors, such as a checker's constraint error, contribute one
// diagnostic per wrapped error. Positioned errors in file get a snippet;
// anything else mentions the file by name.
func (r *Report) AddError(file *ast.FileInfo, err error) {
	r.add(file, err, Error)
}

// AddWarning is like AddError, for warnings.
func (r *Report) AddWarning(file *ast.FileInfo, err error) {
	r.add(file, err, Warning)
}

func (r *Report) add(file *ast.FileInfo, err error, level Level) {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, err := range multi.Unwrap() {
			r.add(file, err, level)
		}
		return
	}

	var opts []DiagnosticOption
	var ewp reporter.ErrorWithPos
	switch {
	case errors.As(err, &ewp) && file != nil && ewp.GetPosition().Filename == file.Name() && ewp.GetPosition().Line > 0:
		opts = append(opts, Snippet(file, ewp.GetPosition(), ""))
	case errors.As(err, &ewp):
		// Rendered without a snippet, at the error's own position.
	case file != nil:
		opts = append(opts, MentionFile(file.Name()))
	}
	r.push(2, err, level, opts)
}

// Counts returns the number of errors and warnings in r.
func (r *Report) Counts() (errs, warnings int) {
	for _, d := range *r {
		switch d.Level {
		case Error:
			errs++
		case Warning:
			warnings++
		}
	}
	return errs, warnings
}

// push is the core "make me a diagnostic" function.
func (r *Report) push(skip int, err error, level Level, opts []DiagnosticOption) {
	*r = append(*r, Diagnostic{Err: err, Level: level})
	d := &(*r)[len(*r)-1]
	for _, opt := range opts {
		opt(d)
	}

	if debugMode > debugOff {
		pc := make([]uintptr, 64)
		pc = pc[:runtime.Callers(skip+2, pc)]

		var zero runtime.Frame
		frames := runtime.CallersFrames(pc)
		for {
			next, more := frames.Next()
			if next != zero {
				d.trace = append(d.trace, next)
			}
			if !more {
				break
			}
		}
	}
}
