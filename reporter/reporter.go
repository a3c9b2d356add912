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

// Package reporter contains the types used for reporting errors from
// the compiler. The parser stops at its first error; the checker reports
// every problem it finds through a [Handler], which counts them.
package reporter

import (
	"sync"

	"github.com/bufbuild/protoembed/ast"
)

// ErrorReporter is responsible for reporting the given error. If the reporter
// returns a non-nil error, checking will abort with that error. If the
// reporter returns nil, checking will continue, allowing the checker to
// report every constraint violation in one pass.
type ErrorReporter func(err ErrorWithPos) error

// WarningReporter is responsible for reporting the given warning. This is used
// for indicating non-error messages to the calling program for things that do
// not cause the compile to fail but are considered bad practice. Though they are
// just warnings, the details are supplied to the reporter via an error type.
type WarningReporter func(ErrorWithPos)

// Reporter is a type that handles reporting both errors and warnings.
type Reporter interface {
	// Error is called when the given error is encountered and needs to be
	// reported to the calling program. If a non-nil error is returned,
	// processing stops with that error.
	Error(ErrorWithPos) error
	// Warning is called when the given warning is encountered.
	Warning(ErrorWithPos)
}

// NewReporter creates a new reporter that invokes the given functions on error
// or warning. A nil errs keeps going after every error; a nil warnings
// discards warnings.
func NewReporter(errs ErrorReporter, warnings WarningReporter) Reporter {
	return reporterFuncs{errs: errs, warnings: warnings}
}

// Collect returns a reporter that appends every error and warning to the
// given slices and never aborts.
func Collect(errs, warnings *[]ErrorWithPos) Reporter {
	return NewReporter(
		func(err ErrorWithPos) error {
			if errs != nil {
				*errs = append(*errs, err)
			}
			return nil
		},
		func(err ErrorWithPos) {
			if warnings != nil {
				*warnings = append(*warnings, err)
			}
		},
	)
}

type reporterFuncs struct {
	errs     ErrorReporter
	warnings WarningReporter
}

func (r reporterFuncs) Error(err ErrorWithPos) error {
	if r.errs == nil {
		return nil
	}
	return r.errs(err)
}

func (r reporterFuncs) Warning(err ErrorWithPos) {
	if r.warnings != nil {
		r.warnings(err)
	}
}

// Handler is used by the checker to report errors and warnings. It counts
// the errors that were reported and remembers the first one the Reporter
// turned into a fatal error.
type Handler struct {
	reporter Reporter

	mu       sync.Mutex
	errCount int
	err      error
}

// NewHandler creates a new Handler that reports errors and warnings using the
// given reporter. A nil reporter keeps going after every error.
func NewHandler(rep Reporter) *Handler {
	if rep == nil {
		rep = NewReporter(nil, nil)
	}
	return &Handler{reporter: rep}
}

// HandleErrorf handles an error with the given source position, creating the
// error using the given message format and arguments.
//
// If the handler has already aborted (by returning a non-nil error from a
// prior call to HandleError or HandleErrorf), that same error is returned and
// the given error is not reported.
func (h *Handler) HandleErrorf(pos ast.SourcePos, format string, args ...any) error {
	return h.HandleError(Errorf(pos, format, args...))
}

// HandleError handles the given error. If the given err is an ErrorWithPos, it
// is reported, and this function returns the error returned by the reporter.
// Any other error is treated as fatal and returned as is.
func (h *Handler) HandleError(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		return h.err
	}
	if ewp, ok := err.(ErrorWithPos); ok {
		h.errCount++
		err = h.reporter.Error(ewp)
	}
	h.err = err
	return err
}

// HandleWarningf reports a warning at pos with a formatted message.
func (h *Handler) HandleWarningf(pos ast.SourcePos, format string, args ...any) {
	h.reporter.Warning(Errorf(pos, format, args...))
}

// ErrorCount returns the number of errors reported so far.
func (h *Handler) ErrorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.errCount
}

// Error returns the handler result. If any errors have been reported then this
// returns a non-nil error. If the reporter never returned a non-nil error then
// ErrInvalidSource is returned. Otherwise, this returns the error returned by
// the handler's reporter.
func (h *Handler) Error() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.errCount > 0 && h.err == nil {
		return ErrInvalidSource
	}
	return h.err
}
