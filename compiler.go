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

package protoembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/protoembed/ast"
	"github.com/bufbuild/protoembed/checker"
	"github.com/bufbuild/protoembed/codegen"
	"github.com/bufbuild/protoembed/descriptor"
	"github.com/bufbuild/protoembed/parser"
	"github.com/bufbuild/protoembed/reporter"
)

// Artifacts are the files generated for one source file.
type Artifacts struct {
	Header codegen.Artifact
	Source codegen.Artifact
	// Descriptor describes the compiled schema in protobuf's own terms.
	Descriptor *descriptorpb.FileDescriptorProto
}

// Compile compiles source into a C header and source file named after
// baseName, using the default options. Positions in errors refer to the
// file baseName + ".proto".
func Compile(source, baseName string) (*Artifacts, error) {
	var c Compiler
	return c.Compile(source, baseName)
}

// Compiler turns schema files into C code.
//
// The compilation process involves three steps for each source file:
//  1. Parsing the source into an AST (abstract syntax tree).
//  2. Checking the AST for constraint violations and ordering its types.
//  3. Rendering the header and source from templates.
//
// Nothing is written unless all three steps succeed.
type Compiler struct {
	// Resolves file names into source code for CompileFiles. If nil, files
	// are opened relative to the working directory.
	Resolver Resolver
	// The maximum parallelism to use in CompileFiles. If unspecified or set
	// to a non-positive value, then min(runtime.NumCPU(), runtime.GOMAXPROCS(-1))
	// will be used.
	MaxParallelism int
	// A custom error and warning reporter. It is told about every syntax
	// error and constraint violation as it is found. If unspecified, every
	// violation in a file is still found before compilation fails.
	Reporter reporter.Reporter
	// Options control the shape of the generated code.
	Options codegen.Options
	// Templates, if set, holds the header.yaml and source.yaml template
	// groups to use instead of the built-in ones.
	Templates fs.FS
	// Debug, if set, receives a dump of each file's AST, descriptor and
	// generated code.
	Debug io.Writer

	debugMu sync.Mutex
}

// Compile compiles source into a C header and source file named after
// baseName. Positions in errors refer to the file baseName + ".proto".
func (c *Compiler) Compile(source, baseName string) (*Artifacts, error) {
	gen, err := c.generator()
	if err != nil {
		return nil, err
	}
	res := c.compile(gen, baseName+".proto", SearchResult{Source: strings.NewReader(source)}, baseName)
	return res.Artifacts, res.Err
}

// Result is the outcome of compiling one file with CompileFiles.
type Result struct {
	// Path is the name the file was requested by.
	Path string
	// Info is the source that was compiled, for rendering diagnostics. It is
	// nil if the file could not be read.
	Info *ast.FileInfo
	// Artifacts is nil if compilation failed.
	Artifacts *Artifacts
	Err       error
}

// CompileFiles compiles the given files, which are located with the
// compiler's Resolver. Files are compiled independently and in parallel,
// and the artifacts of each file that compiles are written to outDir (if
// it is not empty) as soon as it is done.
//
// The returned slice has one Result per file, in the same order. The error
// joins the errors of every file that failed. Two files whose artifacts
// would have the same name are rejected before anything is compiled.
func (c *Compiler) CompileFiles(ctx context.Context, outDir string, files ...string) ([]*Result, error) {
	if len(files) == 0 {
		return nil, nil
	}

	seen := make(map[string]string, len(files))
	for _, file := range files {
		base := BaseName(file)
		if prev, ok := seen[base]; ok {
			return nil, fmt.Errorf("%s and %s would both generate %s.h and %s.c", prev, file, base, base)
		}
		seen[base] = file
	}

	gen, err := c.generator()
	if err != nil {
		return nil, err
	}

	par := c.MaxParallelism
	if par <= 0 {
		par = min(runtime.GOMAXPROCS(-1), runtime.NumCPU())
	}
	sem := semaphore.NewWeighted(int64(par))
	grp, ctx := errgroup.WithContext(ctx)

	results := make([]*Result, len(files))
	for i, file := range files {
		grp.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			res := c.resolveAndCompile(gen, file)
			if res.Err == nil && outDir != "" {
				res.Err = WriteArtifacts(outDir, res.Artifacts)
			}
			results[i] = res
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return results, errors.Join(errs...)
}

// BaseName returns the name the artifacts of the given source file are
// given, without extension: the file's base name with any .proto suffix
// removed.
func BaseName(file string) string {
	return strings.TrimSuffix(path.Base(filepath.ToSlash(file)), ".proto")
}

func (c *Compiler) resolveAndCompile(gen *codegen.Generator, file string) *Result {
	resolver := c.Resolver
	if resolver == nil {
		resolver = &SourceResolver{}
	}
	sr, err := resolver.FindFileByPath(file)
	if err != nil {
		return &Result{Path: file, Err: err}
	}
	if closer, ok := sr.Source.(io.Closer); ok {
		defer closer.Close()
	}
	return c.compile(gen, file, sr, BaseName(file))
}

func (c *Compiler) compile(gen *codegen.Generator, filename string, sr SearchResult, baseName string) *Result {
	res := &Result{Path: filename}
	file := sr.AST
	if file == nil {
		data, err := io.ReadAll(sr.Source)
		if err != nil {
			res.Err = fmt.Errorf("%s: %w", filename, err)
			return res
		}
		res.Info = ast.NewFileInfo(filename, data)
		file, err = parser.ParseBytes(filename, data)
		if err != nil {
			var ewp reporter.ErrorWithPos
			if c.Reporter != nil && errors.As(err, &ewp) {
				if repErr := c.Reporter.Error(ewp); repErr != nil {
					err = repErr
				}
			}
			res.Err = err
			return res
		}
	}
	res.Info = file.Info

	checked, err := checker.Check(file, c.Reporter)
	if err != nil {
		res.Err = err
		return res
	}
	out, err := gen.Generate(file, checked.Order, baseName)
	if err != nil {
		res.Err = err
		return res
	}
	fd, err := descriptor.FromAST(checked)
	if err != nil {
		res.Err = err
		return res
	}

	res.Artifacts = &Artifacts{Header: out.Header, Source: out.Source, Descriptor: fd}
	c.dump(file, res.Artifacts)
	return res
}

func (c *Compiler) generator() (*codegen.Generator, error) {
	gen, err := codegen.New(c.Options)
	if err != nil {
		return nil, err
	}
	if c.Templates == nil {
		return gen, nil
	}
	if gen.Header, err = codegen.LoadGroup(c.Templates, codegen.HeaderGroup); err != nil {
		return nil, err
	}
	if gen.Source, err = codegen.LoadGroup(c.Templates, codegen.SourceGroup); err != nil {
		return nil, err
	}
	return gen, nil
}

// dump writes the debug output for one file in a single write, so that
// files compiled in parallel do not interleave.
func (c *Compiler) dump(file *ast.File, a *Artifacts) {
	if c.Debug == nil {
		return
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- ast %s\n", file.Name())
	_ = ast.Print(&buf, file)
	fmt.Fprintf(&buf, "--- descriptor %s\n%s", file.Name(), descriptor.Text(a.Descriptor))
	for _, art := range []codegen.Artifact{a.Header, a.Source} {
		fmt.Fprintf(&buf, "--- %s\n%s", art.Path, art.Text)
	}

	c.debugMu.Lock()
	defer c.debugMu.Unlock()
	_, _ = c.Debug.Write(buf.Bytes())
}
