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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/protoembed/checker"
	"github.com/bufbuild/protoembed/codegen"
	"github.com/bufbuild/protoembed/parser"
	"github.com/bufbuild/protoembed/reporter"
)

const pointSource = `
message Point {
  required int32 x = 1;
  required int32 y = 2;
}
`

const invalidSource = `message Foo {
  required int32 a = 1;
  required int32 b = 1;
  required Bar c = 2;
}
`

func TestCompilePoint(t *testing.T) {
	t.Parallel()
	a, err := Compile(pointSource, "point")
	require.NoError(t, err)
	assert.Equal(t, "point.h", a.Header.Path)
	assert.Equal(t, "point.c", a.Source.Path)
	assert.True(t, strings.HasPrefix(a.Header.Text, "/* Generated by protoc-embedded from point.proto. DO NOT EDIT. */\n#ifndef POINT_H\n"))
	assert.Contains(t, a.Header.Text, "typedef struct Point {\n    int32_t x;\n    int32_t y;\n} Point;\n")
	assert.Contains(t, a.Source.Text, "#include \"point.h\"\n")
	assert.Contains(t, a.Source.Text, "int Point_encode(const Point *msg, uint8_t *buf, size_t len)")

	require.NotNil(t, a.Descriptor)
	assert.Equal(t, "point.proto", a.Descriptor.GetName())
	require.Len(t, a.Descriptor.GetMessageType(), 1)
	assert.Equal(t, "Point", a.Descriptor.GetMessageType()[0].GetName())
}

func TestCompileDeterministic(t *testing.T) {
	t.Parallel()
	const source = `
message Top { required Left l = 1; required Right r = 2; }
message Right { required int32 x = 1; }
message Left { required Right r = 1; }
`
	first, err := Compile(source, "test")
	require.NoError(t, err)
	for range 5 {
		again, err := Compile(source, "test")
		require.NoError(t, err)
		assert.Equal(t, first.Header.Text, again.Header.Text)
		assert.Equal(t, first.Source.Text, again.Source.Text)
	}
}

func TestCompileSyntaxError(t *testing.T) {
	t.Parallel()
	a, err := Compile("message Point { int32 x = 1; }", "point")
	require.Error(t, err)
	assert.Nil(t, a)
	var syntaxErr *parser.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, "point.proto:1:17", syntaxErr.Pos.String())
}

func TestCompileConstraintViolations(t *testing.T) {
	t.Parallel()
	a, err := Compile(invalidSource, "test")
	require.Error(t, err)
	assert.Nil(t, a)
	require.True(t, checker.IsConstraintError(err))
	var constraintErr *checker.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, 2, constraintErr.Count)
	assert.EqualError(t, err, "2 constraint violation(s)")
}

func TestCompilerReporter(t *testing.T) {
	t.Parallel()
	var errs []reporter.ErrorWithPos
	c := Compiler{Reporter: reporter.Collect(&errs, nil)}
	_, err := c.Compile(invalidSource, "test")
	require.Error(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "test.proto:3:22: field Foo.b: duplicate tag 1, already used by field Foo.a", errs[0].Error())
	assert.Equal(t, `test.proto:4:12: field Foo.c: unresolved type "Bar"`, errs[1].Error())

	errs = nil
	_, err = c.Compile("message {", "test")
	require.Error(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, err, errs[0])
}

func TestCompilerReporterAborts(t *testing.T) {
	t.Parallel()
	stop := errors.New("stop")
	var count int
	c := Compiler{Reporter: reporter.NewReporter(func(reporter.ErrorWithPos) error {
		count++
		return stop
	}, nil)}
	_, err := c.Compile(invalidSource, "test")
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)

	_, err = c.Compile("message {", "test")
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 2, count)
}

func TestCompilerOptions(t *testing.T) {
	t.Parallel()
	const source = `message Log { repeated string lines = 1; }`
	c := Compiler{Options: codegen.Options{MaxRepeatedLen: 4, MaxStringLen: 16}}
	a, err := c.Compile(source, "log")
	require.NoError(t, err)
	assert.Contains(t, a.Header.Text, "#define Log_lines_MAX_COUNT 4\n#define Log_lines_MAX_LEN 16\n")
	assert.Contains(t, a.Header.Text, "char lines[Log_lines_MAX_COUNT][Log_lines_MAX_LEN];")

	c.Options.MaxStringLen = -1
	_, err = c.Compile(source, "log")
	require.EqualError(t, err, "invalid max string length -1: must be between 1 and 65535")
}

func TestCompilerTemplates(t *testing.T) {
	t.Parallel()
	c := Compiler{Templates: os.DirFS(filepath.Join("codegen", "templates"))}
	custom, err := c.Compile(pointSource, "point")
	require.NoError(t, err)
	builtin, err := Compile(pointSource, "point")
	require.NoError(t, err)
	assert.Equal(t, builtin.Header, custom.Header)
	assert.Equal(t, builtin.Source, custom.Source)

	header, err := os.ReadFile(filepath.Join("codegen", "templates", "header.yaml"))
	require.NoError(t, err)
	c.Templates = fstest.MapFS{"header.yaml": {Data: header}}
	_, err = c.Compile(pointSource, "point")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCompilerDebug(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := Compiler{Debug: &buf}
	_, err := c.Compile(pointSource, "point")
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "--- ast point.proto\n"))
	assert.Contains(t, out, "message Point @2:1\n")
	assert.Contains(t, out, "--- descriptor point.proto\n")
	assert.Contains(t, out, "--- point.h\n/* Generated by protoc-embedded from point.proto.")
	assert.Contains(t, out, "--- point.c\n")
}

func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
	return dir
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	sort.Strings(names)
	return names
}

func TestCompileFiles(t *testing.T) {
	t.Parallel()
	src := writeSources(t, map[string]string{
		"point.proto":       pointSource,
		"shapes/line.proto": `message Line { required int32 from = 1; required int32 to = 2; }`,
	})
	out := t.TempDir()
	c := Compiler{
		Resolver:       &SourceResolver{ImportPaths: []string{src}},
		MaxParallelism: 1,
	}
	results, err := c.CompileFiles(context.Background(), out, "point.proto", "shapes/line.proto")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "point.proto", results[0].Path)
	assert.Equal(t, "shapes/line.proto", results[1].Path)
	assert.Equal(t, "line.h", results[1].Artifacts.Header.Path)
	assert.Equal(t, "shapes/line.proto", results[1].Info.Name())

	assert.Equal(t, []string{"line.c", "line.h", "point.c", "point.h"}, dirNames(t, out))
	header, err := os.ReadFile(filepath.Join(out, "point.h"))
	require.NoError(t, err)
	assert.Equal(t, results[0].Artifacts.Header.Text, string(header))
}

func TestCompileFilesIndependent(t *testing.T) {
	t.Parallel()
	src := writeSources(t, map[string]string{
		"good.proto": pointSource,
		"bad.proto":  invalidSource,
	})
	out := t.TempDir()
	c := Compiler{Resolver: &SourceResolver{ImportPaths: []string{src}}}
	results, err := c.CompileFiles(context.Background(), out, "bad.proto", "good.proto", "missing.proto")
	require.Error(t, err)
	require.Len(t, results, 3)

	assert.True(t, checker.IsConstraintError(results[0].Err))
	assert.Nil(t, results[0].Artifacts)
	assert.Equal(t, "bad.proto", results[0].Info.Name())
	require.NoError(t, results[1].Err)
	require.ErrorIs(t, results[2].Err, fs.ErrNotExist)
	assert.Nil(t, results[2].Info)

	assert.True(t, checker.IsConstraintError(err))
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, []string{"good.c", "good.h"}, dirNames(t, out))
}

func TestCompileFilesCollision(t *testing.T) {
	t.Parallel()
	var c Compiler
	_, err := c.CompileFiles(context.Background(), "", "a/x.proto", "b/x.proto")
	require.EqualError(t, err, "a/x.proto and b/x.proto would both generate x.h and x.c")
}

func TestCompileFilesNoWrite(t *testing.T) {
	t.Parallel()
	c := Compiler{Resolver: ResolverFunc(func(path string) (SearchResult, error) {
		return SearchResult{Source: strings.NewReader(pointSource)}, nil
	})}
	results, err := c.CompileFiles(context.Background(), "", "point.proto")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "point.h", results[0].Artifacts.Header.Path)

	results, err = c.CompileFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCompileFilesFromAST(t *testing.T) {
	t.Parallel()
	file, err := parser.ParseString("point.proto", pointSource)
	require.NoError(t, err)
	c := Compiler{Resolver: ResolverFunc(func(string) (SearchResult, error) {
		return SearchResult{AST: file}, nil
	})}
	results, err := c.CompileFiles(context.Background(), "", "point.proto")
	require.NoError(t, err)
	assert.Same(t, file.Info, results[0].Info)
	assert.Contains(t, results[0].Artifacts.Header.Text, "typedef struct Point {")
}

func TestWriteArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := &Artifacts{
		Header: codegen.Artifact{Path: "x.h", Text: "header\n"},
		Source: codegen.Artifact{Path: "x.c", Text: "source\n"},
	}
	require.NoError(t, WriteArtifacts(dir, a))
	assert.Equal(t, []string{"x.c", "x.h"}, dirNames(t, dir))

	data, err := os.ReadFile(filepath.Join(dir, "x.h"))
	require.NoError(t, err)
	assert.Equal(t, "header\n", string(data))
	info, err := os.Stat(filepath.Join(dir, "x.c"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o644), info.Mode().Perm())
}

func TestWriteArtifactsFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := &Artifacts{
		Header: codegen.Artifact{Path: "x.h", Text: "header\n"},
		// Temporary file names cannot contain a separator, so the second
		// temporary file cannot be created.
		Source: codegen.Artifact{Path: "sub/x.c", Text: "source\n"},
	}
	require.Error(t, WriteArtifacts(dir, a))
	assert.Empty(t, dirNames(t, dir))

	require.Error(t, WriteArtifacts(filepath.Join(dir, "missing"), a))
}

func TestWriteArtifactsReplaces(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.h"), []byte("old header\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.c"), []byte("old source\n"), 0o644))
	a := &Artifacts{
		Header: codegen.Artifact{Path: "x.h", Text: "header\n"},
		Source: codegen.Artifact{Path: "x.c", Text: "source\n"},
	}
	require.NoError(t, WriteArtifacts(dir, a))
	assert.Equal(t, []string{"x.c", "x.h"}, dirNames(t, dir))
	data, err := os.ReadFile(filepath.Join(dir, "x.c"))
	require.NoError(t, err)
	assert.Equal(t, "source\n", string(data))
}

func TestWriteArtifactsRollback(t *testing.T) {
	t.Parallel()
	a := &Artifacts{
		Header: codegen.Artifact{Path: "x.h", Text: "header\n"},
		Source: codegen.Artifact{Path: "x.c", Text: "source\n"},
	}

	// A directory in place of the source makes its rename fail after the
	// header has been renamed.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.h"), []byte("old header\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "x.c"), 0o755))
	require.Error(t, WriteArtifacts(dir, a))
	assert.Equal(t, []string{"x.c", "x.h"}, dirNames(t, dir))
	data, err := os.ReadFile(filepath.Join(dir, "x.h"))
	require.NoError(t, err)
	assert.Equal(t, "old header\n", string(data))

	dir = t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "x.c"), 0o755))
	require.Error(t, WriteArtifacts(dir, a))
	assert.Equal(t, []string{"x.c"}, dirNames(t, dir))
}

func TestSourceResolver(t *testing.T) {
	t.Parallel()
	first := writeSources(t, map[string]string{"a.proto": "a"})
	second := writeSources(t, map[string]string{"a.proto": "second a", "b.proto": "b"})
	r := &SourceResolver{ImportPaths: []string{first, second}}

	read := func(path string) string {
		t.Helper()
		sr, err := r.FindFileByPath(path)
		require.NoError(t, err)
		data, err := io.ReadAll(sr.Source)
		require.NoError(t, err)
		require.NoError(t, sr.Source.(io.Closer).Close())
		return string(data)
	}
	assert.Equal(t, "a", read("a.proto"))
	assert.Equal(t, "b", read("b.proto"))

	_, err := r.FindFileByPath("c.proto")
	require.ErrorIs(t, err, fs.ErrNotExist)

	var opened []string
	r = &SourceResolver{Accessor: func(path string) (io.ReadCloser, error) {
		opened = append(opened, path)
		return io.NopCloser(strings.NewReader(path)), nil
	}}
	_, err = r.FindFileByPath("x.proto")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.proto"}, opened)
}

func TestCompositeResolver(t *testing.T) {
	t.Parallel()
	notFound := ResolverFunc(func(path string) (SearchResult, error) {
		return SearchResult{}, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	})
	found := ResolverFunc(func(path string) (SearchResult, error) {
		return SearchResult{Source: strings.NewReader(path)}, nil
	})

	sr, err := CompositeResolver{notFound, found}.FindFileByPath("a.proto")
	require.NoError(t, err)
	assert.NotNil(t, sr.Source)

	_, err = CompositeResolver{notFound}.FindFileByPath("a.proto")
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = CompositeResolver{}.FindFileByPath("a.proto")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestBaseName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "point", BaseName("point.proto"))
	assert.Equal(t, "line", BaseName("shapes/line.proto"))
	assert.Equal(t, "notes", BaseName("notes"))
}
