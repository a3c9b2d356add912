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

// Command protoc-embedded compiles protocol buffer schemas into C code for
// embedded targets.
//
// Usage:
//
//	protoc-embedded [flags] <file.proto>...
//
// For each input file x.proto, the files x.h and x.c are written to the
// --c_out directory. Nothing is written for a file with errors.
//
// Exit status is 0 on success, 1 for bad arguments, unreadable files,
// syntax errors or template errors, and -1 (255) if any file has
// constraint violations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/protoembed"
	"github.com/bufbuild/protoembed/checker"
	"github.com/bufbuild/protoembed/codegen"
	"github.com/bufbuild/protoembed/descriptor"
	"github.com/bufbuild/protoembed/report"
)

const (
	exitOK         = 0
	exitError      = 1
	exitViolations = -1
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stderr)
	cancel()
	os.Exit(code)
}

var errNoInput = errors.New("no input files")

// importPaths collects repeated -I flags.
type importPaths []string

func (p *importPaths) String() string { return strings.Join(*p, string(os.PathListSeparator)) }

func (p *importPaths) Set(value string) error {
	*p = append(*p, value)
	return nil
}

type options struct {
	includes         importPaths
	outDir           string
	debug            bool
	templates        string
	maxRepeated      int
	maxString        int
	descriptorSetOut string
	errorFormat      string
	files            []string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := new(options)
	flags := flag.NewFlagSet("protoc-embedded", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Var(&opts.includes, "I", "Directory in which to search for input files (repeatable)")
	flags.StringVar(&opts.outDir, "c_out", ".", "Directory to write generated .h and .c files to")
	flags.BoolVar(&opts.debug, "debug", false, "Log progress and dump the AST, descriptor and generated code to stderr")
	flags.StringVar(&opts.templates, "templates", "", "Directory holding header.yaml and source.yaml template groups")
	flags.IntVar(&opts.maxRepeated, "max_repeated", codegen.DefaultMaxRepeatedLen, "Capacity of repeated fields without max_count")
	flags.IntVar(&opts.maxString, "max_string", codegen.DefaultMaxStringLen, "Capacity of string and bytes fields without max_size")
	flags.StringVar(&opts.descriptorSetOut, "descriptor_set_out", "", "Also write a FileDescriptorSet of the inputs to this file")
	flags.StringVar(&opts.errorFormat, "error_format", "simple", "How to print errors: simple, text or color")
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: protoc-embedded [flags] <file.proto>...\n\nFlags:\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	opts.files = flags.Args()
	if len(opts.files) == 0 {
		flags.Usage()
		return nil, errNoInput
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		// The flag package has already reported anything else.
		if errors.Is(err, errNoInput) {
			fmt.Fprintf(stderr, "protoc-embedded: %v\n", err)
		}
		return exitError
	}

	level := slog.LevelWarn
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	style, err := report.ParseStyle(opts.errorFormat)
	if err != nil {
		fmt.Fprintf(stderr, "protoc-embedded: %v\n", err)
		return exitError
	}
	if err := checkPaths(opts); err != nil {
		fmt.Fprintf(stderr, "protoc-embedded: %v\n", err)
		return exitError
	}

	compiler := &protoembed.Compiler{
		Resolver: &protoembed.SourceResolver{ImportPaths: opts.includes},
		Options: codegen.Options{
			MaxRepeatedLen: opts.maxRepeated,
			MaxStringLen:   opts.maxString,
		},
	}
	if opts.templates != "" {
		compiler.Templates = os.DirFS(opts.templates)
	}
	if opts.debug {
		compiler.Debug = stderr
	}

	// Nothing is written until every file has compiled.
	results, err := compiler.CompileFiles(ctx, "", opts.files...)
	if results == nil && err != nil {
		fmt.Fprintf(stderr, "protoc-embedded: %v\n", err)
		return exitError
	}

	var rep report.Report
	var violations int
	var descriptors []*descriptorpb.FileDescriptorProto
	code := exitOK
	for _, res := range results {
		if res.Err == nil {
			logger.Debug("compiled", "file", res.Path, "types", len(res.Artifacts.Descriptor.GetMessageType())+len(res.Artifacts.Descriptor.GetEnumType()))
			descriptors = append(descriptors, res.Artifacts.Descriptor)
			continue
		}
		if res.Info == nil {
			fmt.Fprintf(stderr, "error: %v\n", res.Err)
			code = exitError
			continue
		}
		rep.AddError(res.Info, res.Err)
		var ce *checker.ConstraintError
		if errors.As(res.Err, &ce) {
			violations += ce.Count
		} else if code == exitOK {
			code = exitError
		}
	}
	if len(rep) > 0 {
		fmt.Fprint(stderr, rep.Render(style))
	}
	if violations > 0 {
		fmt.Fprintf(stderr, "ERROR(s): %d constraint violation(s), no files generated\n", violations)
		return exitViolations
	}
	if code != exitOK {
		return code
	}

	for _, res := range results {
		if err := protoembed.WriteArtifacts(opts.outDir, res.Artifacts); err != nil {
			fmt.Fprintf(stderr, "protoc-embedded: %v\n", err)
			return exitError
		}
		logger.Debug("wrote", "header", res.Artifacts.Header.Path, "source", res.Artifacts.Source.Path, "dir", opts.outDir)
	}

	if opts.descriptorSetOut != "" {
		if err := writeDescriptorSet(opts.descriptorSetOut, descriptors); err != nil {
			fmt.Fprintf(stderr, "protoc-embedded: %v\n", err)
			return exitError
		}
		logger.Debug("wrote", "descriptor_set", opts.descriptorSetOut, "files", len(descriptors))
	}
	return exitOK
}

// checkPaths validates the directories named on the command line before
// anything is compiled.
func checkPaths(opts *options) error {
	dirs := append([]string{opts.outDir}, opts.includes...)
	if opts.templates != "" {
		dirs = append(dirs, opts.templates)
	}
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return &fs.PathError{Op: "stat", Path: dir, Err: errors.New("not a directory")}
		}
	}
	return nil
}

func writeDescriptorSet(path string, files []*descriptorpb.FileDescriptorProto) error {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(descriptor.Set(files...))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
