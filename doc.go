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

// Package protoembed compiles protocol buffer schemas into C code for
// embedded targets: fixed-size structs with no dynamic allocation, plus
// functions to encode and decode them in the protobuf wire format.
//
// The various sub-packages represent the compile phases and contain the
// models for the intermediate results. Those phases follow:
//  1. Parse into an AST.
//     Also see: parser.Parse
//  2. Check the AST for constraint violations and compute the order in
//     which its types must be declared.
//     Also see: checker.Check
//  3. Render the header and source from template groups.
//     Also see: codegen.Generator
//
// This package provides an easy-to-use interface that runs every phase. The
// simplest entry point is [Compile], which turns the text of one schema into
// a header and source. A [Compiler] adds options, and can compile many files
// in parallel with [Compiler.CompileFiles].
//
// # Resolvers
//
// A [Resolver] is how the compiler locates the files it is asked to compile.
// A resolver can answer with source code, which the compiler will parse, or
// with an already parsed AST. The [SourceResolver] reads files from disk,
// searching a list of import paths.
//
// # Output
//
// Both artifacts of a file are rendered in memory before anything is written.
// [WriteArtifacts] then writes them through temporary files that are renamed
// into place, so a failed compile never leaves a partial header or source
// behind.
package protoembed
