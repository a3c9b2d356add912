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

// Package parser contains the logic for turning embedded proto source code
// into an AST (abstract syntax tree).
//
// A [Scanner] produces tokens lazily from the raw text, and [Parse] consumes
// them with a recursive-descent parser. Neither recovers from errors: the
// first unrecognized lexeme is reported as a [*LexError], and the first
// unexpected token as a [*SyntaxError] listing the tokens that would have
// been accepted. Both carry the source position of the problem.
//
// The parser checks only the grammar. Whether names resolve, tags are
// unique and so on is the job of the checker package.
package parser
