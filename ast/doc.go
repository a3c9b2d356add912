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

// Package ast defines types for modeling the AST (Abstract Syntax
// Tree) of the embedded proto source language.
//
// The tree is made of closed sets of alternatives: a [Decl] is either a
// [*MessageDecl] or an [*EnumDecl], a [TypeRef] is either a
// [*PrimitiveType] or a [*NamedType], and a [Literal] is one of the
// *Literal types. The sets are sealed with unexported marker methods, so
// consumers can switch over them exhaustively.
//
// A tree is produced once by the parser and is never modified afterwards.
// Fields are exported for convenient reading, but code outside of the parser
// must treat every node as read-only.
//
// Every node records the [SourcePos] of its first token. Positions are
// computed by a [FileInfo] as the file is scanned.
package ast
