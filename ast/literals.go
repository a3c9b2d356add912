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

package ast

import (
	"math"
	"strconv"
)

// Literal is a constant value in an option: one of *IntLiteral,
// *FloatLiteral, *StringLiteral or *IdentLiteral.
type Literal interface {
	Node
	// String renders the literal the way it would be written in source.
	String() string
	isLiteral()
}

var (
	_ Literal = (*IntLiteral)(nil)
	_ Literal = (*FloatLiteral)(nil)
	_ Literal = (*StringLiteral)(nil)
	_ Literal = (*IdentLiteral)(nil)
)

// IntLiteral is an integer constant. Tags and enum numbers are never
// negative; option values may be.
type IntLiteral struct {
	Pos      SourcePos
	Value    uint64
	Negative bool
}

func (l *IntLiteral) Start() SourcePos { return l.Pos }
func (*IntLiteral) isLiteral()         {}

func (l *IntLiteral) String() string {
	s := strconv.FormatUint(l.Value, 10)
	if l.Negative {
		return "-" + s
	}
	return s
}

// Int64 returns the literal as a signed value, reporting false if it does
// not fit.
func (l *IntLiteral) Int64() (int64, bool) {
	if l.Negative {
		if l.Value > math.MaxInt64+1 {
			return 0, false
		}
		return -int64(l.Value), true //nolint:gosec // range checked above
	}
	if l.Value > math.MaxInt64 {
		return 0, false
	}
	return int64(l.Value), true
}

// Float returns the literal as a floating point value.
func (l *IntLiteral) Float() float64 {
	f := float64(l.Value)
	if l.Negative {
		return -f
	}
	return f
}

// FloatLiteral is a floating point constant.
type FloatLiteral struct {
	Pos   SourcePos
	Value float64
}

func (l *FloatLiteral) Start() SourcePos { return l.Pos }
func (*FloatLiteral) isLiteral()         {}

func (l *FloatLiteral) String() string {
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

// StringLiteral is a quoted string constant, with escapes already
// interpreted.
type StringLiteral struct {
	Pos   SourcePos
	Value string
}

func (l *StringLiteral) Start() SourcePos { return l.Pos }
func (*StringLiteral) isLiteral()         {}

func (l *StringLiteral) String() string {
	return strconv.Quote(l.Value)
}

// IdentLiteral is a bare identifier used as a value, such as true, false,
// inf, nan, or the name of an enum member.
type IdentLiteral struct {
	Ident
}

func (*IdentLiteral) isLiteral() {}
