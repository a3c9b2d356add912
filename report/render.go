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

package report

import (
	"bytes"
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bufbuild/protoembed/internal/width"
)

// TabstopWidth is the size we render all tabstops as.
const TabstopWidth int = 4

// Render renders this diagnostic report in a format suitable for showing to a user.
func (r *Report) Render(style Style) string {
	var out strings.Builder
	for i := range *r {
		out.WriteString((*r)[i].Render(style))
		out.WriteString("\n")
		if style != Simple {
			out.WriteString("\n")
		}
	}
	if style == Simple {
		return out.String()
	}

	var color color
	if style == Colored {
		color = ansiColor()
	}

	pluralize := func(count int, what string) string {
		if count == 1 {
			return "1 " + what
		}
		return fmt.Sprint(count, " ", what, "s")
	}

	errs, warnings := r.Counts()
	if errs > 0 {
		fmt.Fprint(&out, color.bRed, "encountered ", pluralize(errs, "error"))
		if warnings > 0 {
			fmt.Fprint(&out, " and ", pluralize(warnings, "warning"))
		}
		fmt.Fprintln(&out, color.reset)
	} else if warnings > 0 {
		fmt.Fprint(&out, color.bYellow, "encountered ", pluralize(warnings, "warning"))
		fmt.Fprintln(&out, color.reset)
	}

	return out.String()
}

// Render renders this diagnostic in a format suitable for showing to a user.
func (d *Diagnostic) Render(style Style) string {
	var level string
	switch d.Level {
	case Error:
		level = "error"
	case Warning:
		level = "warning"
	}

	// For the simple style, we imitate the Go compiler.
	if style == Simple {
		pos := d.Primary()
		if pos.Filename == "" {
			pos.Filename = "<unknown>"
		}
		return fmt.Sprintf("%s: %s: %s", level, pos, d.Message())
	}

	// For the other styles, we imitate the Rust compiler.
	var color color
	if style == Colored {
		color = ansiColor()
	}

	var out strings.Builder
	fmt.Fprint(&out, color.BoldForLevel(d.Level), level, ": ", d.Message(), color.reset)

	// The line bar is as wide as the largest line number shown.
	var greatestLine int
	for _, snip := range d.snippets {
		greatestLine = max(greatestLine, snip.pos.Line)
	}
	lineBarWidth := max(2, len(fmt.Sprint(greatestLine)))
	bar := strings.Repeat(" ", lineBarWidth)

	for i, snippets := range partition(d.snippets, func(a, b *snippet) bool { return a.pos.Filename != b.pos.Filename }) {
		arrow := ":::"
		if i == 0 {
			arrow = "-->"
		}
		fmt.Fprintf(&out, "\n%s%s%s %s", color.nBlue, bar, arrow, snippets[0].pos)
		fmt.Fprintf(&out, "\n%s |", bar)
		renderWindow(d.Level, snippets, lineBarWidth, &color, &out)
		out.WriteString(color.reset)
	}

	// Render a remedial file name for snippetless errors.
	if pos := d.Primary(); len(d.snippets) == 0 && pos.Filename != "" {
		fmt.Fprintf(&out, "\n%s%s--> %s%s", color.nBlue, bar, pos, color.reset)
	}

	var footers [][2]string
	for _, note := range d.notes {
		footers = append(footers, [2]string{"note", note})
	}
	for _, help := range d.help {
		footers = append(footers, [2]string{"help", help})
	}
	for i, frame := range d.trace {
		if debugMode < debugFull && i > 0 {
			break
		}
		footers = append(footers, [2]string{"debug", fmt.Sprintf("at %s", frame.Function)})
		footers = append(footers, [2]string{"debug", fmt.Sprintf("   %s:%d", frame.File, frame.Line)})
	}
	for _, footer := range footers {
		fmt.Fprintf(&out, "\n%s%s = %s%s: %s%s", color.nBlue, bar, color.bCyan, footer[0], color.reset, footer[1])
	}

	return out.String()
}

// renderWindow prints every line that has a snippet on it, in line order,
// followed by one underline row per snippet.
func renderWindow(level Level, snippets []snippet, lineBarWidth int, color *color, out *strings.Builder) {
	snippets = slices.Clone(snippets)
	slices.SortStableFunc(snippets, func(a, b snippet) int {
		if a.pos.Line != b.pos.Line {
			return a.pos.Line - b.pos.Line
		}
		return a.pos.Offset - b.pos.Offset
	})

	prevLine := 0
	for _, line := range partition(snippets, func(a, b *snippet) bool { return a.pos.Line != b.pos.Line }) {
		lineno := line[0].pos.Line
		if prevLine != 0 && lineno > prevLine+1 {
			fmt.Fprintf(out, "\n%s%*s ~", color.bBlue, lineBarWidth, "")
		}
		prevLine = lineno

		_, text := line[0].lineText()
		fmt.Fprintf(out, "\n%s%*d |%s", color.nBlue, lineBarWidth, lineno, color.reset)
		if text != "" {
			out.WriteString(" ")
			out.WriteString(width.Expand(text, TabstopWidth))
		}

		for _, snip := range line {
			start, length := snip.extent(text)
			lvl := note
			mark := "-"
			if snip.primary {
				lvl = level
				mark = "^"
			}
			fmt.Fprintf(out, "\n%s%*s | %s%s%s",
				color.nBlue, lineBarWidth, "",
				strings.Repeat(" ", start), color.BoldForLevel(lvl), strings.Repeat(mark, length))
			if snip.message != "" {
				out.WriteString(" ")
				out.WriteString(snip.message)
			}
			out.WriteString(color.reset)
		}
	}
}

// lineText returns the offset at which the snippet's line starts, and the
// text of that line without its terminator. It only needs the file's
// contents, so it works for files that were not completely scanned.
func (s snippet) lineText() (int, string) {
	data := s.file.Data()
	off := min(s.pos.Offset, len(data))
	start := bytes.LastIndexByte(data[:off], '\n') + 1
	end := start + bytes.IndexByte(data[start:], '\n')
	if end < start {
		end = len(data)
	}
	return start, strings.TrimSuffix(string(data[start:end]), "\r")
}

// extent returns the display column (zero-based) at which the snippet
// starts within text, and the display width of the token found there.
func (s snippet) extent(text string) (start, length int) {
	lineStart, _ := s.lineText()
	col := min(s.pos.Offset-lineStart, len(text))

	start = width.Width(text[:col], TabstopWidth)
	tok := tokenAt(text[col:])
	return start, max(1, width.Advance(start, tok, TabstopWidth)-start)
}

// tokenAt returns the token at the start of text: a word, a quoted string,
// or a single character.
func tokenAt(text string) string {
	if text == "" {
		return ""
	}
	switch c := text[0]; {
	case isWordByte(c):
		end := 1
		for end < len(text) && isWordByte(text[end]) {
			end++
		}
		return text[:end]
	case c == '"' || c == '\'':
		for i := 1; i < len(text); i++ {
			switch text[i] {
			case '\\':
				i++
			case c:
				return text[:i+1]
			}
		}
		return text
	default:
		_, n := utf8.DecodeRuneInString(text)
		return text[:n]
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// color is the colors used for pretty-rendering diagnostics.
type color struct {
	reset string
	// Normal colors.
	nBlue string
	// Bold colors.
	bRed, bYellow, bCyan, bBlue string
}

func ansiColor() color {
	return color{
		reset:   "\033[0m",
		nBlue:   "\033[0;34m",
		bRed:    "\033[1;31m",
		bYellow: "\033[1;33m",
		bCyan:   "\033[1;36m",
		bBlue:   "\033[1;34m",
	}
}

func (c color) BoldForLevel(l Level) string {
	switch l {
	case Error:
		return c.bRed
	case Warning:
		return c.bYellow
	case note:
		return c.bBlue
	default:
		return ""
	}
}

// partition returns an iterator of subslices of s such that each yielded
// slice is delimited according to delimit. Also yields the starting index of
// the subslice.
//
// In other words, suppose delimit is !=. Then, the slice [a a a b c c] is yielded
// as the subslices [a a a], [b], and [c c].
//
// Will never yield an empty slice.
func partition[T any](s []T, delimit func(a, b *T) bool) iter.Seq2[int, []T] {
	return func(yield func(int, []T) bool) {
		var start int
		for i := 1; i < len(s); i++ {
			if delimit(&s[i-1], &s[i]) {
				if !yield(start, s[start:i]) {
					return
				}
				start = i
			}
		}
		rest := s[start:]
		if len(rest) > 0 {
			yield(start, rest)
		}
	}
}
