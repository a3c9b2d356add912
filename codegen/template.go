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

package codegen

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var defaultTemplates embed.FS

// Names of the two template groups a Generator needs.
const (
	HeaderGroup = "header.yaml"
	SourceGroup = "source.yaml"
)

var (
	// ErrUnknownFragment is the underlying error of a GenerationError for a
	// fragment that the group does not define.
	ErrUnknownFragment = errors.New("no such fragment")
	// ErrUnboundVariable is the underlying error of a GenerationError for a
	// placeholder that was given no value.
	ErrUnboundVariable = errors.New("unbound variable")
	// ErrMalformedPlaceholder is reported when a fragment contains a "{{"
	// that does not start a valid placeholder.
	ErrMalformedPlaceholder = errors.New("malformed placeholder")
	// ErrSizeOverflow is reported for a message whose largest encoding
	// does not fit in a uint64.
	ErrSizeOverflow = errors.New("maximum encoded size does not fit in 64 bits")
)

// GenerationError is returned when a template cannot be rendered.
type GenerationError struct {
	// Template is the name of the group.
	Template string
	// Key is the fragment within the group, if known.
	Key string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("template %s: %v", e.Template, e.Err)
	}
	return fmt.Sprintf("template %s, fragment %q: %v", e.Template, e.Key, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Template is a text fragment with {{name}} placeholders. There are no
// conditionals or loops: the generator decides which fragment to use and
// renders repeated elements itself.
type Template struct {
	parts []part
}

type part struct {
	text string
	// If set, text is the name of a variable rather than literal text.
	variable bool
}

// ParseTemplate parses a fragment. A placeholder is "{{" followed by an
// identifier and "}}", with no spaces.
func ParseTemplate(text string) (*Template, error) {
	var tmpl Template
	for {
		start := strings.Index(text, "{{")
		if start < 0 {
			break
		}
		if start > 0 {
			tmpl.parts = append(tmpl.parts, part{text: text[:start]})
		}
		rest := text[start+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return nil, fmt.Errorf("%w: %q is never closed", ErrMalformedPlaceholder, abbreviate(text[start:]))
		}
		name := rest[:end]
		if !isIdent(name) {
			return nil, fmt.Errorf("%w: %q is not a valid name", ErrMalformedPlaceholder, name)
		}
		tmpl.parts = append(tmpl.parts, part{text: name, variable: true})
		text = rest[end+2:]
	}
	if text != "" {
		tmpl.parts = append(tmpl.parts, part{text: text})
	}
	return &tmpl, nil
}

func abbreviate(s string) string {
	if line, _, ok := strings.Cut(s, "\n"); ok {
		s = line
	}
	if len(s) > 20 {
		s = s[:20] + "..."
	}
	return s
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Variables returns the names of the placeholders in t, in order of first
// appearance.
func (t *Template) Variables() []string {
	var names []string
	for _, p := range t.parts {
		if p.variable && !slices.Contains(names, p.text) {
			names = append(names, p.text)
		}
	}
	return names
}

// Execute appends the rendered fragment to sb. Every placeholder must have a
// value in vars; extra values are ignored.
func (t *Template) Execute(sb *strings.Builder, vars map[string]string) error {
	for _, p := range t.parts {
		if !p.variable {
			sb.WriteString(p.text)
			continue
		}
		val, ok := vars[p.text]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnboundVariable, p.text)
		}
		sb.WriteString(val)
	}
	return nil
}

// Group is a named set of fragments, keyed by the kind of node they render.
type Group struct {
	name      string
	fragments map[string]*Template
}

// ParseGroup parses a group from YAML: a mapping from fragment key to
// fragment text.
func ParseGroup(name string, data []byte) (*Group, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &GenerationError{Template: name, Err: err}
	}
	group := &Group{name: name, fragments: make(map[string]*Template, len(raw))}
	for key, text := range raw {
		tmpl, err := ParseTemplate(text)
		if err != nil {
			return nil, &GenerationError{Template: name, Key: key, Err: err}
		}
		group.fragments[key] = tmpl
	}
	return group, nil
}

// LoadGroup reads and parses the group file with the given name from fsys.
// A file that cannot be read is reported as a *GenerationError wrapping the
// fs error.
func LoadGroup(fsys fs.FS, name string) (*Group, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, &GenerationError{Template: path.Base(name), Err: err}
	}
	return ParseGroup(path.Base(name), data)
}

// DefaultGroup returns one of the built-in groups, HeaderGroup or
// SourceGroup.
func DefaultGroup(name string) (*Group, error) {
	return LoadGroup(defaultTemplates, path.Join("templates", name))
}

// Name returns the name of the group.
func (g *Group) Name() string {
	return g.name
}

// Keys returns the fragment keys of the group, sorted.
func (g *Group) Keys() []string {
	keys := make([]string, 0, len(g.fragments))
	for key := range g.fragments {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Render renders the fragment with the given key. Errors are always of type
// *GenerationError.
func (g *Group) Render(key string, vars map[string]string) (string, error) {
	var sb strings.Builder
	if err := g.RenderTo(&sb, key, vars); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderTo is like Render, but appends the result to sb.
func (g *Group) RenderTo(sb *strings.Builder, key string, vars map[string]string) error {
	tmpl, ok := g.fragments[key]
	if !ok {
		return &GenerationError{Template: g.name, Key: key, Err: ErrUnknownFragment}
	}
	if err := tmpl.Execute(sb, vars); err != nil {
		return &GenerationError{Template: g.name, Key: key, Err: err}
	}
	return nil
}
