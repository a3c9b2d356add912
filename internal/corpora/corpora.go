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

// Package corpora runs table-driven tests whose table lives in a testdata
// directory: every input file is a case, and each expected output sits next
// to it under an added extension.
package corpora

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pmezard/go-difflib/difflib"
)

// Corpus describes a directory of test cases.
type Corpus struct {
	// Root is the directory holding the cases, relative to the file that
	// calls [Corpus.Run].
	Root string

	// Refresh names an environment variable holding a glob. Cases whose
	// path matches it have their expected outputs rewritten instead of
	// compared, and the test fails so a refresh is never mistaken for a
	// passing run.
	Refresh string

	// Extension of the input files, without the dot.
	Extension string

	// Outputs of every case. A missing output file is the same as an empty
	// one, and refreshing with an empty result deletes it.
	Outputs []Output

	// Test runs one case and returns one result per element of Outputs.
	// path is relative to the calling test file's directory.
	Test func(t *testing.T, path, text string) []string
}

// Output is one expected result of a case. For a case "foo.proto" and an
// Extension of "stderr", the expected value is read from "foo.proto.stderr".
type Output struct {
	Extension string
	// Compare defaults to an exact comparison that reports a unified diff.
	Compare Compare
}

// Compare returns the empty string if got matches want, and a description
// of the mismatch otherwise.
type Compare func(got, want string) string

// Run executes every case in the corpus as a subtest of t.
func (c Corpus) Run(t *testing.T) {
	t.Helper()
	testDir := callerDir(0)
	root := filepath.Join(testDir, c.Root)

	cases, err := c.cases(root)
	if err != nil {
		t.Fatalf("corpora: listing %q: %v", root, err)
	}
	if len(cases) == 0 {
		t.Fatalf("corpora: no *.%s files in %q", c.Extension, root)
	}

	var refresh string
	if c.Refresh != "" {
		refresh = os.Getenv(c.Refresh)
		if refresh != "" && !doublestar.ValidatePattern(refresh) {
			t.Fatalf("corpora: %s=%q is not a valid glob", c.Refresh, refresh)
		}
	}
	if refresh != "" {
		t.Logf("corpora: refreshing outputs matching %s=%s", c.Refresh, refresh)
		t.Fail()
	}

	for _, file := range cases {
		name, err := filepath.Rel(testDir, file)
		if err != nil {
			t.Fatalf("corpora: %v", err)
		}
		name = filepath.ToSlash(name)
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(file)
			if err != nil {
				t.Fatalf("corpora: reading %q: %v", file, err)
			}
			results := c.Test(t, name, string(data))
			if len(results) != len(c.Outputs) {
				t.Fatalf("corpora: test returned %d results for %d outputs", len(results), len(c.Outputs))
			}
			update := refresh != "" && doublestar.MatchUnvalidated(refresh, name)
			for i, out := range c.Outputs {
				path := file + "." + out.Extension
				if update {
					if err := write(path, results[i]); err != nil {
						t.Errorf("corpora: %v", err)
					}
					continue
				}
				if msg := out.compare(path, results[i]); msg != "" {
					t.Errorf("corpora: output mismatch for %q:\n%s", path, msg)
				}
			}
		})
	}
}

func (c Corpus) cases(root string) ([]string, error) {
	var cases []string
	ext := "." + c.Extension
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ext {
			cases = append(cases, path)
		}
		return nil
	})
	return cases, err
}

func (o Output) compare(path, got string) string {
	want, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err.Error()
	}
	cmp := o.Compare
	if cmp == nil {
		cmp = Diff
	}
	return cmp(got, string(want))
}

func write(path, result string) error {
	if result == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting %q: %w", path, err)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(result), 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

// Diff compares got and want exactly and describes a mismatch as a
// colorized unified diff.
func Diff(got, want string) string {
	if got == want {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		return err.Error()
	}
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+"):
			lines[i] = "\033[1;92m" + line + "\033[0m"
		case strings.HasPrefix(line, "-"):
			lines[i] = "\033[1;91m" + line + "\033[0m"
		}
	}
	return strings.Join(lines, "\n")
}

func callerDir(skip int) string {
	_, file, _, ok := runtime.Caller(skip + 2)
	if !ok {
		panic("corpora: could not determine the test file's directory")
	}
	return filepath.Dir(file)
}
