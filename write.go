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
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bufbuild/protoembed/codegen"
)

type stagedFile struct {
	target string
	tmp    string
	// backup holds the file target replaced, if there was one.
	backup  string
	renamed bool
}

// WriteArtifacts writes the header and source in a to dir. Each is first
// written to a temporary file in dir; only once both are complete are they
// renamed into place. If either cannot be put in place, dir is restored to
// what it held before: files that were replaced are moved back and new ones
// are removed, along with every temporary file.
func WriteArtifacts(dir string, a *Artifacts) (err error) {
	files := []codegen.Artifact{a.Header, a.Source}
	staged := make([]stagedFile, 0, len(files))
	defer func() {
		if err != nil {
			rollback(staged)
			return
		}
		for _, s := range staged {
			if s.backup != "" {
				_ = os.Remove(s.backup)
			}
		}
	}()

	for _, f := range files {
		s := stagedFile{target: filepath.Join(dir, f.Path)}
		if s.tmp, err = writeTemp(dir, f); err != nil {
			return err
		}
		staged = append(staged, s)
	}
	for i := range staged {
		s := &staged[i]
		if s.backup, err = backup(dir, s.target); err != nil {
			return err
		}
		if err = os.Rename(s.tmp, s.target); err != nil {
			return err
		}
		s.renamed = true
	}
	return nil
}

// rollback undoes a partial WriteArtifacts, last file first.
func rollback(staged []stagedFile) {
	for i := len(staged) - 1; i >= 0; i-- {
		s := staged[i]
		switch {
		case !s.renamed:
			_ = os.Remove(s.tmp)
		case s.backup == "":
			_ = os.Remove(s.target)
		}
		if s.backup != "" {
			_ = os.Rename(s.backup, s.target)
		}
	}
}

// backup moves the regular file at target aside and returns its new name,
// or "" if there is no such file.
func backup(dir, target string) (string, error) {
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", nil
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.bak")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	if err := os.Rename(target, name); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func writeTemp(dir string, f codegen.Artifact) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+f.Path+".*.tmp")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	_, err = tmp.WriteString(f.Text)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(name, 0o644)
	}
	if err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}
