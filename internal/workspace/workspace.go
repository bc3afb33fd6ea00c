/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package workspace materializes a hermetic scratch copy of a project so
// mutation testing can write to source files without ever touching the
// developer's working tree.
package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pathogen-dev/pathogen/internal/log"
)

// excludedPrefixes are the name prefixes of immediate children of the
// project root that are never symlinked or copied into the scratch
// workspace; isExcluded lets the .mutations catalog directory through.
var excludedPrefixes = []string{".", "target", "tmp"}

const buildCacheDir = "build-cache"

// Builder creates and tears down the scratch workspace for a single run.
type Builder struct {
	tempDirPattern string
}

// Option configures a Builder.
type Option func(*Builder)

// WithTempDirPattern overrides the os.MkdirTemp name pattern used for the
// scratch directory. Mainly useful in tests that want a recognisable
// prefix.
func WithTempDirPattern(pattern string) Option {
	return func(b *Builder) {
		b.tempDirPattern = pattern
	}
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{tempDirPattern: "pathogen-*"}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Build materializes a scratch workspace W for the project rooted at
// projectRoot, with the subtree at src (which must be inside projectRoot)
// replaced by a writable deep copy. It returns the absolute path inside W
// that corresponds to src.
func (b *Builder) Build(projectRoot, src string) (scratchRoot, scratchSrc string, err error) {
	projectRoot, err = filepath.Abs(projectRoot)
	if err != nil {
		return "", "", fmt.Errorf("workspace: resolve project root: %w", err)
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return "", "", fmt.Errorf("workspace: resolve source dir: %w", err)
	}

	relSrc, err := filepath.Rel(projectRoot, src)
	if err != nil || strings.HasPrefix(relSrc, "..") {
		return "", "", fmt.Errorf("workspace: %q is not inside project root %q", src, projectRoot)
	}

	scratchRoot, err = os.MkdirTemp("", b.tempDirPattern)
	if err != nil {
		return "", "", fmt.Errorf("workspace: create scratch dir: %w", err)
	}

	if err := b.linkSiblings(projectRoot, scratchRoot); err != nil {
		_ = os.RemoveAll(scratchRoot)

		return "", "", err
	}

	scratchSrc = filepath.Join(scratchRoot, relSrc)

	// Step 3: whatever symlinking put at the top-level ancestor of src is
	// replaced by a real recursive copy, so the subtree can be rewritten.
	topLevel := topLevelAncestor(scratchRoot, relSrc)
	if err := b.materialize(scratchRoot, topLevel, filepath.Join(projectRoot, relTo(scratchRoot, topLevel))); err != nil {
		_ = os.RemoveAll(scratchRoot)

		return "", "", err
	}

	// Step 4: delete and recopy the exact src subtree from the pristine
	// source, guaranteeing it starts mutation-free regardless of what step 3
	// copied around it.
	if err := os.RemoveAll(scratchSrc); err != nil && !os.IsNotExist(err) {
		_ = os.RemoveAll(scratchRoot)

		return "", "", fmt.Errorf("workspace: clear %q before recopy: %w", scratchSrc, err)
	}
	if err := b.materialize(scratchRoot, scratchSrc, src); err != nil {
		_ = os.RemoveAll(scratchRoot)

		return "", "", err
	}

	return scratchRoot, scratchSrc, nil
}

// Clean removes the scratch workspace. The caller decides when to call it;
// workspaces are otherwise leaked deliberately for the process lifetime so
// in-flight workers never race a teardown.
func Clean(scratchRoot string) {
	if err := os.RemoveAll(scratchRoot); err != nil {
		log.Errorf("workspace: impossible to remove scratch dir %s: %s\n", scratchRoot, err)
	}
}

func (b *Builder) linkSiblings(projectRoot, scratchRoot string) error {
	entries, err := os.ReadDir(projectRoot)
	if err != nil {
		return fmt.Errorf("workspace: read project root: %w", err)
	}

	for _, entry := range entries {
		if isExcluded(entry.Name()) {
			continue
		}

		src := filepath.Join(projectRoot, entry.Name())
		dst := filepath.Join(scratchRoot, entry.Name())

		if err := symlinkOrCopy(src, dst); err != nil {
			return fmt.Errorf("workspace: linking %q: %w", src, err)
		}
	}

	return nil
}

func isExcluded(name string) bool {
	if name == ".mutations" {
		// The catalog loader reads the mutant catalog from the scratch root.
		return false
	}
	if name == buildCacheDir {
		return true
	}
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

func symlinkOrCopy(src, dst string) error {
	if err := os.Symlink(src, dst); err != nil {
		// Directory symlinks require elevated privilege on some hosts
		// (notably Windows without Developer Mode); fall back to a real
		// recursive copy instead of aborting the whole run.
		return deepCopy(dst, src)
	}

	return nil
}

// topLevelAncestor returns the path inside scratchRoot of the first path
// component of relSrc, i.e. the symlink (or directory) that Build's step 2
// created for the sibling containing src.
func topLevelAncestor(scratchRoot, relSrc string) string {
	parts := strings.Split(filepath.ToSlash(relSrc), "/")

	return filepath.Join(scratchRoot, parts[0])
}

func relTo(scratchRoot, path string) string {
	rel, _ := filepath.Rel(scratchRoot, path)

	return rel
}

// materialize guarantees dst is a real (non-symlink) recursive copy of src,
// replacing whatever is currently at dst. dst must lie inside root.
func (b *Builder) materialize(root, dst, src string) error {
	if !withinRoot(root, dst) {
		return fmt.Errorf("workspace: refusing to write %q outside scratch dir", dst)
	}
	if fi, err := os.Lstat(dst); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(dst); err != nil {
				return fmt.Errorf("workspace: remove symlink %q: %w", dst, err)
			}
		} else if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("workspace: remove %q before copy: %w", dst, err)
		}
	}

	return deepCopy(dst, src)
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)

	return err == nil && !strings.HasPrefix(rel, "..")
}

func deepCopy(dst, src string) error {
	return filepath.Walk(src, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.Mode().IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}

			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	s, err := os.Open(src)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer d.Close()

	_, err = io.Copy(d, s)

	return err
}
