// Package sandbox confines client-supplied paths to the configured root.
//
// A relative path is always interpreted under the root. An absolute path is
// not a foreign location: its leading separator is stripped and it is
// resolved as root-relative, so "/2024/trip" and "2024/trip" are the same
// directory. Any path that would resolve outside the root, for example via
// ".." segments, fails with an InvalidPath error and is never resolved.
//
// Sandbox.ToAbsolute also follows symlinks on the part of the path that
// exists: a link inside the root pointing outside it is rejected, links that
// stay under the root are fine.
package sandbox

import (
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
)

// Sandbox resolves paths under a fixed root.
type Sandbox struct {
	root string
	// real is root with symlinks resolved.
	real string
}

// New creates a Sandbox for root. The root is made absolute and cleaned.
func New(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.IO("sandbox root", root, err)
	}
	abs = filepath.Clean(abs)

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		real = abs
	}
	return &Sandbox{root: abs, real: real}, nil
}

// Root returns the absolute root.
func (s *Sandbox) Root() string {
	return s.root
}

// ToAbsolute resolves a root-relative path. The lexical path is returned;
// it is only accepted when its symlink-resolved form is under the root too.
func (s *Sandbox) ToAbsolute(relative string) (string, error) {
	joined, err := ToAbsolute(s.root, relative)
	if err != nil {
		return "", err
	}
	if !within(s.real, resolveExisting(joined)) {
		return "", apperrors.InvalidPath("resolve", relative, "path escapes root through a symlink")
	}
	return joined, nil
}

// ToRelative converts an absolute path under the root back to its
// slash-separated root-relative form.
func (s *Sandbox) ToRelative(absolute string) (string, error) {
	return ToRelative(s.root, absolute)
}

// ToAbsolute joins relative under root.
func ToAbsolute(root, relative string) (string, error) {
	if strings.ContainsRune(relative, 0) {
		return "", apperrors.InvalidPath("resolve", relative, "path contains NUL byte")
	}

	rel := filepath.FromSlash(relative)
	rel = strings.TrimLeft(rel, string(os.PathSeparator)+"/")
	if vol := filepath.VolumeName(rel); vol != "" {
		return "", apperrors.InvalidPath("resolve", relative, "path names a volume")
	}

	root = filepath.Clean(root)
	joined := filepath.Join(root, rel)

	if !within(root, joined) {
		return "", apperrors.InvalidPath("resolve", relative, "path escapes root")
	}
	return joined, nil
}

// ToRelative strips root from absolute.
func ToRelative(root, absolute string) (string, error) {
	if !filepath.IsAbs(absolute) {
		return "", apperrors.InvalidPath("relativize", absolute, "path is not absolute")
	}

	root = filepath.Clean(root)
	absolute = filepath.Clean(absolute)
	if !within(root, absolute) {
		return "", apperrors.InvalidPath("relativize", absolute, "path is not inside root")
	}

	rel, err := filepath.Rel(root, absolute)
	if err != nil {
		return "", apperrors.InvalidPath("relativize", absolute, err.Error())
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// within reports whether the cleaned path p equals root or lies below it.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// resolveExisting evaluates symlinks in the longest existing prefix of p and
// appends the missing remainder unchanged.
func resolveExisting(p string) string {
	for q := p; ; {
		if r, err := filepath.EvalSymlinks(q); err == nil {
			rest, err := filepath.Rel(q, p)
			if err != nil {
				return p
			}
			return filepath.Join(r, rest)
		}
		parent := filepath.Dir(q)
		if parent == q {
			return p
		}
		q = parent
	}
}
