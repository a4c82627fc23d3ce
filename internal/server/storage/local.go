package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/propertyhub/docgate/internal/common"
	"github.com/propertyhub/docgate/internal/filex"
)

// LocalBackend stores artifacts under a fixed root directory, one
// subdirectory per owner namespace. File names embed a timestamp and a
// random suffix so concurrent uploads never collide and caller-supplied
// names are never trusted for the on-disk name.
type LocalBackend struct {
	root string
}

// NewLocalBackend returns a backend rooted at root. The root is resolved to
// an absolute path once; every read is checked against it.
func NewLocalBackend(root string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	if err := filex.EnsureDir(abs); err != nil {
		return nil, err
	}
	return &LocalBackend{root: abs}, nil
}

// Root returns the absolute uploads root.
func (b *LocalBackend) Root() string { return b.root }

// Store writes req.Content under the owner's namespace and returns the
// relative path to persist. A name collision is retried once with a fresh
// suffix; a second collision signals a broken entropy source and is fatal.
func (b *LocalBackend) Store(req *UploadRequest) (string, error) {
	if req.OwnerID == "" {
		return "", fmt.Errorf("%w: missing owner id", common.ErrValidation)
	}

	ownerSegment := sanitizeSegment(req.OwnerID)
	dir := filepath.Join(b.root, ownerSegment)
	if err := filex.EnsureDir(dir); err != nil {
		return "", err
	}

	ext := safeExtension(req.FileName)
	for attempt := 0; attempt < 2; attempt++ {
		name, err := generatedName(ext)
		if err != nil {
			return "", err
		}
		path := filepath.Join(dir, name)

		if _, err := os.Stat(path); err == nil {
			// collision: regenerate the suffix exactly once
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}

		if err := filex.WriteFileAtomic(path, req.Content, 0o640); err != nil {
			return "", err
		}
		return filepath.ToSlash(filepath.Join(ownerSegment, name)), nil
	}

	return "", fmt.Errorf("file name collided twice under %s: entropy source broken", dir)
}

// Open resolves relativePath under the root and returns the file content.
// Traversal attempts yield ErrInvalidPath without touching the filesystem;
// a missing file yields ErrNotFound.
func (b *LocalBackend) Open(relativePath string) (io.ReadCloser, error) {
	abs, err := b.Resolve(relativePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}
	return f, nil
}

// Resolve turns a stored relative path into an absolute path strictly under
// the root. The containment check runs on the resolved absolute form, after
// cleaning ".." components and following symlinks, never on the raw text.
func (b *LocalBackend) Resolve(relativePath string) (string, error) {
	if relativePath == "" || filepath.IsAbs(relativePath) {
		return "", common.ErrInvalidPath
	}

	abs := filepath.Join(b.root, filepath.FromSlash(relativePath))
	// filepath.Join cleans "..": a path escaping the root no longer has
	// the root as prefix afterwards.
	if !b.underRoot(abs) {
		return "", common.ErrInvalidPath
	}

	// Follow symlinks before the final containment check so a link inside
	// the root cannot alias a file outside it.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("resolve %s: %w", abs, err)
	}

	rootResolved, err := filepath.EvalSymlinks(b.root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", b.root, err)
	}
	if !strings.HasPrefix(resolved, rootResolved+string(filepath.Separator)) {
		return "", common.ErrInvalidPath
	}

	return resolved, nil
}

func (b *LocalBackend) underRoot(abs string) bool {
	return strings.HasPrefix(abs, b.root+string(filepath.Separator))
}

// sanitizeSegment reduces an owner identifier to a single flat path
// segment: path separators and dot-runs cannot survive.
func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.Trim(s, ".")
	if s == "" {
		s = "_"
	}
	return s
}

// safeExtension extracts a short, separator-free extension from the
// caller-supplied name; anything suspicious is dropped.
func safeExtension(fileName string) string {
	ext := filepath.Ext(filepath.Base(fileName))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}

// generatedName builds a collision-resistant file name: nanosecond
// timestamp, 8 random bytes, original extension.
func generatedName(ext string) (string, error) {
	suffix, err := common.MakeRandHexString(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), suffix, ext), nil
}
