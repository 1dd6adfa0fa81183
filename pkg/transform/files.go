package transform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// Path errors.
var (
	ErrEmptyPath       = errors.New("path is empty")
	ErrPathContainsNUL = errors.New("path contains NUL byte")
	ErrDirectoryPath   = errors.New("path points to a directory")
)

// DefaultExtensions are the source extensions collected from directories.
var DefaultExtensions = []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx"}

// skippedDirs are never descended into.
var skippedDirs = []string{"node_modules", "bower_components", "dist", "tmp"}

// ParseSize reads a human size such as "1MB" or "512KiB".
func ParseSize(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", raw, err)
	}

	return int64(size), nil //nolint:gosec // sizes above MaxInt64 are not meaningful here.
}

// Collect expands roots into source files: files are kept as given,
// directories are walked for files with one of extensions. Hidden and
// dependency directories are skipped. The result is sorted.
func Collect(roots, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	var files []string

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			files = append(files, root)

			continue
		}

		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			if entry.IsDir() {
				if path != root && skipDir(entry.Name()) {
					return filepath.SkipDir
				}

				return nil
			}

			if slices.Contains(extensions, strings.ToLower(filepath.Ext(path))) {
				files = append(files, path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	slices.Sort(files)

	return slices.Compact(files), nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || slices.Contains(skippedDirs, name)
}

// ReadFile reads a user-supplied path after normalizing and checking it.
// A positive maxSize rejects larger files before reading them.
func ReadFile(path string, maxSize int64) ([]byte, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", resolved, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryPath, resolved)
	}

	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%s: %w (%s > %s)", path, ErrTooLarge,
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(maxSize))) //nolint:gosec // sizes are positive.
	}

	//nolint:gosec // resolved is cleaned and type checked above.
	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resolved, err)
	}

	return content, nil
}

// WriteFile replaces path with content, keeping its permissions.
func WriteFile(path string, content []byte) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("stat %s: %w", resolved, err)
	}

	err = os.WriteFile(resolved, content, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("write %s: %w", resolved, err)
	}

	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("%w: %q", ErrPathContainsNUL, path)
	}

	resolved, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}

	return resolved, nil
}
