package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxUniqueAttempts bounds the "name (N).ext" search.
const maxUniqueAttempts = 10000

// Taken reports whether a candidate path is already claimed by something other
// than the filesystem, such as a live job's destination.
type Taken func(path string) bool

// UniquePath returns path unchanged when neither the filesystem nor taken
// claims it; otherwise it appends " (N)" before the extension using the
// smallest free N >= 1.
func UniquePath(path string, taken Taken) (string, error) {
	if !claimed(path, taken) {
		return path, nil
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	for n := 1; n <= maxUniqueAttempts; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if !claimed(candidate, taken) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free output name for %s after %d attempts", path, maxUniqueAttempts)
}

func claimed(path string, taken Taken) bool {
	if taken != nil && taken(path) {
		return true
	}
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// DeriveOutputPath places input's stem plus suffix and ext in dir. An empty dir
// keeps the output next to the input.
func DeriveOutputPath(input, dir, suffix, ext string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if dir == "" {
		dir = filepath.Dir(input)
	}
	if ext == "" {
		ext = filepath.Ext(base)
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(dir, stem+suffix+ext)
}

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return nil
}

// RegularFileSize returns the size of path, failing when it is missing or not
// a regular file.
func RegularFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), nil
}
