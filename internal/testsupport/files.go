package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with exactly size bytes. The file is sparse, so
// gigabyte-sized inputs cost nothing; a size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) string {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("size %s: %v", path, err)
	}
	return path
}

// MediaFile writes a sized input under the config's base directory.
func MediaFile(t testing.TB, baseDir, name string, size int64) string {
	t.Helper()
	return WriteFile(t, filepath.Join(baseDir, "media", name), size)
}
