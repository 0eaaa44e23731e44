package arch_test

import (
	"path/filepath"
	"testing"
)

const (
	maxFilesPerPackage = 12
	maxLinesPerFile    = 400
)

// TestPackageFileCount keeps each package small enough to read in one sitting.
func TestPackageFileCount(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		if n := len(goFilesIn(t, filepath.Join(dir, pkg))); n > maxFilesPerPackage {
			t.Errorf("package %s has %d .go files (limit: %d); consider splitting", pkg, n, maxFilesPerPackage)
		}
	}
}

// TestFileLineCount checks every .go file under internal, tests included.
func TestFileLineCount(t *testing.T) {
	t.Parallel()

	root := repoRoot(t)
	files, err := filepath.Glob(filepath.Join(internalDirPath(t), "*", "*.go"))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if isGeneratedFile(t, f) {
			continue
		}
		if n := lineCount(t, f); n > maxLinesPerFile {
			rel, _ := filepath.Rel(root, f)
			t.Errorf("%s has %d lines (limit: %d); consider decomposing", rel, n, maxLinesPerFile)
		}
	}
}
