package arch_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// docExemptions lists, per package, exported symbols allowed to go without
// GoDoc. Every entry needs a comment saying why.
var docExemptions = map[string][]string{}

// TestExportedSymbolsHaveGoDoc checks that every exported symbol in
// internal packages has a GoDoc comment starting with its name.
func TestExportedSymbolsHaveGoDoc(t *testing.T) {
	t.Parallel()

	root := repoRoot(t)
	for _, pkg := range internalPackages(t) {
		t.Run(pkg, func(t *testing.T) {
			t.Parallel()

			exempt := make(map[string]bool)
			for _, sym := range docExemptions[pkg] {
				exempt[sym] = true
			}
			for _, file := range goFilesIn(t, filepath.Join(internalDirPath(t), pkg)) {
				if isGeneratedFile(t, file) {
					continue
				}
				rel, _ := filepath.Rel(root, file)
				for _, sym := range exportedSymbols(t, file) {
					if !sym.Documented && !exempt[sym.Name] {
						t.Errorf("%s:%d: exported %s %s has no GoDoc comment", rel, sym.Line, sym.Kind, sym.Name)
					}
				}
			}
		})
	}
}

// isGeneratedFile reports whether the file carries a "Code generated" header.
func isGeneratedFile(t *testing.T, filePath string) bool {
	t.Helper()

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("reading %s: %v", filePath, err)
	}
	head := string(data[:min(len(data), 500)])
	return strings.Contains(head, "Code generated")
}
