package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"
)

// allowedGlobals lists package-level var names that are intentionally global
// but don't match the automated detection heuristics. Each entry documents why
// it is acceptable.
var allowedGlobals = map[string][]string{
	// resolve: re-export of the depgraph sentinel so callers can match
	// either name. Never reassigned.
	"resolve": {"ErrNodeNotFound"},
}

// allowedGlobalPrefixes lists name prefixes under which every var of a
// package is treated as constant-like.
var allowedGlobalPrefixes = map[string][]string{
	// ui: lipgloss color definitions (colorXxx) are effectively immutable;
	// styles are built per renderer in newStyles.
	"ui": {"color"},
}

// packageVar is one name declared by a package-level var.
type packageVar struct {
	name string
	file string
	typ  ast.Expr
	val  ast.Expr
}

// packageVars returns every package-level var declared in the non-test
// files of pkgDir.
func packageVars(t *testing.T, pkgDir string) []packageVar {
	t.Helper()

	var vars []packageVar
	fset := token.NewFileSet()
	for _, file := range goFilesIn(t, pkgDir) {
		node, err := parser.ParseFile(fset, file, nil, 0)
		if err != nil {
			t.Fatalf("parsing %s: %v", file, err)
		}
		for _, decl := range node.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				continue
			}
			for _, spec := range gd.Specs {
				vs := spec.(*ast.ValueSpec)
				for i, name := range vs.Names {
					v := packageVar{name: name.Name, file: filepath.Base(file), typ: vs.Type}
					if i < len(vs.Values) {
						v.val = vs.Values[i]
					}
					vars = append(vars, v)
				}
			}
		}
	}
	return vars
}

// TestNoMutableGlobalState flags package-level vars in internal packages
// that are not one of: a compile-time interface check (var _ T = ...), an
// error sentinel, a composite-literal lookup table, or an allowlisted name
// or prefix.
func TestNoMutableGlobalState(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		t.Run(pkg, func(t *testing.T) {
			t.Parallel()

			allowed := make(map[string]bool)
			for _, n := range allowedGlobals[pkg] {
				allowed[n] = true
			}
			for _, v := range packageVars(t, filepath.Join(dir, pkg)) {
				if v.name == "_" || allowed[v.name] || hasAnyPrefix(v.name, allowedGlobalPrefixes[pkg]) {
					continue
				}
				if isErrorSentinel(v.typ, v.val) {
					continue
				}
				if _, ok := v.val.(*ast.CompositeLit); ok {
					continue
				}
				t.Errorf("mutable global state in %s: var %s; use dependency injection or move to a function",
					v.file, v.name)
			}
		})
	}
}

// TestAllowedGlobalsAreUsed catches stale allowlist entries.
func TestAllowedGlobalsAreUsed(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for pkg, names := range allowedGlobals {
		t.Run(pkg, func(t *testing.T) {
			t.Parallel()

			declared := make(map[string]bool)
			for _, v := range packageVars(t, filepath.Join(dir, pkg)) {
				declared[v.name] = true
			}
			for _, name := range names {
				if !declared[name] {
					t.Errorf("allowedGlobals[%q] contains %q but no such var exists; remove the stale entry", pkg, name)
				}
			}
		})
	}
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// isErrorSentinel reports whether the var is typed error or initialised by
// errors.New or fmt.Errorf.
func isErrorSentinel(typ, val ast.Expr) bool {
	if ident, ok := typ.(*ast.Ident); ok && ident.Name == "error" {
		return true
	}
	call, ok := val.(*ast.CallExpr)
	if !ok {
		return false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && ((pkg.Name == "errors" && sel.Sel.Name == "New") ||
		(pkg.Name == "fmt" && sel.Sel.Name == "Errorf"))
}
