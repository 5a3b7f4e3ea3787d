// Package nostdlog reports imports of the standard "log" package outside
// package main. Library code logs through internal/logger.
package nostdlog

import (
	"go/ast"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var forbidden = map[string]bool{
	"log":      true,
	"log/slog": true,
}

var Analyzer = &analysis.Analyzer{
	Name: "nostdlog",
	Doc:  "prohibits the standard log packages outside package main",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() == "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		// Exclude go-build cache files
		filename := pass.Fset.File(file.Pos()).Name()
		if isGoBuildCacheFile(filename) {
			continue
		}

		checkImports(pass, file)
	}

	return nil, nil
}

func checkImports(pass *analysis.Pass, file *ast.File) {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || !forbidden[path] {
			continue
		}

		pass.Reportf(imp.Pos(), "import of %q outside package main, use internal/logger", path)
	}
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/") || strings.Contains(path, `\go-build\`)
}
