// Package mirrorwrite reports connection writes that bypass the services
// package. Writing a connection row directly skips its reciprocal row.
package mirrorwrite

import (
	"go/ast"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports raw connection writes outside the packages that own them.
var Analyzer = &analysis.Analyzer{
	Name:     "mirrorwrite",
	Doc:      "reports connection store writes outside the services and store packages",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var writeMethods = map[string]bool{
	"InsertConnection":          true,
	"UpdateConnection":          true,
	"DeleteConnection":          true,
	"DeleteConnectionsByPerson": true,
}

// allowedPackages may write connection rows directly.
var allowedPackages = map[string]bool{
	"services": true,
	"sqlite":   true,
	"postgres": true,
	"mocks":    true,
}

func run(pass *analysis.Pass) (any, error) {
	if allowedPackages[strings.TrimSuffix(pass.Pkg.Name(), "_test")] {
		return nil, nil
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !writeMethods[sel.Sel.Name] {
			return
		}
		if strings.HasSuffix(pass.Fset.Position(call.Pos()).Filename, "_test.go") {
			return
		}
		pass.Reportf(call.Pos(),
			"%s writes a connection row directly - go through ConsistencyEngine so the reciprocal row follows",
			sel.Sel.Name)
	})

	return nil, nil
}
