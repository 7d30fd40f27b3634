// Package loopcall detects single-row store lookups inside loops.
package loopcall

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer detects store lookups inside loops that have a batch form.
var Analyzer = &analysis.Analyzer{
	Name:     "loopcall",
	Doc:      "detects single-row store lookups inside loops that should use the batch query",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// batchOf maps a single-row store method to its batch replacement.
var batchOf = map[string]string{
	"FindPersonByID":          "FindPersonsByIDs",
	"FindConnectionsByPerson": "FindConnectionsAmong",
	"FindConnectionsBetween":  "FindConnectionsAmong",
	"TreeMemberIDs":           "a single FindConnectionsAmong",
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.RangeStmt)(nil),
		(*ast.ForStmt)(nil),
	}

	insp.Preorder(nodeFilter, func(n ast.Node) {
		var body *ast.BlockStmt
		switch stmt := n.(type) {
		case *ast.RangeStmt:
			body = stmt.Body
		case *ast.ForStmt:
			body = stmt.Body
		}
		if body == nil {
			return
		}

		ast.Inspect(body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			if batch, ok := batchOf[sel.Sel.Name]; ok {
				pass.Reportf(call.Pos(),
					"potential N+1: %s called inside loop - consider %s",
					sel.Sel.Name, batch)
			}
			return true
		})
	})

	return nil, nil
}
