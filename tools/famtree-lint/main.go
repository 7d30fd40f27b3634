// famtree-lint checks famtree code for store access patterns.
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/ersonp/famtree/tools/famtree-lint/analyzers"
)

func main() {
	multichecker.Main(analyzers.All()...)
}
