package mirrorwrite_test

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/ersonp/famtree/tools/famtree-lint/analyzers/mirrorwrite"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, mirrorwrite.Analyzer, "a", "services")
}
