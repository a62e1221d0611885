package core

import (
	"testing"

	"growcore/testutil"
)

func TestCoreDoesNotImportAdapters(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(testutil.AdapterImportForbidden, testutil.TransportImportForbidden),
		"core is driven by adapters, never the reverse")
}
