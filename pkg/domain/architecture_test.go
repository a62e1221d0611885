package domain

import (
	"testing"

	"growcore/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(testutil.InternalImportForbidden, testutil.TransportImportForbidden),
		"domain must stay free of implementation and transport packages")
}
