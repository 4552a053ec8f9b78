package store_test

import (
	"testing"

	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/testutil"
)

func TestSQLiteConformance(t *testing.T) {
	testutil.RunSubstrateSuite(t, func(t testing.TB) store.Substrate {
		return testutil.OpenSQLite(t)
	})
}
