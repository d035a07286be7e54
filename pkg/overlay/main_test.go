package overlay

// TEST TYPE: Test Main
// DEPENDENCIES: goleak
// PURPOSE: Fail the package tests if copy workers leak goroutines

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
