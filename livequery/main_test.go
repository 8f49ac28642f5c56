package livequery

import (
	"os"
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that every background goroutine this package spawns
// (one per New call's underlying collection.Collection sync driver) has
// exited by the time the test binary finishes, the same way
// block-spirit's package tests guard their own long-lived workers.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}
