package jsexec_test

import (
	"testing"

	"go.uber.org/goleak"
)

// The job executor owns a goroutine; every test must leave it stopped.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
