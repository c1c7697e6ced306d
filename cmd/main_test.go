// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"go.uber.org/goleak"

	"github.com/duonglaiquang/htmlunit/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// execute runs a fresh command tree and returns what it printed.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Cleanup(observability.ResetForTest)

	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
