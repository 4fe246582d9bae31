package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/ghkdsigm/figma-auto/internal/cli"
)

func main() {
	ctx, cancel := cli.SignalContext(context.Background())
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	fmt.Fprintln(errOut, cli.Error(err.Error()))
	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintln(errOut, cli.Muted("hint: "+hint))
	}
	return 1
}
