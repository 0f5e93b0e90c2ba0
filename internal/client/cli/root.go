package cli

import (
	"bufio"
	"context"
	"os"
)

// Root prints the banner and runs the REPL on stdin until the user exits.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to gophsubmit CLI (type 'help' for commands)")
	printlnFn("Upload session:", a.pipeline.SessionID())

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}
