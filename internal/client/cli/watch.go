package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/client/filesubmission"
	"golang.org/x/term"
)

// isTerminal reports whether output can be redrawn in place. Test seam.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Watch prints the submission and refreshes it on every pipeline event and
// every WatchInterval until it reaches a terminal state. Ctrl-C stops
// watching without stopping the uploads.
func (a *App) Watch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id := args[0]

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	wake := make(chan struct{}, 1)
	unsubscribe := a.pipeline.Subscribe(func(e filesubmission.Event) {
		if e.SubmissionID != id {
			return
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	interval := a.config.WatchInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	inPlace := isTerminal()
	var prev []string
	for {
		s, err := a.composer.Get(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		lines := renderSubmission(s)
		if !slices.Equal(lines, prev) {
			if inPlace && prev != nil {
				// move up over the previous frame and clear it
				fmt.Fprintf(a.out, "\033[%dA\033[J", len(prev))
			}
			fmt.Fprintln(a.out, joinLines(lines))
			prev = lines
		}

		if s.State.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(a.out, "Stopped watching", id)
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}
