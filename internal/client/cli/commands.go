package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophsubmit/internal/client/filesubmission"
)

// New composes a pending submission: new <course> <assignment> [file...] [-- comment].
func (a *App) New(ctx context.Context, args []string) error {
	var comment string
	for i, arg := range args {
		if arg == "--" {
			comment = strings.Join(args[i+1:], " ")
			args = args[:i]
			break
		}
	}
	if len(args) < 2 {
		return errUsage
	}

	s, err := a.composer.MakeNewSubmission(ctx, args[0], args[1], comment, args[2:])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created submission %s with %d file(s)\n", s.ID, len(s.Items))
	return nil
}

func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	item, err := a.composer.AddItem(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s as item %s\n", item.FileName, item.ID)
	return nil
}

func (a *App) Remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := a.composer.DeleteItem(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Removed item", args[0])
	return nil
}

func (a *App) List(ctx context.Context) error {
	list, err := a.composer.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No submissions")
		return nil
	}
	for _, s := range list {
		fmt.Fprintln(a.out, formatSubmission(s))
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s, err := a.composer.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, joinLines(renderSubmission(s)))
	return nil
}

// Start runs the submission in the background; use Watch to follow it.
func (a *App) Start(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s, err := a.composer.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if s.State.IsTerminal() {
		return fmt.Errorf("%w: submission is %s", filesubmission.ErrInvalidState, s.State)
	}

	a.pipeline.Start(s.ID)
	fmt.Fprintln(a.out, "Started submission", s.ID)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := a.pipeline.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted submission", args[0])
	return nil
}

// Retry copies a failed submission into a new one and starts it.
func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s, err := a.composer.CloneForRetry(ctx, args[0])
	if err != nil {
		return err
	}
	a.pipeline.Start(s.ID)
	fmt.Fprintln(a.out, "Started submission", s.ID, "as a retry of", args[0])
	return nil
}
