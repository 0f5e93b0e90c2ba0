package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// errUsage marks a command invoked with the wrong arguments.
var errUsage = errors.New("usage")

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	New(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Start(ctx context.Context, args []string) error
	Watch(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Retry(ctx context.Context, args []string) error
}

var usages = map[string]string{
	"new":    "new <course> <assignment> [file...] [-- comment]",
	"add":    "add <submission> <file>",
	"remove": "remove <item>",
	"show":   "show <submission>",
	"start":  "start <submission>",
	"watch":  "watch <submission>",
	"delete": "delete <submission>",
	"retry":  "retry <submission>",
}

// runREPL starts a read–eval–print loop for the gophsubmit CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a' with the remaining tokens. The
// loop exits on scanner EOF or when the user types "exit" or "quit".
//
// Commands:
//
//	help                 show available commands
//	new                  compose a submission from local files
//	add / remove         add a file to, or remove a file from, a submission
//	(l)ist / show        list submissions, show one with its files
//	start                start uploading in the background
//	watch                follow upload progress until the submission finishes
//	delete               delete a submission, cancelling its uploads
//	retry                copy a failed submission and start it again
//	exit | quit          leave the program
//
// Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("gs %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: new, add, remove, (l)ist, show, start, watch, delete, retry, exit")
		case "new":
			err = a.New(ctx, args)
		case "add":
			err = a.Add(ctx, args)
		case "remove":
			err = a.Remove(ctx, args)
		case "l", "list":
			err = a.List(ctx)
		case "show":
			err = a.Show(ctx, args)
		case "start":
			err = a.Start(ctx, args)
		case "watch":
			err = a.Watch(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "retry":
			err = a.Retry(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		switch {
		case errors.Is(err, errUsage):
			printlnFn("Usage:", usages[cmd])
		case err != nil:
			printlnFn("Error:", err)
		}
	}
}
