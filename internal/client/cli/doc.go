// Package cli provides the interactive gophsubmit command-line client.
//
// It wires configuration, the local SQLite store, the remote API client and
// the file-submission pipeline, then runs a REPL. Typical flow: compose a
// submission from local files, start it, and watch the uploads finish while
// the pipeline submits in the background.
//
// Key features:
//   - New / Add / Remove to compose a submission
//   - Start, Watch with live per-file progress
//   - List / Show submissions and their files
//   - Delete (cancels running uploads) and Retry of failed submissions
//
// Interrupted work from a previous run is resumed when the App starts.
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
