// Package filesubmission runs a file submission in the background: it fetches
// upload targets, uploads every file on a transport session, tracks each
// upload with an Observer and submits the uploaded file ids once every upload
// has finished.
//
// # Flow
//
//	Assembly.Start -> TargetsRequester -> UploadStarter -> transport tasks
//	  each task reports to its Observer (progress, body, completion)
//	  Observer completion -> AllFinished -> submit trigger (CAS) -> Submitter
//
// The SQLite store is the single source of truth. Components keep no state
// of their own apart from in-flight observers, so the UI reads progress and
// results from the store or subscribes to Events.
//
// # Submission states
//
//	pending_targets -> uploading -> submitting -> completed | failed
//
// A submission without files skips uploading. failed is terminal; a retry is
// a new submission created by Composer.CloneForRetry.
//
// # Concurrency
//
// Completions of sibling uploads arrive concurrently. The all-finished check
// and the submit trigger run in one transaction on the single store
// connection, and the trigger is a compare-and-swap, so at most one caller
// ever runs Submitter for a submission.
package filesubmission
