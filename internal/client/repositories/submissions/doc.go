// Package submissions provides the client-side persistence of Submission
// records: identity, course/assignment, state and the submit trigger flag.
//
// # Overview
//
// The Repository interface is implemented by SQLiteRepository over a
// dbx.DBTX (*sql.DB or *sql.Tx). File items owned by a submission live in
// the sibling files package; GetByID loads them in position order so callers
// see one consistent snapshot when it runs inside a transaction.
//
// # State transitions
//
// Transition only moves a submission out of one of the listed source states,
// which keeps terminal states terminal. TriggerSubmit is a compare-and-swap
// on submit_triggered: exactly one caller ever gets true for a submission.
//
// Typical Usage
//
//	repo := submissions.NewSQLiteRepository(tx)
//	_ = repo.Create(ctx, s)
//	ok, _ := repo.Transition(ctx, id, models.StateUploading, "", models.StatePendingTargets)
//	won, _ := repo.TriggerSubmit(ctx, id)
package submissions
