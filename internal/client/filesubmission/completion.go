package filesubmission

import (
	"context"

	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
)

// AllFinished reports whether every item of the submission has a result.
// A submission without items is finished. Run it on the transaction that
// acts on the answer to get a consistent snapshot.
func AllFinished(ctx context.Context, db dbx.DBTX, submissionID string) (bool, error) {
	s, err := submissions.NewSQLiteRepository(db).GetByID(ctx, submissionID)
	if err != nil {
		return false, err
	}
	for _, item := range s.Items {
		if !item.IsFinished() {
			return false, nil
		}
	}
	return true, nil
}
