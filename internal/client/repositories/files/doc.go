// Package files provides the client-side persistence of FileItem records:
// the files belonging to a submission and their upload progress and result.
//
// # Overview
//
// SQLiteRepository persists items via a dbx.DBTX (*sql.DB or *sql.Tx).
// Writes coming from upload callbacks are guarded in SQL:
//
//   - progress never decreases (MAX of stored and reported bytes);
//   - progress is ignored once the item has a result;
//   - a result (api id or upload error) is written at most once.
//
// Updates against a missing item return models.ErrNotFound, which is how a
// late callback learns that its item was deleted.
//
// Typical Usage
//
//	repo := files.NewSQLiteRepository(db)
//	_ = repo.Add(ctx, item)
//	_ = repo.UpdateProgress(ctx, item.ID, sent, total)
//	ok, _ := repo.SetSucceeded(ctx, item.ID, apiID)
package files
