// Package storage provides SQLite persistence for pipeline progress and output.
//
// # Database Schema
//
// Tables:
//   - samples: one row per committed Sample (source path, fingerprint, model label)
//   - conversation_turns: ordered turns of each Sample
//   - fingerprint_records: last fingerprint per path and the Sample it produced
//   - failure_records: exhausted attempts, one row per path and attempt count
//   - progress_runs, progress_paths: the ProgressCursor of each run
//
// # Transactions
//
// A Sample, its turns and the updated fingerprint are committed together:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.CreateSample(ctx, sample); err != nil {
//	    return err
//	}
//	if err := tx.UpsertFingerprint(ctx, record); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// Write failures are returned as *WriteError and match ErrStoreWrite.
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler. Building
// with -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
package storage
