// Package types provides the domain types shared across the qaforge pipeline.
//
// # Core Types
//
// FileUnit is one discovered source file with its raw bytes and fingerprint:
//
//	unit := types.NewFileUnit("internal/app/server.go", content, "utf-8")
//
// Segment is a token-bounded slice of a file's decoded text produced by the
// chunker. Segments live only for one processing attempt.
//
// Sample is the committed Q&A output for one file. Its ConversationTurns are
// ordered by segment, then question, and alternate asker/answerer:
//
//	if err := sample.ValidateTurns(); err != nil {
//	    return err
//	}
//
// FingerprintRecord maps a path to the fingerprint that produced its latest
// Sample. FailureRecord captures an exhausted attempt. ProgressCursor records
// which paths a run has attempted so an interrupted run can resume.
package types
