// Package scheduler orchestrates a pipeline run.
//
// A run partitions the input files with the change detector, admits eligible
// files into a bounded worker pool, and feeds each through the chunker and
// the two generation phases under the retry policy. Workers never touch the
// store: they hand a fileResult to a single committer goroutine, which writes
// the Sample, its turns and the fingerprint in one transaction (or a failure
// record) and advances the progress cursor.
//
// Concurrency is bounded three ways: at most Concurrency files in flight, at
// most PerFileParallelism answer calls within one file, and at most
// MaxInflightCalls generation calls across the whole run.
//
// Stopping is cooperative. Cancelling the run context stops admission, and
// in-flight files finish their current call, then unwind without committing.
// The cursor is flushed before Run returns, and an unfinished cursor is
// resumed by the next run.
package scheduler
