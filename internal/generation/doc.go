// Package generation implements the two-phase question/answer protocol
// against a pluggable text-generation backend.
//
// A Client runs the question phase (segment text in, ordered questions out)
// and the answer phase (segment text and one question in, answer out). Each
// call has its own timeout, optionally scaled with the size of the source
// file. Every failure leaving this package is classified as transient or
// permanent:
//
//	err := client.Answer(ctx, seg, q, size)
//	if generation.IsTransient(err) {
//	    // retry later
//	}
//
// Backends are strategies selected by NewBackend: an OpenAI-compatible HTTP
// backend, a native Ollama backend and an offline extractive backend. Backends
// are initialized lazily through a Lifecycle the first time the Client is used.
package generation
