// Package filetree enumerates the source files a pipeline run consumes.
//
// A Walker visits a root directory, applies extension, size and directory
// filters, and returns FileUnits carrying raw bytes, a SHA-256 fingerprint
// and the detected text encoding. Decoding to text happens later, per
// attempt, through Decode.
//
//	w := filetree.New("/src/project", filetree.DefaultOptions())
//	units, err := w.Walk(ctx)
package filetree
