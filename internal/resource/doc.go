// Package resource provides the predicates the scheduler samples before
// admitting another file: battery level with hysteresis and a Go heap ceiling.
package resource
