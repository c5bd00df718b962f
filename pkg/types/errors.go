package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyPath      = errors.New("path cannot be empty")
	ErrBudgetTooTight = errors.New("token budget leaves no room for content")
)
