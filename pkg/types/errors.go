package types

import "errors"

// Domain errors for ticket validation
var (
	ErrMissingID    = errors.New("ticket id is required")
	ErrMissingTitle = errors.New("ticket title is required")
)
