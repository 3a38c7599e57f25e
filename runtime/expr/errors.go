package expr

import "errors"

// Sentinel errors the engine package classifies into its Kind taxonomy
// (§7). Expression-layer failures always wrap one of these so
// errors.Is/errors.As keeps working after the engine adds task-id context.
var (
	ErrUnknownVariable   = errors.New("unknown variable")
	ErrInvalidExpression = errors.New("invalid expression")
	ErrEnvNotSet         = errors.New("environment variable not set")
)
