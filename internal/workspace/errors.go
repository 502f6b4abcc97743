package workspace

import "errors"

// Sentinel error kinds surfaced by Workspace operations, per the core's
// error-handling contract: create/close/resize/send_key surface errors;
// update-time errors never do.
var (
	ErrTooManySessions = errors.New("workspace: too many sessions")
	ErrNotFound        = errors.New("workspace: session not found")
)
