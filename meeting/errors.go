package meeting

import "errors"

var (
	// ErrNotFound maps to a 404-class response: unknown room, meeting or
	// scheduled-meeting id, or a lifecycle operation against a record that
	// is not in the required state.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner maps to a 403-class response: the caller holds a valid
	// identity but does not own the scheduled meeting.
	ErrNotOwner = errors.New("not the owning host")

	// ErrUpstream maps to a 500-class response: the external room service or
	// transcription agent could not be reached or failed. Calls are not
	// retried here, the operations are safe for the client to re-issue.
	ErrUpstream = errors.New("upstream service error")
)
