package domain

import "errors"

var (
	// ErrTransport marks a non-2xx response or a failed round trip to an external system.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse marks a response body that matches no recognized shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrTimedOut marks a poll loop that exhausted its attempt budget.
	ErrTimedOut = errors.New("operation timed out")
	// ErrNoCandidates marks a generation run that produced nothing at all.
	ErrNoCandidates = errors.New("no candidates produced")
	// ErrUninterpretable marks a text-generation response that could not be parsed.
	ErrUninterpretable = errors.New("could not interpret the AI response")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNotFound        = errors.New("not found")
)
