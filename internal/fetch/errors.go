package fetch

import "errors"

var (
	ErrClosed = errors.New("fetch: query closed")
	// ErrStale is returned by a fetch whose result was not applied because the
	// query was reloaded or closed while it ran.
	ErrStale = errors.New("fetch: result superseded")
)
