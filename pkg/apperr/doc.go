/*
Package apperr defines the coded error taxonomy shared by the helpers and adapters.

Every error carries a machine readable Code, a human readable Message, free-form
Details and an optional cause. Errors compare by code, so callers can match a whole
class with errors.Is:

	if errors.Is(err, apperr.ErrRateLimit) {
		// back off
	}

Handle classifies arbitrary errors (timeouts, network failures, parse errors) into
the taxonomy, and ToMap produces the payload the HTTP adapter writes on failure.
*/
package apperr
