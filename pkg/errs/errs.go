// Package errs defines the typed failure signals surfaced by the resolution
// pipeline. Callers branch on the Kind tag rather than on error subclasses.
package errs

import (
	"errors"
	"fmt"
)

// Kind tags an Error with its failure class.
type Kind int

const (
	// KindValidation is bad caller input. Never retried, surfaced immediately.
	KindValidation Kind = iota
	// KindNotFound means no content matched after exhausting all strategies.
	KindNotFound
	// KindScraping means the page structure yielded no extractable media.
	KindScraping
	// KindNetwork is a transport-level failure.
	KindNetwork
	// KindTimeout is a deadline-exceeded network failure.
	KindTimeout
)

// Error is the tagged error type used across the pipeline.
type Error struct {
	Kind   Kind
	Msg    string
	Query  string // the query that failed, for KindNotFound diagnostics
	Status int    // HTTP status when available, for KindNetwork
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Msg, e.Status)
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on Kind, with Timeout also matching Network
// since a timeout is a specialization of a transport failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindTimeout && t.Kind == KindNetwork
}

// Validation creates a bad-input error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound creates a no-match error carrying the failed query.
func NotFound(query string) *Error {
	return &Error{Kind: KindNotFound, Msg: "no content found", Query: query}
}

// Scraping creates a page-structure error.
func Scraping(format string, args ...any) *Error {
	return &Error{Kind: KindScraping, Msg: fmt.Sprintf(format, args...)}
}

// Network creates a transport error with an optional HTTP status.
func Network(status int, msg string, err error) *Error {
	return &Error{Kind: KindNetwork, Msg: msg, Status: status, Err: err}
}

// Timeout creates a deadline-exceeded error.
func Timeout(msg string, err error) *Error {
	return &Error{Kind: KindTimeout, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, or KindNetwork with false when err is not
// a pipeline error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindNetwork, false
}

// IsValidation reports whether err is a bad-input error.
func IsValidation(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindValidation
}

// IsNotFound reports whether err is a no-match error.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNotFound
}

// IsTimeout reports whether err is a deadline-exceeded error.
func IsTimeout(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTimeout
}

// UserMessage maps an error to the message shown to end users.
func UserMessage(err error) string {
	k, ok := KindOf(err)
	if !ok {
		return "Something went wrong. Please try again later."
	}
	switch k {
	case KindValidation:
		return "Invalid request."
	case KindNotFound:
		return "Content not found."
	case KindScraping:
		return "No playable stream could be extracted."
	case KindTimeout:
		return "The upstream site took too long to respond."
	default:
		return "The upstream site could not be reached."
	}
}
