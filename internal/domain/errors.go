// Package domain carries the coded error type shared by the booking,
// resource and payment packages. Rule violations are returned as values,
// never panics; the code travels in outcome events and API responses.
package domain

import "errors"

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func E(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Code extracts the domain error code, or "" for non-domain errors.
func Code(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
