package shared

import "errors"

var (
	// ErrAuthentication indicates credentials that could not be verified.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorization indicates the catalog API rejected the stored credential.
	ErrAuthorization = errors.New("authorization rejected")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates input rejected before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
