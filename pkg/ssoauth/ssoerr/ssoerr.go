// Package ssoerr is the error taxonomy the auth engine and API layer
// report through, built on top of pkg/errx the way the teacher's own
// IAM package builds its error surface.
package ssoerr

import "github.com/Abraxas-365/manifesto/pkg/errx"

// Registry is the SSOAUTH error registry. Every engine/store error is
// registered here so codes stay stable and prefixed consistently.
var Registry = errx.NewRegistry("SSOAUTH")

var (
	CodeBadRequest   = Registry.Register("BAD_REQUEST", errx.TypeValidation, 400, "bad request")
	CodeForbidden    = Registry.Register("FORBIDDEN", errx.TypeForbidden, 403, "forbidden")
	CodeNotFound     = Registry.Register("NOT_FOUND", errx.TypeNotFound, 404, "not found")
	CodeUnauthorised = Registry.Register("UNAUTHORISED", errx.TypeAuthorization, 401, "unauthorised")
	CodeInternal     = Registry.Register("INTERNAL", errx.TypeInternal, 500, "internal error")

	// Conflict and Migration are store-only kinds (spec §4.1); they
	// never surface directly from an engine operation but the store
	// interface reports them so callers can distinguish a unique
	// violation from a generic transport failure.
	CodeConflict  = Registry.Register("CONFLICT", errx.TypeConflict, 409, "conflict")
	CodeMigration = Registry.Register("MIGRATION", errx.TypeInternal, 500, "migration error")
)

// BadRequest wraps msg as a SSOAUTH_BAD_REQUEST error.
func BadRequest(msg string) *errx.Error { return Registry.NewWithMessage(CodeBadRequest, msg) }

// Forbidden wraps msg as a SSOAUTH_FORBIDDEN error.
func Forbidden(msg string) *errx.Error { return Registry.NewWithMessage(CodeForbidden, msg) }

// NotFound wraps msg as a SSOAUTH_NOT_FOUND error.
func NotFound(msg string) *errx.Error { return Registry.NewWithMessage(CodeNotFound, msg) }

// Unauthorised wraps msg as a SSOAUTH_UNAUTHORISED error.
func Unauthorised(msg string) *errx.Error { return Registry.NewWithMessage(CodeUnauthorised, msg) }

// Internal wraps err as a SSOAUTH_INTERNAL error, preserving the cause.
func Internal(msg string, cause error) *errx.Error {
	e := Registry.NewWithMessage(CodeInternal, msg)
	e.Err = cause
	return e
}

// Conflict wraps msg as a SSOAUTH_CONFLICT error (store unique violation).
func Conflict(msg string) *errx.Error { return Registry.NewWithMessage(CodeConflict, msg) }

// IsNotFound reports whether err is (or wraps) a SSOAUTH_NOT_FOUND error.
func IsNotFound(err error) bool {
	var e *errx.Error
	return errx.As(err, &e) && e.Type == errx.TypeNotFound
}

// IsConflict reports whether err is (or wraps) a SSOAUTH_CONFLICT error.
func IsConflict(err error) bool {
	var e *errx.Error
	return errx.As(err, &e) && e.Type == errx.TypeConflict
}
