package domain

import "errors"

var (
	// ErrNotConnected means the backend store is unavailable. Subscriptions
	// degrade to empty snapshots instead of returning it.
	ErrNotConnected = errors.New("backend not connected")

	// ErrNotFound means a required read target (e.g. a transfer source) is
	// absent. The operation aborts with no writes performed.
	ErrNotFound = errors.New("request not found")

	// ErrInvalidHandle means the handle failed shape validation; nothing was
	// written.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrTenantUnresolved means a handle lookup yielded no forward record.
	// Distinct from a transport failure: callers map it to a user-facing
	// "not found", not a generic error.
	ErrTenantUnresolved = errors.New("no dj registered for handle")

	// ErrInvalidLicense means a license token does not match the
	// DJRQ-XXXX-XXXX-XXXX shape.
	ErrInvalidLicense = errors.New("invalid license key format")
)
