package gateway

import "errors"

// Sentinel errors returned (wrapped) by every Client implementation.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotReady             = errors.New("session not ready")
	ErrNotFound             = errors.New("wan address not found")
	ErrTransport            = errors.New("transport error")
)

// IsAuthFailure reports whether err means the session must be re-established.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

// IsRecoverable reports whether the monitor can keep using the current
// session after err. Only authentication failures force a new login.
func IsRecoverable(err error) bool {
	return err != nil && !IsAuthFailure(err)
}
