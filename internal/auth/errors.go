package auth

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingFields is returned when a login omits the username or password.
	ErrMissingFields = errors.New("username and password are required")
	// ErrInvalidSession is returned when a cookie value is malformed, tampered with or expired.
	ErrInvalidSession = errors.New("invalid session")
	// ErrWeakSecret is returned when the session secret is too short or a known placeholder.
	ErrWeakSecret = errors.New("session secret must be at least 32 bytes and not a placeholder")
	// ErrCredentialStoreUnavailable is returned when the credential store cannot be queried.
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")
	// ErrUnauthorized is returned when a request lacks an authenticated admin session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedHash is returned when a stored password hash is not a bcrypt hash.
	ErrMalformedHash = errors.New("malformed password hash")
)
