// Package backend is the HTTP client for the auth backend.
//
// Three calls are used:
//
//	POST /api/auth/login    exchange a signed challenge for a token
//	POST /api/auth/verify   check a stored token (Bearer)
//	GET  /api/auth/profile  fetch the user record (Bearer)
//
// The client never retries. Callers bound each call with a context
// deadline; a deadline or transport error is reported as
// domain.ErrNetworkFailure.
package backend
