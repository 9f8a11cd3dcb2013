// Package token holds helpers for handling opaque session credentials
// without exposing them.
//
// Fingerprint gives logs a way to tell tokens apart; Equal compares them
// without leaking timing.
package token
