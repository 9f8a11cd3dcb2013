// Package tlsroots builds the root CA pool used when the agent talks to
// the auth backend over HTTPS.
//
// The pool starts from the system roots and may be extended with a
// private CA bundle (backend.tls_ca_file) for self-hosted backends.
package tlsroots
