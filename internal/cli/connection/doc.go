// Package connection is the CLI's HTTP client for the agent's local API.
//
// Responses arrive in the agent's envelope ({code, message, data});
// ParseResponse unwraps data on success and returns an *APIError
// otherwise.
package connection
