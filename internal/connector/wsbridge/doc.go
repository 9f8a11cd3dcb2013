// Package wsbridge connects the agent to a wallet running in a browser page.
//
// The page loads the wallet widget, opens a WebSocket to the agent and
// forwards account changes. The agent sends it personal_sign requests and
// the page answers with signatures or errors. Only the most recently
// connected page is active.
package wsbridge
