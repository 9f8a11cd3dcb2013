// Command walletauth-agent keeps an authenticated backend session for the
// wallet connected through its bridge page.
//
// Usage:
//
//	walletauth-agent --config /etc/walletauth/agent.yaml
//
// Flags override environment variables (WALLETAUTH_ prefix, "__" between
// levels), which override the configuration file. Changing log.level in
// the file takes effect without a restart.
package main
