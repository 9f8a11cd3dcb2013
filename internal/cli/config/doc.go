// Package config reads and writes the walletauth-cli configuration file.
//
// The file only supplies defaults: an explicit flag or WALLETAUTH_AGENT
// always wins.
//
//	agent: 127.0.0.1:7580
//	output: table
//	timeout: 30s
package config
