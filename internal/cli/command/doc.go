// Package command implements the walletauth-cli subcommands.
//
// Every command except message and version talks to a running agent over
// its local HTTP API. Output follows the global -o flag; table output is
// meant for people, json and yaml for scripts.
package command
