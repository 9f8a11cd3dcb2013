// Command walletauth-cli inspects and controls a running walletauth agent.
//
//	walletauth-cli session status
//	walletauth-cli session retry --wait
//	walletauth-cli -o json wallet status
//	walletauth-cli message --address 0x...
package main
