// Package adaptive provides authenticated encryption for small records
// kept at rest, such as the persisted wallet session.
//
// The algorithm is chosen from the host's hardware on encryption:
//
//   - AES-256-GCM where the CPU has AES instructions
//   - ChaCha20-Poly1305 elsewhere
//
// Every sealed record starts with a two byte header naming the format
// version and the algorithm, so a record written on one host opens on
// any other host holding the same key.
//
// Usage:
//
//	key, err := adaptive.DeriveKey(secret, salt, "walletauth/session")
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
