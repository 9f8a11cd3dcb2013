// Package storage persists the wallet session across agent restarts.
//
// The durable store is a small Badger database holding two entries,
// the session token and the cached user record. Both are written and
// removed in a single transaction so a reader never sees one without
// the other.
//
// Entries may be sealed with an adaptive AEAD cipher keyed from the
// configured encryption secret. The entry key is bound as associated
// data, so swapping values between keys fails authentication.
package storage
