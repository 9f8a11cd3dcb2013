// Package memory provides an in-process token store.
//
// It backs agents started with storage.mode=memory, where the session
// is forgotten on exit.
package memory
