// Package cmap provides a sharded, string-keyed concurrent map.
//
// Each shard has its own RWMutex, so lookups for different keys rarely
// contend. The local API uses it to hold one rate limiter per client.
//
//	m := cmap.New[*rate.Limiter](16)
//	l, _ := m.GetOrSet(ip, rate.NewLimiter(10, 10))
package cmap
