// Package cache stores rendered responses together with their cache tags
// and max-age, so that invalidating a tag evicts every response that
// depended on it.
//
// Middleware is a read-through page cache built on a coordinator: misses
// render once per key (concurrent misses share the render), store the body
// for the capped max-age, and every caller emits its own headers. A max-age
// of 0 is never stored.
//
// MemoryCache is also an invalidate.Backend, so registering it at
// hooks.InvalidateCacheTags keeps the local store consistent with the
// reverse proxy.
package cache
