// Package invalidate fans a set of stale cache tags out to purge backends.
//
// An invalidation runs in two phases. Alter collaborators registered at
// hooks.PreInvalidateCacheTagsAlter run first, in registration order, on
// one mutable tags.Set; they typically drop tags that would purge too much
// or add implied tags. The final set is then dispatched to every backend
// registered at hooks.InvalidateCacheTags.
//
// Backends are independent side effects. They run concurrently, each with
// its own copy of the set and its own timeout, retry policy and circuit
// breaker. A failing backend never prevents the others from running; every
// failure is reported together in a *DispatchError.
//
// Alter failures are best-effort: mutations made by other collaborators
// stand and dispatch still happens with the resulting set, because a purge
// that is too wide is safer than serving stale content.
package invalidate
