// Package hooks provides the collaborator registry used by every extension
// point of the engine.
//
// A Chain is an ordered list of named callbacks. Registration order is
// invocation order. Chains are copy-on-write: Register and Unregister publish
// a new immutable slice, and operations read a single Snapshot, so runtime
// registration never races with an operation already in flight.
//
// # Extension points
//
//	emit_cache_tags                  observe the finalized tag set
//	pre_emit_cache_tags_alter        alter tags before emission
//	emit_cache_max_age               observe the finalized max-age
//	pre_emit_cache_max_age_alter     override max-age before emission
//	invalidate_cache_tags            invalidation backends
//	pre_invalidate_cache_tags_alter  alter tags before invalidation
//
// Run invokes a snapshot in order and aggregates failures into a ChainError.
// Application is best-effort and ordered, not atomic: mutations made by
// collaborators that ran before a failing one are kept.
package hooks
