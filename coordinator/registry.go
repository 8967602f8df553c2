package coordinator

import (
	"github.com/herbdool/d8cache/hooks"
	"github.com/herbdool/d8cache/invalidate"
	"github.com/herbdool/d8cache/maxage"
	"github.com/herbdool/d8cache/tags"
)

// Registry holds the collaborators of every extension point. The zero
// value is empty and ready for use; register during startup or at runtime.
type Registry struct {
	// TagObservers run at hooks.EmitCacheTags.
	TagObservers hooks.Chain[tags.EmitFunc]
	// TagAlters run at hooks.PreEmitCacheTagsAlter.
	TagAlters hooks.Chain[tags.AlterFunc]
	// MaxAgeObservers run at hooks.EmitCacheMaxAge.
	MaxAgeObservers hooks.Chain[maxage.EmitFunc]
	// MaxAgeAlters run at hooks.PreEmitCacheMaxAgeAlter.
	MaxAgeAlters hooks.Chain[maxage.AlterFunc]
	// Backends run at hooks.InvalidateCacheTags.
	Backends hooks.Chain[invalidate.Backend]
	// InvalidateAlters run at hooks.PreInvalidateCacheTagsAlter.
	InvalidateAlters hooks.Chain[tags.AlterFunc]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Counts returns the number of collaborators per extension point.
func (r *Registry) Counts() map[hooks.Point]int {
	return map[hooks.Point]int{
		hooks.EmitCacheTags:               r.TagObservers.Len(),
		hooks.PreEmitCacheTagsAlter:       r.TagAlters.Len(),
		hooks.EmitCacheMaxAge:             r.MaxAgeObservers.Len(),
		hooks.PreEmitCacheMaxAgeAlter:     r.MaxAgeAlters.Len(),
		hooks.InvalidateCacheTags:         r.Backends.Len(),
		hooks.PreInvalidateCacheTagsAlter: r.InvalidateAlters.Len(),
	}
}

// Names returns collaborator names per extension point, in registration
// order.
func (r *Registry) Names() map[hooks.Point][]string {
	return map[hooks.Point][]string{
		hooks.EmitCacheTags:               r.TagObservers.Names(),
		hooks.PreEmitCacheTagsAlter:       r.TagAlters.Names(),
		hooks.EmitCacheMaxAge:             r.MaxAgeObservers.Names(),
		hooks.PreEmitCacheMaxAgeAlter:     r.MaxAgeAlters.Names(),
		hooks.InvalidateCacheTags:         r.Backends.Names(),
		hooks.PreInvalidateCacheTagsAlter: r.InvalidateAlters.Names(),
	}
}
