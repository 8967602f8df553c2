package tags

import (
	"context"
	"strings"
)

// RemoveTags returns an AlterFunc that drops the given tags, for example a
// list tag whose invalidation would wipe too much of the cache.
func RemoveTags(drop ...Tag) AlterFunc {
	return func(_ context.Context, tags *Set) error {
		for _, t := range drop {
			tags.Remove(t)
		}
		return nil
	}
}

// RemovePrefix returns an AlterFunc that drops every tag starting with prefix.
func RemovePrefix(prefix string) AlterFunc {
	return func(_ context.Context, tags *Set) error {
		tags.RemoveFunc(func(t Tag) bool { return strings.HasPrefix(string(t), prefix) })
		return nil
	}
}

// AddTags returns an AlterFunc that adds the given tags.
func AddTags(add ...Tag) AlterFunc {
	return func(_ context.Context, tags *Set) error {
		for _, t := range add {
			if err := tags.Add(t); err != nil {
				return err
			}
		}
		return nil
	}
}

// When wraps fn so it only runs if cond reports true for the current context.
func When(cond func(context.Context) bool, fn AlterFunc) AlterFunc {
	return func(ctx context.Context, tags *Set) error {
		if !cond(ctx) {
			return nil
		}
		return fn(ctx, tags)
	}
}
