package secret

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const refPrefix = "secretref:"

var inlineRef = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// Resolver expands environment variables and secret references.
// It is safe for concurrent use once configured.
type Resolver struct {
	providers map[string]Provider
	lookup    LookupFunc
	strict    bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithProviders registers providers, replacing any with the same name.
func WithProviders(providers ...Provider) ResolverOption {
	return func(r *Resolver) {
		for _, p := range providers {
			if p != nil {
				r.providers[p.Name()] = p
			}
		}
	}
}

// WithLookup sets the environment used for expansion and by the default
// env provider.
func WithLookup(lookup LookupFunc) ResolverOption {
	return func(r *Resolver) {
		if lookup != nil {
			r.lookup = lookup
		}
	}
}

// Strict rejects references that resolve to an empty string.
func Strict() ResolverOption {
	return func(r *Resolver) { r.strict = true }
}

// NewResolver creates a resolver with the env and file providers.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{providers: make(map[string]Provider)}
	for _, opt := range opts {
		opt(r)
	}
	if _, ok := r.providers["env"]; !ok {
		r.providers["env"] = EnvProvider{Lookup: r.lookup}
	}
	if _, ok := r.providers["file"]; !ok {
		r.providers["file"] = FileProvider{}
	}
	return r
}

// Resolve expands value and replaces every secret reference in it.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	expanded, err := Expand(value, r.lookup)
	if err != nil {
		return "", err
	}
	if !strings.Contains(expanded, refPrefix) {
		return expanded, nil
	}

	if provider, ref, ok := ParseRef(expanded); ok {
		return r.resolveRef(ctx, provider, ref)
	}

	var b strings.Builder
	last := 0
	for _, m := range inlineRef.FindAllStringSubmatchIndex(expanded, -1) {
		resolved, err := r.resolveRef(ctx, expanded[m[2]:m[3]], expanded[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		b.WriteString(expanded[last:m[0]])
		b.WriteString(resolved)
		last = m[1]
	}
	b.WriteString(expanded[last:])
	return b.String(), nil
}

// ResolveAll resolves every value of fields in place, naming the failing
// field in the error.
func (r *Resolver) ResolveAll(ctx context.Context, fields map[string]*string) error {
	for name, ptr := range fields {
		if ptr == nil || *ptr == "" {
			continue
		}
		v, err := r.Resolve(ctx, *ptr)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*ptr = v
	}
	return nil
}

// ParseRef splits a whole-value reference secretref:<provider>:<ref>.
func ParseRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" || strings.ContainsAny(value, " \t\n") {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolveRef(ctx context.Context, provider, ref string) (string, error) {
	p, ok := r.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %s:%s", ErrEmptySecret, provider, ref)
	}
	return v, nil
}
