package tags

import (
	"context"
	"strings"
)

// DefaultHeader is the surrogate-key header understood by Varnish xkey,
// Fastly and most tag-aware reverse proxies.
const DefaultHeader = "Surrogate-Key"

// HeaderSetter is the narrow view of an outgoing header map.
// http.Header satisfies it.
type HeaderSetter interface {
	Set(key, value string)
}

// Join formats s as a space-separated header value in lexical order.
func Join(s Set) string {
	return strings.Join(s.Strings(), " ")
}

// Parse reads a space-separated header value.
func Parse(value string) (Set, error) {
	return FromStrings(strings.Fields(value)...)
}

// HeaderObserver returns an EmitFunc that writes the finalized tags to
// header. An empty set writes nothing. If header is empty DefaultHeader is
// used.
func HeaderObserver(h HeaderSetter, header string) EmitFunc {
	if header == "" {
		header = DefaultHeader
	}
	return func(_ context.Context, tags Set) {
		if tags.Len() == 0 {
			return
		}
		h.Set(header, Join(tags))
	}
}
