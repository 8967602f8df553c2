package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

var bracedVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv expands s against the process environment. See Expand.
func ExpandEnv(s string) (string, error) {
	return Expand(s, os.LookupEnv)
}

// Expand replaces $NAME and ${NAME} using lookup. Every ${NAME} must be
// defined; the missing names are reported together. $$ is a literal $.
// Unset $NAME expands to the empty string.
func Expand(s string, lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var missing []string
	for _, m := range bracedVar.FindAllStringSubmatch(strings.ReplaceAll(s, "$$", ""), -1) {
		if _, ok := lookup(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		v, _ := lookup(name)
		return v
	}), nil
}
