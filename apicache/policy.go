package apicache

import (
	"fmt"
	"strings"

	"github.com/kbukum/scalestore/errors"
)

// Policy selects how Fetch combines the cache and the origin.
type Policy int

const (
	// ReadCacheFirst serves a valid entry, otherwise calls the origin and
	// caches a non-nil result.
	ReadCacheFirst Policy = iota
	// ReadAPIOnly always calls the origin and never touches the cache.
	ReadAPIOnly
	// ReadAPIFirst always calls the origin and never persists.
	ReadAPIFirst
	// ReadCacheOnly serves a valid entry or nil; the origin is not called.
	ReadCacheOnly
	// ReadCacheAndDelete serves a valid entry once and removes it.
	ReadCacheAndDelete
)

var policyNames = map[Policy]string{
	ReadCacheFirst:     "ReadCacheFirst",
	ReadAPIOnly:        "ReadAPIOnly",
	ReadAPIFirst:       "ReadAPIFirst",
	ReadCacheOnly:      "ReadCacheOnly",
	ReadCacheAndDelete: "ReadCacheAndDelete",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses a policy name. Matching ignores case, dashes and
// underscores, so "read-cache-first" and "READ_CACHE_FIRST" both parse. An
// empty string yields ReadCacheFirst.
func ParsePolicy(s string) (Policy, error) {
	key := normalizePolicyName(s)
	if key == "" {
		return ReadCacheFirst, nil
	}
	for p, name := range policyNames {
		if normalizePolicyName(name) == key {
			return p, nil
		}
	}
	return ReadCacheFirst, errors.InvalidInput("policy", fmt.Sprintf("unknown cache policy %q", s))
}

func normalizePolicyName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// readsCache reports whether the policy consults the cache.
func (p Policy) readsCache() bool {
	return p == ReadCacheFirst || p == ReadCacheOnly || p == ReadCacheAndDelete
}
