package apicache

import (
	"strings"
	"time"

	"github.com/kbukum/scalestore/docstore"
)

const (
	// TableName is the docstore table holding cache entries.
	TableName = "apicache"

	// DefaultTTL is the entry lifetime in seconds when none is given.
	DefaultTTL int64 = 600
)

// Entry is one cached origin response.
type Entry struct {
	ID string `json:"id" validate:"required"`
	// Result is the JSON-serialized payload.
	Result string `json:"result"`
	// TTL is the entry lifetime in seconds.
	TTL int64 `json:"ttl" validate:"gte=0"`
	// CacheTime is the Unix millisecond time the store assigned on write.
	CacheTime int64 `json:"cacheTime,omitempty"`
}

// Valid reports whether the entry may still be served at now.
func (e Entry) Valid(now time.Time) bool {
	return e.CacheTime+e.TTL*1000 > now.UnixMilli()
}

// ExpiresAt returns the first instant at which the entry is no longer valid.
func (e Entry) ExpiresAt() time.Time {
	return time.UnixMilli(e.CacheTime + e.TTL*1000)
}

// GenerateCacheID joins api and params with "-". The result must stay
// stable: persisted rows are looked up by it.
func GenerateCacheID(api string, params ...string) string {
	return strings.Join(append([]string{api}, params...), "-")
}

// Request identifies a cached origin call.
type Request struct {
	API        string
	Parameters []string
	// TTL overrides the default lifetime in seconds when > 0.
	TTL int64
}

// CacheID returns the id of the entry caching this request.
func (r Request) CacheID() string {
	return GenerateCacheID(r.API, r.Parameters...)
}

// NewTable returns the cache table descriptor. Stored records carry the
// backend write time in _ts, which takes precedence over any cacheTime
// field in the body.
func NewTable() *docstore.Table[Entry] {
	return docstore.NewTable[Entry](TableName, docstore.FieldID,
		docstore.WithConverter(convertEntry))
}

func convertEntry(raw docstore.Record) (Entry, error) {
	entry, err := docstore.Decode[Entry](raw, false)
	if err != nil {
		return Entry{}, err
	}
	if ts := raw.Timestamp(); ts > 0 {
		entry.CacheTime = ts
	}
	return entry, nil
}
