package apicache

import (
	"context"
	"time"

	"github.com/kbukum/scalestore/docstore"
	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to decide whether an entry has expired.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDefaultTTL sets the lifetime in seconds for writes that carry none
// and refresh no existing row.
func WithDefaultTTL(seconds int64) Option {
	return func(s *Store) {
		if seconds > 0 {
			s.defaultTTL = seconds
		}
	}
}

// Store reads and writes cache entries. Writes skip the revision-tag
// check: entries are derived data and the last writer wins.
type Store struct {
	col        *docstore.Collection[Entry]
	log        *logger.Logger
	now        func() time.Time
	defaultTTL int64
}

// NewStore binds the cache table to backend.
func NewStore(backend docstore.Backend, log *logger.Logger, opts ...Option) *Store {
	log = logger.OrDefault(log, "apicache")
	s := &Store{
		col:        docstore.NewCollection(backend, NewTable(), log),
		log:        log,
		now:        time.Now,
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadCache returns the valid entry for req, or nil when it is absent or
// expired.
func (s *Store) ReadCache(ctx context.Context, req Request) (*Entry, error) {
	id := req.CacheID()
	entry, err := s.Lookup(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}
	if !entry.Valid(s.now()) {
		s.log.Debug("Cache entry expired", map[string]interface{}{
			logger.FieldCacheID: id, "cache_time": entry.CacheTime, "ttl": entry.TTL,
		})
		return nil, nil
	}
	return entry, nil
}

// Lookup returns the stored entry with the given id whether or not it has
// expired, or nil when there is none.
func (s *Store) Lookup(ctx context.Context, id string) (*Entry, error) {
	entry, err := s.col.Get(ctx, id)
	if docstore.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteCache removes the entry for req. Removing an absent entry is not an
// error.
func (s *Store) DeleteCache(ctx context.Context, req Request) error {
	return s.DeleteID(ctx, req.CacheID())
}

// DeleteID removes the entry with the given id, if any.
func (s *Store) DeleteID(ctx context.Context, id string) error {
	err := s.col.Delete(ctx, docstore.Record{docstore.FieldID: id}, docstore.SkipConsistencyCheck())
	if err != nil && !docstore.IsNotFound(err) {
		return err
	}
	return nil
}

// WriteRequest is the input of WriteCache. Either ID or API must be set;
// with only API the id is derived from API and Parameters.
type WriteRequest struct {
	ID         string
	API        string
	Parameters []string
	// Result is the serialized payload.
	Result string
	// TTL in seconds. When 0 the existing row's TTL is kept, falling back
	// to the store default.
	TTL int64
}

// WriteCache stores an entry, overwriting any previous one. The returned
// CacheTime is the write time assigned by the backend.
func (s *Store) WriteCache(ctx context.Context, w WriteRequest) (*Entry, error) {
	id := w.ID
	if id == "" {
		if w.API == "" {
			return nil, errors.InvalidArgument("cache write needs an id or an api name").
				WithDetail("table", TableName)
		}
		id = GenerateCacheID(w.API, w.Parameters...)
	}

	ttl := w.TTL
	if ttl <= 0 {
		existing, err := s.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.TTL > 0 {
			ttl = existing.TTL
		} else {
			ttl = s.defaultTTL
		}
	}

	saved, err := s.col.Save(ctx, docstore.Record{
		docstore.FieldID: id,
		"result":         w.Result,
		"ttl":            ttl,
	}, docstore.Upsert, docstore.SkipConsistencyCheck())
	if err != nil {
		return nil, err
	}
	s.log.Debug("Cache entry written", map[string]interface{}{
		logger.FieldCacheID: id, "cache_time": saved.CacheTime, "ttl": saved.TTL,
	})
	return &saved, nil
}

// Entries lists stored entries, expired ones included, capped at limit
// when limit > 0.
func (s *Store) Entries(ctx context.Context, limit int) ([]Entry, error) {
	res, err := s.col.List(ctx, nil, limit)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// PurgeExpired deletes every expired entry and returns how many were
// removed.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	entries, err := s.Entries(ctx, 0)
	if err != nil {
		return 0, err
	}
	now := s.now()
	purged := 0
	for _, e := range entries {
		if e.Valid(now) {
			continue
		}
		if err := s.DeleteID(ctx, e.ID); err != nil {
			return purged, err
		}
		purged++
	}
	if purged > 0 {
		s.log.Info("Purged expired cache entries", map[string]interface{}{"count": purged})
	}
	return purged, nil
}
