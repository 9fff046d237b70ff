// Package settings is a keyed dictionary of operator settings. Persisted
// rows are loaded once per process, merged over built-in defaults and
// cached; writes go through the consistency-checked store and refresh the
// cache.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/kbukum/scalestore/blob"
	"github.com/kbukum/scalestore/docstore"
	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
)

// TableName is the docstore table holding settings.
const TableName = "settings"

// Setting is one named value.
type Setting struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name" validate:"required,max=128"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// NewTable returns the settings table descriptor, keyed by name.
func NewTable() *docstore.Table[Setting] {
	return docstore.NewTable[Setting](TableName, "name")
}

// Store serves settings from an in-memory snapshot.
type Store struct {
	col      *docstore.Collection[Setting]
	log      *logger.Logger
	defaults map[string]Setting

	mu      sync.Mutex
	loaded  bool
	current map[string]Setting
}

// NewStore creates a settings store over backend. Persisted settings take
// precedence over defaults with the same name.
func NewStore(backend docstore.Backend, defaults []Setting, log *logger.Logger) *Store {
	log = logger.OrDefault(log, "settings")
	d := make(map[string]Setting, len(defaults))
	for _, s := range defaults {
		d[s.Name] = s
	}
	return &Store{
		col:      docstore.NewCollection(backend, NewTable(), log),
		log:      log,
		defaults: d,
	}
}

// Load reads persisted settings on first use and returns the merged
// snapshot. Later calls return the cached snapshot.
func (s *Store) Load(ctx context.Context) (map[string]Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx, false); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// Reload discards the cached snapshot and reads persisted settings again.
func (s *Store) Reload(ctx context.Context) (map[string]Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx, true); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// must hold mu
func (s *Store) loadLocked(ctx context.Context, force bool) error {
	if s.loaded && !force {
		return nil
	}
	res, err := s.col.List(ctx, nil, 0)
	if err != nil {
		return err
	}
	merged := make(map[string]Setting, len(s.defaults)+len(res.Items))
	for name, d := range s.defaults {
		merged[name] = d
	}
	for _, item := range res.Items {
		if item.Description == "" {
			item.Description = s.defaults[item.Name].Description
		}
		merged[item.Name] = item
	}
	s.current = merged
	s.loaded = true
	s.log.Debug("Settings loaded", map[string]interface{}{
		"persisted": len(res.Items), "total": len(merged),
	})
	return nil
}

// must hold mu
func (s *Store) snapshotLocked() map[string]Setting {
	out := make(map[string]Setting, len(s.current))
	for k, v := range s.current {
		out[k] = v
	}
	return out
}

// Get returns the named setting. Unknown names fail with NOT_FOUND.
func (s *Store) Get(ctx context.Context, name string) (Setting, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return Setting{}, err
	}
	setting, ok := all[name]
	if !ok {
		return Setting{}, errors.NotFound("setting", name).WithDetail("table", TableName)
	}
	return setting, nil
}

// Int returns the named setting parsed as an integer.
func (s *Store) Int(ctx context.Context, name string) (int64, error) {
	setting, err := s.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil {
		return 0, errors.InvalidInput(name, fmt.Sprintf("setting %s is not an integer: %q", name, setting.Value))
	}
	return n, nil
}

// All returns every setting sorted by name.
func (s *Store) All(ctx context.Context) ([]Setting, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Setting, 0, len(all))
	for _, v := range all {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Set persists a setting and updates the cached snapshot.
func (s *Store) Set(ctx context.Context, setting Setting) (Setting, error) {
	setting.ID = ""
	if setting.Description == "" {
		setting.Description = s.defaults[setting.Name].Description
	}
	rec, err := docstore.ToRecord(setting)
	if err != nil {
		return Setting{}, err
	}
	saved, err := s.col.Save(ctx, rec, docstore.Upsert)
	if err != nil {
		return Setting{}, err
	}

	s.mu.Lock()
	if s.loaded {
		s.current[saved.Name] = saved
	}
	s.mu.Unlock()

	s.log.Info("Setting updated", map[string]interface{}{"name": saved.Name, "value": saved.Value})
	return saved, nil
}

// Reset deletes the persisted value of a setting so its default applies
// again. Resetting a setting that was never persisted fails with NOT_FOUND.
func (s *Store) Reset(ctx context.Context, name string) error {
	rec, err := s.col.GetRecord(ctx, name)
	if err != nil {
		return err
	}
	if err := s.col.Delete(ctx, docstore.StripMetadata(rec)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.loaded {
		if d, ok := s.defaults[name]; ok {
			s.current[name] = d
		} else {
			delete(s.current, name)
		}
	}
	s.mu.Unlock()
	return nil
}

// ParseDefaults reads defaults from JSON: either an array of settings or
// an object mapping names to values.
func ParseDefaults(data []byte) ([]Setting, error) {
	var list []Setting
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, errors.InvalidInput("defaults", "settings defaults must be a JSON array or object of strings").WithCause(err)
	}
	out := make([]Setting, 0, len(kv))
	for name, value := range kv {
		out = append(out, Setting{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LoadDefaults reads and parses a defaults file from blob storage.
func LoadDefaults(ctx context.Context, storage blob.Storage, path string) ([]Setting, error) {
	data, err := blob.ReadString(ctx, storage, path)
	if err != nil {
		return nil, err
	}
	return ParseDefaults([]byte(data))
}
