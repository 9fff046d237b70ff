package docstore

import (
	"context"
	"fmt"

	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
)

// Condition restricts when Save may write.
type Condition int

const (
	// Upsert writes whether or not the record exists.
	Upsert Condition = iota
	// InsertOnly fails with KEY_CONFLICT if the record exists.
	InsertOnly
	// UpdateOnly fails with NOT_FOUND if the record does not exist.
	UpdateOnly
)

func (c Condition) String() string {
	switch c {
	case Upsert:
		return "upsert"
	case InsertOnly:
		return "insert-only"
	case UpdateOnly:
		return "update-only"
	default:
		return fmt.Sprintf("Condition(%d)", int(c))
	}
}

type writeOptions struct {
	ensureConsistency bool
}

// WriteOption adjusts a Save or Delete.
type WriteOption func(*writeOptions)

// EnsureConsistency toggles the snapshot checks and If-Match precondition.
// They are on by default.
func EnsureConsistency(enabled bool) WriteOption {
	return func(o *writeOptions) { o.ensureConsistency = enabled }
}

// SkipConsistencyCheck turns off the snapshot checks and If-Match
// precondition, making the write last-writer-wins.
func SkipConsistencyCheck() WriteOption { return EnsureConsistency(false) }

func newWriteOptions(opts []WriteOption) writeOptions {
	o := writeOptions{ensureConsistency: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ListResult holds the query text handed to the container and the
// converted records.
type ListResult[T any] struct {
	Query string
	Items []T
}

// Collection runs consistency-checked operations for one table. It holds no
// locks; concurrent writers are arbitrated by revision-tag preconditions in
// the container.
type Collection[T any] struct {
	table   *Table[T]
	backend Backend
	log     *logger.Logger
}

// NewCollection binds table to backend. A nil logger falls back to the
// global logger.
func NewCollection[T any](backend Backend, table *Table[T], log *logger.Logger) *Collection[T] {
	return &Collection[T]{
		table:   table,
		backend: backend,
		log: logger.OrDefault(log, "docstore").WithFields(map[string]interface{}{
			logger.FieldTable: table.Name,
		}),
	}
}

// Table returns the table descriptor.
func (c *Collection[T]) Table() *Table[T] { return c.table }

func (c *Collection[T]) container(op Operation, id string) (Container, error) {
	ct, err := c.backend.Container(c.table.Name)
	if err != nil {
		return nil, c.fail(op, errBackend(op, c.table.Name, id, err))
	}
	return ct, nil
}

// Get returns the record stored under key.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	rec, err := c.GetRecord(ctx, key)
	if err != nil {
		return zero, err
	}
	return c.convert(OpRead, key, rec)
}

// GetRecord returns the raw stored record under key, metadata included.
func (c *Collection[T]) GetRecord(ctx context.Context, key string) (Record, error) {
	c.log.Debug("Reading record", map[string]interface{}{
		logger.FieldOperation: OpRead, logger.FieldRecordID: key,
	})
	rec, err := c.read(ctx, OpRead, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, c.fail(OpRead, errNotFound(OpRead, c.table.Name, key))
	}
	return rec, nil
}

// List returns the records matching every where clause, capped at limit
// when limit > 0.
func (c *Collection[T]) List(ctx context.Context, where []Where, limit int) (*ListResult[T], error) {
	q, err := BuildQuery(where, limit)
	if err != nil {
		return nil, c.fail(OpList, withContext(asAppError(err), OpList, c.table.Name, ""))
	}
	ct, err := c.container(OpList, "")
	if err != nil {
		return nil, err
	}

	c.log.Debug("Listing records", map[string]interface{}{
		logger.FieldOperation: OpList, "query": q.Text,
	})
	records, err := ct.Query(ctx, q)
	if err != nil {
		return nil, c.fail(OpList, errBackend(OpList, c.table.Name, "", err))
	}

	items := make([]T, 0, len(records))
	for _, rec := range records {
		item, err := c.convert(OpList, KeyString(rec[FieldID]), rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &ListResult[T]{Query: q.Text, Items: items}, nil
}

// Save validates item and writes it under cond.
//
// With consistency checks on (the default), a stored snapshot whose primary
// key differs from the item's fails with INCONSISTENT_DATA, and the write
// carries the snapshot's revision tag so that a concurrent update between
// the read and the write fails with CONFLICT.
func (c *Collection[T]) Save(ctx context.Context, item Record, cond Condition, opts ...WriteOption) (T, error) {
	var zero T
	o := newWriteOptions(opts)
	pkValue, hasPK := item[c.table.PrimaryKey]
	key := KeyString(pkValue)

	if err := c.table.Validate(item); err != nil {
		return zero, c.fail(OpSave, withContext(asAppError(err), OpSave, c.table.Name, key))
	}
	if !hasPK || pkValue == nil || key == "" {
		return zero, c.fail(OpSave, withContext(errors.MissingField(c.table.PrimaryKey), OpSave, c.table.Name, ""))
	}

	snapshot, err := c.read(ctx, OpSave, key)
	if err != nil {
		return zero, err
	}
	switch {
	case cond == UpdateOnly && snapshot == nil:
		return zero, c.fail(OpSave, errNotFound(OpSave, c.table.Name, key))
	case cond == InsertOnly && snapshot != nil:
		return zero, c.fail(OpSave, errKeyConflict(c.table.Name, key))
	}
	if o.ensureConsistency && snapshot != nil && !ValuesEqual(snapshot[c.table.PrimaryKey], pkValue) {
		return zero, c.fail(OpSave, errInconsistent(OpSave, c.table.Name, key,
			fmt.Sprintf("%s %v does not match stored value %v", c.table.PrimaryKey, pkValue, snapshot[c.table.PrimaryKey])))
	}

	rec := StripMetadata(item)
	if id, ok := meaningfulID(rec[FieldID]); ok {
		if id != key {
			return zero, c.fail(OpSave, errInconsistent(OpSave, c.table.Name, key,
				fmt.Sprintf("id %q does not match %s %q", id, c.table.PrimaryKey, key)))
		}
		rec[FieldID] = id
	} else {
		rec[FieldID] = key
	}

	var upsertOpts UpsertOptions
	if o.ensureConsistency && snapshot != nil {
		upsertOpts.IfMatch = snapshot.ETag()
	}
	if cond == InsertOnly {
		upsertOpts.IfNoneMatch = true
	}

	ct, err := c.container(OpSave, key)
	if err != nil {
		return zero, err
	}
	c.log.Debug("Saving record", map[string]interface{}{
		logger.FieldOperation: OpSave, logger.FieldRecordID: key,
		"condition": cond.String(), "if_match": upsertOpts.IfMatch,
	})
	resp, err := ct.Upsert(ctx, rec, upsertOpts)
	if err != nil {
		return zero, c.fail(OpSave, errBackend(OpSave, c.table.Name, key, err))
	}

	switch resp.Status {
	case StatusOK, StatusCreated:
		if resp.Resource == nil {
			return zero, c.fail(OpSave, errUnexpected(OpSave, c.table.Name, key, resp.Status).
				WithDetail("reason", "no resource returned"))
		}
		return c.convert(OpSave, key, resp.Resource)
	case StatusPreconditionFailed:
		return zero, c.fail(OpSave, errConflict(OpSave, c.table.Name, key))
	case StatusConflict:
		if cond == InsertOnly {
			return zero, c.fail(OpSave, errKeyConflict(c.table.Name, key))
		}
		return zero, c.fail(OpSave, errConflict(OpSave, c.table.Name, key))
	default:
		return zero, c.fail(OpSave, errUnexpected(OpSave, c.table.Name, key, resp.Status))
	}
}

// Delete removes item.
//
// With consistency checks on (the default), item is validated and every
// field it carries must equal the stored snapshot's, metadata included when
// present. Independent of the checks, the primary key must be set and equal
// to the item's id.
func (c *Collection[T]) Delete(ctx context.Context, item Record, opts ...WriteOption) error {
	o := newWriteOptions(opts)
	pkValue := item[c.table.PrimaryKey]
	key := KeyString(pkValue)

	if o.ensureConsistency {
		if err := c.table.Validate(item); err != nil {
			return c.fail(OpDelete, withContext(asAppError(err), OpDelete, c.table.Name, key))
		}
		snapshot, err := c.read(ctx, OpDelete, key)
		if err != nil {
			return err
		}
		if snapshot == nil {
			return c.fail(OpDelete, errNotFound(OpDelete, c.table.Name, key))
		}
		for field, value := range item {
			if !ValuesEqual(snapshot[field], value) {
				return c.fail(OpDelete, errInconsistent(OpDelete, c.table.Name, key,
					fmt.Sprintf("field %q differs from the stored record", field)).
					WithDetail("field", field))
			}
		}
	}

	if pkValue == nil {
		return c.fail(OpDelete, errInconsistent(OpDelete, c.table.Name, "",
			fmt.Sprintf("primary key %q is not set", c.table.PrimaryKey)))
	}
	if id := KeyString(item[FieldID]); item[FieldID] == nil || id != key {
		return c.fail(OpDelete, errInconsistent(OpDelete, c.table.Name, key,
			fmt.Sprintf("id %q does not match %s %q", id, c.table.PrimaryKey, key)))
	}

	ct, err := c.container(OpDelete, key)
	if err != nil {
		return err
	}
	c.log.Debug("Deleting record", map[string]interface{}{
		logger.FieldOperation: OpDelete, logger.FieldRecordID: key,
	})
	resp, err := ct.Delete(ctx, key)
	if err != nil {
		return c.fail(OpDelete, errBackend(OpDelete, c.table.Name, key, err))
	}
	switch resp.Status {
	case StatusOK, StatusNoContent:
		return nil
	case StatusNotFound:
		return c.fail(OpDelete, errNotFound(OpDelete, c.table.Name, key))
	default:
		return c.fail(OpDelete, errUnexpected(OpDelete, c.table.Name, key, resp.Status))
	}
}

// read fetches the snapshot under key. A missing record yields a nil
// record and no error.
func (c *Collection[T]) read(ctx context.Context, op Operation, key string) (Record, error) {
	ct, err := c.container(op, key)
	if err != nil {
		return nil, err
	}
	resp, err := ct.Read(ctx, key)
	if err != nil {
		return nil, c.fail(op, errBackend(op, c.table.Name, key, err))
	}
	switch resp.Status {
	case StatusOK:
		if resp.Resource == nil {
			return nil, c.fail(op, errUnexpected(op, c.table.Name, key, resp.Status).
				WithDetail("reason", "no resource returned"))
		}
		return resp.Resource, nil
	case StatusNotFound:
		return nil, nil
	default:
		return nil, c.fail(op, errUnexpected(op, c.table.Name, key, resp.Status))
	}
}

func (c *Collection[T]) convert(op Operation, id string, rec Record) (T, error) {
	item, err := c.table.Convert(rec)
	if err != nil {
		var zero T
		return zero, c.fail(op, errUnexpected(op, c.table.Name, id, StatusOK).
			WithDetail("reason", "stored record does not convert").WithCause(err))
	}
	return item, nil
}

func (c *Collection[T]) fail(op Operation, err *errors.AppError) error {
	fields := map[string]interface{}{
		logger.FieldOperation: op,
		logger.FieldError:     err.Error(),
		"code":                err.Code,
	}
	if id, ok := err.Details[DetailID]; ok {
		fields[logger.FieldRecordID] = id
	}
	c.log.Warn("Store operation failed", fields)
	return err
}

// meaningfulID returns the document id carried by an item. Numeric zero
// counts as an id; nil and the empty string do not.
func meaningfulID(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	id := KeyString(v)
	return id, id != ""
}

func asAppError(err error) *errors.AppError {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	return errors.Validation(err.Error()).WithCause(err)
}
