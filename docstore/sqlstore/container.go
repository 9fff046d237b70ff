package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/scalestore/docstore"
	"github.com/kbukum/scalestore/validation"
)

// Container is one logical table inside the documents SQL table.
type Container struct {
	name string
	db   *DB
	now  func() time.Time
}

func (c *Container) Read(ctx context.Context, id string) (*docstore.Response, error) {
	var row document
	err := c.db.WithContext(ctx).Where("container = ? AND id = ?", c.name, id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &docstore.Response{Status: docstore.StatusNotFound}, nil
	}
	if err != nil {
		return nil, FromDatabase(err)
	}
	rec, err := row.record()
	if err != nil {
		return nil, err
	}
	return &docstore.Response{Status: docstore.StatusOK, Resource: rec}, nil
}

func (c *Container) Query(ctx context.Context, q docstore.Query) ([]docstore.Record, error) {
	tx := c.db.WithContext(ctx).Where("container = ?", c.name)

	v := validation.New()
	for _, w := range q.Where {
		v.Identifier("field", w.Field)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	for _, w := range q.Where {
		path := fmt.Sprintf("json_extract(body, '$.%s')", w.Field)
		if w.Value == nil {
			tx = tx.Where(path + " IS NULL")
			continue
		}
		arg, err := sqlValue(w.Value)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(path+" = ?", arg)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []document
	if err := tx.Order("id").Find(&rows).Error; err != nil {
		return nil, FromDatabase(err)
	}
	out := make([]docstore.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// sqlValue maps a clause value to what json_extract yields for the same JSON
// value: booleans are integers, objects and arrays are JSON text.
func sqlValue(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return val, nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode query value: %w", err)
		}
		return string(data), nil
	}
}

func (c *Container) Upsert(ctx context.Context, rec docstore.Record, opts docstore.UpsertOptions) (*docstore.Response, error) {
	body, err := docstore.Normalize(docstore.StripMetadata(rec))
	if err != nil {
		return nil, err
	}
	id := docstore.KeyString(body[docstore.FieldID])

	var resp *docstore.Response
	err = c.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var existing document
		err := tx.Where("container = ? AND id = ?", c.name, id).Take(&existing).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if opts.IfNoneMatch && exists {
			resp = &docstore.Response{Status: docstore.StatusConflict}
			return nil
		}
		if opts.IfMatch != "" && (!exists || existing.ETag != opts.IfMatch) {
			resp = &docstore.Response{Status: docstore.StatusPreconditionFailed}
			return nil
		}

		var prev docstore.Record
		if exists {
			if prev, err = existing.record(); err != nil {
				return err
			}
		}
		doc := docstore.NewRevision(body, c.name, prev, c.now())
		row, err := newDocument(c.name, doc)
		if err != nil {
			return err
		}

		if !exists {
			if err := tx.Create(row).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					resp = &docstore.Response{Status: docstore.StatusConflict}
					return nil
				}
				return err
			}
			resp = &docstore.Response{Status: docstore.StatusCreated, Resource: doc}
			return nil
		}

		res := tx.Model(&document{}).
			Where("container = ? AND id = ? AND etag = ?", c.name, id, existing.ETag).
			Updates(map[string]interface{}{"body": row.Body, "etag": row.ETag, "ts": row.TS})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			resp = &docstore.Response{Status: docstore.StatusPreconditionFailed}
			return nil
		}
		resp = &docstore.Response{Status: docstore.StatusOK, Resource: doc}
		return nil
	})
	if err != nil {
		return nil, FromDatabase(err)
	}
	if resp.Resource != nil {
		if resp.Resource, err = docstore.Normalize(resp.Resource); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *Container) Delete(ctx context.Context, id string) (*docstore.Response, error) {
	res := c.db.WithContext(ctx).Where("container = ? AND id = ?", c.name, id).Delete(&document{})
	if res.Error != nil {
		return nil, FromDatabase(res.Error)
	}
	if res.RowsAffected == 0 {
		return &docstore.Response{Status: docstore.StatusNotFound}, nil
	}
	return &docstore.Response{Status: docstore.StatusNoContent}, nil
}

var _ docstore.Container = (*Container)(nil)
