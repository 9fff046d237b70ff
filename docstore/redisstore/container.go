package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/scalestore/docstore"
)

// maxTxAttempts bounds retries of an unconditional write whose WATCH was
// tripped by another writer.
const maxTxAttempts = 3

// Container stores each document of one table under <prefix>:<table>:<id>.
type Container struct {
	name      string
	prefix    string
	rdb       *goredis.Client
	scanCount int64
	now       func() time.Time
}

func (c *Container) key(id string) string {
	return c.prefix + ":" + c.name + ":" + id
}

func (c *Container) pattern() string {
	return escapeGlob(c.prefix) + ":" + escapeGlob(c.name) + ":*"
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

func decode(data string) (docstore.Record, error) {
	var rec docstore.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return rec, nil
}

func (c *Container) Read(ctx context.Context, id string) (*docstore.Response, error) {
	data, err := c.rdb.Get(ctx, c.key(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return &docstore.Response{Status: docstore.StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	rec, err := decode(data)
	if err != nil {
		return nil, err
	}
	return &docstore.Response{Status: docstore.StatusOK, Resource: rec}, nil
}

// Query scans the table's key space and filters in process.
func (c *Container) Query(ctx context.Context, q docstore.Query) ([]docstore.Record, error) {
	var records []docstore.Record
	iter := c.rdb.Scan(ctx, 0, c.pattern(), c.scanCount).Iterator()
	batch := make([]string, 0, c.scanCount)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		values, err := c.rdb.MGet(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis mget: %w", err)
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				continue // deleted between SCAN and MGET
			}
			rec, err := decode(s)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= c.scanCount {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return q.Apply(records), nil
}

// Upsert writes inside a WATCH/MULTI transaction so the precondition check
// and the write are atomic with respect to other writers.
func (c *Container) Upsert(ctx context.Context, rec docstore.Record, opts docstore.UpsertOptions) (*docstore.Response, error) {
	body, err := docstore.Normalize(docstore.StripMetadata(rec))
	if err != nil {
		return nil, err
	}
	key := c.key(docstore.KeyString(body[docstore.FieldID]))
	conditional := opts.IfMatch != "" || opts.IfNoneMatch

	for attempt := 1; ; attempt++ {
		var resp *docstore.Response
		err := c.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			var prev docstore.Record
			data, err := tx.Get(ctx, key).Result()
			exists := err == nil
			switch {
			case errors.Is(err, goredis.Nil):
			case err != nil:
				return err
			default:
				if prev, err = decode(data); err != nil {
					return err
				}
			}

			if opts.IfNoneMatch && exists {
				resp = &docstore.Response{Status: docstore.StatusConflict}
				return nil
			}
			if opts.IfMatch != "" && (!exists || prev.ETag() != opts.IfMatch) {
				resp = &docstore.Response{Status: docstore.StatusPreconditionFailed}
				return nil
			}

			doc := docstore.NewRevision(body, c.name, prev, c.now())
			encoded, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encode document: %w", err)
			}
			if _, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			}); err != nil {
				return err
			}

			status := docstore.StatusCreated
			if exists {
				status = docstore.StatusOK
			}
			normalized, err := docstore.Normalize(doc)
			if err != nil {
				return err
			}
			resp = &docstore.Response{Status: status, Resource: normalized}
			return nil
		}, key)

		switch {
		case err == nil:
			return resp, nil
		case errors.Is(err, goredis.TxFailedErr) && conditional:
			if opts.IfNoneMatch {
				return &docstore.Response{Status: docstore.StatusConflict}, nil
			}
			return &docstore.Response{Status: docstore.StatusPreconditionFailed}, nil
		case errors.Is(err, goredis.TxFailedErr) && attempt < maxTxAttempts:
			continue
		default:
			return nil, fmt.Errorf("redis upsert: %w", err)
		}
	}
}

func (c *Container) Delete(ctx context.Context, id string) (*docstore.Response, error) {
	n, err := c.rdb.Del(ctx, c.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return &docstore.Response{Status: docstore.StatusNotFound}, nil
	}
	return &docstore.Response{Status: docstore.StatusNoContent}, nil
}

var _ docstore.Container = (*Container)(nil)
