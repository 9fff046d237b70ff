package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/kbukum/scalestore/docstore"
)

// document is one stored record. Body holds the full JSON document,
// metadata included; etag, rid and ts mirror the metadata for conditional
// updates.
type document struct {
	Container string `gorm:"column:container;primaryKey"`
	ID        string `gorm:"column:id;primaryKey"`
	Body      string `gorm:"column:body;not null"`
	ETag      string `gorm:"column:etag;not null"`
	RID       string `gorm:"column:rid;not null"`
	TS        int64  `gorm:"column:ts;not null"`
}

func (document) TableName() string { return "documents" }

func newDocument(container string, rec docstore.Record) (*document, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	rid, _ := rec[docstore.FieldRID].(string)
	return &document{
		Container: container,
		ID:        docstore.KeyString(rec[docstore.FieldID]),
		Body:      string(body),
		ETag:      rec.ETag(),
		RID:       rid,
		TS:        rec.Timestamp(),
	}, nil
}

func (d *document) record() (docstore.Record, error) {
	var rec docstore.Record
	if err := json.Unmarshal([]byte(d.Body), &rec); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", d.Container, d.ID, err)
	}
	return rec, nil
}
