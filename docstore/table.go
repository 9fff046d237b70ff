package docstore

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/validation"
)

// Table describes a logical table: its name, primary-key field and how raw
// records map to T. A Table is stateless and safe to share.
type Table[T any] struct {
	Name       string
	PrimaryKey string

	validate func(Record) error
	convert  func(Record) (T, error)
}

// TableOption customizes a Table.
type TableOption[T any] func(*Table[T])

// WithValidator replaces the default validation of caller input.
func WithValidator[T any](fn func(Record) error) TableOption[T] {
	return func(t *Table[T]) { t.validate = fn }
}

// WithConverter replaces the default conversion of stored records.
func WithConverter[T any](fn func(Record) (T, error)) TableOption[T] {
	return func(t *Table[T]) { t.convert = fn }
}

// NewTable creates a table descriptor.
//
// By default Validate decodes the non-metadata fields strictly into T
// (unknown fields and mistyped values are rejected) and then checks T's
// `validate:` struct tags; Convert decodes leniently after stripping
// metadata. Field names follow T's json tags.
func NewTable[T any](name, primaryKey string, opts ...TableOption[T]) *Table[T] {
	t := &Table[T]{Name: name, PrimaryKey: primaryKey}
	t.validate = t.defaultValidate
	t.convert = t.defaultConvert
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Validate checks the non-metadata fields of item.
func (t *Table[T]) Validate(item Record) error {
	return t.validate(item)
}

// Convert maps a stored record to T, tolerating extra or missing metadata.
func (t *Table[T]) Convert(raw Record) (T, error) {
	return t.convert(raw)
}

// Decode decodes the non-metadata fields of raw into T using the table's
// json field names. Strict decoding rejects unknown fields and does not
// coerce between strings and numbers.
func Decode[T any](raw Record, strict bool) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		ErrorUnused:      strict,
		WeaklyTypedInput: !strict,
	})
	if err != nil {
		return out, err
	}
	err = dec.Decode(map[string]any(StripMetadata(raw)))
	return out, err
}

func (t *Table[T]) defaultValidate(item Record) error {
	typed, err := Decode[T](item, true)
	if err != nil {
		return errors.Validation(fmt.Sprintf("invalid %s record: %v", t.Name, err)).
			WithDetail("table", t.Name)
	}
	if err := validation.Validate(typed); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return appErr.WithDetail("table", t.Name)
		}
		return err
	}
	return nil
}

func (t *Table[T]) defaultConvert(raw Record) (T, error) {
	return Decode[T](raw, false)
}
