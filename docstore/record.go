package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/scalestore/errors"
)

// Store-assigned metadata fields. They are never part of caller input and
// are stripped before every write.
const (
	FieldETag        = "_etag"
	FieldTimestamp   = "_ts"
	FieldRID         = "_rid"
	FieldSelf        = "_self"
	FieldAttachments = "_attachments"

	// FieldID is the document id. It always carries the same value as the
	// table's primary-key field.
	FieldID = "id"
)

var metadataFields = []string{FieldETag, FieldTimestamp, FieldRID, FieldSelf, FieldAttachments}

// Record is a stored document: field name to JSON-compatible value.
type Record map[string]any

// IsMetadataField reports whether name is a store-assigned field.
func IsMetadataField(name string) bool {
	for _, f := range metadataFields {
		if f == name {
			return true
		}
	}
	return false
}

// StripMetadata returns a shallow copy of r without metadata fields.
func StripMetadata(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		if !IsMetadataField(k) {
			out[k] = v
		}
	}
	return out
}

// ETag returns the record's revision tag, or "" if it has none.
func (r Record) ETag() string {
	s, _ := r[FieldETag].(string)
	return s
}

// Timestamp returns the store write time in Unix milliseconds, or 0.
func (r Record) Timestamp() int64 {
	switch v := r[FieldTimestamp].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// ToRecord converts v into a Record through its JSON encoding, so values
// take the same shape the store returns (numbers become float64).
func ToRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.InvalidArgument(fmt.Sprintf("cannot encode %T as a record", v)).WithCause(err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec == nil {
		return nil, errors.InvalidArgument(fmt.Sprintf("%T does not encode to a JSON object", v))
	}
	return rec, nil
}

// Normalize returns a deep copy of r in its JSON shape.
func Normalize(r Record) (Record, error) {
	return ToRecord(r)
}

// KeyString renders a primary-key or id value as the string used for the
// document id. Integral numbers render without a decimal point.
func KeyString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(k), 'f', -1, 32)
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case int32:
		return strconv.FormatInt(int64(k), 10)
	case uint64:
		return strconv.FormatUint(k, 10)
	case json.Number:
		return k.String()
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}

// ValuesEqual compares two field values by their JSON representation, so
// int 3 and float64 3 are equal but "3" and 3 are not.
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

func normalizeValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// NewRevision returns a copy of rec stamped with fresh store metadata as a
// container does on every successful write. The internal id is kept from
// prev when there is one.
func NewRevision(rec Record, container string, prev Record, now time.Time) Record {
	out := make(Record, len(rec)+len(metadataFields))
	for k, v := range rec {
		out[k] = v
	}
	rid, _ := prev[FieldRID].(string)
	if rid == "" {
		rid = uuid.NewString()
	}
	out[FieldETag] = uuid.NewString()
	out[FieldTimestamp] = float64(now.UnixMilli())
	out[FieldRID] = rid
	out[FieldSelf] = "colls/" + container + "/docs/" + rid + "/"
	out[FieldAttachments] = "attachments/"
	return out
}
