package docstore

import (
	"context"
	"net/http"
	"strconv"
)

// Status is the outcome a container reports for a single operation.
type Status int

const (
	StatusOK                 Status = http.StatusOK
	StatusCreated            Status = http.StatusCreated
	StatusNoContent          Status = http.StatusNoContent
	StatusNotFound           Status = http.StatusNotFound
	StatusConflict           Status = http.StatusConflict
	StatusPreconditionFailed Status = http.StatusPreconditionFailed
)

// Success reports whether s is one of the 2xx statuses.
func (s Status) Success() bool { return s >= 200 && s < 300 }

func (s Status) String() string {
	if text := http.StatusText(int(s)); text != "" {
		return text
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Response is a container's answer to a read, upsert or delete. Resource is
// the stored document including metadata, when the operation returns one.
type Response struct {
	Status   Status
	Resource Record
}

// UpsertOptions carries the optional write preconditions.
type UpsertOptions struct {
	// IfMatch makes the write fail with StatusPreconditionFailed unless the
	// stored document carries this revision tag. A missing document never
	// matches.
	IfMatch string
	// IfNoneMatch makes the write fail with StatusConflict if any document
	// with the same id exists.
	IfNoneMatch bool
}

// Container is a single table in a document store.
//
// Implementations return a non-nil error only for transport or encoding
// failures; expected outcomes such as a missing document or a failed
// precondition are reported through Response.Status.
type Container interface {
	Read(ctx context.Context, id string) (*Response, error)
	Query(ctx context.Context, q Query) ([]Record, error)
	Upsert(ctx context.Context, rec Record, opts UpsertOptions) (*Response, error)
	Delete(ctx context.Context, id string) (*Response, error)
}

// Backend hands out containers by table name.
type Backend interface {
	Container(name string) (Container, error)
}
