package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Storage is read access to an object store. Paths use "/" separators.
type Storage interface {
	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Download returns the object's content. The caller closes it.
	// A missing object fails with a NOT_FOUND error.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// List returns every object whose path starts with prefix, sorted by
	// path.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ReadString downloads the object at path and returns its full content.
func ReadString(ctx context.Context, s Storage, path string) (string, error) {
	rc, err := s.Download(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close() //nolint:errcheck // read-only

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("blob: read %s: %w", path, err)
	}
	return string(data), nil
}

// ListDir returns the objects directly inside dir. Objects in nested
// directories and objects that merely share a name prefix with dir are
// excluded.
func ListDir(ctx context.Context, s Storage, dir string) ([]ObjectInfo, error) {
	prefix := strings.Trim(dir, "/")
	if prefix != "" {
		prefix += "/"
	}
	all, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]ObjectInfo, 0, len(all))
	for _, obj := range all {
		rest, ok := strings.CutPrefix(obj.Path, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}
