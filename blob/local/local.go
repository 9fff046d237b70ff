// Package local is a blob provider over a directory on the local
// filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/scalestore/blob"
	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
)

func init() {
	blob.RegisterFactory(blob.ProviderLocal, func(_ context.Context, cfg blob.Config, _ *logger.Logger) (blob.Storage, error) {
		return NewStorage(cfg.BasePath)
	})
}

// Storage implements blob.Storage on a base directory.
type Storage struct {
	basePath string
}

// NewStorage creates a store rooted at basePath, creating it if needed.
func NewStorage(basePath string) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("blob: create base directory: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

// resolve maps an object path to a file under the base directory. Paths
// cannot escape it.
func (s *Storage) resolve(p string) string {
	clean := path.Clean("/" + p)
	return filepath.Join(s.basePath, filepath.FromSlash(clean))
}

// Exists reports whether a regular file exists at p.
func (s *Storage) Exists(_ context.Context, p string) (bool, error) {
	info, err := os.Stat(s.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("blob: stat %s: %w", p, err)
	}
	return !info.IsDir(), nil
}

// Download opens the file at p.
func (s *Storage) Download(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("object", p)
		}
		return nil, fmt.Errorf("blob: open %s: %w", p, err)
	}
	return f, nil
}

// List walks the base directory and returns files whose slash-separated
// relative path starts with prefix.
func (s *Storage) List(_ context.Context, prefix string) ([]blob.ObjectInfo, error) {
	var files []blob.ObjectInfo
	err := filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		ct := mime.TypeByExtension(filepath.Ext(p))
		if ct == "" {
			ct = "application/octet-stream"
		}
		files = append(files, blob.ObjectInfo{
			Path:         rel,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ct,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blob: list %q: %w", prefix, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

var _ blob.Storage = (*Storage)(nil)
