package s3_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/scalestore/blob"
	"github.com/kbukum/scalestore/blob/s3"
	"github.com/kbukum/scalestore/errors"
)

const bucket = "scalestore-test"

// fakeS3 serves the path-style subset of the S3 API the provider uses.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := strings.CutPrefix(r.URL.Path, "/"+bucket)
	if !ok {
		http.Error(w, "no such bucket", http.StatusNotFound)
		return
	}
	key = strings.TrimPrefix(key, "/")

	if key == "" && r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2" {
		f.list(w, r.URL.Query().Get("prefix"))
		return
	}

	body, found := f.objects[key]
	switch {
	case !found && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusNotFound)
	case !found:
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message><Key>%s</Key></Error>`, key)
	case r.Method == http.MethodHead:
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.WriteHeader(http.StatusOK)
	default:
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, `<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>`, bucket, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>2024-05-01T10:00:00.000Z</LastModified><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`, k, len(f.objects[k]))
	}
	b.WriteString(`</ListBucketResult>`)
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(b.String()))
}

func newTestStorage(t *testing.T) *s3.Storage {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{
		"settings/defaults.json": `{"cooldown":"300"}`,
		"settings/2024/old.json": `{}`,
		"settings-backup/x.json": `{}`,
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := s3.NewStorage(context.Background(), blob.Config{
		Provider:  blob.ProviderS3,
		Bucket:    bucket,
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	return s
}

func TestS3Exists(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "settings/defaults.json")
	if err != nil || !ok {
		t.Errorf("expected object to exist, got %v err=%v", ok, err)
	}
	ok, err = s.Exists(ctx, "settings/missing.json")
	if err != nil || ok {
		t.Errorf("expected missing object, got %v err=%v", ok, err)
	}
}

func TestS3Download(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	got, err := blob.ReadString(ctx, s, "settings/defaults.json")
	if err != nil || got != `{"cooldown":"300"}` {
		t.Errorf("unexpected content %q err=%v", got, err)
	}
	if _, err := s.Download(ctx, "nope.json"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestS3ListDir(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	all, err := s.List(ctx, "settings/")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 objects under settings/, got %+v err=%v", all, err)
	}

	dir, err := blob.ListDir(ctx, s, "settings")
	if err != nil || len(dir) != 1 || dir[0].Path != "settings/defaults.json" || dir[0].Size != 18 {
		t.Errorf("expected only settings/defaults.json, got %+v err=%v", dir, err)
	}
}
