package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	appconfig "github.com/platformhub/platformhub/internal/config"
	"github.com/platformhub/platformhub/internal/storage"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.S3StorageConfig
	}{
		{"missing bucket", appconfig.S3StorageConfig{Region: "us-east-1"}},
		{"missing region", appconfig.S3StorageConfig{Bucket: "b"}},
		{"static without keys", appconfig.S3StorageConfig{Bucket: "b", Region: "us-east-1", AuthMethod: "static"}},
		{"assume_role without arn", appconfig.S3StorageConfig{Bucket: "b", Region: "us-east-1", AuthMethod: "assume_role"}},
		{"unsupported auth", appconfig.S3StorageConfig{Bucket: "b", Region: "us-east-1", AuthMethod: "oidc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.cfg); err == nil {
				t.Error("New() = nil error, want validation error")
			}
		})
	}
}

func TestNew_AssumeRoleWithExternalID(t *testing.T) {
	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "b",
		Region:          "us-east-1",
		AuthMethod:      "assume_role",
		RoleARN:         "arn:aws:iam::123456789012:role/platformhub-archive",
		RoleSessionName: "platformhub",
		ExternalID:      "ext-123",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s == nil {
		t.Fatal("New() returned nil")
	}
}

type s3MockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	types   map[string]string
}

// newS3TestStorage speaks just enough path-style S3 REST for CRUD tests.
func newS3TestStorage(t *testing.T) (*S3Storage, *s3MockStore) {
	t.Helper()

	ms := &s3MockStore{
		objects: map[string][]byte{},
		meta:    map[string]map[string]string{},
		types:   map[string]string{},
	}
	const bucket = "test-bucket"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")

		ms.mu.Lock()
		defer ms.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			meta := map[string]string{}
			for hk, hv := range r.Header {
				lk := strings.ToLower(hk)
				if strings.HasPrefix(lk, "x-amz-meta-") && len(hv) > 0 {
					meta[strings.TrimPrefix(lk, "x-amz-meta-")] = hv[0]
				}
			}
			ms.objects[key] = data
			ms.meta[key] = meta
			ms.types[key] = r.Header.Get("Content-Type")
			w.Header().Set("ETag", `"test-etag"`)
			w.WriteHeader(http.StatusOK)

		case http.MethodGet:
			data, ok := ms.objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data)

		case http.MethodHead:
			data, ok := ms.objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)

		case http.MethodDelete:
			delete(ms.objects, key)
			delete(ms.meta, key)
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          bucket,
		Region:          "us-east-1",
		AuthMethod:      "static",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        srv.URL,
	})
	if err != nil {
		t.Fatalf("New() for mock S3: %v", err)
	}
	return s, ms
}

func TestS3_UploadStoresChecksumMetadata(t *testing.T) {
	s, ms := newS3TestStorage(t)

	data := []byte(`resource "aws_s3_bucket" "app_assets_production" {}`)
	res, err := s.Upload(context.Background(), "manifests/2/app-assets-production.tf", data, "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if res.Size != int64(len(data)) || len(res.Checksum) != 64 {
		t.Errorf("unexpected result: %+v", res)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if got := ms.meta["manifests/2/app-assets-production.tf"]["sha256"]; got != res.Checksum {
		t.Errorf("sha256 metadata = %q, want %q", got, res.Checksum)
	}
	if ct := ms.types["manifests/2/app-assets-production.tf"]; ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestS3_DownloadRoundTrip(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	want := []byte("download me from s3")
	if _, err := s.Upload(ctx, "dl.txt", want, ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	rc, err := s.Download(ctx, "dl.txt")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, want) {
		t.Errorf("Download content = %q, want %q", got, want)
	}
}

func TestS3_Download_NotFound(t *testing.T) {
	s, _ := newS3TestStorage(t)
	_, err := s.Download(context.Background(), "nonexistent.txt")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestS3_ExistsAndDelete(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "ghost.txt")
	if err != nil || ok {
		t.Fatalf("Exists(ghost) = %v, %v", ok, err)
	}

	if _, err := s.Upload(ctx, "todel.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ok, err := s.Exists(ctx, "todel.txt"); err != nil || !ok {
		t.Fatalf("Exists(todel) = %v, %v", ok, err)
	}
	if err := s.Delete(ctx, "todel.txt"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if ok, _ := s.Exists(ctx, "todel.txt"); ok {
		t.Error("Exists = true after delete")
	}
}
