package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/platformhub/platformhub/internal/config"
	"github.com/platformhub/platformhub/internal/storage"
)

type storedBlob struct {
	content  []byte
	metadata map[string]string
}

// newTestStorage points the backend at a handler imitating enough of the
// Blob REST API for CRUD tests.
func newTestStorage(t *testing.T) (*AzureStorage, map[string]*storedBlob) {
	t.Helper()

	var mu sync.Mutex
	store := map[string]*storedBlob{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		mu.Lock()
		defer mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			meta := map[string]string{}
			for k, v := range r.Header {
				lk := strings.ToLower(k)
				if strings.HasPrefix(lk, "x-ms-meta-") && len(v) > 0 {
					meta[strings.TrimPrefix(lk, "x-ms-meta-")] = v[0]
				}
			}
			store[key] = &storedBlob{content: data, metadata: meta}
			w.WriteHeader(http.StatusCreated)

		case http.MethodGet:
			b, ok := store[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(b.content)))
			w.WriteHeader(http.StatusOK)
			w.Write(b.content)

		case http.MethodHead:
			b, ok := store[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(b.content)))
			w.Header().Set("Last-Modified", time.Now().UTC().Format(time.RFC1123))
			w.WriteHeader(http.StatusOK)

		case http.MethodDelete:
			if _, ok := store[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(store, key)
			w.WriteHeader(http.StatusAccepted)

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := azblob.NewClientWithNoCredential(srv.URL, nil)
	if err != nil {
		t.Fatalf("failed to create azblob client: %v", err)
	}
	return newWithClient(client, "manifests"), store
}

func TestNew_Validation(t *testing.T) {
	tests := []config.AzureStorageConfig{
		{AccountKey: "k", ContainerName: "c"},
		{AccountName: "a", ContainerName: "c"},
		{AccountName: "a", AccountKey: "k"},
	}
	for i, cfg := range tests {
		if _, err := New(&cfg); err == nil {
			t.Errorf("case %d: New() = nil error, want validation error", i)
		}
	}
}

func TestUploadDownloadExistsDelete(t *testing.T) {
	s, store := newTestStorage(t)
	ctx := context.Background()
	data := []byte("apiVersion: v1\nkind: Namespace\n")

	res, err := s.Upload(ctx, "1/team-api-staging.yaml", data, "application/yaml")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", res.Size, len(data))
	}
	if got := store["manifests/1/team-api-staging.yaml"].metadata["sha256"]; got != res.Checksum {
		t.Errorf("sha256 metadata = %q, want %q", got, res.Checksum)
	}

	ok, err := s.Exists(ctx, "1/team-api-staging.yaml")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	rc, err := s.Download(ctx, "1/team-api-staging.yaml")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != string(data) {
		t.Errorf("content = %q", got)
	}

	if err := s.Delete(ctx, "1/team-api-staging.yaml"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, _ := s.Exists(ctx, "1/team-api-staging.yaml"); ok {
		t.Error("blob still exists after delete")
	}
	if err := s.Delete(ctx, "1/team-api-staging.yaml"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

func TestDownload_NotFound(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.Download(context.Background(), "missing.tf")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
