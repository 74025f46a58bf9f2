package storage

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/manifest"
)

// Archiver copies approved manifests into a Storage backend under
// {prefix}/{request id}/{name}-{env}.{ext}.
type Archiver struct {
	store  Storage
	prefix string
}

// NewArchiver creates an Archiver writing below prefix
func NewArchiver(store Storage, prefix string) *Archiver {
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object path for req's manifest
func (a *Archiver) Key(req *models.ResourceRequest) string {
	return path.Join(a.prefix, strconv.FormatInt(req.ID, 10), manifest.Filename(req))
}

// Archive uploads the request's manifest. Requests without a manifest are a
// caller error.
func (a *Archiver) Archive(ctx context.Context, req *models.ResourceRequest) (*UploadResult, error) {
	if req.GeneratedManifest == nil {
		return nil, fmt.Errorf("request %d has no manifest to archive", req.ID)
	}
	return a.store.Upload(ctx, a.Key(req), []byte(*req.GeneratedManifest), manifest.ContentType(req.ResourceType))
}
