package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/platformhub/platformhub/internal/audit"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/telemetry"
)

const postCommitTimeout = 10 * time.Second

// postCommit runs the best-effort side effects of a committed change. Every
// failure is logged and counted, never returned.
type postCommit struct {
	shipper  audit.Shipper
	archiver ManifestArchiver
}

func (p postCommit) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
}

func (p postCommit) shipAudit(ctx context.Context, req *models.ResourceRequest, entry *models.AuditLog, actor string) {
	if p.shipper == nil {
		return
	}
	ctx, cancel := p.detach(ctx)
	defer cancel()
	if err := p.shipper.Ship(ctx, audit.NewEvent(req, entry, actor)); err != nil {
		slog.Warn("failed to ship audit entry", "request_id", req.ID, "action", entry.Action, "error", err)
	}
}

func (p postCommit) archive(ctx context.Context, req *models.ResourceRequest) {
	if p.archiver == nil || req.GeneratedManifest == nil {
		return
	}
	ctx, cancel := p.detach(ctx)
	defer cancel()
	res, err := p.archiver.Archive(ctx, req)
	if err != nil {
		telemetry.ManifestArchiveFailuresTotal.Inc()
		slog.Error("failed to archive manifest", "request_id", req.ID, "error", err)
		return
	}
	slog.Info("manifest archived", "request_id", req.ID, "path", res.Path, "sha256", res.Checksum)
}
