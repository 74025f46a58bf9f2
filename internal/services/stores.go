package services

import (
	"context"

	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/db/repositories"
	"github.com/platformhub/platformhub/internal/storage"
)

// UserStore is the user persistence the services need. Satisfied by
// *repositories.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateRole(ctx context.Context, username string, role models.Role) (*models.User, error)
}

// RequestStore is satisfied by *repositories.RequestRepository. Review must
// run decide and the conditional update in one transaction.
type RequestStore interface {
	Create(ctx context.Context, req *models.ResourceRequest, entry *models.AuditLog) error
	GetByID(ctx context.Context, id int64) (*models.ResourceRequest, error)
	List(ctx context.Context, filter repositories.RequestFilter) ([]models.ResourceRequest, error)
	Review(ctx context.Context, id int64, decide repositories.ReviewFunc) (*models.ResourceRequest, *models.AuditLog, error)
}

// AuditStore is satisfied by *repositories.AuditRepository.
type AuditStore interface {
	ListByRequest(ctx context.Context, requestID int64) ([]models.AuditEntry, error)
}

// ManifestArchiver is satisfied by *storage.Archiver.
type ManifestArchiver interface {
	Archive(ctx context.Context, req *models.ResourceRequest) (*storage.UploadResult, error)
}

var (
	_ UserStore        = (*repositories.UserRepository)(nil)
	_ RequestStore     = (*repositories.RequestRepository)(nil)
	_ AuditStore       = (*repositories.AuditRepository)(nil)
	_ ManifestArchiver = (*storage.Archiver)(nil)
)
