package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/platformhub/platformhub/internal/audit"
	"github.com/platformhub/platformhub/internal/auth"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/db/repositories"
	"github.com/platformhub/platformhub/internal/manifest"
	"github.com/platformhub/platformhub/internal/telemetry"
	"github.com/platformhub/platformhub/internal/validation"
	"github.com/platformhub/platformhub/pkg/checksum"
)

// CreateRequestInput is the submission payload
type CreateRequestInput struct {
	ResourceType models.ResourceType `json:"resource_type" validate:"required,resource_type"`
	Name         string              `json:"name" validate:"required,resource_name"`
	Environment  models.Environment  `json:"environment" validate:"required,environment"`
	Parameters   map[string]string   `json:"parameters"`
}

// ManifestFile is a downloadable rendering of an approved request
type ManifestFile struct {
	Filename    string
	ContentType string
	ETag        string
	Content     []byte
}

// RequestService handles submission and read access to requests
type RequestService struct {
	requests RequestStore
	audits   AuditStore
	after    postCommit
}

// NewRequestService creates a new RequestService. shipper may be nil.
func NewRequestService(requests RequestStore, audits AuditStore, shipper audit.Shipper) *RequestService {
	return &RequestService{
		requests: requests,
		audits:   audits,
		after:    postCommit{shipper: shipper},
	}
}

// Create validates and stores a pending request together with its "created"
// audit entry.
func (s *RequestService) Create(ctx context.Context, actor *models.User, in CreateRequestInput) (*models.ResourceRequest, error) {
	if err := validation.Struct(in); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if err := manifest.CheckParameters(in.ResourceType, in.Parameters); err != nil {
		return nil, wrapError(ErrValidation, err.Error(), err)
	}
	if err := manifest.CheckIdentifier(in.ResourceType, in.Name, in.Environment); err != nil {
		return nil, wrapError(ErrValidation, err.Error(), err)
	}

	params := models.Parameters{}
	for k, v := range in.Parameters {
		params[k] = v
	}
	req := &models.ResourceRequest{
		ResourceType: in.ResourceType,
		Name:         in.Name,
		Environment:  in.Environment,
		Parameters:   params,
		Status:       models.StatusPending,
		RequesterID:  actor.ID,
	}
	entry := &models.AuditLog{
		Action:  models.AuditActionCreated,
		ActorID: actor.ID,
		Details: fmt.Sprintf("Requested %s '%s' in %s", in.ResourceType, in.Name, in.Environment),
	}
	if err := s.requests.Create(ctx, req, entry); err != nil {
		return nil, err
	}

	telemetry.RequestsCreatedTotal.WithLabelValues(string(req.ResourceType)).Inc()
	slog.Info("resource request created",
		"request_id", req.ID, "resource_type", req.ResourceType, "name", req.Name,
		"environment", req.Environment, "requester", actor.Username)
	s.after.shipAudit(ctx, req, entry, actor.Username)
	return req, nil
}

// List returns the requests actor may see, newest first. status may be empty.
func (s *RequestService) List(ctx context.Context, actor *models.User, status string) ([]models.ResourceRequest, error) {
	var filter repositories.RequestFilter
	if status != "" {
		st := models.RequestStatus(status)
		if !st.Valid() {
			return nil, validationError("status must be one of pending, approved, rejected")
		}
		filter.Status = &st
	}
	if !auth.SeesAllRequests(actor.Role) {
		filter.RequesterID = &actor.ID
	}
	return s.requests.List(ctx, filter)
}

// Get returns a request if actor may see it
func (s *RequestService) Get(ctx context.Context, actor *models.User, id int64) (*models.ResourceRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, newError(ErrNotFound, MsgRequestNotFound)
	}
	if !canView(actor, req) {
		return nil, newError(ErrForbidden, MsgNotAuthorized)
	}
	return req, nil
}

// Audit returns the request's audit trail, oldest first, under the same
// visibility rules as Get.
func (s *RequestService) Audit(ctx context.Context, actor *models.User, id int64) ([]models.AuditEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.audits.ListByRequest(ctx, id)
}

// Manifest returns the approved request's manifest as a file
func (s *RequestService) Manifest(ctx context.Context, actor *models.User, id int64) (*ManifestFile, error) {
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusApproved || req.GeneratedManifest == nil {
		return nil, newError(ErrNotFound, MsgManifestNotReady)
	}
	content := []byte(*req.GeneratedManifest)
	return &ManifestFile{
		Filename:    manifest.Filename(req),
		ContentType: manifest.ContentType(req.ResourceType),
		ETag:        checksum.ETag(content),
		Content:     content,
	}, nil
}

func canView(actor *models.User, req *models.ResourceRequest) bool {
	return auth.SeesAllRequests(actor.Role) || req.RequesterID == actor.ID
}
