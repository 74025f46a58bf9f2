package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/platformhub/platformhub/internal/audit"
	"github.com/platformhub/platformhub/internal/auth"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/db/repositories"
	"github.com/platformhub/platformhub/internal/manifest"
	"github.com/platformhub/platformhub/internal/telemetry"
)

// Review actions
const (
	ActionApprove = "approved"
	ActionReject  = "rejected"
)

// ReviewService drives the pending → approved/rejected state machine
type ReviewService struct {
	requests RequestStore
	after    postCommit
	now      func() time.Time
}

// NewReviewService creates a new ReviewService. shipper and archiver may be nil.
func NewReviewService(requests RequestStore, shipper audit.Shipper, archiver ManifestArchiver) *ReviewService {
	return &ReviewService{
		requests: requests,
		after:    postCommit{shipper: shipper, archiver: archiver},
		now:      time.Now,
	}
}

// ListPending returns the review queue, oldest first.
func (s *ReviewService) ListPending(ctx context.Context, actor *models.User) ([]models.ResourceRequest, error) {
	if err := auth.Authorize(actor.Role, auth.ReviewerRoles...); err != nil {
		return nil, wrapError(ErrForbidden, MsgInsufficientRole, err)
	}
	pending := models.StatusPending
	return s.requests.List(ctx, repositories.RequestFilter{Status: &pending, OldestFirst: true})
}

// Review applies action to a pending request. The status check, the manifest
// render and the audit append all happen under the row lock, so of two
// concurrent reviews exactly one succeeds.
func (s *ReviewService) Review(ctx context.Context, actor *models.User, id int64, action, comment string) (*models.ResourceRequest, error) {
	if err := auth.Authorize(actor.Role, auth.ReviewerRoles...); err != nil {
		return nil, wrapError(ErrForbidden, MsgInsufficientRole, err)
	}

	decide := func(req *models.ResourceRequest) (*models.AuditLog, error) {
		if req.Status != models.StatusPending {
			return nil, alreadyError(req.Status)
		}
		switch action {
		case ActionApprove:
			text, err := s.render(req)
			if err != nil {
				return nil, err
			}
			if err := req.Approve(actor.ID, comment, text, s.now()); err != nil {
				return nil, alreadyError(req.Status)
			}
		case ActionReject:
			if err := req.Reject(actor.ID, comment, s.now()); err != nil {
				return nil, alreadyError(req.Status)
			}
		default:
			return nil, newError(ErrInvalidArgument, MsgInvalidAction)
		}

		details := comment
		if details == "" {
			details = fmt.Sprintf("Request %s by %s", action, actor.Username)
		}
		return &models.AuditLog{Action: action, ActorID: actor.ID, Details: details}, nil
	}

	req, entry, err := s.requests.Review(ctx, id, decide)
	if errors.Is(err, repositories.ErrConcurrentUpdate) {
		return nil, s.lostRace(ctx, id, err)
	}
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, newError(ErrNotFound, MsgRequestNotFound)
	}

	telemetry.ReviewsTotal.WithLabelValues(action).Inc()
	slog.Info("resource request reviewed",
		"request_id", req.ID, "decision", action, "reviewer", actor.Username)
	s.after.shipAudit(ctx, req, entry, actor.Username)
	if req.Status == models.StatusApproved {
		s.after.archive(ctx, req)
	}
	return req, nil
}

func (s *ReviewService) render(req *models.ResourceRequest) (string, error) {
	start := time.Now()
	defer func() {
		telemetry.ManifestRenderDuration.WithLabelValues(string(req.ResourceType)).Observe(time.Since(start).Seconds())
	}()

	text, err := manifest.Render(req)
	if err != nil {
		return "", wrapError(ErrValidation, err.Error(), err)
	}
	if err := manifest.Validate(req.ResourceType, text); err != nil {
		return "", wrapError(ErrValidation, "generated manifest failed validation: "+err.Error(), err)
	}
	return text, nil
}

// lostRace reports a review that lost the conditional update to another
// reviewer, naming the status the winner left behind.
func (s *ReviewService) lostRace(ctx context.Context, id int64, cause error) error {
	cur, err := s.requests.GetByID(ctx, id)
	if err == nil && cur != nil && cur.Status.Terminal() {
		return wrapError(ErrInvalidTransition, fmt.Sprintf(msgAlreadyTemplate, cur.Status), cause)
	}
	return wrapError(ErrInvalidTransition, "Request is no longer pending", cause)
}
