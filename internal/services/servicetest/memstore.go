// Package servicetest provides in-memory stores with the same transactional
// semantics as the Postgres repositories, for service and handler tests.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platformhub/platformhub/internal/audit"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/db/repositories"
	"github.com/platformhub/platformhub/internal/storage"
)

// Store is an in-memory users, requests and audit log database. A single
// mutex stands in for the row lock taken by RequestRepository.Review.
type Store struct {
	mu       sync.Mutex
	users    []models.User
	requests []models.ResourceRequest
	audits   []models.AuditLog
	clock    func() time.Time
}

// NewStore returns an empty Store
func NewStore() *Store {
	return &Store{clock: time.Now}
}

// Users returns the UserStore view.
func (s *Store) Users() *Users { return &Users{s} }

// Requests returns the RequestStore view.
func (s *Store) Requests() *Requests { return &Requests{s} }

// Audits returns the AuditStore view.
func (s *Store) Audits() *Audits { return &Audits{s} }

// AuditLogs returns a copy of every audit row in insertion order.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.audits...)
}

func (s *Store) username(id int64) string {
	for _, u := range s.users {
		if u.ID == id {
			return u.Username
		}
	}
	return ""
}

func (s *Store) appendAudit(entry *models.AuditLog) {
	entry.ID = int64(len(s.audits) + 1)
	entry.CreatedAt = s.clock().UTC()
	s.audits = append(s.audits, *entry)
}

// Users implements services.UserStore
type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	user.ID = int64(len(u.s.users) + 1)
	if user.Role == "" {
		user.Role = models.RoleDeveloper
	}
	user.CreatedAt = u.s.clock().UTC()
	u.s.users = append(u.s.users, *user)
	return nil
}

func (u *Users) GetByID(_ context.Context, id int64) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.ID == id {
			found := existing
			return &found, nil
		}
	}
	return nil, nil
}

func (u *Users) GetByUsername(_ context.Context, username string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Username == username {
			found := existing
			return &found, nil
		}
	}
	return nil, nil
}

func (u *Users) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Username == username || existing.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (u *Users) UpdateRole(_ context.Context, username string, role models.Role) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for i := range u.s.users {
		if u.s.users[i].Username == username {
			u.s.users[i].Role = role
			found := u.s.users[i]
			return &found, nil
		}
	}
	return nil, nil
}

// Requests implements services.RequestStore
type Requests struct{ s *Store }

func (r *Requests) Create(_ context.Context, req *models.ResourceRequest, entry *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req.ID = int64(len(r.s.requests) + 1)
	req.Status = models.StatusPending
	req.CreatedAt = r.s.clock().UTC()
	r.s.requests = append(r.s.requests, *req)
	entry.RequestID = req.ID
	r.s.appendAudit(entry)
	return nil
}

func (r *Requests) GetByID(_ context.Context, id int64) (*models.ResourceRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.requests {
		if req.ID == id {
			found := req
			return &found, nil
		}
	}
	return nil, nil
}

func (r *Requests) List(_ context.Context, filter repositories.RequestFilter) ([]models.ResourceRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.ResourceRequest{}
	for _, req := range r.s.requests {
		if filter.RequesterID != nil && req.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		out = append(out, req)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if filter.OldestFirst {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Review runs decide on a copy of the row under the store lock and only
// writes it back when decide succeeds, like the transactional repository.
func (r *Requests) Review(_ context.Context, id int64, decide repositories.ReviewFunc) (*models.ResourceRequest, *models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	idx := -1
	for i := range r.s.requests {
		if r.s.requests[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, nil
	}

	req := r.s.requests[idx]
	entry, err := decide(&req)
	if err != nil {
		return nil, nil, err
	}
	if r.s.requests[idx].Status != models.StatusPending {
		return nil, nil, repositories.ErrConcurrentUpdate
	}
	r.s.requests[idx] = req
	entry.RequestID = req.ID
	r.s.appendAudit(entry)
	return &req, entry, nil
}

// Audits implements services.AuditStore
type Audits struct{ s *Store }

func (a *Audits) ListByRequest(_ context.Context, requestID int64) ([]models.AuditEntry, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	out := []models.AuditEntry{}
	for _, l := range a.s.audits {
		if l.RequestID != requestID {
			continue
		}
		out = append(out, models.AuditEntry{
			ID:        l.ID,
			RequestID: l.RequestID,
			Action:    l.Action,
			Actor:     a.s.username(l.ActorID),
			Details:   l.Details,
			CreatedAt: l.CreatedAt,
		})
	}
	return out, nil
}

// Archiver records archived requests
type Archiver struct {
	mu       sync.Mutex
	Archived []int64
	Err      error
}

func (a *Archiver) Archive(_ context.Context, req *models.ResourceRequest) (*storage.UploadResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	a.Archived = append(a.Archived, req.ID)
	return &storage.UploadResult{Path: req.Identifier(), Size: int64(len(*req.GeneratedManifest))}, nil
}

// Calls returns the IDs archived so far.
func (a *Archiver) Calls() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.Archived...)
}

// Shipper records shipped audit events
type Shipper struct {
	mu     sync.Mutex
	Events []audit.Event
}

func (sh *Shipper) Ship(_ context.Context, event *audit.Event) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.Events = append(sh.Events, *event)
	return nil
}

func (sh *Shipper) Close() error { return nil }

// Actions returns the shipped actions in order.
func (sh *Shipper) Actions() []string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	out := make([]string, 0, len(sh.Events))
	for _, e := range sh.Events {
		out = append(out, e.Action)
	}
	return out
}
