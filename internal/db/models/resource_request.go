// Package models - resource_request.go defines ResourceRequest and the
// pending → approved/rejected state machine that guards manifest generation.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ResourceType identifies a catalog entry
type ResourceType string

const (
	ResourceK8sNamespace ResourceType = "k8s_namespace"
	ResourceS3Bucket     ResourceType = "s3_bucket"
	ResourceRDSDatabase  ResourceType = "rds_database"
)

// ResourceTypes lists every provisionable type in catalog declaration order.
var ResourceTypes = []ResourceType{ResourceK8sNamespace, ResourceS3Bucket, ResourceRDSDatabase}

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceK8sNamespace, ResourceS3Bucket, ResourceRDSDatabase:
		return true
	}
	return false
}

// Environment is the deployment stage a resource is requested for
type Environment string

const (
	EnvDev        Environment = "dev"
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// Environments lists every environment.
var Environments = []Environment{EnvDev, EnvStaging, EnvProduction}

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	switch e {
	case EnvDev, EnvStaging, EnvProduction:
		return true
	}
	return false
}

// RequestStatus is the review state of a request
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ErrNotPending is returned by Approve and Reject when the request has
// already been reviewed.
var ErrNotPending = errors.New("request is not pending")

// Parameters is the free-form parameter mapping of a request. It is stored as
// JSON text.
type Parameters map[string]string

// Value implements driver.Valuer.
func (p Parameters) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Parameters) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Parameters{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Parameters", src)
	}
	if len(raw) == 0 {
		*p = Parameters{}
		return nil
	}
	m := map[string]string{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	*p = m
	return nil
}

// ResourceRequest is a provisioning ask reviewed by an approver
type ResourceRequest struct {
	ID                int64         `json:"id" db:"id"`
	ResourceType      ResourceType  `json:"resource_type" db:"resource_type"`
	Name              string        `json:"name" db:"name"`
	Environment       Environment   `json:"environment" db:"environment"`
	Parameters        Parameters    `json:"parameters" db:"parameters"`
	Status            RequestStatus `json:"status" db:"status"`
	GeneratedManifest *string       `json:"generated_manifest" db:"generated_manifest"`
	RequesterID       int64         `json:"requester_id" db:"requester_id"`
	ReviewerID        *int64        `json:"reviewer_id" db:"reviewer_id"`
	ReviewComment     *string       `json:"review_comment" db:"review_comment"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	ReviewedAt        *time.Time    `json:"reviewed_at" db:"reviewed_at"`
}

// Identifier is the derived "{name}-{environment}" name used in manifests.
func (r *ResourceRequest) Identifier() string {
	return r.Name + "-" + string(r.Environment)
}

// Approve moves a pending request to approved and attaches its manifest.
func (r *ResourceRequest) Approve(reviewerID int64, comment, manifest string, at time.Time) error {
	if err := r.review(reviewerID, comment, at); err != nil {
		return err
	}
	r.Status = StatusApproved
	r.GeneratedManifest = &manifest
	return nil
}

// Reject moves a pending request to rejected. The manifest stays nil.
func (r *ResourceRequest) Reject(reviewerID int64, comment string, at time.Time) error {
	if err := r.review(reviewerID, comment, at); err != nil {
		return err
	}
	r.Status = StatusRejected
	r.GeneratedManifest = nil
	return nil
}

func (r *ResourceRequest) review(reviewerID int64, comment string, at time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: status is %s", ErrNotPending, r.Status)
	}
	r.ReviewerID = &reviewerID
	r.ReviewComment = &comment
	at = at.UTC()
	r.ReviewedAt = &at
	return nil
}
