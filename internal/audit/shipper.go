// Package audit ships copies of committed audit entries to external sinks
// (JSON-lines file, HTTP webhook, Kafka topic). The audit_logs table stays the
// system of record; shipping is best effort and never fails a request.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/platformhub/platformhub/internal/config"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/telemetry"
)

// Event is the wire form of an audit entry
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	AuditID      int64     `json:"audit_id"`
	RequestID    int64     `json:"request_id"`
	Action       string    `json:"action"`
	Actor        string    `json:"actor"`
	Details      string    `json:"details"`
	ResourceType string    `json:"resource_type"`
	ResourceName string    `json:"resource_name"`
	Environment  string    `json:"environment"`
	Status       string    `json:"status"`
}

// NewEvent builds the shipped form of entry, recorded against req by actor.
func NewEvent(req *models.ResourceRequest, entry *models.AuditLog, actor string) *Event {
	return &Event{
		Timestamp:    entry.CreatedAt.UTC(),
		AuditID:      entry.ID,
		RequestID:    req.ID,
		Action:       entry.Action,
		Actor:        actor,
		Details:      entry.Details,
		ResourceType: string(req.ResourceType),
		ResourceName: req.Name,
		Environment:  string(req.Environment),
		Status:       string(req.Status),
	}
}

// Key partitions events per request so consumers see a request's history in order.
func (e *Event) Key() string {
	return strconv.FormatInt(e.RequestID, 10)
}

// Shipper delivers audit events to one destination
type Shipper interface {
	Ship(ctx context.Context, event *Event) error
	Close() error
}

type namedShipper struct {
	name string
	Shipper
}

// MultiShipper fans an event out to every configured destination
type MultiShipper struct {
	mu       sync.RWMutex
	shippers []namedShipper
}

// NewMultiShipper builds the destinations enabled in cfg. A disabled config
// yields a MultiShipper that ships nowhere.
func NewMultiShipper(cfg config.AuditConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}
	if !cfg.Enabled {
		return ms, nil
	}

	if cfg.File.Path != "" {
		fs, err := NewFileShipper(cfg.File.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create file shipper: %w", err)
		}
		ms.Add("file", fs)
	}
	if cfg.Webhook.URL != "" {
		ms.Add("webhook", NewWebhookShipper(cfg.Webhook))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		ms.Add("kafka", NewKafkaShipper(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	return ms, nil
}

// Add registers another destination under name.
func (ms *MultiShipper) Add(name string, s Shipper) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.shippers = append(ms.shippers, namedShipper{name: name, Shipper: s})
}

// Len reports the number of destinations.
func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship sends event to every destination, continuing past failures. The
// returned error joins all failures.
func (ms *MultiShipper) Ship(ctx context.Context, event *Event) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var errs []error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, event); err != nil {
			telemetry.AuditShipFailuresTotal.WithLabelValues(s.name).Inc()
			slog.Warn("audit shipper failed",
				"shipper", s.name, "request_id", event.RequestID, "action", event.Action, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every destination
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var errs []error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
