package store

import (
	"context"
	"errors"
	"time"

	"github.com/jpalmerr/peek/internal/status"
)

// Sentinel errors returned by [Store] implementations.
var (
	ErrNotFound     = errors.New("store: record not found")
	ErrDuplicateURL = errors.New("store: url already exists")
	ErrClosed       = errors.New("store: closed")
)

// CheckRecord is the persisted state of one monitored endpoint.
//
// Configuration fields (IntervalSeconds, SearchPattern, ConfigUpdatedAt) are
// written only by reconciliation. State fields (LastState, Message,
// NextCheckAt, NextNotificationAt) are written only by [Store.UpdateState].
type CheckRecord struct {
	// ID is the stable record key, a UUID.
	ID string `json:"id"`

	// URL is the sanitized target URL. Unique across the store.
	URL string `json:"url"`

	// IntervalSeconds is the minimum spacing between probes.
	IntervalSeconds int `json:"interval_seconds"`

	// SearchPattern is the required body substring; "*" disables the check.
	SearchPattern string `json:"search_pattern"`

	// LastState is the signed status code of the last probe. Never zero.
	LastState status.Code `json:"last_state"`

	// Message is the diagnostic text of the last probe, possibly empty.
	Message string `json:"message"`

	// NextCheckAt is when the record next becomes eligible for probing.
	NextCheckAt time.Time `json:"next_check_at"`

	// ConfigUpdatedAt is the last time reconciliation touched the record.
	ConfigUpdatedAt time.Time `json:"config_updated_at"`

	// NextNotificationAt is the informational notification deadline.
	NextNotificationAt time.Time `json:"next_notification_at"`
}

// Interval returns IntervalSeconds as a duration.
func (r CheckRecord) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// Store persists check records.
//
// Implementations must be safe for concurrent use. Every method that reads
// or writes a single record by ID returns [ErrNotFound] when it is absent.
type Store interface {
	// Insert adds a new record, assigning an ID when rec.ID is empty.
	// It returns [ErrDuplicateURL] if a record with the same URL exists.
	Insert(ctx context.Context, rec CheckRecord) (CheckRecord, error)

	// Get returns the record with the given ID.
	Get(ctx context.Context, id string) (CheckRecord, error)

	// GetByURL returns the record with the given URL.
	GetByURL(ctx context.Context, url string) (CheckRecord, error)

	// List returns every record. The slice is a snapshot.
	List(ctx context.Context) ([]CheckRecord, error)

	// UpdateConfig overwrites the configuration fields of a record and sets
	// ConfigUpdatedAt to at. State fields are left untouched.
	UpdateConfig(ctx context.Context, id string, intervalSeconds int, searchPattern string, at time.Time) error

	// UpdateState atomically reads the latest stored record, passes a copy to
	// fn and persists the state fields of the copy when fn returns nil.
	// It returns the record as stored afterwards.
	UpdateState(ctx context.Context, id string, fn func(*CheckRecord) error) (CheckRecord, error)

	// DeleteStale removes every record whose ConfigUpdatedAt is before cutoff
	// and returns the removed records.
	DeleteStale(ctx context.Context, cutoff time.Time) ([]CheckRecord, error)

	// EnsureURLIndex makes sure URLs are uniquely indexed. Idempotent.
	EnsureURLIndex(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// ApplyState copies the state fields of src onto dst. Implementations use it
// to honour the [Store.UpdateState] contract.
func ApplyState(dst *CheckRecord, src CheckRecord) {
	dst.LastState = src.LastState
	dst.Message = src.Message
	dst.NextCheckAt = src.NextCheckAt
	dst.NextNotificationAt = src.NextNotificationAt
}
