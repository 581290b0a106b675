// Package velocity measures how often an entity or source IP has been
// assessed within trailing windows.
package velocity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the slice of the fraud store velocity reads from.
type Store interface {
	CountAssessments(ctx context.Context, entityID string, since time.Time) (int64, error)
	CountAuditLogsByIP(ctx context.Context, ip string, since time.Time) (int64, error)
}

// Limits are the maximum counts tolerated per trailing window.
type Limits struct {
	PerHour   int
	PerDay    int
	IPPerHour int
}

// DefaultLimits allow 5 assessments an hour and 20 a day per entity,
// and 5 requests an hour per source IP.
func DefaultLimits() Limits {
	return Limits{PerHour: 5, PerDay: 20, IPPerHour: 5}
}

// Scope identifies what a count was taken over.
type Scope string

const (
	ScopeEntityHour Scope = "entity_hour"
	ScopeEntityDay  Scope = "entity_day"
	ScopeIPHour     Scope = "ip_hour"
)

// Snapshot holds trailing-window counts. IPHour is -1 when no IP was given.
type Snapshot struct {
	EntityHour int64
	EntityDay  int64
	IPHour     int64
}

// Breach is one window whose count exceeded its limit.
type Breach struct {
	Scope Scope
	Count int64
	Limit int
}

// Service measures trailing-window activity.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a velocity service over a store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Measure counts the entity's assessments over the last hour and day, and
// the IP's audit rows over the last hour.
func (s *Service) Measure(ctx context.Context, entityID, ip string) (Snapshot, error) {
	if entityID == "" {
		return Snapshot{}, errors.New("entity id is required")
	}

	now := s.now()
	snap := Snapshot{IPHour: -1}

	var err error
	if snap.EntityHour, err = s.store.CountAssessments(ctx, entityID, now.Add(-time.Hour)); err != nil {
		return Snapshot{}, fmt.Errorf("count hourly assessments: %w", err)
	}
	if snap.EntityDay, err = s.store.CountAssessments(ctx, entityID, now.Add(-24*time.Hour)); err != nil {
		return Snapshot{}, fmt.Errorf("count daily assessments: %w", err)
	}
	if ip != "" {
		if snap.IPHour, err = s.store.CountAuditLogsByIP(ctx, ip, now.Add(-time.Hour)); err != nil {
			return Snapshot{}, fmt.Errorf("count ip activity: %w", err)
		}
	}

	return snap, nil
}

// Breaches lists the windows of a snapshot that exceed the limits.
// A zero limit disables its window.
func (l Limits) Breaches(s Snapshot) []Breach {
	var out []Breach
	if l.PerHour > 0 && s.EntityHour > int64(l.PerHour) {
		out = append(out, Breach{Scope: ScopeEntityHour, Count: s.EntityHour, Limit: l.PerHour})
	}
	if l.PerDay > 0 && s.EntityDay > int64(l.PerDay) {
		out = append(out, Breach{Scope: ScopeEntityDay, Count: s.EntityDay, Limit: l.PerDay})
	}
	if l.IPPerHour > 0 && s.IPHour > int64(l.IPPerHour) {
		out = append(out, Breach{Scope: ScopeIPHour, Count: s.IPHour, Limit: l.IPPerHour})
	}
	return out
}
