package services

import (
	"context"
	"time"
)

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
	Checks   map[string]string `json:"checks"`
	Sessions int               `json:"active_sessions"`
}

// Pinger is anything whose liveness can be checked. The sqlite store
// satisfies it through database/sql.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of live import sessions.
type SessionCounter interface {
	Count() int
}

// HealthService aggregates component checks for the health endpoint.
type HealthService struct {
	version  string
	started  time.Time
	db       Pinger
	sessions SessionCounter
}

// NewHealthService creates the service; db may be nil when storage has
// no ping surface.
func NewHealthService(version string, db Pinger, sessions SessionCounter) *HealthService {
	return &HealthService{
		version:  version,
		started:  time.Now(),
		db:       db,
		sessions: sessions,
	}
}

// Check runs all component checks and reports degraded when any fails.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:  "healthy",
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Checks:  map[string]string{},
	}
	if s.sessions != nil {
		status.Sessions = s.sessions.Count()
	}
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Checks["database"] = err.Error()
		} else {
			status.Checks["database"] = "ok"
		}
	}
	return status
}
