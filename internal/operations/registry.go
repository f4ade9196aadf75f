package operations

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Registry is the in-memory session store. Sessions expire after a TTL
// of inactivity; an expired session simply disappears, which matches the
// abandon-on-close semantics of the import UI.
type Registry struct {
	sessions *gocache.Cache
	logger   *slog.Logger
}

// NewRegistry creates a session registry with the given idle TTL.
func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: gocache.New(ttl, ttl/2),
		logger:   logger.With(slog.String("component", "session_registry")),
	}
}

// Create registers a fresh session for the user and returns it.
func (r *Registry) Create(userID string) *ImportSession {
	session := NewImportSession(uuid.New().String(), userID)
	r.sessions.SetDefault(session.ID, session)
	r.logger.Debug("import session created",
		slog.String("session_id", session.ID),
		slog.String("user_id", userID))
	return session
}

// Get returns the session by id, or false when it never existed or has
// expired.
func (r *Registry) Get(id string) (*ImportSession, bool) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	session, ok := v.(*ImportSession)
	if ok {
		// Sliding expiry: any access keeps the session alive.
		r.sessions.SetDefault(id, session)
	}
	return session, ok
}

// Delete removes a session.
func (r *Registry) Delete(id string) {
	r.sessions.Delete(id)
}

// Count returns the number of live sessions, for the health endpoint.
func (r *Registry) Count() int {
	return r.sessions.ItemCount()
}
