package intake

import (
	"context"
	"sync"

	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/common/metrics"
	"whitelist-intake/internal/models"
)

// Registry holds the active sessions keyed by channel. At most one session
// exists per channel.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Register(channel string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[channel]; exists {
		return apperrors.NewChannelAlreadyActiveError(channel)
	}
	r.sessions[channel] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return nil
}

func (r *Registry) Lookup(channel string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[channel]
	return s, ok
}

// LookupApplicant finds the session opened for an applicant.
func (r *Registry) LookupApplicant(handle string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.applicant.Handle == handle {
			return s, true
		}
	}
	return nil, false
}

// Remove drops the session for channel and reports whether one existed.
func (r *Registry) Remove(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[channel]; !ok {
		return false
	}
	delete(r.sessions, channel)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Restore registers a session for every valid snapshot whose channel is
// free and returns how many were restored.
func (r *Registry) Restore(ctx context.Context, snaps []models.SessionSnapshot, deps Deps) int {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	restored := 0
	for _, snap := range snaps {
		if ctx.Err() != nil {
			break
		}
		if err := validateSnapshot(snap, len(deps.Questions)); err != nil {
			log.Warn("skipping invalid session snapshot", map[string]interface{}{
				"channel": snap.Channel,
				"ticket":  snap.Ticket,
				"error":   err,
			})
			continue
		}
		if err := r.Register(snap.Channel, RestoreSession(snap, deps)); err != nil {
			continue
		}
		restored++
	}
	return restored
}
