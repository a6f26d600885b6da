package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderbot/internal/logging"
	"orderbot/internal/types"
)

// Backend is durable storage for the single session identity value.
// Load returns "" with a nil error when nothing has been stored yet.
type Backend interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, sessionID string) error
}

// SessionStore owns the client's session identity. The identity is created
// lazily, cached for the life of the process and written through to the
// backend whenever it changes.
type SessionStore struct {
	mu      sync.Mutex
	backend Backend
	current types.SessionID
	log     *zap.Logger
}

func NewSessionStore(backend Backend, log *zap.Logger) *SessionStore {
	log = logging.OrNop(log)
	return &SessionStore{backend: backend, log: log}
}

// GetOrCreateSessionID returns the persisted identity, creating and
// persisting one on first use. When the backend fails the identity is still
// returned (and kept in memory) together with the error, so callers can log
// it and carry on.
func (s *SessionStore) GetOrCreateSessionID(ctx context.Context) (types.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" {
		return s.current, nil
	}

	id, err := s.backend.Load(ctx)
	if err != nil {
		// Unknown whether an identity exists; use a temporary one and leave
		// storage alone rather than clobber it.
		s.current = NewSessionID()
		return s.current, fmt.Errorf("load session id: %w", err)
	}
	if id = strings.TrimSpace(id); id != "" {
		s.current = types.SessionID(id)
		return s.current, nil
	}

	s.current = NewSessionID()
	s.log.Info("created session id", zap.String("session_id", string(s.current)))
	if err := s.backend.Save(ctx, string(s.current)); err != nil {
		return s.current, fmt.Errorf("save session id: %w", err)
	}
	return s.current, nil
}

// UpdateSessionID adopts a server-issued identity. Empty or unchanged values
// are ignored.
func (s *SessionStore) UpdateSessionID(ctx context.Context, id types.SessionID) error {
	id = types.SessionID(strings.TrimSpace(string(id)))
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.current {
		return nil
	}
	s.log.Info("server replaced session id",
		zap.String("previous", string(s.current)),
		zap.String("session_id", string(id)))
	s.current = id
	if err := s.backend.Save(ctx, string(id)); err != nil {
		return fmt.Errorf("save session id: %w", err)
	}
	return nil
}

// NewSessionID returns "sess_" followed by a random UUID component and the
// current time in base36.
func NewSessionID() types.SessionID {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return types.SessionID("sess_" + random + strconv.FormatInt(time.Now().UnixNano(), 36))
}
