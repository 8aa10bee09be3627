// Package session keeps recent chat history per session in a TTL cache
// backed by the message store, and records conversation turns.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"modelhost/internal/ipc"
	"modelhost/internal/store"
	"modelhost/pkg/types"
)

// DefaultTTL is how long an idle session stays cached.
const DefaultTTL = 30 * time.Minute

// Entry is one cached chat turn.
type Entry struct {
	ModelID   string
	Name      string
	Turn      ipc.Turn
	Timestamp time.Time
}

// Store is the persistence the service reads from and writes to.
type Store interface {
	Messages(ctx context.Context, sessionID string) ([]store.Message, error)
	AddMessages(ctx context.Context, msgs ...store.Message) error
}

// Service caches chat history per session id.
type Service struct {
	// mu serializes read-modify-write of cached entry slices. Stored slices
	// are never mutated in place.
	mu    sync.Mutex
	cache *ttlcache.Cache[string, []Entry]
	db    Store
	log   zerolog.Logger
}

// New starts a Service. Close stops its expiry loop.
func New(db Store, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := ttlcache.New[string, []Entry](
		ttlcache.WithTTL[string, []Entry](ttl),
	)
	go c.Start()
	return &Service{cache: c, db: db, log: log}
}

// Close stops the cache expiration loop.
func (s *Service) Close() { s.cache.Stop() }

// Load fills the cache for sessionID from the store unless it is already
// cached.
func (s *Service) Load(ctx context.Context, sessionID string) error {
	_, err := s.entries(ctx, sessionID)
	return err
}

func (s *Service) entries(ctx context.Context, sessionID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entriesLocked(ctx, sessionID)
}

func (s *Service) entriesLocked(ctx context.Context, sessionID string) ([]Entry, error) {
	if item := s.cache.Get(sessionID); item != nil {
		return item.Value(), nil
	}
	rows, err := s.db.Messages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			ModelID:   r.ModelID,
			Name:      r.Name,
			Turn:      ipc.Turn{Role: r.Role, Content: r.Content},
			Timestamp: r.Timestamp,
		})
	}
	s.cache.Set(sessionID, entries, ttlcache.DefaultTTL)
	return entries, nil
}

// History returns the cached turns of a session. Unless share is set only
// turns produced with modelID are returned. An uncached session has no
// history.
func (s *Service) History(sessionID, modelID string, share bool) []Entry {
	item := s.cache.Get(sessionID)
	if item == nil {
		return []Entry{}
	}
	return filter(item.Value(), modelID, share)
}

// PriorTurns returns the context turns for the next prompt of a
// conversation, loading the session from the store when it is not cached.
func (s *Service) PriorTurns(ctx context.Context, sessionID, modelID string, share bool) ([]ipc.Turn, error) {
	if sessionID == "" {
		return nil, nil
	}
	entries, err := s.entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	kept := filter(entries, modelID, share)
	turns := make([]ipc.Turn, len(kept))
	for i, e := range kept {
		turns[i] = e.Turn
	}
	return turns, nil
}

// Clear drops cached turns of a session: all of them when share is set,
// otherwise only those of modelID. Persisted messages are kept.
func (s *Service) Clear(sessionID, modelID string, share bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(sessionID)
	if item == nil {
		return
	}
	if share {
		s.cache.Delete(sessionID)
		return
	}
	var kept []Entry
	for _, e := range item.Value() {
		if e.ModelID != modelID {
			kept = append(kept, e)
		}
	}
	s.cache.Set(sessionID, kept, ttlcache.DefaultTTL)
}

// Forget removes a session from the cache entirely.
func (s *Service) Forget(sessionID string) {
	s.mu.Lock()
	s.cache.Delete(sessionID)
	s.mu.Unlock()
}

// Remember appends the user prompt and the model reply of a conversation
// turn to the cached history, loading the session first when it is not
// cached. When the stored history cannot be read the cache is left alone,
// so a later read retries the store instead of seeing only the new turns.
func (s *Service) Remember(ctx context.Context, req types.InferRequest, reply string, at time.Time) error {
	if req.SessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.entriesLocked(ctx, req.SessionID)
	if err != nil {
		return err
	}
	next := make([]Entry, 0, len(prev)+2)
	next = append(next, prev...)
	next = append(next,
		Entry{ModelID: req.ModelID, Name: req.Name, Turn: ipc.Turn{Role: ipc.RoleUser, Content: req.Prompt}, Timestamp: at},
		Entry{ModelID: req.ModelID, Name: req.Name, Turn: ipc.Turn{Role: ipc.RoleAssistant, Content: reply}, Timestamp: at},
	)
	s.cache.Set(req.SessionID, next, ttlcache.DefaultTTL)
	return nil
}

// Persist stores both turns of a conversation exchange.
func (s *Service) Persist(ctx context.Context, req types.InferRequest, reply string, at time.Time) error {
	if req.SessionID == "" {
		return nil
	}
	err := s.db.AddMessages(ctx,
		store.Message{SessionID: req.SessionID, ModelID: req.ModelID, Role: ipc.RoleUser, Content: req.Prompt, Timestamp: at},
		store.Message{SessionID: req.SessionID, ModelID: req.ModelID, Role: ipc.RoleAssistant, Content: reply, Timestamp: at},
	)
	if err != nil {
		return fmt.Errorf("persist messages: %w", err)
	}
	return nil
}

// Record remembers and persists one exchange. A history that cannot be
// loaded does not stop the messages from being stored.
func (s *Service) Record(ctx context.Context, req types.InferRequest, reply string) error {
	now := time.Now()
	if err := s.Remember(ctx, req, reply, now); err != nil {
		s.log.Warn().Err(err).Str("session", req.SessionID).Msg("history unavailable, not cached")
	}
	if err := s.Persist(ctx, req, reply, now); err != nil {
		s.log.Error().Err(err).Str("session", req.SessionID).Str("model", req.ModelID).Msg("persist messages")
		return err
	}
	return nil
}

func filter(entries []Entry, modelID string, share bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if share || e.ModelID == modelID {
			out = append(out, e)
		}
	}
	return out
}
