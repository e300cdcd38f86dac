package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// Storage keys
const (
	keyClaims        = "autoclaim_db"
	keyTheme         = "autoclaim_theme"
	keySessionPrefix = "autoclaim_session:"
)

// StateStore is the typed application state on top of the key-value port.
// Entries that fail to decode are treated as absent and logged, never returned as errors.
type StateStore struct {
	kv     port.KeyValueStore
	logger Logger
}

// NewStateStore creates a new StateStore
func NewStateStore(kv port.KeyValueStore, logger Logger) *StateStore {
	return &StateStore{kv: kv, logger: logger}
}

// LoadClaims returns the persisted claim list, or nil when none is stored
func (s *StateStore) LoadClaims(ctx context.Context) ([]*entity.Claim, error) {
	var claims []*entity.Claim
	found, err := s.load(ctx, keyClaims, &claims)
	if err != nil || !found {
		return nil, err
	}
	return claims, nil
}

// SaveClaims persists the whole claim list
func (s *StateStore) SaveClaims(ctx context.Context, claims []*entity.Claim) error {
	if claims == nil {
		claims = []*entity.Claim{}
	}
	return s.save(ctx, keyClaims, claims)
}

// LoadSession returns the session with the given id, or nil when absent
func (s *StateStore) LoadSession(ctx context.Context, id string) (*entity.Session, error) {
	var session entity.Session
	found, err := s.load(ctx, keySessionPrefix+id, &session)
	if err != nil || !found {
		return nil, err
	}
	if session.ID != id || !session.Role.IsValid() {
		s.logger.Warn("Discarding inconsistent session entry", "session_id", id)
		return nil, nil
	}
	return &session, nil
}

// SaveSession persists a session under its id
func (s *StateStore) SaveSession(ctx context.Context, session *entity.Session) error {
	return s.save(ctx, keySessionPrefix+session.ID, session)
}

// RemoveSession deletes a session entry
func (s *StateStore) RemoveSession(ctx context.Context, id string) error {
	return s.kv.Remove(ctx, keySessionPrefix+id)
}

// CountSessions returns the number of stored sessions
func (s *StateStore) CountSessions(ctx context.Context) (int, error) {
	keys, err := s.kv.Keys(ctx, keySessionPrefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// LoadTheme returns the stored theme, light when absent or unknown
func (s *StateStore) LoadTheme(ctx context.Context) (entity.Theme, error) {
	value, found, err := s.kv.Load(ctx, keyTheme)
	if err != nil {
		return "", err
	}
	theme := entity.Theme(value)
	if !found || !theme.IsValid() {
		return entity.ThemeLight, nil
	}
	return theme, nil
}

// SaveTheme persists the theme preference
func (s *StateStore) SaveTheme(ctx context.Context, theme entity.Theme) error {
	return s.kv.Save(ctx, keyTheme, string(theme))
}

// ClearAll removes sessions, theme and claims together
func (s *StateStore) ClearAll(ctx context.Context) error {
	return s.kv.ClearAll(ctx)
}

func (s *StateStore) load(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, found, err := s.kv.Load(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("Stored entry is unreadable, treating as absent", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *StateStore) save(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Save(ctx, key, string(data))
}
