package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/garyjia/autoclaim/internal/domain/entity"
	"github.com/garyjia/autoclaim/pkg/utils"
)

// SessionService is the role gate. It performs no real authentication.
type SessionService interface {
	Login(ctx context.Context, role entity.Role, input string) (*entity.Session, error)
	Logout(ctx context.Context, id string) error
	Authenticate(ctx context.Context, id string) (*entity.Session, error)
	GetTheme(ctx context.Context) (entity.Theme, error)
	SetTheme(ctx context.Context, theme entity.Theme) error
	// Reset wipes every persisted entry and all in-memory state
	Reset(ctx context.Context) error
}

type sessionServiceImpl struct {
	store      *StateStore
	claims     ClaimService
	drafts     DraftService
	adminToken string
	logger     Logger
	now        func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(store *StateStore, claims ClaimService, drafts DraftService, adminToken string, logger Logger) SessionService {
	return &sessionServiceImpl{
		store:      store,
		claims:     claims,
		drafts:     drafts,
		adminToken: adminToken,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *sessionServiceImpl) Login(ctx context.Context, role entity.Role, input string) (*entity.Session, error) {
	var name string
	switch role {
	case entity.RoleEmployee:
		name = utils.SanitizeString(input)
		if name == "" {
			return nil, entity.NewValidationError("name", "Full identification required.")
		}
	case entity.RoleAdmin:
		if subtle.ConstantTimeCompare([]byte(input), []byte(s.adminToken)) != 1 {
			s.logger.Warn("Admin login refused")
			return nil, entity.NewValidationError("token", "Unauthorized administrative credential.")
		}
		name = entity.AdminDisplayName
	default:
		return nil, entity.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}

	session := &entity.Session{
		ID:        ulid.Make().String(),
		Name:      name,
		Role:      role,
		CreatedAt: s.now(),
	}
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("Session started", "session_id", session.ID, "role", role, "name", name)
	return session, nil
}

func (s *sessionServiceImpl) Logout(ctx context.Context, id string) error {
	if err := s.store.RemoveSession(ctx, id); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	s.drafts.Reset(id)
	s.logger.Info("Session ended", "session_id", id)
	return nil
}

func (s *sessionServiceImpl) Authenticate(ctx context.Context, id string) (*entity.Session, error) {
	if id == "" {
		return nil, entity.ErrSessionNotFound
	}
	session, err := s.store.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, entity.ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionServiceImpl) GetTheme(ctx context.Context) (entity.Theme, error) {
	return s.store.LoadTheme(ctx)
}

func (s *sessionServiceImpl) SetTheme(ctx context.Context, theme entity.Theme) error {
	if !theme.IsValid() {
		return entity.NewValidationError("theme", fmt.Sprintf("unknown theme %q", theme))
	}
	return s.store.SaveTheme(ctx, theme)
}

func (s *sessionServiceImpl) Reset(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	s.drafts.ResetAll()
	if err := s.claims.Reload(ctx); err != nil {
		return err
	}
	s.logger.Warn("Full reset performed")
	return nil
}
