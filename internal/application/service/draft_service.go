package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// Draft is the in-progress filing form of one session
type Draft struct {
	Files  []entity.UploadedFile    `json:"files"`
	Months []string                 `json:"months"`
	Type   entity.ReimbursementType `json:"type"`
}

func newDraft() *Draft {
	return &Draft{
		Files:  []entity.UploadedFile{},
		Months: []string{},
		Type:   entity.ReimbursementTypeWiFi,
	}
}

func (d *Draft) clone() *Draft {
	return &Draft{
		Files:  append([]entity.UploadedFile{}, d.Files...),
		Months: append([]string{}, d.Months...),
		Type:   d.Type,
	}
}

// DraftService keeps filing drafts in memory, keyed by session
type DraftService interface {
	Get(session *entity.Session) (*Draft, error)
	// AddFiles encodes and attaches documents. On a partial read failure the
	// readable files are attached and the returned error lists the rest.
	AddFiles(ctx context.Context, session *entity.Session, handles []port.FileHandle) (*Draft, error)
	RemoveFile(session *entity.Session, index int) (*Draft, error)
	ToggleMonth(session *entity.Session, month string) (*Draft, error)
	SetType(session *entity.Session, t entity.ReimbursementType) (*Draft, error)
	Reset(sessionID string)
	ResetAll()
	// Submit files the draft and clears it on success
	Submit(ctx context.Context, session *entity.Session) (*entity.Claim, error)
}

type draftServiceImpl struct {
	encoder port.DocumentEncoder
	claims  ClaimService
	logger  Logger

	mu     sync.Mutex
	drafts map[string]*Draft
}

// NewDraftService creates a new DraftService
func NewDraftService(encoder port.DocumentEncoder, claims ClaimService, logger Logger) DraftService {
	return &draftServiceImpl{
		encoder: encoder,
		claims:  claims,
		logger:  logger,
		drafts:  make(map[string]*Draft),
	}
}

func (s *draftServiceImpl) Get(session *entity.Session) (*Draft, error) {
	if err := requireEmployee(session); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft(session.ID).clone(), nil
}

func (s *draftServiceImpl) AddFiles(ctx context.Context, session *entity.Session, handles []port.FileHandle) (*Draft, error) {
	if err := requireEmployee(session); err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, entity.NewValidationError("files", "no files selected")
	}

	s.mu.Lock()
	pending := len(s.draft(session.ID).Files)
	s.mu.Unlock()

	// Encoding reads the files; keep it outside the lock.
	files, encodeErr := s.encoder.Encode(ctx, handles, pending)
	if len(files) == 0 && encodeErr != nil {
		return nil, encodeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.draft(session.ID)
	if len(d.Files)+len(files) > entity.MaxDocuments {
		return nil, entity.NewValidationError("files",
			fmt.Sprintf("Only %d more document(s) allowed.", entity.MaxDocuments-len(d.Files)))
	}
	d.Files = append(d.Files, files...)

	s.logger.Info("Documents attached", "session_id", session.ID, "added", len(files), "total", len(d.Files))
	return d.clone(), encodeErr
}

func (s *draftServiceImpl) RemoveFile(session *entity.Session, index int) (*Draft, error) {
	if err := requireEmployee(session); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.draft(session.ID)
	if index < 0 || index >= len(d.Files) {
		return nil, entity.NewValidationError("index", fmt.Sprintf("no document at position %d", index))
	}
	d.Files = append(d.Files[:index:index], d.Files[index+1:]...)
	return d.clone(), nil
}

func (s *draftServiceImpl) ToggleMonth(session *entity.Session, month string) (*Draft, error) {
	if err := requireEmployee(session); err != nil {
		return nil, err
	}
	if !entity.IsValidMonth(month) {
		return nil, entity.NewValidationError("month", fmt.Sprintf("unknown billing month %q", month))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.draft(session.ID)
	for i, m := range d.Months {
		if m == month {
			d.Months = append(d.Months[:i:i], d.Months[i+1:]...)
			return d.clone(), nil
		}
	}
	if len(d.Months) >= entity.MaxBillingMonths {
		return nil, entity.NewValidationError("months",
			fmt.Sprintf("Filing policy: Maximum %d cycles per submission.", entity.MaxBillingMonths))
	}
	d.Months = append(d.Months, month)
	return d.clone(), nil
}

func (s *draftServiceImpl) SetType(session *entity.Session, t entity.ReimbursementType) (*Draft, error) {
	if err := requireEmployee(session); err != nil {
		return nil, err
	}
	if !t.IsValid() {
		return nil, entity.NewValidationError("type", fmt.Sprintf("unknown reimbursement type %q", t))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.draft(session.ID)
	d.Type = t
	return d.clone(), nil
}

func (s *draftServiceImpl) Reset(sessionID string) {
	s.mu.Lock()
	delete(s.drafts, sessionID)
	s.mu.Unlock()
}

func (s *draftServiceImpl) ResetAll() {
	s.mu.Lock()
	s.drafts = make(map[string]*Draft)
	s.mu.Unlock()
}

func (s *draftServiceImpl) Submit(ctx context.Context, session *entity.Session) (*entity.Claim, error) {
	snapshot, err := s.Get(session)
	if err != nil {
		return nil, err
	}

	claim, err := s.claims.Submit(ctx, session, Submission{
		Files:  snapshot.Files,
		Type:   snapshot.Type,
		Months: snapshot.Months,
	})
	if err != nil {
		return nil, err
	}

	s.Reset(session.ID)
	return claim, nil
}

// draft must be called with mu held
func (s *draftServiceImpl) draft(sessionID string) *Draft {
	d, ok := s.drafts[sessionID]
	if !ok {
		d = newDraft()
		s.drafts[sessionID] = d
	}
	return d
}

func requireEmployee(session *entity.Session) error {
	if session == nil || session.Role != entity.RoleEmployee {
		return entity.ErrForbidden
	}
	return nil
}
