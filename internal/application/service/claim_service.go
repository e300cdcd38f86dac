package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/domain/entity"
	"github.com/garyjia/autoclaim/internal/domain/workflow"
	"github.com/garyjia/autoclaim/pkg/utils"
)

// Submission is a completed filing form
type Submission struct {
	Files  []entity.UploadedFile
	Type   entity.ReimbursementType
	Months []string
}

// ClaimService owns the claim list and every transition on it
type ClaimService interface {
	Submit(ctx context.Context, session *entity.Session, sub Submission) (*entity.Claim, error)
	Approve(ctx context.Context, session *entity.Session, id string) (*entity.Claim, error)
	Reject(ctx context.Context, session *entity.Session, id, reason string) (*entity.Claim, error)
	Delete(ctx context.Context, session *entity.Session, id string) error
	ClearAll(ctx context.Context, session *entity.Session) error
	Get(ctx context.Context, session *entity.Session, id string) (*entity.Claim, error)
	List(ctx context.Context, session *entity.Session, r DateRange) ([]*entity.Claim, error)
	ListMine(ctx context.Context, session *entity.Session) ([]*entity.Claim, error)
	Stats(ctx context.Context, session *entity.Session, r DateRange) (*ClaimStats, error)
	// Reload replaces the in-memory list with what the store holds
	Reload(ctx context.Context) error
}

// ClaimOption customises a ClaimService
type ClaimOption func(*claimServiceImpl)

// WithClock overrides the time source used for submittedAt and range filters
func WithClock(now func() time.Time) ClaimOption {
	return func(s *claimServiceImpl) {
		s.now = now
	}
}

// WithIDGenerator overrides claim id generation
func WithIDGenerator(newID func() string) ClaimOption {
	return func(s *claimServiceImpl) {
		s.newID = newID
	}
}

type claimServiceImpl struct {
	store     *StateStore
	evaluator port.ClaimEvaluator
	notifier  port.ReviewNotifier
	logger    Logger
	now       func() time.Time
	newID     func() string

	mu     sync.RWMutex
	claims []*entity.Claim // newest first

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewClaimService creates a ClaimService and loads the persisted claim list.
// notifier may be nil.
func NewClaimService(
	ctx context.Context,
	store *StateStore,
	evaluator port.ClaimEvaluator,
	notifier port.ReviewNotifier,
	logger Logger,
	opts ...ClaimOption,
) (ClaimService, error) {
	s := &claimServiceImpl{
		store:     store,
		evaluator: evaluator,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return ulid.Make().String() },
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reads the claim list from the store
func (s *claimServiceImpl) Reload(ctx context.Context) error {
	claims, err := s.store.LoadClaims(ctx)
	if err != nil {
		return fmt.Errorf("failed to load claims: %w", err)
	}

	kept := make([]*entity.Claim, 0, len(claims))
	for _, c := range claims {
		if c == nil || c.ID == "" || !c.Status.IsValid() {
			s.logger.Warn("Skipping malformed stored claim")
			continue
		}
		kept = append(kept, c)
	}
	entity.SortNewestFirst(kept)

	s.mu.Lock()
	s.claims = kept
	s.mu.Unlock()

	s.logger.Info("Claim list loaded", "count", len(kept))
	return nil
}

// Submit evaluates a filing and appends the resulting claim
func (s *claimServiceImpl) Submit(ctx context.Context, session *entity.Session, sub Submission) (*entity.Claim, error) {
	if session == nil || session.Role != entity.RoleEmployee {
		return nil, entity.ErrForbidden
	}
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	release, err := s.acquire(session.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	months := append([]string(nil), sub.Months...)
	eval, err := s.evaluator.Evaluate(ctx, port.EvaluationRequest{
		Files:        sub.Files,
		Type:         sub.Type,
		Months:       months,
		ExpectedName: session.Name,
	})
	if err != nil {
		s.logger.Error("Claim evaluation failed", "user", session.Name, "error", err)
		if !entity.IsExtractionFailure(err) {
			err = entity.NewExtractionFailure(entity.MsgInsufficientClarity, err)
		}
		return nil, err
	}
	if err := checkEvaluation(eval, len(months)); err != nil {
		s.logger.Error("Claim evaluation rejected", "user", session.Name, "error", err)
		return nil, entity.NewExtractionFailure(entity.MsgInsufficientClarity, err)
	}

	claim := &entity.Claim{
		ID:             s.newID(),
		UserID:         session.Name,
		Details:        eval.Details,
		EligibleAmount: eval.EligibleAmount,
		Status:         eval.Status,
		Reasoning:      eval.Reasoning,
		Months:         months,
		Type:           sub.Type,
		SubmittedAt:    s.now(),
	}

	s.mu.Lock()
	previous := s.claims
	s.claims = append([]*entity.Claim{claim}, previous...)
	if err := s.store.SaveClaims(ctx, s.claims); err != nil {
		s.claims = previous
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to persist claim: %w", err)
	}
	s.mu.Unlock()

	s.logger.Info("Claim filed",
		"claim_id", claim.ID,
		"user", claim.UserID,
		"status", claim.Status,
		"eligible_amount", claim.EligibleAmount)

	if claim.Status == entity.ClaimStatusNeedsReview && s.notifier != nil {
		if err := s.notifier.NotifyNeedsReview(ctx, claim.Clone()); err != nil {
			s.logger.Warn("Review notification not queued", "claim_id", claim.ID, "error", err)
		}
	}

	return claim.Clone(), nil
}

// Approve moves a claim to Approved
func (s *claimServiceImpl) Approve(ctx context.Context, session *entity.Session, id string) (*entity.Claim, error) {
	if !session.IsAdmin() {
		return nil, entity.ErrForbidden
	}
	return s.decide(ctx, id, workflow.TriggerApprove, "")
}

// Reject moves a claim to Rejected with the admin's reason
func (s *claimServiceImpl) Reject(ctx context.Context, session *entity.Session, id, reason string) (*entity.Claim, error) {
	if !session.IsAdmin() {
		return nil, entity.ErrForbidden
	}
	reason = utils.SanitizeString(reason)
	if reason == "" {
		return nil, entity.NewValidationError("reason", "A rejection reason is required.")
	}
	return s.decide(ctx, id, workflow.TriggerReject, reason)
}

func (s *claimServiceImpl) decide(ctx context.Context, id string, trigger workflow.Trigger, reason string) (*entity.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim := s.find(id)
	if claim == nil {
		return nil, entity.ErrClaimNotFound
	}

	machine := workflow.NewClaimMachine(string(claim.Status))
	if err := machine.Fire(trigger); err != nil {
		return nil, err
	}

	prevStatus, prevReason := claim.Status, claim.AdminReason
	claim.Status = entity.ClaimStatus(machine.State())
	if trigger == workflow.TriggerReject {
		claim.AdminReason = reason
	}

	if err := s.store.SaveClaims(ctx, s.claims); err != nil {
		claim.Status, claim.AdminReason = prevStatus, prevReason
		return nil, fmt.Errorf("failed to persist decision: %w", err)
	}

	s.logger.Info("Claim decided", "claim_id", id, "from", prevStatus, "to", claim.Status)
	return claim.Clone(), nil
}

// Delete removes a single claim
func (s *claimServiceImpl) Delete(ctx context.Context, session *entity.Session, id string) error {
	if !session.IsAdmin() {
		return entity.ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.claims {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return entity.ErrClaimNotFound
	}

	previous := s.claims
	remaining := make([]*entity.Claim, 0, len(previous)-1)
	remaining = append(remaining, previous[:idx]...)
	remaining = append(remaining, previous[idx+1:]...)

	s.claims = remaining
	if err := s.store.SaveClaims(ctx, remaining); err != nil {
		s.claims = previous
		return fmt.Errorf("failed to persist deletion: %w", err)
	}

	s.logger.Info("Claim deleted", "claim_id", id)
	return nil
}

// ClearAll empties the claim list
func (s *claimServiceImpl) ClearAll(ctx context.Context, session *entity.Session) error {
	if !session.IsAdmin() {
		return entity.ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SaveClaims(ctx, nil); err != nil {
		return fmt.Errorf("failed to clear claims: %w", err)
	}
	count := len(s.claims)
	s.claims = nil

	s.logger.Warn("Claim list cleared", "removed", count)
	return nil
}

// Get returns one claim. Employees may only read their own.
func (s *claimServiceImpl) Get(ctx context.Context, session *entity.Session, id string) (*entity.Claim, error) {
	if session == nil {
		return nil, entity.ErrForbidden
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	claim := s.find(id)
	if claim == nil || (!session.IsAdmin() && claim.UserID != session.Name) {
		return nil, entity.ErrClaimNotFound
	}
	return claim.Clone(), nil
}

// List returns every claim inside the range, newest first
func (s *claimServiceImpl) List(ctx context.Context, session *entity.Session, r DateRange) ([]*entity.Claim, error) {
	if !session.IsAdmin() {
		return nil, entity.ErrForbidden
	}
	return s.filter(func(c *entity.Claim) bool {
		return r.Contains(s.now(), c.SubmittedAt)
	}), nil
}

// ListMine returns the claims whose userId equals the session name
func (s *claimServiceImpl) ListMine(ctx context.Context, session *entity.Session) ([]*entity.Claim, error) {
	if session == nil || session.Role != entity.RoleEmployee {
		return nil, entity.ErrForbidden
	}
	return s.filter(func(c *entity.Claim) bool {
		return c.UserID == session.Name
	}), nil
}

// Stats summarises the claims inside the range
func (s *claimServiceImpl) Stats(ctx context.Context, session *entity.Session, r DateRange) (*ClaimStats, error) {
	claims, err := s.List(ctx, session, r)
	if err != nil {
		return nil, err
	}
	return computeStats(claims), nil
}

func (s *claimServiceImpl) filter(keep func(*entity.Claim) bool) []*entity.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	entity.SortNewestFirst(out)
	return out
}

// find must be called with mu held
func (s *claimServiceImpl) find(id string) *entity.Claim {
	for _, c := range s.claims {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *claimServiceImpl) acquire(sessionID string) (func(), error) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, busy := s.inflight[sessionID]; busy {
		return nil, entity.ErrSubmissionInProgress
	}
	s.inflight[sessionID] = struct{}{}

	return func() {
		s.inflightMu.Lock()
		delete(s.inflight, sessionID)
		s.inflightMu.Unlock()
	}, nil
}

func validateSubmission(sub Submission) error {
	if len(sub.Files) == 0 {
		return entity.NewValidationError("files", "Document evidence and billing cycles are required.")
	}
	if len(sub.Files) > entity.MaxDocuments {
		return entity.NewValidationError("files", fmt.Sprintf("At most %d documents per submission.", entity.MaxDocuments))
	}
	if err := entity.ValidateMonths(sub.Months); err != nil {
		return err
	}
	if !sub.Type.IsValid() {
		return entity.NewValidationError("type", fmt.Sprintf("unknown reimbursement type %q", sub.Type))
	}
	return nil
}

func checkEvaluation(eval *port.Evaluation, monthCount int) error {
	if eval == nil {
		return errors.New("empty evaluation")
	}
	if eval.Status != entity.ClaimStatusAutoApproved && eval.Status != entity.ClaimStatusNeedsReview {
		return fmt.Errorf("unexpected verdict %q", eval.Status)
	}
	return entity.CheckEligibleAmount(eval.EligibleAmount, eval.Details.TotalAmount, monthCount)
}
