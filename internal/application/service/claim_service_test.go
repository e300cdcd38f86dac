package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/domain/entity"
	"github.com/garyjia/autoclaim/internal/domain/workflow"
)

type claimFixture struct {
	kv        *memoryKV
	store     *StateStore
	evaluator *mockEvaluator
	notifier  *mockNotifier
	service   ClaimService
	now       time.Time
}

func newClaimFixture(t *testing.T) *claimFixture {
	t.Helper()
	f := &claimFixture{
		kv:        newMemoryKV(),
		evaluator: new(mockEvaluator),
		notifier:  new(mockNotifier),
		now:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.store = NewStateStore(f.kv, &mockLogger{})

	seq := 0
	svc, err := NewClaimService(context.Background(), f.store, f.evaluator, f.notifier, &mockLogger{},
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("claim-%d", seq)
		}),
	)
	require.NoError(t, err)
	f.service = svc
	return f
}

func (f *claimFixture) submit(t *testing.T, status entity.ClaimStatus, eligible, total float64) *entity.Claim {
	t.Helper()
	f.evaluator.On("Evaluate", mock.Anything, mock.Anything).Return(verdict(status, eligible, total), nil).Once()
	if status == entity.ClaimStatusNeedsReview {
		f.notifier.On("NotifyNeedsReview", mock.Anything, mock.Anything).Return(nil).Once()
	}
	claim, err := f.service.Submit(context.Background(), employee, Submission{
		Files:  []entity.UploadedFile{sampleFile()},
		Type:   entity.ReimbursementTypeWiFi,
		Months: []string{"January"},
	})
	require.NoError(t, err)
	return claim
}

func TestClaimService_SubmitAutoApproved(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	f.evaluator.On("Evaluate", ctx, mock.Anything).Return(verdict(entity.ClaimStatusAutoApproved, 80, 80), nil).Once()

	claim, err := f.service.Submit(ctx, employee, Submission{
		Files:  []entity.UploadedFile{sampleFile()},
		Type:   entity.ReimbursementTypeWiFi,
		Months: []string{"January"},
	})
	require.NoError(t, err)

	assert.Equal(t, "claim-1", claim.ID)
	assert.Equal(t, "Alice Tan", claim.UserID)
	assert.Equal(t, entity.ClaimStatusAutoApproved, claim.Status)
	assert.Equal(t, 80.0, claim.EligibleAmount)
	assert.Equal(t, []string{"January"}, claim.Months)
	assert.Equal(t, f.now, claim.SubmittedAt)

	f.evaluator.AssertNumberOfCalls(t, "Evaluate", 1)
	f.notifier.AssertNotCalled(t, "NotifyNeedsReview", mock.Anything, mock.Anything)

	stored, err := f.store.LoadClaims(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "claim-1", stored[0].ID)
}

func TestClaimService_SubmitPassesExpectedName(t *testing.T) {
	f := newClaimFixture(t)

	f.evaluator.On("Evaluate", mock.Anything, mock.Anything).
		Return(verdict(entity.ClaimStatusNeedsReview, 2000, 2500), nil).Once()
	f.notifier.On("NotifyNeedsReview", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.service.Submit(context.Background(), employee, Submission{
		Files:  []entity.UploadedFile{sampleFile()},
		Type:   entity.ReimbursementTypeMobile,
		Months: []string{"January", "February"},
	})
	require.NoError(t, err)

	req := f.evaluator.Calls[0].Arguments.Get(1).(port.EvaluationRequest)
	assert.Equal(t, "Alice Tan", req.ExpectedName)
	assert.Equal(t, []string{"January", "February"}, req.Months)
	assert.Equal(t, entity.ReimbursementTypeMobile, req.Type)
	f.notifier.AssertExpectations(t)
}

func TestClaimService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name string
		sub  Submission
		want string
	}{
		{
			name: "no documents",
			sub:  Submission{Type: entity.ReimbursementTypeWiFi, Months: []string{"January"}},
			want: "Document evidence and billing cycles are required.",
		},
		{
			name: "no months",
			sub:  Submission{Files: []entity.UploadedFile{sampleFile()}, Type: entity.ReimbursementTypeWiFi},
			want: "Document evidence and billing cycles are required.",
		},
		{
			name: "three months",
			sub: Submission{
				Files:  []entity.UploadedFile{sampleFile()},
				Type:   entity.ReimbursementTypeWiFi,
				Months: []string{"January", "February", "March"},
			},
			want: "Filing policy: Maximum 2 cycles per submission.",
		},
		{
			name: "three documents",
			sub: Submission{
				Files:  []entity.UploadedFile{sampleFile(), sampleFile(), sampleFile()},
				Type:   entity.ReimbursementTypeWiFi,
				Months: []string{"January"},
			},
			want: "At most 2 documents per submission.",
		},
		{
			name: "unknown type",
			sub: Submission{
				Files:  []entity.UploadedFile{sampleFile()},
				Type:   entity.ReimbursementType("Cable"),
				Months: []string{"January"},
			},
			want: "unknown reimbursement type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClaimFixture(t)

			_, err := f.service.Submit(context.Background(), employee, tt.sub)
			require.Error(t, err)
			assert.True(t, entity.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.want)

			f.evaluator.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
			claims, err := f.service.List(context.Background(), admin, RangeAll)
			require.NoError(t, err)
			assert.Empty(t, claims)
		})
	}
}

func TestClaimService_SubmitRequiresEmployee(t *testing.T) {
	f := newClaimFixture(t)

	_, err := f.service.Submit(context.Background(), admin, Submission{
		Files:  []entity.UploadedFile{sampleFile()},
		Type:   entity.ReimbursementTypeWiFi,
		Months: []string{"January"},
	})
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestClaimService_SubmitExtractionFailure(t *testing.T) {
	f := newClaimFixture(t)
	failure := entity.NewExtractionFailure(entity.MsgInsufficientClarity, errors.New("bad json"))
	f.evaluator.On("Evaluate", mock.Anything, mock.Anything).Return(nil, failure).Once()

	_, err := f.service.Submit(context.Background(), employee, Submission{
		Files:  []entity.UploadedFile{sampleFile()},
		Type:   entity.ReimbursementTypeWiFi,
		Months: []string{"January"},
	})
	require.Error(t, err)
	assert.True(t, entity.IsExtractionFailure(err))

	claims, _ := f.service.List(context.Background(), admin, RangeAll)
	assert.Empty(t, claims)
}

func TestClaimService_SubmitRefusesOutOfPolicyVerdict(t *testing.T) {
	tests := []struct {
		name string
		eval func() interface{}
	}{
		{"eligible above monthly ceiling", func() interface{} { return verdict(entity.ClaimStatusAutoApproved, 1500, 1500) }},
		{"eligible above billed total", func() interface{} { return verdict(entity.ClaimStatusAutoApproved, 90, 80) }},
		{"eligible a fraction of a cent above the bill", func() interface{} { return verdict(entity.ClaimStatusAutoApproved, 900.004, 900) }},
		{"eligible a fraction of a cent above the ceiling", func() interface{} { return verdict(entity.ClaimStatusAutoApproved, 1200.004, 1500) }},
		{"verdict outside taxonomy", func() interface{} { return verdict(entity.ClaimStatusApproved, 10, 80) }},
		{"reserved pending verdict", func() interface{} { return verdict(entity.ClaimStatusPending, 10, 80) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClaimFixture(t)
			f.evaluator.On("Evaluate", mock.Anything, mock.Anything).Return(tt.eval(), nil).Once()

			_, err := f.service.Submit(context.Background(), employee, Submission{
				Files:  []entity.UploadedFile{sampleFile()},
				Type:   entity.ReimbursementTypeWiFi,
				Months: []string{"January"},
			})
			require.Error(t, err)
			assert.True(t, entity.IsExtractionFailure(err))

			claims, _ := f.service.List(context.Background(), admin, RangeAll)
			assert.Empty(t, claims)
		})
	}
}

func TestClaimService_SubmitInProgress(t *testing.T) {
	f := newClaimFixture(t)

	started := make(chan struct{})
	unblock := make(chan struct{})
	f.evaluator.On("Evaluate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-unblock
		}).
		Return(verdict(entity.ClaimStatusAutoApproved, 50, 50), nil).Once()

	sub := Submission{
		Files:  []entity.UploadedFile{sampleFile()},
		Type:   entity.ReimbursementTypeWiFi,
		Months: []string{"January"},
	}

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.service.Submit(context.Background(), employee, sub)
	}()

	<-started
	_, err := f.service.Submit(context.Background(), employee, sub)
	assert.ErrorIs(t, err, entity.ErrSubmissionInProgress)

	close(unblock)
	wg.Wait()
	require.NoError(t, firstErr)

	claims, _ := f.service.List(context.Background(), admin, RangeAll)
	assert.Len(t, claims, 1)
}

func TestClaimService_SubmitRollsBackOnPersistFailure(t *testing.T) {
	f := newClaimFixture(t)
	f.kv.saveFunc = func(key, value string) error { return errStorage }
	f.evaluator.On("Evaluate", mock.Anything, mock.Anything).
		Return(verdict(entity.ClaimStatusAutoApproved, 50, 50), nil).Once()

	_, err := f.service.Submit(context.Background(), employee, Submission{
		Files:  []entity.UploadedFile{sampleFile()},
		Type:   entity.ReimbursementTypeWiFi,
		Months: []string{"January"},
	})
	assert.ErrorIs(t, err, errStorage)

	claims, _ := f.service.List(context.Background(), admin, RangeAll)
	assert.Empty(t, claims)
}

func TestClaimService_ApproveAndReject(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	review := f.submit(t, entity.ClaimStatusNeedsReview, 900, 1000)
	auto := f.submit(t, entity.ClaimStatusAutoApproved, 50, 50)

	approved, err := f.service.Approve(ctx, admin, review.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ClaimStatusApproved, approved.Status)

	rejected, err := f.service.Reject(ctx, admin, auto.ID, "  duplicate bill  ")
	require.NoError(t, err)
	assert.Equal(t, entity.ClaimStatusRejected, rejected.Status)
	assert.Equal(t, "duplicate bill", rejected.AdminReason)

	// Terminal claims refuse further decisions
	_, err = f.service.Reject(ctx, admin, review.ID, "changed my mind")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = f.service.Approve(ctx, admin, auto.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	got, err := f.service.Get(ctx, admin, review.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ClaimStatusApproved, got.Status)
	assert.Empty(t, got.AdminReason)
}

func TestClaimService_IdentityMismatchIsReviewedAndRejected(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	jane := &entity.Session{ID: "sess-jane", Name: "Jane Doe", Role: entity.RoleEmployee}

	mismatch := &port.Evaluation{
		Details: entity.ClaimDetails{
			Provider:     "M1",
			BillingDate:  "2024-02-03",
			TotalAmount:  85,
			CustomerName: "John Smith",
		},
		EligibleAmount: 85,
		Status:         entity.ClaimStatusNeedsReview,
		Reasoning:      "Bill is addressed to John Smith, not the claimant Jane Doe.",
	}
	f.evaluator.On("Evaluate", mock.Anything, mock.MatchedBy(func(req port.EvaluationRequest) bool {
		return req.ExpectedName == "Jane Doe"
	})).Return(mismatch, nil).Once()
	f.notifier.On("NotifyNeedsReview", mock.Anything, mock.Anything).Return(nil).Once()

	claim, err := f.service.Submit(ctx, jane, Submission{
		Files:  []entity.UploadedFile{sampleFile()},
		Type:   entity.ReimbursementTypeMobile,
		Months: []string{"February"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ClaimStatusNeedsReview, claim.Status)
	assert.Equal(t, "John Smith", claim.Details.CustomerName)
	assert.Contains(t, claim.Reasoning, "John Smith")

	rejected, err := f.service.Reject(ctx, admin, claim.ID, "Identity mismatch")
	require.NoError(t, err)
	assert.Equal(t, entity.ClaimStatusRejected, rejected.Status)
	assert.Equal(t, "Identity mismatch", rejected.AdminReason)

	stored, err := f.store.LoadClaims(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, entity.ClaimStatusRejected, stored[0].Status)
	assert.Equal(t, "Identity mismatch", stored[0].AdminReason)
	f.evaluator.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestClaimService_RejectRequiresReason(t *testing.T) {
	f := newClaimFixture(t)
	claim := f.submit(t, entity.ClaimStatusNeedsReview, 100, 100)

	_, err := f.service.Reject(context.Background(), admin, claim.ID, "   ")
	require.Error(t, err)
	assert.True(t, entity.IsValidationError(err))

	got, _ := f.service.Get(context.Background(), admin, claim.ID)
	assert.Equal(t, entity.ClaimStatusNeedsReview, got.Status)
}

func TestClaimService_DecisionsRequireAdmin(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	claim := f.submit(t, entity.ClaimStatusNeedsReview, 100, 100)

	_, err := f.service.Approve(ctx, employee, claim.ID)
	assert.ErrorIs(t, err, entity.ErrForbidden)
	_, err = f.service.Reject(ctx, employee, claim.ID, "no")
	assert.ErrorIs(t, err, entity.ErrForbidden)
	assert.ErrorIs(t, f.service.Delete(ctx, employee, claim.ID), entity.ErrForbidden)
	assert.ErrorIs(t, f.service.ClearAll(ctx, employee), entity.ErrForbidden)
	_, err = f.service.List(ctx, employee, RangeAll)
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestClaimService_ApproveUnknownClaim(t *testing.T) {
	f := newClaimFixture(t)
	_, err := f.service.Approve(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, entity.ErrClaimNotFound)
}

func TestClaimService_DecisionRollsBackOnPersistFailure(t *testing.T) {
	f := newClaimFixture(t)
	claim := f.submit(t, entity.ClaimStatusNeedsReview, 100, 100)
	f.kv.saveFunc = func(key, value string) error { return errStorage }

	_, err := f.service.Reject(context.Background(), admin, claim.ID, "blurry")
	assert.ErrorIs(t, err, errStorage)

	got, _ := f.service.Get(context.Background(), admin, claim.ID)
	assert.Equal(t, entity.ClaimStatusNeedsReview, got.Status)
	assert.Empty(t, got.AdminReason)
}

func TestClaimService_DeleteAndClearAll(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	first := f.submit(t, entity.ClaimStatusAutoApproved, 10, 10)
	f.submit(t, entity.ClaimStatusAutoApproved, 20, 20)

	require.NoError(t, f.service.Delete(ctx, admin, first.ID))
	assert.ErrorIs(t, f.service.Delete(ctx, admin, first.ID), entity.ErrClaimNotFound)

	claims, _ := f.service.List(ctx, admin, RangeAll)
	require.Len(t, claims, 1)
	assert.NotEqual(t, first.ID, claims[0].ID)

	require.NoError(t, f.service.ClearAll(ctx, admin))
	claims, _ = f.service.List(ctx, admin, RangeAll)
	assert.Empty(t, claims)

	raw, found, _ := f.kv.Load(ctx, keyClaims)
	require.True(t, found)
	assert.Equal(t, "[]", raw)
}

func TestClaimService_ListNewestFirstAndRange(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	start := f.now
	f.now = start.Add(-40 * 24 * time.Hour)
	old := f.submit(t, entity.ClaimStatusAutoApproved, 10, 10)
	f.now = start.Add(-10 * 24 * time.Hour)
	recent := f.submit(t, entity.ClaimStatusAutoApproved, 20, 20)
	f.now = start

	all, err := f.service.List(ctx, admin, RangeAll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, recent.ID, all[0].ID)
	assert.Equal(t, old.ID, all[1].ID)

	last15, err := f.service.List(ctx, admin, Range15Days)
	require.NoError(t, err)
	require.Len(t, last15, 1)
	assert.Equal(t, recent.ID, last15[0].ID)

	last90, err := f.service.List(ctx, admin, Range90Days)
	require.NoError(t, err)
	assert.Len(t, last90, 2)
}

func TestClaimService_ListMine(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	f.submit(t, entity.ClaimStatusAutoApproved, 10, 10)

	mine, err := f.service.ListMine(ctx, employee)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	bob := &entity.Session{ID: "sess-bob", Name: "Bob", Role: entity.RoleEmployee}
	theirs, err := f.service.ListMine(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = f.service.Get(ctx, bob, mine[0].ID)
	assert.ErrorIs(t, err, entity.ErrClaimNotFound)
}

func TestClaimService_Stats(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	a := f.submit(t, entity.ClaimStatusAutoApproved, 10.10, 10.10)
	b := f.submit(t, entity.ClaimStatusNeedsReview, 20.20, 30)
	f.submit(t, entity.ClaimStatusNeedsReview, 0.3, 1)

	_, err := f.service.Approve(ctx, admin, a.ID)
	require.NoError(t, err)
	_, err = f.service.Reject(ctx, admin, b.ID, "wrong name")
	require.NoError(t, err)

	stats, err := f.service.Stats(ctx, admin, RangeAll)
	require.NoError(t, err)
	assert.Equal(t, &ClaimStats{Total: 3, Pending: 1, Approved: 1, Rejected: 1, TotalEligible: 30.6}, stats)
}

func TestClaimService_ReloadSurvivesRestart(t *testing.T) {
	f := newClaimFixture(t)
	claim := f.submit(t, entity.ClaimStatusNeedsReview, 100, 100)

	restarted, err := NewClaimService(context.Background(), f.store, f.evaluator, nil, &mockLogger{})
	require.NoError(t, err)

	got, err := restarted.Get(context.Background(), admin, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim, got)
}

func TestClaimService_CorruptStoreStartsEmpty(t *testing.T) {
	kv := newMemoryKV()
	kv.data[keyClaims] = "{not json"

	svc, err := NewClaimService(context.Background(), NewStateStore(kv, &mockLogger{}), new(mockEvaluator), nil, &mockLogger{})
	require.NoError(t, err)

	claims, err := svc.List(context.Background(), admin, RangeAll)
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestClaimService_StoredClaimsAreJSONArray(t *testing.T) {
	f := newClaimFixture(t)
	f.submit(t, entity.ClaimStatusAutoApproved, 10, 10)

	raw, found, err := f.kv.Load(context.Background(), keyClaims)
	require.NoError(t, err)
	require.True(t, found)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Auto-Approved", decoded[0]["status"])
	assert.Equal(t, "Alice Tan", decoded[0]["userId"])
}
