package port

import (
	"context"
	"io"

	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// EvaluationRequest is everything the evaluation service needs for one submission
type EvaluationRequest struct {
	Files        []entity.UploadedFile
	Type         entity.ReimbursementType
	Months       []string
	ExpectedName string
}

// Evaluation is the verdict proposed by the evaluation service
type Evaluation struct {
	Details        entity.ClaimDetails
	EligibleAmount float64
	Status         entity.ClaimStatus // Auto-Approved or Needs Review
	Reasoning      string
}

// ClaimEvaluator sends a submission to the document-understanding service.
// Failures are returned as *entity.ExtractionFailure. Exactly one remote call per invocation.
type ClaimEvaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error)
}

// FileHandle is a user-selected file not yet read
type FileHandle interface {
	Name() string
	// MimeType may be empty when the client did not declare one
	MimeType() string
	Open() (io.ReadCloser, error)
}

// DocumentEncoder turns selected files into UploadedFile records.
// pending is the number of files already attached to the draft.
type DocumentEncoder interface {
	Encode(ctx context.Context, handles []FileHandle, pending int) ([]entity.UploadedFile, error)
}

// ReviewNotifier alerts the finance team about a claim that needs a human decision
type ReviewNotifier interface {
	NotifyNeedsReview(ctx context.Context, claim *entity.Claim) error
}

// ClaimExporter renders a claim ledger for download
type ClaimExporter interface {
	Export(ctx context.Context, claims []*entity.Claim, w io.Writer) error
}
