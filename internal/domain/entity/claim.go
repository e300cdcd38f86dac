package entity

import (
	"fmt"
	"sort"
	"time"
)

// ClaimStatus is the lifecycle status of a claim
type ClaimStatus string

const (
	ClaimStatusAutoApproved ClaimStatus = "Auto-Approved"
	ClaimStatusNeedsReview  ClaimStatus = "Needs Review"
	ClaimStatusApproved     ClaimStatus = "Approved"
	// ClaimStatusPending is reserved; no evaluation path produces it.
	ClaimStatusPending  ClaimStatus = "Pending"
	ClaimStatusRejected ClaimStatus = "Rejected"
)

// IsValid returns true if the status belongs to the claim taxonomy
func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusAutoApproved, ClaimStatusNeedsReview, ClaimStatusApproved,
		ClaimStatusPending, ClaimStatusRejected:
		return true
	}
	return false
}

// IsDecided returns true once an admin has approved or rejected the claim
func (s ClaimStatus) IsDecided() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected
}

// ReimbursementType is the service a claim reimburses
type ReimbursementType string

const (
	ReimbursementTypeWiFi   ReimbursementType = "WiFi"
	ReimbursementTypeMobile ReimbursementType = "Mobile"
)

// IsValid returns true for WiFi and Mobile
func (t ReimbursementType) IsValid() bool {
	return t == ReimbursementTypeWiFi || t == ReimbursementTypeMobile
}

// ClaimDetails holds the data the evaluation service extracted from the bill.
// It is never edited by users.
type ClaimDetails struct {
	Provider      string  `json:"provider"`
	BillingDate   string  `json:"billingDate"`
	TotalAmount   float64 `json:"totalAmount"`
	CustomerName  string  `json:"customerName"`
	ExtractedText string  `json:"extractedText,omitempty"`
}

// Claim is a single reimbursement request.
// Only Status and AdminReason change after creation.
type Claim struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Details        ClaimDetails      `json:"details"`
	EligibleAmount float64           `json:"eligibleAmount"`
	Status         ClaimStatus       `json:"status"`
	Reasoning      string            `json:"reasoning"`
	AdminReason    string            `json:"adminReason,omitempty"`
	Months         []string          `json:"months"`
	Type           ReimbursementType `json:"type"`
	SubmittedAt    time.Time         `json:"submittedAt"`
}

// Clone returns a deep copy so callers cannot mutate the controller's list
func (c *Claim) Clone() *Claim {
	cp := *c
	cp.Months = append([]string(nil), c.Months...)
	return &cp
}

// MaxEligibleAmount returns the policy ceiling for the given month count
func MaxEligibleAmount(monthCount int) float64 {
	return float64(MonthlyCap * monthCount)
}

// ValidateMonths checks the 1..2 unique, known month rule
func ValidateMonths(months []string) error {
	if len(months) == 0 {
		return NewValidationError("months", "Document evidence and billing cycles are required.")
	}
	if len(months) > MaxBillingMonths {
		return NewValidationError("months", fmt.Sprintf("Filing policy: Maximum %d cycles per submission.", MaxBillingMonths))
	}
	seen := make(map[string]bool, len(months))
	for _, m := range months {
		if !IsValidMonth(m) {
			return NewValidationError("months", fmt.Sprintf("unknown billing month %q", m))
		}
		if seen[m] {
			return NewValidationError("months", fmt.Sprintf("billing month %q selected twice", m))
		}
		seen[m] = true
	}
	return nil
}

// SortNewestFirst orders claims by SubmittedAt descending, in place
func SortNewestFirst(claims []*Claim) {
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].SubmittedAt.After(claims[j].SubmittedAt)
	})
}
