package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// DateRange is a recency filter for the admin console
type DateRange string

const (
	RangeAll     DateRange = "all"
	Range15Days  DateRange = "15d"
	Range30Days  DateRange = "30d"
	Range90Days  DateRange = "90d"
	Range365Days DateRange = "365d"
)

var rangeDays = map[DateRange]int{
	Range15Days:  15,
	Range30Days:  30,
	Range90Days:  90,
	Range365Days: 365,
}

var rangeAliases = map[string]DateRange{
	"":   RangeAll,
	"1m": Range30Days,
	"3m": Range90Days,
	"1y": Range365Days,
}

// ParseDateRange accepts all/15d/30d/90d/365d and the 1m/3m/1y aliases.
// An empty value means all.
func ParseDateRange(s string) (DateRange, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if r, ok := rangeAliases[key]; ok {
		return r, nil
	}
	r := DateRange(key)
	if r == RangeAll {
		return r, nil
	}
	if _, ok := rangeDays[r]; ok {
		return r, nil
	}
	return "", entity.NewValidationError("range", fmt.Sprintf("unknown date range %q", s))
}

// Contains reports whether a claim submitted at t is inside the range ending at now
func (r DateRange) Contains(now, t time.Time) bool {
	days, ok := rangeDays[r]
	if !ok {
		return true
	}
	return now.Sub(t) <= time.Duration(days)*24*time.Hour
}

// ClaimStats summarises a filtered claim list for the admin dashboard
type ClaimStats struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	TotalEligible float64 `json:"totalEligible"`
}

func computeStats(claims []*entity.Claim) *ClaimStats {
	stats := &ClaimStats{Total: len(claims)}
	for _, c := range claims {
		switch c.Status {
		case entity.ClaimStatusApproved:
			stats.Approved++
		case entity.ClaimStatusRejected:
			stats.Rejected++
		default:
			stats.Pending++
		}
	}
	stats.TotalEligible = entity.SumEligible(claims)
	return stats
}
