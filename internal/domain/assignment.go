package domain

import "time"

// FallbackReason explains why an Assignment carries the configured default owner.
type FallbackReason string

const (
	FallbackNone             FallbackReason = ""
	FallbackNoEligibleStaff  FallbackReason = "no_eligible_staff"
	FallbackStoreUnavailable FallbackReason = "store_unavailable"
)

// Assignment is the outcome of one rotation attempt. It is always usable:
// either a rotated staff member or the fallback owner with a reason.
type Assignment struct {
	Owner      OwnerInfo
	Fallback   FallbackReason
	AssignedAt time.Time
}

// IsFallback reports whether rotation could not pick a staff member.
func (a Assignment) IsFallback() bool {
	return a.Fallback != FallbackNone
}

// Outcome is a stable label for logs and metrics.
func (a Assignment) Outcome() string {
	if a.IsFallback() {
		return string(a.Fallback)
	}
	return "rotated"
}
