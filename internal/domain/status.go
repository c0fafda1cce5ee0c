package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// CancellationPolicy decides whether a canceled but unexpired grant still counts as premium.
type CancellationPolicy int

const (
	// CancellationImmediate revokes premium access the moment a record is canceled.
	CancellationImmediate CancellationPolicy = iota
	// CancellationAtExpiry keeps premium access until expires_at.
	CancellationAtExpiry
)

// DefaultCancellationPolicy is the policy the service runs with.
const DefaultCancellationPolicy = CancellationImmediate

// ParseCancellationPolicy maps the configuration value onto a policy.
func ParseCancellationPolicy(s string) (CancellationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "immediate":
		return CancellationImmediate, nil
	case "at_expiry":
		return CancellationAtExpiry, nil
	default:
		return DefaultCancellationPolicy, fmt.Errorf("unknown cancellation policy %q", s)
	}
}

// StatusView is the externally visible projection of a user's latest record.
type StatusView struct {
	Premium   bool               `json:"premium"`
	Plan      Plan               `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
	DaysLeft  int                `json:"days_left"`
}

// FreeStatus is reported for users without any record.
func FreeStatus() StatusView {
	return StatusView{Plan: PlanFree, Status: SubscriptionStatusNone}
}

// Project derives the status view from the latest record at instant now.
// It never trusts the stored status alone: an active record past its expiry is free.
func Project(sub *Subscription, now time.Time, policy CancellationPolicy) StatusView {
	if sub == nil {
		return FreeStatus()
	}

	view := StatusView{
		Plan:      PlanFree,
		Status:    sub.Status,
		StartedAt: sub.StartedAt,
		ExpiresAt: sub.ExpiresAt,
	}
	if !grantsAccess(sub.Status, policy) || sub.ExpiresAt == nil || !sub.ExpiresAt.After(now) {
		return view
	}

	view.Premium = true
	view.Plan = sub.Plan
	view.DaysLeft = daysLeft(*sub.ExpiresAt, now)
	return view
}

func grantsAccess(status SubscriptionStatus, policy CancellationPolicy) bool {
	switch status {
	case SubscriptionStatusActive:
		return true
	case SubscriptionStatusCanceled:
		return policy == CancellationAtExpiry
	default:
		return false
	}
}

// daysLeft is the ceiling of the remaining time in whole days.
func daysLeft(expiresAt, now time.Time) int {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
