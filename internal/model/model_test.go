package model

import (
	"testing"
	"time"
)

func TestClaimStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ClaimStatus
		want     bool
	}{
		{ClaimStatusPending, ClaimStatusApproved, true},
		{ClaimStatusPending, ClaimStatusRejected, true},
		{ClaimStatusPending, ClaimStatusPaid, false},
		{ClaimStatusApproved, ClaimStatusPaid, true},
		{ClaimStatusApproved, ClaimStatusRejected, false},
		{ClaimStatusRejected, ClaimStatusApproved, false},
		{ClaimStatusPaid, ClaimStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestEnumValidation(t *testing.T) {
	if !PolicyTypeLivestock.Valid() || PolicyType("poultry").Valid() {
		t.Fatalf("unexpected policy type validation")
	}
	if !ClaimReasonLivestockDeath.Valid() || ClaimReason("theft").Valid() {
		t.Fatalf("unexpected claim reason validation")
	}
}

func TestOTPSessionExpired(t *testing.T) {
	expires := time.Date(2026, 1, 1, 10, 10, 0, 0, time.UTC)
	session := OTPSession{ExpiresAt: expires}
	if session.Expired(expires) {
		t.Fatalf("session must still be valid at its expiry instant")
	}
	if !session.Expired(expires.Add(time.Second)) {
		t.Fatalf("session must be expired after its expiry instant")
	}
}
