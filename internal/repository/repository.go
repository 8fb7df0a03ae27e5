// Package repository holds the record store: the persistence interfaces the
// domain components depend on and their memory, Postgres and Redis backings.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kc-allan/at-insurance/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type FarmerStore interface {
	CreateFarmer(ctx context.Context, farmer model.Farmer) error
	GetFarmerByID(ctx context.Context, id string) (model.Farmer, error)
	GetFarmerByPhone(ctx context.Context, phone string) (model.Farmer, error)
	ListFarmers(ctx context.Context) ([]model.Farmer, error)
}

type PolicyStore interface {
	CreatePolicy(ctx context.Context, policy model.Policy) error
	GetPolicy(ctx context.Context, id string) (model.Policy, error)
	ListPoliciesByFarmer(ctx context.Context, farmerID string) ([]model.Policy, error)
}

// ClaimStore persists claims. CreateClaim writes claim.Images along with the
// claim, all or nothing.
type ClaimStore interface {
	CreateClaim(ctx context.Context, claim model.Claim) error
	GetClaim(ctx context.Context, id string) (model.Claim, error)
	ListClaimsByFarmer(ctx context.Context, farmerID string) ([]model.Claim, error)
	ListClaimsByPolicy(ctx context.Context, policyID string) ([]model.Claim, error)
	AddClaimImages(ctx context.Context, images []model.ClaimImage) error
	ListClaimImages(ctx context.Context, claimIDs []string) ([]model.ClaimImage, error)
}

// OTPStore keeps one session per phone. DeleteOTPSession removes the session
// only while it still holds codeHash and reports whether this call removed it,
// which is what makes a code single use. Sessions are kept past ExpiresAt until
// DeleteExpiredOTPSessions drops those that expired before the cutoff.
type OTPStore interface {
	PutOTPSession(ctx context.Context, session model.OTPSession) error
	GetOTPSession(ctx context.Context, phone string) (model.OTPSession, error)
	DeleteOTPSession(ctx context.Context, phone, codeHash string) (bool, error)
	IncrementOTPAttempts(ctx context.Context, phone string) (int, error)
	DeleteExpiredOTPSessions(ctx context.Context, before time.Time) (int64, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// RecordStore is the full set of record interfaces a single backing provides.
type RecordStore interface {
	FarmerStore
	PolicyStore
	ClaimStore
	OTPStore
	Pinger
}
