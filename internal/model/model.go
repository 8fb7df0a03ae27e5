package model

import "time"

type Farmer struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	County     string    `json:"county"`
	IDDocument *string   `json:"idDocument,omitempty"`
	JoinDate   time.Time `json:"joinDate"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type PolicyType string

const (
	PolicyTypeCrop      PolicyType = "crop"
	PolicyTypeLivestock PolicyType = "livestock"
)

func (t PolicyType) Valid() bool {
	return t == PolicyTypeCrop || t == PolicyTypeLivestock
}

type PolicyStatus string

const (
	PolicyStatusPending PolicyStatus = "pending"
	PolicyStatusActive  PolicyStatus = "active"
	PolicyStatusExpired PolicyStatus = "expired"
)

type Policy struct {
	ID        string       `json:"id"`
	FarmerID  string       `json:"farmerId"`
	Type      PolicyType   `json:"type"`
	Product   string       `json:"product"`
	Coverage  string       `json:"coverage"`
	Premium   float64      `json:"premium"`
	Status    PolicyStatus `json:"status"`
	ValidFrom time.Time    `json:"validFrom"`
	ValidTo   time.Time    `json:"validTo"`
	CreatedAt time.Time    `json:"createdAt"`
}

type ClaimReason string

const (
	ClaimReasonDrought        ClaimReason = "drought"
	ClaimReasonLivestockDeath ClaimReason = "livestock_death"
	ClaimReasonFlood          ClaimReason = "flood"
	ClaimReasonPest           ClaimReason = "pest"
	ClaimReasonDisease        ClaimReason = "disease"
	ClaimReasonOther          ClaimReason = "other"
)

func (r ClaimReason) Valid() bool {
	switch r {
	case ClaimReasonDrought, ClaimReasonLivestockDeath, ClaimReasonFlood,
		ClaimReasonPest, ClaimReasonDisease, ClaimReasonOther:
		return true
	}
	return false
}

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
	ClaimStatusPaid     ClaimStatus = "paid"
)

// CanTransitionTo reports whether a reviewer may move a claim from s to next.
// Rejected and paid are terminal.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	switch s {
	case ClaimStatusPending:
		return next == ClaimStatusApproved || next == ClaimStatusRejected
	case ClaimStatusApproved:
		return next == ClaimStatusPaid
	}
	return false
}

type Claim struct {
	ID            string       `json:"id"`
	PolicyID      string       `json:"policyId"`
	FarmerID      string       `json:"farmerId"`
	Reason        ClaimReason  `json:"reason"`
	Description   string       `json:"description"`
	Amount        float64      `json:"amount"`
	Status        ClaimStatus  `json:"status"`
	DateSubmitted time.Time    `json:"dateSubmitted"`
	CreatedAt     time.Time    `json:"createdAt"`
	Images        []ClaimImage `json:"images"`
}

type ClaimImage struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claimId"`
	ImagePath string    `json:"imagePath"`
	CreatedAt time.Time `json:"createdAt"`
}

// OTPSession is keyed by phone. CodeHash is a bcrypt hash, the plain code is never stored.
type OTPSession struct {
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
	Attempts  int
}

func (s OTPSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
