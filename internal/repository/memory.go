package repository

import (
	"context"
	"sync"
	"time"

	"github.com/kc-allan/at-insurance/internal/model"
)

// MemoryStore is the in-process record store used when no database is configured.
// Records are kept in insertion order so listings can return newest first.
type MemoryStore struct {
	mu sync.RWMutex

	farmers       map[string]model.Farmer
	farmerByPhone map[string]string
	farmerOrder   []string

	policies    map[string]model.Policy
	policyOrder []string

	claims     map[string]model.Claim
	claimOrder []string
	images     []model.ClaimImage

	otp map[string]model.OTPSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		farmers:       make(map[string]model.Farmer),
		farmerByPhone: make(map[string]string),
		policies:      make(map[string]model.Policy),
		claims:        make(map[string]model.Claim),
		otp:           make(map[string]model.OTPSession),
	}
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) CreateFarmer(_ context.Context, farmer model.Farmer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.farmerByPhone[farmer.Phone]; ok {
		return ErrDuplicate
	}
	if _, ok := m.farmers[farmer.ID]; ok {
		return ErrDuplicate
	}
	m.farmers[farmer.ID] = farmer
	m.farmerByPhone[farmer.Phone] = farmer.ID
	m.farmerOrder = append(m.farmerOrder, farmer.ID)
	return nil
}

func (m *MemoryStore) GetFarmerByID(_ context.Context, id string) (model.Farmer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	farmer, ok := m.farmers[id]
	if !ok {
		return model.Farmer{}, ErrNotFound
	}
	return farmer, nil
}

func (m *MemoryStore) GetFarmerByPhone(_ context.Context, phone string) (model.Farmer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.farmerByPhone[phone]
	if !ok {
		return model.Farmer{}, ErrNotFound
	}
	return m.farmers[id], nil
}

func (m *MemoryStore) ListFarmers(context.Context) ([]model.Farmer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Farmer, 0, len(m.farmerOrder))
	for i := len(m.farmerOrder) - 1; i >= 0; i-- {
		out = append(out, m.farmers[m.farmerOrder[i]])
	}
	return out, nil
}

func (m *MemoryStore) CreatePolicy(_ context.Context, policy model.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[policy.ID]; ok {
		return ErrDuplicate
	}
	m.policies[policy.ID] = policy
	m.policyOrder = append(m.policyOrder, policy.ID)
	return nil
}

func (m *MemoryStore) GetPolicy(_ context.Context, id string) (model.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	policy, ok := m.policies[id]
	if !ok {
		return model.Policy{}, ErrNotFound
	}
	return policy, nil
}

func (m *MemoryStore) ListPoliciesByFarmer(_ context.Context, farmerID string) ([]model.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Policy{}
	for i := len(m.policyOrder) - 1; i >= 0; i-- {
		policy := m.policies[m.policyOrder[i]]
		if policy.FarmerID == farmerID {
			out = append(out, policy)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateClaim(_ context.Context, claim model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[claim.ID]; ok {
		return ErrDuplicate
	}
	m.images = append(m.images, claim.Images...)
	claim.Images = nil
	m.claims[claim.ID] = claim
	m.claimOrder = append(m.claimOrder, claim.ID)
	return nil
}

func (m *MemoryStore) GetClaim(_ context.Context, id string) (model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	claim, ok := m.claims[id]
	if !ok {
		return model.Claim{}, ErrNotFound
	}
	return claim, nil
}

func (m *MemoryStore) ListClaimsByFarmer(_ context.Context, farmerID string) ([]model.Claim, error) {
	return m.listClaims(func(c model.Claim) bool { return c.FarmerID == farmerID }), nil
}

func (m *MemoryStore) ListClaimsByPolicy(_ context.Context, policyID string) ([]model.Claim, error) {
	return m.listClaims(func(c model.Claim) bool { return c.PolicyID == policyID }), nil
}

func (m *MemoryStore) listClaims(match func(model.Claim) bool) []model.Claim {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Claim{}
	for i := len(m.claimOrder) - 1; i >= 0; i-- {
		claim := m.claims[m.claimOrder[i]]
		if match(claim) {
			out = append(out, claim)
		}
	}
	return out
}

func (m *MemoryStore) AddClaimImages(_ context.Context, images []model.ClaimImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, image := range images {
		if _, ok := m.claims[image.ClaimID]; !ok {
			return ErrNotFound
		}
	}
	m.images = append(m.images, images...)
	return nil
}

func (m *MemoryStore) ListClaimImages(_ context.Context, claimIDs []string) ([]model.ClaimImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]struct{}, len(claimIDs))
	for _, id := range claimIDs {
		wanted[id] = struct{}{}
	}
	out := []model.ClaimImage{}
	for _, image := range m.images {
		if _, ok := wanted[image.ClaimID]; ok {
			out = append(out, image)
		}
	}
	return out, nil
}

func (m *MemoryStore) PutOTPSession(_ context.Context, session model.OTPSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.Attempts = 0
	m.otp[session.Phone] = session
	return nil
}

func (m *MemoryStore) GetOTPSession(_ context.Context, phone string) (model.OTPSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.otp[phone]
	if !ok {
		return model.OTPSession{}, ErrNotFound
	}
	return session, nil
}

func (m *MemoryStore) DeleteOTPSession(_ context.Context, phone, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.otp[phone]
	if !ok || session.CodeHash != codeHash {
		return false, nil
	}
	delete(m.otp, phone)
	return true, nil
}

func (m *MemoryStore) IncrementOTPAttempts(_ context.Context, phone string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.otp[phone]
	if !ok {
		return 0, ErrNotFound
	}
	session.Attempts++
	m.otp[phone] = session
	return session.Attempts, nil
}

func (m *MemoryStore) DeleteExpiredOTPSessions(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for phone, session := range m.otp {
		if session.ExpiresAt.Before(before) {
			delete(m.otp, phone)
			removed++
		}
	}
	return removed, nil
}
