package policies

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/apperr"
	"github.com/kc-allan/at-insurance/internal/metrics"
	"github.com/kc-allan/at-insurance/internal/model"
	"github.com/kc-allan/at-insurance/internal/repository"
)

const (
	Term = 365 * 24 * time.Hour

	cropRatePerAcre        = 500
	livestockRatePerAnimal = 600
)

// CalculatePremium prices a policy in KES: 500 per acre of crop, 600 per animal.
func CalculatePremium(policyType model.PolicyType, quantity float64) (float64, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return 0, apperr.Validation(apperr.CodeInvalidRequest, "coverage must be a positive number")
	}
	switch policyType {
	case model.PolicyTypeCrop:
		return quantity * cropRatePerAcre, nil
	case model.PolicyTypeLivestock:
		return quantity * livestockRatePerAnimal, nil
	}
	return 0, apperr.Validation(apperr.CodeInvalidRequest, "type must be one of: crop, livestock")
}

// CoverageDescription renders the insured quantity with its unit, e.g. "5 acres".
func CoverageDescription(policyType model.PolicyType, quantity float64) string {
	unit := "acres"
	if policyType == model.PolicyTypeLivestock {
		unit = "animals"
	}
	return strconv.FormatFloat(quantity, 'f', -1, 64) + " " + unit
}

type CreateRequest struct {
	Type     model.PolicyType
	Product  string
	Coverage float64
	Location string
}

type Manager struct {
	policies repository.PolicyStore
	farmers  repository.FarmerStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(policies repository.PolicyStore, farmers repository.FarmerStore, logger *zap.Logger) *Manager {
	return &Manager{
		policies: policies,
		farmers:  farmers,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) Create(ctx context.Context, farmerID string, req CreateRequest) (model.Policy, error) {
	req.Product = strings.TrimSpace(req.Product)
	req.Location = strings.TrimSpace(req.Location)
	if !req.Type.Valid() {
		return model.Policy{}, apperr.Validation(apperr.CodeInvalidRequest, "type must be one of: crop, livestock")
	}
	if n := utf8.RuneCountInString(req.Product); n < 1 || n > 255 {
		return model.Policy{}, apperr.Validation(apperr.CodeInvalidRequest, "product must be between 1 and 255 characters")
	}
	if n := utf8.RuneCountInString(req.Location); n < 1 || n > 100 {
		return model.Policy{}, apperr.Validation(apperr.CodeInvalidRequest, "location must be between 1 and 100 characters")
	}
	premium, err := CalculatePremium(req.Type, req.Coverage)
	if err != nil {
		return model.Policy{}, err
	}

	if _, err := m.farmers.GetFarmerByID(ctx, farmerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Policy{}, apperr.NotFound(apperr.CodeFarmerNotFound, "Farmer not found")
		}
		return model.Policy{}, apperr.Internal(fmt.Errorf("load farmer: %w", err))
	}

	policy := m.newPolicy(farmerID, req.Type, req.Product, CoverageDescription(req.Type, req.Coverage), premium)
	if err := m.policies.CreatePolicy(ctx, policy); err != nil {
		return model.Policy{}, apperr.Internal(fmt.Errorf("create policy: %w", err))
	}
	metrics.PoliciesCreated.WithLabelValues(string(policy.Type), "new").Inc()
	m.logger.Info("policy created",
		zap.String("policy_id", policy.ID),
		zap.String("farmer_id", farmerID),
		zap.String("type", string(policy.Type)),
		zap.Float64("premium", policy.Premium),
	)
	return policy, nil
}

// Renew writes a new active policy carrying the terms of policyID forward.
// The new term starts when the existing one ends, or now if it has lapsed, so
// the two windows never overlap. The original row is left untouched.
func (m *Manager) Renew(ctx context.Context, policyID string) (model.Policy, error) {
	existing, err := m.FindOne(ctx, policyID)
	if err != nil {
		return model.Policy{}, err
	}
	renewed := m.newPolicy(existing.FarmerID, existing.Type, existing.Product, existing.Coverage, existing.Premium)
	if existing.ValidTo.After(renewed.ValidFrom) {
		renewed.ValidFrom = existing.ValidTo
		renewed.ValidTo = existing.ValidTo.Add(Term)
	}
	if err := m.policies.CreatePolicy(ctx, renewed); err != nil {
		return model.Policy{}, apperr.Internal(fmt.Errorf("renew policy: %w", err))
	}
	metrics.PoliciesCreated.WithLabelValues(string(renewed.Type), "renewal").Inc()
	m.logger.Info("policy renewed", zap.String("policy_id", renewed.ID), zap.String("renewed_from", existing.ID))
	return renewed, nil
}

func (m *Manager) newPolicy(farmerID string, policyType model.PolicyType, product, coverage string, premium float64) model.Policy {
	now := m.now()
	return model.Policy{
		ID:        uuid.NewString(),
		FarmerID:  farmerID,
		Type:      policyType,
		Product:   product,
		Coverage:  coverage,
		Premium:   premium,
		Status:    model.PolicyStatusActive,
		ValidFrom: now,
		ValidTo:   now.Add(Term),
		CreatedAt: now,
	}
}

func (m *Manager) FindByFarmer(ctx context.Context, farmerID string) ([]model.Policy, error) {
	policies, err := m.policies.ListPoliciesByFarmer(ctx, farmerID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list policies: %w", err))
	}
	return policies, nil
}

func (m *Manager) FindOne(ctx context.Context, id string) (model.Policy, error) {
	policy, err := m.policies.GetPolicy(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Policy{}, apperr.NotFound(apperr.CodePolicyNotFound, "Policy not found")
	}
	if err != nil {
		return model.Policy{}, apperr.Internal(fmt.Errorf("load policy: %w", err))
	}
	return policy, nil
}
