package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/apperr"
	"github.com/kc-allan/at-insurance/internal/evidence"
	"github.com/kc-allan/at-insurance/internal/metrics"
	"github.com/kc-allan/at-insurance/internal/model"
	"github.com/kc-allan/at-insurance/internal/repository"
)

const (
	minDescription = 10
	maxDescription = 1000
)

type CreateRequest struct {
	PolicyID    string
	Reason      model.ClaimReason
	Description string
}

type Manager struct {
	claims   repository.ClaimStore
	policies repository.PolicyStore
	images   evidence.Store
	limits   evidence.Limits
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(claims repository.ClaimStore, policies repository.PolicyStore, images evidence.Store, limits evidence.Limits, logger *zap.Logger) *Manager {
	return &Manager{
		claims:   claims,
		policies: policies,
		images:   images,
		limits:   limits,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (req CreateRequest) validate() (CreateRequest, error) {
	req.PolicyID = strings.TrimSpace(req.PolicyID)
	req.Description = strings.TrimSpace(req.Description)
	if req.PolicyID == "" {
		return req, apperr.Validation(apperr.CodeInvalidRequest, "policyId is required")
	}
	if !req.Reason.Valid() {
		return req, apperr.Validation(apperr.CodeInvalidRequest, "reason must be one of: drought, livestock_death, flood, pest, disease, other")
	}
	if n := utf8.RuneCountInString(req.Description); n < minDescription || n > maxDescription {
		return req, apperr.Validation(apperr.CodeInvalidRequest, fmt.Sprintf("description must be between %d and %d characters", minDescription, maxDescription))
	}
	return req, nil
}

// Create files a pending claim against a policy owned by farmerID.
func (m *Manager) Create(ctx context.Context, farmerID string, req CreateRequest) (model.Claim, error) {
	claim, err := m.newClaim(ctx, farmerID, req)
	if err != nil {
		return model.Claim{}, err
	}
	if err := m.save(ctx, claim); err != nil {
		return model.Claim{}, err
	}
	return claim, nil
}

// newClaim checks req and policy ownership and builds a pending claim with its
// id assigned. Nothing is written.
func (m *Manager) newClaim(ctx context.Context, farmerID string, req CreateRequest) (model.Claim, error) {
	req, err := req.validate()
	if err != nil {
		return model.Claim{}, err
	}

	policy, err := m.policies.GetPolicy(ctx, req.PolicyID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Claim{}, apperr.Internal(fmt.Errorf("load policy: %w", err))
	}
	if err != nil || policy.FarmerID != farmerID {
		return model.Claim{}, apperr.NotFound(apperr.CodePolicyNotFound, "Policy not found or does not belong to farmer")
	}

	now := m.now()
	return model.Claim{
		ID:            uuid.NewString(),
		PolicyID:      policy.ID,
		FarmerID:      farmerID,
		Reason:        req.Reason,
		Description:   req.Description,
		Amount:        0,
		Status:        model.ClaimStatusPending,
		DateSubmitted: now,
		CreatedAt:     now,
		Images:        []model.ClaimImage{},
	}, nil
}

func (m *Manager) save(ctx context.Context, claim model.Claim) error {
	if err := m.claims.CreateClaim(ctx, claim); err != nil {
		return apperr.Internal(fmt.Errorf("create claim: %w", err))
	}
	metrics.ClaimsSubmitted.WithLabelValues(string(claim.Reason)).Inc()
	m.logger.Info("claim submitted",
		zap.String("claim_id", claim.ID),
		zap.String("policy_id", claim.PolicyID),
		zap.String("reason", string(claim.Reason)),
		zap.Int("images", len(claim.Images)),
	)
	return nil
}

func (m *Manager) imageRecords(claimID string, paths []string) []model.ClaimImage {
	now := m.now()
	images := make([]model.ClaimImage, 0, len(paths))
	for _, path := range paths {
		images = append(images, model.ClaimImage{
			ID:        uuid.NewString(),
			ClaimID:   claimID,
			ImagePath: path,
			CreatedAt: now,
		})
	}
	return images
}

// AddImages records one ClaimImage per path, in the order given.
func (m *Manager) AddImages(ctx context.Context, claimID string, paths []string) ([]model.ClaimImage, error) {
	if _, err := m.FindOne(ctx, claimID); err != nil {
		return nil, err
	}
	images := m.imageRecords(claimID, paths)
	if err := m.claims.AddClaimImages(ctx, images); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, claimNotFound()
		}
		return nil, apperr.Internal(fmt.Errorf("add claim images: %w", err))
	}
	return images, nil
}

// Submit files a claim with its photos. Photos are checked, then stored under
// the new claim's id, and only then is the claim written together with its
// images, so a failed upload leaves no claim behind.
func (m *Manager) Submit(ctx context.Context, farmerID string, req CreateRequest, files []evidence.File) (model.Claim, error) {
	files, err := evidence.Validate(files, m.limits)
	if err != nil {
		return model.Claim{}, err
	}
	claim, err := m.newClaim(ctx, farmerID, req)
	if err != nil {
		return model.Claim{}, err
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		path, err := m.images.Save(ctx, claim.ID, file)
		if err != nil {
			m.logger.Error("claim image upload failed", zap.String("claim_id", claim.ID), zap.Error(err))
			return model.Claim{}, apperr.Internal(fmt.Errorf("store claim image: %w", err))
		}
		paths = append(paths, path)
	}
	claim.Images = m.imageRecords(claim.ID, paths)
	if err := m.save(ctx, claim); err != nil {
		return model.Claim{}, err
	}
	return claim, nil
}

func (m *Manager) FindByFarmer(ctx context.Context, farmerID string) ([]model.Claim, error) {
	claims, err := m.claims.ListClaimsByFarmer(ctx, farmerID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list claims: %w", err))
	}
	return m.attachImages(ctx, claims)
}

func (m *Manager) FindByPolicy(ctx context.Context, policyID string) ([]model.Claim, error) {
	claims, err := m.claims.ListClaimsByPolicy(ctx, policyID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list claims: %w", err))
	}
	return m.attachImages(ctx, claims)
}

func (m *Manager) FindOne(ctx context.Context, id string) (model.Claim, error) {
	claim, err := m.claims.GetClaim(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Claim{}, claimNotFound()
	}
	if err != nil {
		return model.Claim{}, apperr.Internal(fmt.Errorf("load claim: %w", err))
	}
	claims, err := m.attachImages(ctx, []model.Claim{claim})
	if err != nil {
		return model.Claim{}, err
	}
	return claims[0], nil
}

func (m *Manager) attachImages(ctx context.Context, claims []model.Claim) ([]model.Claim, error) {
	if len(claims) == 0 {
		return claims, nil
	}
	ids := make([]string, 0, len(claims))
	byClaim := make(map[string][]model.ClaimImage, len(claims))
	for _, claim := range claims {
		ids = append(ids, claim.ID)
		byClaim[claim.ID] = []model.ClaimImage{}
	}
	images, err := m.claims.ListClaimImages(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list claim images: %w", err))
	}
	for _, image := range images {
		byClaim[image.ClaimID] = append(byClaim[image.ClaimID], image)
	}
	for i := range claims {
		claims[i].Images = byClaim[claims[i].ID]
	}
	return claims, nil
}

func claimNotFound() *apperr.Error {
	return apperr.NotFound(apperr.CodeClaimNotFound, "Claim not found")
}
