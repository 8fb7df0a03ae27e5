package farmers

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
	"github.com/kc-allan/at-insurance/internal/auth"
	"github.com/kc-allan/at-insurance/internal/logging"
	"github.com/kc-allan/at-insurance/internal/model"
	"github.com/kc-allan/at-insurance/internal/phone"
	"github.com/kc-allan/at-insurance/internal/repository"
)

type TokenService interface {
	Issue(farmerID, phone string) (string, error)
	Parse(token string) (*auth.Claims, error)
}

type Registration struct {
	Name       string
	Phone      string
	County     string
	IDDocument *string
}

type Directory struct {
	store  repository.FarmerStore
	tokens TokenService
	logger *zap.Logger
	now    func() time.Time
}

func NewDirectory(store repository.FarmerStore, tokens TokenService, logger *zap.Logger) *Directory {
	return &Directory{
		store:  store,
		tokens: tokens,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r Registration) normalize() (Registration, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.County = strings.TrimSpace(r.County)
	if r.IDDocument != nil {
		doc := strings.TrimSpace(*r.IDDocument)
		if doc == "" {
			r.IDDocument = nil
		} else {
			r.IDDocument = &doc
		}
	}

	if !phone.Valid(r.Phone) {
		return r, apperr.Validation(apperr.CodeInvalidPhone, "Phone number must be in format +254XXXXXXXXX")
	}
	if n := utf8.RuneCountInString(r.Name); n < 2 || n > 255 {
		return r, apperr.Validation(apperr.CodeInvalidRequest, "name must be between 2 and 255 characters")
	}
	if n := utf8.RuneCountInString(r.County); n < 2 || n > 100 {
		return r, apperr.Validation(apperr.CodeInvalidRequest, "county must be between 2 and 100 characters")
	}
	if r.IDDocument != nil && utf8.RuneCountInString(*r.IDDocument) > 255 {
		return r, apperr.Validation(apperr.CodeInvalidRequest, "idDocument must be at most 255 characters")
	}
	return r, nil
}

// Register creates a farmer and returns it with a fresh session token.
func (d *Directory) Register(ctx context.Context, req Registration) (model.Farmer, string, error) {
	req, err := req.normalize()
	if err != nil {
		return model.Farmer{}, "", err
	}

	now := d.now()
	farmer := model.Farmer{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Phone:      req.Phone,
		County:     req.County,
		IDDocument: req.IDDocument,
		JoinDate:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := d.store.CreateFarmer(ctx, farmer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Farmer{}, "", apperr.Conflict(apperr.CodeFarmerExists, "Farmer with this phone number already exists")
		}
		return model.Farmer{}, "", apperr.Internal(fmt.Errorf("create farmer: %w", err))
	}

	token, err := d.tokens.Issue(farmer.ID, farmer.Phone)
	if err != nil {
		return model.Farmer{}, "", apperr.Internal(fmt.Errorf("issue session token: %w", err))
	}
	d.logger.Info("farmer registered", zap.String("farmer_id", farmer.ID), zap.String("phone", logging.MaskPhone(farmer.Phone)))
	return farmer, token, nil
}

func (d *Directory) FindByPhone(ctx context.Context, p string) (model.Farmer, error) {
	farmer, err := d.store.GetFarmerByPhone(ctx, p)
	return farmer, notFound(err)
}

func (d *Directory) FindByID(ctx context.Context, id string) (model.Farmer, error) {
	farmer, err := d.store.GetFarmerByID(ctx, id)
	return farmer, notFound(err)
}

func (d *Directory) List(ctx context.Context) ([]model.Farmer, error) {
	farmers, err := d.store.ListFarmers(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list farmers: %w", err))
	}
	return farmers, nil
}

// Authenticate resolves a session token to a live farmer.
func (d *Directory) Authenticate(ctx context.Context, token string) (model.Farmer, error) {
	if token == "" {
		return model.Farmer{}, apperr.Unauthorized(apperr.CodeMissingToken, "Missing bearer token")
	}
	claims, err := d.tokens.Parse(token)
	if err != nil {
		return model.Farmer{}, apperr.Unauthorized(apperr.CodeInvalidToken, "Invalid or expired token")
	}
	farmer, err := d.store.GetFarmerByID(ctx, claims.FarmerID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Farmer{}, apperr.Unauthorized(apperr.CodeInvalidToken, "Farmer not found")
	}
	if err != nil {
		return model.Farmer{}, apperr.Internal(fmt.Errorf("resolve farmer: %w", err))
	}
	return farmer, nil
}

func notFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(apperr.CodeFarmerNotFound, "Farmer not found")
	}
	return apperr.Internal(err)
}
