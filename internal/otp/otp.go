// Package otp implements phone number login: it issues short-lived six digit
// codes, verifies them once, and tells the caller whether the phone already
// belongs to a registered farmer.
package otp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/apperr"
	"github.com/kc-allan/at-insurance/internal/crypto"
	"github.com/kc-allan/at-insurance/internal/logging"
	"github.com/kc-allan/at-insurance/internal/metrics"
	"github.com/kc-allan/at-insurance/internal/model"
	"github.com/kc-allan/at-insurance/internal/phone"
	"github.com/kc-allan/at-insurance/internal/ratelimit"
	"github.com/kc-allan/at-insurance/internal/repository"
	"github.com/kc-allan/at-insurance/internal/sms"
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

type FarmerLookup interface {
	GetFarmerByPhone(ctx context.Context, phone string) (model.Farmer, error)
}

type TokenIssuer interface {
	Issue(farmerID, phone string) (string, error)
}

type Options struct {
	TTL         time.Duration
	MaxAttempts int
	HashCost    int
}

// Challenge is the result of a code request. Code is returned so callers can
// expose it in development; production callers must drop it.
type Challenge struct {
	Code      string
	ExpiresAt time.Time
}

type Result struct {
	IsNewUser bool
	Farmer    *model.Farmer
	Token     string
}

type Authenticator struct {
	sessions repository.OTPStore
	farmers  FarmerLookup
	tokens   TokenIssuer
	sender   sms.Sender
	limiter  ratelimit.Limiter
	logger   *zap.Logger
	opts     Options

	now     func() time.Time
	newCode func() (string, error)
}

func NewAuthenticator(sessions repository.OTPStore, farmers FarmerLookup, tokens TokenIssuer, sender sms.Sender, limiter ratelimit.Limiter, logger *zap.Logger, opts Options) *Authenticator {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Authenticator{
		sessions: sessions,
		farmers:  farmers,
		tokens:   tokens,
		sender:   sender,
		limiter:  limiter,
		logger:   logger,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  crypto.NewOTPCode,
	}
}

func invalidPhone() *apperr.Error {
	return apperr.Validation(apperr.CodeInvalidPhone, "Phone number must be in format +254XXXXXXXXX")
}

// RequestCode creates or replaces the OTP session for phone and delivers the code.
func (a *Authenticator) RequestCode(ctx context.Context, p string) (Challenge, error) {
	if !phone.Valid(p) {
		metrics.OTPRequests.WithLabelValues("invalid").Inc()
		return Challenge{}, invalidPhone()
	}
	if a.limiter != nil {
		allowed, err := a.limiter.Allow(ctx, p)
		if err != nil {
			return Challenge{}, apperr.Internal(fmt.Errorf("otp rate limit: %w", err))
		}
		if !allowed {
			metrics.OTPRequests.WithLabelValues("rate_limited").Inc()
			return Challenge{}, apperr.RateLimited("Too many OTP requests. Please try again later.")
		}
	}

	code, err := a.newCode()
	if err != nil {
		return Challenge{}, apperr.Internal(fmt.Errorf("generate otp: %w", err))
	}
	hash, err := crypto.HashCode(code, a.opts.HashCost)
	if err != nil {
		return Challenge{}, apperr.Internal(fmt.Errorf("hash otp: %w", err))
	}

	now := a.now()
	session := model.OTPSession{
		Phone:     p,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(a.opts.TTL),
	}
	if err := a.sessions.PutOTPSession(ctx, session); err != nil {
		return Challenge{}, apperr.Internal(fmt.Errorf("store otp session: %w", err))
	}

	if err := a.sender.Send(ctx, p, sms.OTPMessage(code)); err != nil {
		a.logger.Error("otp delivery failed", zap.String("phone", logging.MaskPhone(p)), zap.Error(err))
		if _, delErr := a.sessions.DeleteOTPSession(ctx, p, hash); delErr != nil {
			a.logger.Warn("otp session cleanup failed", zap.Error(delErr))
		}
		metrics.OTPRequests.WithLabelValues("delivery_failed").Inc()
		return Challenge{}, &apperr.Error{
			Kind:    apperr.KindUpstream,
			Code:    apperr.CodeDeliveryFailed,
			Message: "Failed to send OTP",
			Err:     err,
		}
	}

	metrics.OTPRequests.WithLabelValues("sent").Inc()
	a.logger.Info("otp issued", zap.String("phone", logging.MaskPhone(p)), zap.Time("expires_at", session.ExpiresAt))
	return Challenge{Code: code, ExpiresAt: session.ExpiresAt}, nil
}

// VerifyCode checks code against the stored session. A matching code consumes
// the session; only the caller whose delete succeeds is treated as verified.
// Deletes are keyed on the code hash that was checked, so a session replaced
// by a concurrent RequestCode is left alone.
func (a *Authenticator) VerifyCode(ctx context.Context, p, code string) (Result, error) {
	if !phone.Valid(p) {
		return Result{}, invalidPhone()
	}
	if !codePattern.MatchString(code) {
		return Result{}, apperr.Validation(apperr.CodeInvalidOTP, "OTP must be 6 digits")
	}

	session, err := a.sessions.GetOTPSession(ctx, p)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.OTPVerifications.WithLabelValues("missing").Inc()
		return Result{}, noSession()
	}
	if err != nil {
		return Result{}, apperr.Internal(fmt.Errorf("load otp session: %w", err))
	}

	if session.Expired(a.now()) {
		if _, err := a.sessions.DeleteOTPSession(ctx, p, session.CodeHash); err != nil {
			return Result{}, apperr.Internal(fmt.Errorf("delete expired otp session: %w", err))
		}
		metrics.OTPVerifications.WithLabelValues("expired").Inc()
		return Result{}, apperr.Expired(apperr.CodeOTPExpired, "OTP has expired")
	}

	if err := crypto.CheckCode(session.CodeHash, code); err != nil {
		return Result{}, a.recordMismatch(ctx, p, session.CodeHash)
	}

	consumed, err := a.sessions.DeleteOTPSession(ctx, p, session.CodeHash)
	if err != nil {
		return Result{}, apperr.Internal(fmt.Errorf("consume otp session: %w", err))
	}
	if !consumed {
		metrics.OTPVerifications.WithLabelValues("missing").Inc()
		return Result{}, noSession()
	}
	metrics.OTPVerifications.WithLabelValues("verified").Inc()

	farmer, err := a.farmers.GetFarmerByPhone(ctx, p)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{IsNewUser: true}, nil
	}
	if err != nil {
		return Result{}, apperr.Internal(fmt.Errorf("lookup farmer: %w", err))
	}
	token, err := a.tokens.Issue(farmer.ID, farmer.Phone)
	if err != nil {
		return Result{}, apperr.Internal(fmt.Errorf("issue session token: %w", err))
	}
	return Result{Farmer: &farmer, Token: token}, nil
}

func (a *Authenticator) recordMismatch(ctx context.Context, p, codeHash string) error {
	metrics.OTPVerifications.WithLabelValues("mismatch").Inc()
	attempts, err := a.sessions.IncrementOTPAttempts(ctx, p)
	if errors.Is(err, repository.ErrNotFound) {
		return noSession()
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("count otp attempt: %w", err))
	}
	if attempts >= a.opts.MaxAttempts {
		if _, err := a.sessions.DeleteOTPSession(ctx, p, codeHash); err != nil {
			return apperr.Internal(fmt.Errorf("delete exhausted otp session: %w", err))
		}
		a.logger.Warn("otp session exhausted", zap.String("phone", logging.MaskPhone(p)), zap.Int("attempts", attempts))
		return apperr.Unauthorized(apperr.CodeInvalidOTP, "Invalid OTP. Too many attempts, request a new code")
	}
	return apperr.Unauthorized(apperr.CodeInvalidOTP, "Invalid OTP")
}

func noSession() *apperr.Error {
	return apperr.NotFound(apperr.CodeOTPNotFound, "No OTP session found")
}
