package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/apperr"
	"github.com/kc-allan/at-insurance/internal/claims"
	"github.com/kc-allan/at-insurance/internal/config"
	"github.com/kc-allan/at-insurance/internal/farmers"
	"github.com/kc-allan/at-insurance/internal/otp"
	"github.com/kc-allan/at-insurance/internal/payments"
	"github.com/kc-allan/at-insurance/internal/policies"
	"github.com/kc-allan/at-insurance/internal/repository"
)

type Services struct {
	OTP      *otp.Authenticator
	Farmers  *farmers.Directory
	Policies *policies.Manager
	Claims   *claims.Manager
	Payments *payments.Client
	Store    repository.Pinger
}

type Server struct {
	cfg      config.Config
	otp      *otp.Authenticator
	farmers  *farmers.Directory
	policies *policies.Manager
	claims   *claims.Manager
	payments *payments.Client
	store    repository.Pinger
	logger   *zap.Logger
}

func NewServer(cfg config.Config, services Services, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		otp:      services.OTP,
		farmers:  services.Farmers,
		policies: services.Policies,
		claims:   services.Claims,
		payments: services.Payments,
		store:    services.Store,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, apperr.CodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/send-otp", s.handleSendOTP)
		r.Post("/verify-otp", s.handleVerifyOTP)
		r.Post("/register", s.handleRegister)
		r.With(s.authMiddleware).Get("/me", s.handleGetMe)
	})

	r.Route("/farmers", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListFarmers)
		r.Get("/{farmerID}", s.handleGetFarmer)
	})

	r.Route("/policies", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListPolicies)
		r.Post("/", s.handleCreatePolicy)
		r.Post("/calculate-premium", s.handleCalculatePremium)
		r.Get("/{policyID}", s.handleGetPolicy)
		r.Post("/{policyID}/renew", s.handleRenewPolicy)
	})

	r.Route("/claims", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListClaims)
		r.Post("/", s.handleCreateClaim)
		r.Get("/by-policy/{policyID}", s.handleListClaimsByPolicy)
		r.Get("/{claimID}", s.handleGetClaim)
	})

	r.Route("/mpesa", func(r chi.Router) {
		r.Get("/health", s.handlePaymentHealth)
		r.With(s.authMiddleware).Post("/payment/initiate", s.handleInitiatePayment)
		r.With(s.authMiddleware).Post("/payment/status", s.handlePaymentStatus)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeAppError maps an error from the domain components to its HTTP form.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err)
	}
	status := statusFor(appErr)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, appErr.Code, appErr.Message)
}

func statusFor(err *apperr.Error) int {
	switch err.Kind {
	case apperr.KindValidation, apperr.KindExpired:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindUpstream:
		if err.Status >= 400 && err.Status < 500 {
			return err.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return apperr.Validation(apperr.CodeInvalidRequest, "Invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: code, Message: message})
}
