package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/model"
)

type farmerKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		farmer, err := s.farmers.Authenticate(r.Context(), bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), farmerKey{}, farmer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentFarmer is only valid behind authMiddleware.
func currentFarmer(ctx context.Context) model.Farmer {
	farmer, _ := ctx.Value(farmerKey{}).(model.Farmer)
	return farmer
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		switch {
		case status == http.StatusUnauthorized:
			s.logger.Warn("unauthorized request", fields...)
		case status >= http.StatusInternalServerError:
			s.logger.Error("request completed", fields...)
		default:
			s.logger.Info("request completed", fields...)
		}
	})
}
