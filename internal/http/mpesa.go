package http

import (
	"net/http"

	"github.com/kc-allan/at-insurance/internal/payments"
)

type paymentStatusRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (s *Server) handlePaymentHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.payments.Health(r.Context()))
}

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req payments.InitiateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp, err := s.payments.Initiate(r.Context(), currentFarmer(r.Context()), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp, err := s.payments.Status(r.Context(), req.TransactionID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
