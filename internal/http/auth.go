package http

import (
	"net/http"

	"github.com/kc-allan/at-insurance/internal/farmers"
	"github.com/kc-allan/at-insurance/internal/model"
)

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type sendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type verifyOTPResponse struct {
	Success   bool          `json:"success"`
	User      *model.Farmer `json:"user,omitempty"`
	Token     string        `json:"token,omitempty"`
	IsNewUser bool          `json:"isNewUser"`
	Message   string        `json:"message,omitempty"`
}

type registerRequest struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	County     string  `json:"county"`
	IDDocument *string `json:"idDocument"`
}

type authResponse struct {
	Success bool         `json:"success"`
	User    model.Farmer `json:"user"`
	Token   string       `json:"token"`
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	challenge, err := s.otp.RequestCode(r.Context(), req.Phone)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp := sendOTPResponse{Success: true, Message: "OTP generated successfully"}
	if s.cfg.OTPExposeCode {
		resp.OTP = challenge.Code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	result, err := s.otp.VerifyCode(r.Context(), req.Phone, req.OTP)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if result.IsNewUser {
		writeJSON(w, http.StatusOK, verifyOTPResponse{
			Success:   true,
			IsNewUser: true,
			Message:   "New user - proceed to registration",
		})
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPResponse{
		Success: true,
		User:    result.Farmer,
		Token:   result.Token,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	farmer, token, err := s.farmers.Register(r.Context(), farmers.Registration{
		Name:       req.Name,
		Phone:      req.Phone,
		County:     req.County,
		IDDocument: req.IDDocument,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Success: true, User: farmer, Token: token})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentFarmer(r.Context()))
}
