package http

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/apperr"
	"github.com/kc-allan/at-insurance/internal/claims"
	"github.com/kc-allan/at-insurance/internal/evidence"
	"github.com/kc-allan/at-insurance/internal/model"
)

const multipartMemory = 8 << 20

type claimCreatedResponse struct {
	Success bool        `json:"success"`
	Data    model.Claim `json:"data"`
	Message string      `json:"message"`
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	list, err := s.claims.FindByFarmer(r.Context(), currentFarmer(r.Context()).ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListClaimsByPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := s.ownPolicy(r, chi.URLParam(r, "policyID"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	list, err := s.claims.FindByPolicy(r.Context(), policy.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := s.claims.FindOne(r.Context(), chi.URLParam(r, "claimID"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if claim.FarmerID != currentFarmer(r.Context()).ID {
		s.writeAppError(w, r, apperr.NotFound(apperr.CodeClaimNotFound, "Claim not found"))
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(s.cfg.MaxImages)*s.cfg.MaxImageBytes + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeAppError(w, r, apperr.Validation(apperr.CodeInvalidUpload, "Upload is too large"))
			return
		}
		s.writeAppError(w, r, apperr.Validation(apperr.CodeInvalidRequest, "Expected a multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, closeFiles, err := openUploads(r.MultipartForm.File["images"])
	defer closeFiles()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	req := claims.CreateRequest{
		PolicyID:    r.FormValue("policyId"),
		Reason:      model.ClaimReason(r.FormValue("reason")),
		Description: r.FormValue("description"),
	}
	claim, err := s.claims.Submit(r.Context(), currentFarmer(r.Context()).ID, req, files)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.logger.Info("claim received", zap.String("claim_id", claim.ID), zap.Int("images", len(claim.Images)))
	writeJSON(w, http.StatusCreated, claimCreatedResponse{
		Success: true,
		Data:    claim,
		Message: "Claim submitted successfully. We will contact you shortly.",
	})
}

func openUploads(headers []*multipart.FileHeader) ([]evidence.File, func(), error) {
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	files := make([]evidence.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, closeAll, apperr.Internal(fmt.Errorf("open upload %s: %w", header.Filename, err))
		}
		opened = append(opened, f)
		files = append(files, evidence.File{Name: header.Filename, Size: header.Size, Body: f})
	}
	return files, closeAll, nil
}
