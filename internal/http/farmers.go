package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListFarmers(w http.ResponseWriter, r *http.Request) {
	farmers, err := s.farmers.List(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, farmers)
}

func (s *Server) handleGetFarmer(w http.ResponseWriter, r *http.Request) {
	farmer, err := s.farmers.FindByID(r.Context(), chi.URLParam(r, "farmerID"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, farmer)
}
