package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kc-allan/at-insurance/internal/apperr"
	"github.com/kc-allan/at-insurance/internal/model"
	"github.com/kc-allan/at-insurance/internal/policies"
)

type createPolicyRequest struct {
	Type     model.PolicyType `json:"type"`
	Product  string           `json:"product"`
	Coverage float64          `json:"coverage"`
	Location string           `json:"location"`
}

type premiumRequest struct {
	Type     model.PolicyType `json:"type"`
	Coverage float64          `json:"coverage"`
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	list, err := s.policies.FindByFarmer(r.Context(), currentFarmer(r.Context()).ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := s.ownPolicy(r, chi.URLParam(r, "policyID"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	policy, err := s.policies.Create(r.Context(), currentFarmer(r.Context()).ID, policies.CreateRequest{
		Type:     req.Type,
		Product:  req.Product,
		Coverage: req.Coverage,
		Location: req.Location,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleRenewPolicy(w http.ResponseWriter, r *http.Request) {
	existing, err := s.ownPolicy(r, chi.URLParam(r, "policyID"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	renewed, err := s.policies.Renew(r.Context(), existing.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renewed)
}

func (s *Server) handleCalculatePremium(w http.ResponseWriter, r *http.Request) {
	var req premiumRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	premium, err := policies.CalculatePremium(req.Type, req.Coverage)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"premium": premium})
}

// ownPolicy loads a policy of the current farmer. Foreign policies read as missing.
func (s *Server) ownPolicy(r *http.Request, id string) (model.Policy, error) {
	policy, err := s.policies.FindOne(r.Context(), id)
	if err != nil {
		return model.Policy{}, err
	}
	if policy.FarmerID != currentFarmer(r.Context()).ID {
		return model.Policy{}, apperr.NotFound(apperr.CodePolicyNotFound, "Policy not found")
	}
	return policy, nil
}
