package httpapi

import (
	"net/http"

	"estoquefacil/internal/models"
	"estoquefacil/internal/plans"

	"github.com/go-chi/chi/v5"
)

type signupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	BusinessName string `json:"business_name"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	acct, err := s.svc.Accounts.Signup(r.Context(), req.Email, req.Password, req.BusinessName)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondWithToken(w, r, http.StatusCreated, acct)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	acct, err := s.svc.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondWithToken(w, r, http.StatusOK, acct)
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, status int, acct models.Account) {
	token, err := s.generateJWT(acct)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, status, map[string]any{
		"token":   token,
		"account": acct,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, err := s.svc.Accounts.Get(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"account": acct,
		"limits":  plans.LimitsFor(acct.Tier),
	})
}

func (s *Server) handleListLimits(w http.ResponseWriter, r *http.Request) {
	usage, err := s.svc.Limits.Overview(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	out := make([]usageResponse, 0, len(usage))
	for _, u := range usage {
		out = append(out, newUsageResponse(u))
	}
	respondSuccess(w, http.StatusOK, map[string]any{"limits": out})
}

func (s *Server) handleGetLimit(w http.ResponseWriter, r *http.Request) {
	resource := plans.Resource(chi.URLParam(r, "resource"))
	u, err := s.svc.Limits.Check(r.Context(), accountIDFrom(r.Context()), resource)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"limit": newUsageResponse(u)})
}

type usageResponse struct {
	plans.Usage
	PercentLabel string `json:"percent_label,omitempty"`
	Blocking     bool   `json:"blocking"`
}

func newUsageResponse(u plans.Usage) usageResponse {
	return usageResponse{Usage: u, PercentLabel: u.PercentLabel(), Blocking: u.Blocking()}
}

func (s *Server) handleMyActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Activity.List(r.Context(), accountIDFrom(r.Context()), parseLimit(r, 50, 200))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"activity": nonNil(entries)})
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
