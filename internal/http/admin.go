package httpapi

import (
	"errors"
	"net/http"

	"estoquefacil/internal/services"

	"github.com/go-chi/chi/v5"
)

const maxImportItems = 500

// handleAdminSyncSales runs one reconciliation pass and returns its counts.
func (s *Server) handleAdminSyncSales(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Reconciler.Run(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) handleAdminListAffiliates(w http.ResponseWriter, r *http.Request) {
	affiliates, err := s.svc.Affiliates.List(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"affiliates": nonNil(affiliates)})
}

func (s *Server) handleAdminCreateAffiliate(w http.ResponseWriter, r *http.Request) {
	var req services.CreateAffiliateInput
	if !decodeJSON(w, r, &req) {
		return
	}
	aff, err := s.svc.Affiliates.Create(r.Context(), accountIDFrom(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{"affiliate": aff})
}

type importRequest struct {
	Affiliates []services.CreateAffiliateInput `json:"affiliates"`
}

func (s *Server) handleAdminImportAffiliates(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Affiliates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("affiliates must not be empty"))
		return
	}
	if len(req.Affiliates) > maxImportItems {
		respondError(w, http.StatusBadRequest, errors.New("too many affiliates in one import"))
		return
	}
	res := s.svc.Affiliates.Import(r.Context(), accountIDFrom(r.Context()), req.Affiliates)
	respondSuccess(w, http.StatusOK, map[string]any{
		"imported": res.Imported,
		"skipped":  res.Skipped,
		"errors":   nonNil(res.Errors),
	})
}

func (s *Server) handleAdminListCoupons(w http.ResponseWriter, r *http.Request) {
	s.listCoupons(w, r, chi.URLParam(r, "id"))
}

func (s *Server) handleAdminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	s.createCoupon(w, r, chi.URLParam(r, "id"))
}

func (s *Server) handleAdminToggleCoupon(w http.ResponseWriter, r *http.Request) {
	s.toggleCoupon(w, r, chi.URLParam(r, "id"))
}

func (s *Server) handleAdminActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Activity.List(r.Context(), r.URL.Query().Get("account_id"), parseLimit(r, 100, 500))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"activity": nonNil(entries)})
}
