package httpapi

import (
	"errors"
	"net/http"
	"time"

	"estoquefacil/internal/models"
	"estoquefacil/internal/services"

	"github.com/go-chi/chi/v5"
)

type couponRequest struct {
	Name           string              `json:"name"`
	DiscountType   models.DiscountType `json:"discount_type"`
	DiscountValue  float64             `json:"discount_value"`
	MaxRedemptions *int                `json:"max_redemptions"`
	ExpiresAt      *time.Time          `json:"expires_at"`
}

func (c couponRequest) input(affiliateID string) services.CreateCouponInput {
	return services.CreateCouponInput{
		AffiliateID:    affiliateID,
		Name:           c.Name,
		DiscountType:   c.DiscountType,
		DiscountValue:  c.DiscountValue,
		MaxRedemptions: c.MaxRedemptions,
		ExpiresAt:      c.ExpiresAt,
	}
}

type toggleRequest struct {
	CurrentStatus *bool `json:"current_status"`
}

type linkRequest struct {
	Label string `json:"label"`
}

// currentAffiliate resolves the affiliate record of the caller, answering
// 403 when the account has none.
func (s *Server) currentAffiliate(w http.ResponseWriter, r *http.Request) (models.Affiliate, bool) {
	aff, err := s.svc.Affiliates.ForAccount(r.Context(), accountIDFrom(r.Context()))
	if errors.Is(err, services.ErrNotFound) {
		respondError(w, http.StatusForbidden, errors.New("no affiliate profile for this account"))
		return models.Affiliate{}, false
	}
	if err != nil {
		s.respondServiceError(w, r, err)
		return models.Affiliate{}, false
	}
	return aff, true
}

func (s *Server) handleAffiliateMe(w http.ResponseWriter, r *http.Request) {
	aff, ok := s.currentAffiliate(w, r)
	if !ok {
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"affiliate": aff})
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	aff, ok := s.currentAffiliate(w, r)
	if !ok {
		return
	}
	links, err := s.svc.Affiliates.ListLinks(r.Context(), aff.ID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"links": nonNil(links)})
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	aff, ok := s.currentAffiliate(w, r)
	if !ok {
		return
	}
	var req linkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	link, err := s.svc.Affiliates.CreateLink(r.Context(), aff.ID, req.Label)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{
		"link": link,
		"url":  s.referralURL(link.Slug),
	})
}

func (s *Server) referralURL(slug string) string {
	return s.cfg.PublicURL + "/r/" + slug
}

func (s *Server) handleListOwnCoupons(w http.ResponseWriter, r *http.Request) {
	aff, ok := s.currentAffiliate(w, r)
	if !ok {
		return
	}
	s.listCoupons(w, r, aff.ID)
}

func (s *Server) handleCreateOwnCoupon(w http.ResponseWriter, r *http.Request) {
	aff, ok := s.currentAffiliate(w, r)
	if !ok {
		return
	}
	s.createCoupon(w, r, aff.ID)
}

func (s *Server) handleActiveCoupons(w http.ResponseWriter, r *http.Request) {
	aff, ok := s.currentAffiliate(w, r)
	if !ok {
		return
	}
	coupons, err := s.svc.Coupons.GetActiveCouponsForAffiliate(r.Context(), aff.ID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"coupons": nonNil(coupons)})
}

// handleToggleOwnCoupon only touches coupons of the calling affiliate; other
// coupons look absent.
func (s *Server) handleToggleOwnCoupon(w http.ResponseWriter, r *http.Request) {
	aff, ok := s.currentAffiliate(w, r)
	if !ok {
		return
	}
	coupon, err := s.svc.Coupons.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && coupon.AffiliateID != aff.ID {
		err = services.ErrNotFound
	}
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.toggleCoupon(w, r, coupon.ID)
}

func (s *Server) handleListOwnSales(w http.ResponseWriter, r *http.Request) {
	aff, ok := s.currentAffiliate(w, r)
	if !ok {
		return
	}
	sales, err := s.svc.Affiliates.Sales(r.Context(), aff.ID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"sales": nonNil(sales)})
}

func (s *Server) listCoupons(w http.ResponseWriter, r *http.Request, affiliateID string) {
	coupons, err := s.svc.Coupons.List(r.Context(), affiliateID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"coupons": nonNil(coupons)})
}

func (s *Server) createCoupon(w http.ResponseWriter, r *http.Request, affiliateID string) {
	var req couponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	coupon, err := s.svc.Coupons.CreateCoupon(r.Context(), accountIDFrom(r.Context()), req.input(affiliateID))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{"coupon": coupon})
}

func (s *Server) toggleCoupon(w http.ResponseWriter, r *http.Request, couponID string) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentStatus == nil {
		respondError(w, http.StatusBadRequest, errors.New("current_status is required"))
		return
	}
	coupon, err := s.svc.Coupons.ToggleCouponStatus(r.Context(), accountIDFrom(r.Context()), couponID, *req.CurrentStatus)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"coupon": coupon})
}
