package httpapi

import (
	"errors"
	"io"
	"net/http"

	"estoquefacil/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	cookieAffiliateCode = "aff_code"
	cookieAffiliateLink = "aff_link"
	maxWebhookBody      = 64 << 10
)

// handleStartCheckout falls back to the referral cookies when the body names
// no affiliate.
func (s *Server) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	var req services.StartCheckoutInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AffiliateCode == "" {
		if c, err := r.Cookie(cookieAffiliateCode); err == nil {
			req.AffiliateCode = c.Value
			if l, err := r.Cookie(cookieAffiliateLink); err == nil && req.AffiliateLinkID == "" {
				req.AffiliateLinkID = l.Value
			}
		}
	}
	res, err := s.svc.Checkout.Start(r.Context(), accountIDFrom(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"session_id":     res.SessionID,
		"checkout_url":   res.URL,
		"affiliate_code": res.AffiliateCode,
	})
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("could not read webhook body"))
		return
	}
	if err := s.svc.Checkout.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// handleReferralRedirect counts the click, remembers the affiliate in a
// cookie and sends the visitor to the app. Unknown links still redirect.
func (s *Server) handleReferralRedirect(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	link, aff, err := s.svc.Affiliates.TrackClick(r.Context(), slug)
	switch {
	case err == nil:
		maxAge := int(s.cfg.AffiliateCookieMaxAge().Seconds())
		http.SetCookie(w, s.referralCookie(cookieAffiliateCode, aff.Code, maxAge))
		http.SetCookie(w, s.referralCookie(cookieAffiliateLink, link.ID, maxAge))
	case errors.Is(err, services.ErrNotFound):
		s.logger.Info("referral link not found", zap.String("slug", slug))
	default:
		s.logError(r, "track referral click", err)
	}
	http.Redirect(w, r, s.cfg.AppURL+"/", http.StatusFound)
}

func (s *Server) referralCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
