package httpapi

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"estoquefacil/internal/config"
	"estoquefacil/internal/models"
	"estoquefacil/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Server struct {
	svc    *services.Service
	cfg    config.Config
	logger *zap.Logger
}

func NewServer(svc *services.Service, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, cfg: cfg, logger: logger.Named("http")}
}

// loggingRecoverer turns a handler panic into a 500 and logs the stack.
func (s *Server) loggingRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				s.logger.Error("panic recovered",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rvr),
					zap.ByteString("stack", debug.Stack()))

				if r.Header.Get("Connection") != "Upgrade" {
					respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
				}
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingRecoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware)

	r.Get("/r/{slug}", s.handleReferralRedirect)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/webhooks/stripe", s.handleStripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.jwtMiddleware)

			r.Get("/me", s.handleMe)
			r.Get("/limits", s.handleListLimits)
			r.Get("/limits/{resource}", s.handleGetLimit)

			r.Get("/products", s.handleListProducts)
			r.Post("/products", s.handleCreateProduct)
			r.Delete("/products/{id}", s.handleDeleteProduct)
			r.Post("/products/{id}/photo", s.handleUploadProductPhoto)

			r.Get("/suppliers", s.handleListSuppliers)
			r.Post("/suppliers", s.handleCreateSupplier)
			r.Delete("/suppliers/{id}", s.handleDeleteSupplier)

			r.Get("/recipes", s.handleListRecipes)
			r.Post("/recipes", s.handleCreateRecipe)
			r.Delete("/recipes/{id}", s.handleDeleteRecipe)
			r.Get("/recipes/{id}/pricing", s.handlePriceRecipe)

			r.Get("/showcase", s.handleListShowcase)
			r.Post("/showcase", s.handleCreateShowcaseItem)
			r.Delete("/showcase/{id}", s.handleDeleteShowcaseItem)

			r.Get("/inventory/value", s.handleInventoryValue)

			r.Get("/configurations", s.handleListConfigurations)
			r.Get("/configurations/{type}", s.handleGetConfiguration)
			r.Put("/configurations/{type}", s.handleSaveConfiguration)

			r.Post("/checkout", s.handleStartCheckout)
			r.Get("/activity", s.handleMyActivity)
		})

		r.Route("/affiliate", func(r chi.Router) {
			r.Use(s.jwtMiddleware)
			r.Use(s.requireRole(models.RoleAffiliate))

			r.Get("/me", s.handleAffiliateMe)
			r.Get("/links", s.handleListLinks)
			r.Post("/links", s.handleCreateLink)
			r.Get("/coupons", s.handleListOwnCoupons)
			r.Post("/coupons", s.handleCreateOwnCoupon)
			r.Get("/coupons/active", s.handleActiveCoupons)
			r.Post("/coupons/{id}/toggle", s.handleToggleOwnCoupon)
			r.Get("/sales", s.handleListOwnSales)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.jwtMiddleware)
			r.Use(s.requireRole(models.RoleAdmin))

			r.Post("/affiliates/sync", s.handleAdminSyncSales)
			r.Get("/affiliates", s.handleAdminListAffiliates)
			r.Post("/affiliates", s.handleAdminCreateAffiliate)
			r.Post("/affiliates/import", s.handleAdminImportAffiliates)
			r.Get("/affiliates/{id}/coupons", s.handleAdminListCoupons)
			r.Post("/affiliates/{id}/coupons", s.handleAdminCreateCoupon)
			r.Post("/coupons/{id}/toggle", s.handleAdminToggleCoupon)
			r.Get("/activity", s.handleAdminActivity)
		})
	})

	return r
}

// corsMiddleware answers every preflight with an empty 200.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSAllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,Stripe-Signature,X-Client-Info,Apikey")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const genericRemoteMessage = "a remote service failed, please try again later"

// respondServiceError maps the service error taxonomy to a status code.
// Remote failures are logged with their cause and answered generically.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrUnauthenticated), errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err)
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrPlanLimitReached):
		respondError(w, http.StatusForbidden, err)
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, services.ErrNotFound)
	case errors.Is(err, services.ErrConflict):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrUsageUnavailable):
		s.logError(r, "usage count failed", err)
		respondError(w, http.StatusServiceUnavailable, services.ErrUsageUnavailable)
	case errors.Is(err, services.ErrPaymentsNotConfigured), errors.Is(err, services.ErrStorageNotConfigured):
		respondError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, services.ErrRemoteService):
		s.logError(r, "remote service error", err)
		respondError(w, http.StatusBadGateway, errors.New(genericRemoteMessage))
	default:
		s.logError(r, "internal error", err)
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func (s *Server) logError(r *http.Request, msg string, err error) {
	s.logger.Error(msg,
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("account_id", accountIDFrom(r.Context())),
		zap.Error(err))
}

func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
