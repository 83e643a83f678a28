package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"estoquefacil/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const contextKeyAccountID contextKey = "account_id"

const tokenIssuer = "estoquefacil"

type JWTClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

var errSecretNotConfigured = errors.New("JWT secret key not configured")

func (s *Server) generateJWT(acct models.Account) (string, error) {
	if s.cfg.JWTSecretKey == "" {
		return "", errSecretNotConfigured
	}

	now := time.Now()
	claims := JWTClaims{
		AccountID: acct.ID,
		Email:     acct.Email,
		Role:      acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.JWTExpiryHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecretKey))
}

// jwtMiddleware rejects requests without a valid bearer token with 401.
func (s *Server) jwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, errors.New("missing authorization header"))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			respondError(w, http.StatusUnauthorized, errors.New("invalid authorization header format"))
			return
		}

		if s.cfg.JWTSecretKey == "" {
			s.logger.Error("bearer token presented but no JWT secret is configured")
			respondError(w, http.StatusInternalServerError, errSecretNotConfigured)
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(s.cfg.JWTSecretKey), nil
		}, jwt.WithIssuer(tokenIssuer))
		if err != nil {
			respondError(w, http.StatusUnauthorized, errors.New("invalid or expired token"))
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid || claims.AccountID == "" {
			respondError(w, http.StatusUnauthorized, errors.New("invalid token claims"))
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyAccountID, claims.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole checks the caller's current role in the database, so a
// promotion or demotion takes effect without a new token.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := s.svc.Accounts.HasRoleOrHigher(r.Context(), accountIDFrom(r.Context()), role)
			if err != nil {
				s.logger.Error("role check failed",
					zap.String("role", role),
					zap.String("account_id", accountIDFrom(r.Context())),
					zap.Error(err))
				respondError(w, http.StatusInternalServerError, errors.New("could not verify permissions"))
				return
			}
			if !ok {
				respondError(w, http.StatusForbidden, errors.New(role+" access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accountIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyAccountID).(string); ok {
		return id
	}
	return ""
}
