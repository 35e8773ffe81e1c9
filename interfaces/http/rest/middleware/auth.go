package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"learnmap-backend/infrastructure/config"
	"learnmap-backend/pkg/auth"
	"learnmap-backend/pkg/common"
)

const defaultIssuer = "learnmap-backend"

var defaultAudience = []string{"learnmap-api"}

// Authenticate guards the map and article routes. Inside Lambda the API
// Gateway JWT authorizer has already validated the token and we only lift
// the user identity out of the forwarded headers; everywhere else the token
// is validated locally.
func Authenticate() func(next http.Handler) http.Handler {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return AuthenticateForLambda()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		jwtSecret := os.Getenv("JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "development-secret-change-in-production"
		}
		cfg = &config.Config{
			JWTSecret: jwtSecret,
			JWTIssuer: defaultIssuer,
		}
	}

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
		Audience:      defaultAudience,
	})
	if err != nil {
		// A validator that cannot be built must not let anything through
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				respondUnauthorized(w, "Authentication system error")
			})
		}
	}

	ipLimiter := auth.NewIPRateLimiter(100)
	userLimiter := auth.NewUserRateLimiter(200)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			allowed, _ := ipLimiter.Allow(r.Context(), clientIP)
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				authHeader = r.Header.Get("authorization")
			}
			if authHeader == "" {
				respondUnauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respondUnauthorized(w, "Invalid authorization header format")
				return
			}

			token := parts[1]

			var claims *auth.Claims
			if token == "api-gateway-validated" && r.Header.Get("X-API-Gateway-Authorized") == "true" {
				// The gateway authorizer already checked the signature;
				// the identity travels in forwarded headers.
				claims = claimsFromGatewayHeaders(r)
				if claims == nil {
					respondUnauthorized(w, "Missing user context from API Gateway")
					return
				}
			} else if strings.HasPrefix(token, "lambda-authorized:") {
				userID := strings.TrimPrefix(token, "lambda-authorized:")
				if userID == "" {
					respondUnauthorized(w, "Invalid Lambda authorization")
					return
				}

				claims = &auth.Claims{
					UserID: userID,
					Email:  r.Header.Get("X-User-Email"),
					Roles:  []string{r.Header.Get("X-User-Role")},
				}
				if claims.Roles[0] == "" {
					claims.Roles = []string{"authenticated"}
				}
			} else {
				var err error
				claims, err = validator.ValidateToken(token)
				if err != nil {
					respondTokenError(w, err)
					return
				}
			}

			allowed, _ = userLimiter.Allow(r.Context(), claims.UserID)
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "User rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithUser(r, claims)))
		})
	}
}

// AuthenticateForLambda trusts the user headers the Lambda adapter copies
// out of the API Gateway request context. It never validates tokens itself.
func AuthenticateForLambda() func(next http.Handler) http.Handler {
	ipLimiter := auth.NewIPRateLimiter(100)
	userLimiter := auth.NewUserRateLimiter(200)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			allowed, _ := ipLimiter.Allow(r.Context(), clientIP)
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			if r.Header.Get("X-API-Gateway-Authorized") != "true" {
				respondUnauthorized(w, "Request not authorized by API Gateway")
				return
			}

			claims := claimsFromGatewayHeaders(r)
			if claims == nil {
				respondUnauthorized(w, "Missing user context from API Gateway")
				return
			}

			allowed, _ = userLimiter.Allow(r.Context(), claims.UserID)
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "User rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithUser(r, claims)))
		})
	}
}

// claimsFromGatewayHeaders rebuilds claims from the headers the API Gateway
// authorizer forwards. Returns nil when the user ID is missing.
func claimsFromGatewayHeaders(r *http.Request) *auth.Claims {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return nil
	}

	roles := []string{"authenticated"}
	if userRoles := r.Header.Get("X-User-Roles"); userRoles != "" {
		roles = strings.Split(userRoles, ",")
	}

	return &auth.Claims{
		UserID: userID,
		Email:  r.Header.Get("X-User-Email"),
		Roles:  roles,
	}
}

// contextWithUser stores the authenticated user both as the full auth
// context and under the shared user ID key the handlers read.
func contextWithUser(r *http.Request, claims *auth.Claims) context.Context {
	ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Roles:  claims.Roles,
	})
	return common.WithUserID(ctx, claims.UserID)
}

func respondTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		respondUnauthorized(w, "Token has expired")
	case errors.Is(err, auth.ErrInvalidSignature):
		respondUnauthorized(w, "Invalid token signature")
	default:
		respondUnauthorized(w, "Invalid token")
	}
}

// extractToken pulls the JWT out of the Authorization header, the auth
// cookie, or the token query parameter, in that order.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return authHeader
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}

	return r.URL.Query().Get("token")
}

// getClientIP extracts the client IP, preferring proxy headers
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusUnauthorized, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    code,
	})
}

// TokenRefreshMiddleware exchanges a valid or recently expired token for a
// fresh one so long-lived study sessions do not force a re-login.
type TokenRefreshMiddleware struct {
	generator *auth.JWTGenerator
	validator *auth.JWTValidator
}

// NewTokenRefreshMiddleware creates a refresh handler sharing one secret
// between generation and validation
func NewTokenRefreshMiddleware(secretKey string) (*TokenRefreshMiddleware, error) {
	generator, err := auth.NewJWTGenerator(auth.JWTGeneratorConfig{
		SigningMethod: "HS256",
		SecretKey:     secretKey,
		Issuer:        defaultIssuer,
		Audience:      defaultAudience,
		ExpiryTime:    24 * time.Hour,
	})
	if err != nil {
		return nil, err
	}

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secretKey,
		Issuer:        defaultIssuer,
		Audience:      defaultAudience,
	})
	if err != nil {
		return nil, err
	}

	return &TokenRefreshMiddleware{
		generator: generator,
		validator: validator,
	}, nil
}

// RefreshToken issues a new token. Expired tokens are accepted as long as
// their signature and remaining claims still verify.
func (m *TokenRefreshMiddleware) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token == "" {
		respondUnauthorized(w, "Missing token")
		return
	}

	claims, err := m.validator.ValidateToken(token)
	if err != nil && !errors.Is(err, auth.ErrExpiredToken) {
		respondUnauthorized(w, "Invalid token")
		return
	}
	if claims == nil {
		respondUnauthorized(w, "Invalid token")
		return
	}

	newToken, err := m.generator.GenerateToken(claims.UserID, claims.Email, claims.Roles)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":      newToken,
		"expires_in": int((24 * time.Hour).Seconds()),
	})
}
