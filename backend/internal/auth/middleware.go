package auth

import (
	"context"
	"net/http"

	"github.com/rpgengine/arbiter/backend/pkg/errors"
)

func respondAuthError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_, _ = w.Write(err.ToJSON())
}

// ContextKey represents the type for context keys
type ContextKey string

const (
	// UserContextKey is the key for user claims in request context
	UserContextKey ContextKey = "user_claims"
)

// Middleware provides authentication middleware functions
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{
		jwtManager: jwtManager,
	}
}

// Authenticate is a middleware that validates JWT tokens
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract token from header
		authHeader := r.Header.Get("Authorization")
		token, err := ExtractTokenFromHeader(authHeader)
		if err != nil {
			respondAuthError(w, errors.NewAuthenticationError(err.Error()).WithCode(string(errors.ErrCodeTokenInvalid)))
			return
		}

		// Validate token
		claims, err := m.jwtManager.ValidateToken(token, AccessToken)
		if err != nil {
			code := errors.ErrCodeTokenInvalid
			if err == ErrExpiredToken {
				code = errors.ErrCodeTokenExpired
			}
			respondAuthError(w, errors.NewAuthenticationError(err.Error()).WithCode(string(code)))
			return
		}

		// Add claims to context
		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// OptionalAuthenticate is a middleware that validates JWT tokens if present but doesn't require them
func (m *Middleware) OptionalAuthenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract token from header if present
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			token, err := ExtractTokenFromHeader(authHeader)
			if err == nil {
				// Validate token but don't fail if invalid
				claims, err := m.jwtManager.ValidateToken(token, AccessToken)
				if err == nil {
					// Add claims to context if valid
					ctx := context.WithValue(r.Context(), UserContextKey, claims)
					r = r.WithContext(ctx)
				}
			}
		}

		next.ServeHTTP(w, r)
	}
}

// RequireRole is a middleware that checks if the caller holds a
// specific room role.
func (m *Middleware) RequireRole(role Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetActorFromContext(r.Context())
			if !ok {
				respondAuthError(w, errors.NewAuthenticationError("no authenticated actor").WithCode(string(errors.ErrCodeTokenInvalid)))
				return
			}

			if claims.Role != role {
				code := errors.ErrCodeInsufficientPrivilege
				if role == RoleDM {
					code = errors.ErrCodeNotDM
				}
				respondAuthError(w, errors.NewAuthorizationError("insufficient permissions").WithCode(string(code)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireDM gates a route (e.g. POST /replay, spec §6.6) to the DM role.
func (m *Middleware) RequireDM() func(http.HandlerFunc) http.HandlerFunc {
	return m.RequireRole(RoleDM)
}

// RequirePlayer gates a route to the player role.
func (m *Middleware) RequirePlayer() func(http.HandlerFunc) http.HandlerFunc {
	return m.RequireRole(RolePlayer)
}

// GetActorFromContext retrieves the authenticated caller's claims from
// the request context.
func GetActorFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

// GetActorIDFromContext is a helper to get just the actor ID from context.
func GetActorIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := GetActorFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.ActorID, true
}