package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"retail-pos/internal/app"
	"retail-pos/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const authCookie = "auth_token"

type authClaimsKey struct{}

// AuthClaims holds the authenticated user's identity extracted from the JWT.
type AuthClaims struct {
	UserID    int
	Username  string
	Role      core.Role
	TokenID   string
	ExpiresAt time.Time
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	UserID   int       `json:"user_id"`
	Username string    `json:"username"`
	Role     core.Role `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) parseToken(raw string) (*jwtClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	}, jwt.WithTimeFunc(h.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireAuth is chi middleware that validates the auth_token cookie and injects
// AuthClaims into the request context. Returns 401 if the token is absent,
// invalid, expired, or revoked by a logout.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, r, "authentication required", core.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		claims, err := h.parseToken(cookie.Value)
		if err != nil {
			writeError(w, r, "invalid or expired token", core.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		revoked, err := h.sessions.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		if revoked {
			writeError(w, r, "session has ended", core.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		// Role and active flag come from the database, not the token, so a
		// deactivation or demotion takes effect on the next request.
		user, err := h.svc.GetUser(r.Context(), claims.UserID)
		if core.KindOf(err) == core.KindNotFound || (err == nil && !user.IsActive) {
			writeError(w, r, "account is no longer active", core.CodeUnauthorized, http.StatusUnauthorized)
			return
		}
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}

		ac := &AuthClaims{
			UserID:   user.ID,
			Username: user.Username,
			Role:     user.Role,
			TokenID:  claims.ID,
		}
		if claims.ExpiresAt != nil {
			ac.ExpiresAt = claims.ExpiresAt.Time
		}
		ctx := context.WithValue(r.Context(), authClaimsKey{}, ac)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth. Returns 403 for non-admin sessions.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := authFromContext(r.Context())
		if claims == nil || claims.Role != core.RoleAdmin {
			writeError(w, r, "admin access required", core.CodeForbidden, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	})
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if core.KindOf(err) == core.KindAuth {
			writeError(w, r, "Invalid credentials", core.CodeUnauthorized, http.StatusUnauthorized)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	now := h.now()
	claims := &jwtClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(h.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		h.writeServiceError(w, r, fmt.Errorf("token generation failed: %w", err))
		return
	}

	h.setSessionCookie(w, signed, int(h.sessionTTL.Seconds()))
	writeJSON(w, map[string]any{"message": "Login successful", "user": user})
}

// logout handles POST /api/auth/logout. It revokes the current token when one is
// presented and always clears the cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(authCookie); err == nil && cookie.Value != "" {
		if claims, err := h.parseToken(cookie.Value); err == nil && claims.ExpiresAt != nil {
			if err := h.sessions.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
				h.log.WithError(err).WithField("user_id", claims.UserID).Warn("logout: token revocation failed")
			}
		}
	}
	h.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/auth/me. It returns the current user's profile.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	user, err := h.svc.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			writeError(w, r, "User not found", core.CodeUnauthorized, http.StatusUnauthorized)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"user": user})
}

// changePassword handles POST /api/auth/change-password.
func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.svc.ChangePassword(r.Context(), app.ChangePasswordRequest{
		UserID:          authFromContext(r.Context()).UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"message": "Password changed successfully"})
}

// createUser handles POST /api/auth/users (admin only).
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required,min=6,max=72"`
		FullName string `json:"full_name" validate:"required"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.CreateUser(r.Context(), app.CreateUserRequest{
		ActorRole: authFromContext(r.Context()).Role,
		Username:  req.Username,
		Password:  req.Password,
		FullName:  req.FullName,
		Role:      req.Role,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"message": "User created successfully", "user": user})
}
