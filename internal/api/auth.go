package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/discord"
	"github.com/onyxservices/dispatch/internal/roles"
)

const (
	tokenTTL = 24 * time.Hour

	stateCookie   = "onyx_oauth_state"
	stateAudience = "oauth_state"
	stateTTL      = 10 * time.Minute
)

type Claims struct {
	UserID    string           `json:"user_id"`
	DiscordID string           `json:"discord_id"`
	Username  string           `json:"username"`
	Role      roles.SystemRole `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey int

const userKey ctxKey = iota

// currentUser is set by authMiddleware.
func currentUser(ctx context.Context) *db.User {
	u, _ := ctx.Value(userKey).(*db.User)
	return u
}

// Auth handlers

// handleLogin starts the OAuth flow. The state is also signed into a
// short-lived cookie so the callback can tell it came from this browser.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := generateRandomString(32)
	signed, err := a.signState(state)
	if err != nil {
		a.serverError(w, err)
		return
	}
	a.setStateCookie(w, signed, int(stateTTL.Seconds()))
	url := a.oauthConfig.AuthCodeURL(state)

	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": url,
		"state":    state,
	})
}

func (a *API) issueToken(u *db.User) (string, error) {
	now := a.now()
	claims := &Claims{
		UserID:    u.ID,
		DiscordID: u.DiscordID,
		Username:  u.DiscordUsername,
		Role:      u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return tokenString, nil
}

func (a *API) authenticateUser(ctx context.Context, code string) (string, *db.User, error) {
	// Exchange code for token
	token, err := a.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("token exchange failed: %w", err)
	}

	du, err := a.getDiscordUser(ctx, token.AccessToken)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	user, err := a.roleSync.VerifyLogin(ctx, du.ID, getUsername(du))
	if err != nil {
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, errInactive
	}

	tokenString, err := a.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return tokenString, user, nil
}

var (
	errInactive = errors.New("account is disabled")
	errBadState = errors.New("invalid oauth state")
)

func (a *API) signState(state string) (string, error) {
	now := a.now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        state,
		Audience:  jwt.ClaimStrings{stateAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}).SignedString(a.jwtSecret)
}

// checkState compares the callback's state with the one in the login cookie.
func (a *API) checkState(r *http.Request) error {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		return errBadState
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(cookie.Value, claims, a.signingKey,
		jwt.WithTimeFunc(a.now), jwt.WithAudience(stateAudience)); err != nil {
		return errBadState
	}
	state := r.URL.Query().Get("state")
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(claims.ID)) != 1 {
		return errBadState
	}
	return nil
}

// setStateCookie writes the state cookie; a negative maxAge clears it.
func (a *API) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     "/api/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(a.config.SiteURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	err := a.checkState(r)
	a.setStateCookie(w, "", -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokenString, user, err := a.authenticateUser(r.Context(), code)
	switch {
	case errors.Is(err, discord.ErrNotGuildMember):
		writeError(w, http.StatusForbidden, "You must be a member of the Onyx Services Discord server to access this application.")
		return
	case errors.Is(err, errInactive):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		a.log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	a.log.Info().Str("discord_id", user.DiscordID).Str("role", string(user.Role)).Msg("user logged in")
	writeJSON(w, http.StatusOK, map[string]any{
		"token": tokenString,
		"user":  user,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

func (a *API) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, a.signingKey, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (a *API) signingKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method")
	}
	return a.jwtSecret, nil
}

// Middleware
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := a.parseToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		// The stored role is authoritative; it may have changed since the token was issued.
		user, err := a.store.GetUser(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			a.serverError(w, err)
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusForbidden, errInactive.Error())
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireManager admits ceo, administrator and dispatcher users.
func (a *API) requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r.Context())
		if u == nil || !u.Role.CanManage() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r.Context()))
}
