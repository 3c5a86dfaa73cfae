// Package jwt implements cookie-based JWT authentication for the admin
// management routes.
package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hbomb79/Selene/pkg/logger"
	"github.com/hbomb79/Selene/pkg/sync"
	"github.com/labstack/echo/v4"
)

var (
	ErrAuthTokenMissing = errors.New("request does not contain required auth token in cookies")
	ErrTokenRevoked     = errors.New("token has been revoked")

	log = logger.Get("JWT-Auth")
)

const (
	AuthTokenCookieName = "auth-token"
	AuthTokenLifespan   = time.Minute * 30

	RefreshTokenCookieName = "refresh-token"
	RefreshTokenLifespan   = time.Hour * 24 * 30 // 30 days
)

type (
	AuthenticatedUser struct {
		UserID uuid.UUID
	}

	authTokenClaims struct {
		jwt.RegisteredClaims
		UserID uuid.UUID `json:"user_id"`
	}

	Store interface {
		RecordUserLogin(userID uuid.UUID) error
	}

	jwtAuthProvider struct {
		store                  Store
		authTokenSecret        []byte
		refreshTokenSecret     []byte
		refreshTokenCookiePath string

		// Tokens we have explicitly revoked (e.g. on logout). Entries are
		// cleaned up shortly after the token they track expires.
		blacklistedTokens *sync.TypedSyncMap[string, struct{}]
	}
)

// NewJwtAuth creates a new authentication provider which uses JWT tokens to
// authenticate admin actions. The refreshRoutePath restricts where the
// refresh token cookie is transmitted (it should only be sent to the server
// when it's going to be used). The two signing secrets should not match, and
// should be >= 256 bits in size.
func NewJwtAuth(store Store, refreshRoutePath string, authTokenSecret []byte, refreshTokenSecret []byte) *jwtAuthProvider {
	return &jwtAuthProvider{
		store,
		authTokenSecret,
		refreshTokenSecret,
		refreshRoutePath,
		new(sync.TypedSyncMap[string, struct{}]),
	}
}

// GenerateTokenCookies generates an auth token and a refresh token using the
// appropriate secrets and expiries, returning both as cookies to be set in
// the response.
func (auth *jwtAuthProvider) GenerateTokenCookies(userID uuid.UUID) (*http.Cookie, *http.Cookie, error) {
	authToken, authTokenExp, err := auth.generateToken(userID, auth.authTokenSecret, AuthTokenLifespan)
	if err != nil {
		return nil, nil, err
	}

	refreshToken, refreshTokenExp, err := auth.generateToken(userID, auth.refreshTokenSecret, RefreshTokenLifespan)
	if err != nil {
		return nil, nil, err
	}

	// Don't block the request waiting for this
	go func() {
		if err := auth.store.RecordUserLogin(userID); err != nil {
			log.Warnf("Failed to record user login for %v: %v\n", userID, err)
		}
	}()

	authTokenCookie := createTokenCookie(AuthTokenCookieName, "/", authToken, authTokenExp)
	refreshTokenCookie := createTokenCookie(RefreshTokenCookieName, auth.refreshTokenCookiePath, refreshToken, refreshTokenExp)
	return authTokenCookie, refreshTokenCookie, nil
}

// RefreshTokens generates new auth and refresh token cookies IF the alleged
// refresh token provided is valid.
func (auth *jwtAuthProvider) RefreshTokens(allegedRefreshToken string) (*http.Cookie, *http.Cookie, error) {
	userID, err := auth.validateJWT(allegedRefreshToken, auth.refreshTokenSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to refresh: %w", err)
	}

	return auth.GenerateTokenCookies(userID)
}

// RevokeTokensInContext revokes the auth and refresh token in this request
// context, assuming they are provided. A missing token/cookie is ignored.
func (auth *jwtAuthProvider) RevokeTokensInContext(ec echo.Context) {
	if cookie, err := ec.Cookie(AuthTokenCookieName); err == nil && cookie != nil {
		auth.revokeToken(cookie.Value, AuthTokenLifespan)
	}
	if cookie, err := ec.Cookie(RefreshTokenCookieName); err == nil && cookie != nil {
		auth.revokeToken(cookie.Value, RefreshTokenLifespan)
	}
}

// GetAuthenticatedUserFromContext provides a way for endpoints to extract
// the authenticated user's ID from the context of their request. An error is
// returned if no valid user can be found.
func (auth *jwtAuthProvider) GetAuthenticatedUserFromContext(ec echo.Context) (*AuthenticatedUser, error) {
	u, ok := ec.Get("user").(*AuthenticatedUser)
	if !ok {
		return nil, errors.New("no user found in request context")
	}

	return u, nil
}

// RequireAuthentication returns an echo middleware which rejects any request
// that does not carry a valid, unrevoked auth token cookie. The
// authenticated user is stored in the request context for handlers.
func (auth *jwtAuthProvider) RequireAuthentication() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			cookie, err := ec.Cookie(AuthTokenCookieName)
			if err != nil || cookie == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized)).SetInternal(ErrAuthTokenMissing)
			}

			userID, err := auth.validateJWT(cookie.Value, auth.authTokenSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized)).SetInternal(err)
			}

			ec.Set("user", &AuthenticatedUser{UserID: userID})
			return next(ec)
		}
	}
}

func (auth *jwtAuthProvider) generateToken(userID uuid.UUID, secret []byte, lifespan time.Duration) (string, time.Time, error) {
	expiry := time.Now().Add(lifespan)
	claims := &authTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiry, nil
}

// validateJWT parses and verifies the token provided, returning the user ID
// embedded in its claims.
func (auth *jwtAuthProvider) validateJWT(tokenString string, secret []byte) (uuid.UUID, error) {
	if _, revoked := auth.blacklistedTokens.Load(tokenString); revoked {
		return uuid.Nil, ErrTokenRevoked
	}

	claims := &authTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}

		return secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, errors.New("token is invalid")
	}

	return claims.UserID, nil
}

// revokeToken blacklists the token provided, scheduling removal of the entry
// once the token would have expired anyway.
func (auth *jwtAuthProvider) revokeToken(token string, lifespan time.Duration) {
	auth.blacklistedTokens.Store(token, struct{}{})
	time.AfterFunc(lifespan+time.Minute, func() {
		auth.blacklistedTokens.Delete(token)
	})
}

func createTokenCookie(name string, path string, token string, expiry time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Expires:  expiry,
		Path:     path,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
