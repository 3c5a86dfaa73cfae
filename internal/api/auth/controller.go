// Package auth exposes the login/logout/refresh endpoints guarding the
// admin management surface.
package auth

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/api/jwt"
	"github.com/hbomb79/Selene/internal/user"
	"github.com/hbomb79/Selene/pkg/logger"
	"github.com/labstack/echo/v4"
)

var controllerLogger = logger.Get("AuthController")

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	UpdateCredentialsRequest struct {
		Username        string `json:"username" validate:"required"`
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=8"`
	}

	UserDto struct {
		ID          uuid.UUID  `json:"id"`
		Username    string     `json:"username"`
		CreatedAt   time.Time  `json:"created_at"`
		LastLoginAt *time.Time `json:"last_login"`
	}

	AuthProvider interface {
		GenerateTokenCookies(userID uuid.UUID) (*http.Cookie, *http.Cookie, error)
		RefreshTokens(allegedRefreshToken string) (*http.Cookie, *http.Cookie, error)
		RevokeTokensInContext(ec echo.Context)
		GetAuthenticatedUserFromContext(ec echo.Context) (*jwt.AuthenticatedUser, error)
	}

	Store interface {
		GetUserWithUsernameAndPassword(username []byte, rawPassword []byte) (*user.User, error)
		GetUserWithID(id uuid.UUID) (*user.User, error)
		UpdateUserCredentials(userID uuid.UUID, username []byte, rawPassword []byte) error
	}

	Controller struct {
		validate *validator.Validate
		auth     AuthProvider
		store    Store
	}
)

func NewDto(u *user.User) *UserDto {
	return &UserDto{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt, LastLoginAt: u.LastLoginAt}
}

func New(validate *validator.Validate, auth AuthProvider, store Store) *Controller {
	return &Controller{validate: validate, auth: auth, store: store}
}

// SetRoutes mounts the unauthenticated auth endpoints (login/refresh).
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/login/", controller.login)
	eg.POST("/refresh/", controller.refresh)
}

// SetAuthenticatedRoutes mounts the endpoints which require an existing
// session.
func (controller *Controller) SetAuthenticatedRoutes(eg *echo.Group) {
	eg.POST("/logout/", controller.logout)
	eg.GET("/current-user/", controller.currentUser)
	eg.PUT("/profile/", controller.updateProfile)
}

func (controller *Controller) login(ec echo.Context) error {
	var request LoginRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body illegal")
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	matched, err := controller.store.GetUserWithUsernameAndPassword([]byte(request.Username), []byte(request.Password))
	if err != nil {
		// Do not reveal whether the username or the password was at fault.
		controllerLogger.Warnf("Login attempt for %s rejected: %v\n", request.Username, err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	authCookie, refreshCookie, err := controller.auth.GenerateTokenCookies(matched.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	ec.SetCookie(authCookie)
	ec.SetCookie(refreshCookie)
	return ec.JSON(http.StatusOK, NewDto(matched))
}

func (controller *Controller) refresh(ec echo.Context) error {
	cookie, err := ec.Cookie(jwt.RefreshTokenCookieName)
	if err != nil || cookie == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "No refresh token provided")
	}

	authCookie, refreshCookie, err := controller.auth.RefreshTokens(cookie.Value)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Session could not be refreshed")
	}

	ec.SetCookie(authCookie)
	ec.SetCookie(refreshCookie)
	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) logout(ec echo.Context) error {
	controller.auth.RevokeTokensInContext(ec)
	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) currentUser(ec echo.Context) error {
	authenticated, err := controller.auth.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	matched, err := controller.store.GetUserWithID(authenticated.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User no longer exists")
	}

	return ec.JSON(http.StatusOK, NewDto(matched))
}

// updateProfile replaces the admin's username and password after verifying
// the current password. All existing sessions remain valid; only the
// credentials change.
func (controller *Controller) updateProfile(ec echo.Context) error {
	authenticated, err := controller.auth.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	var request UpdateCredentialsRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body illegal")
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	current, err := controller.store.GetUserWithID(authenticated.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User no longer exists")
	}

	if _, err := controller.store.GetUserWithUsernameAndPassword([]byte(current.Username), []byte(request.CurrentPassword)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Current password is incorrect")
	}

	if err := controller.store.UpdateUserCredentials(current.ID, []byte(request.Username), []byte(request.NewPassword)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	updated, err := controller.store.GetUserWithID(current.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, NewDto(updated))
}
