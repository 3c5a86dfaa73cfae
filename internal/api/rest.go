package api

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Selene/internal/api/auth"
	"github.com/hbomb79/Selene/internal/api/blogs"
	"github.com/hbomb79/Selene/internal/api/downloads"
	"github.com/hbomb79/Selene/internal/api/settings"
	"github.com/hbomb79/Selene/internal/api/sitemap"
	"github.com/hbomb79/Selene/internal/http/websocket"
	"github.com/hbomb79/Selene/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// AuthProvider is the union of the session-issuing capabilities the
	// auth controller needs and the route-guarding middleware the gateway
	// applies to the admin group.
	AuthProvider interface {
		auth.AuthProvider
		RequireAuthentication() echo.MiddlewareFunc
	}

	// DataStore represents a union of all the controller store requirements
	DataStore interface {
		auth.Store
		blogs.Store
		settings.Store
		sitemap.Store
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. Its sole
	// responsibility is to create the routes Selene exposes, manage ongoing
	// web socket connections, and to enforce auth middleware where applicable.
	RestGateway struct {
		*broadcaster
		config             *RestConfig
		ec                 *echo.Echo
		socket             *websocket.SocketHub
		downloadController *downloads.Controller
		authController     *auth.Controller
		blogController     *blogs.Controller
		settingsController *settings.Controller
		sitemapController  controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers.
func NewRestGateway(
	config *RestConfig,
	downloadService downloads.DownloadService,
	authProvider AuthProvider,
	store DataStore,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	socket := websocket.New()
	gateway := &RestGateway{
		broadcaster:        newBroadcaster(socket, downloadService),
		config:             config,
		ec:                 ec,
		socket:             socket,
		downloadController: downloads.New(validate, downloadService),
		authController:     auth.New(validate, authProvider, store),
		blogController:     blogs.New(validate, store),
		settingsController: settings.New(validate, store),
		sitemapController:  sitemap.New(store),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/api/selene/v1/activity/ws/", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	gateway.downloadController.SetInfoRoutes(ec.Group("/api/selene/v1/info"))
	gateway.downloadController.SetRoutes(ec.Group("/api/selene/v1/downloads"))
	gateway.blogController.SetRoutes(ec.Group("/api/selene/v1/blogs"))
	gateway.settingsController.SetRoutes(ec.Group("/api/selene/v1/settings"))
	gateway.authController.SetRoutes(ec.Group("/api/selene/v1/auth"))
	gateway.sitemapController.SetRoutes(ec.Group(""))

	authenticated := ec.Group("/api/selene/v1/auth", authProvider.RequireAuthentication())
	gateway.authController.SetAuthenticatedRoutes(authenticated)

	admin := ec.Group("/api/selene/v1/admin", authProvider.RequireAuthentication())
	gateway.blogController.SetAdminRoutes(admin.Group("/blogs"))
	gateway.settingsController.SetAdminRoutes(admin)

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
