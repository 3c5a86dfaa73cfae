package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hbomb79/Selene/internal/api"
	"github.com/hbomb79/Selene/internal/api/jwt"
	"github.com/hbomb79/Selene/internal/database"
	"github.com/hbomb79/Selene/internal/download"
	"github.com/hbomb79/Selene/internal/engine"
	"github.com/hbomb79/Selene/internal/event"
	"github.com/hbomb79/Selene/pkg/logger"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

// Selene represents the top-level object for the server, and is responsible
// for initialising embedded support services, stores, event handling, et
// cetera...
type seleneImpl struct {
	eventBus        event.EventCoordinator
	activityService *activityService
	config          SeleneConfig

	store           *storeOrchestrator
	downloadService *download.Service
	restGateway     *api.RestGateway
}

func New(config SeleneConfig) *seleneImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Selene services using config: %#v\n", config)
	selene := &seleneImpl{
		eventBus: event.New(),
		config:   config,
	}

	mediaEngine := engine.New(config.Engine)
	if serv, err := download.New(config.Downloads, mediaEngine, selene.eventBus); err == nil {
		selene.downloadService = serv
	} else {
		panic(fmt.Sprintf("failed to construct download service due to error: %s", err.Error()))
	}

	selene.store = newStoreOrchestrator(database.New(), selene.downloadService)
	authProvider := jwt.NewJwtAuth(
		selene.store,
		"/api/selene/v1/auth/refresh/",
		[]byte(config.Auth.AuthTokenSecret),
		[]byte(config.Auth.RefreshTokenSecret),
	)

	selene.restGateway = api.NewRestGateway(&config.RestConfig, selene.downloadService, authProvider, selene.store)
	selene.activityService = newActivityService(selene.restGateway, selene.eventBus)

	return selene
}

// Run will start all of Selene by bringing up all required services and
// connections.
//
// This function will not return until Selene is stopped. To stop Selene, the
// provided context must be cancelled. Errors from which Selene cannot recover
// will also cause Selene to stop.
func (selene *seleneImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := selene.store.db.Connect(selene.config.Database); err != nil {
		return err
	}

	if err := selene.store.EnsureDefaultAdminUser(selene.config.Auth.AdminUsername, selene.config.Auth.AdminPassword); err != nil {
		return fmt.Errorf("failed to seed default admin user: %w", err)
	}

	wg := &sync.WaitGroup{}
	selene.spawnAsyncService(ctx, wg, selene.downloadService, "download-service", crashHandler)
	selene.spawnAsyncService(ctx, wg, selene.activityService, "activity-service", crashHandler)
	selene.spawnAsyncService(ctx, wg, selene.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Selene services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the Selene service waitgroup is updated correctly
func (selene *seleneImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
