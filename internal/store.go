package internal

import (
	"sync"

	"github.com/google/uuid"
	apisettings "github.com/hbomb79/Selene/internal/api/settings"
	"github.com/hbomb79/Selene/internal/blog"
	"github.com/hbomb79/Selene/internal/database"
	"github.com/hbomb79/Selene/internal/settings"
	"github.com/hbomb79/Selene/internal/user"
	"github.com/jmoiron/sqlx"
)

// artifactCleaner purges leftover download artifacts on request; satisfied
// by the download service.
type artifactCleaner interface {
	CleanupArtifacts() (int, error)
}

// storeOrchestrator is glue-code that exposes the functionality of the
// various stores to the rest of the application, while implicitly
// providing the database connection each store method requires. Public
// setting/SEO reads are cached here as they sit on every page load;
// any mutation (or an explicit cache clear) drops the cache.
type storeOrchestrator struct {
	db            database.Manager
	userStore     *user.Store
	blogStore     *blog.Store
	settingsStore *settings.Store
	cleaner       artifactCleaner

	cacheLock           sync.Mutex
	publicSettingsCache map[string]string
	seoConfigCache      map[string]*settings.SeoConfig
}

func newStoreOrchestrator(db database.Manager, cleaner artifactCleaner) *storeOrchestrator {
	return &storeOrchestrator{
		db:            db,
		userStore:     user.NewStore(),
		blogStore:     blog.NewStore(),
		settingsStore: settings.NewStore(),
		cleaner:       cleaner,
	}
}

// EnsureDefaultAdminUser creates the initial admin account if the users
// table is empty, allowing a fresh deployment to be logged in to. An empty
// password disables seeding.
func (orchestrator *storeOrchestrator) EnsureDefaultAdminUser(username string, password string) error {
	if password == "" {
		return nil
	}

	return orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		count, err := orchestrator.userStore.Count(tx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		return orchestrator.userStore.Create(tx, []byte(username), []byte(password))
	})
}

// -- Users --

func (orchestrator *storeOrchestrator) GetUserWithUsernameAndPassword(username []byte, rawPassword []byte) (*user.User, error) {
	return orchestrator.userStore.GetWithUsernameAndPassword(orchestrator.db.GetSqlxDb(), username, rawPassword)
}

func (orchestrator *storeOrchestrator) GetUserWithID(id uuid.UUID) (*user.User, error) {
	return orchestrator.userStore.GetWithID(orchestrator.db.GetSqlxDb(), id)
}

func (orchestrator *storeOrchestrator) UpdateUserCredentials(userID uuid.UUID, username []byte, rawPassword []byte) error {
	return orchestrator.userStore.UpdateCredentials(orchestrator.db.GetSqlxDb(), userID, username, rawPassword)
}

func (orchestrator *storeOrchestrator) RecordUserLogin(userID uuid.UUID) error {
	return orchestrator.userStore.RecordLogin(orchestrator.db.GetSqlxDb(), userID)
}

// -- Blogs --

func (orchestrator *storeOrchestrator) ListBlogs(status string, limit int, offset int) ([]*blog.Blog, error) {
	return orchestrator.blogStore.List(orchestrator.db.GetSqlxDb(), status, limit, offset)
}

func (orchestrator *storeOrchestrator) GetBlogWithID(id uuid.UUID) (*blog.Blog, error) {
	return orchestrator.blogStore.GetWithID(orchestrator.db.GetSqlxDb(), id)
}

func (orchestrator *storeOrchestrator) GetPublishedBlogWithSlug(slug string) (*blog.Blog, error) {
	return orchestrator.blogStore.GetPublishedWithSlug(orchestrator.db.GetSqlxDb(), slug)
}

func (orchestrator *storeOrchestrator) CreateBlog(draft blog.Draft) (*blog.Blog, error) {
	var created *blog.Blog
	err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		var err error
		created, err = orchestrator.blogStore.Create(tx, draft)
		return err
	})

	return created, err
}

func (orchestrator *storeOrchestrator) UpdateBlog(id uuid.UUID, draft blog.Draft) (*blog.Blog, error) {
	var updated *blog.Blog
	err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		var err error
		updated, err = orchestrator.blogStore.Update(tx, id, draft)
		return err
	})

	return updated, err
}

func (orchestrator *storeOrchestrator) DeleteBlog(id uuid.UUID) error {
	return orchestrator.blogStore.Delete(orchestrator.db.GetSqlxDb(), id)
}

func (orchestrator *storeOrchestrator) PublishedBlogs() ([]*blog.Blog, error) {
	return orchestrator.blogStore.List(orchestrator.db.GetSqlxDb(), blog.StatusPublished, 0, 0)
}

// -- Settings / SEO --

func (orchestrator *storeOrchestrator) PublicSettingValues() (map[string]string, error) {
	orchestrator.cacheLock.Lock()
	defer orchestrator.cacheLock.Unlock()

	if orchestrator.publicSettingsCache != nil {
		return orchestrator.publicSettingsCache, nil
	}

	values, err := orchestrator.settingsStore.PublicValues(orchestrator.db.GetSqlxDb())
	if err != nil {
		return nil, err
	}

	orchestrator.publicSettingsCache = values
	return values, nil
}

func (orchestrator *storeOrchestrator) SettingValue(key string) (string, error) {
	return orchestrator.settingsStore.Get(orchestrator.db.GetSqlxDb(), key)
}

func (orchestrator *storeOrchestrator) ListSettings() ([]*settings.Setting, error) {
	return orchestrator.settingsStore.List(orchestrator.db.GetSqlxDb())
}

func (orchestrator *storeOrchestrator) UpsertSetting(key string, value string) error {
	if err := orchestrator.settingsStore.Upsert(orchestrator.db.GetSqlxDb(), key, value); err != nil {
		return err
	}

	orchestrator.invalidateSettingsCache()
	return nil
}

func (orchestrator *storeOrchestrator) ListSeoConfigs() ([]*settings.SeoConfig, error) {
	return orchestrator.settingsStore.ListSeoConfigs(orchestrator.db.GetSqlxDb())
}

func (orchestrator *storeOrchestrator) GetSeoConfig(page string) (*settings.SeoConfig, error) {
	orchestrator.cacheLock.Lock()
	if cached, ok := orchestrator.seoConfigCache[page]; ok {
		orchestrator.cacheLock.Unlock()
		return cached, nil
	}
	orchestrator.cacheLock.Unlock()

	config, err := orchestrator.settingsStore.GetSeoConfig(orchestrator.db.GetSqlxDb(), page)
	if err != nil {
		return nil, err
	}

	orchestrator.cacheLock.Lock()
	if orchestrator.seoConfigCache == nil {
		orchestrator.seoConfigCache = make(map[string]*settings.SeoConfig)
	}
	orchestrator.seoConfigCache[page] = config
	orchestrator.cacheLock.Unlock()

	return config, nil
}

func (orchestrator *storeOrchestrator) UpsertSeoConfig(config *settings.SeoConfig) error {
	if err := orchestrator.settingsStore.UpsertSeoConfig(orchestrator.db.GetSqlxDb(), config); err != nil {
		return err
	}

	orchestrator.invalidateSettingsCache()
	return nil
}

// ClearCaches drops the settings/SEO read cache and removes any leftover
// download artifacts, returning the number of files removed.
func (orchestrator *storeOrchestrator) ClearCaches() (int, error) {
	orchestrator.invalidateSettingsCache()
	return orchestrator.cleaner.CleanupArtifacts()
}

func (orchestrator *storeOrchestrator) invalidateSettingsCache() {
	orchestrator.cacheLock.Lock()
	defer orchestrator.cacheLock.Unlock()

	orchestrator.publicSettingsCache = nil
	orchestrator.seoConfigCache = nil
}

func (orchestrator *storeOrchestrator) DashboardStats() (*apisettings.DashboardStats, error) {
	db := orchestrator.db.GetSqlxDb()

	counts, err := orchestrator.blogStore.CountByStatus(db)
	if err != nil {
		return nil, err
	}

	users, err := orchestrator.userStore.Count(db)
	if err != nil {
		return nil, err
	}

	return &apisettings.DashboardStats{
		TotalBlogs:     counts[blog.StatusDraft] + counts[blog.StatusPublished],
		PublishedBlogs: counts[blog.StatusPublished],
		DraftBlogs:     counts[blog.StatusDraft],
		Users:          users,
	}, nil
}
