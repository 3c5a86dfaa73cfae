// Package settings stores the site-wide key/value settings and the per-page
// SEO configuration that the public pages are rendered with.
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/hbomb79/Selene/internal/database"
	"github.com/jmoiron/sqlx"
)

var ErrSeoConfigNotFound = errors.New("no SEO config exists for the page provided")

// publicKeys is the subset of settings which unauthenticated clients may
// read; everything else is admin-only.
var publicKeys = []string{
	"site_name",
	"site_url",
	"site_tagline",
	"favicon_url",
	"analytics_id",
	"google_site_verification",
	"bing_site_verification",
}

type (
	Setting struct {
		Key         string    `db:"key" json:"key"`
		Value       string    `db:"value" json:"value"`
		ValueType   string    `db:"value_type" json:"value_type"`
		Description string    `db:"description" json:"description"`
		UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	}

	SeoConfig struct {
		Page           string                              `db:"page" json:"page"`
		Title          string                              `db:"title" json:"title"`
		Description    string                              `db:"description" json:"description"`
		Keywords       string                              `db:"keywords" json:"keywords"`
		OgImage        string                              `db:"og_image" json:"og_image"`
		StructuredData database.JsonColumn[map[string]any] `db:"structured_data" json:"-"`
		UpdatedAt      time.Time                           `db:"updated_at" json:"updated_at"`
	}

	Store struct{}
)

func NewStore() *Store { return &Store{} }

func (store *Store) List(db database.Queryable) ([]*Setting, error) {
	var results []*Setting
	if err := db.Select(&results, `SELECT * FROM settings ORDER BY key`); err != nil {
		return nil, err
	}

	return results, nil
}

// PublicValues returns only the settings safe to expose to unauthenticated
// clients, keyed for direct consumption by the frontend.
func (store *Store) PublicValues(db database.Queryable) (map[string]string, error) {
	query, args, err := sqlx.In(`SELECT key, value FROM settings WHERE key IN (?)`, publicKeys)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.Select(&rows, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	return values, nil
}

func (store *Store) Get(db database.Queryable, key string) (string, error) {
	var value string
	if err := db.Get(&value, `SELECT value FROM settings WHERE key=$1`, key); err != nil {
		return "", err
	}

	return value, nil
}

// Upsert stores the value for the key provided, creating the setting row if
// it does not exist yet.
func (store *Store) Upsert(db database.Queryable, key string, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings(key, value, updated_at) VALUES ($1, $2, current_timestamp)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=current_timestamp
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}

	return nil
}

func (store *Store) ListSeoConfigs(db database.Queryable) ([]*SeoConfig, error) {
	var results []*SeoConfig
	if err := db.Select(&results, `SELECT * FROM seo_configs ORDER BY page`); err != nil {
		return nil, err
	}

	return results, nil
}

func (store *Store) GetSeoConfig(db database.Queryable, page string) (*SeoConfig, error) {
	var config SeoConfig
	if err := db.Get(&config, `SELECT * FROM seo_configs WHERE page=$1`, page); err != nil {
		return nil, ErrSeoConfigNotFound
	}

	return &config, nil
}

func (store *Store) UpsertSeoConfig(db database.Queryable, config *SeoConfig) error {
	_, err := db.NamedExec(`
		INSERT INTO seo_configs(page, title, description, keywords, og_image, structured_data, updated_at)
		VALUES (:page, :title, :description, :keywords, :og_image, :structured_data, current_timestamp)
		ON CONFLICT(page) DO UPDATE SET
			title=excluded.title, description=excluded.description, keywords=excluded.keywords,
			og_image=excluded.og_image, structured_data=excluded.structured_data, updated_at=current_timestamp
	`, config)
	if err != nil {
		return fmt.Errorf("failed to upsert SEO config for page %s: %w", config.Page, err)
	}

	return nil
}
