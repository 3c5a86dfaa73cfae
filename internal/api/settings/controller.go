// Package settings exposes the public site-configuration endpoint along
// with the admin settings, SEO and dashboard routes.
package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Selene/internal/settings"
	"github.com/labstack/echo/v4"
)

type (
	UpdateSettingsRequest struct {
		Settings map[string]string `json:"settings" validate:"required"`
	}

	SeoConfigRequest struct {
		Page           string         `json:"page" validate:"required"`
		Title          string         `json:"title"`
		Description    string         `json:"description"`
		Keywords       string         `json:"keywords"`
		OgImage        string         `json:"og_image"`
		StructuredData map[string]any `json:"structured_data"`
	}

	SeoConfigDto struct {
		Page           string         `json:"page"`
		Title          string         `json:"title"`
		Description    string         `json:"description"`
		Keywords       string         `json:"keywords"`
		OgImage        string         `json:"og_image"`
		StructuredData map[string]any `json:"structured_data"`
	}

	DashboardStats struct {
		TotalBlogs     int `json:"total_blogs"`
		PublishedBlogs int `json:"published_blogs"`
		DraftBlogs     int `json:"draft_blogs"`
		Users          int `json:"users"`
	}

	Store interface {
		PublicSettingValues() (map[string]string, error)
		ListSettings() ([]*settings.Setting, error)
		UpsertSetting(key string, value string) error
		ListSeoConfigs() ([]*settings.SeoConfig, error)
		GetSeoConfig(page string) (*settings.SeoConfig, error)
		UpsertSeoConfig(config *settings.SeoConfig) error
		DashboardStats() (*DashboardStats, error)
		ClearCaches() (int, error)
	}

	Controller struct {
		validate *validator.Validate
		store    Store
	}
)

func NewSeoDto(config *settings.SeoConfig) *SeoConfigDto {
	return &SeoConfigDto{
		Page:           config.Page,
		Title:          config.Title,
		Description:    config.Description,
		Keywords:       config.Keywords,
		OgImage:        config.OgImage,
		StructuredData: *config.StructuredData.Get(),
	}
}

func New(validate *validator.Validate, store Store) *Controller {
	return &Controller{validate: validate, store: store}
}

// SetRoutes mounts the public, unauthenticated routes: the safe subset of
// settings and the per-page SEO metadata used to render public pages.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.publicSettings)
	eg.GET("/seo/:page/", controller.seoForPage)
}

// SetAdminRoutes mounts the authenticated management routes.
func (controller *Controller) SetAdminRoutes(eg *echo.Group) {
	eg.GET("/settings/", controller.listSettings)
	eg.PUT("/settings/", controller.updateSettings)
	eg.GET("/seo/", controller.listSeoConfigs)
	eg.PUT("/seo/", controller.upsertSeoConfig)
	eg.GET("/dashboard/", controller.dashboard)
	eg.POST("/cache/clear/", controller.clearCache)
}

func (controller *Controller) publicSettings(ec echo.Context) error {
	values, err := controller.store.PublicSettingValues()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, values)
}

func (controller *Controller) seoForPage(ec echo.Context) error {
	config, err := controller.store.GetSeoConfig(ec.Param("page"))
	if err != nil {
		if errors.Is(err, settings.ErrSeoConfigNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "No SEO config for that page")
		}
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, NewSeoDto(config))
}

func (controller *Controller) listSettings(ec echo.Context) error {
	results, err := controller.store.ListSettings()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, results)
}

// updateSettings bulk-upserts the key/value pairs provided. Unknown keys are
// created rather than rejected, allowing the frontend to introduce new
// settings without a migration.
func (controller *Controller) updateSettings(ec echo.Context) error {
	var request UpdateSettingsRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body illegal")
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	for key, value := range request.Settings {
		if err := controller.store.UpsertSetting(key, value); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) listSeoConfigs(ec echo.Context) error {
	configs, err := controller.store.ListSeoConfigs()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	dtos := make([]*SeoConfigDto, len(configs))
	for k, v := range configs {
		dtos[k] = NewSeoDto(v)
	}

	return ec.JSON(http.StatusOK, dtos)
}

func (controller *Controller) upsertSeoConfig(ec echo.Context) error {
	var request SeoConfigRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body illegal")
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	structured := request.StructuredData
	if structured == nil {
		structured = map[string]any{}
	}

	config := &settings.SeoConfig{
		Page:        request.Page,
		Title:       request.Title,
		Description: request.Description,
		Keywords:    request.Keywords,
		OgImage:     request.OgImage,
	}

	raw, err := json.Marshal(structured)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Structured data is not valid JSON")
	}
	if err := config.StructuredData.Scan(raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Structured data is not valid JSON")
	}

	if err := controller.store.UpsertSeoConfig(config); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) dashboard(ec echo.Context) error {
	stats, err := controller.store.DashboardStats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, stats)
}

// clearCache drops the server-side settings/SEO cache and purges leftover
// download artifacts from disk.
func (controller *Controller) clearCache(ec echo.Context) error {
	removed, err := controller.store.ClearCaches()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, map[string]int{"removed_files": removed})
}
