// Package blogs exposes the public blog pages and their admin CRUD routes.
package blogs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/blog"
	"github.com/labstack/echo/v4"
)

const defaultPageSize = 20

type (
	BlogRequest struct {
		Title           string `json:"title" validate:"required"`
		Content         string `json:"content" validate:"required"`
		Excerpt         string `json:"excerpt"`
		Author          string `json:"author"`
		FeaturedImage   string `json:"featured_image"`
		Status          string `json:"status" validate:"omitempty,oneof=draft published"`
		MetaTitle       string `json:"meta_title"`
		MetaDescription string `json:"meta_description"`
	}

	Store interface {
		ListBlogs(status string, limit int, offset int) ([]*blog.Blog, error)
		GetBlogWithID(id uuid.UUID) (*blog.Blog, error)
		GetPublishedBlogWithSlug(slug string) (*blog.Blog, error)
		CreateBlog(draft blog.Draft) (*blog.Blog, error)
		UpdateBlog(id uuid.UUID, draft blog.Draft) (*blog.Blog, error)
		DeleteBlog(id uuid.UUID) error
	}

	Controller struct {
		validate *validator.Validate
		store    Store
	}
)

func New(validate *validator.Validate, store Store) *Controller {
	return &Controller{validate: validate, store: store}
}

// SetRoutes mounts the public read-only blog routes; only published posts
// are reachable here.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.listPublished)
	eg.GET("/:slug/", controller.getBySlug)
}

// SetAdminRoutes mounts the authenticated CRUD routes, which can see and
// mutate drafts as well.
func (controller *Controller) SetAdminRoutes(eg *echo.Group) {
	eg.GET("/", controller.listAll)
	eg.POST("/", controller.create)
	eg.GET("/:id/", controller.get)
	eg.PUT("/:id/", controller.update)
	eg.DELETE("/:id/", controller.delete)
}

func (controller *Controller) listPublished(ec echo.Context) error {
	limit, offset := paginationParams(ec)
	results, err := controller.store.ListBlogs(blog.StatusPublished, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, results)
}

func (controller *Controller) getBySlug(ec echo.Context) error {
	found, err := controller.store.GetPublishedBlogWithSlug(ec.Param("slug"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "No published blog found with that slug")
	}

	return ec.JSON(http.StatusOK, found)
}

func (controller *Controller) listAll(ec echo.Context) error {
	limit, offset := paginationParams(ec)
	results, err := controller.store.ListBlogs(ec.QueryParam("status"), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, results)
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Blog ID is not a valid UUID")
	}

	found, err := controller.store.GetBlogWithID(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "No blog found with that ID")
	}

	return ec.JSON(http.StatusOK, found)
}

func (controller *Controller) create(ec echo.Context) error {
	draft, err := controller.bindDraft(ec)
	if err != nil {
		return err
	}

	created, err := controller.store.CreateBlog(*draft)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusCreated, created)
}

func (controller *Controller) update(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Blog ID is not a valid UUID")
	}

	draft, err := controller.bindDraft(ec)
	if err != nil {
		return err
	}

	updated, err := controller.store.UpdateBlog(id, *draft)
	if err != nil {
		if errors.Is(err, blog.ErrBlogNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "No blog found with that ID")
		}
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, updated)
}

func (controller *Controller) delete(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Blog ID is not a valid UUID")
	}

	if err := controller.store.DeleteBlog(id); err != nil {
		if errors.Is(err, blog.ErrBlogNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "No blog found with that ID")
		}
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) bindDraft(ec echo.Context) (*blog.Draft, error) {
	var request BlogRequest
	if err := ec.Bind(&request); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "JSON body illegal")
	}
	if err := controller.validate.Struct(request); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return &blog.Draft{
		Title:           request.Title,
		Content:         request.Content,
		Excerpt:         request.Excerpt,
		Author:          request.Author,
		FeaturedImage:   request.FeaturedImage,
		Status:          request.Status,
		MetaTitle:       request.MetaTitle,
		MetaDescription: request.MetaDescription,
	}, nil
}

func paginationParams(ec echo.Context) (int, int) {
	limit := defaultPageSize
	if raw := ec.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if raw := ec.QueryParam("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
