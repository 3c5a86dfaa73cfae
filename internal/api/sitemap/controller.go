// Package sitemap serves the crawler-facing pages: the XML sitemap, a
// human-readable HTML variant, and robots.txt.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hbomb79/Selene/internal/blog"
	"github.com/labstack/echo/v4"
)

type (
	urlEntry struct {
		Loc        string `xml:"loc"`
		LastMod    string `xml:"lastmod,omitempty"`
		ChangeFreq string `xml:"changefreq,omitempty"`
		Priority   string `xml:"priority,omitempty"`
	}

	urlSet struct {
		XMLName xml.Name   `xml:"urlset"`
		Xmlns   string     `xml:"xmlns,attr"`
		URLs    []urlEntry `xml:"url"`
	}

	Store interface {
		PublishedBlogs() ([]*blog.Blog, error)
		SettingValue(key string) (string, error)
	}

	Controller struct {
		store Store
	}
)

func New(store Store) *Controller {
	return &Controller{store: store}
}

// SetRoutes mounts the crawler endpoints on the root of the router rather
// than under the API prefix.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/sitemap.xml", controller.sitemapXML)
	eg.GET("/sitemap/", controller.sitemapHTML)
	eg.GET("/robots.txt", controller.robots)
}

func (controller *Controller) sitemapXML(ec echo.Context) error {
	base, blogs, err := controller.entries()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	set := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []urlEntry{
			{Loc: base + "/", ChangeFreq: "daily", Priority: "1.0"},
			{Loc: base + "/blogs/", ChangeFreq: "daily", Priority: "0.8"},
		},
	}
	for _, post := range blogs {
		set.URLs = append(set.URLs, urlEntry{
			Loc:        fmt.Sprintf("%s/blogs/%s/", base, post.Slug),
			LastMod:    post.UpdatedAt.Format(time.DateOnly),
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}

	payload, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.Blob(http.StatusOK, "application/xml", append([]byte(xml.Header), payload...))
}

// sitemapHTML renders a plain, crawler-friendly listing of the same URLs
// exposed by the XML sitemap.
func (controller *Controller) sitemapHTML(ec echo.Context) error {
	base, blogs, err := controller.entries()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html><html><head><title>Sitemap</title></head><body><h1>Sitemap</h1><ul>")
	fmt.Fprintf(&page, `<li><a href="%s/">Home</a></li>`, base)
	fmt.Fprintf(&page, `<li><a href="%s/blogs/">Blog</a></li>`, base)
	for _, post := range blogs {
		fmt.Fprintf(&page, `<li><a href="%s/blogs/%s/">%s</a></li>`, base, post.Slug, post.Title)
	}
	page.WriteString("</ul></body></html>")

	return ec.HTML(http.StatusOK, page.String())
}

func (controller *Controller) robots(ec echo.Context) error {
	contents, err := controller.store.SettingValue("robots_txt")
	if err != nil || contents == "" {
		contents = "User-agent: *\nAllow: /"
	}

	return ec.String(http.StatusOK, contents)
}

func (controller *Controller) entries() (string, []*blog.Blog, error) {
	base, err := controller.store.SettingValue("site_url")
	if err != nil || base == "" {
		base = "http://localhost:8080"
	}
	base = strings.TrimRight(base, "/")

	blogs, err := controller.store.PublishedBlogs()
	if err != nil {
		return "", nil, err
	}

	return base, blogs, nil
}
