// Package blog implements the content store behind the public blog pages
// and their admin management routes.
package blog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/database"
)

var ErrBlogNotFound = errors.New("blog does not exist")

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

type (
	Blog struct {
		ID              uuid.UUID  `db:"id" json:"id"`
		Title           string     `db:"title" json:"title"`
		Slug            string     `db:"slug" json:"slug"`
		Content         string     `db:"content" json:"content"`
		Excerpt         string     `db:"excerpt" json:"excerpt"`
		Author          string     `db:"author" json:"author"`
		FeaturedImage   string     `db:"featured_image" json:"featured_image"`
		Status          string     `db:"status" json:"status"`
		MetaTitle       string     `db:"meta_title" json:"meta_title"`
		MetaDescription string     `db:"meta_description" json:"meta_description"`
		CreatedAt       time.Time  `db:"created_at" json:"created_at"`
		UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
		PublishedAt     *time.Time `db:"published_at" json:"published_at"`
	}

	// Draft carries the mutable fields of a blog for create/update calls.
	Draft struct {
		Title           string
		Content         string
		Excerpt         string
		Author          string
		FeaturedImage   string
		Status          string
		MetaTitle       string
		MetaDescription string
	}

	Store struct{}
)

func NewStore() *Store { return &Store{} }

// List returns blogs ordered newest-first, optionally filtered by status.
// A non-positive limit disables pagination.
func (store *Store) List(db database.Queryable, status string, limit int, offset int) ([]*Blog, error) {
	builder := squirrel.Select("*").From("blogs").OrderBy("created_at DESC")
	if status != "" {
		builder = builder.Where("status=?", status)
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit)).Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list blogs query: %w", err)
	}

	var results []*Blog
	if err := db.Select(&results, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return results, nil
}

func (store *Store) GetWithID(db database.Queryable, id uuid.UUID) (*Blog, error) {
	var blog Blog
	if err := db.Get(&blog, `SELECT * FROM blogs WHERE id=$1`, id); err != nil {
		return nil, ErrBlogNotFound
	}

	return &blog, nil
}

// GetPublishedWithSlug is the public lookup path; drafts are never
// reachable by slug.
func (store *Store) GetPublishedWithSlug(db database.Queryable, slug string) (*Blog, error) {
	var blog Blog
	if err := db.Get(&blog, `SELECT * FROM blogs WHERE slug=$1 AND status=$2`, slug, StatusPublished); err != nil {
		return nil, ErrBlogNotFound
	}

	return &blog, nil
}

func (store *Store) Create(db database.Queryable, draft Draft) (*Blog, error) {
	id := uuid.New()
	slug, err := store.uniqueSlug(db, draft.Title, id)
	if err != nil {
		return nil, err
	}

	var publishedAt *time.Time
	if draft.Status == StatusPublished {
		now := time.Now()
		publishedAt = &now
	}

	_, err = db.Exec(`
		INSERT INTO blogs(id, title, slug, content, excerpt, author, featured_image, status, meta_title, meta_description, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, current_timestamp, current_timestamp, $11)
	`, id, draft.Title, slug, draft.Content, draft.Excerpt, draft.Author, draft.FeaturedImage,
		statusOrDraft(draft.Status), draft.MetaTitle, draft.MetaDescription, publishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert new blog: %w", err)
	}

	return store.GetWithID(db, id)
}

// Update replaces the mutable fields of an existing blog. The slug is
// recomputed when the title changes, and published_at is stamped the first
// time the blog moves to published.
func (store *Store) Update(db database.Queryable, id uuid.UUID, draft Draft) (*Blog, error) {
	existing, err := store.GetWithID(db, id)
	if err != nil {
		return nil, err
	}

	slug := existing.Slug
	if draft.Title != existing.Title {
		if slug, err = store.uniqueSlug(db, draft.Title, id); err != nil {
			return nil, err
		}
	}

	publishedAt := existing.PublishedAt
	if statusOrDraft(draft.Status) == StatusPublished && publishedAt == nil {
		now := time.Now()
		publishedAt = &now
	}

	_, err = db.Exec(`
		UPDATE blogs SET title=$1, slug=$2, content=$3, excerpt=$4, author=$5, featured_image=$6,
			status=$7, meta_title=$8, meta_description=$9, published_at=$10, updated_at=current_timestamp
		WHERE id=$11
	`, draft.Title, slug, draft.Content, draft.Excerpt, draft.Author, draft.FeaturedImage,
		statusOrDraft(draft.Status), draft.MetaTitle, draft.MetaDescription, publishedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update blog: %w", err)
	}

	return store.GetWithID(db, id)
}

func (store *Store) Delete(db database.Queryable, id uuid.UUID) error {
	result, err := db.Exec(`DELETE FROM blogs WHERE id=$1`, id)
	if err != nil {
		return err
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrBlogNotFound
	}

	return nil
}

// CountByStatus returns the number of blogs per status, used by the admin
// dashboard.
func (store *Store) CountByStatus(db database.Queryable) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := db.Select(&rows, `SELECT status, COUNT(*) AS count FROM blogs GROUP BY status`); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

var slugStripPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases the title and collapses every non-alphanumeric run
// into a single hyphen.
func Slugify(title string) string {
	slug := slugStripPattern.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "untitled"
	}

	return slug
}

// uniqueSlug derives a slug from the title, suffixing an incrementing
// counter until it no longer collides with a different blog's slug.
func (store *Store) uniqueSlug(db database.Queryable, title string, selfID uuid.UUID) (string, error) {
	base := Slugify(title)
	slug := base
	for suffix := 1; ; suffix++ {
		var count int
		if err := db.Get(&count, `SELECT COUNT(*) FROM blogs WHERE slug=$1 AND id != $2`, slug, selfID); err != nil {
			return "", fmt.Errorf("failed to check slug uniqueness: %w", err)
		}

		if count == 0 {
			return slug, nil
		}

		slug = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func statusOrDraft(status string) string {
	if status == StatusPublished {
		return StatusPublished
	}

	return StatusDraft
}
