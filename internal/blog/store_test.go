package blog_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/blog"
	"github.com/hbomb79/Selene/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		summary  string
		title    string
		expected string
	}{
		{summary: "simple title", title: "Hello World", expected: "hello-world"},
		{summary: "punctuation collapses", title: "What's new, in 2024?!", expected: "what-s-new-in-2024"},
		{summary: "leading and trailing junk trimmed", title: "--Hello--", expected: "hello"},
		{summary: "empty title falls back", title: "", expected: "untitled"},
		{summary: "symbols only falls back", title: "!!!", expected: "untitled"},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.expected, blog.Slugify(test.title))
		})
	}
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := helpers.RequireDatabase(t)
	store := blog.NewStore()

	t.Run("create stamps slug and defaults to draft", func(t *testing.T) {
		created, err := store.Create(db, blog.Draft{Title: "My First Post", Content: "Hello"})
		require.NoError(t, err)

		assert.Equal(t, "my-first-post", created.Slug)
		assert.Equal(t, blog.StatusDraft, created.Status)
		assert.Nil(t, created.PublishedAt)
	})

	t.Run("duplicate titles receive suffixed slugs", func(t *testing.T) {
		first, err := store.Create(db, blog.Draft{Title: "Duplicate", Content: "a"})
		require.NoError(t, err)
		second, err := store.Create(db, blog.Draft{Title: "Duplicate", Content: "b"})
		require.NoError(t, err)

		assert.Equal(t, "duplicate", first.Slug)
		assert.Equal(t, "duplicate-1", second.Slug)
	})

	t.Run("publishing stamps published_at exactly once", func(t *testing.T) {
		created, err := store.Create(db, blog.Draft{Title: "Publish Me", Content: "a"})
		require.NoError(t, err)
		require.Nil(t, created.PublishedAt)

		published, err := store.Update(db, created.ID, blog.Draft{Title: "Publish Me", Content: "a", Status: blog.StatusPublished})
		require.NoError(t, err)
		require.NotNil(t, published.PublishedAt)

		// A subsequent update must not move the original publish timestamp
		updated, err := store.Update(db, created.ID, blog.Draft{Title: "Publish Me", Content: "edited", Status: blog.StatusPublished})
		require.NoError(t, err)
		require.NotNil(t, updated.PublishedAt)
		assert.Equal(t, published.PublishedAt.Unix(), updated.PublishedAt.Unix())
	})

	t.Run("slug recomputed when title changes", func(t *testing.T) {
		created, err := store.Create(db, blog.Draft{Title: "Original Title", Content: "a"})
		require.NoError(t, err)

		updated, err := store.Update(db, created.ID, blog.Draft{Title: "Renamed Title", Content: "a"})
		require.NoError(t, err)
		assert.Equal(t, "renamed-title", updated.Slug)
	})

	t.Run("published slug lookup excludes drafts", func(t *testing.T) {
		draft, err := store.Create(db, blog.Draft{Title: "Hidden Draft", Content: "a"})
		require.NoError(t, err)

		_, err = store.GetPublishedWithSlug(db, draft.Slug)
		assert.ErrorIs(t, err, blog.ErrBlogNotFound)

		_, err = store.Update(db, draft.ID, blog.Draft{Title: "Hidden Draft", Content: "a", Status: blog.StatusPublished})
		require.NoError(t, err)

		found, err := store.GetPublishedWithSlug(db, draft.Slug)
		require.NoError(t, err)
		assert.Equal(t, draft.ID, found.ID)
	})

	t.Run("list filters by status", func(t *testing.T) {
		published, err := store.List(db, blog.StatusPublished, 0, 0)
		require.NoError(t, err)
		for _, post := range published {
			assert.Equal(t, blog.StatusPublished, post.Status)
		}

		all, err := store.List(db, "", 0, 0)
		require.NoError(t, err)
		assert.Greater(t, len(all), len(published))
	})

	t.Run("count by status matches listings", func(t *testing.T) {
		counts, err := store.CountByStatus(db)
		require.NoError(t, err)

		published, err := store.List(db, blog.StatusPublished, 0, 0)
		require.NoError(t, err)
		drafts, err := store.List(db, blog.StatusDraft, 0, 0)
		require.NoError(t, err)

		assert.Equal(t, len(published), counts[blog.StatusPublished])
		assert.Equal(t, len(drafts), counts[blog.StatusDraft])
	})

	t.Run("delete removes the blog", func(t *testing.T) {
		created, err := store.Create(db, blog.Draft{Title: "Doomed", Content: "a"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(db, created.ID))
		_, err = store.GetWithID(db, created.ID)
		assert.ErrorIs(t, err, blog.ErrBlogNotFound)

		assert.ErrorIs(t, store.Delete(db, created.ID), blog.ErrBlogNotFound)
	})

	t.Run("delete of unknown blog errors", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(db, uuid.New()), blog.ErrBlogNotFound)
	})
}
