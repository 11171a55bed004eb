package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/model"
)

func TestMMPCache(t *testing.T) {
	c := NewMMPCache()
	assert.False(t, c.Warmed())

	f := model.MMPFile{
		ID:          "f-1",
		UploadedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SiteEntries: []model.SiteEntry{{ID: "s-1", SiteName: "Bahri"}},
	}
	c.Put(f)

	f.SiteEntries[0].SiteName = "mutated"
	got, ok := c.Get("f-1")
	require.True(t, ok)
	assert.Equal(t, "Bahri", got.SiteEntries[0].SiteName)

	got.SiteEntries[0].SiteName = "mutated again"
	again, _ := c.Get("f-1")
	assert.Equal(t, "Bahri", again.SiteEntries[0].SiteName)

	c.ReplaceAll([]model.MMPFile{
		{ID: "old", UploadedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "new", UploadedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	})
	assert.True(t, c.Warmed())
	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].ID)

	_, ok = c.Get("f-1")
	assert.False(t, ok)

	c.Remove("new")
	assert.Equal(t, 1, c.Len())

	c.Invalidate()
	assert.False(t, c.Warmed())
	assert.Equal(t, 0, c.Len())
}
