package page

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseStatus_KnownValues(t *testing.T) {
	tests := []struct {
		raw    string
		want   Status
		wantOK bool
	}{
		{"publish", StatusPublish, true},
		{"Published", StatusPublish, true},
		{"DRAFT", StatusDraft, true},
		{"scratch", StatusScratch, true},
		{"", StatusScratch, true},
		{"wip", StatusScratch, false},
	}
	for _, test := range tests {
		got, ok := ParseStatus(test.raw)
		assert.Equal(t, test.want, got, "raw %q", test.raw)
		assert.Equal(t, test.wantOK, ok, "raw %q", test.raw)
	}
}

func TestStatus_Renderable(t *testing.T) {
	assert.True(t, StatusPublish.Renderable())
	assert.True(t, StatusDraft.Renderable())
	assert.False(t, StatusScratch.Renderable())
}

func TestAssignSlug_Precedence(t *testing.T) {
	t.Run("frontmatter slug wins", func(t *testing.T) {
		c := NewContext("/src/notes/My Note.md", "My Note.md", nil)
		c.Title = "A Title"
		c.Frontmatter = &FrontmatterData{Slug: "Custom Slug"}
		c.AssignSlug()
		assert.Equal(t, "custom-slug", c.Slug)
	})

	t.Run("title beats filename", func(t *testing.T) {
		c := NewContext("/src/notes/file-name.md", "file-name.md", nil)
		c.Title = "Real Title"
		c.AssignSlug()
		assert.Equal(t, "real-title", c.Slug)
	})

	t.Run("filename fallback", func(t *testing.T) {
		c := NewContext("/src/notes/Some File.md", "sub/Some File.md", nil)
		c.AssignSlug()
		assert.Equal(t, "some-file", c.Slug)
	})

	t.Run("computed once", func(t *testing.T) {
		c := NewContext("/src/a.md", "a.md", nil)
		c.AssignSlug()
		c.Title = "Later Title"
		c.AssignSlug()
		assert.Equal(t, "a", c.Slug)
	})
}

func TestPathKey_StripsExtensionAndNormalizes(t *testing.T) {
	c := NewContext("/src/dir/sub/note.md", "dir/sub/note.md", nil)
	assert.Equal(t, "dir/sub/note", c.PathKey())
	assert.Equal(t, "note", c.Stem())
}

func TestFeaturedPhoto_UnmarshalYAML_TaggedVariants(t *testing.T) {
	var fm FrontmatterData
	src := `
featured_photos:
  - photos/cover.jpg
  - path: photos/detail.png
    alt: A detail shot
    caption: Close up
`
	require.NoError(t, yaml.Unmarshal([]byte(src), &fm))
	require.Len(t, fm.FeaturedPhotos, 2)

	assert.Equal(t, PhotoPath, fm.FeaturedPhotos[0].Kind)
	assert.Equal(t, "photos/cover.jpg", fm.FeaturedPhotos[0].Path)

	assert.Equal(t, PhotoPayload, fm.FeaturedPhotos[1].Kind)
	assert.Equal(t, "photos/detail.png", fm.FeaturedPhotos[1].Path)
	assert.Equal(t, "A detail shot", fm.FeaturedPhotos[1].Alt)
	assert.Equal(t, "Close up", fm.FeaturedPhotos[1].Caption)
}

func TestFeaturedPhoto_MappingWithoutPath_Errors(t *testing.T) {
	var fm FrontmatterData
	err := yaml.Unmarshal([]byte("featured_photos:\n  - alt: no path\n"), &fm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing path")
}

func TestTagList_ListAndCommaString(t *testing.T) {
	var a, b FrontmatterData
	require.NoError(t, yaml.Unmarshal([]byte("tags:\n  - go\n  - notes\n"), &a))
	require.NoError(t, yaml.Unmarshal([]byte("tags: go, notes ,  web\n"), &b))

	assert.Equal(t, TagList{"go", "notes"}, a.Tags)
	assert.Equal(t, TagList{"go", "notes", "web"}, b.Tags)
}

func TestParseDate_AcceptedLayouts(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-03-09", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"2024-03-09 14:30:00", time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)},
		{"2024/03/09", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"March 9, 2024", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"Mar 9, 2024", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
	}
	for _, test := range tests {
		d, ok := ParseDate(test.raw)
		require.True(t, ok, "raw %q", test.raw)
		assert.True(t, d.Parsed.Equal(test.want), "raw %q parsed %v", test.raw, d.Parsed)
		assert.Equal(t, "March 9, 2024", d.Formatted)
		assert.NotEmpty(t, d.ISO)
	}
}

func TestParseDate_Unparseable(t *testing.T) {
	d, ok := ParseDate("sometime last week")
	assert.False(t, ok)
	assert.Equal(t, "sometime last week", d.Raw)
}

func TestAccessor_SortsNewestFirstThenTitle(t *testing.T) {
	mk := func(title, date string, status Status) *Context {
		c := NewContext("/src/"+title+".md", title+".md", nil)
		c.Title = title
		c.Status = status
		if date != "" {
			d, ok := ParseDate(date)
			require.True(t, ok)
			c.DateInfo = &d
		}
		return c
	}

	pages := []*Context{
		mk("Older", "2023-01-01", StatusPublish),
		mk("B Same Day", "2024-06-01", StatusPublish),
		mk("A Same Day", "2024-06-01", StatusPublish),
		mk("Undated", "", StatusPublish),
		mk("Hidden", "2025-01-01", StatusScratch),
		mk("Draft", "2025-01-01", StatusDraft),
	}

	acc := NewAccessor(pages)
	pub := acc.Published()
	require.Len(t, pub, 4)
	assert.Equal(t, "A Same Day", pub[0].Title)
	assert.Equal(t, "B Same Day", pub[1].Title)
	assert.Equal(t, "Older", pub[2].Title)
	assert.Equal(t, "Undated", pub[3].Title)

	assert.Len(t, acc.Recent(2), 2)
	assert.Len(t, acc.Drafts(), 1)
}

func TestAccessor_WithTagAndTags(t *testing.T) {
	a := NewContext("/src/a.md", "a.md", nil)
	a.Status = StatusPublish
	a.Tags = []string{"go", "web"}
	b := NewContext("/src/b.md", "b.md", nil)
	b.Status = StatusPublish
	b.Tags = []string{"go"}
	c := NewContext("/src/c.md", "c.md", nil)
	c.Status = StatusDraft
	c.Tags = []string{"go"}

	acc := NewAccessor([]*Context{a, b, c})
	assert.Len(t, acc.WithTag("go"), 2)
	assert.Empty(t, acc.WithTag("GO"))
	assert.Equal(t, []string{"go", "web"}, acc.Tags())
}

func TestEncodedImage_LargestURL(t *testing.T) {
	img := EncodedImage{Derivatives: []Derivative{
		{Width: 400, URL: "/images/p_k_400.jpeg"},
		{Width: 1200, URL: "/images/p_k_1200.jpeg"},
	}}
	assert.Equal(t, "/images/p_k_1200.jpeg", img.LargestURL())
	assert.Empty(t, EncodedImage{}.LargestURL())
}
