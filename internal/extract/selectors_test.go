package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSelectors_CoverEveryField(t *testing.T) {
	sel := DefaultSelectors()
	assert.Equal(t, "h1", sel.Ready)
	for _, f := range Fields {
		assert.NotEmpty(t, sel.Fields[f], "field %s has no lookups", f)
	}
}

func TestLoadSelectors_EmptyPath(t *testing.T) {
	sel, err := LoadSelectors("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSelectors(), sel)
}

func TestLoadSelectors_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	content := `
ready: "div[role=main] h1"
fields:
  name:
    - selector: "h1.new-layout"
    - selector: "h1"
  website:
    - selector: "a.site"
      attr: href
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sel, err := LoadSelectors(path)
	require.NoError(t, err)

	assert.Equal(t, "div[role=main] h1", sel.Ready)
	assert.Equal(t, []Lookup{{Selector: "h1.new-layout"}, {Selector: "h1"}}, sel.Fields[FieldName])
	assert.Equal(t, []Lookup{{Selector: "a.site", Attr: "href"}}, sel.Fields[FieldWebsite])
	assert.Equal(t, DefaultSelectors().Fields[FieldAddress], sel.Fields[FieldAddress])
}

func TestLoadSelectors_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields:\n  email:\n    - selector: a\n"), 0o644))

	_, err := LoadSelectors(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestLoadSelectors_EmptySelector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields:\n  name:\n    - attr: href\n"), 0o644))

	_, err := LoadSelectors(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty selector")
}

func TestLoadSelectors_MissingFile(t *testing.T) {
	_, err := LoadSelectors(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read selectors")
}
