package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML_Pages(t *testing.T) {
	layout := DefaultPageLayout("", "")
	tiles := renderedTiles(t, 5)
	tiles[4].PNG = nil

	html, err := RenderHTML(layout, Compose(tiles, layout))
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(html, `<div class="page">`))
	assert.Equal(t, 4, strings.Count(html, `src="data:image/png;base64,`))
	assert.Contains(t, html, "Page 1")
	assert.Contains(t, html, "Page 2")
	assert.Contains(t, html, "BLOUDAN BANGLES")
	assert.Contains(t, html, `<div class="caption">`+tiles[4].Caption+`</div>`)
	assert.NotContains(t, html, "ZgotmplZ")
	assert.Contains(t, html, "left:12.00mm;top:38.00mm;width:88.00mm;height:104.00mm")
}

func TestRenderHTML_EmptyPage(t *testing.T) {
	layout := DefaultPageLayout("Brand", "Sub")
	html, err := RenderHTML(layout, Compose(nil, layout))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(html, `<div class="page">`))
	assert.Contains(t, html, "Page 1")
	assert.NotContains(t, html, `class="cell"`)
}

func TestDetectChromePath_MissingConfigured(t *testing.T) {
	got := detectChromePath("/nonexistent/chrome")
	assert.NotEqual(t, "/nonexistent/chrome", got)
}
