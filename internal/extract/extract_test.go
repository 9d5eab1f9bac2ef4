package extract

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homescan/listing-crawler/internal/listing"
)

func pageWithEmbedded(t *testing.T, doc map[string]any) listing.PageDocument {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	html := fmt.Sprintf(
		`<html><body><div>results</div><script id="__NEXT_DATA__" type="application/json">%s</script></body></html>`,
		raw,
	)
	return listing.PageDocument{URL: "https://example.test/buy", HTML: []byte(html)}
}

func fakeRecords(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"id": fmt.Sprintf("rec-%d", i)}
	}
	return out
}

func TestExtractSameCountRegardlessOfPath(t *testing.T) {
	t.Parallel()

	shapes := map[string]map[string]any{
		"pageProps.searchResult": {
			"props": map[string]any{"pageProps": map[string]any{
				"searchResult": map[string]any{
					"meta":     map[string]any{"total_count": float64(8957)},
					"listings": fakeRecords(4),
				},
			}},
		},
		"pageProps.searchResults": {
			"props": map[string]any{"pageProps": map[string]any{
				"searchResults": map[string]any{
					"totalCount": "8,957",
					"results":    fakeRecords(4),
				},
			}},
		},
		"pageProps.search": {
			"props": map[string]any{"pageProps": map[string]any{
				"search": map[string]any{
					"total": float64(8957),
					"data":  fakeRecords(4),
				},
			}},
		},
	}

	ex := New(zap.NewNop())
	for wantPath, doc := range shapes {
		res := ex.Extract(pageWithEmbedded(t, doc))
		assert.Len(t, res.Records, 4, "path %s", wantPath)
		assert.Equal(t, wantPath, res.Path)
		require.NotNil(t, res.Total, "path %s", wantPath)
		assert.Equal(t, 8957, *res.Total, "path %s", wantPath)
	}
}

func TestExtractBareListingsDefaultsTotalToLength(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"props": map[string]any{"pageProps": map[string]any{
			"listings": fakeRecords(3),
		}},
	}
	res := New(nil).Extract(pageWithEmbedded(t, doc))
	assert.Len(t, res.Records, 3)
	require.NotNil(t, res.Total)
	assert.Equal(t, 3, *res.Total)
}

func TestExtractRootLevelSearchResult(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"searchResult": map[string]any{
			"meta":    map[string]any{"count": "1,204"},
			"results": fakeRecords(2),
		},
	}
	res := New(nil).Extract(pageWithEmbedded(t, doc))
	assert.Len(t, res.Records, 2)
	require.NotNil(t, res.Total)
	assert.Equal(t, 1204, *res.Total)
}

func TestExtractMalformedInputNeverFails(t *testing.T) {
	t.Parallel()

	ex := New(zap.NewNop())
	pages := []listing.PageDocument{
		{HTML: []byte("")},
		{HTML: []byte("<html><body>no script here</body></html>")},
		{HTML: []byte(`<script id="__NEXT_DATA__">{not json</script>`)},
		pageWithEmbedded(t, map[string]any{"props": map[string]any{}}),
	}
	for i, page := range pages {
		res := ex.Extract(page)
		if len(res.Records) != 0 {
			t.Fatalf("case %d: expected no records, got %d", i, len(res.Records))
		}
	}
}

func TestTotalFallbackFromRenderedText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		html string
		want int
	}{
		{`<span aria-label="Search results count">8,957 properties</span>`, 8957},
		{`<h1>Properties for sale in the city</h1><p>12,345 properties found</p>`, 12345},
		{`<title>420 Properties for sale</title>`, 420},
	}
	for _, tc := range cases {
		res := New(nil).Extract(listing.PageDocument{HTML: []byte(tc.html)})
		require.NotNil(t, res.Total, "html %q", tc.html)
		assert.Equal(t, tc.want, *res.Total)
		assert.Empty(t, res.Records)
	}
}

func TestTotalParseFailureYieldsNil(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"props": map[string]any{"pageProps": map[string]any{
			"searchResult": map[string]any{
				"meta":     map[string]any{"total_count": "around nine thousand"},
				"listings": fakeRecords(1),
			},
		}},
	}
	res := New(nil).Extract(pageWithEmbedded(t, doc))
	assert.Len(t, res.Records, 1)
	assert.Nil(t, res.Total)
}
