package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/readstack/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.Catalog{BaseURL: server.URL, Timeout: 2 * time.Second})
}

func TestNormalizeWorkKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"OL123W", "/works/OL123W"},
		{"works/OL123W", "/works/OL123W"},
		{"/works/OL123W", "/works/OL123W"},
		{"  /works/OL123W  ", "/works/OL123W"},
		{"", ""},
		{"/works/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeWorkKey(tt.input))
		})
	}
}

func TestSubjectSlug(t *testing.T) {
	assert.Equal(t, "science_fiction", SubjectSlug("Science Fiction"))
	assert.Equal(t, "self_help", SubjectSlug("  self  help "))
	assert.Equal(t, "fantasy", SubjectSlug("fantasy"))
}

func TestCoverURL(t *testing.T) {
	assert.Equal(t, "https://covers.openlibrary.org/b/id/42-L.jpg", CoverURL(42, CoverLarge))
	assert.Equal(t, "https://covers.openlibrary.org/b/id/42-M.jpg", CoverURL(42, ""))
	assert.Empty(t, CoverURL(-1, CoverSmall))

	assert.Empty(t, SearchDoc{}.CoverURL(CoverSmall))
}

func TestDescription_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind DescriptionKind
		text string
	}{
		{"absent", `{"title":"x"}`, DescriptionAbsent, ""},
		{"null", `{"description":null}`, DescriptionAbsent, ""},
		{"plain", `{"description":"A story."}`, DescriptionPlain, "A story."},
		{"typed", `{"description":{"type":"/type/text","value":"Typed story."}}`, DescriptionTyped, "Typed story."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var detail WorkDetail
			require.NoError(t, json.Unmarshal([]byte(tt.body), &detail))
			assert.Equal(t, tt.kind, detail.Description.Kind)
			assert.Equal(t, tt.text, detail.Description.Text())
		})
	}

	t.Run("unexpected shape", func(t *testing.T) {
		var detail WorkDetail
		assert.Error(t, json.Unmarshal([]byte(`{"description":42}`), &detail))
	})

	t.Run("marshals normalized text", func(t *testing.T) {
		out, err := json.Marshal(WorkDetail{Description: Description{Kind: DescriptionTyped, Type: "/type/text", Value: "v"}})
		require.NoError(t, err)
		assert.Contains(t, string(out), `"description":"v"`)
	})
}

func TestClient_Search(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "dune", r.URL.Query().Get("q"))
		assert.Equal(t, "30", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"numFound": 1, "start": 0, "q": "dune",
			"docs": [{
				"key": "/works/OL893415W", "title": "Dune",
				"author_name": ["Frank Herbert"], "author_key": ["OL79034A"],
				"cover_i": 11481354, "edition_count": 120, "first_publish_year": 1965,
				"language": ["eng"], "has_fulltext": true, "public_scan_b": false,
				"ebook_access": "borrowable"
			}]
		}`))
	})

	resp, err := client.Search(context.Background(), "dune", 30)
	require.NoError(t, err)
	require.Len(t, resp.Docs, 1)

	doc := resp.Docs[0]
	assert.Equal(t, "/works/OL893415W", doc.Key)
	assert.Equal(t, []string{"Frank Herbert"}, doc.AuthorName)
	assert.Equal(t, 1965, doc.FirstPublishYear)
	assert.True(t, doc.HasFulltext)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/11481354-M.jpg", doc.CoverURL(CoverMedium))
}

func TestClient_WorkDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works/OL123W.json", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"key": "/works/OL123W", "title": "The Book",
			"description": {"type": "/type/text", "value": "About the book."},
			"covers": [-1, 555],
			"subjects": ["Fiction"], "subject_places": ["Paris"],
			"excerpts": [{"excerpt": "It began.", "comment": "first line"}],
			"authors": [{"author": {"key": "/authors/OL1A"}, "type": {"key": "/type/author_role"}}]
		}`))
	})

	for _, key := range []string{"OL123W", "works/OL123W", "/works/OL123W"} {
		detail, err := client.WorkDetails(context.Background(), key)
		require.NoError(t, err, key)
		assert.Equal(t, "The Book", detail.Title)
		assert.Equal(t, "About the book.", detail.Description.Text())
		assert.Equal(t, 555, detail.CoverID())
		assert.Equal(t, []string{"/authors/OL1A"}, detail.AuthorKeys())
		assert.Equal(t, "It began.", detail.Excerpts[0].Excerpt)
	}
}

func TestClient_Subject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subjects/science_fiction.json", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "20", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{
			"key": "/subjects/science_fiction", "name": "Science fiction", "work_count": 2,
			"works": [{"key": "/works/OL1W", "title": "One", "cover_id": 7, "authors": [{"name": "A", "key": "/authors/OL1A"}]}]
		}`))
	})

	resp, err := client.Subject(context.Background(), "Science Fiction", 10, 20)
	require.NoError(t, err)
	require.Len(t, resp.Works, 1)
	assert.Equal(t, []string{"A"}, resp.Works[0].AuthorNames())
	assert.Equal(t, 7, *resp.Works[0].CoverID)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, err := client.WorkDetails(context.Background(), "OL1W")

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
		assert.Equal(t, "HTTP 503: Service Unavailable", UserMessage(err))
	})

	t.Run("decode", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[1, 2, 3]`))
		})
		_, err := client.Search(context.Background(), "x", 1)

		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, "Unexpected response from catalog", UserMessage(err))
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer server.Close()

		client := NewClient(config.Catalog{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
		_, err := client.Search(context.Background(), "slow", 1)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.Equal(t, "Request timed out", UserMessage(err))
	})

	t.Run("no connection", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		client := NewClient(config.Catalog{BaseURL: addr, Timeout: time.Second})
		_, err := client.Search(context.Background(), "offline", 1)
		assert.ErrorIs(t, err, ErrNoConnection)
		assert.Equal(t, "No internet connection", UserMessage(err))
	})

	t.Run("unclassified", func(t *testing.T) {
		msg, known := Describe(errors.New("boom"))
		assert.False(t, known)
		assert.Equal(t, "boom", msg)
		assert.Equal(t, "Failed: boom", UserMessage(errors.New("boom")))
	})
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"docs": []}`))
	})
	client.limiter.SetLimit(0.001)
	client.limiter.SetBurst(1)

	_, err := client.Search(context.Background(), "first", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Search(ctx, "second", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
