package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/analytics"
	"github.com/mrlokans/readstack/internal/browse"
	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/database/books"
	"github.com/mrlokans/readstack/internal/database/quotes"
	"github.com/mrlokans/readstack/internal/database/sessions"
	"github.com/mrlokans/readstack/internal/notes"
	"github.com/mrlokans/readstack/internal/openlibrary"
	"github.com/mrlokans/readstack/internal/shelving"
)

type fakeCatalog struct {
	mu       sync.Mutex
	works    map[string]*openlibrary.WorkDetail
	subjects map[string][]openlibrary.Work
	err      error
}

func (f *fakeCatalog) Search(ctx context.Context, query string, limit int) (*openlibrary.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	docs := []openlibrary.SearchDoc{}
	for key, w := range f.works {
		if openlibrary.WorkID(key) == query || w.Title == query {
			docs = append(docs, openlibrary.SearchDoc{Key: key, Title: w.Title, AuthorName: []string{"Author of " + w.Title}})
		}
	}
	return &openlibrary.SearchResponse{NumFound: len(docs), Query: query, Docs: docs}, nil
}

func (f *fakeCatalog) WorkDetails(ctx context.Context, workKey string) (*openlibrary.WorkDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	w, ok := f.works[openlibrary.NormalizeWorkKey(workKey)]
	if !ok {
		return nil, &openlibrary.StatusError{Code: http.StatusNotFound, Status: "Not Found"}
	}
	return w, nil
}

func (f *fakeCatalog) Subject(ctx context.Context, subject string, limit, offset int) (*openlibrary.SubjectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	works := f.subjects[openlibrary.SubjectSlug(subject)]
	return &openlibrary.SubjectResponse{Name: subject, WorkCount: len(works), Works: works}, nil
}

type testServer struct {
	router   *gin.Engine
	db       *database.Database
	catalog  *fakeCatalog
	books    *books.Repository
	sessions *sessions.Repository
	notes    *notes.Service
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		works: map[string]*openlibrary.WorkDetail{
			"/works/OL1W": {Key: "/works/OL1W", Title: "Dune", Covers: []int{42}},
			"/works/OL2W": {Key: "/works/OL2W", Title: "Emma"},
		},
		subjects: map[string][]openlibrary.Work{
			"fantasy": {{Key: "/works/OL3W", Title: "The Hobbit"}},
		},
	}
}

func setupTestServer(t *testing.T, queue TaskQueue) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "http.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	catalog := newCatalog()
	bookRepo := books.NewRepository(db)
	quoteRepo := quotes.NewRepository(db)
	sessionRepo := sessions.NewRepository(db)
	notesSvc := notes.NewService(quoteRepo, zap.NewNop())

	cfg := RouterConfig{
		Database:  db,
		Shelving:  shelving.NewService(catalog, bookRepo, zap.NewNop(), shelving.WithGracePeriod(10*time.Millisecond)),
		Browse:    browse.NewService(catalog, zap.NewNop()),
		Notes:     notesSvc,
		Analytics: analytics.NewService(db, bookRepo, quoteRepo, sessionRepo),
		Version:   "test",
	}
	if queue != nil {
		cfg.TaskQueue = queue
	}

	return &testServer{
		router:   NewRouter(cfg),
		db:       db,
		catalog:  catalog,
		books:    bookRepo,
		sessions: sessionRepo,
		notes:    notesSvc,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func intPtr(v int) *int {
	return &v
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
