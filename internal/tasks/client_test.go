package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/config"
	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/database/books"
	"github.com/mrlokans/readstack/internal/entities"
	"github.com/mrlokans/readstack/internal/openlibrary"
)

func TestTasksDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "books-tasks.db"), TasksDBPath(filepath.Join("data", "books.db")))
	assert.Equal(t, "readstack-tasks", TasksDBPath("readstack"))
}

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)

	_, err = os.Stat(filepath.Join(tmpDir, "test-tasks.db"))
	assert.NoError(t, err, "tasks database should be created")

	assert.NoError(t, client.Close())
}

func TestClientStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), cfg, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

func TestStopWithoutStart(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), DefaultConfig(), nil)
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.Stop(context.Background()))
}

// TestTask is a simple task for testing
type TestTask struct {
	Value string `json:"value"`
}

func (t TestTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "test_task",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestTaskEnqueue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), cfg, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	executed := make(chan string, 1)
	client.Register(backlite.NewQueue(func(ctx context.Context, task TestTask) error {
		executed <- task.Value
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	ids, err := client.Enqueue(TestTask{Value: "hello"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	select {
	case val := <-executed:
		assert.Equal(t, "hello", val)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.Tasks{Workers: 4})
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}

func TestStatusName(t *testing.T) {
	assert.Equal(t, "pending", StatusName(backlite.TaskStatusPending))
	assert.Equal(t, "success", StatusName(backlite.TaskStatusSuccess))
	assert.Equal(t, "not_found", StatusName(backlite.TaskStatusNotFound))
}

func TestRefreshTaskConfigs(t *testing.T) {
	book := RefreshBookTask{BookID: "/works/OL1W"}.Config()
	assert.Equal(t, "refresh_book", book.Name)
	assert.Equal(t, 3, book.MaxAttempts)
	assert.Equal(t, 2*time.Minute, book.Timeout)
	assert.NotNil(t, book.Retention)

	all := RefreshAllBooksTask{}.Config()
	assert.Equal(t, "refresh_all_books", all.Name)
	assert.Equal(t, 1, all.MaxAttempts)
}

type fakeCatalog struct {
	detail *openlibrary.WorkDetail
	err    error
}

func (f *fakeCatalog) WorkDetails(ctx context.Context, key string) (*openlibrary.WorkDetail, error) {
	return f.detail, f.err
}

type fakeQueue struct {
	added []backlite.Task
}

func (f *fakeQueue) Enqueue(tasks ...backlite.Task) ([]string, error) {
	f.added = append(f.added, tasks...)
	ids := make([]string, len(tasks))
	return ids, nil
}

func setupBooks(t *testing.T) *books.Repository {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "books.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return books.NewRepository(db)
}

func TestRefreshBookProcessor(t *testing.T) {
	repo := setupBooks(t)
	ctx := context.Background()
	total := 320
	require.NoError(t, repo.Upsert(ctx, &entities.Book{
		ID: "/works/OL1W", Title: "Old", Shelf: entities.ShelfCurrentlyReading,
		CurrentPage: 42, TotalPages: &total, LastUpdated: 1000, IsFavorite: true,
	}))

	catalog := &fakeCatalog{detail: &openlibrary.WorkDetail{Title: "New", Covers: []int{5}}}
	process := RefreshBookProcessor(catalog, repo, zap.NewNop())

	require.NoError(t, process(ctx, RefreshBookTask{BookID: "/works/OL1W"}))

	book, err := repo.Get(ctx, "/works/OL1W")
	require.NoError(t, err)
	assert.Equal(t, "New", book.Title)
	require.NotNil(t, book.CoverURL)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/5-L.jpg", *book.CoverURL)
	assert.Equal(t, entities.ShelfCurrentlyReading, book.Shelf)
	assert.Equal(t, 42, book.CurrentPage)
	assert.Equal(t, int64(1000), book.LastUpdated)
	assert.True(t, book.IsFavorite)

	t.Run("deleted book is not an error", func(t *testing.T) {
		assert.NoError(t, process(ctx, RefreshBookTask{BookID: "/works/gone"}))
	})

	t.Run("catalog failure is retried", func(t *testing.T) {
		failing := RefreshBookProcessor(&fakeCatalog{err: openlibrary.ErrTimeout}, repo, zap.NewNop())
		assert.ErrorIs(t, failing(ctx, RefreshBookTask{BookID: "/works/OL1W"}), openlibrary.ErrTimeout)
	})
}

func TestRefreshAllBooksProcessor(t *testing.T) {
	repo := setupBooks(t)
	ctx := context.Background()
	queue := &fakeQueue{}
	process := RefreshAllBooksProcessor(queue, repo, zap.NewNop())

	require.NoError(t, process(ctx, RefreshAllBooksTask{}))
	assert.Empty(t, queue.added)

	require.NoError(t, repo.Upsert(ctx, &entities.Book{ID: "/works/OL1W", Shelf: entities.ShelfFinished}))
	require.NoError(t, repo.Upsert(ctx, &entities.Book{ID: "/works/OL2W", Shelf: entities.ShelfWantToRead}))

	require.NoError(t, process(ctx, RefreshAllBooksTask{}))
	require.Len(t, queue.added, 2)
	ids := []string{queue.added[0].(RefreshBookTask).BookID, queue.added[1].(RefreshBookTask).BookID}
	assert.ElementsMatch(t, []string{"/works/OL1W", "/works/OL2W"}, ids)
}
