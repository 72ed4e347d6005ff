package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func samplePlaylist(id string) *models.Playlist {
	p := models.NewPlaylist(id, "Test Playlist")
	p.AddSong(models.TrackRef{MediaID: "abc", Title: "Song A", Uploader: "Artist A", Duration: 180})
	p.AddSong(models.TrackRef{MediaID: "def", Title: "Song B", Uploader: "Artist B", Duration: 200})
	return p
}

func TestPlaylistRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Create(samplePlaylist("pl1")); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		got, err := repo.Get("pl1")
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if got.Name != "Test Playlist" {
			t.Errorf("name = %q, want %q", got.Name, "Test Playlist")
		}
		if len(got.Songs) != 2 {
			t.Fatalf("got %d songs, want 2", len(got.Songs))
		}
		if got.Songs[0].MediaID != "abc" || got.Songs[1].MediaID != "def" {
			t.Errorf("song order = [%s, %s], want [abc, def]", got.Songs[0].MediaID, got.Songs[1].MediaID)
		}
	})

	t.Run("Get missing playlist", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("Get() error = %v, want %v", err, shared.ErrPlaylistNotFound)
		}
	})

	t.Run("List ordered oldest first", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		first := models.NewPlaylist("pl1", "First")
		second := models.NewPlaylist("pl2", "Second")
		second.CreatedAt = first.CreatedAt.Add(time.Minute)

		if err := repo.Create(first); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if err := repo.Create(second); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		playlists, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("got %d playlists, want 2", len(playlists))
		}
		if playlists[0].ID != "pl1" || playlists[1].ID != "pl2" {
			t.Errorf("order = [%s, %s], want [pl1, pl2]", playlists[0].ID, playlists[1].ID)
		}
	})

	t.Run("Delete cascades to songs", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Create(samplePlaylist("pl1")); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if err := repo.Delete("pl1"); err != nil {
			t.Fatalf("failed to delete playlist: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?", "pl1").Scan(&count); err != nil {
			t.Fatalf("failed to count songs: %v", err)
		}
		if count != 0 {
			t.Errorf("playlist_tracks holds %d rows after cascade delete, want 0", count)
		}
	})

	t.Run("Delete missing playlist", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Delete("nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("Delete() error = %v, want %v", err, shared.ErrPlaylistNotFound)
		}
	})

	t.Run("AddSong appends at next position", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Create(samplePlaylist("pl1")); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		added, err := repo.AddSong("pl1", models.TrackRef{MediaID: "ghi", Title: "Song C"})
		if err != nil {
			t.Fatalf("failed to add song: %v", err)
		}
		if !added {
			t.Error("AddSong() = false for a new song, want true")
		}

		got, err := repo.Get("pl1")
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if len(got.Songs) != 3 || got.Songs[2].MediaID != "ghi" {
			t.Errorf("songs after add = %+v, want ghi appended last", got.Songs)
		}
	})

	t.Run("AddSong suppresses duplicates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Create(samplePlaylist("pl1")); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		added, err := repo.AddSong("pl1", models.TrackRef{MediaID: "abc", Title: "Song A"})
		if err != nil {
			t.Fatalf("failed to add song: %v", err)
		}
		if added {
			t.Error("AddSong() = true for an existing media id, want false")
		}

		got, _ := repo.Get("pl1")
		if len(got.Songs) != 2 {
			t.Errorf("songs after duplicate add = %d, want 2", len(got.Songs))
		}
	})

	t.Run("AddSong to missing playlist", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if _, err := repo.AddSong("nope", models.TrackRef{MediaID: "abc"}); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("AddSong() error = %v, want %v", err, shared.ErrPlaylistNotFound)
		}
	})

	t.Run("RemoveSong", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Create(samplePlaylist("pl1")); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if err := repo.RemoveSong("pl1", "abc"); err != nil {
			t.Fatalf("failed to remove song: %v", err)
		}

		got, _ := repo.Get("pl1")
		if len(got.Songs) != 1 || got.Songs[0].MediaID != "def" {
			t.Errorf("songs after remove = %+v, want only def", got.Songs)
		}

		if err := repo.RemoveSong("pl1", "abc"); err == nil {
			t.Error("RemoveSong() succeeded for a song not in the playlist")
		}
	})
}

func TestDownloadRepository(t *testing.T) {
	record := func(mediaID, title string) *models.DownloadRecord {
		return &models.DownloadRecord{
			MediaID:   mediaID,
			Title:     title,
			Uploader:  "Artist",
			Filename:  title + ".m4a",
			CreatedAt: time.Now().UTC(),
		}
	}

	t.Run("Save and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewDownloadRepository(db)
		if err := repo.Save(record("abc", "Song A")); err != nil {
			t.Fatalf("failed to save download: %v", err)
		}

		got, err := repo.Get("abc")
		if err != nil {
			t.Fatalf("failed to get download: %v", err)
		}
		if got.Title != "Song A" || got.Filename != "Song A.m4a" {
			t.Errorf("got %+v, want Song A record", got)
		}
	})

	t.Run("Save upserts by media id", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewDownloadRepository(db)
		if err := repo.Save(record("abc", "Song A")); err != nil {
			t.Fatalf("failed to save download: %v", err)
		}
		if err := repo.Save(record("abc", "Song A Remastered")); err != nil {
			t.Fatalf("failed to re-save download: %v", err)
		}

		records, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list downloads: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("got %d records after upsert, want 1", len(records))
		}
		if records[0].Title != "Song A Remastered" {
			t.Errorf("title = %q, want updated metadata", records[0].Title)
		}
	})

	t.Run("Get missing record", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewDownloadRepository(db)
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrDownloadNotFound) {
			t.Errorf("Get() error = %v, want %v", err, shared.ErrDownloadNotFound)
		}
	})

	t.Run("List newest first", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewDownloadRepository(db)
		older := record("abc", "Song A")
		older.CreatedAt = time.Now().UTC().Add(-time.Hour)
		newer := record("def", "Song B")

		if err := repo.Save(older); err != nil {
			t.Fatalf("failed to save download: %v", err)
		}
		if err := repo.Save(newer); err != nil {
			t.Fatalf("failed to save download: %v", err)
		}

		records, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list downloads: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d records, want 2", len(records))
		}
		if records[0].MediaID != "def" || records[1].MediaID != "abc" {
			t.Errorf("order = [%s, %s], want [def, abc]", records[0].MediaID, records[1].MediaID)
		}
	})
}

func TestHistoryRepository(t *testing.T) {
	t.Run("Record and Recent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		for _, q := range []string{"first", "second", "third"} {
			if err := repo.Record(q); err != nil {
				t.Fatalf("failed to record query: %v", err)
			}
		}

		queries, err := repo.Recent(20)
		if err != nil {
			t.Fatalf("failed to fetch recent queries: %v", err)
		}
		if len(queries) != 3 {
			t.Fatalf("got %d queries, want 3", len(queries))
		}
		if queries[0] != "third" || queries[2] != "first" {
			t.Errorf("order = %v, want newest first", queries)
		}
	})

	t.Run("Record deduplicates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		for i := 0; i < 3; i++ {
			if err := repo.Record("same query"); err != nil {
				t.Fatalf("failed to record query: %v", err)
			}
		}

		queries, err := repo.Recent(20)
		if err != nil {
			t.Fatalf("failed to fetch recent queries: %v", err)
		}
		if len(queries) != 1 {
			t.Errorf("got %d queries, want 1", len(queries))
		}
	})

	t.Run("Record ignores blank queries", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		if err := repo.Record("   "); err != nil {
			t.Fatalf("failed to record query: %v", err)
		}

		queries, err := repo.Recent(20)
		if err != nil {
			t.Fatalf("failed to fetch recent queries: %v", err)
		}
		if len(queries) != 0 {
			t.Errorf("got %v, want no queries", queries)
		}
	})

	t.Run("retention evicts oldest", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		for i := 0; i < historyLimit+5; i++ {
			if err := repo.Record(fmt.Sprintf("query %02d", i)); err != nil {
				t.Fatalf("failed to record query: %v", err)
			}
		}

		queries, err := repo.Recent(historyLimit + 5)
		if err != nil {
			t.Fatalf("failed to fetch recent queries: %v", err)
		}
		if len(queries) != historyLimit {
			t.Fatalf("got %d queries, want %d", len(queries), historyLimit)
		}
		if queries[0] != "query 24" {
			t.Errorf("newest = %q, want query 24", queries[0])
		}
		if queries[len(queries)-1] != "query 05" {
			t.Errorf("oldest = %q, want query 05 after eviction", queries[len(queries)-1])
		}
	})
}
