package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nnaudify/audify/internal/repositories"
	"github.com/nnaudify/audify/internal/resolver"
	"github.com/nnaudify/audify/internal/shared"
	"github.com/nnaudify/audify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Search queries the catalog and prints the results.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	r.loadConfig(cmd)
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	r.logger.Infof("searching catalog for %q", query)

	results, err := r.provider.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if useJSON {
		return r.writeJSON(results, pretty)
	}

	if len(results) == 0 {
		r.writePlain("No results for %q\n", query)
		return nil
	}

	for i, result := range results {
		r.writePlain("%d. %s - %s (%s)\n", i+1, result.Title, result.Uploader, result.MediaID)
	}

	return nil
}

// Download fetches a track to local storage, logging progress along the way.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	mediaID := cmd.StringArg("media-id")
	if mediaID == "" {
		return fmt.Errorf("%w: media-id", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	downloads := repositories.NewDownloadRepository(db)
	trackResolver := resolver.New(r.provider, r.logger)
	engine := tasks.NewDownloadEngine(trackResolver, downloads, r.httpClient, config.DownloadsDir(), r.logger)

	lastReported := -1
	record, err := engine.Download(ctx, mediaID, func(fraction float64) {
		percent := int(fraction * 100)
		if percent/10 > lastReported/10 {
			lastReported = percent
			r.logger.Info("downloading", "media_id", mediaID, "percent", percent)
		}
	})
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	r.writePlain("✓ Downloaded %s\n", record.Title)
	r.writePlain("  File: %s\n", record.Filename)
	return nil
}

// Import runs a playlist import end to end and prints the summary.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd)
	customName := cmd.String("name")

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	playlists := repositories.NewPlaylistRepository(db)
	engine := tasks.NewImportEngine(r.provider, r.exporter, playlists, config.Import.RateLimit, r.logger)

	started := time.Now()
	result, err := engine.Import(ctx, url, customName, func(fraction float64) {
		r.logger.Debug("import progress", "fraction", fraction)
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	r.writePlain("✓ Imported playlist %q in %v\n", result.Name, time.Since(started).Round(time.Second))
	r.writePlain("  Matched: %d of %d tracks\n", result.MatchedCount, result.TotalCount)
	r.writePlain("  Playlist ID: %s\n", result.PlaylistID)
	return nil
}
