package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/gray-logic-evedoor/internal/history"
	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-evedoor/internal/platform"
)

// printHistory writes the door's stored summary and its most recent
// entries to w, newest first.
func printHistory(ctx context.Context, w io.Writer, cfg *config.Config, limit int) error {
	store, err := history.OpenSQLiteStore(ctx, history.StoreConfig{
		Dir:         cfg.Host.Directory,
		Name:        platform.DeviceName,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close() //nolint:errcheck // read-only use

	summary, err := store.LoadSummary(ctx, platform.DeviceName)
	switch {
	case errors.Is(err, history.ErrNotFound):
		fmt.Fprintf(w, "%s: no history recorded (%s)\n", platform.DeviceName, store.Path())
		return nil
	case err != nil:
		return fmt.Errorf("loading summary: %w", err)
	}

	entries, err := store.RecentEntries(ctx, platform.DeviceName, limit)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}

	fmt.Fprintf(w, "%s: opened %d times, last event %s\n",
		platform.DeviceName, summary.TimesOpened, formatEventTime(summary.LastEvent))
	for _, e := range entries {
		fmt.Fprintf(w, "  %s  %s\n", formatEventTime(e.Time), contactName(e.Contact))
	}
	return nil
}

func formatEventTime(sec int64) string {
	if sec == 0 {
		return "never"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func contactName(contact int) string {
	if contact == history.ContactClosed {
		return "closed"
	}
	return "open"
}
