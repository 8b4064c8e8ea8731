package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-evedoor/internal/history"
)

const (
	// defaultHistoryLimit is the default number of entries returned.
	defaultHistoryLimit = 50

	// maxHistoryLimit is the maximum number of entries that can be requested.
	maxHistoryLimit = 200
)

// HistoryResponse is the body of GET /api/v1/history.
type HistoryResponse struct {
	DeviceID    string `json:"device_id"`
	TimesOpened int    `json:"times_opened"`
	LastEvent   int64  `json:"last_event,omitempty"`

	// EntryCount is the number of entries held in memory.
	EntryCount int `json:"entry_count"`

	// Entries are read back from the store, newest first.
	Entries []history.Entry `json:"entries"`
}

// handleHistory returns the door's usage history.
//
// Query parameters:
//   - limit: number of stored entries to return (default 50, max 200)
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit))
		return
	}

	agg, ok := s.platform.History()
	if !ok {
		writeUnavailable(w, "history not available")
		return
	}

	entries, err := agg.StoredEntries(r.Context(), limit)
	if err != nil {
		if errors.Is(err, history.ErrClosed) {
			writeUnavailable(w, "history closed")
			return
		}
		s.logger.Error("failed to read stored history",
			"device_id", agg.DeviceID(),
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
		writeInternalError(w, "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	snap := agg.Snapshot()
	writeJSON(w, http.StatusOK, HistoryResponse{
		DeviceID:    agg.DeviceID(),
		TimesOpened: snap.TimesOpened,
		LastEvent:   snap.LastEvent,
		EntryCount:  len(snap.Entries),
		Entries:     entries,
	})
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}
	return limit, nil
}
