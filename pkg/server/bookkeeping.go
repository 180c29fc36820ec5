package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fsgrosa/lnd-exporter/pkg/cursor"
)

// BookkeepingResponse is the JSON response for the /bookkeeping endpoint:
// a point-in-time view of the payment cursor, useful for debugging what the
// exporter believes it has already counted.
type BookkeepingResponse struct {
	IndexOffset         uint64           `json:"indexOffset"`
	StatusCounts        map[string]int64 `json:"statusCounts"`
	FailureReasonCounts map[string]int64 `json:"failureReasonCounts"`
	GeneratedAt         string           `json:"generatedAt"`
}

// bookkeepingHandler returns an http.HandlerFunc that serves the bookkeeping
// JSON endpoint.
func bookkeepingHandler(cur cursor.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := cur.Snapshot()

		resp := BookkeepingResponse{
			IndexOffset:         snap.IndexOffset,
			StatusCounts:        snap.StatusCounts,
			FailureReasonCounts: snap.FailureReasonCounts,
			GeneratedAt:         time.Now().UTC().Format(time.RFC3339),
		}

		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error("failed to marshal bookkeeping response", "error", err)
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(data)
	}
}
