// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/lock"
	"github.com/valpere/PriceScrapexter/internal/output"
	"github.com/valpere/PriceScrapexter/internal/storage/sqlstore"
	"github.com/valpere/PriceScrapexter/internal/tracker"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type syncLogResponse struct {
	ID                   int64      `json:"id"`
	SourceID             int64      `json:"source_id"`
	Status               string     `json:"status"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	ProductsFound        int        `json:"products_found"`
	ProductsAdded        int        `json:"products_added"`
	ProductsUpdated      int        `json:"products_updated"`
	TokensUsed           int        `json:"tokens_used"`
	SelectorsRegenerated bool       `json:"selectors_regenerated"`
	ErrorMessage         string     `json:"error_message,omitempty"`
}

type syncResponse struct {
	Success bool            `json:"success"`
	Log     syncLogResponse `json:"log"`
}

type statsResponse struct {
	Success bool             `json:"success"`
	Stats   domain.SyncStats `json:"stats"`
}

type historyPoint struct {
	Price      json.Number `json:"price"`
	RecordedAt time.Time   `json:"recorded_at"`
}

type historyResponse struct {
	Success bool           `json:"success"`
	History []historyPoint `json:"history"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
		return
	}
	s.deps.Health.HealthHandler()(w, r)
}

func (s *Server) syncHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	if s.deps.Syncer == nil {
		writeError(w, http.StatusNotImplemented, "sync is not configured")
		return
	}

	entry, err := s.deps.Syncer.SyncSource(r.Context(), id)
	switch {
	case errors.Is(err, tracker.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, "source not found")
		return
	case errors.Is(err, lock.ErrLocked):
		writeError(w, http.StatusConflict, "a sync for this source is already running")
		return
	case err != nil:
		s.logger.WithField("source_id", id).Errorf("sync failed: %v", err)
		writeError(w, http.StatusInternalServerError, utils.GetUserFriendlyMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Success: entry.Status == domain.SyncSuccess,
		Log:     toSyncLogResponse(entry),
	})
}

func toSyncLogResponse(l *domain.SyncLog) syncLogResponse {
	return syncLogResponse{
		ID:                   l.ID,
		SourceID:             l.SourceID,
		Status:               string(l.Status),
		StartedAt:            l.StartedAt,
		CompletedAt:          l.CompletedAt,
		ProductsFound:        l.ProductsFound,
		ProductsAdded:        l.ProductsAdded,
		ProductsUpdated:      l.ProductsUpdated,
		TokensUsed:           l.TokensUsed,
		SelectorsRegenerated: l.SelectorsRegenerated,
		ErrorMessage:         l.ErrorMessage,
	}
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	if s.deps.Stats == nil {
		writeError(w, http.StatusNotImplemented, "stats are not configured")
		return
	}

	stats, err := s.deps.Stats.Stats(r.Context(), id)
	if err != nil {
		s.logger.WithField("source_id", id).Errorf("stats failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load sync statistics")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Success: true, Stats: stats})
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if s.deps.Products == nil || s.deps.History == nil {
		writeError(w, http.StatusNotImplemented, "history is not configured")
		return
	}

	if _, err := s.deps.Products.Get(r.Context(), id); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	entries, err := s.deps.History.ListByProduct(r.Context(), id)
	if err != nil {
		s.logger.WithField("product_id", id).Errorf("history failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}

	points := make([]historyPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, historyPoint{
			Price:      json.Number(e.Price.String()),
			RecordedAt: e.RecordedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, historyResponse{Success: true, History: points})
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	if s.deps.Products == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	format := output.OutputFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = output.FormatCSV
	}
	if !format.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	products, err := s.deps.Products.ListBySource(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load products")
		return
	}

	w.Header().Set("Content-Type", format.GetMimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"source-%d-products.%s\"", id, format))
	writer, err := output.NewStreamWriter(format, w, s.logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := writer.Write(output.Records(products)); err != nil {
		s.logger.WithField("source_id", id).Errorf("export failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		s.logger.WithField("source_id", id).Errorf("export failed: %v", err)
	}
}
