// internal/server/sse.go
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

type analyzeRequest struct {
	URL    string `json:"url"`
	UserID int64  `json:"user_id"`
}

// analyzeHandler streams analysis progress as server-sent events, one
// "data: {json}" frame per event, ending with the terminal event.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if u, err := url.ParseRequestURI(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if s.deps.Analyzers == nil {
		writeError(w, http.StatusNotImplemented, "analysis is not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	analyzer, err := s.deps.Analyzers(ctx, req.UserID)
	if err != nil {
		writeEvent(w, pipeline.Event{Type: pipeline.EventError, Error: utils.GetUserFriendlyMessage(err)})
		flusher.Flush()
		return
	}

	sink := pipeline.NewChannelSink(ctx, 16)
	go func() {
		defer sink.Close()
		analyzer.Analyze(ctx, req.URL, sink)
	}()

	for ev := range sink.Events() {
		if err := writeEvent(w, ev); err != nil {
			s.logger.Debugf("analyze stream closed: %v", err)
			continue
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, ev pipeline.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
