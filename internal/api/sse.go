package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dasos/peek/pkg/store"
	"github.com/dasos/peek/pkg/stream"
)

func (s *Server) streamAll(w http.ResponseWriter, r *http.Request) {
	sub := s.store.SubscribeAll(r.Context())
	s.serveStream(w, r, sub, "all")
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := s.registry.Get(slug); !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	sub, err := s.store.Subscribe(r.Context(), slug)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	s.serveStream(w, r, sub, slug)
}

// serveStream writes the subscription to the client as server-sent events
// until the client disconnects or the feed closes. Heartbeat comments keep
// idle connections alive through proxies.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, sub *stream.Subscriber[store.Delivery], label string) {
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.metrics.StreamSessions.WithLabelValues(label).Inc()
	defer s.metrics.StreamSessions.WithLabelValues(label).Dec()
	s.log.Debug("stream opened", slog.String("source", label))
	defer s.log.Debug("stream closed", slog.String("source", label))

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case d, open := <-sub.C():
			if !open {
				return
			}
			data, err := json.Marshal(d)
			if err != nil {
				s.log.Error("marshal delivery", slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			s.metrics.StreamSent.WithLabelValues(label).Inc()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
