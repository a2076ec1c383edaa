package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dasos/peek/pkg/render"
	"github.com/dasos/peek/pkg/store"
)

type listResponse struct {
	Count      int           `json:"count"`
	Items      []store.Event `json:"items"`
	NextCursor *string       `json:"next_cursor"`
}

type sourceListResponse struct {
	Config      string        `json:"config"`
	DisplayName string        `json:"display_name"`
	Count       int           `json:"count"`
	Items       []store.Event `json:"items"`
	NextCursor  *string       `json:"next_cursor"`
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	src, ok := s.registry.Get(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload, ok := raw.(map[string]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "expected a JSON object")
		return
	}

	ev := store.Event{
		DisplayName: src.DisplayName,
		Data:        payload,
		View:        render.Render(src, payload),
		CoalesceKey: render.CoalesceKey(src, payload),
	}

	stored, updated, err := s.store.Ingest(r.Context(), slug, ev)
	if err != nil {
		s.log.Error("ingest failed", slog.String("source", slug), slog.Any("error", err))
		s.metrics.IngestTotal.WithLabelValues(slug, "error").Inc()
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	outcome := "created"
	status := http.StatusCreated
	if updated {
		outcome = "updated"
		status = http.StatusOK
	}
	s.metrics.IngestTotal.WithLabelValues(slug, outcome).Inc()
	s.log.Info("event ingested",
		slog.String("source", slug),
		slog.String("id", stored.ID),
		slog.Bool("updated", updated),
	)
	writeJSON(w, status, stored)
}

func (s *Server) listAll(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r.URL.Query(), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.ListAll(r.Context(), opts)
	if err != nil {
		s.log.Error("list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Count:      len(res.Items),
		Items:      res.Items,
		NextCursor: nextCursor(res),
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	src, ok := s.registry.Get(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	opts, err := parseListOptions(r.URL.Query(), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.List(r.Context(), slug, opts)
	if err != nil {
		s.log.Error("list failed", slog.String("source", slug), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	writeJSON(w, http.StatusOK, sourceListResponse{
		Config:      slug,
		DisplayName: src.DisplayName,
		Count:       len(res.Items),
		Items:       res.Items,
		NextCursor:  nextCursor(res),
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := s.registry.Get(slug); !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	ev, err := s.store.Get(r.Context(), slug, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.log.Error("get failed", slog.String("source", slug), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := s.registry.Get(slug); !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	id := chi.URLParam(r, "id")
	removed, err := s.store.Delete(r.Context(), slug, id)
	if err != nil {
		s.log.Error("delete failed", slog.String("source", slug), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	s.metrics.DeleteTotal.WithLabelValues(slug).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// parseListOptions maps query parameters onto listing options. Keys other
// than the reserved ones become exact-match payload field filters. The
// config parameter restricts merged listings only; per-source listings
// treat it as a field filter like any other key.
func parseListOptions(q url.Values, merged bool) (store.ListOptions, error) {
	opts := store.ListOptions{
		Cursor: q.Get("cursor"),
		Query:  q.Get("q"),
		Limit:  store.DefaultLimit,
	}

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return store.ListOptions{}, errors.New("invalid limit value")
		}
		opts.Limit = max(1, min(v, store.MaxLimit))
	}

	if merged {
		opts.Sources = q["config"]
	}

	for key, vals := range q {
		switch key {
		case "limit", "cursor", "q":
			continue
		case "config":
			if merged {
				continue
			}
		}
		if len(vals) == 0 {
			continue
		}
		if opts.Fields == nil {
			opts.Fields = make(map[string]string)
		}
		opts.Fields[key] = vals[0]
	}

	return opts, nil
}

func nextCursor(res store.Result) *string {
	if res.NextCursor == "" {
		return nil
	}
	return &res.NextCursor
}
