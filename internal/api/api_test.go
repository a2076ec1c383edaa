package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasos/peek/internal/api"
	"github.com/dasos/peek/internal/metrics"
	"github.com/dasos/peek/pkg/schema"
	"github.com/dasos/peek/pkg/store"
)

const alertsConfig = `display_name: Alerts
fields:
  badge: "{{ data.severity }}"
  title: "{{ data.msg }}"
  link: "https://example.test/{{ data.id }}"
  description: "{{ data.details }}"
highlight_rules:
  - when: 'data.severity == "high"'
    class: critical
`

const jobsConfig = `display_name: Jobs
fields:
  badge: "job"
  title: "{{ data.name }}"
  link: ""
  description: "{{ data.status }}"
  coalesce: "{{ data.job_id }}"
`

func newTestServer(t *testing.T) (*api.Server, *store.Store) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alerts.yml"), []byte(alertsConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.yml"), []byte(jobsConfig), 0o644))

	reg, err := schema.Load([]string{dir})
	require.NoError(t, err)

	st := store.New(store.NewMemoryStorage(), reg.Slugs())
	t.Cleanup(func() { _ = st.Close() })

	return api.New(st, reg, metrics.New(), api.WithHeartbeat(50*time.Millisecond)), st
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEvent(t *testing.T, rec *httptest.ResponseRecorder) store.Event {
	t.Helper()
	var ev store.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	return ev
}

func TestIngest(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	router := srv.Router()

	t.Run("creates event with rendered view", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "POST", "/api/alerts", map[string]any{
			"severity": "high", "msg": "disk full", "id": 7, "details": "sda1 at 98%",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		ev := decodeEvent(t, rec)
		assert.NotEmpty(t, ev.ID)
		assert.NotEmpty(t, ev.TS)
		assert.Equal(t, "alerts", ev.Source)
		assert.Equal(t, "Alerts", ev.DisplayName)
		assert.Equal(t, "high", ev.View.Badge)
		assert.Equal(t, "disk full", ev.View.Title)
		assert.Equal(t, "https://example.test/7", ev.View.Link)
		assert.Equal(t, []string{"critical"}, ev.View.Highlights)
	})

	t.Run("unknown source", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "POST", "/api/nope", map[string]any{"a": 1})
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"unknown source"}`, rec.Body.String())
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("POST", "/api/alerts", strings.NewReader("{nope"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"invalid JSON body"}`, rec.Body.String())
	})

	t.Run("non-object body", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "POST", "/api/alerts", []int{1, 2, 3})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"expected a JSON object"}`, rec.Body.String())
	})
}

func TestIngestCoalescing(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	router := srv.Router()

	first := doJSON(t, router, "POST", "/api/jobs", map[string]any{
		"job_id": "build-1", "name": "build", "status": "running",
	})
	require.Equal(t, http.StatusCreated, first.Code)
	created := decodeEvent(t, first)

	second := doJSON(t, router, "POST", "/api/jobs", map[string]any{
		"job_id": "build-1", "name": "build", "status": "done",
	})
	require.Equal(t, http.StatusOK, second.Code, "coalescing update should answer 200")
	updated := decodeEvent(t, second)

	assert.Equal(t, created.ID, updated.ID, "coalesced update keeps the original id")
	assert.Equal(t, "done", updated.View.Description)

	list := doJSON(t, router, "GET", "/api/jobs", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var res struct {
		Count int           `json:"count"`
		Items []store.Event `json:"items"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
}

func TestListAll(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	router := srv.Router()

	for i := 0; i < 5; i++ {
		rec := doJSON(t, router, "POST", "/api/alerts", map[string]any{
			"severity": "low", "msg": fmt.Sprintf("alert %d", i), "id": i, "details": "d",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := doJSON(t, router, "POST", "/api/jobs", map[string]any{
		"job_id": "j1", "name": "deploy", "status": "running",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("merged listing", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "GET", "/api/items", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res struct {
			Count      int           `json:"count"`
			Items      []store.Event `json:"items"`
			NextCursor *string       `json:"next_cursor"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, 6, res.Count)
		assert.Nil(t, res.NextCursor)
	})

	t.Run("config filter", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "GET", "/api/items?config=jobs", nil)
		var res struct {
			Items []store.Event `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Items, 1)
		assert.Equal(t, "jobs", res.Items[0].Source)
	})

	t.Run("pagination walks without gaps", func(t *testing.T) {
		t.Parallel()
		seen := map[string]bool{}
		cursor := ""
		for {
			target := "/api/items?limit=2"
			if cursor != "" {
				target += "&cursor=" + cursor
			}
			rec := doJSON(t, router, "GET", target, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var res struct {
				Items      []store.Event `json:"items"`
				NextCursor *string       `json:"next_cursor"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			for _, ev := range res.Items {
				assert.False(t, seen[ev.ID], "event %s repeated across pages", ev.ID)
				seen[ev.ID] = true
			}
			if res.NextCursor == nil {
				break
			}
			cursor = *res.NextCursor
		}
		assert.Len(t, seen, 6)
	})

	t.Run("text query", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "GET", "/api/items?q=alert+3", nil)
		var res struct {
			Items []store.Event `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Items, 1)
		assert.Equal(t, "alert 3", res.Items[0].View.Title)
	})

	t.Run("payload field filter", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "GET", "/api/items?id=2", nil)
		var res struct {
			Items []store.Event `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Items, 1)
		assert.Equal(t, "alert 2", res.Items[0].View.Title)
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "GET", "/api/items?limit=abc", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"invalid limit value"}`, rec.Body.String())
	})

	t.Run("limit below one is clamped up", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "GET", "/api/items?limit=0", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, 1, res.Count)
	})
}

func TestListSource(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, "POST", "/api/alerts", map[string]any{
		"severity": "high", "msg": "m", "id": 1, "details": "d",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("adds source metadata", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "GET", "/api/alerts", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res struct {
			Config      string        `json:"config"`
			DisplayName string        `json:"display_name"`
			Count       int           `json:"count"`
			Items       []store.Event `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "alerts", res.Config)
		assert.Equal(t, "Alerts", res.DisplayName)
		assert.Equal(t, 1, res.Count)
	})

	t.Run("unknown source", func(t *testing.T) {
		t.Parallel()
		rec := doJSON(t, router, "GET", "/api/nope", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"unknown source"}`, rec.Body.String())
	})
}

func TestGetAndDelete(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, "POST", "/api/alerts", map[string]any{
		"severity": "low", "msg": "m", "id": 1, "details": "d",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeEvent(t, rec)

	t.Run("round trip", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/alerts/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeEvent(t, rec)
		assert.Equal(t, created, got)
	})

	t.Run("get miss", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/alerts/no-such-id", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"item not found"}`, rec.Body.String())
	})

	t.Run("delete then miss", func(t *testing.T) {
		rec := doJSON(t, router, "DELETE", "/api/alerts/"+created.ID, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())

		rec = doJSON(t, router, "DELETE", "/api/alerts/"+created.ID, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		rec = doJSON(t, router, "GET", "/api/alerts/"+created.ID, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), "GET", "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, "POST", "/api/alerts", map[string]any{
		"severity": "low", "msg": "m", "id": 1, "details": "d",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `peek_ingest_total{outcome="created",source="alerts"} 1`)
}

func TestStream(t *testing.T) {
	t.Parallel()
	srv, st := newTestServer(t)
	router := srv.Router()

	t.Run("per-source delivery", func(t *testing.T) {
		ts := httptest.NewServer(router)
		defer ts.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/alerts/stream", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		// Let the subscription attach before publishing.
		require.Eventually(t, func() bool { return st.Subscribers("alerts") == 1 },
			2*time.Second, 10*time.Millisecond)

		rec := doJSON(t, router, "POST", "/api/alerts", map[string]any{
			"severity": "high", "msg": "live", "id": 9, "details": "d",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		created := decodeEvent(t, rec)

		ev := readSSEEvent(t, resp)
		assert.Equal(t, created.ID, ev.ID)
		assert.Equal(t, "live", ev.View.Title)
	})

	t.Run("unknown source", func(t *testing.T) {
		rec := doJSON(t, router, "GET", "/api/nope/stream", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("merged stream sees every source", func(t *testing.T) {
		ts := httptest.NewServer(router)
		defer ts.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/stream", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.Eventually(t, func() bool {
			return st.Subscribers("alerts") >= 1 && st.Subscribers("jobs") >= 1
		}, 2*time.Second, 10*time.Millisecond)

		rec := doJSON(t, router, "POST", "/api/jobs", map[string]any{
			"job_id": "merge-1", "name": "merged", "status": "running",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		ev := readSSEEvent(t, resp)
		assert.Equal(t, "jobs", ev.Source)
		assert.Equal(t, "merged", ev.View.Title)
	})
}

// readSSEEvent scans the response body until one `event: message` frame
// arrives, skipping heartbeat comments, and decodes its data line.
func readSSEEvent(t *testing.T, resp *http.Response) store.Event {
	t.Helper()
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev store.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		return ev
	}
	require.NoError(t, scanner.Err())
	require.Fail(t, "stream closed before an event arrived")
	return store.Event{}
}
