package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) (*Daemon, *apiServer) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIBind("127.0.0.1:0", token))
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)
	d, err := New(cfg, nil, bus, RuntimeOptions{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Stop(context.Background()) })
	if d.api == nil {
		t.Fatal("expected API server when api.bind is set")
	}
	return d, d.api
}

func serve(srv *apiServer, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	return w
}

func TestAPIServerRequiresToken(t *testing.T) {
	_, srv := newTestAPI(t, "sekrit")

	if w := serve(srv, "/api/status", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(srv, "/api/status", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w := serve(srv, "/api/status", "sekrit")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	var status StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.MaxParallelJobs != 2 || status.PID == 0 {
		t.Fatalf("unexpected status payload: %+v", status)
	}
}

func TestAPIServerJobsAndEvents(t *testing.T) {
	d, srv := newTestAPI(t, "")

	// The config's ffmpeg path never resolves, so the job fails at spawn
	// time and leaves a full event trail.
	input := testsupport.MediaFile(t, testsupport.BaseDir(d.cfg), "clip.mp4", 1024)
	job, err := d.Submit(context.Background(), engine.Submission{InputPath: input})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Engine().WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}

	w := serve(srv, "/api/jobs?status=failed", "")
	if w.Code != http.StatusOK {
		t.Fatalf("jobs: expected 200, got %d", w.Code)
	}
	var jobs struct {
		Jobs []engine.Job `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobs.Jobs) != 1 || jobs.Jobs[0].ID != job.ID {
		t.Fatalf("unexpected jobs payload: %+v", jobs.Jobs)
	}

	if w := serve(srv, "/api/jobs?status=running", ""); !json.Valid(w.Body.Bytes()) {
		t.Fatalf("invalid JSON for empty filter: %s", w.Body.String())
	}
	if w := serve(srv, "/api/jobs/"+job.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("job: expected 200, got %d", w.Code)
	}
	if w := serve(srv, "/api/jobs/unknown", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown job: expected 404, got %d", w.Code)
	}

	w = serve(srv, "/api/events?job="+job.ID, "")
	var resp EventsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	var completions int
	for _, evt := range resp.Events {
		if evt.JobID() != job.ID {
			t.Fatalf("event for another job leaked through filter: %+v", evt)
		}
		if evt.Type == events.TypeCompleted {
			completions++
		}
	}
	if completions != 1 || resp.Next == 0 {
		t.Fatalf("expected one completion and a cursor, got %d completions next=%d", completions, resp.Next)
	}

	w = serve(srv, "/api/history?failed=1", "")
	var hist struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Entries) != 1 {
		t.Fatalf("expected one failed history entry, got %d", len(hist.Entries))
	}
}
