package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/sheet-messaging/internal/metrics"
	"github.com/LeventeLantos/sheet-messaging/internal/model"
	"github.com/LeventeLantos/sheet-messaging/internal/repo"
	"github.com/LeventeLantos/sheet-messaging/internal/scheduler"
)

type fakeRuns struct {
	gotLimit  int
	gotOffset int

	items []model.RunReport
	err   error
}

var _ repo.RunRepository = (*fakeRuns)(nil)

func (f *fakeRuns) Save(ctx context.Context, r model.RunReport) error {
	return errors.New("not implemented")
}

func (f *fakeRuns) List(ctx context.Context, limit, offset int) ([]model.RunReport, error) {
	f.gotLimit = limit
	f.gotOffset = offset
	return f.items, f.err
}

func (f *fakeRuns) Last(ctx context.Context) (model.RunReport, bool, error) {
	if f.err != nil || len(f.items) == 0 {
		return model.RunReport{}, false, f.err
	}
	return f.items[0], true, nil
}

func newTestServer(t *testing.T, runs repo.RunRepository) (*scheduler.Scheduler, http.Handler) {
	t.Helper()

	s, err := scheduler.New(time.Hour, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	rec := metrics.New()
	rec.Message("Rental", metrics.OutcomeSent)

	return s, Router(NewHandler(s, runs, rec.Handler()))
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func TestHealth(t *testing.T) {
	s, mux := newTestServer(t, &fakeRuns{})
	defer s.Stop()

	rr := serve(t, mux, http.MethodGet, "/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}
	if v, ok := decodeJSON(t, rr)["ok"].(bool); !ok || !v {
		t.Fatalf("expected {ok:true}, got %s", rr.Body.String())
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	s, mux := newTestServer(t, &fakeRuns{})
	defer s.Stop()

	rr := serve(t, mux, http.MethodGet, "/v1/scheduler/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if running, ok := body["running"].(bool); !ok || running {
		t.Fatalf("expected running=false, got %v", body)
	}
	if body["interval"] != "1h0m0s" {
		t.Fatalf("expected interval in status, got %v", body)
	}

	rr = serve(t, mux, http.MethodPost, "/v1/scheduler/start")
	body = decodeJSON(t, rr)
	if running, ok := body["running"].(bool); !ok || !running {
		t.Fatalf("expected running=true after start, got %v", body)
	}
	if changed, _ := body["changed"].(bool); !changed {
		t.Fatalf("expected changed=true on first start, got %v", body)
	}

	rr = serve(t, mux, http.MethodPost, "/v1/scheduler/start")
	if changed, _ := decodeJSON(t, rr)["changed"].(bool); changed {
		t.Fatalf("expected changed=false on second start")
	}

	rr = serve(t, mux, http.MethodPost, "/v1/scheduler/stop")
	body = decodeJSON(t, rr)
	if running, ok := body["running"].(bool); !ok || running {
		t.Fatalf("expected running=false after stop, got %v", body)
	}
}

func TestSchedulerStart_WrongMethod(t *testing.T) {
	s, mux := newTestServer(t, &fakeRuns{})
	defer s.Stop()

	rr := serve(t, mux, http.MethodGet, "/v1/scheduler/start")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if s.IsRunning() {
		t.Fatalf("scheduler must not start on GET")
	}
}

func TestListRuns_DefaultsAndArgs(t *testing.T) {
	fr := &fakeRuns{
		items: []model.RunReport{{ID: "run-1", Tables: []model.TableReport{{Table: "Rental", Sent: 2}}}},
	}
	s, mux := newTestServer(t, fr)
	defer s.Stop()

	rr := serve(t, mux, http.MethodGet, "/v1/runs")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fr.gotLimit != 20 || fr.gotOffset != 0 {
		t.Fatalf("expected limit=20 offset=0, got limit=%d offset=%d", fr.gotLimit, fr.gotOffset)
	}

	items, ok := decodeJSON(t, rr)["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one item, got %s", rr.Body.String())
	}

	serve(t, mux, http.MethodGet, "/v1/runs?limit=5&offset=2")
	if fr.gotLimit != 5 || fr.gotOffset != 2 {
		t.Fatalf("expected limit=5 offset=2, got limit=%d offset=%d", fr.gotLimit, fr.gotOffset)
	}

	serve(t, mux, http.MethodGet, "/v1/runs?limit=abc&offset=zzz")
	if fr.gotLimit != 20 || fr.gotOffset != 0 {
		t.Fatalf("expected defaults on garbage input, got limit=%d offset=%d", fr.gotLimit, fr.gotOffset)
	}
}

func TestListRuns_LimitOutOfRange(t *testing.T) {
	s, mux := newTestServer(t, &fakeRuns{})
	defer s.Stop()

	for _, target := range []string{"/v1/runs?limit=0", "/v1/runs?limit=101"} {
		if rr := serve(t, mux, http.MethodGet, target); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestListRuns_RepoErrorReturns500(t *testing.T) {
	s, mux := newTestServer(t, &fakeRuns{err: errors.New("ring closed")})
	defer s.Stop()

	rr := serve(t, mux, http.MethodGet, "/v1/runs")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "ring closed") {
		t.Fatalf("expected error body to contain repo error, got %q", rr.Body.String())
	}
}

func TestLatestRun(t *testing.T) {
	empty, mux := newTestServer(t, &fakeRuns{})
	defer empty.Stop()

	if rr := serve(t, mux, http.MethodGet, "/v1/runs/latest"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with no runs, got %d", rr.Code)
	}

	s, mux := newTestServer(t, &fakeRuns{items: []model.RunReport{{ID: "run-9"}}})
	defer s.Stop()

	rr := serve(t, mux, http.MethodGet, "/v1/runs/latest")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if id := decodeJSON(t, rr)["id"]; id != "run-9" {
		t.Fatalf("expected run-9, got %v", id)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, mux := newTestServer(t, &fakeRuns{})
	defer s.Stop()

	rr := serve(t, mux, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "wamarketing_messages_total") {
		t.Fatalf("expected metrics exposition, got %q", rr.Body.String())
	}
}

func TestRouterRoot(t *testing.T) {
	s, mux := newTestServer(t, &fakeRuns{})
	defer s.Stop()

	rr := serve(t, mux, http.MethodGet, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "sheet-messaging" {
		t.Fatalf("expected body %q, got %q", "sheet-messaging", got)
	}
}
