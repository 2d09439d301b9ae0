package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/service"
	"github.com/muaviaUsmani/studyplan/internal/timeline"
)

// Monday 2026-03-02 08:00 UTC
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

const generateBody = `{
	"user_id": "student-1",
	"tasks": [
		{"id": "essay", "title": "Essay", "due_date": "2026-03-06", "effort_hours": 3, "weight": 25},
		{"title": "Reading", "due_date": "2026-03-04", "effort_hours": 1}
	],
	"busy_intervals": [
		{"title": "Lecture", "start": "2026-03-02T09:00:00Z", "end": "2026-03-02T11:00:00Z"}
	],
	"preferences": {"max_hours_per_day": 4}
}`

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := plan.NewRedisStore(client, time.Hour)
	t.Cleanup(func() { store.Close() })

	m := metrics.NewCollector()
	svc, err := service.New(store, timeline.DefaultPreferences(), timeline.Policy{},
		service.WithLogger(&logger.NoOpLogger{}),
		service.WithMetrics(m),
		service.WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("service.New() error = %v", err)
	}

	srv := httptest.NewServer(NewServer(svc, m, &logger.NoOpLogger{}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func decodePlan(t *testing.T, data []byte) plan.Plan {
	t.Helper()
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("invalid plan JSON: %v\n%s", err, data)
	}
	return p
}

func TestGenerateAndFetch(t *testing.T) {
	srv := setupServer(t)

	status, body := do(t, srv, http.MethodPost, "/timeline/generate", generateBody)
	if status != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", status, body)
	}
	generated := decodePlan(t, body)

	if generated.UserID != "student-1" || generated.Version != 1 {
		t.Errorf("unexpected plan identity %+v", generated)
	}
	if len(generated.Blocks) == 0 {
		t.Fatal("expected blocks")
	}
	lecture := timeline.Clock(11, 0).On(testNow)
	for _, b := range generated.Blocks {
		if b.Start.Before(lecture) && b.Start.Format("2006-01-02") == "2026-03-02" {
			t.Errorf("block at %v overlaps the lecture or starts before it ends", b.Start)
		}
	}
	// Tasks without an ID get one
	for _, tk := range generated.Inputs.Tasks {
		if tk.ID == "" {
			t.Errorf("task %q has no ID", tk.Title)
		}
	}
	if generated.Inputs.Preferences.MaxHoursPerDay != 4 {
		t.Errorf("preferences overlay not applied: %+v", generated.Inputs.Preferences)
	}

	status, body = do(t, srv, http.MethodGet, "/timeline/"+generated.ID, "")
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if got := decodePlan(t, body); got.ID != generated.ID {
		t.Errorf("get returned %s", got.ID)
	}

	status, body = do(t, srv, http.MethodGet, "/timeline/latest/student-1", "")
	if status != http.StatusOK {
		t.Fatalf("latest status = %d", status)
	}
	if got := decodePlan(t, body); got.ID != generated.ID {
		t.Errorf("latest returned %s", got.ID)
	}
}

func TestGenerate_ExplicitNow(t *testing.T) {
	srv := setupServer(t)

	body := strings.Replace(generateBody, `"user_id"`, `"now": "2026-03-03T12:00:00Z", "user_id"`, 1)
	status, data := do(t, srv, http.MethodPost, "/timeline/generate", body)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, data)
	}
	p := decodePlan(t, data)
	if want := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC); !p.GeneratedAt.Equal(want) {
		t.Errorf("GeneratedAt = %v, want %v", p.GeneratedAt, want)
	}
}

func TestGenerate_BadRequests(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"user_id": `},
		{"missing user", `{"tasks": []}`},
		{"bad preferences", `{"user_id": "u", "preferences": {"min_study_block_minutes": -5}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodPost, "/timeline/generate", tt.body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", status, body)
			}
			var errBody map[string]string
			if err := json.Unmarshal(body, &errBody); err != nil || errBody["error"] == "" {
				t.Errorf("expected JSON error body, got %s", body)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	srv := setupServer(t)

	for _, path := range []string{"/timeline/missing", "/timeline/latest/nobody", "/daily/nobody"} {
		if status, _ := do(t, srv, http.MethodGet, path, ""); status != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, status)
		}
	}

	status, _ := do(t, srv, http.MethodPost, "/timeline/feedback", `{"user_id": "nobody", "feedback": {"action": "mark_complete", "task_id": "x"}}`)
	if status != http.StatusNotFound {
		t.Errorf("feedback without plan status = %d, want 404", status)
	}
}

func TestFeedback(t *testing.T) {
	srv := setupServer(t)
	if status, body := do(t, srv, http.MethodPost, "/timeline/generate", generateBody); status != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", status, body)
	}

	status, body := do(t, srv, http.MethodPost, "/timeline/feedback",
		`{"user_id": "student-1", "feedback": {"action": "mark_complete", "task_id": "essay"}}`)
	if status != http.StatusOK {
		t.Fatalf("feedback status = %d, body %s", status, body)
	}
	p := decodePlan(t, body)
	if p.Version != 2 {
		t.Errorf("version = %d, want 2", p.Version)
	}
	for _, b := range p.Blocks {
		if b.TaskID == "essay" {
			t.Error("completed task still scheduled")
		}
	}

	status, _ = do(t, srv, http.MethodPost, "/timeline/feedback",
		`{"user_id": "student-1", "feedback": {"action": "snooze"}}`)
	if status != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", status)
	}

	status, _ = do(t, srv, http.MethodPost, "/timeline/feedback", `{"feedback": {"action": "mark_complete"}}`)
	if status != http.StatusBadRequest {
		t.Errorf("missing user status = %d, want 400", status)
	}
}

func TestDaily(t *testing.T) {
	srv := setupServer(t)
	if status, _ := do(t, srv, http.MethodPost, "/timeline/generate", generateBody); status != http.StatusOK {
		t.Fatal("generate failed")
	}

	status, body := do(t, srv, http.MethodGet, "/daily/student-1", "")
	if status != http.StatusOK {
		t.Fatalf("daily status = %d", status)
	}

	var daily service.DailyPlan
	if err := json.Unmarshal(body, &daily); err != nil {
		t.Fatal(err)
	}
	if daily.Date != "2026-03-02" {
		t.Errorf("Date = %s", daily.Date)
	}
	if len(daily.Blocks) == 0 {
		t.Error("expected blocks today")
	}
	if daily.TotalTasks != 2 {
		t.Errorf("TotalTasks = %d, want 2", daily.TotalTasks)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := setupServer(t)
	do(t, srv, http.MethodPost, "/timeline/generate", generateBody)

	status, body := do(t, srv, http.MethodGet, "/healthz", "")
	if status != http.StatusOK || !bytes.Contains(body, []byte(`"healthy"`)) {
		t.Errorf("healthz = %d %s", status, body)
	}

	status, body = do(t, srv, http.MethodGet, "/metrics", "")
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	if !bytes.Contains(body, []byte(`studyplan_plans_generated_total{trigger="api"} 1`)) {
		t.Errorf("metrics missing generation counter:\n%s", body)
	}
}

func TestRecoverPanics(t *testing.T) {
	s := &Server{log: &logger.NoOpLogger{}}
	handler := s.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
