package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/muaviaUsmani/studyplan/internal/service"
	"github.com/muaviaUsmani/studyplan/internal/task"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func setupClient(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	c, err := NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testInput() *task.Input {
	return &task.Input{
		UserID: "student-1",
		Tasks: []task.Task{
			{Title: "Essay", DueDate: "2026-03-06", EffortHours: 3},
			{ID: "exam", Title: "Exam", DueDate: "2026-03-09", EffortHours: 4},
		},
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	if _, err := NewClient("redis://127.0.0.1:1"); err == nil {
		t.Fatal("expected error for unreachable Redis")
	}
	if _, err := NewClient("not a url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestGeneratePlan_AndRead(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	in := testInput()
	p, err := c.GeneratePlan(ctx, in, testNow)
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if p.Version != 1 || len(p.Blocks) == 0 {
		t.Fatalf("unexpected plan %+v", p)
	}
	if in.Tasks[0].ID == "" {
		t.Error("expected missing task ID to be assigned")
	}

	got, err := c.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlan() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("GetPlan() returned %s, want %s", got.ID, p.ID)
	}

	latest, err := c.LatestPlan(ctx, "student-1")
	if err != nil {
		t.Fatalf("LatestPlan() error = %v", err)
	}
	if latest.ID != p.ID {
		t.Errorf("LatestPlan() returned %s, want %s", latest.ID, p.ID)
	}
}

func TestGeneratePlan_RequiresUser(t *testing.T) {
	c := setupClient(t)

	in := testInput()
	in.UserID = ""
	_, err := c.GeneratePlan(context.Background(), in, testNow)
	if !errors.Is(err, service.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestLatestPlan_Missing(t *testing.T) {
	c := setupClient(t)

	_, err := c.LatestPlan(context.Background(), "nobody")
	if !errors.Is(err, service.ErrNoPlan) {
		t.Errorf("expected ErrNoPlan, got %v", err)
	}
}

func TestSendFeedback(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	if _, err := c.GeneratePlan(ctx, testInput(), testNow); err != nil {
		t.Fatal(err)
	}

	p, err := c.SendFeedback(ctx, "student-1", service.Feedback{Action: service.ActionMarkComplete, TaskID: "exam"})
	if err != nil {
		t.Fatalf("SendFeedback() error = %v", err)
	}
	if p.Version != 2 {
		t.Errorf("Version = %d, want 2", p.Version)
	}
	for _, b := range p.Blocks {
		if b.TaskID == "exam" {
			t.Error("completed task is still scheduled")
		}
	}
}
