package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestScheduler_IsRunning(t *testing.T) {
	s := NewScheduler(slog.Default())

	if s.IsRunning() {
		t.Error("new scheduler should not be running")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running after Start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
}

func TestScheduler_ListTasks(t *testing.T) {
	s := NewScheduler(slog.Default())

	tasks := s.ListTasks()
	if tasks == nil {
		t.Error("ListTasks should return a non-nil slice")
	}
	if len(tasks) != 0 {
		t.Errorf("new scheduler should have 0 tasks, got %d", len(tasks))
	}

	noop := func(ctx context.Context) error { return nil }
	if err := s.AddIntervalTask("task1", time.Hour, noop); err != nil {
		t.Fatalf("AddIntervalTask failed: %v", err)
	}
	if err := s.AddCronTask("task2", "@every 30m", noop); err != nil {
		t.Fatalf("AddCronTask failed: %v", err)
	}

	names := make(map[string]bool)
	for _, name := range s.ListTasks() {
		names[name] = true
	}
	if !names["task1"] || !names["task2"] {
		t.Errorf("expected task1 and task2, got %v", s.ListTasks())
	}
}

func TestScheduler_AddTask_ReplaceExisting(t *testing.T) {
	s := NewScheduler(slog.Default())
	noop := func(ctx context.Context) error { return nil }

	if err := s.AddIntervalTask("task1", time.Hour, noop); err != nil {
		t.Fatalf("AddIntervalTask failed: %v", err)
	}
	if err := s.AddIntervalTask("task1", 30*time.Minute, noop); err != nil {
		t.Fatalf("replacing task failed: %v", err)
	}

	if got := len(s.ListTasks()); got != 1 {
		t.Errorf("expected 1 task after replace, got %d", got)
	}
}

func TestScheduler_AddCronTask_InvalidSchedule(t *testing.T) {
	s := NewScheduler(slog.Default())
	noop := func(ctx context.Context) error { return nil }

	if err := s.AddCronTask("task1", "not a valid schedule", noop); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if got := len(s.ListTasks()); got != 0 {
		t.Errorf("expected 0 tasks after failed add, got %d", got)
	}
}

func TestScheduler_RemoveTask(t *testing.T) {
	s := NewScheduler(slog.Default())
	noop := func(ctx context.Context) error { return nil }

	if err := s.AddIntervalTask("task1", time.Hour, noop); err != nil {
		t.Fatalf("AddIntervalTask failed: %v", err)
	}
	s.RemoveTask("task1")
	if got := len(s.ListTasks()); got != 0 {
		t.Errorf("expected 0 tasks after remove, got %d", got)
	}

	// Removing an unknown task is a no-op.
	s.RemoveTask("ghost")
}

func TestAddScheduledTask_CronOverridesInterval(t *testing.T) {
	s := NewScheduler(slog.Default())
	noop := func(ctx context.Context) error { return nil }

	if err := addScheduledTask(s, slog.Default(), "sweep", "0 0 2 * * *", 5*time.Minute, noop); err != nil {
		t.Fatalf("addScheduledTask with cron schedule failed: %v", err)
	}
	if err := addScheduledTask(s, slog.Default(), "sweep2", "", 5*time.Minute, noop); err != nil {
		t.Fatalf("addScheduledTask with interval fallback failed: %v", err)
	}
	if got := len(s.ListTasks()); got != 2 {
		t.Errorf("expected 2 tasks, got %d", got)
	}
}
