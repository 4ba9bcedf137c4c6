package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskbuddy/internal/models"
	"taskbuddy/internal/repositories"
)

var sweepNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func addOwner(h *harness, id, phone, zone string) {
	h.users.add(models.User{ID: id, PhoneNumber: phone, PhoneVerified: phone != "", TimeZone: zone})
}

func TestSweepDeliversAtMostOnce(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "+15551230001", "America/Denver")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "pay rent", TimeType: models.TimeTypeDeadline,
		TimeValue: models.Resolved(sweepNow.Add(-time.Minute)), ReminderOffset: intPtr(0),
	})

	for i := 0; i < 3; i++ {
		h.sweep(t)
		h.clock = h.clock.Add(time.Minute)
	}

	if got := h.sender.count(); got != 1 {
		t.Fatalf("deliveries = %d, want 1", got)
	}
	if !h.repo.get(id).ReminderSent {
		t.Fatal("reminder_sent not set after delivery")
	}
	msg := h.sender.attempts[0]
	if msg.To != "+15551230001" {
		t.Errorf("to = %q", msg.To)
	}
	mustContain(t, msg.Body, `"pay rent" is due`)
	mustContain(t, msg.Body, "MDT")
}

func TestSweepNewYorkLazyResolution(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "+15551230001", "America/New_York")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "call mom", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Pending("tomorrow at 3pm"), ReminderOffset: intPtr(60),
	})

	rep := h.sweep(t)
	if rep.Resolved != 1 || rep.NotDue != 1 || rep.Sent != 0 {
		t.Fatalf("first sweep = %s", rep)
	}
	if got := h.repo.get(id).TimeValue.String(); got != "2024-06-02T19:00:00Z" {
		t.Fatalf("stored time_value = %q", got)
	}

	h.clock = time.Date(2024, 6, 2, 18, 0, 0, 0, time.UTC)
	rep = h.sweep(t)
	if rep.Sent != 1 || rep.Resolved != 0 {
		t.Fatalf("second sweep = %s", rep)
	}
	mustContain(t, h.sender.attempts[0].Body, "3:00 PM EDT")

	h.clock = h.clock.Add(10 * time.Minute)
	if rep = h.sweep(t); rep.Candidates != 0 || h.sender.count() != 1 {
		t.Fatalf("third sweep = %s, deliveries = %d", rep, h.sender.count())
	}
}

func TestSweepIgnoresUntimedTasks(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "+15551230001", "UTC")
	h.storeRaw(t, models.Task{
		UserID: "u1", Content: "someday", TimeType: models.TimeTypeNone,
		TimeValue: models.Resolved(sweepNow.Add(-time.Hour)), ReminderOffset: intPtr(0),
	})
	h.storeRaw(t, models.Task{
		UserID: "u1", Content: "no offset", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow.Add(-time.Hour)),
	})

	rep := h.sweep(t)
	if rep.Candidates != 0 || h.sender.count() != 0 {
		t.Fatalf("sweep = %s, deliveries = %d", rep, h.sender.count())
	}
}

func TestSweepRetriesFailedDeliveryNextSweep(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "+15551230001", "UTC")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "standup", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow), ReminderOffset: intPtr(0),
	})
	h.sender.failNext = 1

	if rep := h.sweep(t); rep.Failed != 1 || rep.Sent != 0 {
		t.Fatalf("first sweep = %s", rep)
	}
	if h.repo.get(id).ReminderSent {
		t.Fatal("failed delivery must not mark the task")
	}
	if rep := h.sweep(t); rep.Sent != 1 {
		t.Fatalf("second sweep = %s", rep)
	}
	if !h.repo.get(id).ReminderSent {
		t.Fatal("task not marked after retry")
	}
}

func TestSweepDeliveryTimeoutDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "slow", "+15551230009", "UTC")
	addOwner(h, "fast", "+15551230001", "UTC")
	h.sender.blockTo = "+15551230009"
	slow := h.storeRaw(t, models.Task{
		UserID: "slow", Content: "a", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow), ReminderOffset: intPtr(0),
	})
	fast := h.storeRaw(t, models.Task{
		UserID: "fast", Content: "b", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow), ReminderOffset: intPtr(0),
	})

	rep := h.sweep(t)
	if rep.Failed != 1 || rep.Sent != 1 {
		t.Fatalf("sweep = %s", rep)
	}
	if h.repo.get(slow).ReminderSent || !h.repo.get(fast).ReminderSent {
		t.Fatal("only the delivered task should be marked")
	}
}

func TestSweepSkipsOwnersWithoutPhone(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "", "UTC")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "x", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow), ReminderOffset: intPtr(0),
	})

	rep := h.sweep(t)
	if rep.NoPhone != 1 || h.sender.count() != 0 || h.repo.get(id).ReminderSent {
		t.Fatalf("sweep = %s", rep)
	}
}

func TestSweepReportsOrphans(t *testing.T) {
	h := newHarness(t, sweepNow)
	id := h.storeRaw(t, models.Task{
		UserID: "ghost", Content: "x", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow), ReminderOffset: intPtr(0),
	})

	rep := h.sweep(t)
	if rep.Orphans != 1 || h.sender.count() != 0 {
		t.Fatalf("sweep = %s", rep)
	}
	if h.repo.get(id).ReminderSent {
		t.Fatal("orphan must not be marked")
	}
	if len(h.alerts.kinds) != 1 || h.alerts.kinds[0] != "orphan-task" {
		t.Fatalf("alerts = %v", h.alerts.kinds)
	}
}

func TestSweepRereadsSentFlag(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "+15551230001", "UTC")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "x", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow), ReminderOffset: intPtr(0),
	})
	// another process delivers between the read and the send
	h.repo.afterList = func() {
		_, _ = h.repo.MarkReminderSent(context.Background(), id)
	}

	rep := h.sweep(t)
	if rep.AlreadySent != 1 || h.sender.count() != 0 {
		t.Fatalf("sweep = %s, deliveries = %d", rep, h.sender.count())
	}
}

func TestSweepLeavesUnresolvablePending(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "+15551230001", "UTC")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "x", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Pending("when pigs fly"), ReminderOffset: intPtr(0),
	})

	rep := h.sweep(t)
	if rep.Unresolved != 1 || rep.Sent != 0 {
		t.Fatalf("sweep = %s", rep)
	}
	if v := h.repo.get(id).TimeValue; !v.IsPending() || v.Phrase() != "when pigs fly" {
		t.Fatalf("time_value = %v", v)
	}
}

func TestSweepLazyResolutionYieldsToConcurrentEdit(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "+15551230001", "UTC")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "x", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Pending("tomorrow at 9am"), ReminderOffset: intPtr(0),
	})
	edited := sweepNow.Add(-5 * time.Minute)
	h.repo.beforeResolve = func(int64) {
		_ = h.repo.UpdateTime(context.Background(), id, repositories.TimeUpdate{
			Type: models.TimeTypeScheduled, Value: models.Resolved(edited), Offset: intPtr(0),
		})
	}

	rep := h.sweep(t)
	if rep.Resolved != 0 || rep.Sent != 1 {
		t.Fatalf("sweep = %s", rep)
	}
	if at, _ := h.repo.get(id).TimeValue.Instant(); !at.Equal(edited) {
		t.Fatalf("edit overwritten: %v", at)
	}
}

func TestSweepQueryFailure(t *testing.T) {
	h := newHarness(t, sweepNow)
	h.repo.listErr = errors.New("connection refused")

	rep, err := h.rem.Sweep(context.Background())
	if err == nil || rep == nil {
		t.Fatalf("rep=%v err=%v", rep, err)
	}
	if len(h.alerts.kinds) != 1 || h.alerts.kinds[0] != "sweep-query" {
		t.Fatalf("alerts = %v", h.alerts.kinds)
	}
}

func TestReminderMessageScheduled(t *testing.T) {
	c := models.DueCandidate{
		Task: models.Task{
			Content: "dentist", TimeType: models.TimeTypeScheduled,
			TimeValue: models.Resolved(time.Date(2024, 6, 3, 16, 30, 0, 0, time.UTC)),
		},
		TimeZone: "America/Denver",
	}
	want := `Reminder: "dentist" is scheduled for Mon Jun 3, 2024 at 10:30 AM MDT.`
	if got := ReminderMessage(c); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}
