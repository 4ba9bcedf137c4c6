package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskbuddy/internal/models"
	"taskbuddy/internal/repositories"
)

func TestCreateStoresUTCInstantUnchanged(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "", "America/Denver")

	task, err := h.tasks.Create(context.Background(), "u1", "ship it", TimeInput{
		Type: models.TimeTypeDeadline, Value: "2024-06-05T23:00:00Z", ReminderOffset: intPtr(30),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := h.repo.get(task.ID).TimeValue.String(); got != "2024-06-05T23:00:00Z" {
		t.Fatalf("time_value = %q", got)
	}
}

func TestCreateResolvesInOwnerZone(t *testing.T) {
	h := newHarness(t, time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC)) // 10:00 in Denver
	addOwner(h, "u1", "", "America/Denver")

	task, err := h.tasks.Create(context.Background(), "u1", "call mom", TimeInput{
		Type: models.TimeTypeScheduled, Value: "tomorrow at 6", ReminderOffset: intPtr(0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC) // 18:00 MDT on the 2nd
	if at, ok := task.TimeValue.Instant(); !ok || !at.Equal(want) {
		t.Fatalf("instant = %v (%v), want %v", at, ok, want)
	}
}

func TestCreateKeepsUnresolvableTextPending(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "", "UTC")

	task, err := h.tasks.Create(context.Background(), "u1", "x", TimeInput{
		Type: models.TimeTypeScheduled, Value: "after the game",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !task.TimeValue.IsPending() || task.TimeValue.Phrase() != "after the game" {
		t.Fatalf("time_value = %v", task.TimeValue)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, sweepNow)
	ctx := context.Background()
	cases := []struct {
		name    string
		content string
		in      TimeInput
		want    error
	}{
		{"empty content", "  ", TimeInput{}, ErrEmptyContent},
		{"bad type", "x", TimeInput{Type: "someday", Value: "tomorrow"}, ErrInvalidTimeType},
		{"missing value", "x", TimeInput{Type: models.TimeTypeScheduled}, ErrTimeValueRequired},
		{"negative offset", "x", TimeInput{Type: models.TimeTypeScheduled, Value: "tomorrow", ReminderOffset: intPtr(-5)}, ErrInvalidOffset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.tasks.Create(ctx, "u1", tc.content, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestWriteTimeNoneClearsValue(t *testing.T) {
	h := newHarness(t, sweepNow)
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "x", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow), ReminderOffset: intPtr(10),
	})

	v, err := h.tasks.WriteTime(context.Background(), id, TimeInput{Type: models.TimeTypeNone, Value: "tomorrow"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	got := h.repo.get(id)
	if !v.IsEmpty() || !got.TimeValue.IsEmpty() || got.TimeType != models.TimeTypeNone {
		t.Fatalf("task = %+v", got)
	}
}

func TestWriteTimeLeavesOtherFieldsAlone(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "", "UTC")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "original", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Resolved(sweepNow), ReminderOffset: intPtr(0), ReminderSent: true,
	})

	if _, err := h.tasks.WriteTime(context.Background(), id, TimeInput{
		Type: models.TimeTypeScheduled, Value: "2024-07-01T10:00:00Z", ReminderOffset: intPtr(0),
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := h.repo.get(id)
	if got.Content != "original" || !got.ReminderSent {
		t.Fatalf("task = %+v", got)
	}
}

func TestWriteTimeKeepsStoredValueAndOffset(t *testing.T) {
	h := newHarness(t, sweepNow)
	addOwner(h, "u1", "", "UTC")
	id := h.storeRaw(t, models.Task{
		UserID: "u1", Content: "x", TimeType: models.TimeTypeScheduled,
		TimeValue: models.Pending("tomorrow at 6"), ReminderOffset: intPtr(10),
	})

	v, err := h.tasks.WriteTime(context.Background(), id, TimeInput{
		Type: models.TimeTypeDeadline, ReminderOffset: intPtr(99), KeepValue: true, KeepOffset: true,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	got := h.repo.get(id)
	if got.TimeType != models.TimeTypeDeadline {
		t.Fatalf("type = %s", got.TimeType)
	}
	if !v.IsPending() || got.TimeValue.Phrase() != "tomorrow at 6" {
		t.Fatalf("value re-resolved: returned %v stored %v", v, got.TimeValue)
	}
	if got.ReminderOffset == nil || *got.ReminderOffset != 10 {
		t.Fatalf("offset = %v", got.ReminderOffset)
	}
}

func TestWriteTimeKeepValueNeedsStoredValue(t *testing.T) {
	h := newHarness(t, sweepNow)
	id := h.storeRaw(t, models.Task{UserID: "u1", Content: "x", TimeType: models.TimeTypeNone})

	_, err := h.tasks.WriteTime(context.Background(), id, TimeInput{Type: models.TimeTypeScheduled, KeepValue: true})
	if !errors.Is(err, ErrTimeValueRequired) {
		t.Fatalf("err = %v", err)
	}

	v, err := h.tasks.WriteTime(context.Background(), id, TimeInput{Type: models.TimeTypeNone, KeepValue: true})
	if err != nil || !v.IsEmpty() {
		t.Fatalf("none: v=%v err=%v", v, err)
	}
}

func TestWriteTimeUnknownTask(t *testing.T) {
	h := newHarness(t, sweepNow)
	_, err := h.tasks.WriteTime(context.Background(), 42, TimeInput{Type: models.TimeTypeScheduled, Value: "tomorrow"})
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestSetReminderOffsetRejectsNegative(t *testing.T) {
	h := newHarness(t, sweepNow)
	if err := h.tasks.SetReminderOffset(context.Background(), 1, intPtr(-1)); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("err = %v", err)
	}
}

func TestTimeServiceParse(t *testing.T) {
	h := newHarness(t, time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC))

	p, err := h.times.Parse("tomorrow at 3pm", "America/Denver")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := time.Date(2024, 6, 2, 21, 0, 0, 0, time.UTC); !p.Instant.Equal(want) {
		t.Fatalf("instant = %v, want %v", p.Instant, want)
	}
	if p.Display != "Sun Jun 2, 2024 at 3:00 PM MDT" {
		t.Fatalf("display = %q", p.Display)
	}
	if z := h.times.Zone("Mars/Olympus"); z != "UTC" {
		t.Fatalf("fallback zone = %q", z)
	}
}
