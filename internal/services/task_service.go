package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"taskbuddy/internal/models"
	"taskbuddy/internal/repositories"
	"taskbuddy/internal/timeparse"
)

var (
	ErrEmptyContent      = errors.New("task content is required")
	ErrInvalidTimeType   = errors.New("time_type must be none, scheduled or deadline")
	ErrTimeValueRequired = errors.New("time_value is required for scheduled and deadline tasks")
	ErrInvalidOffset     = errors.New("reminder_offset must be zero or more minutes")
)

// TimeInput is a caller's time write: a type, raw text or an instant, and
// an optional reminder offset.
type TimeInput struct {
	Type           models.TimeType
	Value          string
	ReminderOffset *int

	// On WriteTime, KeepValue and KeepOffset leave the stored value or
	// offset as it is and ignore Value or ReminderOffset.
	KeepValue  bool
	KeepOffset bool
}

// DueBatch is one read of due candidates after lazy resolution.
type DueBatch struct {
	Candidates []models.DueCandidate
	Resolved   int     // pending phrases resolved and persisted by this read
	Unresolved []int64 // still pending, retried next time
}

// TaskService owns every write of a task's time fields and is the only place
// text becomes an instant.
type TaskService interface {
	Create(ctx context.Context, userID, content string, in TimeInput) (*models.Task, error)
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	ListByUser(ctx context.Context, userID string) ([]models.Task, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	WriteTime(ctx context.Context, id int64, in TimeInput) (models.TimeValue, error)
	SetReminderOffset(ctx context.Context, id int64, offset *int) error
	Delete(ctx context.Context, id int64) error

	ReadDueCandidates(ctx context.Context, now time.Time) (*DueBatch, error)
	ReminderSent(ctx context.Context, id int64) (bool, error)
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
}

type taskService struct {
	repo  repositories.TaskRepository
	users repositories.UserRepository
	times *TimeService
	now   func() time.Time
}

func NewTaskService(repo repositories.TaskRepository, users repositories.UserRepository, times *TimeService) TaskService {
	return &taskService{repo: repo, users: users, times: times, now: time.Now}
}

func (s *taskService) Create(ctx context.Context, userID, content string, in TimeInput) (*models.Task, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	typ, value, err := s.prepareTime(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	task := &models.Task{
		UserID:         userID,
		Content:        content,
		TimeType:       typ,
		TimeValue:      value,
		ReminderOffset: in.ReminderOffset,
	}
	if err := s.repo.Store(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *taskService) ListByUser(ctx context.Context, userID string) ([]models.Task, error) {
	return s.repo.FindAllByUser(ctx, userID)
}

func (s *taskService) UpdateContent(ctx context.Context, id int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	return s.repo.UpdateContent(ctx, id, content)
}

// WriteTime stores the time fields of task id. An instant with a Z suffix is
// stored as-is; anything else is resolved in the owner's zone and kept as
// pending text when that fails. A kept value is never re-resolved.
func (s *taskService) WriteTime(ctx context.Context, id int64, in TimeInput) (models.TimeValue, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return models.TimeValue{}, err
	}
	if in.KeepOffset {
		in.ReminderOffset = nil
	}

	u := repositories.TimeUpdate{Offset: in.ReminderOffset, KeepOffset: in.KeepOffset}
	if in.KeepValue && in.Type != models.TimeTypeNone {
		if !in.Type.Valid() {
			return models.TimeValue{}, ErrInvalidTimeType
		}
		if in.ReminderOffset != nil && *in.ReminderOffset < 0 {
			return models.TimeValue{}, ErrInvalidOffset
		}
		if task.TimeValue.IsEmpty() {
			return models.TimeValue{}, ErrTimeValueRequired
		}
		u.Type, u.Value, u.KeepValue = in.Type, task.TimeValue, true
	} else {
		u.Type, u.Value, err = s.prepareTime(ctx, task.UserID, in)
		if err != nil {
			return models.TimeValue{}, err
		}
	}

	if err := s.repo.UpdateTime(ctx, id, u); err != nil {
		return models.TimeValue{}, err
	}
	return u.Value, nil
}

func (s *taskService) SetReminderOffset(ctx context.Context, id int64, offset *int) error {
	if offset != nil && *offset < 0 {
		return ErrInvalidOffset
	}
	return s.repo.UpdateReminderOffset(ctx, id, offset)
}

func (s *taskService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *taskService) ReminderSent(ctx context.Context, id int64) (bool, error) {
	return s.repo.ReminderSent(ctx, id)
}

func (s *taskService) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	return s.repo.MarkReminderSent(ctx, id)
}

func (s *taskService) prepareTime(ctx context.Context, userID string, in TimeInput) (models.TimeType, models.TimeValue, error) {
	typ := in.Type
	if typ == "" {
		typ = models.TimeTypeNone
	}
	if !typ.Valid() {
		return "", models.TimeValue{}, ErrInvalidTimeType
	}
	if in.ReminderOffset != nil && *in.ReminderOffset < 0 {
		return "", models.TimeValue{}, ErrInvalidOffset
	}

	raw := strings.TrimSpace(in.Value)
	if typ == models.TimeTypeNone || strings.EqualFold(raw, "none") {
		return models.TimeTypeNone, models.TimeValue{}, nil
	}
	if raw == "" {
		return "", models.TimeValue{}, ErrTimeValueRequired
	}

	if timeparse.IsUTCInstant(raw) {
		at, err := timeparse.ParseUTCInstant(raw)
		if err != nil {
			return "", models.TimeValue{}, err
		}
		return typ, models.Resolved(at), nil
	}

	zone := s.userZone(ctx, userID)
	at, err := s.times.Resolve(raw, zone, s.now())
	if err != nil {
		if errors.Is(err, timeparse.ErrUnresolvable) {
			log.Printf("[task][time][pending] user=%s zone=%s phrase=%q", userID, zone, raw)
			return typ, models.Pending(raw), nil
		}
		return "", models.TimeValue{}, err
	}
	return typ, models.Resolved(at), nil
}

func (s *taskService) userZone(ctx context.Context, userID string) string {
	if s.users == nil || userID == "" {
		return ""
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Printf("[task][time][zone][err] user=%s: %v", userID, err)
		}
		return ""
	}
	return u.TimeZone
}

// ReadDueCandidates returns the sweep's candidates with pending phrases
// resolved. A resolution is persisted only if the row still holds the phrase
// that was read; otherwise the row is re-read and its current value used.
func (s *taskService) ReadDueCandidates(ctx context.Context, now time.Time) (*DueBatch, error) {
	rows, err := s.repo.ListDueCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list due candidates: %w", err)
	}

	batch := &DueBatch{}
	for _, c := range rows {
		if c.TimeType == models.TimeTypeNone {
			continue
		}
		if !c.OwnerFound || c.TimeValue.IsResolved() {
			batch.Candidates = append(batch.Candidates, c)
			continue
		}
		if !c.TimeValue.IsPending() {
			continue
		}

		phrase := c.TimeValue.Phrase()
		at, err := s.times.Resolve(phrase, c.TimeZone, now)
		if err != nil {
			log.Printf("[task][lazy][skip] id=%d phrase=%q: %v", c.ID, phrase, err)
			batch.Unresolved = append(batch.Unresolved, c.ID)
			continue
		}

		resolved := models.Resolved(at)
		ok, err := s.repo.ResolvePendingTime(ctx, c.ID, phrase, resolved)
		if err != nil {
			log.Printf("[task][lazy][err] id=%d: %v", c.ID, err)
			batch.Unresolved = append(batch.Unresolved, c.ID)
			continue
		}
		if !ok {
			// Changed since it was listed.
			fresh, err := s.repo.FindByID(ctx, c.ID)
			if err != nil || fresh.TimeType == models.TimeTypeNone || !fresh.TimeValue.IsResolved() ||
				fresh.ReminderOffset == nil || fresh.ReminderSent {
				batch.Unresolved = append(batch.Unresolved, c.ID)
				continue
			}
			c.Task = *fresh
			batch.Candidates = append(batch.Candidates, c)
			continue
		}

		log.Printf("[task][lazy][resolved] id=%d phrase=%q at=%s", c.ID, phrase, timeparse.FormatInstant(at))
		c.TimeValue = resolved
		batch.Resolved++
		batch.Candidates = append(batch.Candidates, c)
	}
	return batch, nil
}
