package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"taskbuddy/internal/models"
	"taskbuddy/internal/utils"
)

const defaultDeliveryTimeout = 10 * time.Second

// NotificationSender delivers one message. Failures are reported, never
// retried by the caller within the same sweep.
type NotificationSender interface {
	Send(ctx context.Context, to, body string) error
}

// SweepReport summarises one pass over the due candidates.
type SweepReport struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Candidates  int           `json:"candidates"`
	Resolved    int           `json:"resolved"`
	Unresolved  int           `json:"unresolved"`
	NotDue      int           `json:"not_due"`
	NoPhone     int           `json:"no_phone"`
	AlreadySent int           `json:"already_sent"`
	Sent        int           `json:"sent"`
	Failed      int           `json:"failed"`
	Orphans     int           `json:"orphans"`
}

func (r SweepReport) String() string {
	return fmt.Sprintf("candidates=%d resolved=%d unresolved=%d not_due=%d no_phone=%d already_sent=%d sent=%d failed=%d orphans=%d took=%s",
		r.Candidates, r.Resolved, r.Unresolved, r.NotDue, r.NoPhone, r.AlreadySent, r.Sent, r.Failed, r.Orphans,
		r.Duration.Round(time.Millisecond))
}

type ReminderService struct {
	tasks           TaskService
	sender          NotificationSender
	alerts          AlertService
	deliveryTimeout time.Duration
	now             func() time.Time
}

func NewReminderService(tasks TaskService, sender NotificationSender, alerts AlertService, deliveryTimeout time.Duration) *ReminderService {
	if deliveryTimeout <= 0 {
		deliveryTimeout = defaultDeliveryTimeout
	}
	if alerts == nil {
		alerts = NopAlerts{}
	}
	return &ReminderService{
		tasks:           tasks,
		sender:          sender,
		alerts:          alerts,
		deliveryTimeout: deliveryTimeout,
		now:             time.Now,
	}
}

// Sweep delivers every reminder whose instant has passed. Each candidate is
// handled on its own; only a failed candidate query fails the sweep.
func (s *ReminderService) Sweep(ctx context.Context) (*SweepReport, error) {
	start := s.now()
	rep := &SweepReport{ID: uuid.NewString(), StartedAt: start}

	batch, err := s.tasks.ReadDueCandidates(ctx, start)
	if err != nil {
		log.Printf("[reminder][sweep][err] sweep=%s: %v", rep.ID, err)
		s.alerts.Notify("sweep-query", "Reminder sweep could not read tasks", err.Error())
		rep.Duration = time.Since(start)
		return rep, err
	}
	rep.Candidates = len(batch.Candidates) + len(batch.Unresolved)
	rep.Resolved = batch.Resolved
	rep.Unresolved = len(batch.Unresolved)

	for _, c := range batch.Candidates {
		if ctx.Err() != nil {
			log.Printf("[reminder][sweep][stop] sweep=%s: %v", rep.ID, ctx.Err())
			break
		}
		s.process(ctx, rep, c, start)
	}

	rep.Duration = time.Since(start)
	log.Printf("[reminder][sweep][done] sweep=%s %s", rep.ID, rep.String())
	return rep, nil
}

func (s *ReminderService) process(ctx context.Context, rep *SweepReport, c models.DueCandidate, now time.Time) {
	if !c.OwnerFound {
		rep.Orphans++
		log.Printf("[reminder][sweep][orphan] sweep=%s id=%d user=%s: owner does not exist", rep.ID, c.ID, c.UserID)
		s.alerts.Notify("orphan-task", "Task references a missing user",
			fmt.Sprintf("task id=%d references user_id=%q which does not exist", c.ID, c.UserID))
		return
	}

	at, ok := c.ReminderAt()
	if !ok {
		return
	}
	if now.Before(at) {
		rep.NotDue++
		return
	}
	if c.PhoneNumber == "" {
		rep.NoPhone++
		return
	}

	// Another process may have delivered it since the candidates were read.
	sent, err := s.tasks.ReminderSent(ctx, c.ID)
	if err != nil {
		rep.Failed++
		log.Printf("[reminder][sweep][err] sweep=%s id=%d re-read: %v", rep.ID, c.ID, err)
		return
	}
	if sent {
		rep.AlreadySent++
		return
	}

	dctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	err = s.sender.Send(dctx, c.PhoneNumber, ReminderMessage(c))
	cancel()
	if err != nil {
		rep.Failed++
		log.Printf("[reminder][sweep][send][err] sweep=%s id=%d to=%s: %v", rep.ID, c.ID, utils.MaskPhone(c.PhoneNumber), err)
		return
	}

	marked, err := s.tasks.MarkReminderSent(ctx, c.ID)
	switch {
	case err != nil:
		log.Printf("[reminder][sweep][mark][err] sweep=%s id=%d delivered but not marked: %v", rep.ID, c.ID, err)
	case !marked:
		log.Printf("[reminder][sweep][mark] sweep=%s id=%d was already marked", rep.ID, c.ID)
	}
	rep.Sent++
	log.Printf("[reminder][sweep][sent] sweep=%s id=%d to=%s", rep.ID, c.ID, utils.MaskPhone(c.PhoneNumber))
}

// ReminderMessage is the SMS text for a due task, with the time shown in the
// owner's zone.
func ReminderMessage(c models.DueCandidate) string {
	at, _ := c.TimeValue.Instant()
	when := FormatInZone(at, c.TimeZone)
	switch c.TimeType {
	case models.TimeTypeDeadline:
		return fmt.Sprintf("Reminder: %q is due %s.", c.Content, when)
	default:
		return fmt.Sprintf("Reminder: %q is scheduled for %s.", c.Content, when)
	}
}
