package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"taskbuddy/internal/models"
	"taskbuddy/internal/repositories"
	"taskbuddy/internal/utils"
)

const (
	replyNotLinked = "This number is not linked to a TaskBuddy account. Verify your phone in the dashboard first."
	replyConfused  = "Sorry, I didn't get that. Text HELP to see what I can do."
	replyHelp      = "You can text things like:\n" +
		"- add call mom tomorrow at 6\n" +
		"- list\n" +
		"- remove 2\n" +
		"- move dentist to friday at 3pm\n" +
		"- remind me 30 minutes before dentist\n" +
		"- set my timezone to America/Denver"
)

// IntentClassifier turns a free-text message into a structured intent.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, message string, tasks []string) (*models.Intent, error)
}

// IntentService answers SMS commands from verified phones.
type IntentService struct {
	tasks TaskService
	users UserService
	nlu   IntentClassifier
}

func NewIntentService(tasks TaskService, users UserService, nlu IntentClassifier) *IntentService {
	return &IntentService{tasks: tasks, users: users, nlu: nlu}
}

// HandleMessage returns the reply text for one inbound message.
func (s *IntentService) HandleMessage(ctx context.Context, from, body string) (string, error) {
	phone, err := utils.NormalizePhone(from)
	if err != nil {
		return replyNotLinked, nil
	}
	user, err := s.users.GetByVerifiedPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Printf("[sms][webhook][unlinked] from=%s", utils.MaskPhone(phone))
			return replyNotLinked, nil
		}
		return "", err
	}

	body = strings.TrimSpace(body)
	if strings.EqualFold(body, "help") || body == "?" {
		return replyHelp, nil
	}

	tasks, err := s.tasks.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	contents := make([]string, len(tasks))
	for i, t := range tasks {
		contents[i] = t.Content
	}

	intent, err := s.nlu.ClassifyIntent(ctx, body, contents)
	if err != nil {
		log.Printf("[sms][webhook][nlu][err] user=%s: %v", user.ID, err)
		return replyConfused, nil
	}
	log.Printf("[sms][webhook][intent] user=%s intent=%s", user.ID, intent.Intent)
	return s.apply(ctx, user, tasks, intent)
}

func (s *IntentService) apply(ctx context.Context, user *models.User, tasks []models.Task, in *models.Intent) (string, error) {
	switch in.Intent {
	case models.IntentAddTask:
		return s.addTask(ctx, user, in)
	case models.IntentRemoveTask:
		t := findTask(tasks, in.TaskIdentifier)
		if t == nil {
			return notFoundReply(tasks, user.Zone()), nil
		}
		if err := s.tasks.Delete(ctx, t.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed %q.", t.Content), nil
	case models.IntentListTasks:
		return listReply(tasks, user.Zone()), nil
	case models.IntentUpdateTask:
		return s.updateTask(ctx, user, tasks, in)
	case models.IntentSetTimeZone:
		u, err := s.users.SetTimeZone(ctx, user.ID, in.TimeZone)
		if err != nil {
			if errors.Is(err, ErrInvalidTimeZone) {
				return fmt.Sprintf("I don't know the time zone %q. Try a name like America/New_York.", in.TimeZone), nil
			}
			return "", err
		}
		return fmt.Sprintf("Time zone set to %s.", u.TimeZone), nil
	case models.IntentUpdateReminder:
		t := findTask(tasks, in.TaskIdentifier)
		if t == nil {
			return notFoundReply(tasks, user.Zone()), nil
		}
		if in.ReminderOffset == nil {
			return "How many minutes before should I remind you?", nil
		}
		if err := s.tasks.SetReminderOffset(ctx, t.ID, in.ReminderOffset); err != nil {
			if errors.Is(err, ErrInvalidOffset) {
				return "The reminder has to be zero or more minutes before the task.", nil
			}
			return "", err
		}
		if *in.ReminderOffset == 0 {
			return fmt.Sprintf("I'll remind you right at the time of %q.", t.Content), nil
		}
		return fmt.Sprintf("I'll remind you %s before %q.", minutesText(*in.ReminderOffset), t.Content), nil
	case models.IntentHelp:
		return replyHelp, nil
	default:
		return replyConfused, nil
	}
}

func (s *IntentService) addTask(ctx context.Context, user *models.User, in *models.Intent) (string, error) {
	if strings.TrimSpace(in.TaskContent) == "" {
		return "What should the task be?", nil
	}
	ti := timeInputFromIntent(in, models.TimeTypeNone)
	t, err := s.tasks.Create(ctx, user.ID, in.TaskContent, ti)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %q%s.", t.Content, timeSuffix(t, user.Zone())), nil
}

func (s *IntentService) updateTask(ctx context.Context, user *models.User, tasks []models.Task, in *models.Intent) (string, error) {
	t := findTask(tasks, in.TaskIdentifier)
	if t == nil {
		return notFoundReply(tasks, user.Zone()), nil
	}
	if c := strings.TrimSpace(in.TaskContent); c != "" && c != t.Content {
		if err := s.tasks.UpdateContent(ctx, t.ID, c); err != nil {
			return "", err
		}
		t.Content = c
	}
	if strings.TrimSpace(in.TimeValue) != "" {
		ti := timeInputFromIntent(in, t.TimeType)
		ti.KeepOffset = ti.ReminderOffset == nil
		v, err := s.tasks.WriteTime(ctx, t.ID, ti)
		if err != nil {
			return "", err
		}
		t.TimeType, t.TimeValue = ti.Type, v
	}
	return fmt.Sprintf("Updated %q%s.", t.Content, timeSuffix(t, user.Zone())), nil
}

// timeInputFromIntent defaults the type to scheduled when a time is given
// and the reminder to fire at the task time.
func timeInputFromIntent(in *models.Intent, current models.TimeType) TimeInput {
	ti := TimeInput{Type: models.TimeTypeNone, Value: strings.TrimSpace(in.TimeValue), ReminderOffset: in.ReminderOffset}
	if ti.Value == "" {
		return ti
	}
	typ, ok := models.ParseTimeType(in.TimeType)
	if !ok || typ == models.TimeTypeNone {
		typ = current
	}
	if typ == models.TimeTypeNone {
		typ = models.TimeTypeScheduled
	}
	ti.Type = typ
	if ti.ReminderOffset == nil && current == models.TimeTypeNone {
		zero := 0
		ti.ReminderOffset = &zero
	}
	return ti
}

// findTask accepts a 1-based list position or a case-insensitive piece of
// the task's text.
func findTask(tasks []models.Task, ident string) *models.Task {
	ident = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ident), "#"))
	if ident == "" {
		return nil
	}
	if n, err := strconv.Atoi(ident); err == nil {
		if n >= 1 && n <= len(tasks) {
			return &tasks[n-1]
		}
		return nil
	}
	needle := strings.ToLower(ident)
	for i := range tasks {
		if strings.Contains(strings.ToLower(tasks[i].Content), needle) {
			return &tasks[i]
		}
	}
	return nil
}

func listReply(tasks []models.Task, zone string) string {
	if len(tasks) == 0 {
		return "You have no tasks."
	}
	var b strings.Builder
	b.WriteString("Your tasks:")
	for i := range tasks {
		fmt.Fprintf(&b, "\n%d. %s%s", i+1, tasks[i].Content, timeSuffix(&tasks[i], zone))
	}
	return b.String()
}

func notFoundReply(tasks []models.Task, zone string) string {
	if len(tasks) == 0 {
		return "You have no tasks."
	}
	return "I couldn't tell which task you meant. " + listReply(tasks, zone)
}

func timeSuffix(t *models.Task, zone string) string {
	if t.TimeType == models.TimeTypeNone {
		return ""
	}
	if at, ok := t.TimeValue.Instant(); ok {
		label := "scheduled for"
		if t.TimeType == models.TimeTypeDeadline {
			label = "due"
		}
		return fmt.Sprintf(" (%s %s)", label, FormatInZone(at, zone))
	}
	if t.TimeValue.IsPending() {
		return fmt.Sprintf(" (time %q not understood yet)", t.TimeValue.Phrase())
	}
	return ""
}

func minutesText(m int) string {
	switch {
	case m%60 == 0 && m >= 60:
		if m == 60 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", m/60)
	case m == 1:
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
