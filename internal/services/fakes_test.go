package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/gomail.v2"

	"taskbuddy/internal/models"
	"taskbuddy/internal/repositories"
	"taskbuddy/internal/timeparse"
)

// memUserRepo is an in-memory repositories.UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*models.User)}
}

func (r *memUserRepo) add(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := u
	r.users[u.ID] = &cp
}

func (r *memUserRepo) GetOrCreate(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	if _, ok := r.users[id]; !ok {
		r.users[id] = &models.User{ID: id, TimeZone: "UTC"}
	}
	r.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.TimeZone != nil {
		u.TimeZone = *upd.TimeZone
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) SetVerifiedPhone(_ context.Context, id, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}
	for _, other := range r.users {
		if other.PhoneNumber == phone && other.ID != id {
			other.PhoneNumber, other.PhoneVerified = "", false
		}
	}
	u.PhoneNumber, u.PhoneVerified = phone, true
	return nil
}

func (r *memUserRepo) GetByVerifiedPhone(_ context.Context, phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PhoneVerified && u.PhoneNumber == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("phone %s: %w", phone, repositories.ErrNotFound)
}

// memTaskRepo is an in-memory repositories.TaskRepository that applies the
// same candidate predicate as the SQL query.
type memTaskRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*models.Task
	users  *memUserRepo

	afterList     func()
	beforeResolve func(id int64)
	listErr       error
}

func newMemTaskRepo(users *memUserRepo) *memTaskRepo {
	return &memTaskRepo{tasks: make(map[int64]*models.Task), users: users}
}

func (r *memTaskRepo) get(id int64) models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.tasks[id]
}

func (r *memTaskRepo) Store(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task.ID = r.nextID
	if task.TimeType == "" {
		task.TimeType = models.TimeTypeNone
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *memTaskRepo) FindByID(_ context.Context, id int64) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, repositories.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) FindAllByUser(_ context.Context, userID string) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Task{}
	for _, id := range r.sortedIDs() {
		if t := r.tasks[id]; t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memTaskRepo) sortedIDs() []int64 {
	ids := make([]int64, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *memTaskRepo) with(id int64, fn func(t *models.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, repositories.ErrNotFound)
	}
	fn(t)
	return nil
}

func (r *memTaskRepo) UpdateContent(_ context.Context, id int64, content string) error {
	return r.with(id, func(t *models.Task) { t.Content = content })
}

func (r *memTaskRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, repositories.ErrNotFound)
	}
	delete(r.tasks, id)
	return nil
}

func (r *memTaskRepo) UpdateTime(_ context.Context, id int64, u repositories.TimeUpdate) error {
	return r.with(id, func(t *models.Task) {
		t.TimeType = u.Type
		if !u.KeepValue {
			t.TimeValue = u.Value
		}
		if !u.KeepOffset {
			t.ReminderOffset = u.Offset
		}
	})
}

func (r *memTaskRepo) UpdateReminderOffset(_ context.Context, id int64, offset *int) error {
	return r.with(id, func(t *models.Task) { t.ReminderOffset = offset })
}

func (r *memTaskRepo) ResolvePendingTime(_ context.Context, id int64, pending string, resolved models.TimeValue) (bool, error) {
	if r.beforeResolve != nil {
		r.beforeResolve(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || !t.TimeValue.IsPending() || t.TimeValue.Phrase() != pending {
		return false, nil
	}
	t.TimeValue = resolved
	return true, nil
}

func (r *memTaskRepo) ListDueCandidates(_ context.Context) ([]models.DueCandidate, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	var out []models.DueCandidate
	for _, id := range r.sortedIDs() {
		t := r.tasks[id]
		if t.TimeType == models.TimeTypeNone || t.TimeValue.IsEmpty() || t.ReminderOffset == nil || t.ReminderSent {
			continue
		}
		c := models.DueCandidate{Task: *t}
		if u, err := r.users.GetByID(context.Background(), t.UserID); err == nil {
			c.OwnerFound = true
			c.PhoneNumber, c.PhoneVerified, c.TimeZone = u.PhoneNumber, u.PhoneVerified, u.TimeZone
		}
		out = append(out, c)
	}
	r.mu.Unlock()
	if r.afterList != nil {
		r.afterList()
	}
	return out, nil
}

func (r *memTaskRepo) ReminderSent(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return false, fmt.Errorf("task %d: %w", id, repositories.ErrNotFound)
	}
	return t.ReminderSent, nil
}

func (r *memTaskRepo) MarkReminderSent(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.ReminderSent {
		return false, nil
	}
	t.ReminderSent = true
	return true, nil
}

type sentMsg struct {
	To, Body string
}

// fakeSender records every attempt. failNext makes the next n attempts
// fail; sends to blockTo wait for the context to expire.
type fakeSender struct {
	mu       sync.Mutex
	attempts []sentMsg
	failNext int
	blockTo  string
}

func (s *fakeSender) Send(ctx context.Context, to, body string) error {
	if to == s.blockTo {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, sentMsg{To: to, Body: body})
	if s.failNext > 0 {
		s.failNext--
		return errors.New("gateway down")
	}
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

type fakeAlerts struct {
	mu    sync.Mutex
	kinds []string
}

func (a *fakeAlerts) Notify(kind, subject, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kinds = append(a.kinds, kind)
}

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (m *fakeMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.sent = append(m.sent, msgs...)
	return m.err
}

// harness wires the real task store and reminder sweep over in-memory
// repositories with a controllable clock.
type harness struct {
	users  *memUserRepo
	repo   *memTaskRepo
	sender *fakeSender
	alerts *fakeAlerts
	times  *TimeService
	tasks  TaskService
	rem    *ReminderService
	clock  time.Time
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	h := &harness{
		users:  newMemUserRepo(),
		sender: &fakeSender{},
		alerts: &fakeAlerts{},
		clock:  now,
	}
	h.repo = newMemTaskRepo(h.users)
	h.times = NewTimeService(timeparse.New(timeparse.DefaultPMBelowHour), "UTC")
	h.times.now = h.now

	ts := NewTaskService(h.repo, h.users, h.times).(*taskService)
	ts.now = h.now
	h.tasks = ts

	h.rem = NewReminderService(ts, h.sender, h.alerts, 50*time.Millisecond)
	h.rem.now = h.now
	return h
}

func (h *harness) now() time.Time { return h.clock }

func (h *harness) storeRaw(t *testing.T, task models.Task) int64 {
	t.Helper()
	if err := h.repo.Store(context.Background(), &task); err != nil {
		t.Fatalf("store: %v", err)
	}
	return task.ID
}

func (h *harness) sweep(t *testing.T) *SweepReport {
	t.Helper()
	rep, err := h.rem.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	return rep
}

func intPtr(v int) *int { return &v }

func mustContain(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("%q does not contain %q", s, sub)
	}
}
