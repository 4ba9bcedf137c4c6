package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskbuddy/internal/models"
)

type memVerifStore struct {
	mu   sync.Mutex
	rows []*models.UserVerification
}

func (m *memVerifStore) Create(_ context.Context, userID, phone, codeHash string, sentAt, expiresAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.rows) + 1)
	m.rows = append(m.rows, &models.UserVerification{
		ID: id, UserID: userID, PhoneNumber: phone, CodeHash: codeHash, SentAt: sentAt, ExpiresAt: expiresAt,
	})
	return id, nil
}

func (m *memVerifStore) GetLatestByUserID(_ context.Context, userID string) (*models.UserVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			cp := *m.rows[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memVerifStore) CountRecentSends(_ context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.UserID == userID && !r.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memVerifStore) IncrementAttempts(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id-1].Attempts++
	return m.rows[id-1].Attempts, nil
}

func (m *memVerifStore) MarkConfirmed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id-1].Confirmed = true
	return nil
}

func (m *memVerifStore) ExpireNow(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id-1].ExpiresAt = time.Time{}
	return nil
}

func newTestSMSService(t *testing.T) (*SMSService, *memUserRepo, *fakeSender, *time.Time) {
	t.Helper()
	users := newMemUserRepo()
	sender := &fakeSender{}
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSMSService(&memVerifStore{}, users, sender, 10*time.Minute)
	s.now = func() time.Time { return clock }
	s.newCode = func() (string, error) { return "123456", nil }
	return s, users, sender, &clock
}

func TestVerificationRoundTrip(t *testing.T) {
	s, users, sender, _ := newTestSMSService(t)
	ctx := context.Background()

	phone, err := s.SendVerificationCode(ctx, "u1", "(555) 123-0001")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if phone != "+15551230001" {
		t.Fatalf("phone = %q", phone)
	}
	mustContain(t, sender.attempts[0].Body, "123456")

	if _, err := s.ConfirmVerificationCode(ctx, "u1", "123456", ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	u, _ := users.GetByID(ctx, "u1")
	if !u.PhoneVerified || u.PhoneNumber != "+15551230001" {
		t.Fatalf("user = %+v", u)
	}
	if _, err := s.ConfirmVerificationCode(ctx, "u1", "123456", ""); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("reuse err = %v", err)
	}
}

func TestVerificationThrottlesResends(t *testing.T) {
	s, _, _, clock := newTestSMSService(t)
	ctx := context.Background()
	for i := 0; i < maxResendsPerWindow; i++ {
		if _, err := s.SendVerificationCode(ctx, "u1", "+15551230001"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if _, err := s.SendVerificationCode(ctx, "u1", "+15551230001"); !errors.Is(err, ErrResendThrottled) {
		t.Fatalf("err = %v", err)
	}
	*clock = clock.Add(resendWindow + time.Second)
	if _, err := s.SendVerificationCode(ctx, "u1", "+15551230001"); err != nil {
		t.Fatalf("send after window: %v", err)
	}
}

func TestVerificationLocksAfterAttempts(t *testing.T) {
	s, _, _, _ := newTestSMSService(t)
	ctx := context.Background()
	if _, err := s.SendVerificationCode(ctx, "u1", "+15551230001"); err != nil {
		t.Fatal(err)
	}
	var err error
	for i := 0; i < maxConfirmAttempts; i++ {
		_, err = s.ConfirmVerificationCode(ctx, "u1", "000000", "")
	}
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.ConfirmVerificationCode(ctx, "u1", "123456", ""); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("right code after lockout err = %v", err)
	}
}

func TestVerificationExpires(t *testing.T) {
	s, _, _, clock := newTestSMSService(t)
	ctx := context.Background()
	if _, err := s.SendVerificationCode(ctx, "u1", "+15551230001"); err != nil {
		t.Fatal(err)
	}
	*clock = clock.Add(11 * time.Minute)
	if _, err := s.ConfirmVerificationCode(ctx, "u1", "123456", ""); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("err = %v", err)
	}
}

func TestVerificationRejectsOtherPhone(t *testing.T) {
	s, _, _, _ := newTestSMSService(t)
	ctx := context.Background()
	if _, err := s.SendVerificationCode(ctx, "u1", "+15551230001"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ConfirmVerificationCode(ctx, "u1", "123456", "+15559999999"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("err = %v", err)
	}
}
