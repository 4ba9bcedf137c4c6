package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskbuddy/internal/models"
	"taskbuddy/internal/repositories"
	"taskbuddy/internal/utils"
)

var (
	ErrResendThrottled  = errors.New("resend throttled")
	ErrTooManyAttempts  = errors.New("too many attempts")
	ErrCodeExpired      = errors.New("code expired")
	ErrCodeInvalid      = errors.New("code invalid")
	ErrPhoneNotVerified = errors.New("phone not verified")
)

const (
	maxResendsPerWindow    = 3
	resendWindow           = 10 * time.Minute
	maxConfirmAttempts     = 5
	defaultVerificationTTL = 10 * time.Minute
)

// VerificationStore keeps one row per code sent.
type VerificationStore interface {
	Create(ctx context.Context, userID, phone, codeHash string, sentAt, expiresAt time.Time) (int64, error)
	GetLatestByUserID(ctx context.Context, userID string) (*models.UserVerification, error)
	CountRecentSends(ctx context.Context, userID string, since time.Time) (int, error)
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	MarkConfirmed(ctx context.Context, id int64) error
	ExpireNow(ctx context.Context, id int64) error
}

// SMSService handles phone verification by SMS code.
type SMSService struct {
	VerifRepo VerificationStore
	Users     repositories.UserRepository
	Sender    NotificationSender
	CodeTTL   time.Duration

	now     func() time.Time
	newCode func() (string, error)
}

func NewSMSService(verifRepo VerificationStore, users repositories.UserRepository, sender NotificationSender, codeTTL time.Duration) *SMSService {
	if codeTTL <= 0 {
		codeTTL = defaultVerificationTTL
	}
	return &SMSService{
		VerifRepo: verifRepo,
		Users:     users,
		Sender:    sender,
		CodeTTL:   codeTTL,
		now:       time.Now,
		newCode:   func() (string, error) { return utils.NewNumericCode(6) },
	}
}

// SendVerificationCode sends a new code (every resend is a new code). Only
// the bcrypt hash is stored. Returns the normalised phone number.
func (s *SMSService) SendVerificationCode(ctx context.Context, userID, rawPhone string) (string, error) {
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}
	if _, err := s.Users.GetOrCreate(ctx, userID); err != nil {
		return "", err
	}

	// at most 3 sends per 10 minutes
	since := s.now().Add(-resendWindow)
	cnt, err := s.VerifRepo.CountRecentSends(ctx, userID, since)
	if err != nil {
		return "", err
	}
	if cnt >= maxResendsPerWindow {
		return "", ErrResendThrottled
	}

	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}

	sentAt := s.now()
	if _, err := s.VerifRepo.Create(ctx, userID, phone, string(codeHash), sentAt, sentAt.Add(s.CodeTTL)); err != nil {
		return "", err
	}

	text := fmt.Sprintf("Your TaskBuddy verification code is %s", code)
	if err := s.Sender.Send(ctx, phone, text); err != nil {
		return "", fmt.Errorf("sms send: %w", err)
	}

	log.Printf("[sms][user][send] user=%s phone=%s", userID, utils.MaskPhone(phone))
	return phone, nil
}

// ConfirmVerificationCode checks code against the latest hash with TTL and
// attempt limits. On success the phone becomes the user's verified number.
// rawPhone is optional; when given it must match the number the code went to.
func (s *SMSService) ConfirmVerificationCode(ctx context.Context, userID, code, rawPhone string) (string, error) {
	v, err := s.VerifRepo.GetLatestByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if v == nil || v.Confirmed {
		return "", ErrCodeInvalid
	}
	if s.now().After(v.ExpiresAt) {
		return "", ErrCodeExpired
	}
	if rawPhone != "" {
		phone, err := utils.NormalizePhone(rawPhone)
		if err != nil || phone != v.PhoneNumber {
			return "", ErrCodeInvalid
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)); err != nil {
		attempts, incErr := s.VerifRepo.IncrementAttempts(ctx, v.ID)
		if incErr != nil {
			return "", incErr
		}
		if attempts >= maxConfirmAttempts {
			_ = s.VerifRepo.ExpireNow(ctx, v.ID)
			return "", ErrTooManyAttempts
		}
		return "", ErrCodeInvalid
	}

	if err := s.VerifRepo.MarkConfirmed(ctx, v.ID); err != nil {
		return "", err
	}
	if err := s.Users.SetVerifiedPhone(ctx, userID, v.PhoneNumber); err != nil {
		return "", err
	}
	log.Printf("[sms][user][confirm] OK user=%s", userID)
	return v.PhoneNumber, nil
}
