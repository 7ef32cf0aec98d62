package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/coastalkoffix/webapp/internal/domain"
	"github.com/coastalkoffix/webapp/internal/repository"
	"github.com/coastalkoffix/webapp/pkg/events"
	"github.com/coastalkoffix/webapp/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error)
	VerifyRegistration(ctx context.Context, email, code string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, password, confirm string) error
}

type authService struct {
	userRepo repository.UserRepository
	otpRepo  repository.OTPRepository
	eventBus events.Publisher
}

func NewAuthService(
	userRepo repository.UserRepository,
	otpRepo repository.OTPRepository,
	eventBus events.Publisher,
) AuthService {
	return &authService{
		userRepo: userRepo,
		otpRepo:  otpRepo,
		eventBus: eventBus,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// The unique constraint on email resolves concurrent registrations; the
	// loser gets ErrDuplicateEmail.
	user, err := s.userRepo.Create(ctx, req, passwordHash)
	if err != nil {
		return nil, err
	}

	if err := s.issueAndNotify(ctx, user.Email, events.NotifyVerificationCode); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *authService) VerifyRegistration(ctx context.Context, email, code string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)

	if err := s.checkCode(ctx, email, code); err != nil {
		return nil, err
	}

	if err := s.userRepo.MarkVerified(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to mark user as verified: %w", err)
	}

	if err := s.otpRepo.Clear(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to clear codes: %w", err)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load verified user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	if !user.IsVerified {
		return nil, domain.ErrNotVerified
	}

	match, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return nil, domain.ErrBadCredentials
	}

	return user, nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	return s.issueAndNotify(ctx, email, events.NotifyPasswordResetCode)
}

func (s *authService) VerifyResetCode(ctx context.Context, email, code string) error {
	// Same code semantics as registration; success just unlocks the
	// password-entry step, no session and no state change.
	return s.checkCode(ctx, domain.NormalizeEmail(email), code)
}

func (s *authService) ResetPassword(ctx context.Context, email, password, confirm string) error {
	email = domain.NormalizeEmail(email)

	if password != confirm {
		return domain.ErrPasswordMismatch
	}
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}

	passwordHash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, email, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.otpRepo.Clear(ctx, email); err != nil {
		return fmt.Errorf("failed to clear codes: %w", err)
	}

	return nil
}

func (s *authService) checkCode(ctx context.Context, email, code string) error {
	status, err := s.otpRepo.Verify(ctx, email, code)
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}

	switch status {
	case domain.CodeInvalid:
		return domain.ErrInvalidCode
	case domain.CodeExpired:
		return domain.ErrExpiredCode
	}

	return nil
}

// issueAndNotify is the single code-issuance path shared by registration and
// password reset. Issuing must succeed; the notification is queued
// fire-and-forget, so a publish failure is logged and the flow redirects the
// user regardless of delivery.
func (s *authService) issueAndNotify(ctx context.Context, email, notifyType string) error {
	code, err := s.otpRepo.Issue(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to issue one-time code: %w", err)
	}

	ev := events.NotificationEvent{
		Type:      notifyType,
		Recipient: email,
		Code:      code,
		IssuedAt:  time.Now(),
	}
	if err := s.eventBus.Publish(ctx, events.NotifySend, ev); err != nil {
		logger.ErrorContext(ctx, "Failed to queue notification", "error", err, "email", email)
	}

	return nil
}
