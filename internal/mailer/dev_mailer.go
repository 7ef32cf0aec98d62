package mailer

import (
	"github.com/coastalkoffix/webapp/pkg/logger"
)

// DevMailer prints codes to the log instead of sending real mail.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationCode(toEmail, code string) error {
	logger.Info("[DEV MAIL] Verification code",
		"to", toEmail,
		"code", code,
	)
	return nil
}

func (d *DevMailer) SendPasswordResetCode(toEmail, code string) error {
	logger.Info("[DEV MAIL] Password reset code",
		"to", toEmail,
		"code", code,
	)
	return nil
}
