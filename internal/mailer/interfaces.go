package mailer

// Service delivers one-time codes to an external address. Callers treat
// delivery as best-effort; a failed send is logged by the caller, never
// surfaced to the user.
type Service interface {
	SendVerificationCode(toEmail, code string) error
	SendPasswordResetCode(toEmail, code string) error
}
