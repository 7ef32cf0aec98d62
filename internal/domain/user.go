package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors surfaced to the web layer, which maps them to the
// plain-text messages the site renders.
var (
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrUserNotFound     = errors.New("user not found")
	ErrNotVerified      = errors.New("email not verified")
	ErrBadCredentials   = errors.New("incorrect password")
	ErrInvalidCode      = errors.New("invalid code")
	ErrExpiredCode      = errors.New("code expired")
	ErrPasswordPolicy   = errors.New("password rules not matched")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	MiddleName   string    `json:"middle_name"`
	LastName     string    `json:"last_name"`
	Mobile       string    `json:"mobile"`
	Country      string    `json:"country"`
	State        string    `json:"state"`
	District     string    `json:"district"`
	PinCode      string    `json:"pin_code"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	FirstName  string
	MiddleName string
	LastName   string
	Mobile     string
	Country    string
	State      string
	District   string
	PinCode    string
	Email      string
	Password   string
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Password policy: minimum 6 characters with at least one uppercase letter,
// one lowercase letter, one digit, and one symbol from @$!%*?&.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return ErrPasswordPolicy
	}
	var upper, lower, digit, symbol bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune("@$!%*?&", c):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return ErrPasswordPolicy
	}
	return nil
}

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.MiddleName = strings.TrimSpace(r.MiddleName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.Country = strings.TrimSpace(r.Country)
	r.State = strings.TrimSpace(r.State)
	r.District = strings.TrimSpace(r.District)
	r.PinCode = strings.TrimSpace(r.PinCode)
}

func (r *RegisterRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.FirstName == "" {
		return fmt.Errorf("first name is required")
	}
	return ValidatePassword(r.Password)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
