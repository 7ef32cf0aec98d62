package domain

import "time"

// CodeTTL is the window during which an issued code can be consumed.
const CodeTTL = 5 * time.Minute

// CodeStatus is the outcome of checking a submitted one-time code.
type CodeStatus int

const (
	CodeConsumed CodeStatus = iota
	CodeInvalid
	CodeExpired
)

func (s CodeStatus) String() string {
	switch s {
	case CodeConsumed:
		return "consumed"
	case CodeInvalid:
		return "invalid"
	case CodeExpired:
		return "expired"
	default:
		return "unknown"
	}
}

type OneTimeCode struct {
	ID        int64
	Email     string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}
