package repository

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coastalkoffix/webapp/internal/domain"
)

type OTPRepository interface {
	// Issue generates a fresh code for the email, replacing any prior codes,
	// and returns it for delivery.
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) (domain.CodeStatus, error)
	Clear(ctx context.Context, email string) error
}

type otpRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

func (r *otpRepository) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// Old codes for the email die when a new one is issued.
	if _, err := r.pool.Exec(ctx, `DELETE FROM one_time_codes WHERE email = $1`, email); err != nil {
		return "", err
	}

	const q = `INSERT INTO one_time_codes (email, code, expires_at) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, q, email, code, time.Now().Add(domain.CodeTTL)); err != nil {
		return "", err
	}

	return code, nil
}

func (r *otpRepository) Verify(ctx context.Context, email, code string) (domain.CodeStatus, error) {
	const q = `SELECT expires_at FROM one_time_codes WHERE email = $1 AND code = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, q, email, code).Scan(&expiresAt)
	if err == pgx.ErrNoRows {
		return domain.CodeInvalid, nil
	}
	if err != nil {
		return domain.CodeInvalid, err
	}

	// The boundary itself counts as expired. Expired rows are left in
	// place; the next Issue or Clear removes them.
	if !time.Now().Before(expiresAt) {
		return domain.CodeExpired, nil
	}

	return domain.CodeConsumed, nil
}

func (r *otpRepository) Clear(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `DELETE FROM one_time_codes WHERE email = $1`, email)
	return err
}

// generateCode draws a 4-digit code uniformly from 1000-9999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}
