package db

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Retry controls how Connect retries a failed ping while the database is
// still starting up.
type Retry struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetry returns the retry policy used by Connect.
func DefaultRetry() Retry {
	return Retry{Attempts: 5, Backoff: 250 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// withRetry runs fn until it succeeds, returns a non-transient error, the
// attempts run out, or ctx is done.
func withRetry(ctx context.Context, r Retry, op string, fn func(context.Context) error) error {
	if r.Attempts <= 0 {
		r.Attempts = 1
	}
	delay := r.Backoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= r.Attempts || ctx.Err() != nil || !IsTransient(err) {
			return err
		}

		zap.L().Warn("db: retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay *= 2
		if r.MaxBackoff > 0 && delay > r.MaxBackoff {
			delay = r.MaxBackoff
		}
	}
}

// IsTransient reports whether err looks like a connection problem that may
// clear up on its own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 57P03 cannot_connect_now: the server is starting up.
		return pgErr.Code == "57P03" || strings.HasPrefix(pgErr.Code, "08")
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"connection refused", "connection reset by peer", "the database system is starting up"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
