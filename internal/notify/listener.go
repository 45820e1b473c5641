// Package notify turns Postgres change notifications into cache
// invalidations.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dealerops/incentive-engine/internal/config"
)

// DefaultChannel is the channel the schema triggers publish on.
const DefaultChannel = "metrics_changed"

// Conn is the subset of *pgx.Conn the listener uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// ConnectFunc opens a dedicated connection for LISTEN.
type ConnectFunc func(ctx context.Context) (Conn, error)

// Invalidator is what a notification invalidates. *cache.Cache and *service.Service satisfy it.
type Invalidator interface {
	Invalidate(departmentID uuid.UUID)
	InvalidateAll()
}

// Payload is the JSON body published by notify_metrics_changed().
type Payload struct {
	Table        string    `json:"table"`
	Op           string    `json:"op"`
	DepartmentID uuid.UUID `json:"department_id"`
}

// Listener keeps a LISTEN connection open and forwards every notification
// to its Invalidator, reconnecting with exponential backoff.
type Listener struct {
	connect  ConnectFunc
	target   Invalidator
	channel  string
	baseWait time.Duration
	maxWait  time.Duration
	logger   *slog.Logger
}

// PgxConnector dials a plain pgx connection from a DSN.
func PgxConnector(dsn string) ConnectFunc {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// NewListener creates a listener from the notify config section.
func NewListener(connect ConnectFunc, target Invalidator, cfg config.NotifyConfig) *Listener {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	base := cfg.RetryBaseWait
	if base <= 0 {
		base = time.Second
	}
	maxWait := cfg.RetryMaxWait
	if maxWait < base {
		maxWait = base
	}
	return &Listener{
		connect:  connect,
		target:   target,
		channel:  channel,
		baseWait: base,
		maxWait:  maxWait,
		logger: slog.Default().With(
			slog.String("service", "notify-listener"),
			slog.String("channel", channel),
		),
	}
}

// Run listens until ctx is cancelled. Every reconnect invalidates the whole
// cache, since notifications sent while disconnected are lost.
func (l *Listener) Run(ctx context.Context) error {
	for attempt := 0; ; {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("listener stopped")
			return ctx.Err()
		}

		if errors.Is(err, errSessionLost) {
			attempt = 0
		}
		backoff := l.calculateBackoff(attempt)
		l.logger.Warn("listen connection lost",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt+1),
			slog.Int("backoff_ms", int(backoff.Milliseconds())))
		attempt++

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			l.logger.Info("listener stopped")
			return ctx.Err()
		}
	}
}

// errSessionLost marks a failure after a successful LISTEN, which resets the
// backoff.
var errSessionLost = errors.New("listen session lost")

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info("listening for changes")

	// Anything written before LISTEN took effect was never seen.
	l.target.InvalidateAll()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", errSessionLost, err)
		}
		l.Handle(n.Payload)
	}
}

// Handle applies one notification payload.
func (l *Listener) Handle(payload string) {
	var p Payload
	if err := json.Unmarshal([]byte(payload), &p); err != nil || p.DepartmentID == uuid.Nil {
		l.logger.Warn("undecodable notification, invalidating everything",
			slog.String("payload", payload))
		l.target.InvalidateAll()
		return
	}
	l.logger.Debug("change notification",
		slog.String("table", p.Table),
		slog.String("op", p.Op),
		slog.String("department_id", p.DepartmentID.String()))
	l.target.Invalidate(p.DepartmentID)
}

// calculateBackoff returns min(base * 2^attempt + jitter, maxWait), with
// jitter up to a tenth of the exponential term.
func (l *Listener) calculateBackoff(attempt int) time.Duration {
	exponentialMs := l.baseWait.Milliseconds() * int64(math.Pow(2, float64(min(attempt, 30))))
	jitterMs := rand.Int63n(exponentialMs/10 + 1)

	totalMs := exponentialMs + jitterMs
	if maxMs := l.maxWait.Milliseconds(); totalMs > maxMs {
		totalMs = maxMs
	}
	return time.Duration(totalMs) * time.Millisecond
}
