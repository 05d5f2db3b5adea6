package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	txcontext "leasepack/pkg/platform/tx"
)

// Outbox writes events to the outbox table. When the context carries a
// transaction the event commits or rolls back with it.
type Outbox struct {
	db *sql.DB
}

func NewOutbox(db *sql.DB) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) execer(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFor(ctx, o.db)
}

func (o *Outbox) Publish(ctx context.Context, event Event) error {
	event = withDefaults(event)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = o.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		"order",
		event.OrderID,
		event.Type,
		payload,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Relay moves unpublished outbox rows to a downstream publisher.
type Relay struct {
	db       *sql.DB
	target   Publisher
	batch    int
	interval time.Duration
	logger   *slog.Logger
}

type RelayOption func(*Relay)

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewRelay(db *sql.DB, target Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		db:       db,
		target:   target,
		batch:    100,
		interval: time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := r.RelayOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay failed", "relayed", n, "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch in created order. Rows are locked with SKIP
// LOCKED so several relays can run side by side. It stops at the first
// publish failure; rows already published in the batch stay marked.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin relay tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, payload FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batch)
	if err != nil {
		return 0, fmt.Errorf("select outbox: %w", err)
	}
	type entry struct {
		id      uuid.UUID
		payload []byte
	}
	var pending []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox: %w", err)
		}
		pending = append(pending, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox: %w", err)
	}

	relayed := 0
	var publishErr error
	for _, e := range pending {
		var event Event
		if err := json.Unmarshal(e.payload, &event); err != nil {
			r.logger.ErrorContext(ctx, "dropping malformed outbox entry", "outbox_id", e.id, "error", err)
		} else if err := r.target.Publish(ctx, event); err != nil {
			publishErr = fmt.Errorf("publish outbox entry %s: %w", e.id, err)
			break
		}
		if _, err := tx.ExecContext(ctx, `UPDATE outbox SET published_at = NOW() WHERE id = $1`, e.id); err != nil {
			return 0, fmt.Errorf("mark outbox published: %w", err)
		}
		relayed++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit relay tx: %w", err)
	}
	return relayed, publishErr
}
