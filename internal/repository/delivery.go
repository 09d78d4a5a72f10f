package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/platerelay/platerelay/internal/model"
)

// DeliveryLogRepository provides database access for delivery audit events.
type DeliveryLogRepository struct {
	repo *Repository
}

// NewDeliveryLogRepository creates a new DeliveryLogRepository.
func NewDeliveryLogRepository(repo *Repository) *DeliveryLogRepository {
	return &DeliveryLogRepository{repo: repo}
}

// BulkInsert inserts multiple delivery events with idempotency via
// ON CONFLICT DO NOTHING on the stream event id.
func (r *DeliveryLogRepository) BulkInsert(ctx context.Context, events []*model.DeliveryEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO delivery_log (
			id, event_id, message_id, recipient_chat_id, status, attempts, latency_ms, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.MessageID,
			event.RecipientChatID,
			event.Status,
			event.Attempts,
			event.LatencyMs,
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert delivery event %d: %w", i, err)
		}
	}

	return nil
}

// UpdateDailyStats recalculates and upserts per-day delivery aggregates
// for every day touched by the batch.
func (r *DeliveryLogRepository) UpdateDailyStats(ctx context.Context, events []*model.DeliveryEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, day := range uniqueDays(events) {
		if err := r.upsertDailyStat(ctx, day); err != nil {
			return fmt.Errorf("upsert daily stat %s: %w", day.Format("2006-01-02"), err)
		}
	}

	return nil
}

// ListDailyStats returns aggregates for the most recent days, newest first.
func (r *DeliveryLogRepository) ListDailyStats(ctx context.Context, days int) ([]*model.DeliveryDailyStat, error) {
	if days <= 0 {
		days = 7
	}

	query := `
		SELECT day, delivered, failed, avg_latency_ms, updated_at
		FROM delivery_daily_stats
		ORDER BY day DESC
		LIMIT $1
	`

	rows, err := r.repo.pool.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	defer rows.Close()

	var stats []*model.DeliveryDailyStat
	for rows.Next() {
		var stat model.DeliveryDailyStat
		if err := rows.Scan(&stat.Day, &stat.Delivered, &stat.Failed, &stat.AvgLatencyMs, &stat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stats = append(stats, &stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily stats: %w", err)
	}

	return stats, nil
}

func uniqueDays(events []*model.DeliveryEvent) []time.Time {
	seen := make(map[string]time.Time)
	for _, event := range events {
		day := event.OccurredAt.UTC().Truncate(24 * time.Hour)
		seen[day.Format("2006-01-02")] = day
	}

	days := make([]time.Time, 0, len(seen))
	for _, day := range seen {
		days = append(days, day)
	}
	return days
}

func (r *DeliveryLogRepository) upsertDailyStat(ctx context.Context, day time.Time) error {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	// Recalculate from the source log so the upsert is idempotent under
	// redelivered batches.
	query := `
		INSERT INTO delivery_daily_stats (day, delivered, failed, avg_latency_ms, updated_at)
		SELECT
			$1::date,
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(AVG(latency_ms), 0),
			NOW()
		FROM delivery_log
		WHERE occurred_at >= $2 AND occurred_at < $3
		ON CONFLICT (day) DO UPDATE SET
			delivered      = EXCLUDED.delivered,
			failed         = EXCLUDED.failed,
			avg_latency_ms = EXCLUDED.avg_latency_ms,
			updated_at     = NOW()
	`

	if _, err := r.repo.pool.Exec(ctx, query, start, start, end); err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}

	return nil
}
