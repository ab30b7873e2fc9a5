package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anishko/Ekho/internal/domain"
)

// AnalyticsRepo ships conversation analytics to the warehouse. The warehouse
// speaks plain SQL through database/sql so the driver can be swapped without
// touching call sites. Callers treat every failure as non-fatal: analytics
// must never affect the outcome of the primary request.
type AnalyticsRepo struct {
	db *sql.DB
}

// NewAnalyticsRepo creates a repository over an open warehouse connection.
func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo {
	return &AnalyticsRepo{db: db}
}

// Migrate ensures the conversations table exists.
func (r *AnalyticsRepo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS conversations (
    user_id           TEXT NOT NULL,
    emotional_tag     TEXT NOT NULL,
    conversation_mode TEXT NOT NULL,
    sentiment_score   DOUBLE PRECISION NOT NULL,
    country_code      TEXT NOT NULL DEFAULT '',
    timestamp         TIMESTAMPTZ NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("analytics: migrate: %w", err)
	}
	return nil
}

// LogConversation inserts one aggregated conversation record.
func (r *AnalyticsRepo) LogConversation(ctx context.Context, ev domain.ConversationEvent) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (user_id, emotional_tag, conversation_mode, sentiment_score, country_code, timestamp)
VALUES ($1, $2, $3, $4, $5, $6);`,
		ev.UserID,
		ev.EmotionalTag,
		ev.ConversationMode,
		ev.SentimentScore,
		ev.CountryCode,
		ts,
	)
	if err != nil {
		return fmt.Errorf("analytics: insert conversation: %w", err)
	}
	return nil
}

// EmotionalTrends returns the 30-day per-day sentiment trend for a user.
func (r *AnalyticsRepo) EmotionalTrends(ctx context.Context, userID string) ([]domain.EmotionalTrendPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT DATE(timestamp) AS date,
       AVG(sentiment_score) AS avg_emotion,
       COUNT(*) AS conversation_count
FROM conversations
WHERE user_id = $1
  AND timestamp >= NOW() - INTERVAL '30 days'
GROUP BY DATE(timestamp)
ORDER BY date;`, userID)
	if err != nil {
		return nil, fmt.Errorf("analytics: trends query: %w", err)
	}
	defer rows.Close()

	var out []domain.EmotionalTrendPoint
	for rows.Next() {
		var point domain.EmotionalTrendPoint
		if err := rows.Scan(&point.Date, &point.AvgSentiment, &point.ConversationCount); err != nil {
			return nil, fmt.Errorf("analytics: scan trend: %w", err)
		}
		out = append(out, point)
	}
	return out, rows.Err()
}
