package postgres

import (
	"context"
	"fmt"

	"edurumble-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ledger stores credit entries in Postgres.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Record(ctx context.Context, entry domain.CreditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	var quizID *string
	if entry.QuizID != "" {
		quizID = &entry.QuizID
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO credit_entries (id, user_id, quiz_id, amount, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, quizID, entry.Amount, entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record credit entry: %w", err)
	}
	return nil
}

func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.CreditEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id::text, user_id, quiz_id, amount, reason, created_at
		   FROM credit_entries
		  WHERE user_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query credit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.CreditEntry, 0)
	for rows.Next() {
		var (
			entry  domain.CreditEntry
			quizID *string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &quizID, &entry.Amount, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit entry: %w", err)
		}
		if quizID != nil {
			entry.QuizID = *quizID
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit entries: %w", err)
	}
	return entries, nil
}
