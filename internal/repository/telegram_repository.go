package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/place-better/internal/database"
	"github.com/yourusername/place-better/internal/models"
)

var telegramColumns = []string{"id", "kind", "dataspec", "payload", "received_at"}

// PostgresTelegramStore implements TelegramStore for PostgreSQL
type PostgresTelegramStore struct {
	db *database.DB
}

// NewPostgresTelegramStore creates a new telegram store
func NewPostgresTelegramStore(db *database.DB) TelegramStore {
	return &PostgresTelegramStore{db: db}
}

// Append stores one telegram
func (s *PostgresTelegramStore) Append(ctx context.Context, t *models.RawTelegram) error {
	query := `
		INSERT INTO raw_telegrams (id, kind, dataspec, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.Querier(ctx).Exec(ctx, query, t.ID, t.Kind, t.DataSpec, t.Payload, t.ReceivedAt)
	return storeErr("append telegram", err)
}

// AppendBatch stores telegrams with COPY
func (s *PostgresTelegramStore) AppendBatch(ctx context.Context, telegrams []*models.RawTelegram) error {
	if len(telegrams) == 0 {
		return nil
	}

	rows := make([][]any, len(telegrams))
	for i, t := range telegrams {
		rows[i] = []any{t.ID, t.Kind, t.DataSpec, t.Payload, t.ReceivedAt}
	}

	count, err := s.db.Querier(ctx).CopyFrom(ctx, pgx.Identifier{database.TableTelegrams}, telegramColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return storeErr("batch append telegrams", err)
	}
	if count != int64(len(telegrams)) {
		return fmt.Errorf("inserted %d telegrams, expected %d", count, len(telegrams))
	}
	return nil
}

// Stream iterates matching telegrams in arrival order
func (s *PostgresTelegramStore) Stream(ctx context.Context, filter TelegramFilter, fn func(*models.RawTelegram) error) error {
	where, args := filterClause(filter)
	query := `SELECT id, kind, dataspec, payload, received_at FROM raw_telegrams` + where + ` ORDER BY received_at, id`

	rows, err := s.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return storeErr("stream telegrams", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &models.RawTelegram{}
		if err := rows.Scan(&t.ID, &t.Kind, &t.DataSpec, &t.Payload, &t.ReceivedAt); err != nil {
			return storeErr("scan telegram", err)
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return storeErr("stream telegrams", rows.Err())
}

// Count returns the number of matching telegrams
func (s *PostgresTelegramStore) Count(ctx context.Context, filter TelegramFilter) (int64, error) {
	where, args := filterClause(filter)
	var n int64
	err := s.db.Querier(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM raw_telegrams`+where, args...).Scan(&n)
	if err != nil {
		return 0, storeErr("count telegrams", err)
	}
	return n, nil
}

func filterClause(f TelegramFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(f.Kinds) > 0 {
		args = append(args, f.Kinds)
		clauses = append(clauses, fmt.Sprintf("kind = ANY($%d)", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		clauses = append(clauses, fmt.Sprintf("received_at >= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
