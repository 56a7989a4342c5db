package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"termtrust/internal/platform/postgres"
)

// kindTables maps content kinds to their tables. Reactions and messages are
// optional in older deployments; a missing table counts as zero rows.
var kindTables = map[Kind]string{
	KindPost:     "posts",
	KindComment:  "comments",
	KindReaction: "reactions",
	KindMessage:  "direct_messages",
	KindLogEntry: "activity_log",
}

// PostgresStore persists activity records across the per-kind content tables.
// Every table carries the same ownership columns: anonymous_id, user_id,
// author_type.
type PostgresStore struct {
	pool postgres.Querier
	sb   sq.StatementBuilderType
}

func NewPostgresStore(pool postgres.Querier) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type recordRow struct {
	ID          uuid.UUID  `db:"id"`
	AuthorType  string     `db:"author_type"`
	AnonymousID *uuid.UUID `db:"anonymous_id"`
	UserID      *uuid.UUID `db:"user_id"`
	Body        string     `db:"body"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	table, ok := kindTables[rec.Kind]
	if !ok {
		return fmt.Errorf("unknown activity kind %q", rec.Kind)
	}
	query, args, err := s.sb.Insert(table).
		Columns("id", "author_type", "anonymous_id", "user_id", "body", "created_at").
		Values(rec.ID, string(rec.AuthorType), rec.AnonymousID, rec.UserID, rec.Body, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build activity insert: %w", err)
	}
	if _, err := postgres.QuerierFrom(ctx, s.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) ListByAnonymous(ctx context.Context, anonID uuid.UUID, kind Kind, limit int) ([]Record, error) {
	table, ok := kindTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown activity kind %q", kind)
	}
	builder := s.sb.Select("id", "author_type", "anonymous_id", "user_id", "body", "created_at").
		From(table).
		Where(sq.Eq{"anonymous_id": anonID, "author_type": string(AuthorAnonymous)}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build activity list: %w", err)
	}
	var rows []recordRow
	if err := pgxscan.Select(ctx, postgres.QuerierFrom(ctx, s.pool), &rows, query, args...); err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, Record{
			ID:          row.ID,
			Kind:        kind,
			AuthorType:  AuthorType(row.AuthorType),
			AnonymousID: row.AnonymousID,
			UserID:      row.UserID,
			Body:        row.Body,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) CountByAnonymousBefore(ctx context.Context, anonID uuid.UUID, kind Kind, cutoff time.Time) (int, error) {
	table, ok := kindTables[kind]
	if !ok {
		return 0, fmt.Errorf("unknown activity kind %q", kind)
	}
	query, args, err := s.sb.Select("COUNT(*)").
		From(table).
		Where(sq.Eq{"anonymous_id": anonID, "author_type": string(AuthorAnonymous)}).
		Where(sq.LtOrEq{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build windowed count: %w", err)
	}
	var count int
	if err := postgres.QuerierFrom(ctx, s.pool).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		if isMissingTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count %s before cutoff: %w", table, err)
	}
	return count, nil
}

func (s *PostgresStore) ReassignOwner(ctx context.Context, kind Kind, anonID, userID uuid.UUID) (int64, error) {
	table, ok := kindTables[kind]
	if !ok {
		return 0, fmt.Errorf("unknown activity kind %q", kind)
	}
	// Probe before updating: an undefined_table error inside the merge
	// transaction would poison it, and a missing optional table must count
	// as zero rows.
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	query, args, err := s.sb.Update(table).
		Set("user_id", userID).
		Set("anonymous_id", nil).
		Set("author_type", string(AuthorRegistered)).
		Where(sq.Eq{"anonymous_id": anonID, "author_type": string(AuthorAnonymous)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reassign: %w", err)
	}
	tag, err := postgres.QuerierFrom(ctx, s.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reassign %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) tableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := postgres.QuerierFrom(ctx, s.pool).QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	return exists, nil
}

func (s *PostgresStore) CountByAnonymous(ctx context.Context, anonID uuid.UUID) (int, error) {
	return s.countAll(ctx, sq.Eq{"anonymous_id": anonID, "author_type": string(AuthorAnonymous)})
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.countAll(ctx, sq.Eq{"user_id": userID, "author_type": string(AuthorRegistered)})
}

func (s *PostgresStore) countAll(ctx context.Context, pred sq.Eq) (int, error) {
	total := 0
	for _, kind := range AllKinds {
		table := kindTables[kind]
		query, args, err := s.sb.Select("COUNT(*)").From(table).Where(pred).ToSql()
		if err != nil {
			return 0, fmt.Errorf("build count: %w", err)
		}
		var count int
		if err := postgres.QuerierFrom(ctx, s.pool).QueryRow(ctx, query, args...).Scan(&count); err != nil {
			if isMissingTable(err) {
				continue
			}
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		total += count
	}
	return total, nil
}

// isMissingTable detects undefined_table so optional content tables degrade
// to zero rows instead of aborting the merge transaction.
func isMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
