package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"termtrust/internal/platform/postgres"
	"termtrust/pkg/platform/sentinel"
)

// PostgresUserStore reads registered accounts. The table is owned by the auth
// collaborator; this store only upserts the projection it needs and looks up.
type PostgresUserStore struct {
	pool postgres.Querier
	sb   sq.StatementBuilderType
}

func NewPostgresUserStore(pool postgres.Querier) *PostgresUserStore {
	return &PostgresUserStore{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type userRow struct {
	ID        uuid.UUID `db:"id"`
	Username  string    `db:"username"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *PostgresUserStore) Save(ctx context.Context, user Registered) error {
	query, args, err := s.sb.Insert("registered_identities").
		Columns("id", "username", "role", "created_at").
		Values(user.ID, user.Username, string(user.Role), user.CreatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, role = EXCLUDED.role").
		ToSql()
	if err != nil {
		return fmt.Errorf("build user upsert: %w", err)
	}
	if _, err := postgres.QuerierFrom(ctx, s.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save registered identity: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id uuid.UUID) (*Registered, error) {
	return s.findOne(ctx, sq.Eq{"id": id})
}

func (s *PostgresUserStore) FindByUsername(ctx context.Context, username string) (*Registered, error) {
	return s.findOne(ctx, sq.Eq{"username": username})
}

func (s *PostgresUserStore) findOne(ctx context.Context, pred any) (*Registered, error) {
	query, args, err := s.sb.Select("id", "username", "role", "created_at").
		From("registered_identities").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user select: %w", err)
	}
	var row userRow
	if err := pgxscan.Get(ctx, postgres.QuerierFrom(ctx, s.pool), &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find registered identity: %w", err)
	}
	return &Registered{
		ID:        row.ID,
		Username:  row.Username,
		Role:      Role(row.Role),
		CreatedAt: row.CreatedAt,
	}, nil
}
