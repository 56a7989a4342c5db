package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"termtrust/internal/platform/postgres"
	"termtrust/pkg/platform/sentinel"
)

// PostgresStore persists anonymous identities in PostgreSQL. It joins an
// in-flight transaction when one is bound to the context.
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

const anonColumns = `id, token, fingerprint_hash, email, email_verified, trust_score,
	post_count, comment_count, page_views, status, flags, device,
	first_seen, last_seen, merged_user_id, merged_at`

type anonRow struct {
	ID              uuid.UUID  `db:"id"`
	Token           string     `db:"token"`
	FingerprintHash string     `db:"fingerprint_hash"`
	Email           string     `db:"email"`
	EmailVerified   bool       `db:"email_verified"`
	TrustScore      int        `db:"trust_score"`
	PostCount       int        `db:"post_count"`
	CommentCount    int        `db:"comment_count"`
	PageViews       int        `db:"page_views"`
	Status          string     `db:"status"`
	Flags           []byte     `db:"flags"`
	Device          []byte     `db:"device"`
	FirstSeen       time.Time  `db:"first_seen"`
	LastSeen        time.Time  `db:"last_seen"`
	MergedUserID    *uuid.UUID `db:"merged_user_id"`
	MergedAt        *time.Time `db:"merged_at"`
}

func (s *PostgresStore) Create(ctx context.Context, anon *Anonymous) error {
	flags, device, err := marshalBlobs(anon)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Insert("anonymous_identities").
		Columns("id", "token", "fingerprint_hash", "email", "email_verified", "trust_score",
			"post_count", "comment_count", "page_views", "status", "flags", "device",
			"first_seen", "last_seen").
		Values(anon.ID, anon.Token, anon.FingerprintHash, anon.Email, anon.EmailVerified, anon.TrustScore,
			anon.PostCount, anon.CommentCount, anon.PageViews, string(anon.Status), flags, device,
			anon.FirstSeen, anon.LastSeen).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.q(ctx).Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert anonymous identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Anonymous, error) {
	return s.findOne(ctx, sq.Eq{"id": id}, "")
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*Anonymous, error) {
	return s.findOne(ctx, sq.Eq{"token": token}, "")
}

func (s *PostgresStore) FindByFingerprint(ctx context.Context, fingerprintHash string) (*Anonymous, error) {
	if fingerprintHash == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.findOne(ctx, sq.And{
		sq.Eq{"fingerprint_hash": fingerprintHash},
		sq.NotEq{"status": string(StatusMerged)},
	}, "first_seen ASC")
}

func (s *PostgresStore) findOne(ctx context.Context, pred any, orderBy string) (*Anonymous, error) {
	builder := s.sb.Select(anonColumns).
		From("anonymous_identities").
		Where(pred).
		Limit(1)
	if orderBy != "" {
		builder = builder.OrderBy(orderBy)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var row anonRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find anonymous identity: %w", err)
	}
	return rowToAnonymous(row)
}

func (s *PostgresStore) Update(ctx context.Context, anon *Anonymous) error {
	flags, device, err := marshalBlobs(anon)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Update("anonymous_identities").
		Set("fingerprint_hash", anon.FingerprintHash).
		Set("email", anon.Email).
		Set("email_verified", anon.EmailVerified).
		Set("trust_score", anon.TrustScore).
		Set("post_count", anon.PostCount).
		Set("comment_count", anon.CommentCount).
		Set("page_views", anon.PageViews).
		Set("status", string(anon.Status)).
		Set("flags", flags).
		Set("device", device).
		Set("last_seen", anon.LastSeen).
		Where(sq.Eq{"id": anon.ID}).
		Where(sq.NotEq{"status": string(StatusMerged)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := s.q(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update anonymous identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrMerged(ctx, anon.ID)
	}
	return nil
}

func (s *PostgresStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.bump(ctx, id, at, "page_views")
}

func (s *PostgresStore) IncrementCounter(ctx context.Context, id uuid.UUID, kind CounterKind, at time.Time) error {
	switch kind {
	case CounterPosts:
		return s.bump(ctx, id, at, "post_count")
	case CounterComments:
		return s.bump(ctx, id, at, "comment_count")
	}
	return nil
}

func (s *PostgresStore) bump(ctx context.Context, id uuid.UUID, at time.Time, column string) error {
	query, args, err := s.sb.Update("anonymous_identities").
		Set(column, sq.Expr(column+" + 1")).
		Set("last_seen", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build counter update: %w", err)
	}
	tag, err := s.q(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touch anonymous identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error {
	query, args, err := s.sb.Update("anonymous_identities").
		Set("status", string(status)).
		Set("last_seen", at).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": string(StatusMerged)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}
	tag, err := s.q(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrMerged(ctx, id)
	}
	return nil
}

func (s *PostgresStore) AddFlag(ctx context.Context, id uuid.UUID, flag ModerationFlag) error {
	payload, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("marshal flag: %w", err)
	}
	query := `UPDATE anonymous_identities
		SET flags = flags || $2::jsonb
		WHERE id = $1 AND status <> 'merged'`
	tag, err := s.q(ctx).Exec(ctx, query, id, payload)
	if err != nil {
		return fmt.Errorf("append flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrMerged(ctx, id)
	}
	return nil
}

// ClaimMerged relies on the store's transaction isolation for correctness:
// the conditional update succeeds for exactly one caller, and the merge
// engine rolls the surrounding transaction back when it loses the race.
func (s *PostgresStore) ClaimMerged(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	query := `UPDATE anonymous_identities
		SET status = 'merged', merged_user_id = $2, merged_at = $3
		WHERE id = $1 AND merged_user_id IS NULL AND status <> 'merged'`
	tag, err := s.q(ctx).Exec(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("claim merged: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrMerged(ctx, id)
	}
	return nil
}

func (s *PostgresStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Anonymous, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := s.sb.Select(anonColumns).
		From("anonymous_identities").
		Where(sq.Eq{"id": ids}).
		OrderBy("first_seen ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	var rows []anonRow
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list anonymous identities: %w", err)
	}
	out := make([]Anonymous, 0, len(rows))
	for _, row := range rows {
		anon, err := rowToAnonymous(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *anon)
	}
	return out, nil
}

func (s *PostgresStore) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFrom(ctx, s.pool)
}

// missingOrMerged distinguishes the two reasons a guarded update affects zero
// rows; AlreadyMerged reporting depends on this.
func (s *PostgresStore) missingOrMerged(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.q(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM anonymous_identities WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check identity existence: %w", err)
	}
	if exists {
		return sentinel.ErrInvalidState
	}
	return sentinel.ErrNotFound
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func marshalBlobs(anon *Anonymous) (flags, device []byte, err error) {
	fl := anon.Flags
	if fl == nil {
		fl = []ModerationFlag{}
	}
	flags, err = json.Marshal(fl)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal flags: %w", err)
	}
	device, err = json.Marshal(anon.Device)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal device: %w", err)
	}
	return flags, device, nil
}

func rowToAnonymous(row anonRow) (*Anonymous, error) {
	anon := &Anonymous{
		ID:              row.ID,
		Token:           row.Token,
		FingerprintHash: row.FingerprintHash,
		Email:           row.Email,
		EmailVerified:   row.EmailVerified,
		TrustScore:      row.TrustScore,
		PostCount:       row.PostCount,
		CommentCount:    row.CommentCount,
		PageViews:       row.PageViews,
		Status:          Status(row.Status),
		FirstSeen:       row.FirstSeen,
		LastSeen:        row.LastSeen,
		MergedUserID:    row.MergedUserID,
		MergedAt:        row.MergedAt,
	}
	if len(row.Flags) > 0 {
		if err := json.Unmarshal(row.Flags, &anon.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
	}
	if len(row.Device) > 0 {
		if err := json.Unmarshal(row.Device, &anon.Device); err != nil {
			return nil, fmt.Errorf("unmarshal device: %w", err)
		}
	}
	return anon, nil
}
