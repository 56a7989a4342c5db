package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"termtrust/internal/platform/postgres"
)

// PostgresStore persists audit events in PostgreSQL. Save resolves the
// ambient transaction from the context so audit rows commit atomically with
// the mutation they describe.
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

type auditRow struct {
	ID          uuid.UUID  `db:"id"`
	Kind        string     `db:"kind"`
	SubjectKind string     `db:"subject_kind"`
	SubjectID   uuid.UUID  `db:"subject_id"`
	ActorID     *uuid.UUID `db:"actor_id"`
	System      bool       `db:"system"`
	Payload     []byte     `db:"payload"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (s *PostgresStore) Save(ctx context.Context, ev *Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query, args, err := s.sb.Insert("audit_events").
		Columns("id", "kind", "subject_kind", "subject_id", "actor_id", "system", "payload", "created_at").
		Values(ev.ID, string(ev.Kind), string(ev.SubjectKind), ev.SubjectID, ev.ActorID, ev.System, payload, ev.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := postgres.QuerierFrom(ctx, s.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]Event, error) {
	builder := s.sb.Select("id", "kind", "subject_kind", "subject_id", "actor_id", "system", "payload", "created_at").
		From("audit_events").
		Where(sq.Eq{"subject_id": subjectID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit list: %w", err)
	}

	var rows []auditRow
	if err := pgxscan.Select(ctx, postgres.QuerierFrom(ctx, s.pool), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		ev := Event{
			ID:          r.ID,
			Kind:        Kind(r.Kind),
			SubjectKind: SubjectKind(r.SubjectKind),
			SubjectID:   r.SubjectID,
			ActorID:     r.ActorID,
			System:      r.System,
			CreatedAt:   r.CreatedAt,
		}
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("decode audit payload: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}
