package network

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

// PostgresObservationStore persists network observations in PostgreSQL.
type PostgresObservationStore struct {
	pool postgres.Querier
	sb   sq.StatementBuilderType
}

func NewPostgresObservationStore(pool postgres.Querier) *PostgresObservationStore {
	return &PostgresObservationStore{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const obsColumns = `id, owner_kind, owner_id, real_ip, ip_hash, country, city,
	isp, org, asn, vpn, tor, first_seen, last_seen`

type obsRow struct {
	ID        uuid.UUID `db:"id"`
	OwnerKind string    `db:"owner_kind"`
	OwnerID   uuid.UUID `db:"owner_id"`
	RealIP    string    `db:"real_ip"`
	IPHash    string    `db:"ip_hash"`
	Country   string    `db:"country"`
	City      string    `db:"city"`
	ISP       string    `db:"isp"`
	Org       string    `db:"org"`
	ASN       string    `db:"asn"`
	VPN       bool      `db:"vpn"`
	Tor       bool      `db:"tor"`
	FirstSeen time.Time `db:"first_seen"`
	LastSeen  time.Time `db:"last_seen"`
}

func (s *PostgresObservationStore) Upsert(ctx context.Context, obs *Observation) error {
	id := obs.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query, args, err := s.sb.Insert("network_observations").
		Columns("id", "owner_kind", "owner_id", "real_ip", "ip_hash", "country", "city",
			"isp", "org", "asn", "vpn", "tor", "first_seen", "last_seen").
		Values(id, string(obs.OwnerKind), obs.OwnerID, obs.RealIP, obs.IPHash, obs.Country, obs.City,
			obs.ISP, obs.Org, obs.ASN, obs.VPN, obs.Tor, obs.FirstSeen, obs.LastSeen).
		Suffix(`ON CONFLICT (owner_id, ip_hash) DO UPDATE SET
			last_seen = EXCLUDED.last_seen,
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			isp = EXCLUDED.isp,
			org = EXCLUDED.org,
			asn = EXCLUDED.asn,
			vpn = EXCLUDED.vpn,
			tor = EXCLUDED.tor`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build observation upsert: %w", err)
	}
	if _, err := postgres.QuerierFrom(ctx, s.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert observation: %w", err)
	}
	return nil
}

func (s *PostgresObservationStore) LatestByOwner(ctx context.Context, ownerID uuid.UUID) (*Observation, error) {
	query, args, err := s.sb.Select(obsColumns).
		From("network_observations").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("last_seen DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest select: %w", err)
	}
	var row obsRow
	if err := pgxscan.Get(ctx, postgres.QuerierFrom(ctx, s.pool), &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest observation: %w", err)
	}
	obs := rowToObservation(row)
	return &obs, nil
}

func (s *PostgresObservationStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Observation, error) {
	return s.list(ctx, sq.Eq{"owner_id": ownerID})
}

func (s *PostgresObservationStore) ListByIPHash(ctx context.Context, ipHash string) ([]Observation, error) {
	if ipHash == "" {
		return nil, nil
	}
	return s.list(ctx, sq.Eq{"ip_hash": ipHash})
}

func (s *PostgresObservationStore) list(ctx context.Context, pred any) ([]Observation, error) {
	query, args, err := s.sb.Select(obsColumns).
		From("network_observations").
		Where(pred).
		OrderBy("last_seen DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build observation list: %w", err)
	}
	var rows []obsRow
	if err := pgxscan.Select(ctx, postgres.QuerierFrom(ctx, s.pool), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	out := make([]Observation, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToObservation(row))
	}
	return out, nil
}

func rowToObservation(row obsRow) Observation {
	return Observation{
		ID:        row.ID,
		OwnerKind: OwnerKind(row.OwnerKind),
		OwnerID:   row.OwnerID,
		RealIP:    row.RealIP,
		IPHash:    row.IPHash,
		Country:   row.Country,
		City:      row.City,
		ISP:       row.ISP,
		Org:       row.Org,
		ASN:       row.ASN,
		VPN:       row.VPN,
		Tor:       row.Tor,
		FirstSeen: row.FirstSeen,
		LastSeen:  row.LastSeen,
	}
}
