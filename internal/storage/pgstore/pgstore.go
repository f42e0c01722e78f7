package pgstore

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/BearBump/ColisBox/internal/models"
)

// PGStore хранит каждую посылку строкой с JSONB-записью.
type PGStore struct {
	db *pgxpool.Pool
}

func New(connString string) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &PGStore{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *PGStore) initSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS packages (
  tracking_number TEXT PRIMARY KEY,
  record          JSONB NOT NULL,
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)
`)
	if err != nil {
		return errors.Wrap(err, "init schema")
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context) ([]models.PackageRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT record FROM packages ORDER BY tracking_number`)
	if err != nil {
		return nil, errors.Wrap(err, "select packages")
	}
	defer rows.Close()

	var out []models.PackageRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scan package")
		}
		var rec models.PackageRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.Wrap(err, "decode package record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}

func (s *PGStore) Save(ctx context.Context, records []models.PackageRecord) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	numbers := make([]string, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "encode package record")
		}
		_, err = tx.Exec(ctx, `
INSERT INTO packages (tracking_number, record, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (tracking_number)
DO UPDATE SET record = EXCLUDED.record, updated_at = now()
`, rec.TrackingNumber, raw)
		if err != nil {
			return errors.Wrap(err, "upsert package")
		}
		numbers = append(numbers, rec.TrackingNumber)
	}

	// Удалённые локально посылки убираем и из таблицы.
	_, err = tx.Exec(ctx, `DELETE FROM packages WHERE NOT (tracking_number = ANY($1))`, numbers)
	if err != nil {
		return errors.Wrap(err, "delete stale packages")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
