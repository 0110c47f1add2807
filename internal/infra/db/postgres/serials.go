package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS serial_reservations (
	serial      TEXT PRIMARY KEY,
	reserved_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Execer is the subset of pgxpool.Pool the serial store needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Serials records claimed quotation serials. A serial can be claimed once.
type Serials struct {
	db Execer
}

func NewSerials(db Execer) *Serials { return &Serials{db: db} }

func (s *Serials) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "create serial_reservations")
	}
	return nil
}

// Reserve claims serial and reports whether this caller got it.
func (s *Serials) Reserve(ctx context.Context, serial string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO serial_reservations (serial) VALUES ($1) ON CONFLICT (serial) DO NOTHING`,
		serial,
	)
	if err != nil {
		return false, errors.Wrapf(err, "reserve %s", serial)
	}
	return tag.RowsAffected() == 1, nil
}

// Release drops the claim on serial. Releasing an unclaimed serial is a no-op.
func (s *Serials) Release(ctx context.Context, serial string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM serial_reservations WHERE serial = $1`, serial); err != nil {
		return errors.Wrapf(err, "release %s", serial)
	}
	return nil
}

// Count returns the number of claimed serials.
func (s *Serials) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM serial_reservations`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count serial_reservations")
	}
	return n, nil
}
