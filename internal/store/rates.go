package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mgazza/octopus-insights/pkg/rates"
)

const (
	distantPast   int64 = math.MinInt64
	distantFuture int64 = math.MaxInt64
)

// RateStore handles rate record persistence
type RateStore struct {
	db  *DB
	now func() time.Time
}

// NewRateStore creates a new rate store
func NewRateStore(db *DB) *RateStore {
	return &RateStore{db: db, now: time.Now}
}

// Save upserts rs. A record replaces the stored one with the same tariff,
// kind, payment method and start.
func (s *RateStore) Save(ctx context.Context, rs []rates.Rate) error {
	if len(rs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rates (id, tariff_code, kind, payment_method, value_exc_vat, value_inc_vat, valid_from, valid_to, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tariff_code, kind, payment_method, valid_from) DO UPDATE SET
			value_exc_vat = excluded.value_exc_vat,
			value_inc_vat = excluded.value_inc_vat,
			valid_to = excluded.valid_to,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rate insert: %w", err)
	}
	defer stmt.Close()

	fetchedAt := s.now().Unix()
	for _, r := range rs {
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			r.TariffCode,
			string(r.Kind),
			r.PaymentMethod,
			r.ValueExcVat,
			r.ValueIncVat,
			toUnix(r.ValidFrom, distantPast),
			toUnix(r.ValidTo, distantFuture),
			fetchedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save rate for %s: %w", r.TariffCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rates: %w", err)
	}
	return nil
}

// Range returns the stored rates of one series that overlap [from, to),
// ordered by start. An empty paymentMethod matches every method; otherwise
// rates stored without a method match too.
func (s *RateStore) Range(ctx context.Context, tariffCode string, kind rates.Kind, paymentMethod string, from, to time.Time) ([]rates.Rate, error) {
	query := `
		SELECT tariff_code, kind, payment_method, value_exc_vat, value_inc_vat, valid_from, valid_to
		FROM rates
		WHERE tariff_code = ? AND kind = ?
			AND (? = '' OR payment_method = '' OR payment_method = ?)
			AND valid_from < ? AND valid_to > ?
		ORDER BY valid_from
	`

	rows, err := s.db.QueryContext(ctx, query, tariffCode, string(kind), paymentMethod, paymentMethod, to.Unix(), from.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var out []rates.Rate
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rates: %w", err)
	}
	return out, nil
}

// Latest returns the most recently starting rate of a series, matching
// paymentMethod the way Range does.
func (s *RateStore) Latest(ctx context.Context, tariffCode string, kind rates.Kind, paymentMethod string) (rates.Rate, error) {
	query := `
		SELECT tariff_code, kind, payment_method, value_exc_vat, value_inc_vat, valid_from, valid_to
		FROM rates
		WHERE tariff_code = ? AND kind = ?
			AND (? = '' OR payment_method = '' OR payment_method = ?)
		ORDER BY valid_from DESC
		LIMIT 1
	`

	r, err := scanRate(s.db.QueryRowContext(ctx, query, tariffCode, string(kind), paymentMethod, paymentMethod))
	if errors.Is(err, sql.ErrNoRows) {
		return rates.Rate{}, ErrNotFound
	}
	if err != nil {
		return rates.Rate{}, err
	}
	return r, nil
}

// Purge deletes every stored rate for a tariff and reports how many went.
func (s *RateStore) Purge(ctx context.Context, tariffCode string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rates WHERE tariff_code = ?`, tariffCode)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rates: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRate(row scanner) (rates.Rate, error) {
	var (
		r          rates.Rate
		kind       string
		from, till int64
	)
	err := row.Scan(&r.TariffCode, &kind, &r.PaymentMethod, &r.ValueExcVat, &r.ValueIncVat, &from, &till)
	if errors.Is(err, sql.ErrNoRows) {
		return rates.Rate{}, err
	}
	if err != nil {
		return rates.Rate{}, fmt.Errorf("failed to scan rate: %w", err)
	}
	r.Kind = rates.Kind(kind)
	r.ValidFrom = fromUnix(from, distantPast)
	r.ValidTo = fromUnix(till, distantFuture)
	return r, nil
}

func toUnix(t *time.Time, open int64) int64 {
	if t == nil {
		return open
	}
	return t.Unix()
}

func fromUnix(v, open int64) *time.Time {
	if v == open {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
