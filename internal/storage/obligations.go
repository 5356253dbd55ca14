package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jwebster45206/parley/pkg/world"
)

// Obligate records that owing must give owed amount of item by byTick. A
// second promise on the same triple adds to the amount and keeps the later
// deadline.
func (s *Store) Obligate(ctx context.Context, o world.Obligation) error {
	return obligate(ctx, s.db, o)
}

// ObligateAll records every obligation or none of them
func (s *Store) ObligateAll(ctx context.Context, obligations []world.Obligation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, o := range obligations {
			if err := obligate(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func obligate(ctx context.Context, q queryer, o world.Obligation) error {
	if o.Amount <= 0 {
		return fmt.Errorf("obligation amount must be positive, got %d", o.Amount)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO obligations (owed_id, owing_id, amount, item_id, by_tick) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (owed_id, owing_id, item_id) DO UPDATE SET
		   amount = amount + excluded.amount,
		   by_tick = MAX(by_tick, excluded.by_tick)`,
		o.OwedID, o.OwingID, o.Amount, o.ItemID, o.ByTick,
	)
	if err != nil {
		return fmt.Errorf("failed to record obligation: %w", err)
	}
	return nil
}

// Obligation loads the outstanding obligation for a triple
func (s *Store) Obligation(ctx context.Context, owed, owing, item int64) (world.Obligation, bool, error) {
	return getObligation(ctx, s.db, owed, owing, item)
}

func getObligation(ctx context.Context, q queryer, owed, owing, item int64) (world.Obligation, bool, error) {
	o := world.Obligation{OwedID: owed, OwingID: owing, ItemID: item}
	err := q.QueryRowContext(ctx,
		`SELECT amount, by_tick FROM obligations WHERE owed_id = ? AND owing_id = ? AND item_id = ?`,
		owed, owing, item,
	).Scan(&o.Amount, &o.ByTick)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Obligation{}, false, nil
	}
	if err != nil {
		return world.Obligation{}, false, fmt.Errorf("failed to load obligation: %w", err)
	}
	return o, true, nil
}

// Repay credits amount of item given by owing to owed against the matching
// obligation. It returns the amount actually credited and whether the debt
// was cleared. Clearing deletes the row and adds bonus to owed's affinity
// toward owing.
func (s *Store) Repay(ctx context.Context, owed, owing, item int64, amount int, bonus float64) (int, bool, error) {
	if amount <= 0 {
		return 0, false, nil
	}
	var credited int
	var cleared bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		o, ok, err := getObligation(ctx, tx, owed, owing, item)
		if err != nil || !ok {
			return err
		}
		credited = min(amount, o.Amount)
		remaining := o.Amount - credited
		if remaining > 0 {
			_, err := tx.ExecContext(ctx,
				`UPDATE obligations SET amount = ? WHERE owed_id = ? AND owing_id = ? AND item_id = ?`,
				remaining, owed, owing, item)
			if err != nil {
				return fmt.Errorf("failed to reduce obligation: %w", err)
			}
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM obligations WHERE owed_id = ? AND owing_id = ? AND item_id = ?`,
			owed, owing, item); err != nil {
			return fmt.Errorf("failed to clear obligation: %w", err)
		}
		cleared = true
		return modifyRelationship(ctx, tx, owed, owing, bonus)
	})
	if err != nil {
		return 0, false, err
	}
	return credited, cleared, nil
}

// ExpireObligations deletes every obligation of owing due at or before tick
// and applies penalty to each creditor's affinity toward owing.
func (s *Store) ExpireObligations(ctx context.Context, owing, tick int64, penalty float64) ([]world.Obligation, error) {
	var expired []world.Obligation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`DELETE FROM obligations WHERE owing_id = ? AND by_tick <= ?
			 RETURNING owed_id, owing_id, item_id, amount, by_tick`, owing, tick)
		if err != nil {
			return fmt.Errorf("failed to expire obligations: %w", err)
		}
		for rows.Next() {
			var o world.Obligation
			if err := rows.Scan(&o.OwedID, &o.OwingID, &o.ItemID, &o.Amount, &o.ByTick); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan expired obligation: %w", err)
			}
			expired = append(expired, o)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for _, o := range expired {
			if err := modifyRelationship(ctx, tx, o.OwedID, o.OwingID, penalty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// ObligationsOwedBy lists what owing still has to hand over, soonest first
func (s *Store) ObligationsOwedBy(ctx context.Context, owing int64) ([]world.Obligation, error) {
	return s.queryObligations(ctx, `WHERE owing_id = ?`, owing)
}

// ObligationsOwedTo lists what others still owe owed, soonest first
func (s *Store) ObligationsOwedTo(ctx context.Context, owed int64) ([]world.Obligation, error) {
	return s.queryObligations(ctx, `WHERE owed_id = ?`, owed)
}

func (s *Store) queryObligations(ctx context.Context, where string, args ...any) ([]world.Obligation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owed_id, owing_id, item_id, amount, by_tick FROM obligations `+where+` ORDER BY by_tick, item_id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list obligations: %w", err)
	}
	defer rows.Close()

	var out []world.Obligation
	for rows.Next() {
		var o world.Obligation
		if err := rows.Scan(&o.OwedID, &o.OwingID, &o.ItemID, &o.Amount, &o.ByTick); err != nil {
			return nil, fmt.Errorf("failed to scan obligation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
