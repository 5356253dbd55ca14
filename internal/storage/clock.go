package storage

import (
	"context"
	"fmt"

	"github.com/jwebster45206/parley/pkg/world"
)

// Clock reads the single fantasy_date row
func (s *Store) Clock(ctx context.Context) (world.FantasyDate, error) {
	var d world.FantasyDate
	err := s.db.QueryRowContext(ctx,
		`SELECT date_description, tick FROM fantasy_date LIMIT 1`,
	).Scan(&d.Description, &d.Tick)
	if err != nil {
		return world.FantasyDate{}, fmt.Errorf("failed to read clock: %w", err)
	}
	return d, nil
}

// CurrentTick is a shortcut for Clock().Tick
func (s *Store) CurrentTick(ctx context.Context) (int64, error) {
	d, err := s.Clock(ctx)
	if err != nil {
		return 0, err
	}
	return d.Tick, nil
}

// AdvanceClock moves the clock forward by n ticks. A non-empty description
// replaces the date label.
func (s *Store) AdvanceClock(ctx context.Context, n int64, description string) (world.FantasyDate, error) {
	if n < 0 {
		return world.FantasyDate{}, fmt.Errorf("cannot move the clock backwards by %d", n)
	}
	var d world.FantasyDate
	err := s.db.QueryRowContext(ctx,
		`UPDATE fantasy_date
		 SET tick = tick + ?,
		     date_description = CASE WHEN ? = '' THEN date_description ELSE ? END
		 RETURNING date_description, tick`,
		n, description, description,
	).Scan(&d.Description, &d.Tick)
	if err != nil {
		return world.FantasyDate{}, fmt.Errorf("failed to advance clock: %w", err)
	}
	return d, nil
}
