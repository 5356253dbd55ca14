package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/world"
)

// SetDesire records how much desirer values the desired item
func (s *Store) SetDesire(ctx context.Context, desirer, desired int64, benefit world.Benefit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO desires (desirer_id, desired_id, benefit) VALUES (?, ?, ?)
		 ON CONFLICT (desirer_id, desired_id) DO UPDATE SET benefit = excluded.benefit`,
		desirer, desired, float64(benefit),
	)
	if err != nil {
		return fmt.Errorf("failed to set desire %d->%d: %w", desirer, desired, err)
	}
	return nil
}

// Desire loads desirer's desire for an item
func (s *Store) Desire(ctx context.Context, desirer, desired int64) (world.Desire, bool, error) {
	d := world.Desire{DesirerID: desirer}
	var typ string
	var benefit float64
	err := s.db.QueryRowContext(ctx,
		`SELECT n.id, n.name, n.type, d.benefit
		 FROM desires d JOIN nouns n ON n.id = d.desired_id
		 WHERE d.desirer_id = ? AND d.desired_id = ?`, desirer, desired,
	).Scan(&d.Desired.ID, &d.Desired.Name, &typ, &benefit)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Desire{}, false, nil
	}
	if err != nil {
		return world.Desire{}, false, fmt.Errorf("failed to load desire: %w", err)
	}
	d.Desired.Type = world.NounType(typ)
	d.Benefit = world.Benefit(benefit)
	return d, true, nil
}

// DesireCandidates lists desirer's desires valued above minValue, leaving out
// items givenBy already owes desirer.
func (s *Store) DesireCandidates(ctx context.Context, desirer, givenBy int64, minValue float64) ([]world.Desire, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.name, n.type, d.benefit
		 FROM desires d JOIN nouns n ON n.id = d.desired_id
		 WHERE d.desirer_id = ? AND d.benefit > ?
		   AND NOT EXISTS (
		     SELECT 1 FROM obligations o
		     WHERE o.owing_id = ? AND o.owed_id = d.desirer_id AND o.item_id = d.desired_id)
		 ORDER BY n.id`, desirer, minValue, givenBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query desires: %w", err)
	}
	defer rows.Close()

	var out []world.Desire
	for rows.Next() {
		d := world.Desire{DesirerID: desirer}
		var typ string
		var benefit float64
		if err := rows.Scan(&d.Desired.ID, &d.Desired.Name, &typ, &benefit); err != nil {
			return nil, fmt.Errorf("failed to scan desire: %w", err)
		}
		d.Desired.Type = world.NounType(typ)
		d.Benefit = world.Benefit(benefit)
		out = append(out, d)
	}
	return out, rows.Err()
}

var traitColumns = strings.Join(personality.Names(), ", ")

func personalityPlaceholders() string {
	return strings.TrimSuffix(strings.Repeat("?, ", personality.Count), ", ")
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func loadPersonality(ctx context.Context, q queryer, noun int64) (personality.Personality, bool, error) {
	var p personality.Personality
	dest := make([]any, personality.Count)
	for i := range p {
		dest[i] = &p[i]
	}
	err := q.QueryRowContext(ctx, `SELECT `+traitColumns+` FROM personality WHERE noun_id = ?`, noun).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return personality.Personality{}, false, nil
	}
	if err != nil {
		return personality.Personality{}, false, fmt.Errorf("failed to load personality %d: %w", noun, err)
	}
	return p, true, nil
}

func savePersonality(ctx context.Context, q queryer, noun int64, p personality.Personality) error {
	args := make([]any, 0, personality.Count+1)
	args = append(args, noun)
	for _, v := range p {
		args = append(args, v)
	}
	var updates []string
	for _, name := range personality.Names() {
		updates = append(updates, name+" = excluded."+name)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO personality (noun_id, `+traitColumns+`) VALUES (?, `+personalityPlaceholders()+`)
		 ON CONFLICT (noun_id) DO UPDATE SET `+strings.Join(updates, ", "),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to save personality %d: %w", noun, err)
	}
	return nil
}

// SavePersonality stores noun's trait vector
func (s *Store) SavePersonality(ctx context.Context, noun int64, p personality.Personality) error {
	return savePersonality(ctx, s.db, noun, p)
}

// Personality loads noun's trait vector, falling back to a fresh one
func (s *Store) Personality(ctx context.Context, noun int64) (personality.Personality, error) {
	p, ok, err := loadPersonality(ctx, s.db, noun)
	if err != nil {
		return personality.Personality{}, err
	}
	if !ok {
		return personality.New(), nil
	}
	return p, nil
}

// ReinforcePersonality applies personality.Reinforce inside one transaction
func (s *Store) ReinforcePersonality(ctx context.Context, noun int64, traits ...personality.Trait) (personality.Personality, error) {
	var out personality.Personality
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, ok, err := loadPersonality(ctx, tx, noun)
		if err != nil {
			return err
		}
		if !ok {
			p = personality.New()
		}
		out = p.Reinforce(traits...)
		if out == p && ok {
			return nil
		}
		return savePersonality(ctx, tx, noun, out)
	})
	if err != nil {
		return personality.Personality{}, err
	}
	return out, nil
}

// Introduce creates the edge noun -> with at zero affinity if absent
func (s *Store) Introduce(ctx context.Context, noun, with int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO relationships (noun_id, with_noun_id, raw_affinity, conversation_summary)
		 VALUES (?, ?, 0, '')`, noun, with)
	if err != nil {
		return fmt.Errorf("failed to introduce %d to %d: %w", noun, with, err)
	}
	return nil
}

// Relationship loads the edge noun -> with. Absent edges read as zero.
func (s *Store) Relationship(ctx context.Context, noun, with int64) (world.Relationship, error) {
	r := world.Relationship{NounID: noun, WithNounID: with}
	err := s.db.QueryRowContext(ctx,
		`SELECT raw_affinity, conversation_summary FROM relationships WHERE noun_id = ? AND with_noun_id = ?`,
		noun, with,
	).Scan(&r.RawAffinity, &r.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return r, nil
	}
	if err != nil {
		return world.Relationship{}, fmt.Errorf("failed to load relationship %d->%d: %w", noun, with, err)
	}
	return r, nil
}

// ModifyRelationship adds delta to the raw affinity of noun -> with
func (s *Store) ModifyRelationship(ctx context.Context, noun, with int64, delta float64) error {
	return modifyRelationship(ctx, s.db, noun, with, delta)
}

func modifyRelationship(ctx context.Context, q queryer, noun, with int64, delta float64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO relationships (noun_id, with_noun_id, raw_affinity, conversation_summary)
		 VALUES (?, ?, ?, '')
		 ON CONFLICT (noun_id, with_noun_id) DO UPDATE SET raw_affinity = raw_affinity + excluded.raw_affinity`,
		noun, with, delta,
	)
	if err != nil {
		return fmt.Errorf("failed to modify relationship %d->%d: %w", noun, with, err)
	}
	return nil
}

// SetSummary stores noun's running summary of conversations with another
func (s *Store) SetSummary(ctx context.Context, noun, with int64, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships (noun_id, with_noun_id, raw_affinity, conversation_summary)
		 VALUES (?, ?, 0, ?)
		 ON CONFLICT (noun_id, with_noun_id) DO UPDATE SET conversation_summary = excluded.conversation_summary`,
		noun, with, summary,
	)
	if err != nil {
		return fmt.Errorf("failed to set summary %d->%d: %w", noun, with, err)
	}
	return nil
}

// SetGoal makes interest owner's single target of interest
func (s *Store) SetGoal(ctx context.Context, owner, interest int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (noun_id, interest_id) VALUES (?, ?)
		 ON CONFLICT (noun_id) DO UPDATE SET interest_id = excluded.interest_id`,
		owner, interest,
	)
	if err != nil {
		return fmt.Errorf("failed to set goal for %d: %w", owner, err)
	}
	return nil
}

// Goal loads owner's goal
func (s *Store) Goal(ctx context.Context, owner int64) (world.Goal, bool, error) {
	g := world.Goal{OwnerID: owner}
	err := s.db.QueryRowContext(ctx, `SELECT interest_id FROM goals WHERE noun_id = ?`, owner).Scan(&g.InterestID)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Goal{}, false, nil
	}
	if err != nil {
		return world.Goal{}, false, fmt.Errorf("failed to load goal for %d: %w", owner, err)
	}
	return g, true, nil
}
