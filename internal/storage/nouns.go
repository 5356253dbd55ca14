package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/parley/pkg/world"
)

// CreateNoun inserts a noun and returns it with its new id
func (s *Store) CreateNoun(ctx context.Context, name string, typ world.NounType) (world.Noun, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return world.Noun{}, fmt.Errorf("noun name is required")
	}
	if !typ.Valid() {
		return world.Noun{}, fmt.Errorf("invalid noun type %q", typ)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO nouns (name, type) VALUES (?, ?)`, name, string(typ))
	if err != nil {
		return world.Noun{}, fmt.Errorf("failed to insert noun %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return world.Noun{}, fmt.Errorf("failed to read noun id: %w", err)
	}
	return world.Noun{ID: id, Name: name, Type: typ}, nil
}

// GetNoun loads a noun by id
func (s *Store) GetNoun(ctx context.Context, id int64) (world.Noun, error) {
	var n world.Noun
	var typ string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, type FROM nouns WHERE id = ?`, id).Scan(&n.ID, &n.Name, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Noun{}, fmt.Errorf("noun %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return world.Noun{}, fmt.Errorf("failed to load noun %d: %w", id, err)
	}
	n.Type = world.NounType(typ)
	return n, nil
}

// FindNounByName returns the oldest noun with the given name
func (s *Store) FindNounByName(ctx context.Context, name string) (world.Noun, error) {
	var n world.Noun
	var typ string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type FROM nouns WHERE name = ? ORDER BY id LIMIT 1`, name,
	).Scan(&n.ID, &n.Name, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Noun{}, fmt.Errorf("noun %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return world.Noun{}, fmt.Errorf("failed to find noun %q: %w", name, err)
	}
	n.Type = world.NounType(typ)
	return n, nil
}

// ListNouns returns every noun of typ, or all nouns when typ is empty
func (s *Store) ListNouns(ctx context.Context, typ world.NounType) ([]world.Noun, error) {
	query := `SELECT id, name, type FROM nouns`
	var args []any
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list nouns: %w", err)
	}
	defer rows.Close()

	var out []world.Noun
	for rows.Next() {
		var n world.Noun
		var t string
		if err := rows.Scan(&n.ID, &n.Name, &t); err != nil {
			return nil, fmt.Errorf("failed to scan noun: %w", err)
		}
		n.Type = world.NounType(t)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateConcept adds a taxonomy node. The parent, if any, must exist.
func (s *Store) CreateConcept(ctx context.Context, c world.Concept) (world.Concept, error) {
	if !c.Name.Valid() {
		return world.Concept{}, fmt.Errorf("invalid concept name %q", c.Name)
	}
	if c.ParentID != nil {
		if _, err := s.GetConcept(ctx, *c.ParentID); err != nil {
			return world.Concept{}, fmt.Errorf("concept parent: %w", err)
		}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO concepts (name, as_question, parent_concept_id) VALUES (?, ?, ?)`,
		string(c.Name), c.AsQuestion, nullableID(c.ParentID),
	)
	if err != nil {
		return world.Concept{}, fmt.Errorf("failed to insert concept %q: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return world.Concept{}, fmt.Errorf("failed to read concept id: %w", err)
	}
	c.ID = id
	return c, nil
}

const conceptColumns = `id, name, as_question, parent_concept_id`

func scanConcept(row interface{ Scan(...any) error }) (world.Concept, error) {
	var c world.Concept
	var name string
	var parent sql.NullInt64
	if err := row.Scan(&c.ID, &name, &c.AsQuestion, &parent); err != nil {
		return world.Concept{}, err
	}
	c.Name = world.ConceptName(name)
	if parent.Valid {
		p := parent.Int64
		c.ParentID = &p
	}
	return c, nil
}

// GetConcept loads a concept by id
func (s *Store) GetConcept(ctx context.Context, id int64) (world.Concept, error) {
	c, err := scanConcept(s.db.QueryRowContext(ctx, `SELECT `+conceptColumns+` FROM concepts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return world.Concept{}, fmt.Errorf("concept %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return world.Concept{}, fmt.Errorf("failed to load concept %d: %w", id, err)
	}
	return c, nil
}

// ConceptByName loads a concept by its taxonomy name
func (s *Store) ConceptByName(ctx context.Context, name world.ConceptName) (world.Concept, error) {
	c, err := scanConcept(s.db.QueryRowContext(ctx, `SELECT `+conceptColumns+` FROM concepts WHERE name = ?`, string(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return world.Concept{}, fmt.Errorf("concept %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return world.Concept{}, fmt.Errorf("failed to load concept %q: %w", name, err)
	}
	return c, nil
}

// ListConcepts returns the whole taxonomy
func (s *Store) ListConcepts(ctx context.Context) ([]world.Concept, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+conceptColumns+` FROM concepts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	defer rows.Close()

	var out []world.Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan concept: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
