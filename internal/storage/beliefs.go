package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwebster45206/parley/pkg/world"
)

// NewBelief is the input to CreateBelief
type NewBelief struct {
	SubjectID   int64
	RelatedToID *int64
	Concept     world.ConceptName
	Name        string
	Description string
	Trust       float64
}

// CreateBelief inserts a belief and returns it fully resolved
func (s *Store) CreateBelief(ctx context.Context, nb NewBelief) (world.Belief, error) {
	if strings.TrimSpace(nb.Name) == "" {
		return world.Belief{}, fmt.Errorf("belief name is required")
	}
	concept, err := s.ConceptByName(ctx, nb.Concept)
	if err != nil {
		return world.Belief{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO beliefs (subject_id, related_to_id, concept_id, name, description, trust)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nb.SubjectID, nullableID(nb.RelatedToID), concept.ID, nb.Name, nb.Description, nb.Trust,
	)
	if err != nil {
		return world.Belief{}, fmt.Errorf("failed to insert belief %q: %w", nb.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return world.Belief{}, fmt.Errorf("failed to read belief id: %w", err)
	}
	return s.GetBelief(ctx, id)
}

const beliefSelect = `SELECT b.id, b.name, b.description, b.trust,
       s.id, s.name, s.type,
       r.id, r.name, r.type,
       c.id, c.name, c.as_question, c.parent_concept_id
FROM beliefs b
JOIN nouns s ON s.id = b.subject_id
LEFT JOIN nouns r ON r.id = b.related_to_id
JOIN concepts c ON c.id = b.concept_id`

func scanBelief(row interface{ Scan(...any) error }) (world.Belief, error) {
	var b world.Belief
	var subjectType, conceptName string
	var relID sql.NullInt64
	var relName, relType sql.NullString
	var parent sql.NullInt64
	err := row.Scan(
		&b.ID, &b.Name, &b.Description, &b.Trust,
		&b.Subject.ID, &b.Subject.Name, &subjectType,
		&relID, &relName, &relType,
		&b.Concept.ID, &conceptName, &b.Concept.AsQuestion, &parent,
	)
	if err != nil {
		return world.Belief{}, err
	}
	b.Subject.Type = world.NounType(subjectType)
	b.Concept.Name = world.ConceptName(conceptName)
	if parent.Valid {
		p := parent.Int64
		b.Concept.ParentID = &p
	}
	if relID.Valid {
		b.RelatedTo = &world.Noun{ID: relID.Int64, Name: relName.String, Type: world.NounType(relType.String)}
	}
	return b, nil
}

// queryOneBelief runs a belief query, mapping no rows to absence
func (s *Store) queryOneBelief(ctx context.Context, query string, args ...any) (world.Belief, bool, error) {
	b, err := scanBelief(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return world.Belief{}, false, nil
	}
	if err != nil {
		return world.Belief{}, false, fmt.Errorf("failed to query belief: %w", err)
	}
	return b, true, nil
}

func (s *Store) queryBeliefs(ctx context.Context, query string, args ...any) ([]world.Belief, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query beliefs: %w", err)
	}
	defer rows.Close()

	var out []world.Belief
	for rows.Next() {
		b, err := scanBelief(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan belief: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBelief loads a belief by id
func (s *Store) GetBelief(ctx context.Context, id int64) (world.Belief, error) {
	b, ok, err := s.queryOneBelief(ctx, beliefSelect+` WHERE b.id = ?`, id)
	if err != nil {
		return world.Belief{}, err
	}
	if !ok {
		return world.Belief{}, fmt.Errorf("belief %d: %w", id, ErrNotFound)
	}
	return b, nil
}

// AddKnowledge records that knower has learned every belief in ids. Already
// known beliefs keep their original learned_at.
func (s *Store) AddKnowledge(ctx context.Context, knower int64, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UnixNano()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO knowledge (belief_id, noun_id, learned_at) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare knowledge insert: %w", err)
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id, knower, now); err != nil {
				return fmt.Errorf("failed to add belief %d to %d: %w", id, knower, err)
			}
		}
		return nil
	})
}

// Knows reports whether knower has learned the belief
func (s *Store) Knows(ctx context.Context, knower, beliefID int64) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM knowledge WHERE belief_id = ? AND noun_id = ?`, beliefID, knower,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check knowledge: %w", err)
	}
	return true, nil
}

// KnownBeliefs lists everything knower has learned, newest first
func (s *Store) KnownBeliefs(ctx context.Context, knower int64) ([]world.Belief, error) {
	return s.queryBeliefs(ctx, beliefSelect+`
JOIN knowledge k ON k.belief_id = b.id
WHERE k.noun_id = ?
ORDER BY k.learned_at DESC, k.rowid DESC`, knower)
}

// ObserveDescriptions copies observed's description beliefs into observer's
// known set in a single statement.
func (s *Store) ObserveDescriptions(ctx context.Context, observer, observed int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO knowledge (belief_id, noun_id, learned_at)
		 SELECT b.id, ?, ?
		 FROM beliefs b JOIN concepts c ON c.id = b.concept_id
		 WHERE b.subject_id = ? AND c.name = ?`,
		observer, time.Now().UnixNano(), observed, string(world.ConceptDescription),
	)
	if err != nil {
		return fmt.Errorf("failed to observe %d from %d: %w", observed, observer, err)
	}
	return nil
}

// KnowledgeQuery filters NewestKnownBelief
type KnowledgeQuery struct {
	KnownBy    int64
	SubjectID  *int64
	Concept    *world.ConceptName
	NotKnownBy *int64
}

// NewestKnownBelief returns the most recently learned belief matching q
func (s *Store) NewestKnownBelief(ctx context.Context, q KnowledgeQuery) (world.Belief, bool, error) {
	var where []string
	args := []any{q.KnownBy}
	where = append(where, `k.noun_id = ?`)
	if q.SubjectID != nil {
		where = append(where, `b.subject_id = ?`)
		args = append(args, *q.SubjectID)
	}
	if q.Concept != nil {
		where = append(where, `c.name = ?`)
		args = append(args, string(*q.Concept))
	}
	if q.NotKnownBy != nil {
		where = append(where, `NOT EXISTS (SELECT 1 FROM knowledge x WHERE x.belief_id = b.id AND x.noun_id = ?)`)
		args = append(args, *q.NotKnownBy)
	}
	query := beliefSelect + `
JOIN knowledge k ON k.belief_id = b.id
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY k.learned_at DESC, k.rowid DESC
LIMIT 1`
	return s.queryOneBelief(ctx, query, args...)
}

// BeliefCandidate is an unknown belief and whether a third party knows it
type BeliefCandidate struct {
	Belief         world.Belief
	KnownByAskedOf bool
}

// UnknownBeliefsAbout lists beliefs about subject that knower has not learned,
// provided subject is reachable through knower's noun_knowledge.
func (s *Store) UnknownBeliefsAbout(ctx context.Context, knower, subject, askedOf int64) ([]BeliefCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT b.id,
       EXISTS (SELECT 1 FROM knowledge a WHERE a.belief_id = b.id AND a.noun_id = ?)
FROM beliefs b
WHERE b.subject_id = ?
  AND NOT EXISTS (SELECT 1 FROM knowledge k WHERE k.belief_id = b.id AND k.noun_id = ?)
  AND EXISTS (SELECT 1 FROM noun_knowledge nk WHERE nk.knower_id = ? AND nk.noun_id = ?)
ORDER BY b.id`, askedOf, subject, knower, knower, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to query unknown beliefs: %w", err)
	}

	type candidate struct {
		id    int64
		known bool
	}
	var found []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.known); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		found = append(found, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]BeliefCandidate, 0, len(found))
	for _, c := range found {
		b, err := s.GetBelief(ctx, c.id)
		if err != nil {
			return nil, err
		}
		out = append(out, BeliefCandidate{Belief: b, KnownByAskedOf: c.known})
	}
	return out, nil
}

// BeliefAbout returns the newest belief of concept held about subject itself
func (s *Store) BeliefAbout(ctx context.Context, subject int64, concept world.ConceptName) (world.Belief, bool, error) {
	return s.queryOneBelief(ctx, beliefSelect+`
WHERE b.subject_id = ? AND b.related_to_id IS NULL AND c.name = ?
ORDER BY b.id DESC LIMIT 1`, subject, string(concept))
}

// BeliefRelatedTo returns the newest belief of concept subject holds about relatedTo
func (s *Store) BeliefRelatedTo(ctx context.Context, subject, relatedTo int64, concept world.ConceptName) (world.Belief, bool, error) {
	return s.queryOneBelief(ctx, beliefSelect+`
WHERE b.subject_id = ? AND b.related_to_id = ? AND c.name = ?
ORDER BY b.id DESC LIMIT 1`, subject, relatedTo, string(concept))
}
