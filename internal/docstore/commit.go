package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Commit is one journaled batch.
type Commit struct {
	Seq int64
	ID  string
	Ref DocRef
	Ops []byte // canonical JSON array of operations
}

// CommitBatch applies ops to the referenced document in one transaction.
// A missing document is created. Either every operation is applied and the
// batch is journaled, or nothing changes.
func (s *Store) CommitBatch(ctx context.Context, ref DocRef, ops []WriteOp) error {
	if ref.Collection == "" || ref.ID == "" {
		return fmt.Errorf("commit batch: incomplete document reference %q", ref)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("commit batch: generate id: %w", err)
	}

	journal := make([]any, len(ops))
	for i, op := range ops {
		journal[i] = op.Value()
	}
	opsJSON, err := MarshalCanonical(journal)
	if err != nil {
		return fmt.Errorf("commit batch: encode ops: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	doc, version, err := getTx(ctx, tx, ref)
	if errors.Is(err, ErrNotFound) {
		doc, err = Document{}, nil
	}
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	for i, op := range ops {
		if err := Apply(doc, op); err != nil {
			return fmt.Errorf("commit batch: op %d: %w", i, err)
		}
	}

	body, err := MarshalCanonical(map[string]any(doc))
	if err != nil {
		return fmt.Errorf("commit batch: encode document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, version = excluded.version
	`, ref.Collection, ref.ID, string(body), version+1)
	if err != nil {
		return fmt.Errorf("commit batch: write document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO commits (id, collection, doc_id, ops)
		VALUES (?, ?, ?, ?)
	`, id.String(), ref.Collection, ref.ID, string(opsJSON))
	if err != nil {
		return fmt.Errorf("commit batch: journal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}

// Get returns the referenced document, or ErrNotFound.
func (s *Store) Get(ctx context.Context, ref DocRef) (Document, error) {
	doc, _, err := getTx(ctx, s.db, ref)
	return doc, err
}

// Version returns how many batches have been committed to the document.
// A missing document has version 0.
func (s *Store) Version(ctx context.Context, ref DocRef) (int64, error) {
	_, version, err := getTx(ctx, s.db, ref)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return version, err
}

// Commits returns the journal of a document in commit order.
func (s *Store) Commits(ctx context.Context, ref DocRef) ([]Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, ops FROM commits
		WHERE collection = ? AND doc_id = ?
		ORDER BY seq ASC
	`, ref.Collection, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer rows.Close()

	var out []Commit
	for rows.Next() {
		c := Commit{Ref: ref}
		var ops string
		if err := rows.Scan(&c.Seq, &c.ID, &ops); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		c.Ops = []byte(ops)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return out, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTx(ctx context.Context, q queryRower, ref DocRef) (Document, int64, error) {
	var body string
	var version int64
	err := q.QueryRowContext(ctx, `
		SELECT body, version FROM documents WHERE collection = ? AND id = ?
	`, ref.Collection, ref.ID).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", ref, err)
	}

	doc, err := decodeJSON([]byte(body))
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", ref, err)
	}
	return Document(doc), version, nil
}
