package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/dbx"
	"github.com/dmitrijs2005/secretvault/internal/migrations"
)

// PostgresStore keeps every collection in one JSONB table keyed by
// (collection, id).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects through pgx and applies the migrations.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := migrations.Up(ctx, db, migrations.DialectPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if _, _, err := splitCollection(collection); err != nil {
		return "", err
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, gen_random_uuid()::text, $2::jsonb)
		RETURNING id
	`, collection, string(body)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, order OrderBy) ([]Document, error) {
	dir := "ASC"
	if order.Desc {
		dir = "DESC"
	}

	var (
		rows *sql.Rows
		err  error
	)
	if order.Field == "" || order.Field == FieldCreatedAt {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, fields, created_at FROM documents
			WHERE collection = $1
			ORDER BY created_at `+dir+`, id `+dir, collection)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, fields, created_at FROM documents
			WHERE collection = $1
			ORDER BY fields -> $2 `+dir+`, created_at `+dir, collection, order.Field)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, common.ErrNotFound)
	}
	return nil
}

// Update merges under a row lock so concurrent merges do not lose fields.
func (s *PostgresStore) Update(ctx context.Context, docPath string, fields Fields) error {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT fields FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
			collection, id).Scan(&raw)

		if errors.Is(err, sql.ErrNoRows) {
			body, err := json.Marshal(Fields{}.merge(fields))
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)`,
				collection, id, string(body))
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", docPath, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock %s: %w", docPath, err)
		}

		current, err := decodeFields(raw)
		if err != nil {
			return err
		}
		body, err := json.Marshal(current.merge(fields))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET fields = $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
			collection, id, string(body))
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", docPath, err)
		}
		return nil
	})
}

func (s *PostgresStore) Get(ctx context.Context, docPath string) (*Document, error) {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fields, created_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", docPath, common.ErrNotFound)
	}
	return doc, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc Document
		raw []byte
		at  time.Time
	)
	if err := row.Scan(&doc.ID, &raw, &at); err != nil {
		return nil, err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	doc.Fields = fields
	doc.CreatedAt = at
	return &doc, nil
}

func decodeFields(raw []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}
