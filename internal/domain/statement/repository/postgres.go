// Package repository persists statements and their analyses in PostgreSQL.
// Parsed metadata and transactions are stored as JSONB documents next to
// the raw text, so a statement round-trips exactly as it was parsed.
package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it too, so the SQL paths run under test without a server.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// foreignKeyViolation is the PostgreSQL error code raised when an analysis
// references a statement that no longer exists.
const foreignKeyViolation = "23503"

// PostgresRepository implements statement persistence over PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a repository over the given connection.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateStatement inserts a statement and fills in its generated ID and
// upload timestamp.
func (r *PostgresRepository) CreateStatement(ctx context.Context, stmt *statement.Statement) error {
	query := `
		INSERT INTO statements (filename, file_type, raw_text, metadata, transactions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at`

	metadata, err := json.Marshal(stmt.Metadata)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to encode statement metadata", err)
	}
	// A nil slice must land as an empty JSONB array, not SQL NULL.
	transactions := []byte("[]")
	if stmt.Transactions != nil {
		transactions, err = json.Marshal(stmt.Transactions)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to encode statement transactions", err)
		}
	}

	err = r.db.QueryRow(ctx, query,
		stmt.Filename,
		string(stmt.FileType),
		stmt.RawText,
		metadata,
		transactions,
	).Scan(&stmt.ID, &stmt.UploadedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "failed to create statement", err)
	}
	return nil
}

// GetStatement loads one statement with its full parse payload.
func (r *PostgresRepository) GetStatement(ctx context.Context, id int64) (*statement.Statement, error) {
	query := `
		SELECT id, filename, file_type, raw_text, metadata, transactions, uploaded_at
		FROM statements
		WHERE id = $1`

	var (
		stmt         statement.Statement
		fileType     string
		metadata     []byte
		transactions []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&stmt.ID,
		&stmt.Filename,
		&fileType,
		&stmt.RawText,
		&metadata,
		&transactions,
		&stmt.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "statement not found").With("statement_id", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "failed to load statement", err)
	}

	stmt.FileType = statement.FileType(fileType)
	if err := json.Unmarshal(metadata, &stmt.Metadata); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to decode statement metadata", err)
	}
	if err := json.Unmarshal(transactions, &stmt.Transactions); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to decode statement transactions", err)
	}
	return &stmt, nil
}

// ListStatements returns list-view summaries, newest upload first.
func (r *PostgresRepository) ListStatements(ctx context.Context) ([]statement.Summary, error) {
	query := `
		SELECT id, filename, file_type, jsonb_array_length(transactions), uploaded_at
		FROM statements
		ORDER BY uploaded_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "failed to list statements", err)
	}
	defer rows.Close()

	var summaries []statement.Summary
	for rows.Next() {
		var (
			s        statement.Summary
			fileType string
		)
		if err := rows.Scan(&s.ID, &s.Filename, &fileType, &s.TransactionCount, &s.UploadedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabase, "failed to scan statement row", err)
		}
		s.FileType = statement.FileType(fileType)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "failed to iterate statement rows", err)
	}
	return summaries, nil
}

// DeleteStatement removes a statement; its analyses cascade at the schema
// level.
func (r *PostgresRepository) DeleteStatement(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM statements WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "failed to delete statement", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "statement not found").With("statement_id", id)
	}
	return nil
}

// CreateAnalysis inserts an analysis and fills in its generated ID and
// creation timestamp.
func (r *PostgresRepository) CreateAnalysis(ctx context.Context, analysis *statement.Analysis) error {
	query := `
		INSERT INTO analyses (statement_id, prompt, response)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		analysis.StatementID,
		analysis.Prompt,
		analysis.Response,
	).Scan(&analysis.ID, &analysis.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return apperr.New(apperr.KindNotFound, "statement not found").
				With("statement_id", analysis.StatementID)
		}
		return apperr.Wrap(apperr.KindDatabase, "failed to create analysis", err)
	}
	return nil
}

// ListAnalyses returns all analyses of a statement, newest first.
func (r *PostgresRepository) ListAnalyses(ctx context.Context, statementID int64) ([]statement.Analysis, error) {
	query := `
		SELECT id, statement_id, prompt, response, created_at
		FROM analyses
		WHERE statement_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, statementID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "failed to list analyses", err)
	}
	defer rows.Close()

	var analyses []statement.Analysis
	for rows.Next() {
		var a statement.Analysis
		if err := rows.Scan(&a.ID, &a.StatementID, &a.Prompt, &a.Response, &a.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabase, "failed to scan analysis row", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "failed to iterate analysis rows", err)
	}
	return analyses, nil
}
