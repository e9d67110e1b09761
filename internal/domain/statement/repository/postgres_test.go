package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

func TestCreateStatement(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO statements`).
		WithArgs("releve.csv", "csv", "raw text", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "uploaded_at"}).AddRow(int64(7), now))

	stmt := &statement.Statement{
		Filename: "releve.csv",
		FileType: statement.FileTypeCSV,
		RawText:  "raw text",
		Transactions: []statement.Transaction{
			{ID: 1, Date: "01/01/2024", Description: "Coffee"},
		},
	}
	err := repo.CreateStatement(context.Background(), stmt)
	require.NoError(t, err)

	assert.Equal(t, int64(7), stmt.ID)
	assert.Equal(t, now, stmt.UploadedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStatement_NilTransactionsStoredAsEmptyArray(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO statements`).
		WithArgs("releve.pdf", "pdf", "PAGE UN", pgxmock.AnyArg(), []byte("[]")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "uploaded_at"}).AddRow(int64(1), time.Now()))

	stmt := &statement.Statement{
		Filename: "releve.pdf",
		FileType: statement.FileTypePDF,
		RawText:  "PAGE UN",
	}
	require.NoError(t, repo.CreateStatement(context.Background(), stmt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatement(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()

	metadata := []byte(`{"account_holder":"MONSIEUR JEAN DUPONT","balance":"3312,37"}`)
	transactions := []byte(`[{"id":1,"date":"01/01/2024","description":"Coffee","debit":3.5,"credit":null}]`)

	mock.ExpectQuery(`SELECT id, filename, file_type, raw_text`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "filename", "file_type", "raw_text", "metadata", "transactions", "uploaded_at",
		}).AddRow(int64(42), "releve.csv", "csv", "raw", metadata, transactions, now))

	stmt, err := repo.GetStatement(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), stmt.ID)
	assert.Equal(t, statement.FileTypeCSV, stmt.FileType)
	assert.Equal(t, "MONSIEUR JEAN DUPONT", stmt.Metadata.AccountHolder)
	assert.Equal(t, "3312,37", stmt.Metadata.Balance)

	require.Len(t, stmt.Transactions, 1)
	tx := stmt.Transactions[0]
	assert.Equal(t, 1, tx.ID)
	assert.Equal(t, "Coffee", tx.Description)
	require.True(t, tx.Debit.Valid())
	assert.Equal(t, "3.5", tx.Debit.Decimal().String())
	assert.False(t, tx.Credit.Valid())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatement_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT id, filename, file_type, raw_text`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetStatement(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStatements(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, filename, file_type, jsonb_array_length`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "filename", "file_type", "jsonb_array_length", "uploaded_at",
		}).
			AddRow(int64(2), "fevrier.csv", "csv", 12, now).
			AddRow(int64(1), "janvier.pdf", "pdf", 0, now.Add(-time.Hour)))

	summaries, err := repo.ListStatements(context.Background())
	require.NoError(t, err)

	require.Len(t, summaries, 2)
	assert.Equal(t, int64(2), summaries[0].ID)
	assert.Equal(t, "fevrier.csv", summaries[0].Filename)
	assert.Equal(t, 12, summaries[0].TransactionCount)
	assert.Equal(t, statement.FileTypePDF, summaries[1].FileType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStatements_Empty(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT id, filename, file_type, jsonb_array_length`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "filename", "file_type", "jsonb_array_length", "uploaded_at",
		}))

	summaries, err := repo.ListStatements(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStatement(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM statements`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.DeleteStatement(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStatement_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM statements`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.DeleteStatement(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAnalysis(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO analyses`).
		WithArgs(int64(42), "what happened", "a report").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

	analysis := &statement.Analysis{
		StatementID: 42,
		Prompt:      "what happened",
		Response:    "a report",
	}
	require.NoError(t, repo.CreateAnalysis(context.Background(), analysis))

	assert.Equal(t, int64(3), analysis.ID)
	assert.Equal(t, now, analysis.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAnalysis_MissingStatement(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO analyses`).
		WithArgs(int64(99), "p", "r").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.CreateAnalysis(context.Background(), &statement.Analysis{
		StatementID: 99, Prompt: "p", Response: "r",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAnalyses(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, statement_id, prompt, response`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "statement_id", "prompt", "response", "created_at",
		}).
			AddRow(int64(2), int64(42), "deuxième", "rapport 2", now).
			AddRow(int64(1), int64(42), "première", "rapport 1", now.Add(-time.Minute)))

	analyses, err := repo.ListAnalyses(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, analyses, 2)
	assert.Equal(t, int64(2), analyses[0].ID)
	assert.Equal(t, "rapport 1", analyses[1].Response)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DatabaseErrorsAreWrapped(t *testing.T) {
	mock, repo := newMockRepo(t)
	boom := errors.New("connection refused")

	mock.ExpectQuery(`SELECT id, filename, file_type, jsonb_array_length`).
		WillReturnError(boom)

	_, err := repo.ListStatements(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindDatabase, apperr.KindOf(err))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
