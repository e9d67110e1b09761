package analyzer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
)

func amt(t *testing.T, s string) statement.Amount {
	t.Helper()
	a, err := statement.AmountFromString(s)
	require.NoError(t, err)
	return a
}

func sampleStatement(t *testing.T) *statement.Statement {
	t.Helper()
	return &statement.Statement{
		Filename: "releve_janvier.csv",
		FileType: statement.FileTypeCSV,
		Metadata: statement.Metadata{
			Balance:     "3312,37",
			BalanceDate: "15/01/2024",
			PeriodStart: "01/01/2024",
			PeriodEnd:   "31/01/2024",
		},
		Transactions: []statement.Transaction{
			{ID: 1, Date: "03/01/2024", Description: "LOYER JANVIER", Debit: amt(t, "450.00")},
			{ID: 2, Date: "05/01/2024", Description: "CARREFOUR PARIS 15", Debit: amt(t, "45.10")},
			{ID: 3, Date: "28/01/2024", Description: "VIREMENT SALAIRE ACME", Credit: amt(t, "1500.00")},
		},
	}
}

func TestAnalyze_TransactionReport(t *testing.T) {
	a := NewReportAnalyzer(nil)

	report, err := a.Analyze(context.Background(), sampleStatement(t), "Où va mon argent ?")
	require.NoError(t, err)

	assert.Contains(t, report, "Requested analysis: Où va mon argent ?")
	assert.Contains(t, report, "Statement releve_janvier.csv: 3 transactions from 01/01/2024 to 31/01/2024.")
	assert.Contains(t, report, "Debit total: €495.10 (2 transactions)")
	assert.Contains(t, report, "Credit total: €1,500.00 (1 transaction)")
	assert.Contains(t, report, "Net movement: €1,004.90")
	assert.Contains(t, report, "Largest debit: €450.00 on 03/01/2024 (LOYER JANVIER)")
	assert.Contains(t, report, "Reported balance: 3312,37 (as of 15/01/2024)")
	assert.Contains(t, report, "1. housing: €450.00 (90.9% of debits)")
	assert.Contains(t, report, "2. groceries: €45.10 (9.1% of debits)")
}

func TestAnalyze_SameInputSameReport(t *testing.T) {
	a := NewReportAnalyzer(nil)

	first, err := a.Analyze(context.Background(), sampleStatement(t), "résumé")
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), sampleStatement(t), "résumé")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyze_RawTextOnly(t *testing.T) {
	a := NewReportAnalyzer(nil)
	stmt := &statement.Statement{
		Filename: "releve.pdf",
		FileType: statement.FileTypePDF,
		RawText:  "PAGE UN\n\nPAGE DEUX",
	}

	report, err := a.Analyze(context.Background(), stmt, "")
	require.NoError(t, err)

	assert.Contains(t, report, "Statement releve.pdf: no parsed transactions.")
	assert.Contains(t, report, "Raw text: 2 pages, 18 characters.")
	assert.False(t, strings.HasPrefix(report, "Requested analysis"))
}

func TestAnalyze_PeriodFallsBackToTransactionDates(t *testing.T) {
	a := NewReportAnalyzer(nil)
	stmt := &statement.Statement{
		Filename: "sans_entete.csv",
		FileType: statement.FileTypeCSV,
		Transactions: []statement.Transaction{
			{ID: 1, Date: "02/01/2024", Description: "COFFEE", Debit: amt(t, "3.50")},
			{ID: 2, Date: "01/01/2024", Description: "TAXI G7", Debit: amt(t, "22.00")},
		},
	}

	report, err := a.Analyze(context.Background(), stmt, "")
	require.NoError(t, err)

	// Source order is preserved, so the "period" follows the file, not
	// chronology.
	assert.Contains(t, report, "2 transactions from 02/01/2024 to 01/01/2024")
}

func TestAnalyze_UncategorizedFallsIntoOther(t *testing.T) {
	a := NewReportAnalyzer(nil)
	stmt := &statement.Statement{
		Filename: "divers.csv",
		FileType: statement.FileTypeCSV,
		Transactions: []statement.Transaction{
			{ID: 1, Date: "01/01/2024", Description: "ACHAT QUELCONQUE", Debit: amt(t, "10.00")},
		},
	}

	report, err := a.Analyze(context.Background(), stmt, "")
	require.NoError(t, err)
	assert.Contains(t, report, "1. other: €10.00 (100.0% of debits)")
}

func TestAnalyze_NilStatement(t *testing.T) {
	a := NewReportAnalyzer(nil)

	_, err := a.Analyze(context.Background(), nil, "x")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAnalyze_CanceledContext(t *testing.T) {
	a := NewReportAnalyzer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, sampleStatement(t), "x")
	assert.ErrorIs(t, err, context.Canceled)
}
