package parser

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
)

// caStatement is a realistic Crédit Agricole export: metadata header,
// blank spacer line, column headers, then data rows. The balance line uses
// a non-breaking space as the thousands separator, as real exports do.
var caStatement = "MONSIEUR JEAN DUPONT;;;;\n" +
	"Compte de Dépôt carte n° 12345678901;;;;\n" +
	"Solde au 15/01/2024 3 312,37 €;;;;\n" +
	"Liste des opérations en euros effectuées entre le 01/01/2024 et le 31/01/2024;;;;\n" +
	";;;;\n" +
	"Date;Libellé;Débit euros;Crédit euros;\n" +
	"01/01/2024;\"PAIEMENT PAR CARTE SUPERMARCHE\";45,67;;\n" +
	"05/01/2024;\"VIREMENT SALAIRE\nEMPLOYEUR SARL\";;2 500,00;\n" +
	"10/01/2024;\"RETRAIT DAB\";100,00;;\n"

func requireAmount(t *testing.T, got statement.Amount, want string) {
	t.Helper()
	require.True(t, got.Valid(), "expected a present amount, got absent")
	assert.True(t, got.Decimal().Equal(decimal.RequireFromString(want)),
		"expected %s, got %s", want, got.Decimal())
}

func requireAbsent(t *testing.T, got statement.Amount) {
	t.Helper()
	assert.False(t, got.Valid(), "expected absent amount, got %s", got.Decimal())
}

func TestParse_TwoRowStatement(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"01/01/2024;Coffee;3,50;;\n" +
		"02/01/2024;Salary;;1500,00;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)

	first := result.Transactions[0]
	assert.Equal(t, "01/01/2024", first.Date)
	assert.Equal(t, "Coffee", first.Description)
	requireAmount(t, first.Debit, "3.5")
	requireAbsent(t, first.Credit)

	second := result.Transactions[1]
	assert.Equal(t, "02/01/2024", second.Date)
	assert.Equal(t, "Salary", second.Description)
	requireAbsent(t, second.Debit)
	requireAmount(t, second.Credit, "1500")
}

func TestParse_FullStatement(t *testing.T) {
	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(caStatement))
	require.NoError(t, err)

	require.Len(t, result.Transactions, 3)
	assert.Equal(t, caStatement, result.RawText)

	meta := result.Metadata
	assert.Equal(t, "MONSIEUR JEAN DUPONT", meta.AccountHolder)
	assert.Equal(t, "12345678901", meta.AccountNumber)
	assert.Equal(t, "15/01/2024", meta.BalanceDate)
	assert.Equal(t, "3312,37", meta.Balance, "balance keeps its comma, loses its spaces")
	assert.Equal(t, "01/01/2024", meta.PeriodStart)
	assert.Equal(t, "31/01/2024", meta.PeriodEnd)
}

func TestParse_DecodingFallback(t *testing.T) {
	// 0xE9 is é in Latin-1 and an invalid byte sequence in UTF-8.
	input := []byte("Date;Libell\xe9;D\xe9bit euros;Cr\xe9dit euros;\n" +
		"03/01/2024;CR\xcaPERIE ST\xc9PHANE;12,50;;\n")

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse(input)
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "CRÊPERIE STÉPHANE", result.Transactions[0].Description)
	assert.NotContains(t, result.RawText, "�", "no replacement runes after fallback decode")
	assert.Contains(t, result.RawText, "Libellé")
}

func TestParse_UTF8PassesThrough(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"03/01/2024;BOULANGERIE ÉPI D'OR;4,20;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "BOULANGERIE ÉPI D'OR", result.Transactions[0].Description)
}

func TestParse_BOMStripped(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Date;Libellé;Débit euros;Crédit euros;\n"+
		"01/01/2024;Coffee;3,50;;\n")...)

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse(input)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RawText, "Date;"))
	require.Len(t, result.Transactions, 1)
}

func TestParse_EmptyInput(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"no bytes", []byte{}},
		{"whitespace only", []byte("   \n\t\n  ")},
	}

	p := NewParser(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Parse(tt.input)
			assert.Nil(t, result, "a failed parse must not produce a statement")
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindEmptyInput))
		})
	}
}

func TestParse_NoTransactionHeader(t *testing.T) {
	input := "MONSIEUR JEAN DUPONT;;;;\nSome;other;content;here;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindEmptyInput))
}

func TestParse_HeaderButNoValidRows(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"TOTAL;des opérations;145,67;;\n" +
		"pas une date;Coffee;3,50;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindEmptyInput))
}

func TestParse_RowValidityGate(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"01/01/2024;Coffee;3,50;;\n" +
		"1/01/2024;one-digit day;9,99;;\n" +
		"TOTAL;footer line;145,67;;\n" +
		"02/01/2024;Salary;;1500,00;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)

	// Invalid rows are excluded locally; the valid row after them survives.
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "Coffee", result.Transactions[0].Description)
	assert.Equal(t, "Salary", result.Transactions[1].Description)
}

func TestParse_ShortRowsSkipped(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"01/01/2024;only three fields;3,50\n" +
		"02/01/2024;Salary;;1500,00;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "Salary", result.Transactions[0].Description)
}

func TestParse_MultiLineDescription(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"05/01/2024;\"VIREMENT SALAIRE\nEMPLOYEUR SARL\";;2 500,00;\n" +
		"06/01/2024;Next;1,00;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)

	// The quoted description spans two physical lines but stays one row.
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "VIREMENT SALAIRE\nEMPLOYEUR SARL", result.Transactions[0].Description)
	requireAmount(t, result.Transactions[0].Credit, "2500")
}

func TestParse_DelimiterInsideQuotes(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"05/01/2024;\"PRLV SEPA; ref 2024-01\";30,00;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "PRLV SEPA; ref 2024-01", result.Transactions[0].Description)
}

func TestParse_OrderPreserved(t *testing.T) {
	// Rows deliberately out of chronological order: source order wins.
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"10/01/2024;third in time, first in file;1,00;;\n" +
		"01/01/2024;first in time, second in file;2,00;;\n" +
		"05/01/2024;second in time, third in file;3,00;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)

	require.Len(t, result.Transactions, 3)
	assert.Equal(t, "10/01/2024", result.Transactions[0].Date)
	assert.Equal(t, "01/01/2024", result.Transactions[1].Date)
	assert.Equal(t, "05/01/2024", result.Transactions[2].Date)
}

func TestParse_CorruptedHeaderMarker(t *testing.T) {
	// The fallback marker tolerates mangled accents in the header row.
	input := "Date;Libell?;D?bit euros;Cr?dit euros;\n" +
		"01/01/2024;Coffee;3,50;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
}

func TestParse_BothAmountsAbsent(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"01/01/2024;information line;;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)

	// A row may carry neither debit nor credit and is still retained.
	require.Len(t, result.Transactions, 1)
	requireAbsent(t, result.Transactions[0].Debit)
	requireAbsent(t, result.Transactions[0].Credit)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		present bool
	}{
		{"decimal comma", "15,00", "15", true},
		{"space thousands", "3 312,37", "3312.37", true},
		{"grouped thousands", "1 234,56", "1234.56", true},
		{"non-breaking space thousands", "3 312,37", "3312.37", true},
		{"currency suffix stripped", "45,67 €", "45.67", true},
		{"plain integer", "100", "100", true},
		{"trailing comma", "12,", "12", true},
		{"empty is absent", "", "", false},
		{"letters are absent", "n/a", "", false},
		{"double separator is absent", "1.234,56", "", false},
		{"two trailing marks are absent", "12,34,", "", false},
	}

	p := NewParser(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.parseAmount(tt.input)
			if !tt.present {
				requireAbsent(t, got)
				return
			}
			requireAmount(t, got, tt.want)
		})
	}
}

func TestParseAmount_FailureDoesNotAbortRow(t *testing.T) {
	input := "Date;Libellé;Débit euros;Crédit euros;\n" +
		"01/01/2024;weird amount;not-a-number;;\n" +
		"02/01/2024;fine amount;5,00;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	requireAbsent(t, result.Transactions[0].Debit)
	requireAmount(t, result.Transactions[1].Debit, "5")
}

func TestExtractMetadata_HeaderBound(t *testing.T) {
	// Metadata below the configured bound is ignored.
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		sb.WriteString("filler;;;;\n")
	}
	sb.WriteString("MONSIEUR JEAN DUPONT;;;;\n")

	bounded := NewParser(Config{HeaderLines: 5}, nil)
	assert.True(t, bounded.extractMetadata(sb.String()).IsZero())

	wide := NewParser(Config{HeaderLines: 15}, nil)
	assert.Equal(t, "MONSIEUR JEAN DUPONT", wide.extractMetadata(sb.String()).AccountHolder)
}

func TestExtractMetadata_PartialHeader(t *testing.T) {
	// One rule missing its pattern never blocks the others.
	content := "Compte de Dépôt carte n° 98765;;;;\n" +
		"Solde au pas-une-date;;;;\n"

	p := NewParser(DefaultConfig(), nil)
	meta := p.extractMetadata(content)

	assert.Equal(t, "98765", meta.AccountNumber)
	assert.Empty(t, meta.Balance)
	assert.Empty(t, meta.BalanceDate)
	assert.Empty(t, meta.AccountHolder)
}

func TestExtractMetadata_MadameVariant(t *testing.T) {
	p := NewParser(DefaultConfig(), nil)
	meta := p.extractMetadata("MADAME CLAIRE MARTIN;;;;\n")
	assert.Equal(t, "MADAME CLAIRE MARTIN", meta.AccountHolder)
}

func TestParse_MetadataGapStillParsesTransactions(t *testing.T) {
	input := "garbage header line\n" +
		"Date;Libellé;Débit euros;Crédit euros;\n" +
		"01/01/2024;Coffee;3,50;;\n"

	p := NewParser(DefaultConfig(), nil)
	result, err := p.Parse([]byte(input))
	require.NoError(t, err)
	assert.True(t, result.Metadata.IsZero())
	require.Len(t, result.Transactions, 1)
}
