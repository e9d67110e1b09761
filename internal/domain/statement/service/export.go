package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
)

// csvTransaction is the export row layout. Amounts render with two decimal
// places and stay blank when the column was absent in the source.
type csvTransaction struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Debit       string `csv:"debit"`
	Credit      string `csv:"credit"`
}

// ExportCSV renders a statement's transactions as a semicolon-delimited CSV
// with a header row. It returns the file bytes and a download filename
// derived from the original upload.
func (s *Service) ExportCSV(ctx context.Context, statementID int64) ([]byte, string, error) {
	ctx, span := s.tracer.Start(ctx, "statement.export_csv")
	defer span.End()

	stmt, err := s.exportableStatement(ctx, statementID)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}

	rows := make([]csvTransaction, len(stmt.Transactions))
	for i, tx := range stmt.Transactions {
		rows[i] = csvTransaction{
			Date:        tx.Date,
			Description: tx.Description,
			Debit:       fixedAmount(tx.Debit),
			Credit:      fixedAmount(tx.Credit),
		}
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = ';'
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(writer)); err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "failed to render CSV export", err)
	}

	s.logger.Info("statement exported",
		"statement_id", statementID,
		"format", "csv",
		"rows", len(rows))

	return buf.Bytes(), exportName(stmt.Filename, "csv"), nil
}

// ExportXLSX renders a statement's transactions onto a Transactions sheet
// in an XLSX workbook. Present amounts are written as numbers so the columns
// stay summable in a spreadsheet.
func (s *Service) ExportXLSX(ctx context.Context, statementID int64) ([]byte, string, error) {
	ctx, span := s.tracer.Start(ctx, "statement.export_xlsx")
	defer span.End()

	start := time.Now()

	stmt, err := s.exportableStatement(ctx, statementID)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}

	f := excelize.NewFile()
	const sheet = "Transactions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, "", apperr.Wrap(apperr.KindInternal, "failed to render XLSX export", err)
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Date", "Description", "Debit", "Credit"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, tx := range stmt.Transactions {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, tx.Date)
		write(2, tx.Description)
		if tx.Debit.Valid() {
			write(3, tx.Debit.Decimal().InexactFloat64())
		}
		if tx.Credit.Valid() {
			write(4, tx.Credit.Decimal().InexactFloat64())
		}

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 12) // date
	_ = f.SetColWidth(sheet, "B", "B", 48) // description
	_ = f.SetColWidth(sheet, "C", "D", 14) // amounts

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "failed to render XLSX export", err)
	}

	s.logger.Info("statement exported",
		"statement_id", statementID,
		"format", "xlsx",
		"rows", len(stmt.Transactions),
		"elapsed_ms", time.Since(start).Milliseconds())

	return buf.Bytes(), exportName(stmt.Filename, "xlsx"), nil
}

// exportableStatement loads a statement and rejects those without a parsed
// transaction table, such as PDF uploads that only carry raw text.
func (s *Service) exportableStatement(ctx context.Context, statementID int64) (*statement.Statement, error) {
	stmt, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if len(stmt.Transactions) == 0 {
		return nil, apperr.New(apperr.KindValidation, "statement has no transactions to export").
			With("statement_id", statementID)
	}
	return stmt, nil
}

// fixedAmount renders a present amount with two decimal places, matching
// the bank's own column formatting. Absent amounts stay blank.
func fixedAmount(a statement.Amount) string {
	if !a.Valid() {
		return ""
	}
	return a.Decimal().StringFixed(2)
}

// exportName derives the download filename from the uploaded one, for
// example releve_janvier.csv becomes releve_janvier_transactions.csv.
func exportName(filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "statement"
	}
	return base + "_transactions." + ext
}
