package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
	"github.com/ledgerline/statement-analyzer/pkg/money"
)

const topCategoryCount = 3

// ReportAnalyzer generates a deterministic textual report for a statement:
// totals, net movement, and the top spending categories. It stands in for a
// model-backed analyzer and keeps the same interface shape so one can be
// swapped in later.
type ReportAnalyzer struct {
	engine *Engine
	logger *slog.Logger
}

// NewReportAnalyzer builds an analyzer over the default category table.
func NewReportAnalyzer(logger *slog.Logger) *ReportAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportAnalyzer{
		engine: NewEngine(DefaultCategories()),
		logger: logger,
	}
}

// Analyze renders the report. The prompt is echoed back at the top so the
// stored response stays self-describing.
func (a *ReportAnalyzer) Analyze(ctx context.Context, stmt *statement.Statement, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if stmt == nil {
		return "", apperr.New(apperr.KindValidation, "no statement to analyze")
	}

	var b strings.Builder
	if prompt != "" {
		fmt.Fprintf(&b, "Requested analysis: %s\n\n", prompt)
	}

	if len(stmt.Transactions) == 0 {
		a.writeRawTextSummary(&b, stmt)
	} else {
		a.writeTransactionSummary(&b, stmt)
	}

	a.logger.Debug("generated analysis report",
		"filename", stmt.Filename,
		"transactions", len(stmt.Transactions),
		"patterns", a.engine.PatternCount(),
	)
	return b.String(), nil
}

// writeRawTextSummary covers statements that carry only extracted text,
// such as paginated documents with no transaction table.
func (a *ReportAnalyzer) writeRawTextSummary(b *strings.Builder, stmt *statement.Statement) {
	pages := strings.Count(stmt.RawText, "\n\n") + 1
	fmt.Fprintf(b, "Statement %s: no parsed transactions.\n", stmt.Filename)
	fmt.Fprintf(b, "Raw text: %d pages, %d characters.\n", pages, len(stmt.RawText))
	writeBalance(b, stmt.Metadata)
}

func (a *ReportAnalyzer) writeTransactionSummary(b *strings.Builder, stmt *statement.Statement) {
	txs := stmt.Transactions
	from, to := periodOf(stmt)
	fmt.Fprintf(b, "Statement %s: %d transactions from %s to %s.\n\n",
		stmt.Filename, len(txs), from, to)

	descriptions := make([]string, len(txs))
	for i, tx := range txs {
		descriptions[i] = tx.Description
	}
	categories := a.engine.MatchBatch(descriptions)

	debitTotal := money.Zero(money.EUR)
	creditTotal := money.Zero(money.EUR)
	debitCount, creditCount := 0, 0
	byCategory := make(map[string]*money.Money)

	var largest *money.Money
	var largestTx statement.Transaction

	for i, tx := range txs {
		if tx.Debit.Valid() {
			amt := money.FromEuros(tx.Debit.Decimal())
			debitTotal = debitTotal.MustAdd(amt)
			debitCount++

			category := categories[i]
			if category == "" {
				category = "other"
			}
			byCategory[category] = byCategory[category].MustAdd(amt)

			if largest == nil || amt.GreaterThan(largest) {
				largest = amt
				largestTx = tx
			}
		}
		if tx.Credit.Valid() {
			creditTotal = creditTotal.MustAdd(money.FromEuros(tx.Credit.Decimal()))
			creditCount++
		}
	}

	fmt.Fprintf(b, "Debit total: %s (%d %s)\n", debitTotal.Display(), debitCount, pluralize(debitCount))
	fmt.Fprintf(b, "Credit total: %s (%d %s)\n", creditTotal.Display(), creditCount, pluralize(creditCount))

	net, _ := creditTotal.Subtract(debitTotal)
	fmt.Fprintf(b, "Net movement: %s\n", net.Display())

	if largest != nil {
		fmt.Fprintf(b, "Largest debit: %s on %s (%s)\n",
			largest.Display(), largestTx.Date, largestTx.Description)
	}
	writeBalance(b, stmt.Metadata)

	writeTopCategories(b, byCategory, debitTotal)
}

func writeBalance(b *strings.Builder, md statement.Metadata) {
	if md.Balance == "" {
		return
	}
	if md.BalanceDate != "" {
		fmt.Fprintf(b, "Reported balance: %s (as of %s)\n", md.Balance, md.BalanceDate)
		return
	}
	fmt.Fprintf(b, "Reported balance: %s\n", md.Balance)
}

func writeTopCategories(b *strings.Builder, byCategory map[string]*money.Money, debitTotal *money.Money) {
	if len(byCategory) == 0 || debitTotal.IsZero() {
		return
	}

	type categoryTotal struct {
		name  string
		total *money.Money
	}
	totals := make([]categoryTotal, 0, len(byCategory))
	for name, total := range byCategory {
		totals = append(totals, categoryTotal{name: name, total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if cmp := totals[i].total.Compare(totals[j].total); cmp != 0 {
			return cmp > 0
		}
		return totals[i].name < totals[j].name
	})

	b.WriteString("\nTop spending categories:\n")
	for i, ct := range totals {
		if i == topCategoryCount {
			break
		}
		share := ct.total.PercentageOf(debitTotal)
		fmt.Fprintf(b, "  %d. %s: %s (%s%% of debits)\n",
			i+1, ct.name, ct.total.Display(), share.StringFixed(1))
	}
}

// periodOf prefers the header-declared period and falls back to the first
// and last transaction dates, which keep source order.
func periodOf(stmt *statement.Statement) (string, string) {
	md := stmt.Metadata
	if md.PeriodStart != "" && md.PeriodEnd != "" {
		return md.PeriodStart, md.PeriodEnd
	}
	txs := stmt.Transactions
	return txs[0].Date, txs[len(txs)-1].Date
}

func pluralize(n int) string {
	if n == 1 {
		return "transaction"
	}
	return "transactions"
}
