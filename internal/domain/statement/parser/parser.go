// Package parser extracts structured transactions and account metadata from
// tabular bank statement exports. The layout it understands is the French
// Crédit Agricole CSV format: a free-form metadata header followed by a
// semicolon-delimited transaction table.
package parser

import (
	"encoding/csv"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
)

// Config configures the tabular statement parser.
type Config struct {
	Delimiter   rune // field separator (default ';')
	HeaderLines int  // how many leading lines the metadata scan covers (default 15)
}

// DefaultConfig returns the Crédit Agricole export defaults.
func DefaultConfig() Config {
	return Config{
		Delimiter:   ';',
		HeaderLines: 15,
	}
}

// Result is the outcome of one successful parse.
type Result struct {
	RawText      string
	Metadata     statement.Metadata
	Transactions []statement.Transaction
}

// Parser turns raw statement bytes into an ordered transaction list plus
// best-effort header metadata. It is a pure in-memory computation over the
// input buffer and is safe for concurrent use.
type Parser struct {
	config Config
	logger *slog.Logger
}

// NewParser creates a parser. Zero config fields fall back to defaults; a
// nil logger falls back to slog.Default().
func NewParser(config Config, logger *slog.Logger) *Parser {
	if config.Delimiter == 0 {
		config.Delimiter = ';'
	}
	if config.HeaderLines <= 0 {
		config.HeaderLines = 15
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{config: config, logger: logger}
}

// datePrefixPattern is the row-validity gate: a data row must lead with a
// DD/MM/YYYY token. It discards header remnants, blank lines, and footer
// text that reach the reader.
var datePrefixPattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`)

// Parse decodes and parses a tabular statement. A parse either returns a
// complete Result or a classified error; it never returns partial data.
func (p *Parser) Parse(data []byte) (*Result, error) {
	content, err := decode(data)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.KindEmptyInput, "statement file is empty").
			With("file_size", len(data))
	}

	p.logger.Debug("decoded statement file", "chars", len(content))

	metadata := p.extractMetadata(content)
	transactions := p.parseTransactions(content)

	if len(transactions) == 0 {
		return nil, apperr.New(apperr.KindEmptyInput, "no transactions found in statement").
			With("content_length", len(content))
	}

	p.logger.Info("parsed tabular statement", "transactions", len(transactions))

	return &Result{
		RawText:      content,
		Metadata:     metadata,
		Transactions: transactions,
	}, nil
}

// decode interprets the raw bytes as UTF-8 and falls back to Latin-1, the
// encoding French bank exports still commonly use. The fallback widens each
// byte to its code point, so every input maps to some text; decoding never
// drops bytes silently.
func decode(data []byte) (string, error) {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return string(data), nil
	}

	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	decoded := string(runes)
	if !utf8.ValidString(decoded) {
		return "", apperr.New(apperr.KindDecoding, "unable to decode statement content").
			With("file_size", len(data))
	}
	return decoded, nil
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// parseTransactions locates the transaction table and tokenizes its data
// rows. A missing header yields an empty list, not an error; the caller
// treats zero transactions as the terminal failure.
func (p *Parser) parseTransactions(content string) []statement.Transaction {
	lines := strings.Split(content, "\n")

	start := -1
	for idx, line := range lines {
		// The second marker tolerates encoding corruption of the é in
		// "Libellé".
		if strings.Contains(line, "Date;Libellé;Débit") || strings.Contains(line, "Date;Libell") {
			start = idx + 1
			break
		}
	}
	if start == -1 {
		p.logger.Warn("transaction header not found in statement")
		return nil
	}

	// One reader over the re-joined block: quoted description fields may
	// contain embedded newlines, so a logical row can span physical lines.
	reader := csv.NewReader(strings.NewReader(strings.Join(lines[start:], "\n")))
	reader.Comma = p.config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var transactions []statement.Transaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.logger.Warn("skipping unreadable statement row", "error", err)
			continue
		}

		if len(record) < 4 {
			continue
		}
		date := strings.TrimSpace(record[0])
		if !datePrefixPattern.MatchString(date) {
			continue
		}

		transactions = append(transactions, statement.Transaction{
			Date:        date,
			Description: strings.TrimSpace(record[1]),
			Debit:       p.parseAmount(strings.TrimSpace(record[2])),
			Credit:      p.parseAmount(strings.TrimSpace(record[3])),
		})
	}

	return transactions
}

// parseAmount converts a locale-formatted amount string ("3 312,37") to a
// decimal. Every rune that is not a digit, comma, or period is stripped,
// which removes thousands separators including non-breaking spaces; the
// comma then becomes the decimal point. An empty field is absent; a value
// that still fails to parse degrades to absent with a warning, never an
// error.
func (p *Parser) parseAmount(raw string) statement.Amount {
	if raw == "" {
		return statement.Amount{}
	}

	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	// A bare trailing decimal mark ("12,") still denotes a whole amount.
	if strings.HasSuffix(cleaned, ".") && strings.Count(cleaned, ".") == 1 {
		cleaned = strings.TrimSuffix(cleaned, ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		p.logger.Warn("could not parse amount", "value", raw)
		return statement.Amount{}
	}
	return statement.AmountFrom(d)
}
