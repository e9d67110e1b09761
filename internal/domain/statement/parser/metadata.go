package parser

import (
	"regexp"
	"strings"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
)

// metadataRule is one independent header-extraction rule: match gates the
// line, extract writes at most one field group. Rules never observe each
// other's outcome, so one bank variant's miss cannot poison another's hit.
// Adding a bank format means adding rows here, not branching logic.
type metadataRule struct {
	match   func(line string) bool
	extract func(line string, meta *statement.Metadata)
}

var (
	// The dot after "n" tolerates a mangled degree sign (n°) in either
	// encoding.
	accountNumberPattern = regexp.MustCompile(`n.?\s*(\d+)`)
	// \s does not cover the non-breaking space French exports use as the
	// thousands separator, so the classes list it explicitly.
	balancePattern = regexp.MustCompile(`Solde au (\d{2}/\d{2}/\d{4})[\s\x{00A0}]*([\d\s\x{00A0},]+)`)
	periodPattern  = regexp.MustCompile(`entre le (\d{2}/\d{2}/\d{4}) et le (\d{2}/\d{2}/\d{4})`)
)

var metadataRules = []metadataRule{
	{
		match: func(line string) bool {
			return strings.Contains(line, "MONSIEUR") || strings.Contains(line, "MADAME")
		},
		extract: func(line string, meta *statement.Metadata) {
			meta.AccountHolder = strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(line), ";", ""))
		},
	},
	{
		match: func(line string) bool {
			return strings.Contains(line, "Compte")
		},
		extract: func(line string, meta *statement.Metadata) {
			if m := accountNumberPattern.FindStringSubmatch(line); m != nil {
				meta.AccountNumber = m[1]
			}
		},
	},
	{
		match: func(line string) bool {
			return strings.Contains(line, "Solde au")
		},
		extract: func(line string, meta *statement.Metadata) {
			m := balancePattern.FindStringSubmatch(line)
			if m == nil {
				return
			}
			meta.BalanceDate = m[1]
			// The amount keeps its comma: balance is stored as a raw
			// string with only the grouping spaces removed.
			balance := strings.ReplaceAll(m[2], " ", "")
			balance = strings.ReplaceAll(balance, " ", "")
			meta.Balance = strings.TrimSpace(balance)
		},
	},
	{
		match: func(line string) bool {
			return strings.Contains(line, "Liste des opérations") && strings.Contains(line, "entre le")
		},
		extract: func(line string, meta *statement.Metadata) {
			if m := periodPattern.FindStringSubmatch(line); m != nil {
				meta.PeriodStart = m[1]
				meta.PeriodEnd = m[2]
			}
		},
	},
}

// extractMetadata scans the header region line by line, applying every rule
// whose match fires. Extraction is best-effort: a rule that finds nothing
// leaves its fields unset and never blocks the others or the transaction
// parse.
func (p *Parser) extractMetadata(content string) statement.Metadata {
	var meta statement.Metadata

	lines := strings.Split(content, "\n")
	if len(lines) > p.config.HeaderLines {
		lines = lines[:p.config.HeaderLines]
	}

	for _, line := range lines {
		for _, rule := range metadataRules {
			if rule.match(line) {
				rule.extract(line, &meta)
			}
		}
	}

	return meta
}
