package statement

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic statement fixtures using gofakeit.
// Tests and local seeding share it; a fixed seed always yields the same
// documents.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0), // Random seed
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// ============================================================================
// Entity Generation
// ============================================================================

var debitDescriptions = []string{
	"CB CARREFOUR PARIS",
	"CB LECLERC NANTES",
	"CB FNAC PARIS 12",
	"PRLV SEPA EDF",
	"PRLV SEPA ORANGE",
	"PRLV NETFLIX",
	"LOYER APPARTEMENT",
	"CB SNCF INTERNET",
	"RETRAIT DAB PARIS 11",
	"CB BOULANGERIE MARTIN",
	"COTISATION CARTE",
}

var creditDescriptions = []string{
	"VIREMENT SALAIRE",
	"VIREMENT CAF",
	"REMBOURSEMENT SECU",
	"VIREMENT M DUPONT",
}

// Transaction generates a single transaction dated inside January 2024.
// Roughly four out of five rows are debits, mirroring a typical month.
func (g *TestDataGenerator) Transaction(id int) Transaction {
	date := fmt.Sprintf("%02d/01/2024", g.faker.Number(1, 28))

	if g.faker.Number(1, 5) < 5 {
		amount := decimal.NewFromFloat(g.faker.Price(1, 500)).Round(2)
		return Transaction{
			ID:          id,
			Date:        date,
			Description: debitDescriptions[g.faker.Number(0, len(debitDescriptions)-1)],
			Debit:       AmountFrom(amount),
		}
	}

	amount := decimal.NewFromFloat(g.faker.Price(500, 3000)).Round(2)
	return Transaction{
		ID:          id,
		Date:        date,
		Description: creditDescriptions[g.faker.Number(0, len(creditDescriptions)-1)],
		Credit:      AmountFrom(amount),
	}
}

// Transactions generates count transactions with IDs 1..count.
func (g *TestDataGenerator) Transactions(count int) []Transaction {
	txs := make([]Transaction, count)
	for i := range txs {
		txs[i] = g.Transaction(i + 1)
	}
	return txs
}

// Metadata generates a fully populated statement header.
func (g *TestDataGenerator) Metadata() Metadata {
	return Metadata{
		AccountHolder: "MONSIEUR " + strings.ToUpper(g.faker.LastName()),
		AccountNumber: g.faker.DigitN(11),
		Balance:       fmt.Sprintf("%d,%02d", g.faker.Number(100, 9999), g.faker.Number(0, 99)),
		BalanceDate:   "15/01/2024",
		PeriodStart:   "01/01/2024",
		PeriodEnd:     "31/01/2024",
	}
}

// Statement generates a parsed tabular statement with 3 to 8 transactions.
func (g *TestDataGenerator) Statement() *Statement {
	meta := g.Metadata()
	txs := g.Transactions(g.faker.Number(3, 8))

	return &Statement{
		Filename:     fmt.Sprintf("releve_%s.csv", strings.ToLower(g.faker.MonthString())),
		FileType:     FileTypeCSV,
		RawText:      string(g.CSVDocument(meta, txs)),
		Metadata:     meta,
		Transactions: txs,
		UploadedAt:   time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC).Add(-time.Duration(g.faker.Number(0, 72)) * time.Hour),
	}
}

// ============================================================================
// Document Rendering
// ============================================================================

// CSVDocument renders a complete bank export: the metadata header block,
// the column header line, then one semicolon-delimited row per transaction
// with comma-decimal amounts. The output round-trips through the tabular
// parser.
func (g *TestDataGenerator) CSVDocument(meta Metadata, txs []Transaction) []byte {
	var b bytes.Buffer
	if meta.AccountHolder != "" {
		fmt.Fprintf(&b, "%s;;;;\n", meta.AccountHolder)
	}
	if meta.AccountNumber != "" {
		fmt.Fprintf(&b, "Compte n° %s;;;;\n", meta.AccountNumber)
	}
	if meta.Balance != "" && meta.BalanceDate != "" {
		fmt.Fprintf(&b, "Solde au %s %s;;;\n", meta.BalanceDate, meta.Balance)
	}
	if meta.PeriodStart != "" && meta.PeriodEnd != "" {
		fmt.Fprintf(&b, "Liste des opérations entre le %s et le %s;;;\n", meta.PeriodStart, meta.PeriodEnd)
	}
	b.WriteString("\nDate;Libellé;Débit;Crédit\n")
	for _, tx := range txs {
		fmt.Fprintf(&b, "%s;%s;%s;%s\n", tx.Date, tx.Description, commaAmount(tx.Debit), commaAmount(tx.Credit))
	}
	return b.Bytes()
}

// PDFDocument renders a minimal uncompressed PDF with one page per entry.
// Newline-separated lines within an entry draw top to bottom. The output
// round-trips through the text extractor.
func (g *TestDataGenerator) PDFDocument(pageTexts ...string) []byte {
	var buf bytes.Buffer
	offsets := make(map[int]int)

	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pageTexts))
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(pageTexts)))
	// Fixed-width glyph metrics so the extractor can advance the horizontal
	// position between characters.
	writeObj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica"+
		" /FirstChar 32 /LastChar 126 /Widths ["+
		strings.TrimSpace(strings.Repeat("600 ", 95))+"] >>")

	for i, text := range pageTexts {
		pageNum := 4 + 2*i
		contentNum := 5 + 2*i
		writeObj(pageNum, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792]"+
				" /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentNum))

		var sb strings.Builder
		if text != "" {
			sb.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
			for j, line := range strings.Split(text, "\n") {
				if j > 0 {
					sb.WriteString("0 -14 Td\n")
				}
				escaper := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
				fmt.Fprintf(&sb, "(%s) Tj\n", escaper.Replace(line))
			}
			sb.WriteString("ET")
		}
		stream := sb.String()
		writeObj(contentNum, fmt.Sprintf(
			"<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	maxObj := 3 + 2*len(pageTexts)
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxObj+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxObj; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		maxObj+1, xrefOffset)

	return buf.Bytes()
}

// commaAmount renders an amount the way the bank prints it, for example
// 450.00 becomes "450,00". Absent amounts render as an empty column.
func commaAmount(a Amount) string {
	if !a.Valid() {
		return ""
	}
	return strings.ReplaceAll(a.Decimal().StringFixed(2), ".", ",")
}
