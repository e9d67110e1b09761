// Package extractor pulls the text layer out of uploaded PDF statements.
package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ledgerline/statement-analyzer/pkg/apperr"
)

// Extractor reads PDF documents page by page and concatenates the text of
// every page that has a text layer.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor returns an Extractor logging through logger. A nil logger
// falls back to slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract returns the text of all non-empty pages joined with blank lines,
// in page order. Pages without extractable text are skipped with a warning;
// a document where no page yields text is an empty-input error, and a
// document whose container cannot be parsed is a format error.
func (e *Extractor) Extract(data []byte) (string, error) {
	reader, err := open(data)
	if err != nil {
		return "", apperr.Wrap(apperr.KindFormat, "failed to open PDF document", err).
			With("file_size", len(data))
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return "", apperr.New(apperr.KindFormat, "PDF document contains no pages")
	}
	e.logger.Debug("processing PDF document", "pages", numPages)

	var pages []string
	for i := 1; i <= numPages; i++ {
		text := strings.TrimSpace(pageText(reader, i))
		if text == "" {
			e.logger.Warn("no text extracted from page", "page", i)
			continue
		}
		pages = append(pages, text)
	}

	if len(pages) == 0 {
		return "", apperr.New(apperr.KindEmptyInput, "no text could be extracted from any page").
			With("pages", numPages)
	}

	e.logger.Info("extracted PDF text",
		"pages_with_text", len(pages),
		"pages_total", numPages,
	)
	return strings.Join(pages, "\n\n"), nil
}

// open parses the PDF container. The library panics on some malformed
// inputs, so panics are converted into ordinary errors.
func open(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// pageText extracts a single page's text, preferring the row-grouped
// reading and falling back to the page's plain text stream. A page that
// makes the library panic counts as yielding no text.
func pageText(reader *pdf.Reader, pageNum int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}

	if rows, err := page.GetTextByRow(); err == nil {
		var lines []string
		for _, row := range rows {
			var sb strings.Builder
			for _, word := range row.Content {
				sb.WriteString(word.S)
			}
			if line := strings.TrimSpace(sb.String()); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}

	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	plain, err := page.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return plain
}
