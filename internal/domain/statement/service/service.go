// Package service orchestrates the statement pipeline: upload routing,
// persistence, analysis, and exports.
package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/internal/domain/statement/extractor"
	"github.com/ledgerline/statement-analyzer/internal/domain/statement/parser"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
	"github.com/ledgerline/statement-analyzer/pkg/metrics"
)

// Repository is the persistence surface the service depends on.
type Repository interface {
	CreateStatement(ctx context.Context, stmt *statement.Statement) error
	GetStatement(ctx context.Context, id int64) (*statement.Statement, error)
	ListStatements(ctx context.Context) ([]statement.Summary, error)
	DeleteStatement(ctx context.Context, id int64) error
	CreateAnalysis(ctx context.Context, analysis *statement.Analysis) error
	ListAnalyses(ctx context.Context, statementID int64) ([]statement.Analysis, error)
}

// Analyzer generates a report over a parsed statement.
type Analyzer interface {
	Analyze(ctx context.Context, stmt *statement.Statement, prompt string) (string, error)
}

// Config tunes the upload pipeline.
type Config struct {
	MaxUploadBytes int64
	Parser         parser.Config
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes: 10 << 20,
		Parser:         parser.DefaultConfig(),
	}
}

// Upload outcome labels for the uploads_total counter.
const (
	uploadSucceeded = "success"
	uploadFailed    = "failed"
	uploadRejected  = "rejected"
)

// Service orchestrates statement ingestion and retrieval.
type Service struct {
	repo      Repository
	config    Config
	parser    *parser.Parser
	extractor *extractor.Extractor
	analyzer  Analyzer         // Optional: nil if analysis not available
	metrics   *metrics.Metrics // Optional: nil if metrics not collected
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewService creates a statement service with the CSV and PDF pipelines
// wired in. A zero MaxUploadBytes falls back to the default limit.
func NewService(repo Repository, config Config, logger *slog.Logger) *Service {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		config:    config,
		parser:    parser.NewParser(config.Parser, logger),
		extractor: extractor.NewExtractor(logger),
		logger:    logger,
		tracer:    otel.Tracer("statement-service"),
	}
}

// WithAnalyzer adds report generation to the service.
func (s *Service) WithAnalyzer(analyzer Analyzer) *Service {
	s.analyzer = analyzer
	return s
}

// WithMetrics adds Prometheus instrumentation to the service.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Upload ingests one uploaded document and persists the parsed statement.
// CSV documents go through the tabular parser; PDF documents only get their
// text extracted. The returned statement carries its database ID.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*statement.Statement, error) {
	ctx, span := s.tracer.Start(ctx, "statement.upload")
	defer span.End()

	fileType, err := detectFileType(filename)
	if err != nil {
		s.observeUpload("unknown", uploadRejected)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("file.type", string(fileType)),
		attribute.Int("file.size", len(data)),
	)

	// Step 1: gate on size before any decoding work.
	if len(data) == 0 {
		s.observeUpload(string(fileType), uploadRejected)
		return nil, apperr.New(apperr.KindValidation, "uploaded file is empty").
			With("filename", filename)
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		s.observeUpload(string(fileType), uploadRejected)
		return nil, apperr.New(apperr.KindValidation, "uploaded file exceeds the size limit").
			With("file_size", len(data)).
			With("limit_bytes", s.config.MaxUploadBytes)
	}

	// Step 2: route to the matching document pipeline.
	stmt := &statement.Statement{
		Filename: filename,
		FileType: fileType,
	}
	parseStart := time.Now()
	switch fileType {
	case statement.FileTypeCSV:
		result, err := s.parser.Parse(data)
		if err != nil {
			span.RecordError(err)
			s.observeUpload(string(fileType), uploadFailed)
			return nil, err
		}
		stmt.RawText = result.RawText
		stmt.Metadata = result.Metadata
		stmt.Transactions = assignTransactionIDs(result.Transactions)
	case statement.FileTypePDF:
		text, err := s.extractor.Extract(data)
		if err != nil {
			span.RecordError(err)
			s.observeUpload(string(fileType), uploadFailed)
			return nil, err
		}
		stmt.RawText = text
	}
	parseDuration := time.Since(parseStart)

	// Step 3: persist the parsed statement.
	if err := s.repo.CreateStatement(ctx, stmt); err != nil {
		span.RecordError(err)
		s.observeUpload(string(fileType), uploadFailed)
		return nil, err
	}

	s.observeUpload(string(fileType), uploadSucceeded)
	if s.metrics != nil {
		s.metrics.ParseDuration.WithLabelValues(string(fileType)).Observe(parseDuration.Seconds())
		s.metrics.TransactionsParsed.Add(float64(len(stmt.Transactions)))
	}
	span.SetAttributes(attribute.Int64("statement.id", stmt.ID))

	s.logger.Info("statement uploaded",
		"statement_id", stmt.ID,
		"filename", filename,
		"file_type", fileType,
		"transactions", len(stmt.Transactions),
		"parse_ms", parseDuration.Milliseconds())

	return stmt, nil
}

// Get returns one statement with its full transaction list.
func (s *Service) Get(ctx context.Context, statementID int64) (*statement.Statement, error) {
	ctx, span := s.tracer.Start(ctx, "statement.get")
	defer span.End()

	stmt, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return stmt, nil
}

// List returns statement summaries, newest upload first. A non-empty query
// narrows the list to fuzzy filename matches, best match first.
func (s *Service) List(ctx context.Context, query string) ([]statement.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "statement.list")
	defer span.End()

	summaries, err := s.repo.ListStatements(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if query = strings.TrimSpace(query); query == "" {
		return summaries, nil
	}
	return filterByFilename(summaries, query), nil
}

// Delete removes a statement and, through the schema cascade, its analyses.
func (s *Service) Delete(ctx context.Context, statementID int64) error {
	ctx, span := s.tracer.Start(ctx, "statement.delete")
	defer span.End()

	if err := s.repo.DeleteStatement(ctx, statementID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("statement deleted", "statement_id", statementID)
	return nil
}

// Analyze generates a report over a stored statement and persists it.
func (s *Service) Analyze(ctx context.Context, statementID int64, prompt string) (*statement.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "statement.analyze")
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperr.New(apperr.KindValidation, "analysis prompt must not be empty")
	}
	if s.analyzer == nil {
		return nil, apperr.New(apperr.KindUnavailable, "analysis backend is not configured")
	}

	stmt, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	response, err := s.analyzer.Analyze(ctx, stmt, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	analysis := &statement.Analysis{
		StatementID: statementID,
		Prompt:      prompt,
		Response:    response,
	}
	if err := s.repo.CreateAnalysis(ctx, analysis); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AnalysesTotal.Inc()
	}
	s.logger.Info("analysis created",
		"statement_id", statementID,
		"analysis_id", analysis.ID,
		"response_chars", len(analysis.Response))

	return analysis, nil
}

// ListAnalyses returns the analyses of one statement, newest first. The
// statement is looked up first so a missing statement reports not-found
// instead of an empty list.
func (s *Service) ListAnalyses(ctx context.Context, statementID int64) ([]statement.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "statement.list_analyses")
	defer span.End()

	if _, err := s.repo.GetStatement(ctx, statementID); err != nil {
		return nil, err
	}
	return s.repo.ListAnalyses(ctx, statementID)
}

func (s *Service) observeUpload(fileType, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.UploadsTotal.WithLabelValues(fileType, status).Inc()
}

// detectFileType routes by filename extension. Content checks are left to
// the pipelines, which reject bytes that do not match their format.
func detectFileType(filename string) (statement.FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return statement.FileTypeCSV, nil
	case ".pdf":
		return statement.FileTypePDF, nil
	default:
		return "", apperr.New(apperr.KindValidation, "unsupported file type: only .csv and .pdf are accepted").
			With("filename", filename)
	}
}

// assignTransactionIDs numbers transactions 1..n in statement order.
func assignTransactionIDs(txs []statement.Transaction) []statement.Transaction {
	for i := range txs {
		txs[i].ID = i + 1
	}
	return txs
}

// filterByFilename ranks summaries by fuzzy filename match, best first.
// Entries that do not match at all drop out.
func filterByFilename(summaries []statement.Summary, query string) []statement.Summary {
	filenames := make([]string, len(summaries))
	for i, sum := range summaries {
		filenames[i] = sum.Filename
	}
	ranks := fuzzy.RankFindNormalizedFold(query, filenames)
	sort.Sort(ranks)

	filtered := make([]statement.Summary, 0, len(ranks))
	for _, rank := range ranks {
		filtered = append(filtered, summaries[rank.OriginalIndex])
	}
	return filtered
}
