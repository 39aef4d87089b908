package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vatdesk/api/internal/observability"
	"github.com/vatdesk/api/internal/storage"
	"github.com/vatdesk/api/internal/vat"
)

var (
	// ErrEmptyInput is returned when no export data was supplied.
	ErrEmptyInput = errors.New("no export data supplied")

	// ErrInvalidMapping is returned when mapping rules cannot be used.
	ErrInvalidMapping = errors.New("invalid mapping rules")

	ErrNotFound        = errors.New("analysis not found")
	ErrArchiveDisabled = errors.New("analysis archive is not configured")
)

// IsInputError reports whether err was caused by the caller's input rather
// than by the service.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrInvalidMapping) ||
		errors.Is(err, vat.ErrInsufficientInput) ||
		errors.Is(err, vat.ErrMissingColumns)
}

// Result wraps a report with run metadata.
type Result struct {
	RunID      uuid.UUID  `json:"runId"`
	Source     string     `json:"source,omitempty"`
	AnalyzedAt time.Time  `json:"analyzedAt"`
	Duration   string     `json:"duration"`
	Archived   bool       `json:"archived"`
	Report     vat.Report `json:"report"`
}

// Input is one named export to analyse.
type Input struct {
	Name string
	Data []byte
}

// Service runs VAT analyses and records their outcome.
type Service struct {
	engine   *vat.Engine
	defaults vat.MappingRules
	logger   *slog.Logger
	workers  int
	archive  storage.Storage
}

// NewService creates a new analysis service. defaults are merged under any
// rules passed per call.
func NewService(engine *vat.Engine, defaults vat.MappingRules, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:   engine,
		defaults: defaults,
		logger:   logger,
		workers:  4,
	}
}

// SetWorkers bounds the number of files AnalyzeAll processes at once.
func (s *Service) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// SetArchive enables keeping every successful result in store.
func (s *Service) SetArchive(store storage.Storage) {
	s.archive = store
}

func archiveKey(id uuid.UUID) string {
	return "analyses/" + id.String() + ".json"
}

// Analyze runs the engine on one export. When an archive is configured the
// result is stored under its run ID; a failed upload is logged and reported
// through Result.Archived without failing the analysis.
func (s *Service) Analyze(ctx context.Context, in Input, rules vat.MappingRules) (result *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "analysis.Analyze",
		attribute.String("source", in.Name),
		attribute.Int("bytes", len(in.Data)),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		observability.AnalysisDuration.Observe(time.Since(start).Seconds())
		observability.AnalysesTotal.WithLabelValues(outcome(err)).Inc()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.Data) == 0 {
		return nil, ErrEmptyInput
	}

	report, err := s.engine.Analyze(in.Data, Merge(s.defaults, rules))
	if err != nil {
		s.logger.WarnContext(ctx, "analysis rejected", "source", in.Name, "error", err)
		return nil, err
	}

	result = &Result{
		RunID:      uuid.New(),
		Source:     in.Name,
		AnalyzedAt: start.UTC(),
		Duration:   time.Since(start).String(),
		Report:     report,
	}

	span.SetAttributes(
		attribute.String("run_id", result.RunID.String()),
		attribute.Int("transactions", report.RulesApplied.TotalProcessed),
		attribute.Int("anomalies", len(report.Anomalies)),
	)
	record(report)

	s.logger.InfoContext(ctx, "analysis completed",
		slog.String("run_id", result.RunID.String()),
		slog.String("source", in.Name),
		slog.String("delimiter", report.Input.Delimiter),
		slog.Int("rows_read", report.Input.RowsRead),
		slog.Int("rows_skipped", report.Input.RowsSkipped),
		slog.Int("transactions", report.RulesApplied.TotalProcessed),
		slog.Int("countries", len(report.Breakdown)),
		slog.Int("anomalies", len(report.Anomalies)),
		slog.Bool("sanity_valid", report.SanityCheckGlobal.IsValid),
	)
	if n := report.RulesApplied.UnclassifiedCount; n > 0 {
		s.logger.WarnContext(ctx, "transactions without a resolvable country",
			slog.String("run_id", result.RunID.String()),
			slog.Int("count", n),
		)
	}
	if !report.SanityCheckGlobal.IsValid {
		s.logger.WarnContext(ctx, "global reconciliation exceeded tolerance",
			slog.String("run_id", result.RunID.String()),
			slog.String("diff_grand_total", report.SanityCheckGlobal.DiffGrandTotalVsSum.String()),
			slog.String("diff_regular", report.SanityCheckGlobal.DiffRegularVsComponents.String()),
		)
	}

	if s.archive != nil {
		s.store(ctx, result)
	}
	return result, nil
}

func (s *Service) store(ctx context.Context, result *Result) {
	result.Archived = true
	body, err := json.Marshal(result)
	if err == nil {
		var loc string
		loc, err = s.archive.Put(ctx, archiveKey(result.RunID), bytes.NewReader(body), "application/json")
		if err == nil {
			s.logger.DebugContext(ctx, "analysis archived",
				slog.String("run_id", result.RunID.String()),
				slog.String("location", loc),
			)
			return
		}
	}
	result.Archived = false
	s.logger.ErrorContext(ctx, "archiving analysis",
		slog.String("run_id", result.RunID.String()),
		slog.String("error", err.Error()),
	)
}

// Get loads an archived result.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Result, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}

	rc, err := s.archive.Get(ctx, archiveKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis %s: %w", id, err)
	}
	defer rc.Close()

	var result Result
	if err := json.NewDecoder(rc).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding analysis %s: %w", id, err)
	}
	return &result, nil
}

// Delete removes an archived result. It returns ErrNotFound when nothing is
// stored under id.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if s.archive == nil {
		return ErrArchiveDisabled
	}

	rc, err := s.archive.Get(ctx, archiveKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading analysis %s: %w", id, err)
	}
	rc.Close()

	if err := s.archive.Delete(ctx, archiveKey(id)); err != nil {
		return fmt.Errorf("deleting analysis %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "archived analysis deleted", slog.String("run_id", id.String()))
	return nil
}

// AnalyzeAll analyses inputs concurrently with the same rules and returns
// results in input order. The first failure cancels the remaining work.
func (s *Service) AnalyzeAll(ctx context.Context, inputs []Input, rules vat.MappingRules) ([]*Result, error) {
	results := make([]*Result, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, in := range inputs {
		g.Go(func() error {
			res, err := s.Analyze(ctx, in, rules)
			if err != nil {
				return fmt.Errorf("%s: %w", in.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsInputError(err):
		return "rejected"
	default:
		return "failed"
	}
}

func record(r vat.Report) {
	applied := r.RulesApplied
	observability.RowsTotal.WithLabelValues("classified").Add(float64(applied.TotalProcessed - applied.UnclassifiedCount))
	observability.RowsTotal.WithLabelValues("unclassified").Add(float64(applied.UnclassifiedCount))
	observability.RowsTotal.WithLabelValues("skipped").Add(float64(r.Input.RowsSkipped))

	for _, a := range r.Anomalies {
		observability.AnomaliesTotal.WithLabelValues(a.Type).Inc()
	}

	if !r.SanityCheckGlobal.IsValid {
		observability.SanityFailuresTotal.WithLabelValues("global").Inc()
	}
	for _, c := range r.SanityCheckByCountry {
		if !c.IsValid {
			observability.SanityFailuresTotal.WithLabelValues("country").Inc()
		}
	}
}
