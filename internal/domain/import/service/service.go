// Package service orchestrates the import pipeline over wizard sessions:
// analyze file, build drafts, check duplicates, cross-validate against the
// ledger, and commit. Stages run strictly in sequence per session; calls that
// leave the process release the session lock and re-merge their result
// against the generation they were computed from.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/dedupe"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/mapping"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/sniffer"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/validate"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/wizard"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/ledger"
	"github.com/FACorreiaa/portfolio-importer/pkg/metrics"
	"github.com/FACorreiaa/portfolio-importer/pkg/money"
)

const (
	defaultSessionTTL = 30 * time.Minute
	dialectSampleRows = 20
)

// AnalyzeResult is what the upload and parse-config steps hand back to the
// mapping UI.
type AnalyzeResult struct {
	Headers         []string                   `json:"headers"`
	SampleRows      [][]string                 `json:"sample_rows"`
	RowCount        int                        `json:"row_count"`
	ParseConfig     sniffer.ParseConfig        `json:"parse_config"`
	Dialect         sniffer.Dialect            `json:"dialect"`
	MappingFound    bool                       `json:"mapping_found"`
	Mapping         *mapping.ImportMapping     `json:"mapping,omitempty"`
	Suggestions     []mapping.ColumnSuggestion `json:"suggestions,omitempty"`
	UnmappedTypes   []string                   `json:"unmapped_types,omitempty"`
	UnmappedSymbols []string                   `json:"unmapped_symbols,omitempty"`
}

// ImportService runs the pipeline. The ledger client is required; everything
// it provides is best-effort except the final commit.
type ImportService struct {
	mappings        mapping.Repository
	ledger          ledger.Client
	sessions        *SessionStore
	logger          *slog.Logger
	tracer          trace.Tracer
	defaultCurrency string
}

// NewImportService creates the orchestration service.
func NewImportService(mappings mapping.Repository, ledgerClient ledger.Client, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		mappings: mappings,
		ledger:   ledgerClient,
		sessions: NewSessionStore(defaultSessionTTL),
		logger:   logger,
		tracer:   otel.Tracer("import-pipeline"),
	}
}

// WithSessionTTL overrides the session inactivity TTL.
func (s *ImportService) WithSessionTTL(ttl time.Duration) *ImportService {
	s.sessions = NewSessionStore(ttl)
	return s
}

// WithDefaultCurrency sets the currency assumed for rows when neither the
// parse config nor the probed dialect yields one.
func (s *ImportService) WithDefaultCurrency(code string) *ImportService {
	s.defaultCurrency = money.NormalizeCurrency(code)
	return s
}

// Sessions exposes the store for the purge job.
func (s *ImportService) Sessions() *SessionStore { return s.sessions }

// StartSession opens a wizard session for an account.
func (s *ImportService) StartSession(_ context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	if accountID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("account id is required")
	}
	sess := s.sessions.Create(accountID)
	metrics.ImportsStarted.Inc()
	s.logger.Info("import session started",
		slog.String("session_id", sess.id.String()),
		slog.String("account_id", accountID.String()),
	)
	return sess.id, nil
}

// State returns the current snapshot of a session.
func (s *ImportService) State(sessionID uuid.UUID) (wizard.State, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return wizard.State{}, err
	}
	return sess.snapshot(), nil
}

// CloseSession drops a session and everything it holds.
func (s *ImportService) CloseSession(sessionID uuid.UUID) {
	s.sessions.Delete(sessionID)
}

// AnalyzeFile normalizes an uploaded file under the account's persisted parse
// config (or defaults), probes its dialect, and moves the session to the
// mapping step. Structural problems (no headers, no data rows) fail here and
// hold the wizard at upload.
func (s *ImportService) AnalyzeFile(ctx context.Context, sessionID uuid.UUID, fileName string, data []byte) (*AnalyzeResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.analyze_file")
	defer span.End()
	defer observeStage("analyze")()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	accountID := sess.snapshot().AccountID

	persisted, err := s.mappings.GetAccountImportMapping(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load import mapping: %w", err)
	}
	m := persisted
	if m == nil {
		m = mapping.NewImportMapping(accountID)
	}

	table, err := sniffer.Normalize(data, m.ParseConfig)
	if err != nil {
		return nil, fmt.Errorf("normalize file %q: %w", fileName, err)
	}

	sess.mu.Lock()
	sess.fileName = fileName
	sess.fileData = append([]byte(nil), data...)
	sess.mapping = m
	sess.state = sess.state.WithTable(fileName, table, m.ParseConfig)
	sess.state.Mapping = m
	sess.state.Step = wizard.StepMapping
	sess.mu.Unlock()

	result := s.buildAnalyzeResult(table, m, accountID)
	result.MappingFound = persisted != nil
	s.logger.Info("file analyzed",
		slog.String("session_id", sessionID.String()),
		slog.String("file", fileName),
		slog.Int("rows", result.RowCount),
		slog.Bool("mapping_found", result.MappingFound),
	)
	return result, nil
}

// UpdateParseConfig re-normalizes the uploaded file under an edited config.
// The table is regenerated from the retained file bytes; drafts and async
// results derived from the old table are invalidated by the generation bump.
func (s *ImportService) UpdateParseConfig(ctx context.Context, sessionID uuid.UUID, cfg sniffer.ParseConfig) (*AnalyzeResult, error) {
	_, span := s.tracer.Start(ctx, "import.update_parse_config")
	defer span.End()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	data, fileName, m := sess.fileData, sess.fileName, sess.mapping
	accountID := sess.state.AccountID
	sess.mu.Unlock()

	if len(data) == 0 {
		return nil, fmt.Errorf("no file uploaded")
	}

	table, err := sniffer.Normalize(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("normalize file %q: %w", fileName, err)
	}

	sess.mu.Lock()
	sess.mapping.ParseConfig = cfg
	sess.state = sess.state.WithTable(fileName, table, cfg)
	sess.state.Step = wizard.StepMapping
	sess.mu.Unlock()

	return s.buildAnalyzeResult(table, m, accountID), nil
}

// SaveMapping persists the session's mapping profile for future imports of
// the same account and installs the saved copy in the session.
func (s *ImportService) SaveMapping(ctx context.Context, sessionID uuid.UUID, m *mapping.ImportMapping) (*mapping.ImportMapping, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	saved, err := s.mappings.SaveAccountImportMapping(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("save import mapping: %w", err)
	}

	sess.mu.Lock()
	sess.mapping = saved
	sess.state.Mapping = saved
	sess.mu.Unlock()
	return saved, nil
}

// BuildDrafts validates every table row into a draft and moves the session to
// review. Missing required columns are a structural error: the wizard stays
// at mapping until date, type, symbol, quantity, price and amount columns all
// resolve.
func (s *ImportService) BuildDrafts(ctx context.Context, sessionID uuid.UUID) (wizard.State, error) {
	_, span := s.tracer.Start(ctx, "import.build_drafts")
	defer span.End()
	defer observeStage("validate")()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return wizard.State{}, err
	}

	sess.mu.Lock()
	st := sess.state
	m := sess.mapping
	sess.mu.Unlock()

	if st.Table == nil || m == nil {
		return wizard.State{}, fmt.Errorf("no file uploaded")
	}

	resolver := mapping.NewResolver(m, st.Table, st.AccountID)
	if missing := missingColumns(resolver); len(missing) > 0 {
		return wizard.State{}, fmt.Errorf("unmapped required columns: %s", strings.Join(missing, ", "))
	}

	dialect := s.probe(st.Table, resolver)
	validator := validate.New(resolver, s.parseOptions(m.ParseConfig, dialect))
	drafts := validator.BuildDrafts(st.Table)

	counts := make(map[activity.Status]int)
	for _, d := range drafts {
		counts[d.Status]++
	}
	for status, n := range counts {
		metrics.DraftsByStatus.WithLabelValues(string(status)).Add(float64(n))
	}

	newState := sess.update(func(cur wizard.State) wizard.State {
		cur = cur.ReplaceDrafts(drafts)
		cur.Mapping = m
		cur.Step = wizard.StepReview
		return cur
	})

	s.logger.Info("drafts built",
		slog.String("session_id", sessionID.String()),
		slog.Int("rows", len(drafts)),
		slog.Int("valid", counts[activity.StatusValid]),
		slog.Int("warnings", counts[activity.StatusWarning]),
		slog.Int("errors", counts[activity.StatusError]),
	)
	return newState, nil
}

// CheckDuplicates hashes the current drafts and marks the ones the ledger
// already holds. Ledger failure degrades to no marking: the check is an
// enhancement, never a gate.
func (s *ImportService) CheckDuplicates(ctx context.Context, sessionID uuid.UUID) (wizard.State, error) {
	ctx, span := s.tracer.Start(ctx, "import.check_duplicates")
	defer span.End()
	defer observeStage("dedupe")()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return wizard.State{}, err
	}
	st := sess.snapshot()
	gen := st.Generation

	drafts, duplicates, err := dedupe.NewChecker(s.ledger, s.logger).MarkDuplicates(ctx, st.Drafts)
	if err != nil {
		metrics.LedgerFailures.WithLabelValues("check_duplicates").Inc()
		s.logger.Warn("duplicate check unavailable, proceeding with local validation",
			slog.String("session_id", sessionID.String()),
			slog.Any("error", err),
		)
		return st, nil
	}

	return sess.update(func(cur wizard.State) wizard.State {
		if cur.Generation != gen {
			return cur
		}
		return cur.WithDuplicates(drafts, duplicates)
	}), nil
}

// CrossValidate sends the non-skipped drafts with a resolved type to the
// ledger's dry-run endpoint and merges its verdicts. A stale response (the
// draft set changed while the call was in flight) merges as a no-op; a failed
// call degrades to local validation only.
func (s *ImportService) CrossValidate(ctx context.Context, sessionID uuid.UUID) (wizard.State, error) {
	ctx, span := s.tracer.Start(ctx, "import.cross_validate")
	defer span.End()
	defer observeStage("cross_validate")()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return wizard.State{}, err
	}
	st := sess.snapshot()
	gen := st.Generation

	var payloads []ledger.Payload
	for i, d := range st.Drafts {
		if d.Status == activity.StatusSkipped || d.Type == "" {
			continue
		}
		payloads = append(payloads, ledger.PayloadFromDraft(d, i+1))
	}
	if len(payloads) == 0 {
		return st, nil
	}

	results, err := s.ledger.CheckActivitiesImport(ctx, st.AccountID, payloads, true)
	if err != nil {
		metrics.LedgerFailures.WithLabelValues("check_import").Inc()
		s.logger.Warn("backend validation unavailable, proceeding with local validation",
			slog.String("session_id", sessionID.String()),
			slog.Any("error", err),
		)
		return st, nil
	}

	verdicts := make([]wizard.Verdict, 0, len(results))
	for _, r := range results {
		verdicts = append(verdicts, wizard.Verdict{
			LineNumber:  r.LineNumber,
			Valid:       r.IsValid,
			Errors:      activity.FieldMessages(r.Errors),
			SymbolName:  r.SymbolName,
			ExchangeMic: r.ExchangeMic,
		})
	}

	return sess.update(func(cur wizard.State) wizard.State {
		return cur.MergeVerdicts(gen, verdicts)
	}), nil
}

// UpdateDraft patches one draft and re-validates it.
func (s *ImportService) UpdateDraft(sessionID uuid.UUID, rowIndex int, patch wizard.DraftPatch) (wizard.State, error) {
	return s.transition(sessionID, func(cur wizard.State) wizard.State {
		return cur.UpdateDraft(rowIndex, patch)
	})
}

// BulkUpdate patches many drafts in one transition.
func (s *ImportService) BulkUpdate(sessionID uuid.UUID, rowIndexes []int, patch wizard.DraftPatch) (wizard.State, error) {
	return s.transition(sessionID, func(cur wizard.State) wizard.State {
		return cur.BulkUpdate(rowIndexes, patch)
	})
}

// SkipRows marks drafts as skipped.
func (s *ImportService) SkipRows(sessionID uuid.UUID, rowIndexes []int) (wizard.State, error) {
	return s.transition(sessionID, func(cur wizard.State) wizard.State {
		return cur.Skip(rowIndexes)
	})
}

// UnskipRows lifts skipped or duplicate status and re-validates the rows.
func (s *ImportService) UnskipRows(sessionID uuid.UUID, rowIndexes []int) (wizard.State, error) {
	return s.transition(sessionID, func(cur wizard.State) wizard.State {
		return cur.Unskip(rowIndexes)
	})
}

func (s *ImportService) transition(sessionID uuid.UUID, fn func(wizard.State) wizard.State) (wizard.State, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return wizard.State{}, err
	}
	return sess.update(fn), nil
}

// Commit submits the valid and warning drafts as one bulk create. Commit
// failure is a real error; there is no degraded path for durable writes.
// Partial failures inside the batch come back as counts in the result.
func (s *ImportService) Commit(ctx context.Context, sessionID uuid.UUID) (*activity.ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.commit")
	defer span.End()
	defer observeStage("commit")()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	st := sess.snapshot()

	set := st.CommitSet()
	if len(set) == 0 {
		return nil, fmt.Errorf("nothing to commit")
	}

	payloads := make([]ledger.Payload, len(set))
	for i, d := range set {
		payloads[i] = ledger.PayloadFromDraft(d, i+1)
	}

	result, err := s.ledger.ImportActivities(ctx, payloads)
	if err != nil {
		metrics.LedgerFailures.WithLabelValues("import").Inc()
		return nil, fmt.Errorf("commit activities: %w", err)
	}
	metrics.RowsCommitted.Add(float64(result.Inserted))

	sess.update(func(cur wizard.State) wizard.State {
		cur = cur.WithResult(result)
		cur.Step = wizard.StepCommit
		return cur
	})

	totals := money.Totals{}
	for _, d := range set {
		if err := totals.Accumulate(d.Amount, d.Currency); err != nil {
			continue
		}
	}
	sums := make(map[string]string, len(totals))
	for code, total := range totals {
		sums[code] = total.Display()
	}

	s.logger.Info("import committed",
		slog.String("session_id", sessionID.String()),
		slog.Int("submitted", len(set)),
		slog.Int("inserted", result.Inserted),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
		slog.Any("totals", sums),
	)
	return result, nil
}

func (s *ImportService) buildAnalyzeResult(table *sniffer.RawTable, m *mapping.ImportMapping, accountID uuid.UUID) *AnalyzeResult {
	resolver := mapping.NewResolver(m, table, accountID)
	sample := table.Rows
	if len(sample) > dialectSampleRows {
		sample = sample[:dialectSampleRows]
	}

	return &AnalyzeResult{
		Headers:         table.Headers,
		SampleRows:      sample,
		RowCount:        len(table.Rows),
		ParseConfig:     m.ParseConfig,
		Dialect:         s.probe(table, resolver),
		Mapping:         m,
		Suggestions:     resolver.SuggestColumns(),
		UnmappedTypes:   resolver.UnmappedTypeTokens(),
		UnmappedSymbols: resolver.UnmappedSymbolTokens(),
	}
}

func (s *ImportService) probe(table *sniffer.RawTable, resolver *mapping.Resolver) sniffer.Dialect {
	sample := table.Rows
	if len(sample) > dialectSampleRows {
		sample = sample[:dialectSampleRows]
	}
	amountCols := []int{
		resolver.Column(mapping.FieldAmount),
		resolver.Column(mapping.FieldUnitPrice),
		resolver.Column(mapping.FieldFee),
	}
	return sniffer.ProbeDialect(sample, amountCols, resolver.Column(mapping.FieldDate))
}

func missingColumns(resolver *mapping.Resolver) []string {
	var missing []string
	for _, f := range mapping.RequiredFields {
		if resolver.Column(f) < 0 {
			missing = append(missing, string(f))
		}
	}
	return missing
}

// parseOptions folds the explicit parse config, the probed dialect and the
// service-wide fallback currency into validator options. Explicit settings
// always beat probed ones.
func (s *ImportService) parseOptions(cfg sniffer.ParseConfig, dialect sniffer.Dialect) validate.Options {
	opts := validate.Options{DefaultCurrency: cfg.DefaultCurrency}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = dialect.CurrencyHint
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = s.defaultCurrency
	}

	opts.Date.Layout = cfg.DateFormat
	opts.Date.DayFirst = dialect.DayFirst

	switch cfg.DecimalSeparator {
	case ".":
		opts.Number.DecimalSeparator = '.'
	case ",":
		opts.Number.DecimalSeparator = ','
	default:
		if dialect.DecimalSeparator == "," {
			opts.Number.DecimalSeparator = ','
		}
	}

	switch cfg.ThousandsSeparator {
	case ",":
		opts.Number.ThousandsSeparator = ','
	case ".":
		opts.Number.ThousandsSeparator = '.'
	case " ":
		opts.Number.ThousandsSeparator = ' '
	case sniffer.SeparatorNone:
		opts.Number.ThousandsSeparator = normalizer.NoThousandsSeparator
	}
	return opts
}

func observeStage(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
