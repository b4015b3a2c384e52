// Package ledger is the pipeline's view of the authoritative backend: dry-run
// validation, the existing-hash index for duplicate checks, and the bulk
// commit endpoints. The pipeline never computes portfolio state itself; it
// only calls this engine.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/normalizer"
)

// Payload is one activity in the wire shape the ledger accepts. Dates go out
// date-only; numbers go out as decimals, never floats.
type Payload struct {
	ID                  string          `json:"id,omitempty"`
	AccountID           uuid.UUID       `json:"account_id"`
	ActivityType        string          `json:"activity_type"`
	ActivityDate        string          `json:"activity_date"`
	Subtype             string          `json:"subtype,omitempty"`
	Symbol              string          `json:"symbol,omitempty"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Amount              decimal.Decimal `json:"amount"`
	Fee                 decimal.Decimal `json:"fee"`
	Currency            string          `json:"currency"`
	FxRate              decimal.Decimal `json:"fx_rate,omitempty"`
	Comment             string          `json:"comment,omitempty"`
	LineNumber          int             `json:"line_number,omitempty"`
	ProviderReferenceID string          `json:"provider_reference_id,omitempty"`
}

// PayloadFromDraft maps a draft to the ledger wire shape. lineNumber is
// 1-based over the draft slice and keys the dry-run response back to drafts.
func PayloadFromDraft(d activity.Draft, lineNumber int) Payload {
	return Payload{
		AccountID:    d.AccountID,
		ActivityType: string(d.Type),
		ActivityDate: normalizer.FormatDate(d.Date),
		Subtype:      d.Subtype,
		Symbol:       d.Symbol,
		Quantity:     d.Quantity,
		UnitPrice:    d.UnitPrice,
		Amount:       d.Amount,
		Fee:          d.FeeAmount,
		Currency:     d.Currency,
		FxRate:       d.FxRate,
		Comment:      d.Comment,
		LineNumber:   lineNumber,
	}
}

// LineResult is the ledger's verdict for one submitted line.
type LineResult struct {
	LineNumber  int                 `json:"line_number"`
	IsValid     bool                `json:"is_valid"`
	Errors      map[string][]string `json:"errors,omitempty"`
	SymbolName  string              `json:"symbol_name,omitempty"`
	ExchangeMic string              `json:"exchange_mic,omitempty"`
}

// BulkRequest carries mixed mutations for saveActivities.
type BulkRequest struct {
	Creates   []Payload `json:"creates,omitempty"`
	Updates   []Payload `json:"updates,omitempty"`
	DeleteIDs []string  `json:"delete_ids,omitempty"`
}

// Client is the subset of ledger operations the import pipeline consumes.
type Client interface {
	CheckActivitiesImport(ctx context.Context, accountID uuid.UUID, activities []Payload, dryRun bool) ([]LineResult, error)
	CheckExistingDuplicates(ctx context.Context, keys []string) (map[string]string, error)
	ImportActivities(ctx context.Context, activities []Payload) (*activity.ImportResult, error)
	SaveActivities(ctx context.Context, req BulkRequest) (*activity.ImportResult, error)
}

// HTTPClient talks JSON over HTTP to the ledger service.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a ledger client for a base URL. A zero timeout means
// the caller controls deadlines purely through context.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// CheckActivitiesImport runs the authoritative per-row validation. With
// dryRun true the ledger makes no durable change.
func (c *HTTPClient) CheckActivitiesImport(ctx context.Context, accountID uuid.UUID, activities []Payload, dryRun bool) ([]LineResult, error) {
	req := struct {
		AccountID  uuid.UUID `json:"account_id"`
		DryRun     bool      `json:"dry_run"`
		Activities []Payload `json:"activities"`
	}{AccountID: accountID, DryRun: dryRun, Activities: activities}

	var resp struct {
		Results []LineResult `json:"results"`
	}
	if err := c.post(ctx, "/api/v1/activities/import/check", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// CheckExistingDuplicates resolves idempotency keys against the ledger's
// existing-hash index. Keys with no match are absent from the result.
func (c *HTTPClient) CheckExistingDuplicates(ctx context.Context, keys []string) (map[string]string, error) {
	req := struct {
		Keys []string `json:"keys"`
	}{Keys: keys}

	var resp struct {
		Duplicates map[string]string `json:"duplicates"`
	}
	if err := c.post(ctx, "/api/v1/activities/duplicates", req, &resp); err != nil {
		return nil, err
	}
	if resp.Duplicates == nil {
		resp.Duplicates = map[string]string{}
	}
	return resp.Duplicates, nil
}

// ImportActivities bulk-creates activities and returns the aggregate result.
// Per-row atomicity is the ledger's responsibility; partial failures come
// back as counts, not as an error.
func (c *HTTPClient) ImportActivities(ctx context.Context, activities []Payload) (*activity.ImportResult, error) {
	req := struct {
		Activities []Payload `json:"activities"`
	}{Activities: activities}

	var result activity.ImportResult
	if err := c.post(ctx, "/api/v1/activities/import", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveActivities submits mixed creates, updates and deletes in one request.
func (c *HTTPClient) SaveActivities(ctx context.Context, req BulkRequest) (*activity.ImportResult, error) {
	var result activity.ImportResult
	if err := c.post(ctx, "/api/v1/activities/bulk", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "ledger call",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
