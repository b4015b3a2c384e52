package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
)

// Querier is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists per-account import mapping profiles.
type Repository interface {
	GetAccountImportMapping(ctx context.Context, accountID uuid.UUID) (*ImportMapping, error)
	SaveAccountImportMapping(ctx context.Context, m *ImportMapping) (*ImportMapping, error)
}

// PostgresRepository stores mapping profiles in the import_mappings table,
// one row per account, token maps as JSONB.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository creates a mapping repository over a pgx pool.
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// mappingRecord is the JSONB shape stored for one profile.
type mappingRecord struct {
	FieldMappings    map[Field]string     `json:"field_mappings"`
	ActivityMappings map[string][]string  `json:"activity_mappings"`
	SymbolMappings   map[string]string    `json:"symbol_mappings"`
	AccountMappings  map[string]uuid.UUID `json:"account_mappings"`
}

// GetAccountImportMapping loads the profile for an account. A missing row is
// not an error: it returns (nil, nil) so first-time imports start from
// defaults.
func (r *PostgresRepository) GetAccountImportMapping(ctx context.Context, accountID uuid.UUID) (*ImportMapping, error) {
	query := `
		SELECT account_id, mappings, parse_config, created_at, updated_at
		FROM import_mappings
		WHERE account_id = $1
	`

	m := NewImportMapping(accountID)
	var mappingsJSON, parseConfigJSON []byte
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&m.AccountID, &mappingsJSON, &parseConfigJSON, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import mapping: %w", err)
	}

	var rec mappingRecord
	if err := json.Unmarshal(mappingsJSON, &rec); err != nil {
		return nil, fmt.Errorf("decode import mapping: %w", err)
	}
	applyRecord(m, rec)

	if err := json.Unmarshal(parseConfigJSON, &m.ParseConfig); err != nil {
		return nil, fmt.Errorf("decode parse config: %w", err)
	}
	return m, nil
}

// SaveAccountImportMapping upserts the profile for its account and returns
// the stored row.
func (r *PostgresRepository) SaveAccountImportMapping(ctx context.Context, m *ImportMapping) (*ImportMapping, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	rec := mappingRecord{
		FieldMappings:    m.FieldMappings,
		ActivityMappings: make(map[string][]string, len(m.ActivityMappings)),
		SymbolMappings:   m.SymbolMappings,
		AccountMappings:  m.AccountMappings,
	}
	for t, prefixes := range m.ActivityMappings {
		rec.ActivityMappings[string(t)] = prefixes
	}

	mappingsJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode import mapping: %w", err)
	}
	parseConfigJSON, err := json.Marshal(m.ParseConfig)
	if err != nil {
		return nil, fmt.Errorf("encode parse config: %w", err)
	}

	query := `
		INSERT INTO import_mappings (account_id, mappings, parse_config)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET
			mappings = EXCLUDED.mappings,
			parse_config = EXCLUDED.parse_config,
			updated_at = now()
		RETURNING account_id, mappings, parse_config, created_at, updated_at
	`

	saved := NewImportMapping(m.AccountID)
	var savedMappings, savedParseConfig []byte
	err = r.db.QueryRow(ctx, query, m.AccountID, mappingsJSON, parseConfigJSON).Scan(
		&saved.AccountID, &savedMappings, &savedParseConfig, &saved.CreatedAt, &saved.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save import mapping: %w", err)
	}

	var savedRec mappingRecord
	if err := json.Unmarshal(savedMappings, &savedRec); err != nil {
		return nil, fmt.Errorf("decode saved mapping: %w", err)
	}
	applyRecord(saved, savedRec)
	if err := json.Unmarshal(savedParseConfig, &saved.ParseConfig); err != nil {
		return nil, fmt.Errorf("decode saved parse config: %w", err)
	}
	return saved, nil
}

func applyRecord(m *ImportMapping, rec mappingRecord) {
	if rec.FieldMappings != nil {
		m.FieldMappings = rec.FieldMappings
	}
	if rec.SymbolMappings != nil {
		m.SymbolMappings = rec.SymbolMappings
	}
	if rec.AccountMappings != nil {
		m.AccountMappings = rec.AccountMappings
	}
	for t, prefixes := range rec.ActivityMappings {
		m.ActivityMappings[activityTypeFromString(t)] = prefixes
	}
}

func activityTypeFromString(s string) (t activity.Type) {
	if parsed, ok := activity.ParseType(s); ok {
		return parsed
	}
	return activity.Type(s)
}
