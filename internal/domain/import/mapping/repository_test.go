package mapping

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
)

func TestGetAccountImportMapping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	now := time.Now()

	mappingsJSON := []byte(`{
		"field_mappings": {"date": "trade date", "amount": "net amount"},
		"activity_mappings": {"SELL": ["VENTE"]},
		"symbol_mappings": {"US0378331005": "AAPL"},
		"account_mappings": {}
	}`)
	parseConfigJSON := []byte(`{"has_header_row": true, "delimiter": ";", "skip_empty_rows": true}`)

	mock.ExpectQuery(`SELECT account_id, mappings, parse_config`).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{
			"account_id", "mappings", "parse_config", "created_at", "updated_at",
		}).AddRow(accountID, mappingsJSON, parseConfigJSON, now, now))

	repo := NewPostgresRepository(mock)
	m, err := repo.GetAccountImportMapping(context.Background(), accountID)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, accountID, m.AccountID)
	assert.Equal(t, "trade date", m.FieldMappings[FieldDate])
	assert.Equal(t, "net amount", m.FieldMappings[FieldAmount])
	assert.Equal(t, []string{"VENTE"}, m.ActivityMappings[activity.Sell])
	assert.Equal(t, "AAPL", m.SymbolMappings["US0378331005"])
	assert.Equal(t, ";", m.ParseConfig.Delimiter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountImportMappingMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	mock.ExpectQuery(`SELECT account_id, mappings, parse_config`).
		WithArgs(accountID).
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	m, err := repo.GetAccountImportMapping(context.Background(), accountID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSaveAccountImportMapping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	now := time.Now()

	m := NewImportMapping(accountID)
	m.SetField(FieldDate, "run date")
	m.ActivityMappings[activity.Buy] = []string{"ACHAT"}

	mock.ExpectQuery(`INSERT INTO import_mappings`).
		WithArgs(accountID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"account_id", "mappings", "parse_config", "created_at", "updated_at",
		}).AddRow(
			accountID,
			mustMarshalRecord(t, m),
			mustMarshal(t, m.ParseConfig),
			now, now,
		))

	repo := NewPostgresRepository(mock)
	saved, err := repo.SaveAccountImportMapping(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, "run date", saved.FieldMappings[FieldDate])
	assert.Equal(t, []string{"ACHAT"}, saved.ActivityMappings[activity.Buy])
	assert.Equal(t, now, saved.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAccountImportMappingRejectsDuplicateHeader(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	m := NewImportMapping(uuid.New())
	m.FieldMappings[FieldAmount] = "total"
	m.FieldMappings[FieldFee] = "total"

	repo := NewPostgresRepository(mock)
	_, err = repo.SaveAccountImportMapping(context.Background(), m)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func mustMarshalRecord(t *testing.T, m *ImportMapping) []byte {
	t.Helper()
	rec := mappingRecord{
		FieldMappings:    m.FieldMappings,
		ActivityMappings: map[string][]string{},
		SymbolMappings:   m.SymbolMappings,
		AccountMappings:  m.AccountMappings,
	}
	for typ, prefixes := range m.ActivityMappings {
		rec.ActivityMappings[string(typ)] = prefixes
	}
	return mustMarshal(t, rec)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
