package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/up-only/internal/storage/models"
)

func testEntries() []*models.Entry {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id uint64, op, signer string, pay, sale uint64) *models.Entry {
		return &models.Entry{
			BaseModel:     models.BaseModel{ID: id, CreatedAt: base.Add(time.Duration(id) * time.Minute)},
			Operation:     op,
			Signer:        signer,
			PaymentAmount: pay,
			SaleAmount:    sale,
			ReserveAfter:  1_000_000 + id,
			SupplyAfter:   1_000_000_000 + id,
		}
	}
	// newest first, as the store returns them
	return []*models.Entry{
		mk(4, "sell_token", "alice", 940, 940_000),
		mk(3, "buy_token", "bob", 2_000_000, 1_880_000_000),
		mk(2, "buy_token", "alice", 1000, 940_000),
		mk(1, "give_pass", "deployer", 0, 0),
	}
}

func TestJournalExportCSV(t *testing.T) {
	exporter := NewJournalExporter(zap.NewNop())
	dir := t.TempDir()

	path, err := exporter.Export(testEntries(), ExportOptions{
		Format:          FormatCSV,
		OperationFilter: "buy_token",
		OutputDir:       dir,
	})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeaders(), rows[0])
	assert.Equal(t, "2", rows[1][0], "oldest first")
	assert.Equal(t, "0.001", rows[1][5])
	assert.Equal(t, "2", rows[2][5])
	assert.Equal(t, "1.88", rows[2][6])
}

func TestJournalExportJSON(t *testing.T) {
	exporter := NewJournalExporter(zap.NewNop())
	at := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	path, err := exporter.Export(testEntries(), ExportOptions{
		Format:    FormatJSON,
		OutputDir: t.TempDir(),
		Now:       func() time.Time { return at },
	})
	require.NoError(t, err)
	assert.Contains(t, path, "journal_all_20250302_000000.json")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded struct {
		EntryCount int           `json:"entry_count"`
		Summary    ExportSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(content, &decoded))

	assert.Equal(t, 4, decoded.EntryCount)
	assert.Equal(t, 2, decoded.Summary.ByOperation["buy_token"])
	assert.Equal(t, 3, decoded.Summary.UniqueSigners)
	assert.Equal(t, uint64(2_001_940), decoded.Summary.PaymentVolume)
	assert.Equal(t, uint64(1_000_004), decoded.Summary.FinalReserve)
}

func TestJournalExportFilters(t *testing.T) {
	exporter := NewJournalExporter(zap.NewNop())
	start := time.Date(2025, 3, 1, 12, 2, 30, 0, time.UTC)

	_, err := exporter.Export(testEntries(), ExportOptions{
		Format:       FormatCSV,
		SignerFilter: "carol",
		OutputDir:    t.TempDir(),
	})
	assert.Error(t, err)

	got := exporter.filter(testEntries(), ExportOptions{StartTime: start, SignerFilter: "alice"})
	require.Len(t, got, 1)
	assert.Equal(t, uint64(4), got[0].ID)

	_, err = exporter.Export(testEntries(), ExportOptions{Format: "xml", OutputDir: t.TempDir()})
	assert.Error(t, err)
}
