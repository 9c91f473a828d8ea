// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/storage/models"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format          ExportFormat
	StartTime       time.Time
	EndTime         time.Time
	SignerFilter    string
	OperationFilter string
	OutputDir       string
	Now             func() time.Time // file name timestamp; time.Now when nil
}

// JournalExporter writes journal entries to files.
type JournalExporter struct {
	logger *zap.Logger
}

func NewJournalExporter(logger *zap.Logger) *JournalExporter {
	return &JournalExporter{
		logger: logger.Named("export"),
	}
}

// Export writes the entries matching options, oldest first, and returns the
// file path.
func (je *JournalExporter) Export(entries []*models.Entry, options ExportOptions) (string, error) {
	filtered := je.filter(entries, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no journal entries match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].ID < filtered[j].ID
	})

	now := time.Now
	if options.Now != nil {
		now = options.Now
	}
	outputPath := filepath.Join(options.OutputDir, je.filename(options, now()))

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = je.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = je.exportToJSON(filtered, outputPath, now())
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	je.logger.Info("Journal exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (je *JournalExporter) filter(entries []*models.Entry, options ExportOptions) []*models.Entry {
	var filtered []*models.Entry
	for _, e := range entries {
		if !options.StartTime.IsZero() && e.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && e.CreatedAt.After(options.EndTime) {
			continue
		}
		if options.SignerFilter != "" && e.Signer != options.SignerFilter {
			continue
		}
		if options.OperationFilter != "" && e.Operation != options.OperationFilter {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (je *JournalExporter) filename(options ExportOptions, at time.Time) string {
	prefix := "journal_all"
	if options.OperationFilter != "" {
		prefix = "journal_" + options.OperationFilter
	}
	if len(options.SignerFilter) >= 8 {
		prefix += "_" + options.SignerFilter[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, at.Format("20060102_150405"), options.Format)
}

// CSVHeaders are the columns of a CSV export.
func CSVHeaders() []string {
	return []string{"id", "timestamp", "operation", "signer", "subject", "payment", "sale", "reserve_after", "supply_after"}
}

// CSVRecord renders one entry with amounts in whole units.
func CSVRecord(e *models.Entry) []string {
	return []string{
		strconv.FormatUint(e.ID, 10),
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.Operation,
		e.Signer,
		e.Subject,
		ledger.FormatPayment(e.PaymentAmount),
		ledger.FormatSale(e.SaleAmount),
		ledger.FormatPayment(e.ReserveAfter),
		ledger.FormatSale(e.SupplyAfter),
	}
}

func (je *JournalExporter) exportToCSV(entries []*models.Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write(CSVRecord(e)); err != nil {
			return fmt.Errorf("failed to write entry %d: %w", e.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (je *JournalExporter) exportToJSON(entries []*models.Entry, outputPath string, at time.Time) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time       `json:"export_time"`
		EntryCount int             `json:"entry_count"`
		Entries    []*models.Entry `json:"entries"`
		Summary    ExportSummary   `json:"summary"`
	}{
		ExportTime: at,
		EntryCount: len(entries),
		Entries:    entries,
		Summary:    Summarize(entries),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary contains summary statistics for exported entries
type ExportSummary struct {
	TotalEntries  int            `json:"total_entries"`
	ByOperation   map[string]int `json:"by_operation"`
	UniqueSigners int            `json:"unique_signers"`
	PaymentVolume uint64         `json:"payment_volume"`
	SaleVolume    uint64         `json:"sale_volume"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
	FinalReserve  uint64         `json:"final_reserve"`
	FinalSupply   uint64         `json:"final_supply"`
}

// Summarize aggregates entries sorted oldest first.
func Summarize(entries []*models.Entry) ExportSummary {
	summary := ExportSummary{
		TotalEntries: len(entries),
		ByOperation:  make(map[string]int),
	}
	if len(entries) == 0 {
		return summary
	}

	summary.StartDate = entries[0].CreatedAt
	summary.EndDate = entries[len(entries)-1].CreatedAt
	last := entries[len(entries)-1]
	summary.FinalReserve = last.ReserveAfter
	summary.FinalSupply = last.SupplyAfter

	signers := make(map[string]struct{})
	for _, e := range entries {
		signers[e.Signer] = struct{}{}
		summary.ByOperation[e.Operation]++
		summary.PaymentVolume += e.PaymentAmount
		summary.SaleVolume += e.SaleAmount
	}
	summary.UniqueSigners = len(signers)
	return summary
}
