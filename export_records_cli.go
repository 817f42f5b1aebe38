package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/openproof/signet/pkg/log"
)

// ExportOptions contains options for exporting verification records
type ExportOptions struct {
	Limit     int
	OutputDir string
}

// RecordExporter handles exporting verification records to CSV
type RecordExporter struct {
	store *RecordStore
}

// NewRecordExporter creates a new record exporter
func NewRecordExporter(store *RecordStore) *RecordExporter {
	return &RecordExporter{
		store: store,
	}
}

// ExportToCSV exports verification records to CSV format
func (e *RecordExporter) ExportToCSV(writer io.Writer, options ExportOptions) error {
	records, err := e.store.Recent(options.Limit)
	if err != nil {
		return fmt.Errorf("failed to get records: %w", err)
	}

	csvWriter := csv.NewWriter(writer)
	defer csvWriter.Flush()

	// Write header
	header := []string{"ID", "Address", "MessageDigest", "Valid", "Reason", "CreatedAt"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write header to CSV: %w", err)
	}

	// Write records
	for _, record := range records {
		row := []string{
			fmt.Sprintf("%d", record.ID),
			record.Address,
			record.MessageDigest,
			strconv.FormatBool(record.Valid),
			record.Reason,
			record.CreatedAt.Format(time.RFC3339),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write row to CSV: %w", err)
		}
	}
	return nil
}

// ExportToFile exports verification records to a CSV file
func (e *RecordExporter) ExportToFile(options ExportOptions) (string, error) {
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", options.OutputDir, err)
	}

	fileName := filepath.Join(options.OutputDir, fmt.Sprintf("verifications_%s.csv", time.Now().Format("20060102T150405")))
	file, err := os.Create(fileName)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file %s: %w", fileName, err)
	}
	defer file.Close()

	if err := e.ExportToCSV(file, options); err != nil {
		return "", fmt.Errorf("failed to export to CSV: %w", err)
	}

	return fileName, nil
}

func runExportRecordsCli(logger log.Logger) {
	logger = logger.WithName("export-records")
	if len(os.Args) > 3 {
		logger.Fatal("Usage: signetd export-records [limit]")
	}

	limit := 0
	if len(os.Args) > 2 {
		parsed, err := strconv.Atoi(os.Args[2])
		if err != nil || parsed < 0 {
			logger.Fatal("Invalid limit", "value", os.Args[2])
		}
		limit = parsed
	}

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	dbConf, err := ParseConnectionString(config.DatabaseURL)
	if err != nil {
		logger.Fatal("Invalid database url", "error", err)
	}
	db, err := ConnectToDB(dbConf)
	if err != nil {
		logger.Fatal("Failed to setup database", "error", err)
	}

	exporter := NewRecordExporter(NewRecordStore(db))
	options := ExportOptions{
		Limit:     limit,
		OutputDir: "csv_export",
	}

	fileName, err := exporter.ExportToFile(options)
	if err != nil {
		logger.Fatal("Failed to export records", "error", err)
	}
	logger.Info("Successfully exported records", "file", fileName)
}
