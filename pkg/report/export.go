package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// Format names an export file format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var csvHeader = []string{"email", "confidence", "is_valid", "source", "reason"}

// ParseFormats validates a list of format names. Empty entries are skipped and
// duplicates collapsed.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool, len(names))
	var formats []Format
	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		if f == "" || seen[f] {
			continue
		}
		switch f {
		case FormatJSON, FormatCSV, FormatXLSX:
		default:
			return nil, fmt.Errorf("%w: unknown export format %q (want json, csv or xlsx)", utils.ErrConfigValidation, name)
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}

// exportDocument is the JSON export layout
type exportDocument struct {
	Domain         string          `json:"domain"`
	SessionID      string          `json:"session_id,omitempty"`
	Outcome        models.Outcome  `json:"outcome"`
	ExportedAt     time.Time       `json:"exported_at"`
	URLs           []string        `json:"urls"`
	FoundCount     int             `json:"found_count"`
	GeneratedCount int             `json:"generated_count"`
	ValidCount     int             `json:"valid_count"`
	Records        []models.Record `json:"records"`
}

// Exporter writes discovery reports to files under one output directory
type Exporter struct {
	outputDir string
	log       *logrus.Entry
}

// NewExporter creates an exporter; the directory is created on first export
func NewExporter(outputDir string, log *logrus.Entry) *Exporter {
	return &Exporter{outputDir: outputDir, log: log}
}

// Export writes rep once per format and returns the written paths.
// File names are derived from the domain and at.
func (e *Exporter) Export(rep *pipeline.Report, sessionID string, formats []Format, at time.Time) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating output directory '%s': %w", utils.ErrFilesystem, e.outputDir, err)
	}

	exportLog := e.log.WithField("domain", rep.Domain)
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(e.outputDir, utils.ExportFilename(rep.Domain, at, "."+string(f)))
		var err error
		switch f {
		case FormatJSON:
			err = writeJSON(path, rep, sessionID, at)
		case FormatCSV:
			err = writeCSV(path, rep.Records)
		case FormatXLSX:
			err = writeXLSX(path, rep)
		default:
			err = fmt.Errorf("%w: unknown export format %q", utils.ErrConfigValidation, f)
		}
		if err != nil {
			exportLog.WithField("error_type", utils.CategorizeError(err)).Errorf("Export to %s failed: %v", f, err)
			return paths, err
		}
		exportLog.Infof("Exported %d records to %s", len(rep.Records), path)
		paths = append(paths, path)
	}
	return paths, nil
}

// createOutputFile truncates or creates path for writing
func createOutputFile(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening '%s': %w", utils.ErrFilesystem, path, err)
	}
	return file, nil
}

// closeOutputFile syncs and closes file, keeping the first error seen
func closeOutputFile(file *os.File, writeErr error) error {
	if writeErr != nil {
		_ = file.Close()
		return writeErr
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("%w: syncing '%s': %w", utils.ErrFilesystem, file.Name(), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, file.Name(), err)
	}
	return nil
}

func writeJSON(path string, rep *pipeline.Report, sessionID string, at time.Time) error {
	doc := exportDocument{
		Domain:         rep.Domain,
		SessionID:      sessionID,
		Outcome:        rep.Outcome,
		ExportedAt:     at,
		URLs:           rep.URLs,
		FoundCount:     rep.FoundCount,
		GeneratedCount: rep.GeneratedCount,
		ValidCount:     rep.ValidCount(),
		Records:        rep.Records,
	}
	if doc.URLs == nil {
		doc.URLs = []string{}
	}
	if doc.Records == nil {
		doc.Records = []models.Record{}
	}

	file, err := createOutputFile(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	var writeErr error
	if err := enc.Encode(doc); err != nil {
		writeErr = fmt.Errorf("%w: writing JSON '%s': %w", utils.ErrFilesystem, path, err)
	}
	return closeOutputFile(file, writeErr)
}

func writeCSV(path string, records []models.Record) error {
	file, err := createOutputFile(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(file)
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, csvHeader)
	for _, r := range records {
		rows = append(rows, []string{
			r.Email,
			strconv.Itoa(r.Confidence),
			strconv.FormatBool(r.IsValid),
			r.Source.String(),
			r.Reason,
		})
	}
	var writeErr error
	// WriteAll flushes
	if err := w.WriteAll(rows); err != nil {
		writeErr = fmt.Errorf("%w: writing CSV '%s': %w", utils.ErrFilesystem, path, err)
	}
	return closeOutputFile(file, writeErr)
}

const (
	recordsSheet = "Emails"
	summarySheet = "Summary"
)

func writeXLSX(path string, rep *pipeline.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return fmt.Errorf("%w: xlsx sheet: %w", utils.ErrFilesystem, err)
	}
	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(recordsSheet, "A1", &header); err != nil {
		return fmt.Errorf("%w: xlsx header: %w", utils.ErrFilesystem, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("%w: xlsx style: %w", utils.ErrFilesystem, err)
	}
	if err := f.SetCellStyle(recordsSheet, "A1", "E1", bold); err != nil {
		return fmt.Errorf("%w: xlsx style: %w", utils.ErrFilesystem, err)
	}

	for i, r := range rep.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%w: xlsx row %d: %w", utils.ErrFilesystem, i+2, err)
		}
		row := []interface{}{r.Email, r.Confidence, r.IsValid, r.Source.String(), r.Reason}
		if err := f.SetSheetRow(recordsSheet, cell, &row); err != nil {
			return fmt.Errorf("%w: xlsx row %d: %w", utils.ErrFilesystem, i+2, err)
		}
	}
	_ = f.SetColWidth(recordsSheet, "A", "A", 36)
	_ = f.SetColWidth(recordsSheet, "E", "E", 60)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("%w: xlsx sheet: %w", utils.ErrFilesystem, err)
	}
	summary := [][]interface{}{
		{"Domain", rep.Domain},
		{"Outcome", string(rep.Outcome)},
		{"Pages", len(rep.URLs)},
		{"Found", rep.FoundCount},
		{"Generated", rep.GeneratedCount},
		{"Valid", rep.ValidCount()},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("%w: xlsx summary: %w", utils.ErrFilesystem, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: saving xlsx '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
