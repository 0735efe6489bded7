package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/orchestrate"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

var exportTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		Domain:  "example.com",
		Outcome: models.OutcomeCompleted,
		URLs:    []string{"http://example.com/", "http://example.com/contact"},
		Records: []models.Record{
			{Email: "info@example.com", Confidence: 75, IsValid: true, Reason: "Format: OK, MX: OK", Source: models.SourceGenerated},
			{Email: "jane.doe@example.com", Confidence: 100, IsValid: true, Reason: "Format: OK, MX: OK", Source: models.SourceObserved},
			{Email: "x@10minutemail.com", Confidence: 10, IsValid: false, Reason: "Disposable email domain", Source: models.SourceMailto},
		},
		FoundCount:     2,
		GeneratedCount: 1,
	}
}

func TestParseFormats(t *testing.T) {
	formats, err := ParseFormats([]string{"JSON", " csv ", "", "json", "xlsx"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatJSON, FormatCSV, FormatXLSX}, formats)

	_, err = ParseFormats([]string{"pdf"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfigValidation))
}

func TestExport_AllFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	exp := NewExporter(dir, testLogger())

	paths, err := exp.Export(sampleReport(), "sess-1", []Format{FormatJSON, FormatCSV, FormatXLSX}, exportTime)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "example_com_20240309-140507.json"), paths[0])
	assert.Equal(t, filepath.Join(dir, "example_com_20240309-140507.csv"), paths[1])
	assert.Equal(t, filepath.Join(dir, "example_com_20240309-140507.xlsx"), paths[2])

	t.Run("JSON", func(t *testing.T) {
		data, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		var doc exportDocument
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "example.com", doc.Domain)
		assert.Equal(t, "sess-1", doc.SessionID)
		assert.Equal(t, models.OutcomeCompleted, doc.Outcome)
		assert.Equal(t, 2, doc.ValidCount)
		require.Len(t, doc.Records, 3)
		assert.Equal(t, models.SourceObserved, doc.Records[1].Source)
	})

	t.Run("CSV", func(t *testing.T) {
		file, err := os.Open(paths[1])
		require.NoError(t, err)
		defer file.Close()
		rows, err := csv.NewReader(file).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, csvHeader, rows[0])
		assert.Equal(t, []string{"jane.doe@example.com", "100", "true", "observed", "Format: OK, MX: OK"}, rows[2])
		assert.Equal(t, "false", rows[3][2])
	})

	t.Run("XLSX", func(t *testing.T) {
		f, err := excelize.OpenFile(paths[2])
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, []string{recordsSheet, summarySheet}, f.GetSheetList())

		rows, err := f.GetRows(recordsSheet)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "email", rows[0][0])
		assert.Equal(t, "jane.doe@example.com", rows[2][0])
		assert.Equal(t, "100", rows[2][1])

		summary, err := f.GetRows(summarySheet)
		require.NoError(t, err)
		require.Len(t, summary, 6)
		assert.Equal(t, []string{"Valid", "2"}, summary[5])
	})
}

func TestExport_NoFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never")
	paths, err := NewExporter(dir, testLogger()).Export(sampleReport(), "", nil, exportTime)
	require.NoError(t, err)
	assert.Empty(t, paths)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExport_EmptyReportWritesEmptyArrays(t *testing.T) {
	rep := &pipeline.Report{Domain: "blocked.example", Outcome: models.OutcomeBlocked}
	paths, err := NewExporter(t.TempDir(), testLogger()).Export(rep, "", []Format{FormatJSON}, exportTime)
	require.NoError(t, err)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"records": []`)
	assert.Contains(t, string(data), `"urls": []`)
}

func TestExport_UnwritableDirectory(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := NewExporter(filepath.Join(blocker, "sub"), testLogger()).Export(sampleReport(), "", []Format{FormatCSV}, exportTime)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrFilesystem))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "jane.doe@example.com")
	assert.Contains(t, out, "invalid")
	assert.Contains(t, out, "Disposable email domain")
	assert.Contains(t, out, "2 pages, 2 found, 1 generated, 2 valid")
}

func TestPrintTable_NoRecords(t *testing.T) {
	var buf bytes.Buffer
	rep := &pipeline.Report{Domain: "example.com", Outcome: models.OutcomeError, Err: errors.New("crawl failed")}
	require.NoError(t, PrintTable(&buf, rep))
	assert.Contains(t, buf.String(), "error: crawl failed")
	assert.Contains(t, buf.String(), "no email addresses")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	results := []orchestrate.DomainResult{
		{Domain: "example.com", Report: sampleReport(), Duration: 1500 * time.Millisecond},
		{Domain: "blocked.example", Report: &pipeline.Report{Outcome: models.OutcomeBlocked}},
	}
	require.NoError(t, PrintSummary(&buf, results))
	out := buf.String()
	assert.Contains(t, out, "DOMAIN")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "blocked")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	seen := time.Date(2024, 3, 9, 14, 5, 0, 0, time.Local)
	entries := []models.ResultDBEntry{{
		Record:    models.Record{Email: "jane.doe@example.com", Confidence: 100, IsValid: true, Source: models.SourceObserved},
		LastSeen:  seen,
		SeenCount: 3,
	}}
	sessions := []models.Session{{ID: "s1", Domain: "example.com", StartedAt: seen, Outcome: models.OutcomeCompleted, ValidCount: 1}}

	require.NoError(t, PrintHistory(&buf, "example.com", entries, sessions))
	out := buf.String()
	assert.Contains(t, out, "jane.doe@example.com")
	assert.Contains(t, out, "2024-03-09 14:05")
	assert.Contains(t, out, "Sessions:")
}

func TestPrintHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintHistory(&buf, "example.com", nil, nil))
	assert.Contains(t, buf.String(), "no stored results")
	assert.NotContains(t, buf.String(), "Sessions:")
}
