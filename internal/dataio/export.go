package dataio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/coronary-score-server/internal/domain"
)

// Summary is the one-row view of a patient's scores.
type Summary struct {
	PatientID       string `json:"patient_id"`
	SyntaxScore     string `json:"syntax_score"`
	SyntaxRisk      string `json:"syntax_risk"`
	GensiniScore    string `json:"gensini_score"`
	GensiniSeverity string `json:"gensini_severity"`
	CadRads         string `json:"cad_rads"`
	Warnings        int    `json:"warnings"`
	Error           string `json:"error,omitempty"`
}

var summaryColumns = []string{
	"patient_id", "syntax_score", "syntax_risk", "gensini_score",
	"gensini_severity", "cad_rads", "warnings", "error",
}

func (s Summary) cells() []string {
	return []string{
		s.PatientID, s.SyntaxScore, s.SyntaxRisk, s.GensiniScore,
		s.GensiniSeverity, s.CadRads, strconv.Itoa(s.Warnings), s.Error,
	}
}

// Summarize flattens batch items into summary rows, keeping input order.
func Summarize(items []domain.BatchItem) []Summary {
	out := make([]Summary, 0, len(items))
	for _, item := range items {
		s := Summary{PatientID: item.PatientID, Error: item.Error}
		if item.Err != nil && s.Error == "" {
			s.Error = item.Err.Error()
		}
		if b := item.Bundle; b != nil {
			if b.Syntax != nil {
				s.SyntaxScore = formatScore(b.Syntax.Result.TotalScore)
				s.SyntaxRisk = string(b.Syntax.Result.RiskCategory)
			}
			if b.Gensini != nil {
				s.GensiniScore = formatScore(b.Gensini.Result.TotalScore)
				s.GensiniSeverity = string(b.Gensini.Result.Severity)
			}
			if b.CadRads != nil {
				s.CadRads = b.CadRads.Result.Label
			}
			s.Warnings = len(b.Warnings())
		}
		out = append(out, s)
	}
	return out
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// WriteResultsJSON writes the full batch items as indented JSON.
func WriteResultsJSON(w io.Writer, items []domain.BatchItem) error {
	for i := range items {
		if items[i].Err != nil && items[i].Error == "" {
			items[i].Error = items[i].Err.Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

// WriteSummaryCSV writes one summary row per patient.
func WriteSummaryCSV(w io.Writer, items []domain.BatchItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryColumns); err != nil {
		return err
	}
	for _, s := range Summarize(items) {
		if err := cw.Write(s.cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryExcel writes a summary sheet and a warnings sheet.
func WriteSummaryExcel(path string, items []domain.BatchItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetWarnings); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	var summaryRows [][]any
	for _, s := range Summarize(items) {
		summaryRows = append(summaryRows, toAny(s.cells()))
	}
	if err := writeSheet(f, sheetSummary, summaryColumns, summaryRows); err != nil {
		return err
	}

	var warningRows [][]any
	for _, item := range items {
		if item.Bundle == nil {
			continue
		}
		for _, w := range item.Bundle.Warnings() {
			warningRows = append(warningRows, []any{item.PatientID, w.LesionIndex + 1, w.LesionID, w.Message})
		}
	}
	if err := writeSheet(f, sheetWarnings, []string{"patient_id", "lesion_index", "lesion_id", "message"}, warningRows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

// ExportResults writes results according to the output extension. An Excel
// summary is accompanied by the full results as JSON next to it.
func ExportResults(path string, items []domain.BatchItem) ([]string, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return []string{path}, writeFile(path, func(w io.Writer) error { return WriteResultsJSON(w, items) })
	case ".csv":
		return []string{path}, writeFile(path, func(w io.Writer) error { return WriteSummaryCSV(w, items) })
	case ".xlsx":
		if err := WriteSummaryExcel(path, items); err != nil {
			return nil, err
		}
		jsonPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
		if err := writeFile(jsonPath, func(w io.Writer) error { return WriteResultsJSON(w, items) }); err != nil {
			return nil, err
		}
		return []string{path, jsonPath}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", ext)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
