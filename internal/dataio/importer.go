// Package dataio reads patient records from JSON, CSV and Excel files and
// writes score results back out.
package dataio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/coronary-score-server/internal/domain"
)

// Importer loads patient records from files.
type Importer struct {
	logger *logrus.Logger
}

// NewImporter creates a new importer
func NewImporter(logger *logrus.Logger) *Importer {
	return &Importer{logger: logger}
}

// ImportFile dispatches on the file extension.
func (im *Importer) ImportFile(path string) ([]domain.PatientRecord, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		patients []domain.PatientRecord
		err      error
	)
	switch ext {
	case ".json":
		var data []byte
		if data, err = os.ReadFile(path); err != nil {
			return nil, &domain.ImportError{File: path, Err: err}
		}
		patients, err = ParseJSON(path, data)
	case ".csv":
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, &domain.ImportError{File: path, Err: err}
		}
		defer f.Close()
		patients, err = ParseCSV(path, f)
	case ".xlsx", ".xlsm":
		patients, err = im.importExcel(path)
	default:
		return nil, &domain.ImportError{File: path, Err: fmt.Errorf("unsupported file format %q", ext)}
	}
	if err != nil {
		return nil, err
	}

	lesions := 0
	for _, p := range patients {
		lesions += len(p.Lesions)
	}
	im.logger.WithFields(logrus.Fields{
		"file":     path,
		"format":   ext,
		"patients": len(patients),
		"lesions":  lesions,
	}).Info("Imported patient records")
	return patients, nil
}

// ParseJSON decodes one patient object or an array of them.
func ParseJSON(name string, data []byte) ([]domain.PatientRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &domain.ImportError{File: name, Err: ErrNoRows}
	}

	var raws []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, &domain.ImportError{File: name, Err: err}
		}
	} else {
		raws = []json.RawMessage{trimmed}
	}

	patients := make([]domain.PatientRecord, 0, len(raws))
	for i, raw := range raws {
		p, err := decodePatient(raw)
		if err != nil {
			return nil, &domain.ImportError{File: name, Row: i + 1, Err: err}
		}
		patients = append(patients, *p)
	}
	return patients, nil
}

func decodePatient(raw json.RawMessage) (*domain.PatientRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for _, required := range []string{"age", "gender"} {
		if v, ok := fields[required]; !ok || string(v) == "null" {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingPatientField, required)
		}
	}

	// date-only examination dates are common in exports
	if v, ok := fields["examination_date"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			if t, ok := parseDate(s); ok {
				fields["examination_date"], _ = json.Marshal(t)
			} else {
				delete(fields, "examination_date")
			}
		}
	}
	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	var p domain.PatientRecord
	if err := json.Unmarshal(normalized, &p); err != nil {
		return nil, err
	}
	canonicalize(&p)
	return &p, nil
}

// canonicalize maps accepted aliases onto wire values. Values that do not
// parse are left for validation to report.
func canonicalize(p *domain.PatientRecord) {
	if s, err := parseGender(string(p.Sex)); err == nil {
		p.Sex = s
	}
	if p.Dominance != "" {
		if d, err := domain.ParseDominance(string(p.Dominance)); err == nil {
			p.Dominance = d
		}
	}
	for i := range p.Lesions {
		l := &p.Lesions[i]
		if v, err := domain.ParseVessel(string(l.Vessel)); err == nil {
			l.Vessel = v
		}
		if l.Location != "" {
			if loc, err := domain.ParseLocation(string(l.Location)); err == nil {
				l.Location = loc
			}
		}
		if l.Morphology != "" {
			if m, err := domain.ParseMorphology(string(l.Morphology)); err == nil {
				l.Morphology = m
			}
		}
	}
}

// ParseCSV reads a long or wide CSV table.
func ParseCSV(name string, r io.Reader) ([]domain.PatientRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &domain.ImportError{File: name, Err: err}
	}
	if len(records) == 0 {
		return nil, &domain.ImportError{File: name, Err: ErrNoRows}
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return parseTable(&table{file: name, header: header, rows: records[1:]})
}

// importExcel reads a workbook. A patients sheet, optionally with a lesions
// sheet, is the long layout; otherwise the first sheet is parsed as a table.
func (im *Importer) importExcel(path string) ([]domain.PatientRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &domain.ImportError{File: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	has := func(name string) bool {
		for _, s := range sheets {
			if strings.EqualFold(s, name) {
				return true
			}
		}
		return false
	}
	if len(sheets) == 0 {
		return nil, &domain.ImportError{File: path, Err: ErrNoRows}
	}

	if !has(sheetPatients) {
		t, err := readSheet(f, path, sheets[0])
		if err != nil {
			return nil, err
		}
		return parseTable(t)
	}

	pt, err := readSheet(f, path, sheetPatients)
	if err != nil {
		return nil, err
	}
	patients, err := parseTable(pt)
	if err != nil {
		return nil, err
	}
	if has(sheetLesions) {
		lt, err := readSheet(f, path, sheetLesions)
		if err != nil {
			return nil, err
		}
		if len(lt.rows) > 0 {
			if err := mergeLesions(patients, lt); err != nil {
				return nil, err
			}
		}
	}
	im.logger.WithField("sheets", sheets).Debug("Read long-format workbook")
	return patients, nil
}

func readSheet(f *excelize.File, path, sheet string) (*table, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &domain.ImportError{File: path, Err: fmt.Errorf("sheet %s: %w", sheet, err)}
	}
	if len(rows) == 0 {
		return nil, &domain.ImportError{File: path, Err: fmt.Errorf("sheet %s: %w", sheet, ErrNoRows)}
	}
	return &table{file: path + ":" + sheet, header: rows[0], rows: rows[1:]}, nil
}
