package dataio

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/coronary-score-server/internal/domain"
)

const (
	sheetPatients = "patients"
	sheetLesions  = "lesions"
	sheetSummary  = "summary"
	sheetWarnings = "warnings"
)

var patientColumns = []string{
	"patient_id", "age", "gender", "diabetes", "hypertension", "hyperlipidemia",
	"smoking", "family_history", "creatinine_mg_dl", "ldl_cholesterol",
	"ejection_fraction", "dominance", "examination_date", "examination_type",
}

var lesionColumns = []string{
	"patient_id", "lesion_id", "vessel", "segment_id", "stenosis_percent",
	"location", "length_mm", "morphology", "is_bifurcation", "is_ostial",
	"is_calcified", "is_tortuous", "is_cto", "thrombus_present", "is_treated",
	"treatment_method",
}

func patientCells(p domain.PatientRecord) []any {
	date := ""
	if p.ExaminationDate != nil {
		date = p.ExaminationDate.Format("2006-01-02")
	}
	return []any{
		p.ID, p.Age, string(p.Sex), p.Diabetes, p.Hypertension, p.Hyperlipidemia,
		p.Smoking, p.FamilyHistory, optional(p.CreatinineMgDL), optional(p.LDLCholesterol),
		optional(p.EjectionFrac), string(p.Dominance), date, p.ExaminationType,
	}
}

func lesionCells(patientID string, l domain.Lesion) []any {
	segment := ""
	if l.SegmentID != nil {
		segment = strconv.Itoa(*l.SegmentID)
	}
	return []any{
		patientID, l.ID, string(l.Vessel), segment, l.StenosisPercent,
		string(l.Location), optional(l.LengthMM), string(l.Morphology), l.IsBifurcation, l.IsOstial,
		l.IsCalcified, l.IsTortuous, l.IsCTO, l.ThrombusPresent, l.IsTreated,
		l.TreatmentMethod,
	}
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

// WritePatientsWorkbook writes patients in the long two-sheet layout that
// ImportFile reads back.
func WritePatientsWorkbook(path string, patients []domain.PatientRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetPatients); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetLesions); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	patientRows := make([][]any, 0, len(patients))
	var lesionRows [][]any
	for _, p := range patients {
		patientRows = append(patientRows, patientCells(p))
		for _, l := range p.Lesions {
			lesionRows = append(lesionRows, lesionCells(p.ID, l))
		}
	}
	if err := writeSheet(f, sheetPatients, patientColumns, patientRows); err != nil {
		return err
	}
	if err := writeSheet(f, sheetLesions, lesionColumns, lesionRows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
