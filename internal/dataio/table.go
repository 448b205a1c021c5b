package dataio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coronary-score-server/internal/domain"
)

// ErrNoRows is returned for a table without any data row.
var ErrNoRows = errors.New("no data rows")

// table is a header plus string rows, the common shape of CSV and sheets.
type table struct {
	file   string
	header []string
	rows   [][]string
}

// row is one data row with header lookup.
type row struct {
	file   string
	number int // 1-based, counting the header line
	fields map[string]string
	cells  []string
	header []string
}

func (t *table) fieldIndex() map[string]int {
	idx := make(map[string]int)
	for i, h := range t.header {
		if field, ok := aliasToField[normalizeHeader(h)]; ok {
			if _, dup := idx[field]; !dup {
				idx[field] = i
			}
		}
	}
	return idx
}

func (t *table) isWide() bool {
	for _, h := range t.header {
		if _, _, ok := SegmentHeader(h); ok {
			return true
		}
	}
	return false
}

func (t *table) eachRow(fn func(r *row) error) error {
	idx := t.fieldIndex()
	for i, cells := range t.rows {
		if blank(cells) {
			continue
		}
		r := &row{file: t.file, number: i + 2, fields: make(map[string]string, len(idx)), cells: cells, header: t.header}
		for field, col := range idx {
			if col < len(cells) {
				r.fields[field] = strings.TrimSpace(cells[col])
			}
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (r *row) get(field string) string {
	return r.fields[field]
}

func (r *row) fail(err error) error {
	return &domain.ImportError{File: r.file, Row: r.number, Err: err}
}

// parseTable converts a table in either long or wide layout.
func parseTable(t *table) ([]domain.PatientRecord, error) {
	if len(t.rows) == 0 {
		return nil, &domain.ImportError{File: t.file, Err: ErrNoRows}
	}
	if t.isWide() {
		return parseWide(t)
	}
	return parseLong(t)
}

// parseWide reads one patient per row with one column per segment.
func parseWide(t *table) ([]domain.PatientRecord, error) {
	var patients []domain.PatientRecord
	err := t.eachRow(func(r *row) error {
		p, err := patientFromRow(r)
		if err != nil {
			return err
		}
		for i, h := range r.header {
			vessel, location, ok := SegmentHeader(h)
			if !ok || i >= len(r.cells) {
				continue
			}
			cell := r.cells[i]
			stenosis, ok := NormalizeStenosis(cell)
			if !ok {
				continue
			}
			l := domain.Lesion{
				ID:              fmt.Sprintf("%s-%s", p.ID, strings.TrimSpace(h)),
				Vessel:          vessel,
				Location:        location,
				StenosisPercent: stenosis,
			}
			applyCellFeatures(&l, cell)
			p.Lesions = append(p.Lesions, l)
		}
		patients = append(patients, *p)
		return nil
	})
	return patients, err
}

// parseLong reads one lesion per row grouped by patient_id. A row with an
// empty vessel carries a patient without lesions.
func parseLong(t *table) ([]domain.PatientRecord, error) {
	var order []string
	byID := make(map[string]*domain.PatientRecord)

	err := t.eachRow(func(r *row) error {
		key := r.get("patient_id")
		if key == "" {
			key = "#" + strconv.Itoa(r.number)
		}
		p, seen := byID[key]
		if !seen {
			var err error
			if p, err = patientFromRow(r); err != nil {
				return err
			}
			byID[key] = p
			order = append(order, key)
		}

		if r.get("vessel") == "" {
			return nil
		}
		l, err := lesionFromRow(r)
		if err != nil {
			return err
		}
		p.Lesions = append(p.Lesions, l)
		return nil
	})
	if err != nil {
		return nil, err
	}

	patients := make([]domain.PatientRecord, 0, len(order))
	for _, key := range order {
		patients = append(patients, *byID[key])
	}
	return patients, nil
}

// mergeLesions appends the rows of a separate lesion table to the patients
// they reference by patient_id.
func mergeLesions(patients []domain.PatientRecord, t *table) error {
	index := make(map[string]int, len(patients))
	for i, p := range patients {
		index[p.ID] = i
	}
	return t.eachRow(func(r *row) error {
		id := r.get("patient_id")
		i, ok := index[id]
		if !ok {
			return r.fail(fmt.Errorf("lesion references unknown patient %q", id))
		}
		if r.get("vessel") == "" {
			return nil
		}
		l, err := lesionFromRow(r)
		if err != nil {
			return err
		}
		patients[i].Lesions = append(patients[i].Lesions, l)
		return nil
	})
}

func patientFromRow(r *row) (*domain.PatientRecord, error) {
	p := &domain.PatientRecord{ID: r.get("patient_id")}

	age := r.get("age")
	if age == "" {
		return nil, r.fail(fmt.Errorf("%w: age", domain.ErrMissingPatientField))
	}
	v, err := parseNumber(age)
	if err != nil {
		return nil, r.fail(fmt.Errorf("invalid age %q: %w", age, err))
	}
	p.Age = int(v)

	gender := r.get("gender")
	if gender == "" {
		return nil, r.fail(fmt.Errorf("%w: gender", domain.ErrMissingPatientField))
	}
	if p.Sex, err = parseGender(gender); err != nil {
		return nil, r.fail(err)
	}

	p.Diabetes = boolField(r, "diabetes")
	p.Hypertension = boolField(r, "hypertension")
	p.Hyperlipidemia = boolField(r, "hyperlipidemia")
	p.Smoking = boolField(r, "smoking")
	p.FamilyHistory = boolField(r, "family_history")

	if p.CreatinineMgDL, err = optionalNumber(r, "creatinine_mg_dl"); err != nil {
		return nil, err
	}
	if p.LDLCholesterol, err = optionalNumber(r, "ldl_cholesterol"); err != nil {
		return nil, err
	}
	if p.EjectionFrac, err = optionalNumber(r, "ejection_fraction"); err != nil {
		return nil, err
	}
	if d := r.get("dominance"); d != "" {
		if p.Dominance, err = domain.ParseDominance(d); err != nil {
			return nil, r.fail(err)
		}
	}
	if raw := r.get("examination_date"); raw != "" {
		if t, ok := parseDate(raw); ok {
			p.ExaminationDate = &t
		}
	}
	p.ExaminationType = r.get("examination_type")
	return p, nil
}

func lesionFromRow(r *row) (domain.Lesion, error) {
	l := domain.Lesion{ID: r.get("lesion_id")}

	var err error
	if l.Vessel, err = domain.ParseVessel(r.get("vessel")); err != nil {
		return l, r.fail(err)
	}
	if loc := r.get("location"); loc != "" {
		if l.Location, err = domain.ParseLocation(loc); err != nil {
			return l, r.fail(err)
		}
	}
	if seg := r.get("segment_id"); seg != "" {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return l, r.fail(fmt.Errorf("invalid segment_id %q: %w", seg, err))
		}
		l.SegmentID = &n
	}

	raw := r.get("stenosis_percent")
	if stenosis, ok := NormalizeStenosis(raw); ok {
		l.StenosisPercent = stenosis
	} else if strings.TrimSpace(raw) != "" && strings.TrimSpace(raw) != "0" {
		if _, err := parseNumber(raw); err != nil {
			return l, r.fail(fmt.Errorf("invalid stenosis %q", raw))
		}
	}

	if l.LengthMM, err = optionalNumber(r, "length_mm"); err != nil {
		return l, err
	}
	if m := r.get("morphology"); m != "" {
		if l.Morphology, err = domain.ParseMorphology(m); err != nil {
			return l, r.fail(err)
		}
	}

	l.IsBifurcation = boolField(r, "is_bifurcation")
	l.IsOstial = boolField(r, "is_ostial")
	l.IsCalcified = boolField(r, "is_calcified")
	l.IsTortuous = boolField(r, "is_tortuous")
	l.IsCTO = boolField(r, "is_cto")
	l.ThrombusPresent = boolField(r, "thrombus_present")
	l.IsTreated = boolField(r, "is_treated")
	l.TreatmentMethod = r.get("treatment_method")
	l.Medina = r.get("medina")
	l.OcclusionOver3Months = boolField(r, "occlusion_over_3_months")
	l.BluntStump = boolField(r, "blunt_stump")
	l.BridgingCollaterals = boolField(r, "bridging_collaterals")
	l.FirstSegmentInvisible = boolField(r, "first_segment_invisible")
	l.NonDiagnostic = boolField(r, "non_diagnostic")

	if l.BifurcationAngleDeg, err = optionalNumber(r, "bifurcation_angle_deg"); err != nil {
		return l, err
	}
	for field, dst := range map[string]*int{
		"side_branches_at_occlusion":     &l.SideBranchesAtOcclusion,
		"trifurcation_diseased_segments": &l.TrifurcationSegments,
		"diffuse_small_vessel_segments":  &l.DiffuseSmallVessel,
	} {
		if raw := r.get(field); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return l, r.fail(fmt.Errorf("invalid %s %q: %w", field, raw, err))
			}
			*dst = n
		}
	}
	return l, nil
}

func boolField(r *row, field string) bool {
	v, _ := parseBool(r.get(field))
	return v
}

func optionalNumber(r *row, field string) (*float64, error) {
	raw := r.get(field)
	if raw == "" {
		return nil, nil
	}
	v, err := parseNumber(raw)
	if err != nil {
		return nil, r.fail(fmt.Errorf("invalid %s %q: %w", field, raw, err))
	}
	return &v, nil
}
