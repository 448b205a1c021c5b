// Package validation checks patient records before they reach the scorers.
// Range and consistency violations become ValidationErrors; clinically odd
// but legal combinations become warnings.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/coronary-score-server/internal/catalog"
	"github.com/coronary-score-server/internal/domain"
)

// Report is the outcome of validating one patient.
type Report struct {
	PatientID string                    `json:"patient_id,omitempty"`
	Valid     bool                      `json:"valid"`
	Errors    []*domain.ValidationError `json:"errors,omitempty"`
	Warnings  []string                  `json:"warnings,omitempty"`
}

// Err folds the report's errors into a single error, or nil when valid.
func (r *Report) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return &domain.PatientError{PatientID: r.PatientID, Err: errors.Join(errs...)}
}

// Messages returns the error messages as plain strings.
func (r *Report) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Error())
	}
	return out
}

// Validator validates patient records
type Validator struct {
	logger *logrus.Logger
}

// NewValidator creates a new validator
func NewValidator(logger *logrus.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate runs the range checks and the consistency checks.
func (v *Validator) Validate(p *domain.PatientRecord) *Report {
	r := &Report{PatientID: p.ID}
	add := func(field, message string, value interface{}) {
		r.Errors = append(r.Errors, domain.NewValidationError(field, message, value))
	}

	if err := CheckPatientFields(p); err != nil {
		var pe *domain.PatientError
		if errors.As(err, &pe) {
			add(pe.Field, pe.Err.Error(), nil)
		}
	}

	if p.Dominance != "" && !p.Dominance.IsValid() {
		add("dominance", "must be right, left or balanced", p.Dominance)
	}
	if c := p.CreatinineMgDL; c != nil && (*c < 0 || *c > 20) {
		add("creatinine_mg_dl", "must be between 0 and 20 mg/dL", *c)
	}
	if ef := p.EjectionFrac; ef != nil && (*ef < 10 || *ef > 100) {
		add("ejection_fraction", "must be between 10 and 100%", *ef)
	}
	if ldl := p.LDLCholesterol; ldl != nil && *ldl < 0 {
		add("ldl_cholesterol", "must not be negative", *ldl)
	}

	for i, l := range p.Lesions {
		for _, e := range validateLesion(l, p.EffectiveDominance()) {
			e.Field = fmt.Sprintf("lesions[%d].%s", i, e.Field)
			r.Errors = append(r.Errors, e)
		}
	}

	r.Warnings = ConsistencyWarnings(p)
	r.Valid = len(r.Errors) == 0

	if v.logger != nil {
		v.logger.WithFields(logrus.Fields{
			"patient_id": p.ID,
			"valid":      r.Valid,
			"errors":     len(r.Errors),
			"warnings":   len(r.Warnings),
		}).Debug("Validated patient record")
	}
	return r
}

// CheckPatientFields checks the fields without which no standard can be
// scored: sex and an age in 0-150.
func CheckPatientFields(p *domain.PatientRecord) error {
	if p.Sex == "" {
		return &domain.PatientError{PatientID: p.ID, Field: "gender", Err: domain.ErrMissingPatientField}
	}
	if !p.Sex.IsValid() {
		return &domain.PatientError{PatientID: p.ID, Field: "gender", Err: fmt.Errorf("%w: %q", domain.ErrInvalidSex, p.Sex)}
	}
	if p.Age < 0 || p.Age > 150 {
		return &domain.PatientError{PatientID: p.ID, Field: "age", Err: fmt.Errorf("%w: %d not in 0-150", domain.ErrPatientOutOfRange, p.Age)}
	}
	return nil
}

func validateLesion(l domain.Lesion, dominance domain.Dominance) []*domain.ValidationError {
	var errs []*domain.ValidationError
	add := func(field, message string, value interface{}) {
		errs = append(errs, domain.NewValidationError(field, message, value))
	}

	if !l.Vessel.IsValid() {
		add("vessel", "unknown vessel", l.Vessel)
	}
	if l.Location != "" && !l.Location.IsValid() {
		add("location", "must be proximal, mid or distal", l.Location)
	}
	if l.StenosisPercent < 0 || l.StenosisPercent > 100 {
		add("stenosis_percent", "must be between 0 and 100", l.StenosisPercent)
	}
	if n := l.LengthMM; n != nil && (*n < 0 || *n > 200) {
		add("length_mm", "must be between 0 and 200 mm", *n)
	}
	if l.Morphology != "" && !l.Morphology.IsValid() {
		add("morphology", "must be A, B1, B2 or C", l.Morphology)
	}
	if l.IsCTO && l.StenosisPercent < 99 {
		add("is_cto", "chronic total occlusion requires 99-100% stenosis", l.StenosisPercent)
	}
	if l.SegmentID != nil {
		if _, err := catalog.WeightFor(*l.SegmentID, dominance); err != nil {
			add("segment_id", err.Error(), *l.SegmentID)
		}
	}
	if l.Medina != "" && !validMedina(l.Medina) {
		add("medina", "must be three 0/1 digits such as 1,1,1", l.Medina)
	}
	if a := l.BifurcationAngleDeg; a != nil && (*a < 0 || *a > 180) {
		add("bifurcation_angle_deg", "must be between 0 and 180", *a)
	}
	counts := []struct {
		field string
		n     int
	}{
		{"side_branches_at_occlusion", l.SideBranchesAtOcclusion},
		{"trifurcation_diseased_segments", l.TrifurcationSegments},
		{"diffuse_small_vessel_segments", l.DiffuseSmallVessel},
	}
	for _, c := range counts {
		if c.n < 0 {
			add(c.field, "must not be negative", c.n)
		}
	}
	if l.TrifurcationSegments > 4 {
		add("trifurcation_diseased_segments", "at most 4 diseased segments", l.TrifurcationSegments)
	}
	return errs
}

func validMedina(raw string) bool {
	digits := 0
	for _, r := range raw {
		switch {
		case r == '0' || r == '1':
			digits++
		case strings.ContainsRune(" ,.()", r):
		default:
			return false
		}
	}
	return digits == 3
}

// ConsistencyWarnings flags clinically unusual but legal combinations.
func ConsistencyWarnings(p *domain.PatientRecord) []string {
	var warnings []string

	if len(p.Lesions) == 0 {
		warnings = append(warnings, "no lesions recorded; all scores will be zero")
	}

	for i, l := range p.Lesions {
		if l.ThrombusPresent && l.StenosisPercent < 70 {
			warnings = append(warnings, fmt.Sprintf("lesion %d: thrombus usually accompanies stenosis of 70%% or more", i+1))
		}
		if l.StenosisPercent == 100 && !l.IsCTO {
			warnings = append(warnings, fmt.Sprintf("lesion %d: 100%% stenosis without CTO flag is scored as a non-occlusive lesion", i+1))
		}
	}

	if p.Age < 40 {
		for _, l := range p.Lesions {
			if l.StenosisPercent >= 70 {
				warnings = append(warnings, "severe coronary disease in a young patient; consider screening for inherited disorders")
				break
			}
		}
	}

	if p.Diabetes && p.CreatinineMgDL != nil && *p.CreatinineMgDL > 1.5 {
		warnings = append(warnings, "raised creatinine in a diabetic patient; consider diabetic nephropathy")
	}

	if p.EjectionFrac != nil && *p.EjectionFrac < 40 {
		for _, l := range p.Lesions {
			if l.Vessel == domain.VesselLM {
				warnings = append(warnings, "left main disease with left ventricular dysfunction is a high-risk combination")
				break
			}
		}
	}

	return warnings
}
