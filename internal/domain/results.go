package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Warning is a per-lesion problem that did not abort the patient's scoring.
type Warning struct {
	LesionIndex int    `json:"lesion_index"`
	LesionID    string `json:"lesion_id,omitempty"`
	Message     string `json:"message"`
}

func (w Warning) String() string {
	if w.LesionID != "" {
		return fmt.Sprintf("lesion %s: %s", w.LesionID, w.Message)
	}
	return fmt.Sprintf("lesion #%d: %s", w.LesionIndex+1, w.Message)
}

// SyntaxFactor is one itemised term of a lesion's SYNTAX points.
type SyntaxFactor struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// SyntaxLesionScore is the SYNTAX contribution of one lesion.
type SyntaxLesionScore struct {
	LesionIndex   int            `json:"lesion_index"`
	LesionID      string         `json:"lesion_id,omitempty"`
	Vessel        Vessel         `json:"vessel"`
	SegmentID     int            `json:"segment_id,omitempty"`
	SegmentWeight float64        `json:"segment_weight"`
	Multiplier    float64        `json:"multiplier"`
	Factors       []SyntaxFactor `json:"factors"`
	Points        float64        `json:"points"`
	Scored        bool           `json:"scored"`
}

// SyntaxResult is the SYNTAX outcome for one patient.
type SyntaxResult struct {
	PatientID       string              `json:"patient_id,omitempty"`
	TotalScore      float64             `json:"total_score"`
	AnatomicalScore float64             `json:"anatomical_score"`
	ClinicalScore   float64             `json:"clinical_score"`
	SyntaxIIScore   float64             `json:"syntax_ii_score"`
	RiskCategory    SyntaxRisk          `json:"risk_category"`
	Dominance       Dominance           `json:"dominance"`
	Lesions         []SyntaxLesionScore `json:"lesions"`
	Warnings        []Warning           `json:"warnings,omitempty"`
}

// SubScores returns the named sub-scores of the result.
func (r *SyntaxResult) SubScores() map[string]float64 {
	return map[string]float64{
		"total_score":      r.TotalScore,
		"anatomical_score": r.AnatomicalScore,
		"clinical_score":   r.ClinicalScore,
		"syntax_ii_score":  r.SyntaxIIScore,
	}
}

// GensiniLesionScore is the Gensini contribution of one lesion.
type GensiniLesionScore struct {
	LesionIndex   int      `json:"lesion_index"`
	LesionID      string   `json:"lesion_id,omitempty"`
	Vessel        Vessel   `json:"vessel"`
	Location      Location `json:"location"`
	Stenosis      float64  `json:"stenosis_percent"`
	SeverityIndex float64  `json:"severity_index"`
	Multiplier    float64  `json:"multiplier"`
	Contribution  float64  `json:"contribution"`
}

// GensiniResult is the Gensini outcome for one patient.
type GensiniResult struct {
	PatientID    string               `json:"patient_id,omitempty"`
	TotalScore   float64              `json:"total_score"`
	Severity     GensiniSeverity      `json:"severity"`
	VesselScores map[Vessel]float64   `json:"vessel_scores"`
	Lesions      []GensiniLesionScore `json:"lesions"`
	Warnings     []Warning            `json:"warnings,omitempty"`
}

// SubScores returns the total plus one entry per vessel.
func (r *GensiniResult) SubScores() map[string]float64 {
	out := map[string]float64{"total_score": r.TotalScore}
	for v, s := range r.VesselScores {
		out[string(v)] = s
	}
	return out
}

// CadRadsLesionGrade is the CAD-RADS grade of one lesion.
type CadRadsLesionGrade struct {
	LesionIndex int     `json:"lesion_index"`
	LesionID    string  `json:"lesion_id,omitempty"`
	Vessel      Vessel  `json:"vessel"`
	Stenosis    float64 `json:"stenosis_percent"`
	Grade       int     `json:"grade"`
}

// CadRadsResult is the CAD-RADS outcome for one patient.
type CadRadsResult struct {
	PatientID      string               `json:"patient_id,omitempty"`
	OverallGrade   int                  `json:"overall_grade"`
	Category       string               `json:"category"`
	Label          string               `json:"label"`
	MaxStenosis    float64              `json:"max_stenosis"`
	VesselGrades   map[Vessel]int       `json:"vessel_grades"`
	DominantVessel Vessel               `json:"dominant_vessel,omitempty"`
	Escalated      bool                 `json:"escalated"`
	Modifiers      []CadRadsModifier    `json:"modifiers,omitempty"`
	Lesions        []CadRadsLesionGrade `json:"lesions"`
	Warnings       []Warning            `json:"warnings,omitempty"`
}

// VesselGrade returns the grade of v, or 0 when v carries no lesion.
func (r *CadRadsResult) VesselGrade(v Vessel) int {
	return r.VesselGrades[v]
}

// SubScores returns the overall grade plus one entry per vessel.
func (r *CadRadsResult) SubScores() map[string]float64 {
	out := map[string]float64{"overall_grade": float64(r.OverallGrade)}
	for v, g := range r.VesselGrades {
		out[string(v)] = float64(g)
	}
	return out
}

// HasModifier reports whether m was derived for the patient.
func (r *CadRadsResult) HasModifier(m CadRadsModifier) bool {
	for _, have := range r.Modifiers {
		if have == m {
			return true
		}
	}
	return false
}

// ScoreBundle groups whichever standards were requested for one patient.
type ScoreBundle struct {
	PatientID string         `json:"patient_id,omitempty"`
	Syntax    *SyntaxReport  `json:"syntax,omitempty"`
	Gensini   *GensiniReport `json:"gensini,omitempty"`
	CadRads   *CadRadsReport `json:"cadrads,omitempty"`
	ScoredAt  time.Time      `json:"scored_at"`
}

// Warnings collects the warnings of every included standard.
func (b *ScoreBundle) Warnings() []Warning {
	var out []Warning
	if b.Syntax != nil {
		out = append(out, b.Syntax.Result.Warnings...)
	}
	if b.Gensini != nil {
		out = append(out, b.Gensini.Result.Warnings...)
	}
	if b.CadRads != nil {
		out = append(out, b.CadRads.Result.Warnings...)
	}
	return out
}

// LesionDetail is a lesion's raw attributes next to the points it earned.
type LesionDetail struct {
	Index       int      `json:"index"`
	LesionID    string   `json:"lesion_id,omitempty"`
	Vessel      Vessel   `json:"vessel"`
	Location    Location `json:"location"`
	Stenosis    float64  `json:"stenosis_percent"`
	LengthMM    *float64 `json:"length_mm,omitempty"`
	Description string   `json:"description"`
	Attributes  []string `json:"attributes,omitempty"`
	Points      float64  `json:"points"`
	Breakdown   string   `json:"breakdown,omitempty"`
}

// SyntaxReport is a SyntaxResult plus its human-facing detail.
type SyntaxReport struct {
	Result         *SyntaxResult  `json:"result"`
	LesionDetails  []LesionDetail `json:"lesion_details"`
	Recommendation string         `json:"recommendation"`
	Interpretation string         `json:"interpretation"`
}

// GensiniRiskAssessment is the cardiovascular risk view of a Gensini total.
type GensiniRiskAssessment struct {
	RiskLevel       string   `json:"risk_level"`
	AnnualEventRisk string   `json:"annual_event_risk"`
	RiskModifiers   []string `json:"risk_modifiers,omitempty"`
}

// GensiniPrognosis is the outcome estimate attached to a Gensini report.
type GensiniPrognosis struct {
	Overall           string   `json:"overall"`
	FiveYearSurvival  string   `json:"five_year_survival"`
	PrognosticFactors []string `json:"prognostic_factors,omitempty"`
}

// GensiniAdvice splits a severity band's recommendation into its treatment,
// lifestyle and follow-up parts.
type GensiniAdvice struct {
	Primary   string `json:"primary"`
	Lifestyle string `json:"lifestyle"`
	FollowUp  string `json:"follow_up"`
}

// ScoreComparison contrasts what Gensini and SYNTAX measure.
type ScoreComparison struct {
	GensiniFocus        string `json:"gensini_focus"`
	SyntaxDifference    string `json:"syntax_difference"`
	ClinicalApplication string `json:"clinical_application"`
	ComplementaryUse    string `json:"complementary_use"`
}

// GensiniReport is a GensiniResult plus its human-facing detail.
type GensiniReport struct {
	Result               *GensiniResult        `json:"result"`
	LesionDetails        []LesionDetail        `json:"lesion_details"`
	Recommendation       string                `json:"recommendation"`
	Advice               GensiniAdvice         `json:"advice"`
	RiskAssessment       GensiniRiskAssessment `json:"risk_assessment"`
	Prognosis            GensiniPrognosis      `json:"prognosis"`
	ComparisonWithSyntax ScoreComparison       `json:"comparison_with_syntax"`
}

// ImagingQuality is the CT image quality a CAD-RADS grade calls for.
type ImagingQuality struct {
	Requirement       string `json:"quality_requirement"`
	Recommendation    string `json:"recommendation"`
	AdditionalImaging string `json:"additional_imaging"`
}

// CadRadsReport is a CadRadsResult plus its human-facing detail.
type CadRadsReport struct {
	Result               *CadRadsResult `json:"result"`
	LesionDetails        []LesionDetail `json:"lesion_details"`
	Description          string         `json:"description"`
	Recommendation       string         `json:"recommendation"`
	FollowUp             string         `json:"follow_up"`
	ClinicalSignificance string         `json:"clinical_significance"`
	RiskLevel            string         `json:"risk_level"`
	QualityMeasures      ImagingQuality `json:"quality_measures"`
}

func describeLesion(l Lesion) string {
	var b strings.Builder
	b.WriteString(string(l.Vessel))
	if l.Location != "" {
		b.WriteString(" ")
		b.WriteString(string(l.Location))
	}
	b.WriteString(" ")
	b.WriteString(strconv.FormatFloat(l.StenosisPercent, 'f', -1, 64))
	b.WriteString("%")
	return b.String()
}
